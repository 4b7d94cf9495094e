package dynamodb

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"path-backend/application/ports"
	"path-backend/domain/core/valueobjects"
	pkgerrors "path-backend/pkg/errors"
)

// PointGraph keeps point membership items in the memo table
type PointGraph struct {
	client    Client
	tableName string
	logger    *zap.Logger
}

var _ ports.PointGraph = (*PointGraph)(nil)

type pointItem struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	EntityType string `dynamodbav:"EntityType"`
	PointID    string `dynamodbav:"PointID"`
	CreatedAt  string `dynamodbav:"CreatedAt"`
}

type membershipItem struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	EntityType string `dynamodbav:"EntityType"`
	PointID    string `dynamodbav:"PointID"`
	MemoID     string `dynamodbav:"MemoID"`
}

// NewPointGraph creates a new PointGraph
func NewPointGraph(client Client, tableName string, logger *zap.Logger) *PointGraph {
	return &PointGraph{client: client, tableName: tableName, logger: logger}
}

// AddPoint registers a point; registering it twice is not an error
func (g *PointGraph) AddPoint(ctx context.Context, pointID string) error {
	av, err := attributevalue.MarshalMap(pointItem{
		PK:         pointPK(pointID),
		SK:         skMetadata,
		EntityType: "POINT",
		PointID:    pointID,
		CreatedAt:  formatTime(time.Now()),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal point: %w", err)
	}
	expr, err := expression.NewBuilder().WithCondition(*notExists()).Build()
	if err != nil {
		return fmt.Errorf("failed to build condition: %w", err)
	}

	_, err = g.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 aws.String(g.tableName),
		Item:                      av,
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil && !isConditionFailed(err) {
		return fmt.Errorf("failed to save point: %w", err)
	}
	return nil
}

func (g *PointGraph) PointExists(ctx context.Context, pointID string) (bool, error) {
	result, err := g.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:            aws.String(g.tableName),
		Key:                  itemKey{PK: pointPK(pointID), SK: skMetadata}.attributes(),
		ProjectionExpression: aws.String("PK"),
	})
	if err != nil {
		return false, fmt.Errorf("failed to get point: %w", err)
	}
	return len(result.Item) > 0, nil
}

func (g *PointGraph) AddMemo(ctx context.Context, pointID string, memoID valueobjects.MemoID) error {
	tx := newTransaction(g.tableName)
	if err := tx.check(itemKey{PK: pointPK(pointID), SK: skMetadata}, exists(),
		&guard{constraint: pkgerrors.ConstraintMemoPointFK, key: pointID}); err != nil {
		return err
	}
	if err := tx.put(membershipItem{
		PK:         pointPK(pointID),
		SK:         skMembership + memoID.String(),
		EntityType: "POINT_MEMO",
		PointID:    pointID,
		MemoID:     memoID.String(),
	}, nil, nil); err != nil {
		return err
	}
	if err := tx.execute(ctx, g.client); err != nil {
		return err
	}

	g.logger.Debug("Memo attached to point",
		zap.String("point_id", pointID),
		zap.String("memo_id", memoID.String()),
	)
	return nil
}

func (g *PointGraph) RemoveMemo(ctx context.Context, pointID string, memoID valueobjects.MemoID) error {
	_, err := g.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(g.tableName),
		Key:       itemKey{PK: pointPK(pointID), SK: skMembership + memoID.String()}.attributes(),
	})
	if err != nil {
		return fmt.Errorf("failed to detach memo: %w", err)
	}
	return nil
}

func (g *PointGraph) CountMemos(ctx context.Context, pointID string) (int, error) {
	keyEx := expression.Key("PK").Equal(expression.Value(pointPK(pointID))).
		And(expression.Key("SK").BeginsWith(skMembership))
	expr, err := expression.NewBuilder().WithKeyCondition(keyEx).Build()
	if err != nil {
		return 0, fmt.Errorf("failed to build query: %w", err)
	}

	paginator := dynamodb.NewQueryPaginator(g.client, &dynamodb.QueryInput{
		TableName:                 aws.String(g.tableName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		Select:                    types.SelectCount,
		ConsistentRead:            aws.Bool(true),
	})

	count := 0
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return 0, fmt.Errorf("failed to count memos: %w", err)
		}
		count += int(page.Count)
	}
	return count, nil
}

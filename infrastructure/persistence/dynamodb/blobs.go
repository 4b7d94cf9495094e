package dynamodb

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"path-backend/application/ports"
	pkgerrors "path-backend/pkg/errors"
)

// DynamoDB items are capped at 400KB; blobs are split into parts below that
const blobPartSize = 350 * 1024

// Blobs stores payloads as one or more BLOB#<key> items
type Blobs struct {
	client    Client
	tableName string
}

var _ ports.BlobStore = (*Blobs)(nil)

type blobPartItem struct {
	PK    string `dynamodbav:"PK"`
	SK    string `dynamodbav:"SK"`
	Data  []byte `dynamodbav:"Data"`
	Parts int    `dynamodbav:"Parts"`
}

// NewBlobs creates a new blob store
func NewBlobs(client Client, tableName string) *Blobs {
	return &Blobs{client: client, tableName: tableName}
}

// Put writes all parts of data in one transaction. Keys are content
// addressed, so a payload is written once and never changed.
func (b *Blobs) Put(ctx context.Context, key string, data []byte) error {
	parts := (len(data) + blobPartSize - 1) / blobPartSize
	if parts == 0 {
		parts = 1
	}

	tx := newTransaction(b.tableName)
	for n := 0; n < parts; n++ {
		end := (n + 1) * blobPartSize
		if end > len(data) {
			end = len(data)
		}
		if err := tx.put(blobPartItem{
			PK:    blobPK(key),
			SK:    fmt.Sprintf("%s%04d", skBlobPart, n),
			Data:  data[n*blobPartSize : end],
			Parts: parts,
		}, nil, nil); err != nil {
			return err
		}
	}
	return tx.execute(ctx, b.client)
}

func (b *Blobs) Get(ctx context.Context, key string) ([]byte, error) {
	keyEx := expression.Key("PK").Equal(expression.Value(blobPK(key))).
		And(expression.Key("SK").BeginsWith(skBlobPart))
	expr, err := expression.NewBuilder().WithKeyCondition(keyEx).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	paginator := dynamodb.NewQueryPaginator(b.client, &dynamodb.QueryInput{
		TableName:                 aws.String(b.tableName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ConsistentRead:            aws.Bool(true),
	})

	var items []blobPartItem
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to query blob: %w", err)
		}
		var batch []blobPartItem
		if err := unmarshalParts(page.Items, &batch); err != nil {
			return nil, err
		}
		items = append(items, batch...)
	}

	if len(items) == 0 {
		return nil, pkgerrors.ContentNotFound(key)
	}
	if len(items) != items[0].Parts {
		return nil, fmt.Errorf("blob %s has %d of %d parts", key, len(items), items[0].Parts)
	}

	var data []byte
	for _, item := range items {
		data = append(data, item.Data...)
	}
	return data, nil
}

func unmarshalParts(items []map[string]types.AttributeValue, out *[]blobPartItem) error {
	if err := attributevalue.UnmarshalListOfMaps(items, out); err != nil {
		return fmt.Errorf("failed to unmarshal blob parts: %w", err)
	}
	return nil
}

package dynamodb

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	pkgerrors "path-backend/pkg/errors"
)

// DynamoDB rejects transactions larger than this
const maxTransactItems = 100

// guard names the constraint reported when an item's condition fails.
// When ifMissing is set and the item did not exist, ifMissing is reported
// instead.
type guard struct {
	constraint string
	ifMissing  string
	key        string
}

// transaction collects writes that must succeed or fail together
type transaction struct {
	table  string
	items  []types.TransactWriteItem
	guards []*guard
}

func newTransaction(table string) *transaction {
	return &transaction{table: table}
}

func (t *transaction) add(item types.TransactWriteItem, g *guard) {
	t.items = append(t.items, item)
	t.guards = append(t.guards, g)
}

// put adds a Put of item, conditional on cond when it is non-nil
func (t *transaction) put(item interface{}, cond *expression.ConditionBuilder, g *guard) error {
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal item: %w", err)
	}
	put := &types.Put{TableName: aws.String(t.table), Item: av}
	if cond != nil {
		expr, err := expression.NewBuilder().WithCondition(*cond).Build()
		if err != nil {
			return fmt.Errorf("failed to build condition: %w", err)
		}
		put.ConditionExpression = expr.Condition()
		put.ExpressionAttributeNames = expr.Names()
		put.ExpressionAttributeValues = expr.Values()
		put.ReturnValuesOnConditionCheckFailure = types.ReturnValuesOnConditionCheckFailureAllOld
	}
	t.add(types.TransactWriteItem{Put: put}, g)
	return nil
}

// update adds an Update of key, conditional on cond when it is non-nil
func (t *transaction) update(key itemKey, update expression.UpdateBuilder, cond *expression.ConditionBuilder, g *guard) error {
	builder := expression.NewBuilder().WithUpdate(update)
	if cond != nil {
		builder = builder.WithCondition(*cond)
	}
	expr, err := builder.Build()
	if err != nil {
		return fmt.Errorf("failed to build update: %w", err)
	}
	t.add(types.TransactWriteItem{Update: &types.Update{
		TableName:                           aws.String(t.table),
		Key:                                 key.attributes(),
		UpdateExpression:                    expr.Update(),
		ConditionExpression:                 expr.Condition(),
		ExpressionAttributeNames:            expr.Names(),
		ExpressionAttributeValues:           expr.Values(),
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	}}, g)
	return nil
}

// delete adds a Delete of key, conditional on cond when it is non-nil
func (t *transaction) delete(key itemKey, cond *expression.ConditionBuilder, g *guard) error {
	del := &types.Delete{TableName: aws.String(t.table), Key: key.attributes()}
	if cond != nil {
		expr, err := expression.NewBuilder().WithCondition(*cond).Build()
		if err != nil {
			return fmt.Errorf("failed to build condition: %w", err)
		}
		del.ConditionExpression = expr.Condition()
		del.ExpressionAttributeNames = expr.Names()
		del.ExpressionAttributeValues = expr.Values()
	}
	t.add(types.TransactWriteItem{Delete: del}, g)
	return nil
}

// check adds a ConditionCheck on key
func (t *transaction) check(key itemKey, cond expression.ConditionBuilder, g *guard) error {
	expr, err := expression.NewBuilder().WithCondition(cond).Build()
	if err != nil {
		return fmt.Errorf("failed to build condition: %w", err)
	}
	t.add(types.TransactWriteItem{ConditionCheck: &types.ConditionCheck{
		TableName:                 aws.String(t.table),
		Key:                       key.attributes(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}}, g)
	return nil
}

// execute commits the transaction. A failed condition is reported as the
// ConstraintViolation of the guard registered with the failing item.
func (t *transaction) execute(ctx context.Context, client Client) error {
	if len(t.items) == 0 {
		return nil
	}
	if len(t.items) > maxTransactItems {
		return fmt.Errorf("transaction has %d items, limit is %d", len(t.items), maxTransactItems)
	}

	_, err := client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: t.items})
	if err == nil {
		return nil
	}

	var canceled *types.TransactionCanceledException
	if !errors.As(err, &canceled) {
		return fmt.Errorf("transaction failed: %w", err)
	}
	for i, reason := range canceled.CancellationReasons {
		if aws.ToString(reason.Code) != "ConditionalCheckFailed" || i >= len(t.guards) || t.guards[i] == nil {
			continue
		}
		g := t.guards[i]
		constraint := g.constraint
		if g.ifMissing != "" && len(reason.Item) == 0 {
			constraint = g.ifMissing
		}
		return pkgerrors.NewConstraintViolation(constraint, g.key, err)
	}
	return fmt.Errorf("transaction canceled: %w", err)
}

func notExists() *expression.ConditionBuilder {
	cond := expression.AttributeNotExists(expression.Name("PK"))
	return &cond
}

func exists() expression.ConditionBuilder {
	return expression.AttributeExists(expression.Name("PK"))
}

func isConditionFailed(err error) bool {
	var failed *types.ConditionalCheckFailedException
	return errors.As(err, &failed)
}

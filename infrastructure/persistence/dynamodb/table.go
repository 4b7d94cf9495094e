package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Client is the subset of the DynamoDB API used by this package.
// *dynamodb.Client satisfies it.
type Client interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Single table layout. Everything about a memo lives in its partition; the
// revision and content items have their own partitions for lookup by id.
//
//	MEMO#<id>      METADATA                   memo (GSI1: POINT#<point> / MEMO#<created>#<id>)
//	MEMO#<id>      DRAFT                      live draft
//	MEMO#<id>      RESERVATION                reservation
//	MEMO#<id>      REV#<sequence>             revision ledger entry
//	MEMO#<id>      CONTRIBUTOR#<user>         contributor
//	REVISION#<id>  METADATA                   revision
//	CONTENT#<id>   METADATA                   revision content
//	POINT#<id>     METADATA                   point
//	POINT#<id>     MEMO#<memo>                point membership
//	POINT#<id>     TITLE#<title>              title uniqueness guard
//	BLOB#<key>     PART#<n>                   blob chunk
const (
	GSI1Name = "GSI1"

	skMetadata    = "METADATA"
	skDraft       = "DRAFT"
	skReservation = "RESERVATION"
	skLedger      = "REV#"
	skContributor = "CONTRIBUTOR#"
	skMembership  = "MEMO#"
	skTitle       = "TITLE#"
	skBlobPart    = "PART#"
)

type itemKey struct {
	PK string `dynamodbav:"PK"`
	SK string `dynamodbav:"SK"`
}

func memoPK(id string) string     { return "MEMO#" + id }
func revisionPK(id string) string { return "REVISION#" + id }
func contentPK(id string) string  { return "CONTENT#" + id }
func pointPK(id string) string    { return "POINT#" + id }
func blobPK(key string) string    { return "BLOB#" + key }

// ledgerSK orders revisions by sequence; the zero padding keeps the string
// order equal to the numeric order
func ledgerSK(sequence int64) string {
	return fmt.Sprintf("%s%019d", skLedger, sequence)
}

func sortableTime(t time.Time) string {
	return fmt.Sprintf("%019d", t.UnixNano())
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

func (k itemKey) attributes() map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: k.PK},
		"SK": &types.AttributeValueMemberS{Value: k.SK},
	}
}

// CreateTable creates the single table with its GSI and waits until it is
// active. An existing table is left untouched.
func CreateTable(ctx context.Context, client *dynamodb.Client, tableName string) error {
	_, err := client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName:   aws.String(tableName),
		BillingMode: types.BillingModePayPerRequest,
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("PK"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("SK"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("GSI1PK"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("GSI1SK"), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("PK"), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String("SK"), KeyType: types.KeyTypeRange},
		},
		GlobalSecondaryIndexes: []types.GlobalSecondaryIndex{{
			IndexName: aws.String(GSI1Name),
			KeySchema: []types.KeySchemaElement{
				{AttributeName: aws.String("GSI1PK"), KeyType: types.KeyTypeHash},
				{AttributeName: aws.String("GSI1SK"), KeyType: types.KeyTypeRange},
			},
			Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
		}},
	})
	var inUse *types.ResourceInUseException
	if err != nil && !errors.As(err, &inUse) {
		return fmt.Errorf("failed to create table %s: %w", tableName, err)
	}

	waiter := dynamodb.NewTableExistsWaiter(client)
	return waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(tableName)}, 2*time.Minute)
}

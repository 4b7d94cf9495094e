package dynamodb_test

import (
	"context"
	"os"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"path-backend/application/ports"
	"path-backend/infrastructure/persistence/dynamodb"
	"path-backend/infrastructure/persistence/storetest"
	pkgerrors "path-backend/pkg/errors"
)

// newClient connects to DynamoDB Local on localhost:8000 and creates a
// fresh table. The tests only run with LOCAL_DYNAMODB=true.
func newClient(t *testing.T) (*awsdynamodb.Client, string) {
	t.Helper()
	if os.Getenv("SKIP_INTEGRATION_TESTS") == "true" || os.Getenv("LOCAL_DYNAMODB") != "true" {
		t.Skip("Skipping DynamoDB integration tests")
	}
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion("us-east-1"),
		config.WithCredentialsProvider(aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
			return aws.Credentials{AccessKeyID: "local", SecretAccessKey: "local"}, nil
		})),
	)
	require.NoError(t, err)

	client := awsdynamodb.NewFromConfig(cfg, func(o *awsdynamodb.Options) {
		o.BaseEndpoint = aws.String("http://localhost:8000")
	})
	tableName := "memo-test-" + uuid.New().String()
	require.NoError(t, dynamodb.CreateTable(ctx, client, tableName))
	t.Cleanup(func() {
		client.DeleteTable(context.Background(), &awsdynamodb.DeleteTableInput{TableName: aws.String(tableName)})
	})
	return client, tableName
}

func TestStore(t *testing.T) {
	storetest.RunStore(t, func(t *testing.T) ports.Store {
		client, table := newClient(t)
		return dynamodb.NewStore(client, table, zap.NewNop())
	})
}

func TestPointGraph(t *testing.T) {
	storetest.RunGraph(t, func(t *testing.T, pointIDs ...string) ports.PointGraph {
		client, table := newClient(t)
		graph := dynamodb.NewPointGraph(client, table, zap.NewNop())
		for _, id := range pointIDs {
			require.NoError(t, graph.AddPoint(context.Background(), id))
		}
		return graph
	})
}

func TestBlobs(t *testing.T) {
	client, table := newClient(t)
	ctx := context.Background()
	blobs := dynamodb.NewBlobs(client, table)

	_, err := blobs.Get(ctx, "content/missing")
	assert.True(t, pkgerrors.IsNotFound(err))

	large := make([]byte, 900*1024)
	for i := range large {
		large[i] = byte(i % 251)
	}
	require.NoError(t, blobs.Put(ctx, "content/large", large))

	data, err := blobs.Get(ctx, "content/large")
	require.NoError(t, err)
	assert.Equal(t, large, data)
}

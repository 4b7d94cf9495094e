package dynamodb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"path-backend/application/ports"
	"path-backend/domain/core/entities"
	"path-backend/domain/core/valueobjects"
	pkgerrors "path-backend/pkg/errors"
)

type mockClient struct {
	mock.Mock
}

func (m *mockClient) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*dynamodb.GetItemOutput)
	return out, args.Error(1)
}

func (m *mockClient) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*dynamodb.PutItemOutput)
	return out, args.Error(1)
}

func (m *mockClient) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*dynamodb.DeleteItemOutput)
	return out, args.Error(1)
}

func (m *mockClient) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*dynamodb.QueryOutput)
	return out, args.Error(1)
}

func (m *mockClient) TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*dynamodb.TransactWriteItemsOutput)
	return out, args.Error(1)
}

func canceled(reasons ...types.CancellationReason) error {
	return &types.TransactionCanceledException{
		Message:             aws.String("Transaction cancelled"),
		CancellationReasons: reasons,
	}
}

func none() types.CancellationReason {
	return types.CancellationReason{Code: aws.String("None")}
}

func conditionFailed(item map[string]types.AttributeValue) types.CancellationReason {
	return types.CancellationReason{Code: aws.String("ConditionalCheckFailed"), Item: item}
}

func freezePlan(t *testing.T) ports.FreezePlan {
	t.Helper()
	at := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	memoID := valueobjects.NewMemoID()
	previous := entities.NewDraft(memoID, "user-1", valueobjects.NewBody("old body"), at)
	content := entities.NewInlineContent(valueobjects.NewBody("old body"))
	revision := entities.NewRevision(memoID, "user-1", nil, content.ID(), at, at, at.Add(time.Minute))
	return ports.FreezePlan{
		MemoID:        memoID,
		Contents:      []*entities.RevisionContent{content},
		Revisions:     []*entities.Revision{revision},
		Contributors:  []string{"user-1", "user-1"},
		PreviousDraft: previous,
		UpdatedAt:     at.Add(time.Minute),
	}
}

func TestCommitFreeze_ConditionFailures(t *testing.T) {
	memoItem := map[string]types.AttributeValue{"PK": &types.AttributeValueMemberS{Value: "MEMO#x"}}

	tests := []struct {
		name    string
		reasons []types.CancellationReason
		code    string
	}{
		{
			name:    "memo gone",
			reasons: []types.CancellationReason{conditionFailed(nil), none(), none(), none(), none(), none()},
			code:    pkgerrors.CodeMemoNotFound,
		},
		{
			name:    "latest revision moved",
			reasons: []types.CancellationReason{conditionFailed(memoItem), none(), none(), none(), none(), none()},
			code:    pkgerrors.CodeDraftModified,
		},
		{
			name:    "draft rewritten",
			reasons: []types.CancellationReason{none(), conditionFailed(memoItem), none(), none(), none(), none()},
			code:    pkgerrors.CodeDraftModified,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := new(mockClient)
			plan := freezePlan(t)
			client.On("TransactWriteItems", mock.Anything, mock.MatchedBy(func(in *dynamodb.TransactWriteItemsInput) bool {
				// memo, draft, content, revision by id, ledger entry, one contributor
				return len(in.TransactItems) == 6
			})).Return(nil, canceled(tt.reasons...))

			store := NewStore(client, "memos", zap.NewNop())
			err := store.CommitFreeze(context.Background(), plan)

			var violation *pkgerrors.ConstraintViolation
			require.True(t, errors.As(err, &violation))
			assert.Equal(t, plan.MemoID.String(), violation.Key)
			assert.True(t, pkgerrors.HasCode(pkgerrors.Translate("freeze", err), tt.code))
			client.AssertExpectations(t)
		})
	}
}

func TestTransaction_Execute(t *testing.T) {
	ctx := context.Background()

	t.Run("empty transaction is a no-op", func(t *testing.T) {
		client := new(mockClient)
		require.NoError(t, newTransaction("memos").execute(ctx, client))
		client.AssertNotCalled(t, "TransactWriteItems", mock.Anything, mock.Anything)
	})

	t.Run("unguarded failure stays opaque", func(t *testing.T) {
		client := new(mockClient)
		client.On("TransactWriteItems", mock.Anything, mock.Anything).Return(nil, canceled(conditionFailed(nil)))

		tx := newTransaction("memos")
		require.NoError(t, tx.put(itemKey{PK: "A", SK: "B"}, notExists(), nil))
		err := tx.execute(ctx, client)
		require.Error(t, err)

		var violation *pkgerrors.ConstraintViolation
		assert.False(t, errors.As(err, &violation))
	})

	t.Run("too many items", func(t *testing.T) {
		tx := newTransaction("memos")
		for i := 0; i <= maxTransactItems; i++ {
			require.NoError(t, tx.put(itemKey{PK: "A", SK: "B"}, nil, nil))
		}
		assert.Error(t, tx.execute(ctx, new(mockClient)))
	})
}

func TestUpdateDraft_StaleVersion(t *testing.T) {
	client := new(mockClient)
	client.On("PutItem", mock.Anything, mock.Anything).
		Return(nil, &types.ConditionalCheckFailedException{Message: aws.String("stale")})

	at := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	draft := entities.NewDraft(valueobjects.NewMemoID(), "user-1", valueobjects.NewBody("body text"), at)

	store := NewStore(client, "memos", zap.NewNop())
	err := store.UpdateDraft(context.Background(), draft, at.Add(-time.Second))
	assert.True(t, pkgerrors.HasCode(pkgerrors.Translate("update draft", err), pkgerrors.CodeDraftModified))
}

func TestLedgerSK_SortsBySequence(t *testing.T) {
	assert.Less(t, ledgerSK(9), ledgerSK(10))
	assert.Less(t, ledgerSK(10), ledgerSK(11))
	assert.Equal(t, "REV#0000000000000000042", ledgerSK(42))
}

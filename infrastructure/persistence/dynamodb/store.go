package dynamodb

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"go.uber.org/zap"

	"path-backend/application/ports"
	"path-backend/domain/core/entities"
	"path-backend/domain/core/valueobjects"
	pkgerrors "path-backend/pkg/errors"
)

// Store implements ports.Store on a single DynamoDB table. Multi-item
// writes go through TransactWriteItems; single-item writes are conditional.
type Store struct {
	client    Client
	tableName string
	logger    *zap.Logger
}

var _ ports.Store = (*Store)(nil)

// NewStore creates a new Store
func NewStore(client Client, tableName string, logger *zap.Logger) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

func (s *Store) CreateMemo(ctx context.Context, memo *entities.Memo, draft *entities.Draft) error {
	key := memo.ID().String()
	if memo.PointID() == "" {
		return pkgerrors.NewConstraintViolation(pkgerrors.ConstraintMemoPointNotNull, key, nil)
	}
	if memo.Title() == "" {
		return pkgerrors.NewConstraintViolation(pkgerrors.ConstraintMemoTitleNotNull, key, nil)
	}

	tx := newTransaction(s.tableName)
	if err := tx.put(newMemoItem(memo), notExists(), &guard{constraint: pkgerrors.ConstraintMemoPK, key: key}); err != nil {
		return err
	}
	title := titleKey(memo.PointID(), memo.Title())
	if err := tx.put(titleItem{PK: title.PK, SK: title.SK, MemoID: key}, notExists(),
		&guard{constraint: pkgerrors.ConstraintMemoTitleUnique, key: memo.Title()}); err != nil {
		return err
	}
	if draft != nil {
		if err := tx.put(newDraftItem(draft), nil, nil); err != nil {
			return err
		}
	}
	contributor := contributorKey(memo.ID(), memo.CreatedBy())
	if err := tx.put(contributorItem{PK: contributor.PK, SK: contributor.SK, UserID: memo.CreatedBy(), AddedAt: formatTime(memo.CreatedAt())}, nil, nil); err != nil {
		return err
	}

	if err := tx.execute(ctx, s.client); err != nil {
		s.logger.Debug("Memo creation rejected", zap.String("memo_id", key), zap.Error(err))
		return err
	}
	return nil
}

func (s *Store) GetMemo(ctx context.Context, id valueobjects.MemoID) (*entities.Memo, error) {
	var item memoItem
	found, err := s.getItem(ctx, memoKey(id), &item)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, pkgerrors.MemoNotFound(id.String())
	}
	return item.toEntity()
}

func (s *Store) ListMemosByPoint(ctx context.Context, pointID string) ([]*entities.Memo, error) {
	keyEx := expression.Key("GSI1PK").Equal(expression.Value(pointPK(pointID))).
		And(expression.Key("GSI1SK").BeginsWith(skMembership))
	expr, err := expression.NewBuilder().WithKeyCondition(keyEx).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	paginator := dynamodb.NewQueryPaginator(s.client, &dynamodb.QueryInput{
		TableName:                 aws.String(s.tableName),
		IndexName:                 aws.String(GSI1Name),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})

	var memos []*entities.Memo
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to query memos: %w", err)
		}
		var items []memoItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, fmt.Errorf("failed to unmarshal memos: %w", err)
		}
		for _, item := range items {
			memo, err := item.toEntity()
			if err != nil {
				return nil, err
			}
			memos = append(memos, memo)
		}
	}
	return memos, nil
}

func (s *Store) UpdateMemo(ctx context.Context, memo *entities.Memo) error {
	key := memo.ID().String()
	var current memoItem
	found, err := s.getItem(ctx, memoKey(memo.ID()), &current)
	if err != nil {
		return err
	}
	if !found {
		return pkgerrors.NewConstraintViolation(pkgerrors.ConstraintMemoExists, key, nil)
	}

	next := newMemoItem(memo)
	update := expression.Set(expression.Name("PointID"), expression.Value(next.PointID)).
		Set(expression.Name("GSI1PK"), expression.Value(next.GSI1PK)).
		Set(expression.Name("Title"), expression.Value(next.Title)).
		Set(expression.Name("Summary"), expression.Value(next.Summary)).
		Set(expression.Name("UpdatedAt"), expression.Value(next.UpdatedAt)).
		Set(expression.Name("ExternalMarker"), expression.Value(next.ExternalMarker))
	if next.SummaryAt != "" {
		update = update.Set(expression.Name("SummaryAt"), expression.Value(next.SummaryAt))
	}
	cond := exists()

	tx := newTransaction(s.tableName)
	if err := tx.update(memoKey(memo.ID()), update, &cond, &guard{constraint: pkgerrors.ConstraintMemoExists, key: key}); err != nil {
		return err
	}
	if current.PointID != next.PointID || current.Title != next.Title {
		if err := tx.delete(titleKey(current.PointID, current.Title), nil, nil); err != nil {
			return err
		}
		title := titleKey(next.PointID, next.Title)
		if err := tx.put(titleItem{PK: title.PK, SK: title.SK, MemoID: key}, notExists(),
			&guard{constraint: pkgerrors.ConstraintMemoTitleUnique, key: next.Title}); err != nil {
			return err
		}
	}
	return tx.execute(ctx, s.client)
}

func (s *Store) GetDraft(ctx context.Context, memoID valueobjects.MemoID) (*entities.Draft, error) {
	var item draftItem
	found, err := s.getItem(ctx, draftKey(memoID), &item)
	if err != nil || !found {
		return nil, err
	}
	return item.toEntity(memoID)
}

func (s *Store) CreateDraft(ctx context.Context, draft *entities.Draft) error {
	key := draft.MemoID().String()
	tx := newTransaction(s.tableName)
	if err := tx.check(memoKey(draft.MemoID()), exists(), &guard{constraint: pkgerrors.ConstraintDraftMemoFK, key: key}); err != nil {
		return err
	}
	if err := tx.put(newDraftItem(draft), notExists(), &guard{constraint: pkgerrors.ConstraintDraftPK, key: key}); err != nil {
		return err
	}
	return tx.execute(ctx, s.client)
}

func (s *Store) UpdateDraft(ctx context.Context, draft *entities.Draft, expectedUpdatedAt time.Time) error {
	key := draft.MemoID().String()
	cond := expression.Name("UpdatedAt").Equal(expression.Value(formatTime(expectedUpdatedAt)))
	if err := s.putItem(ctx, newDraftItem(draft), cond); err != nil {
		if isConditionFailed(err) {
			return pkgerrors.NewConstraintViolation(pkgerrors.ConstraintDraftVersion, key, err)
		}
		return err
	}
	return nil
}

func (s *Store) GetReservation(ctx context.Context, memoID valueobjects.MemoID) (*entities.Reservation, error) {
	var item reservationItem
	found, err := s.getItem(ctx, reservationKey(memoID), &item)
	if err != nil || !found {
		return nil, err
	}
	return item.toEntity(memoID)
}

// UpsertReservation replaces the reservation with a conditional write on
// the observed code, the same way a lease is taken over
func (s *Store) UpsertReservation(ctx context.Context, reservation *entities.Reservation, previousCode string) error {
	key := reservation.MemoID().String()
	cond := notExists()
	if previousCode != "" {
		c := expression.Name("Code").Equal(expression.Value(previousCode))
		cond = &c
	}

	tx := newTransaction(s.tableName)
	if err := tx.check(memoKey(reservation.MemoID()), exists(), &guard{constraint: pkgerrors.ConstraintReserveMemoFK, key: key}); err != nil {
		return err
	}
	if err := tx.put(newReservationItem(reservation), cond, &guard{constraint: pkgerrors.ConstraintReserveCode, key: key}); err != nil {
		return err
	}
	if err := tx.execute(ctx, s.client); err != nil {
		return err
	}

	s.logger.Debug("Reservation written",
		zap.String("memo_id", key),
		zap.String("editor_id", reservation.EditorID()),
		zap.Time("expires_at", reservation.ExpiresAt()),
	)
	return nil
}

func (s *Store) DeleteReservation(ctx context.Context, memoID valueobjects.MemoID, code string) error {
	cond := expression.AttributeNotExists(expression.Name("PK")).
		Or(expression.Name("Code").Equal(expression.Value(code)))
	expr, err := expression.NewBuilder().WithCondition(cond).Build()
	if err != nil {
		return fmt.Errorf("failed to build condition: %w", err)
	}

	_, err = s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                 aws.String(s.tableName),
		Key:                       reservationKey(memoID).attributes(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		if isConditionFailed(err) {
			return pkgerrors.NewConstraintViolation(pkgerrors.ConstraintReserveCode, memoID.String(), err)
		}
		return fmt.Errorf("failed to delete reservation: %w", err)
	}
	return nil
}

func (s *Store) GetRevision(ctx context.Context, id valueobjects.RevisionID) (*entities.Revision, error) {
	var item revisionItem
	found, err := s.getItem(ctx, itemKey{PK: revisionPK(id.String()), SK: skMetadata}, &item)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, pkgerrors.RevisionNotFound(id.String())
	}
	return item.toEntity()
}

func (s *Store) ListRevisions(ctx context.Context, memoID valueobjects.MemoID, cursor ports.RevisionCursor, limit int) ([]*entities.Revision, error) {
	keyEx := expression.Key("PK").Equal(expression.Value(memoPK(memoID.String())))
	if cursor.BelowSequence > 0 {
		// Between is inclusive, so the upper bound is the previous sequence
		keyEx = keyEx.And(expression.Key("SK").Between(expression.Value(skLedger), expression.Value(ledgerSK(cursor.BelowSequence-1))))
	} else {
		keyEx = keyEx.And(expression.Key("SK").BeginsWith(skLedger))
	}
	builder := expression.NewBuilder().WithKeyCondition(keyEx)
	if cursor.Before != nil {
		builder = builder.WithFilter(expression.Name("TimestampNanos").LessThan(expression.Value(cursor.Before.UnixNano())))
	}
	expr, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(s.tableName),
		KeyConditionExpression:    expr.KeyCondition(),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          aws.Bool(false),
		ConsistentRead:            aws.Bool(true),
	}
	if limit > 0 {
		input.Limit = aws.Int32(int32(limit))
	}

	var revs []*entities.Revision
	paginator := dynamodb.NewQueryPaginator(s.client, input)
	for paginator.HasMorePages() && (limit <= 0 || len(revs) < limit) {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to query revisions: %w", err)
		}
		var items []revisionItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, fmt.Errorf("failed to unmarshal revisions: %w", err)
		}
		for _, item := range items {
			rev, err := item.toEntity()
			if err != nil {
				return nil, err
			}
			revs = append(revs, rev)
		}
	}
	if limit > 0 && len(revs) > limit {
		revs = revs[:limit]
	}
	return revs, nil
}

func (s *Store) GetContent(ctx context.Context, id valueobjects.ContentID) (*entities.RevisionContent, error) {
	var item contentItem
	found, err := s.getItem(ctx, itemKey{PK: contentPK(id.String()), SK: skMetadata}, &item)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, pkgerrors.ContentNotFound(id.String())
	}
	return item.toEntity()
}

func (s *Store) ListContributors(ctx context.Context, memoID valueobjects.MemoID) ([]string, error) {
	keyEx := expression.Key("PK").Equal(expression.Value(memoPK(memoID.String()))).
		And(expression.Key("SK").BeginsWith(skContributor))
	expr, err := expression.NewBuilder().WithKeyCondition(keyEx).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	paginator := dynamodb.NewQueryPaginator(s.client, &dynamodb.QueryInput{
		TableName:                 aws.String(s.tableName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ConsistentRead:            aws.Bool(true),
	})

	var items []contributorItem
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to query contributors: %w", err)
		}
		var batch []contributorItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, fmt.Errorf("failed to unmarshal contributors: %w", err)
		}
		items = append(items, batch...)
	}

	added := make(map[string]time.Time, len(items))
	users := make([]string, 0, len(items))
	for _, item := range items {
		t, err := parseTime(item.AddedAt)
		if err != nil {
			return nil, err
		}
		added[item.UserID] = t
		users = append(users, item.UserID)
	}
	sort.SliceStable(users, func(i, j int) bool { return added[users[i]].Before(added[users[j]]) })
	return users, nil
}

// CommitFreeze writes the whole plan in one transaction. The memo update is
// conditional on the latest revision pointer, the draft write on the draft's
// update time, so a concurrent freeze makes one of the two fail.
func (s *Store) CommitFreeze(ctx context.Context, plan ports.FreezePlan) error {
	key := plan.MemoID.String()
	tx := newTransaction(s.tableName)

	head := plan.ExpectedLatest.String()
	if latest := plan.LatestRevision(); latest != nil {
		head = latest.ID().String()
	}
	memoCond := exists().And(expression.Name("LatestRevisionID").Equal(expression.Value(plan.ExpectedLatest.String())))
	memoUpdate := expression.Set(expression.Name("LatestRevisionID"), expression.Value(head)).
		Set(expression.Name("UpdatedAt"), expression.Value(formatTime(plan.UpdatedAt)))
	if err := tx.update(memoKey(plan.MemoID), memoUpdate, &memoCond, &guard{
		constraint: pkgerrors.ConstraintLatestRevision,
		ifMissing:  pkgerrors.ConstraintMemoExists,
		key:        key,
	}); err != nil {
		return err
	}

	if err := s.planDraft(tx, plan); err != nil {
		return err
	}

	planned := make(map[string]bool, len(plan.Contents))
	for _, c := range plan.Contents {
		planned[c.ID().String()] = true
		if err := tx.put(newContentItem(c), notExists(), &guard{constraint: pkgerrors.ConstraintContentPK, key: c.ID().String()}); err != nil {
			return err
		}
	}

	for _, r := range plan.Revisions {
		contentID := r.ContentID().String()
		if !planned[contentID] {
			planned[contentID] = true
			if err := tx.check(itemKey{PK: contentPK(contentID), SK: skMetadata}, exists(),
				&guard{constraint: pkgerrors.ConstraintRevisionContentFK, key: contentID}); err != nil {
				return err
			}
		}
		if err := tx.put(newRevisionItem(r, revisionPK(r.ID().String()), skMetadata), notExists(),
			&guard{constraint: pkgerrors.ConstraintRevisionPK, key: r.ID().String()}); err != nil {
			return err
		}
		if err := tx.put(newRevisionItem(r, memoPK(key), ledgerSK(r.Sequence())), notExists(),
			&guard{constraint: pkgerrors.ConstraintLatestRevision, key: key}); err != nil {
			return err
		}
	}

	seen := make(map[string]bool, len(plan.Contributors))
	for _, userID := range plan.Contributors {
		if seen[userID] {
			continue
		}
		seen[userID] = true
		update := expression.Set(expression.Name("UserID"), expression.Value(userID)).
			Set(expression.Name("AddedAt"), expression.Name("AddedAt").IfNotExists(expression.Value(formatTime(plan.UpdatedAt))))
		if err := tx.update(contributorKey(plan.MemoID, userID), update, nil, nil); err != nil {
			return err
		}
	}

	if err := tx.execute(ctx, s.client); err != nil {
		return err
	}

	s.logger.Debug("Freeze committed",
		zap.String("memo_id", key),
		zap.Int("revisions", len(plan.Revisions)),
		zap.Int("contents", len(plan.Contents)),
		zap.Bool("next_draft", plan.NextDraft != nil),
	)
	return nil
}

// planDraft adds the draft replacement of a freeze plan to tx
func (s *Store) planDraft(tx *transaction, plan ports.FreezePlan) error {
	key := plan.MemoID.String()
	switch {
	case plan.PreviousDraft != nil:
		cond := expression.Name("UpdatedAt").Equal(expression.Value(formatTime(plan.PreviousDraft.UpdatedAt())))
		g := &guard{constraint: pkgerrors.ConstraintDraftVersion, key: key}
		if plan.NextDraft != nil {
			return tx.put(newDraftItem(plan.NextDraft), &cond, g)
		}
		return tx.delete(draftKey(plan.MemoID), &cond, g)
	case plan.NextDraft != nil:
		return tx.put(newDraftItem(plan.NextDraft), notExists(), &guard{constraint: pkgerrors.ConstraintDraftPK, key: key})
	}
	return nil
}

func (s *Store) getItem(ctx context.Context, key itemKey, out interface{}) (bool, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            key.attributes(),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return false, fmt.Errorf("failed to get item %s/%s: %w", key.PK, key.SK, err)
	}
	if len(result.Item) == 0 {
		return false, nil
	}
	if err := attributevalue.UnmarshalMap(result.Item, out); err != nil {
		return false, fmt.Errorf("failed to unmarshal item %s/%s: %w", key.PK, key.SK, err)
	}
	return true, nil
}

func (s *Store) putItem(ctx context.Context, item interface{}, cond expression.ConditionBuilder) error {
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal item: %w", err)
	}
	expr, err := expression.NewBuilder().WithCondition(cond).Build()
	if err != nil {
		return fmt.Errorf("failed to build condition: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 aws.String(s.tableName),
		Item:                      av,
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	return err
}

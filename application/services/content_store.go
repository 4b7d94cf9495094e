package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"path-backend/application/ports"
	"path-backend/domain/config"
	"path-backend/domain/core/entities"
	"path-backend/domain/core/valueobjects"
	pkgerrors "path-backend/pkg/errors"
)

const contentCacheTTL = time.Hour

// RevisionContentView is a content record together with its payload
type RevisionContentView struct {
	ID         string `json:"id"`
	Size       int    `json:"size"`
	Address    string `json:"address"`
	Compressed bool   `json:"compressed"`
	Body       string `json:"body"`
}

// ContentStore persists and loads revision payloads. Payloads above the
// compression threshold go to the blob store; smaller ones stay inline.
type ContentStore struct {
	store   ports.Store
	blobs   ports.BlobStore
	cache   ports.Cache
	policy  *config.MemoPolicy
	metrics ports.Metrics
	logger  *zap.Logger
}

// NewContentStore creates a new content store. blobs and cache may be nil,
// in which case every payload is stored inline and nothing is cached.
func NewContentStore(
	store ports.Store,
	blobs ports.BlobStore,
	cache ports.Cache,
	policy *config.MemoPolicy,
	metrics ports.Metrics,
	logger *zap.Logger,
) *ContentStore {
	return &ContentStore{
		store:   store,
		blobs:   blobs,
		cache:   cache,
		policy:  policy,
		metrics: metrics,
		logger:  logger,
	}
}

// Prepare builds the content record for body. Large payloads are written to
// the blob store before the record exists; a blob orphaned by a failed
// commit is never referenced.
func (s *ContentStore) Prepare(ctx context.Context, body valueobjects.Body) (*entities.RevisionContent, error) {
	data := body.Bytes()
	if s.blobs == nil || len(data) <= s.policy.CompressionThreshold {
		return entities.NewInlineContent(body), nil
	}

	id := valueobjects.NewContentID()
	key := blobKey(id)
	if err := s.blobs.Put(ctx, key, data); err != nil {
		return nil, pkgerrors.Translate("store content blob", err)
	}

	s.logger.Debug("Stored content blob",
		zap.String("content_id", id.String()),
		zap.Int("size", len(data)),
	)
	return entities.NewCompressedContent(id, len(data), key), nil
}

// Payload returns the bytes of a content record
func (s *ContentStore) Payload(ctx context.Context, content *entities.RevisionContent) ([]byte, error) {
	if !content.Compressed() {
		return []byte(content.Address()), nil
	}

	if s.cache != nil {
		if data, ok := s.cache.Get(ctx, content.Address()); ok {
			s.metrics.CacheLookup(true)
			return data, nil
		}
		s.metrics.CacheLookup(false)
	}

	if s.blobs == nil {
		return nil, pkgerrors.NewUnavailableError("blob store")
	}
	data, err := s.blobs.Get(ctx, content.Address())
	if err != nil {
		return nil, pkgerrors.Translate("load content blob", err)
	}

	if s.cache != nil {
		// Content is immutable, a stale entry cannot exist
		if err := s.cache.Set(ctx, content.Address(), data, contentCacheTTL); err != nil {
			s.logger.Warn("Failed to cache content", zap.String("content_id", content.ID().String()), zap.Error(err))
		}
	}
	return data, nil
}

// RevisionPayload returns the content bytes of a revision
func (s *ContentStore) RevisionPayload(ctx context.Context, revision *entities.Revision) ([]byte, error) {
	content, err := s.store.GetContent(ctx, revision.ContentID())
	if err != nil {
		return nil, pkgerrors.Translate("get revision content", err)
	}
	return s.Payload(ctx, content)
}

// LatestRevision returns the memo's head revision, or nil when it has none
func (s *ContentStore) LatestRevision(ctx context.Context, memo *entities.Memo) (*entities.Revision, error) {
	if !memo.HasRevision() {
		return nil, nil
	}
	revision, err := s.store.GetRevision(ctx, memo.LatestRevisionID())
	if err != nil {
		return nil, pkgerrors.Translate("get latest revision", err)
	}
	return revision, nil
}

// Get returns a content record and its payload
func (s *ContentStore) Get(ctx context.Context, id valueobjects.ContentID) (*RevisionContentView, error) {
	content, err := s.store.GetContent(ctx, id)
	if err != nil {
		return nil, pkgerrors.Translate("get revision content", err)
	}
	data, err := s.Payload(ctx, content)
	if err != nil {
		return nil, err
	}
	return &RevisionContentView{
		ID:         content.ID().String(),
		Size:       content.Size(),
		Address:    content.Address(),
		Compressed: content.Compressed(),
		Body:       string(data),
	}, nil
}

func blobKey(id valueobjects.ContentID) string {
	return "content/" + id.String()
}

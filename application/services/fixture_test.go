package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"path-backend/application/ports"
	"path-backend/domain/config"
	"path-backend/domain/core/entities"
	"path-backend/domain/core/valueobjects"
	"path-backend/domain/events"
	"path-backend/infrastructure/persistence/memory"
	pkgerrors "path-backend/pkg/errors"
	"path-backend/pkg/observability"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.DomainEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, event events.DomainEvent) error {
	return p.PublishBatch(ctx, []events.DomainEvent{event})
}

func (p *recordingPublisher) PublishBatch(ctx context.Context, evs []events.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evs...)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.GetEventType())
	}
	return out
}

type mapBlobs struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func (b *mapBlobs) Put(ctx context.Context, key string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.blobs[key] = append([]byte(nil), data...)
	return nil
}

func (b *mapBlobs) Get(ctx context.Context, key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.blobs[key]
	if !ok {
		return nil, pkgerrors.ContentNotFound(key)
	}
	return data, nil
}

type fixture struct {
	t            *testing.T
	ctx          context.Context
	policy       *config.MemoPolicy
	store        ports.Store
	memStore     *memory.Store
	graph        *memory.PointGraph
	blobs        *mapBlobs
	clock        *fakeClock
	publisher    *recordingPublisher
	reservations *ReservationManager
	contents     *ContentStore
	drafts       *DraftService
	memos        *MemoService

	graphOverride ports.PointGraph
}

type fixtureOption func(*fixture)

func withPolicy(mutate func(*config.MemoPolicy)) fixtureOption {
	return func(f *fixture) { mutate(f.policy) }
}

func withStore(wrap func(*memory.Store) ports.Store) fixtureOption {
	return func(f *fixture) { f.store = wrap(f.memStore) }
}

func withGraph(graph ports.PointGraph) fixtureOption {
	return func(f *fixture) { f.graphOverride = graph }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	f := &fixture{
		t:         t,
		ctx:       context.Background(),
		policy:    config.DefaultMemoPolicy(),
		memStore:  memory.NewStore(),
		graph:     memory.NewPointGraph("point-1", "point-2"),
		blobs:     &mapBlobs{blobs: make(map[string][]byte)},
		clock:     &fakeClock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)},
		publisher: &recordingPublisher{},
	}
	f.store = f.memStore
	for _, opt := range opts {
		opt(f)
	}

	var graph ports.PointGraph = f.graph
	if f.graphOverride != nil {
		graph = f.graphOverride
	}

	logger := zap.NewNop()
	metrics := ports.NoopMetrics{}
	tracer := observability.NewTracer("memo-test")

	f.reservations = NewReservationManager(f.store, f.policy, f.publisher, metrics, f.clock, logger)
	f.contents = NewContentStore(f.store, f.blobs, nil, f.policy, metrics, logger)
	f.drafts = NewDraftService(f.store, f.reservations, f.contents, f.policy, f.publisher, metrics, tracer, f.clock, logger)
	f.memos = NewMemoService(f.store, graph, f.drafts, f.reservations, f.contents, f.policy, f.publisher, metrics, tracer, f.clock, logger)
	return f
}

func (f *fixture) createMemo(userID, title, body string) *entities.Memo {
	f.t.Helper()
	created, err := f.memos.CreateMemo(f.ctx, "point-1", userID, title, body, "", false)
	require.NoError(f.t, err)
	return created.Memo
}

func (f *fixture) write(memoID valueobjects.MemoID, userID, body string) *entities.Draft {
	f.t.Helper()
	written, err := f.drafts.UpdateDraft(f.ctx, memoID, userID, body, "", false)
	require.NoError(f.t, err)
	return written.Draft
}

func (f *fixture) revisions(memoID valueobjects.MemoID) []*entities.Revision {
	f.t.Helper()
	revs, err := f.store.ListRevisions(f.ctx, memoID, ports.RevisionCursor{}, 1000)
	require.NoError(f.t, err)
	return revs
}

func (f *fixture) body(memoID valueobjects.MemoID) string {
	f.t.Helper()
	view, err := f.memos.GetMemo(f.ctx, memoID, nil)
	require.NoError(f.t, err)
	return view.Body
}

func (f *fixture) payload(rev *entities.Revision) string {
	f.t.Helper()
	data, err := f.contents.RevisionPayload(f.ctx, rev)
	require.NoError(f.t, err)
	return string(data)
}

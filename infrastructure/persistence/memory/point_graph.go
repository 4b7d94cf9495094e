package memory

import (
	"context"
	"sync"

	"path-backend/application/ports"
	"path-backend/domain/core/valueobjects"
	pkgerrors "path-backend/pkg/errors"
)

// PointGraph is an in-memory point membership registry
type PointGraph struct {
	mu     sync.RWMutex
	points map[string]map[string]struct{}
}

var _ ports.PointGraph = (*PointGraph)(nil)

// NewPointGraph creates a graph knowing the given points
func NewPointGraph(pointIDs ...string) *PointGraph {
	g := &PointGraph{points: make(map[string]map[string]struct{})}
	for _, id := range pointIDs {
		g.AddPoint(id)
	}
	return g
}

// AddPoint registers a point
func (g *PointGraph) AddPoint(pointID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.points[pointID]; !ok {
		g.points[pointID] = make(map[string]struct{})
	}
}

func (g *PointGraph) PointExists(ctx context.Context, pointID string) (bool, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	_, ok := g.points[pointID]
	return ok, nil
}

func (g *PointGraph) AddMemo(ctx context.Context, pointID string, memoID valueobjects.MemoID) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	memos, ok := g.points[pointID]
	if !ok {
		return pkgerrors.NewConstraintViolation(pkgerrors.ConstraintMemoPointFK, pointID, nil)
	}
	memos[memoID.String()] = struct{}{}
	return nil
}

func (g *PointGraph) RemoveMemo(ctx context.Context, pointID string, memoID valueobjects.MemoID) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if memos, ok := g.points[pointID]; ok {
		delete(memos, memoID.String())
	}
	return nil
}

func (g *PointGraph) CountMemos(ctx context.Context, pointID string) (int, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return len(g.points[pointID]), nil
}

// HasMemo reports whether memoID is attached to pointID
func (g *PointGraph) HasMemo(pointID string, memoID valueobjects.MemoID) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	_, ok := g.points[pointID][memoID.String()]
	return ok
}

package services

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"path-backend/domain/config"
	"path-backend/domain/core/entities"
	"path-backend/domain/core/valueobjects"
)

func TestSnapshotPolicy_Decide(t *testing.T) {
	policy := NewSnapshotPolicy(config.DefaultMemoPolicy())
	t0 := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	memoID := valueobjects.NewMemoID()

	draft := entities.NewDraft(memoID, "user-1", valueobjects.NewBody("hello there"), t0)

	tests := []struct {
		name   string
		draft  *entities.Draft
		user   string
		next   string
		force  bool
		now    time.Time
		reason FreezeReason
	}{
		{"no draft", nil, "user-1", "anything", false, t0, FreezeNone},
		{"same editor within ttl", draft, "user-1", "hello there!", false, t0.Add(time.Hour), FreezeNone},
		{"forced", draft, "user-1", "hello there!", true, t0, FreezeForced},
		{"editor changed", draft, "user-2", "hello there!", false, t0, FreezeEditorChanged},
		{"ttl exceeded", draft, "user-1", "hello there!", false, t0.Add(73 * time.Hour), FreezeExpired},
		{"exactly at ttl", draft, "user-1", "hello there!", false, t0.Add(72 * time.Hour), FreezeNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := policy.Decide(tt.draft, tt.user, valueobjects.NewBody(tt.next), tt.force, tt.now)
			assert.Equal(t, tt.reason, got)
		})
	}
}

func TestSnapshotPolicy_ContentLossGuard(t *testing.T) {
	policy := NewSnapshotPolicy(config.DefaultMemoPolicy())
	t0 := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	long := strings.Repeat("a", 3000)
	draft := entities.NewDraft(valueobjects.NewMemoID(), "user-1", valueobjects.NewBody(long), t0)

	t.Run("ninety percent shorter forces a freeze", func(t *testing.T) {
		next := valueobjects.NewBody(strings.Repeat("a", 300))
		assert.Equal(t, FreezeContentLoss, policy.Decide(draft, "user-1", next, false, t0.Add(time.Minute)))
	})

	t.Run("half shorter is an ordinary edit", func(t *testing.T) {
		next := valueobjects.NewBody(strings.Repeat("a", 1500))
		assert.Equal(t, FreezeNone, policy.Decide(draft, "user-1", next, false, t0.Add(time.Minute)))
	})

	t.Run("short drafts are never guarded", func(t *testing.T) {
		small := entities.NewDraft(valueobjects.NewMemoID(), "user-1", valueobjects.NewBody(strings.Repeat("b", 2000)), t0)
		assert.Equal(t, FreezeNone, policy.Decide(small, "user-1", valueobjects.NewBody(""), false, t0))
	})
}

func TestSnapshotPolicy_Outcome(t *testing.T) {
	policy := NewSnapshotPolicy(nil)
	now := time.Now()
	memoID := valueobjects.NewMemoID()

	assert.Equal(t, OutcomeDiscard, policy.Outcome(entities.NewDraft(memoID, "u", valueobjects.NewBody("   \n"), now), nil))
	assert.Equal(t, OutcomeDuplicate, policy.Outcome(entities.NewDraft(memoID, "u", valueobjects.NewBody("hello"), now), []byte("hello")))
	assert.Equal(t, OutcomeRevision, policy.Outcome(entities.NewDraft(memoID, "u", valueobjects.NewBody("hello "), now), []byte("hello")))
	assert.Equal(t, OutcomeRevision, policy.Outcome(entities.NewDraft(memoID, "u", valueobjects.NewBody("hello"), now), nil))
}

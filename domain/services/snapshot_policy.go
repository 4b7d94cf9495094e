package services

import (
	"time"

	"path-backend/domain/config"
	"path-backend/domain/core/entities"
	"path-backend/domain/core/valueobjects"
)

// FreezeReason explains why a draft write freezes the live draft
type FreezeReason string

const (
	FreezeNone          FreezeReason = ""
	FreezeForced        FreezeReason = "forced"
	FreezeEditorChanged FreezeReason = "editor_changed"
	FreezeExpired       FreezeReason = "draft_expired"
	FreezeContentLoss   FreezeReason = "content_loss"
)

// FreezeOutcome describes what a freeze does with the old draft
type FreezeOutcome string

const (
	// OutcomeRevision creates a new revision from the old draft
	OutcomeRevision FreezeOutcome = "revision"
	// OutcomeDiscard drops an empty draft without a revision
	OutcomeDiscard FreezeOutcome = "discard"
	// OutcomeDuplicate drops a draft equal to the latest revision content
	OutcomeDuplicate FreezeOutcome = "duplicate"
)

// SnapshotPolicy decides when a live draft is frozen into a revision.
// It holds no state beyond the policy thresholds.
type SnapshotPolicy struct {
	policy *config.MemoPolicy
}

// NewSnapshotPolicy creates a SnapshotPolicy
func NewSnapshotPolicy(policy *config.MemoPolicy) *SnapshotPolicy {
	if policy == nil {
		policy = config.DefaultMemoPolicy()
	}
	return &SnapshotPolicy{policy: policy}
}

// Decide returns the reason the current draft must be frozen before userID
// writes next, or FreezeNone when the draft can be updated in place.
func (p *SnapshotPolicy) Decide(current *entities.Draft, userID string, next valueobjects.Body, force bool, now time.Time) FreezeReason {
	if current == nil {
		return FreezeNone
	}
	switch {
	case force:
		return FreezeForced
	case current.EditorID() != userID:
		return FreezeEditorChanged
	case current.Age(now) > p.policy.DraftTTL:
		return FreezeExpired
	case p.IsContentLoss(current.Body(), next):
		return FreezeContentLoss
	}
	return FreezeNone
}

// IsContentLoss reports whether replacing old with next looks like an
// accidental bulk deletion
func (p *SnapshotPolicy) IsContentLoss(old, next valueobjects.Body) bool {
	return old.LosesMostOf(next, p.policy.DeletionGuardMinLength, p.policy.DeletionGuardRatio)
}

// Outcome decides what freezing draft produces given the latest revision
// content. latest is nil when the memo has no revision yet.
func (p *SnapshotPolicy) Outcome(draft *entities.Draft, latest []byte) FreezeOutcome {
	if draft.Body().IsBlank() {
		return OutcomeDiscard
	}
	if latest != nil && string(latest) == draft.Body().String() {
		return OutcomeDuplicate
	}
	return OutcomeRevision
}

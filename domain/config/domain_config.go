package config

import (
	"fmt"
	"time"
)

// MemoPolicy holds the business rules of the draft/reservation/revision engine.
// It is built once at startup and passed to the services that need it.
type MemoPolicy struct {
	// Reservation constraints
	ReservationTTL time.Duration

	// Draft constraints
	DraftTTL      time.Duration
	MinBodyLength int

	// Content-loss guard: a draft longer than DeletionGuardMinLength that
	// shrinks by more than DeletionGuardRatio is frozen before being replaced.
	DeletionGuardMinLength int
	DeletionGuardRatio     float64

	// Point constraints
	MaxMemosPerPoint int

	// Content storage
	CompressionThreshold int

	// Revision listing
	DefaultRevisionPageSize int
	MaxRevisionPageSize     int
}

// DefaultMemoPolicy returns the default memo policy
func DefaultMemoPolicy() *MemoPolicy {
	return &MemoPolicy{
		ReservationTTL: 15 * time.Minute,

		DraftTTL:      72 * time.Hour,
		MinBodyLength: 8,

		DeletionGuardMinLength: 2000,
		DeletionGuardRatio:     0.8,

		MaxMemosPerPoint: 15,

		CompressionThreshold: 64 * 1024,

		DefaultRevisionPageSize: 20,
		MaxRevisionPageSize:     100,
	}
}

// ProductionMemoPolicy returns production-specific policy
func ProductionMemoPolicy() *MemoPolicy {
	return DefaultMemoPolicy()
}

// DevelopmentMemoPolicy returns development-specific policy
func DevelopmentMemoPolicy() *MemoPolicy {
	policy := DefaultMemoPolicy()

	// Shorter windows make the freeze paths easy to exercise by hand
	policy.ReservationTTL = 5 * time.Minute
	policy.DraftTTL = 12 * time.Hour
	policy.MaxMemosPerPoint = 50

	return policy
}

// LoadMemoPolicy loads the memo policy based on environment
func LoadMemoPolicy(environment string) *MemoPolicy {
	switch environment {
	case "production":
		return ProductionMemoPolicy()
	case "development":
		return DevelopmentMemoPolicy()
	default:
		return DefaultMemoPolicy()
	}
}

// Validate checks if the policy is usable
func (p *MemoPolicy) Validate() error {
	if p.ReservationTTL <= 0 {
		return fmt.Errorf("reservation TTL must be positive, got %s", p.ReservationTTL)
	}
	if p.DraftTTL <= 0 {
		return fmt.Errorf("draft TTL must be positive, got %s", p.DraftTTL)
	}
	if p.MinBodyLength < 0 {
		return fmt.Errorf("minimum body length cannot be negative")
	}
	if p.DeletionGuardRatio <= 0 || p.DeletionGuardRatio >= 1 {
		return fmt.Errorf("deletion guard ratio must be in (0, 1), got %v", p.DeletionGuardRatio)
	}
	if p.MaxMemosPerPoint <= 0 {
		return fmt.Errorf("max memos per point must be positive")
	}
	if p.DefaultRevisionPageSize <= 0 || p.DefaultRevisionPageSize > p.MaxRevisionPageSize {
		return fmt.Errorf("revision page size must be in (0, %d]", p.MaxRevisionPageSize)
	}
	return nil
}

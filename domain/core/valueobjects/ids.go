package valueobjects

import (
	"errors"

	"github.com/google/uuid"
)

// MemoID is a value object representing a unique memo identifier
type MemoID struct {
	value string
}

// NewMemoID creates a new random MemoID
func NewMemoID() MemoID {
	return MemoID{value: uuid.New().String()}
}

// ParseMemoID creates a MemoID from an existing string
func ParseMemoID(id string) (MemoID, error) {
	if err := validateUUID("memo", id); err != nil {
		return MemoID{}, err
	}
	return MemoID{value: id}, nil
}

// String returns the string representation of the MemoID
func (id MemoID) String() string { return id.value }

// IsZero checks if the MemoID is the zero value
func (id MemoID) IsZero() bool { return id.value == "" }

// MarshalText implements encoding.TextMarshaler
func (id MemoID) MarshalText() ([]byte, error) { return []byte(id.value), nil }

// UnmarshalText implements encoding.TextUnmarshaler
func (id *MemoID) UnmarshalText(data []byte) error {
	id.value = string(data)
	return nil
}

// RevisionID identifies an immutable revision
type RevisionID struct {
	value string
}

// NewRevisionID creates a new random RevisionID
func NewRevisionID() RevisionID {
	return RevisionID{value: uuid.New().String()}
}

// ParseRevisionID creates a RevisionID from an existing string
func ParseRevisionID(id string) (RevisionID, error) {
	if err := validateUUID("revision", id); err != nil {
		return RevisionID{}, err
	}
	return RevisionID{value: id}, nil
}

func (id RevisionID) String() string { return id.value }
func (id RevisionID) IsZero() bool   { return id.value == "" }

// MarshalText implements encoding.TextMarshaler
func (id RevisionID) MarshalText() ([]byte, error) { return []byte(id.value), nil }

// UnmarshalText implements encoding.TextUnmarshaler
func (id *RevisionID) UnmarshalText(data []byte) error {
	id.value = string(data)
	return nil
}

// ContentID identifies a stored revision payload. Several revisions may share one.
type ContentID struct {
	value string
}

// NewContentID creates a new random ContentID
func NewContentID() ContentID {
	return ContentID{value: uuid.New().String()}
}

// ParseContentID creates a ContentID from an existing string
func ParseContentID(id string) (ContentID, error) {
	if err := validateUUID("content", id); err != nil {
		return ContentID{}, err
	}
	return ContentID{value: id}, nil
}

func (id ContentID) String() string { return id.value }
func (id ContentID) IsZero() bool   { return id.value == "" }

// MarshalText implements encoding.TextMarshaler
func (id ContentID) MarshalText() ([]byte, error) { return []byte(id.value), nil }

// UnmarshalText implements encoding.TextUnmarshaler
func (id *ContentID) UnmarshalText(data []byte) error {
	id.value = string(data)
	return nil
}

func validateUUID(kind, id string) error {
	if id == "" {
		return errors.New(kind + " ID cannot be empty")
	}
	if _, err := uuid.Parse(id); err != nil {
		return errors.New(kind + " ID must be a valid UUID")
	}
	return nil
}

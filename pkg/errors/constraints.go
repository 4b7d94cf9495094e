package errors

import (
	"errors"
	"fmt"
)

// Constraint names reported by the storage backends. Every backend reports the
// same names so the translation below is backend independent.
const (
	ConstraintMemoPK            = "memo_pkey"
	ConstraintMemoExists        = "memo_pkey_exists"
	ConstraintMemoPointFK       = "memo_point_fkey"
	ConstraintMemoPointNotNull  = "memo_point_not_null"
	ConstraintMemoTitleNotNull  = "memo_title_not_null"
	ConstraintMemoTitleUnique   = "memo_point_title_key"
	ConstraintDraftPK           = "memo_draft_pkey"
	ConstraintDraftVersion      = "memo_draft_updated_ts_check"
	ConstraintDraftMemoFK       = "memo_draft_memo_id_fkey"
	ConstraintReservePK         = "memo_reserve_pkey"
	ConstraintReserveCode       = "memo_reserve_code_check"
	ConstraintReserveMemoFK     = "memo_reserve_memo_id_fkey"
	ConstraintRevisionPK        = "memo_revision_pkey"
	ConstraintRevisionMemoFK    = "memo_revision_memo_id_fkey"
	ConstraintRevisionContentFK = "memo_revision_content_id_fkey"
	ConstraintLatestRevision    = "memo_latest_revision_id_check"
	ConstraintPointMemoLimit    = "point_memo_limit_check"
	ConstraintContentPK         = "revision_content_pkey"
	ConstraintContributorPK     = "memo_contributor_pkey"
	ConstraintContributorMemoFK = "memo_contributor_memo_id_fkey"
)

// ConstraintViolation is returned by storage when a write is rejected by a
// named constraint. Key identifies the offending row (memo id, point id, ...).
type ConstraintViolation struct {
	Constraint string
	Key        string
	Err        error
}

func (v *ConstraintViolation) Error() string {
	if v.Err != nil {
		return fmt.Sprintf("constraint %s violated for %s: %v", v.Constraint, v.Key, v.Err)
	}
	return fmt.Sprintf("constraint %s violated for %s", v.Constraint, v.Key)
}

func (v *ConstraintViolation) Unwrap() error {
	return v.Err
}

// NewConstraintViolation creates a ConstraintViolation
func NewConstraintViolation(constraint, key string, cause error) *ConstraintViolation {
	return &ConstraintViolation{Constraint: constraint, Key: key, Err: cause}
}

// ConstraintTable maps constraint names to the domain error they mean.
var ConstraintTable = map[string]func(key string) *AppError{
	ConstraintMemoExists:       MemoNotFound,
	ConstraintMemoPointFK:      PointNotFound,
	ConstraintMemoPointNotNull: func(string) *AppError { return NullInput("memo_point") },
	ConstraintMemoTitleNotNull: func(string) *AppError { return NullInput("memo_title") },
	ConstraintMemoTitleUnique: func(key string) *AppError {
		return NewConflictError("the provided title already exists for the point - title: " + key).WithCode(CodeDuplicateTitle)
	},
	ConstraintDraftPK:           draftModified,
	ConstraintDraftVersion:      draftModified,
	ConstraintDraftMemoFK:       MemoNotFound,
	ConstraintReservePK:         reservationLost,
	ConstraintReserveCode:       reservationLost,
	ConstraintReserveMemoFK:     MemoNotFound,
	ConstraintRevisionMemoFK:    MemoNotFound,
	ConstraintRevisionContentFK: ContentNotFound,
	ConstraintLatestRevision:    draftModified,
	ConstraintPointMemoLimit: func(key string) *AppError {
		return NewConflictError("the point has reached its maximum number of memos - point: " + key).WithCode(CodePointMaxMemosReached)
	},
	ConstraintContributorMemoFK: MemoNotFound,
}

func draftModified(key string) *AppError {
	return NewConflictError("the draft was modified concurrently - memo: " + key).WithCode(CodeDraftModified)
}

func reservationLost(key string) *AppError {
	return NewConflictError("the memo reservation changed concurrently - memo: " + key).WithCode(CodeMemoReserved)
}

// Translate converts a storage error into a domain error. AppErrors pass
// through, known constraint violations are mapped through ConstraintTable and
// everything else becomes an opaque internal error.
func Translate(operation string, err error) error {
	if err == nil {
		return nil
	}
	if appErr := GetAppError(err); appErr != nil {
		return appErr
	}

	var violation *ConstraintViolation
	if errors.As(err, &violation) {
		if mapper, ok := ConstraintTable[violation.Constraint]; ok {
			return mapper(violation.Key).WithCause(err)
		}
		return NewInternalError(fmt.Sprintf("unexpected constraint violation during %s", operation)).
			WithCause(err).
			WithDetail("constraint", violation.Constraint)
	}

	return NewDatabaseError(operation, err)
}

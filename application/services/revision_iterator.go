package services

import (
	"context"

	"path-backend/application/ports"
	"path-backend/domain/core/entities"
	"path-backend/domain/core/valueobjects"
	pkgerrors "path-backend/pkg/errors"
)

// RevisionIterator walks a memo's revisions newest first. Pages are pulled
// from storage only when the buffered ones are used up; each page resumes
// below the sequence of the last revision returned.
type RevisionIterator struct {
	revisions ports.RevisionRepository
	memoID    valueobjects.MemoID
	cursor    ports.RevisionCursor
	remaining int
	pageSize  int
	buffer    []*entities.Revision
	exhausted bool
}

func newRevisionIterator(revisions ports.RevisionRepository, memoID valueobjects.MemoID, cursor ports.RevisionCursor, limit, pageSize int) *RevisionIterator {
	if pageSize > limit {
		pageSize = limit
	}
	return &RevisionIterator{
		revisions: revisions,
		memoID:    memoID,
		cursor:    cursor,
		remaining: limit,
		pageSize:  pageSize,
	}
}

// Next returns the next revision, or nil once the sequence is finished
func (it *RevisionIterator) Next(ctx context.Context) (*entities.Revision, error) {
	if it.remaining <= 0 {
		return nil, nil
	}
	if len(it.buffer) == 0 {
		if it.exhausted {
			return nil, nil
		}
		if err := it.fetch(ctx); err != nil {
			return nil, err
		}
		if len(it.buffer) == 0 {
			return nil, nil
		}
	}

	next := it.buffer[0]
	it.buffer = it.buffer[1:]
	it.remaining--
	return next, nil
}

// Collect drains the iterator into a slice
func (it *RevisionIterator) Collect(ctx context.Context) ([]*entities.Revision, error) {
	var out []*entities.Revision
	for {
		rev, err := it.Next(ctx)
		if err != nil {
			return nil, err
		}
		if rev == nil {
			return out, nil
		}
		out = append(out, rev)
	}
}

func (it *RevisionIterator) fetch(ctx context.Context) error {
	size := it.pageSize
	if size > it.remaining {
		size = it.remaining
	}

	page, err := it.revisions.ListRevisions(ctx, it.memoID, it.cursor, size)
	if err != nil {
		return pkgerrors.Translate("list revisions", err)
	}
	if len(page) < size {
		it.exhausted = true
	}
	if len(page) > 0 {
		it.cursor.BelowSequence = page[len(page)-1].Sequence()
	}
	it.buffer = page
	return nil
}

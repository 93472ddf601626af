package graph

import (
	"context"

	"github.com/pkg/errors"
)

var (
	ErrNotFound   = errors.New("record not found")
	ErrUnfiltered = errors.New("refusing to update or delete without a filter")
)

// Store is the relational store the engine walks and mutates. Every write is
// an independent statement; callers never rely on a surrounding transaction.
type Store interface {
	// Find returns ErrNotFound when no row has the given id.
	Find(ctx context.Context, kind Kind, id int64) (Record, error)
	// Select returns the rows matching every condition, ordered by id.
	Select(ctx context.Context, kind Kind, conds ...Cond) ([]Record, error)
	// Insert stores rec and returns it with its assigned id.
	Insert(ctx context.Context, rec Record) (Record, error)
	// Update sets columns on every matching row and returns the count.
	Update(ctx context.Context, kind Kind, set Fields, conds ...Cond) (int64, error)
	// Delete removes every matching row and returns the count.
	Delete(ctx context.Context, kind Kind, conds ...Cond) (int64, error)
}

// TreeDeleter is implemented by stores that can remove a self-referencing
// tree (a row and all of its descendants) in one statement.
type TreeDeleter interface {
	DeleteTree(ctx context.Context, kind Kind, parentField string, rootID int64) (int64, error)
}

// IDs returns the primary keys of the records.
func IDs(recs []Record) []int64 {
	ids := make([]int64, 0, len(recs))
	for _, r := range recs {
		ids = append(ids, r.ID)
	}
	return ids
}

// Associated loads the records on the other end of an association of rec.
func Associated(ctx context.Context, s Store, rec Record, a Association) ([]Record, error) {
	switch a.Type {
	case HasMany, HasOne:
		conds := []Cond{Eq(a.ForeignKey, rec.ID)}
		if a.TypeField != "" {
			conds = append(conds, Eq(a.TypeField, string(rec.Kind)))
		}
		recs, err := s.Select(ctx, a.Kind, conds...)
		if err != nil {
			return nil, errors.Wrapf(err, "loading %s.%s", rec.Kind, a.Name)
		}
		if a.Type == HasOne && len(recs) > 1 {
			recs = recs[:1]
		}
		return recs, nil
	case BelongsTo:
		id, ok := rec.Int(a.ForeignKey)
		if !ok {
			return nil, nil
		}
		kind := a.Kind
		if a.TypeField != "" {
			kind = Kind(rec.String(a.TypeField))
		}
		related, err := s.Find(ctx, kind, id)
		if errors.Cause(err) == ErrNotFound {
			return nil, nil
		}
		if err != nil {
			return nil, errors.Wrapf(err, "loading %s.%s", rec.Kind, a.Name)
		}
		return []Record{related}, nil
	}
	return nil, errors.Errorf("unknown association type %v", a.Type)
}

package graph

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// SkipFunc reports whether rec is outside the deletion scope and must be left
// alone even though it is reachable.
type SkipFunc func(ctx context.Context, rec Record) (bool, error)

// PruneFunc runs bulk side effects before the children of rec are walked:
// deleting high-cardinality rows directly or nullifying blocking keys.
type PruneFunc func(ctx context.Context, s Store, rec Record) error

// Policy tunes a deletion walk per kind.
type Policy struct {
	// Exclude lists association names never traversed, per kind.
	Exclude map[Kind][]string
	// Ignore lists kinds that are never deleted.
	Ignore map[Kind]bool
	Skip   map[Kind]SkipFunc
	Prune  map[Kind]PruneFunc
}

func (p Policy) excluded(k Kind, assoc string) bool {
	for _, name := range p.Exclude[k] {
		if name == assoc {
			return true
		}
	}
	return false
}

// Deleter walks the schema depth-first from an entity and removes everything
// it owns.
type Deleter struct {
	store  Store
	schema *Schema
	policy Policy
	log    *zap.Logger

	timings map[string]time.Duration
}

func NewDeleter(store Store, schema *Schema, policy Policy, log *zap.Logger) *Deleter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Deleter{
		store:   store,
		schema:  schema,
		policy:  policy,
		log:     log,
		timings: make(map[string]time.Duration),
	}
}

func (d *Deleter) Store() Store    { return d.store }
func (d *Deleter) Schema() *Schema { return d.schema }

func (d *Deleter) skip(ctx context.Context, rec Record) (bool, error) {
	if d.policy.Ignore[rec.Kind] {
		return true, nil
	}
	if fn, ok := d.policy.Skip[rec.Kind]; ok {
		return fn(ctx, rec)
	}
	return false, nil
}

// RecursiveDelete removes rec and its whole reachable sub-graph. It returns
// true only when rec is gone, was already removed, or is out of scope.
// Belongs-to targets are queued on w.Parents instead of being removed.
// Failures are logged and reported as false; they never abort siblings.
func (d *Deleter) RecursiveDelete(ctx context.Context, w *Walk, rec Record) bool {
	ref := rec.Ref()
	if w.Visiting(ref) {
		return false
	}
	if w.Processed(ref) {
		return true
	}

	skip, err := d.skip(ctx, rec)
	if err != nil {
		d.log.Error("checking exclusion", zap.Stringer("entity", ref), zap.Error(err))
		return false
	}
	if skip {
		return true
	}

	model, ok := d.schema.Model(rec.Kind)
	if !ok {
		d.log.Error("unknown kind", zap.Stringer("entity", ref))
		w.Failed++
		return false
	}

	w.push(ref)
	if fn, ok := d.policy.Prune[rec.Kind]; ok {
		if err := fn(ctx, d.store, rec); err != nil {
			d.log.Error("pruning", zap.Stringer("entity", ref), zap.Error(err))
			w.pop()
			w.Failed++
			return false
		}
	}

	success := true
	for _, a := range model.Children() {
		if d.policy.excluded(rec.Kind, a.Name) {
			continue
		}
		start := time.Now()
		related, err := Associated(ctx, d.store, rec, a)
		if err != nil {
			d.log.Error("loading children", zap.Stringer("entity", ref), zap.String("association", a.Name), zap.Error(err))
			success = false
		}
		for _, child := range related {
			if !d.RecursiveDelete(ctx, w, child) {
				success = false
			}
		}
		d.track(rec.Kind, a.Name, time.Since(start))
	}

	for _, a := range model.Parents() {
		if d.policy.excluded(rec.Kind, a.Name) {
			continue
		}
		related, err := Associated(ctx, d.store, rec, a)
		if err != nil {
			d.log.Error("loading parents", zap.Stringer("entity", ref), zap.String("association", a.Name), zap.Error(err))
			success = false
			continue
		}
		for _, parent := range related {
			pref := parent.Ref()
			if w.Visiting(pref) || w.Processed(pref) {
				continue
			}
			w.Parents.Push(pref)
		}
	}
	w.pop()

	if !success {
		return false
	}
	if err := Destroy(ctx, d.store, model, rec); err != nil {
		d.log.Error("failed to delete",
			zap.String("kind", string(rec.Kind)),
			zap.Int64("id", rec.ID),
			zap.Error(err))
		w.Failed++
		return false
	}
	d.log.Debug("deleted", zap.Stringer("entity", ref), zap.Stringer("strategy", model.Deletion))
	w.memo.Add(ref)
	w.Removed++
	return true
}

// DeleteRef re-reads ref and removes it. A row that is already gone counts as
// removed.
func (d *Deleter) DeleteRef(ctx context.Context, w *Walk, ref Ref) bool {
	if w.Processed(ref) {
		return true
	}
	rec, err := d.store.Find(ctx, ref.Kind, ref.ID)
	if errors.Cause(err) == ErrNotFound {
		return true
	}
	if err != nil {
		d.log.Error("reloading", zap.Stringer("entity", ref), zap.Error(err))
		return false
	}
	return d.RecursiveDelete(ctx, w, rec)
}

// DrainParents removes every queued parent object, including those queued
// while draining. It reports whether all of them are gone; the others are
// collected in w.Left.
func (d *Deleter) DrainParents(ctx context.Context, w *Walk) bool {
	for {
		ref, ok := w.Parents.Pop()
		if !ok {
			return len(w.Left) == 0
		}
		if !d.DeleteRef(ctx, w, ref) {
			w.Left = append(w.Left, ref)
		}
	}
}

func (d *Deleter) track(k Kind, assoc string, elapsed time.Duration) {
	d.timings[string(k)+"."+assoc] += elapsed
}

// Timing is the accumulated time spent walking one association.
type Timing struct {
	Association string
	Elapsed     time.Duration
}

// Timings returns the accumulated time per kind.association, slowest first.
func (d *Deleter) Timings() []Timing {
	out := make([]Timing, 0, len(d.timings))
	for k, v := range d.timings {
		out = append(out, Timing{Association: k, Elapsed: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Elapsed != out[j].Elapsed {
			return out[i].Elapsed > out[j].Elapsed
		}
		return out[i].Association < out[j].Association
	})
	return out
}

func (d *Deleter) LogTimings() {
	for _, t := range d.Timings() {
		d.log.Info("association timing", zap.String("association", t.Association), zap.Duration("elapsed", t.Elapsed))
	}
}

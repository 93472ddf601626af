package graph

import (
	"context"

	"github.com/pkg/errors"
)

// ErrNoDeletion is returned when a kind's strategy offers no usable capability.
var ErrNoDeletion = errors.New("no deletion capability")

// Deletion is a per-kind deletion strategy. A strategy must implement at least
// one of SoftDeleter, HardDeleter or RawDeleter.
type Deletion interface {
	String() string
}

// SoftDeleter flips a status column so application cascades run.
type SoftDeleter interface {
	SoftDelete(ctx context.Context, s Store, rec Record) error
}

// HardDeleter permanently removes the row.
type HardDeleter interface {
	HardDelete(ctx context.Context, s Store, rec Record) error
}

// RawDeleter removes the row with a specialized statement, bypassing the
// soft/hard sequence.
type RawDeleter interface {
	RawDelete(ctx context.Context, s Store, rec Record) error
}

func hasCapability(d Deletion) bool {
	if d == nil {
		return false
	}
	_, soft := d.(SoftDeleter)
	_, hard := d.(HardDeleter)
	_, raw := d.(RawDeleter)
	return soft || hard || raw
}

// Destroy removes rec following the capabilities of its strategy: raw first,
// otherwise soft then hard.
func Destroy(ctx context.Context, s Store, m *Model, rec Record) error {
	if raw, ok := m.Deletion.(RawDeleter); ok {
		return raw.RawDelete(ctx, s, rec)
	}
	soft, canSoft := m.Deletion.(SoftDeleter)
	hard, canHard := m.Deletion.(HardDeleter)
	if canSoft {
		if err := soft.SoftDelete(ctx, s, rec); err != nil {
			return errors.Wrap(err, "soft deleting")
		}
	}
	if canHard {
		return hard.HardDelete(ctx, s, rec)
	}
	if canSoft {
		return nil
	}
	return errors.Wrapf(ErrNoDeletion, "%s", rec.Kind)
}

// Cascade names rows of another kind that follow the owner's soft delete.
type Cascade struct {
	Kind       Kind
	ForeignKey string
}

// Workflow soft-deletes by setting a workflow column, cascading the flip to
// dependent kinds, then hard-deletes the row.
type Workflow struct {
	Field        string
	DeletedState string
	Cascades     []Cascade
}

var (
	_ SoftDeleter = Workflow{}
	_ HardDeleter = Workflow{}
)

func (w Workflow) String() string { return "workflow" }

func (w Workflow) field() string {
	if w.Field == "" {
		return "workflow_state"
	}
	return w.Field
}

func (w Workflow) state() string {
	if w.DeletedState == "" {
		return "deleted"
	}
	return w.DeletedState
}

func (w Workflow) SoftDelete(ctx context.Context, s Store, rec Record) error {
	return w.SoftDeleteAll(ctx, s, rec.Kind, []int64{rec.ID})
}

// SoftDeleteAll flips every listed row of kind, and their cascades, in bulk.
func (w Workflow) SoftDeleteAll(ctx context.Context, s Store, kind Kind, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	set := Fields{w.field(): w.state()}
	if _, err := s.Update(ctx, kind, set, In("id", ids), NotEq(w.field(), w.state())); err != nil {
		return errors.Wrapf(err, "flipping %s to %s", kind, w.state())
	}
	for _, c := range w.Cascades {
		if _, err := s.Update(ctx, c.Kind, set, In(c.ForeignKey, ids), NotEq(w.field(), w.state())); err != nil {
			return errors.Wrapf(err, "cascading %s soft delete to %s", kind, c.Kind)
		}
	}
	return nil
}

func (w Workflow) HardDelete(ctx context.Context, s Store, rec Record) error {
	return deleteRow(ctx, s, rec)
}

// Permanent rows have no status column and are only ever hard-deleted.
type Permanent struct{}

var _ HardDeleter = Permanent{}

func (Permanent) String() string { return "permanent" }

func (Permanent) HardDelete(ctx context.Context, s Store, rec Record) error {
	return deleteRow(ctx, s, rec)
}

// Direct removes a single row with one statement.
type Direct struct{}

var _ RawDeleter = Direct{}

func (Direct) String() string { return "direct" }

func (Direct) RawDelete(ctx context.Context, s Store, rec Record) error {
	return deleteRow(ctx, s, rec)
}

// AttachmentRows removes dependent thumbnail rows and then the attachment.
type AttachmentRows struct {
	Thumbnails Kind
	ParentKey  string
}

var _ RawDeleter = AttachmentRows{}

func (AttachmentRows) String() string { return "attachment rows" }

func (a AttachmentRows) RawDelete(ctx context.Context, s Store, rec Record) error {
	if _, err := s.Delete(ctx, a.Thumbnails, Eq(a.ParentKey, rec.ID)); err != nil {
		return errors.Wrap(err, "deleting thumbnails")
	}
	return deleteRow(ctx, s, rec)
}

// FolderTree removes a folder together with all of its sub-folders. Stores
// implementing TreeDeleter do it in one statement; otherwise the tree is
// collected and deleted leaves first.
type FolderTree struct {
	ParentKey string
}

var _ RawDeleter = FolderTree{}

func (FolderTree) String() string { return "folder tree" }

func (f FolderTree) RawDelete(ctx context.Context, s Store, rec Record) error {
	if td, ok := s.(TreeDeleter); ok {
		if _, err := td.DeleteTree(ctx, rec.Kind, f.ParentKey, rec.ID); err != nil {
			return errors.Wrap(err, "deleting folder tree")
		}
		return nil
	}

	seen := map[int64]bool{rec.ID: true}
	levels := [][]int64{{rec.ID}}
	for {
		children, err := s.Select(ctx, rec.Kind, In(f.ParentKey, levels[len(levels)-1]))
		if err != nil {
			return errors.Wrap(err, "collecting folder tree")
		}
		var next []int64
		for _, c := range children {
			if !seen[c.ID] {
				seen[c.ID] = true
				next = append(next, c.ID)
			}
		}
		if len(next) == 0 {
			break
		}
		levels = append(levels, next)
	}
	for i := len(levels) - 1; i >= 0; i-- {
		if _, err := s.Delete(ctx, rec.Kind, In("id", levels[i])); err != nil {
			return errors.Wrap(err, "deleting folder tree")
		}
	}
	return nil
}

func deleteRow(ctx context.Context, s Store, rec Record) error {
	if _, err := s.Delete(ctx, rec.Kind, Eq("id", rec.ID)); err != nil {
		return errors.Wrapf(err, "deleting %s", rec.Ref())
	}
	return nil
}

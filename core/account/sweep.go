package account

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/HotChalk/canvas-lms-sub000/core/graph"
	"github.com/HotChalk/canvas-lms-sub000/core/lms"
)

// sweepKinds hold a polymorphic context but no foreign key to it, so rows can
// outlive the account or course they belong to.
var sweepKinds = []graph.Kind{
	lms.Message,
	lms.PageView,
	lms.AssetUserAccess,
	lms.ContentParticipationCount,
	lms.ContentMigration,
	lms.Group,
	lms.Attachment,
	lms.Folder,
}

// leftovers returns the rows of kind still pointing at a removed context.
func (rn *run) leftovers(ctx context.Context, kind graph.Kind) ([]graph.Record, error) {
	var out []graph.Record
	for ctxKind, ids := range map[graph.Kind][]int64{
		lms.Account: rn.scope.accountIDs(),
		lms.Course:  rn.scope.courseIDs(),
	} {
		recs, err := rn.store.Select(ctx, kind,
			graph.Eq(lms.ColContextType, string(ctxKind)),
			graph.In(lms.ColContextID, ids))
		if err != nil {
			return nil, errors.Wrapf(err, "loading %s left in %s contexts", kind, ctxKind)
		}
		out = append(out, recs...)
	}
	return out, nil
}

// sweep removes contextual rows left behind by the walk, repeating until
// none are found. Parents reached here are not drained.
func (rn *run) sweep(ctx context.Context) error {
	for pass := 1; pass <= rn.conf.MaxPasses; pass++ {
		w := graph.NewWalk(rn.memo)
		found, left := 0, 0
		for _, kind := range sweepKinds {
			recs, err := rn.leftovers(ctx, kind)
			if err != nil {
				return err
			}
			found += len(recs)
			for _, rec := range recs {
				if !rn.deleter.RecursiveDelete(ctx, w, rec) {
					left++
				}
			}
		}
		rn.log.Info("sweep pass finished",
			zap.Int("pass", pass),
			zap.Int("found", found),
			zap.Int("removed", w.Removed),
			zap.Int("left", left))
		if found == 0 || left == 0 {
			return nil
		}
		if w.Removed == 0 {
			return errors.Wrapf(ErrNoProgress, "sweeping (pass %d)", pass)
		}
	}
	return errors.Wrapf(ErrRetriesExhausted, "sweeping after %d passes", rn.conf.MaxPasses)
}

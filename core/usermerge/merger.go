// Package usermerge folds one user's records into another user.
package usermerge

import (
	"context"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"go.uber.org/zap"

	"github.com/HotChalk/canvas-lms-sub000/core"
	"github.com/HotChalk/canvas-lms-sub000/core/graph"
	"github.com/HotChalk/canvas-lms-sub000/core/lms"
	"github.com/HotChalk/canvas-lms-sub000/services/logger"
)

// relocation is a user foreign key re-pointed in bulk.
type relocation struct {
	Kind   graph.Kind
	Column string
}

// relocations lists every user-owned row moved as is. Channels, and the
// enrollments and progressions that collide, are resolved before.
var relocations = []relocation{
	{lms.Pseudonym, "user_id"},
	{lms.Enrollment, "user_id"},
	{lms.Enrollment, "associated_user_id"},
	{lms.AccountUser, "user_id"},
	{lms.Submission, "user_id"},
	{lms.QuizSubmission, "user_id"},
	{lms.SubmissionComment, "author_id"},
	{lms.DiscussionTopic, "user_id"},
	{lms.DiscussionEntry, "user_id"},
	{lms.CalendarEvent, "user_id"},
	{lms.ContextModuleProgression, "user_id"},
	{lms.GroupMembership, "user_id"},
	{lms.AssignmentOverrideStudent, "user_id"},
	{lms.Attachment, "user_id"},
	{lms.ContentMigration, "user_id"},
	{lms.PageView, "user_id"},
	{lms.AssetUserAccess, "user_id"},
	{lms.Message, "user_id"},
	{lms.ContentParticipationCount, "user_id"},
}

type Merger struct {
	store graph.Store
	log   *zap.Logger
}

func NewMerger(store graph.Store, log *zap.Logger) (*Merger, error) {
	if err := vala.BeginValidation().Validate(
		core.NotNil(store, "store"),
	).Check(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Merger{store: store, log: log}, nil
}

// MergeUsers moves everything fromID owns to targetID and deletes fromID.
// Merging a user into itself or into a missing user does nothing.
func (m *Merger) MergeUsers(ctx context.Context, fromID, targetID int64) error {
	log := logsvc.ForRun(m.log, logsvc.UserMerge).With(zap.Int64("from_user_id", fromID), zap.Int64("target_user_id", targetID))
	if fromID == targetID {
		log.Info("merging a user into itself, nothing to do")
		return nil
	}
	if _, err := m.store.Find(ctx, lms.User, targetID); err != nil {
		if errors.Cause(err) == graph.ErrNotFound {
			log.Info("target user not found, nothing to do")
			return nil
		}
		return errors.Wrapf(err, "loading user %d", targetID)
	}
	from, err := m.store.Find(ctx, lms.User, fromID)
	if err != nil {
		return errors.Wrapf(err, "loading user %d", fromID)
	}

	for _, step := range []struct {
		name string
		fn   func(context.Context, *zap.Logger, int64, int64) error
	}{
		{"communication channels", m.mergeChannels},
		{"enrollments", m.mergeEnrollments},
		{"module progressions", m.mergeProgressions},
		{"records", m.relocate},
	} {
		if err := step.fn(ctx, log, fromID, targetID); err != nil {
			log.Error("merge failed", zap.String("step", step.name), zap.Error(err))
			return errors.Wrapf(err, "merging %s", step.name)
		}
	}

	if err := (graph.Workflow{}).SoftDelete(ctx, m.store, from); err != nil {
		return errors.Wrapf(err, "deleting user %d", fromID)
	}
	log.Info("users merged")
	return nil
}

func (m *Merger) ownedBy(ctx context.Context, kind graph.Kind, userID int64) ([]graph.Record, error) {
	recs, err := m.store.Select(ctx, kind, graph.Eq("user_id", userID))
	if err != nil {
		return nil, errors.Wrapf(err, "loading %s of user %d", kind, userID)
	}
	return recs, nil
}

func (m *Merger) setState(ctx context.Context, kind graph.Kind, id int64, state string) error {
	_, err := m.store.Update(ctx, kind, graph.Fields{lms.ColWorkflow: state}, graph.Eq("id", id))
	return errors.Wrapf(err, "updating %s#%d", kind, id)
}

// mergeChannels keeps one channel per address. The less authoritative one is
// retired; on a tie the target's is kept.
func (m *Merger) mergeChannels(ctx context.Context, log *zap.Logger, fromID, targetID int64) error {
	fromRecs, err := m.ownedBy(ctx, lms.CommunicationChannel, fromID)
	if err != nil {
		return err
	}
	targetRecs, err := m.ownedBy(ctx, lms.CommunicationChannel, targetID)
	if err != nil {
		return err
	}
	targets := make([]lms.ChannelRow, 0, len(targetRecs))
	var position int64
	for _, rec := range targetRecs {
		row := lms.ChannelOf(rec)
		targets = append(targets, row)
		if row.Position.Valid && row.Position.Int64 > position {
			position = row.Position.Int64
		}
	}

	for _, rec := range fromRecs {
		fc := lms.ChannelOf(rec)
		var match *lms.ChannelRow
		for i := range targets {
			if targets[i].SameAddress(fc) {
				match = &targets[i]
				break
			}
		}

		switch {
		case match == nil:
			position++
			clone := rec.Clone()
			clone.ID = 0
			clone.Fields["user_id"] = targetID
			clone.Fields["position"] = position
			created, err := m.store.Insert(ctx, clone)
			if err != nil {
				return errors.Wrapf(err, "copying %s", rec.Ref())
			}
			targets = append(targets, lms.ChannelOf(created))
			log.Debug("copied channel", zap.Int64("channel_id", fc.ID), zap.Int64("copy_id", created.ID))
		case channelRank(fc.WorkflowState) < channelRank(match.WorkflowState):
			if err := m.setState(ctx, lms.CommunicationChannel, match.ID, lms.StateRetired); err != nil {
				return err
			}
			position++
			if _, err := m.store.Update(ctx, lms.CommunicationChannel,
				graph.Fields{"user_id": targetID, "position": position},
				graph.Eq("id", fc.ID)); err != nil {
				return errors.Wrapf(err, "moving %s", rec.Ref())
			}
			log.Debug("replaced channel", zap.Int64("channel_id", fc.ID), zap.Int64("retired_id", match.ID))
			match.WorkflowState = lms.StateRetired
		default:
			if fc.WorkflowState != lms.StateRetired {
				if err := m.setState(ctx, lms.CommunicationChannel, fc.ID, lms.StateRetired); err != nil {
					return err
				}
			}
			log.Debug("kept target channel", zap.Int64("channel_id", match.ID), zap.Int64("retired_id", fc.ID))
		}
	}
	return nil
}

// mergeEnrollments resolves enrollments that would hold the same slot once
// fromID is replaced by targetID, both as the enrolled user and as the
// observed one. The loser is soft deleted while active, otherwise removed.
func (m *Merger) mergeEnrollments(ctx context.Context, log *zap.Logger, fromID, targetID int64) error {
	for _, column := range []string{"user_id", "associated_user_id"} {
		fromRecs, err := m.enrollmentsBy(ctx, column, fromID)
		if err != nil {
			return err
		}
		if len(fromRecs) == 0 {
			continue
		}
		targetRecs, err := m.enrollmentsBy(ctx, column, targetID)
		if err != nil {
			return err
		}
		targets := make([]lms.EnrollmentRow, 0, len(targetRecs))
		for _, rec := range targetRecs {
			targets = append(targets, lms.EnrollmentOf(rec))
		}

		resolved := make(map[int64]bool)
		for _, rec := range fromRecs {
			fe := lms.EnrollmentOf(rec)
			moved := fe
			if column == "user_id" {
				moved.UserID = targetID
			} else {
				moved.AssociatedUserID = null.Int64From(targetID)
			}
			for _, te := range targets {
				if resolved[te.ID] || te.UserID != moved.UserID || !te.SameSlot(moved) {
					continue
				}
				resolved[te.ID] = true
				loser := te
				if !preferEnrollment(fe, te) {
					loser = fe
				}
				if err := m.dropEnrollment(ctx, loser); err != nil {
					return err
				}
				log.Debug("resolved enrollment conflict",
					zap.String("column", column),
					zap.Int64("from_enrollment_id", fe.ID),
					zap.Int64("target_enrollment_id", te.ID),
					zap.Int64("dropped_id", loser.ID))
				break
			}
		}
	}
	return nil
}

func (m *Merger) enrollmentsBy(ctx context.Context, column string, userID int64) ([]graph.Record, error) {
	recs, err := m.store.Select(ctx, lms.Enrollment, graph.Eq(column, userID))
	if err != nil {
		return nil, errors.Wrapf(err, "loading enrollments with %s %d", column, userID)
	}
	return recs, nil
}

func (m *Merger) dropEnrollment(ctx context.Context, e lms.EnrollmentRow) error {
	if e.WorkflowState == lms.StateActive {
		return m.setState(ctx, lms.Enrollment, e.ID, lms.StateDeleted)
	}
	_, err := m.store.Delete(ctx, lms.Enrollment, graph.Eq("id", e.ID))
	return errors.Wrapf(err, "deleting enrollment %d", e.ID)
}

// mergeProgressions keeps the most advanced progression per module.
func (m *Merger) mergeProgressions(ctx context.Context, log *zap.Logger, fromID, targetID int64) error {
	fromRecs, err := m.ownedBy(ctx, lms.ContextModuleProgression, fromID)
	if err != nil {
		return err
	}
	targetRecs, err := m.ownedBy(ctx, lms.ContextModuleProgression, targetID)
	if err != nil {
		return err
	}
	byModule := make(map[int64]lms.ProgressionRow, len(targetRecs))
	for _, rec := range targetRecs {
		row := lms.ProgressionOf(rec)
		byModule[row.ContextModuleID] = row
	}

	for _, rec := range fromRecs {
		fp := lms.ProgressionOf(rec)
		tp, ok := byModule[fp.ContextModuleID]
		if !ok {
			continue
		}
		loser := fp
		if progressionRank(fp.WorkflowState) > progressionRank(tp.WorkflowState) {
			loser = tp
		}
		if _, err := m.store.Delete(ctx, lms.ContextModuleProgression, graph.Eq("id", loser.ID)); err != nil {
			return errors.Wrapf(err, "deleting progression %d", loser.ID)
		}
		log.Debug("resolved progression conflict",
			zap.Int64("context_module_id", fp.ContextModuleID),
			zap.Int64("dropped_id", loser.ID))
	}
	return nil
}

func (m *Merger) relocate(ctx context.Context, log *zap.Logger, fromID, targetID int64) error {
	for _, r := range relocations {
		n, err := m.store.Update(ctx, r.Kind, graph.Fields{r.Column: targetID}, graph.Eq(r.Column, fromID))
		if err != nil {
			return errors.Wrapf(err, "moving %s.%s", r.Kind, r.Column)
		}
		if n > 0 {
			log.Debug("moved records", zap.Stringer("kind", r.Kind), zap.String("column", r.Column), zap.Int64("count", n))
		}
	}
	return nil
}

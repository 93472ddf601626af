package coursecopy

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/HotChalk/canvas-lms-sub000/core/graph"
	"github.com/HotChalk/canvas-lms-sub000/core/lms"
)

// MigrationType tags the content_migrations rows written for course copies.
const MigrationType = "course_copy_importer"

// migrations reads job state from content_migrations.
type migrations struct {
	store graph.Store
}

func (m migrations) enqueue(ctx context.Context, sourceID, targetID, userID int64, status Status) (graph.Record, error) {
	now := time.Now().UTC()
	rec, err := m.store.Insert(ctx, graph.Record{
		Kind: lms.ContentMigration,
		Fields: graph.Fields{
			lms.ColContextID:   targetID,
			lms.ColContextType: string(lms.Course),
			"source_course_id": sourceID,
			"user_id":          nullableID(userID),
			"migration_type":   MigrationType,
			lms.ColWorkflow:    string(status),
			"created_at":       now,
			"updated_at":       now,
		},
	})
	if err != nil {
		return graph.Record{}, errors.Wrap(err, "recording content migration")
	}
	return rec, nil
}

func (m migrations) setStatus(ctx context.Context, jobID int64, status Status) error {
	_, err := m.store.Update(ctx, lms.ContentMigration,
		graph.Fields{lms.ColWorkflow: string(status), "updated_at": time.Now().UTC()},
		graph.Eq("id", jobID))
	return errors.Wrap(err, "updating content migration")
}

func (m migrations) Status(ctx context.Context, jobID int64) (Status, error) {
	rec, err := m.store.Find(ctx, lms.ContentMigration, jobID)
	if err != nil {
		return "", errors.Wrapf(err, "loading content migration %d", jobID)
	}
	return Status(rec.State()), nil
}

func nullableID(id int64) interface{} {
	if id == 0 {
		return nil
	}
	return id
}

// QueueRunner only enqueues the job; an external worker picks it up and
// moves it to imported or failed.
type QueueRunner struct {
	migrations
}

var _ Runner = (*QueueRunner)(nil)

func NewQueueRunner(store graph.Store) *QueueRunner {
	return &QueueRunner{migrations{store: store}}
}

func (r *QueueRunner) Start(ctx context.Context, sourceID, targetID, userID int64) (int64, error) {
	rec, err := r.enqueue(ctx, sourceID, targetID, userID, StatusQueued)
	if err != nil {
		return 0, err
	}
	return rec.ID, nil
}

// InlineRunner performs the copy itself, synchronously, through the store.
type InlineRunner struct {
	migrations
	log *zap.Logger
}

var _ Runner = (*InlineRunner)(nil)

func NewInlineRunner(store graph.Store, log *zap.Logger) *InlineRunner {
	if log == nil {
		log = zap.NewNop()
	}
	return &InlineRunner{migrations: migrations{store: store}, log: log}
}

func (r *InlineRunner) Start(ctx context.Context, sourceID, targetID, userID int64) (int64, error) {
	job, err := r.enqueue(ctx, sourceID, targetID, userID, StatusRunning)
	if err != nil {
		return 0, err
	}
	status := StatusImported
	if err := r.copyContent(ctx, sourceID, targetID); err != nil {
		r.log.Error("copying course content",
			zap.Int64("job_id", job.ID),
			zap.Int64("source_course_id", sourceID),
			zap.Int64("target_course_id", targetID),
			zap.Error(err))
		status = StatusFailed
	}
	if err := r.setStatus(ctx, job.ID, status); err != nil {
		return 0, err
	}
	return job.ID, nil
}

// copiedKinds lists the course content carried by a copy, in dependency
// order: quizzes point at assignments.
var copiedKinds = []graph.Kind{
	lms.Assignment,
	lms.Quiz,
	lms.DiscussionTopic,
	lms.CalendarEvent,
	lms.ContextModule,
}

func (r *InlineRunner) copyContent(ctx context.Context, sourceID, targetID int64) error {
	assignmentIDs := make(map[int64]int64)
	for _, kind := range copiedKinds {
		items, err := r.store.Select(ctx, kind, graph.Eq("course_id", sourceID), graph.NotEq(lms.ColWorkflow, lms.StateDeleted))
		if err != nil {
			return errors.Wrapf(err, "loading %s", kind)
		}
		for _, item := range items {
			clone := item.Clone()
			clone.ID = 0
			clone.Fields["course_id"] = targetID
			if kind == lms.Quiz {
				if src, ok := item.Int("assignment_id"); ok {
					if dst, mapped := assignmentIDs[src]; mapped {
						clone.Fields["assignment_id"] = dst
					} else {
						clone.Fields["assignment_id"] = nil
					}
				}
			}
			created, err := r.store.Insert(ctx, clone)
			if err != nil {
				return errors.Wrapf(err, "copying %s", item.Ref())
			}
			if kind == lms.Assignment {
				assignmentIDs[item.ID] = created.ID
			}
		}
	}
	return nil
}

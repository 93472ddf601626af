// Package section splits a multi-section course into one course per section.
package section

import (
	"context"
	"sort"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/HotChalk/canvas-lms-sub000/core"
	"github.com/HotChalk/canvas-lms-sub000/core/graph"
	"github.com/HotChalk/canvas-lms-sub000/core/lms"
	"github.com/HotChalk/canvas-lms-sub000/services/logger"
)

// CourseCopier copies all content of one course into another and returns once
// the copy is complete.
type CourseCopier interface {
	CopyCourse(ctx context.Context, sourceID, targetID, userID int64) error
}

type Splitter struct {
	store   graph.Store
	schema  *graph.Schema
	copier  CourseCopier
	log     *zap.Logger
	nowFunc func() time.Time
}

func NewSplitter(store graph.Store, copier CourseCopier, log *zap.Logger) (*Splitter, error) {
	if err := vala.BeginValidation().Validate(
		core.NotNil(store, "store"),
		core.NotNil(copier, "copier"),
	).Check(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Splitter{
		store:   store,
		schema:  lms.Schema(),
		copier:  copier,
		log:     log,
		nowFunc: func() time.Time { return time.Now().UTC() },
	}, nil
}

// activeSections returns the live sections of a course ordered by name.
func (s *Splitter) activeSections(ctx context.Context, courseID int64) ([]graph.Record, error) {
	sections, err := s.store.Select(ctx, lms.CourseSection,
		graph.Eq("course_id", courseID),
		graph.NotEq(lms.ColWorkflow, lms.StateDeleted))
	if err != nil {
		return nil, errors.Wrapf(err, "loading sections of course %d", courseID)
	}
	sort.SliceStable(sections, func(i, j int) bool {
		return sections[i].String("name") < sections[j].String("name")
	})
	return sections, nil
}

// SplitCourse creates one course per active section of courseID, copies the
// content into it and moves the section with its users' data over. The new
// courses are returned in section order. A course with a single section is
// left alone.
//
// A failed copy stops the course and is returned; a failed migration is
// logged and the next section is processed.
func (s *Splitter) SplitCourse(ctx context.Context, courseID, actingUserID int64, deleteOriginal bool) ([]graph.Record, error) {
	log := logsvc.ForRun(s.log, logsvc.SectionSplitter).With(zap.Int64("course_id", courseID))
	return s.splitCourse(ctx, log, courseID, actingUserID, deleteOriginal)
}

func (s *Splitter) splitCourse(ctx context.Context, log *zap.Logger, courseID, actingUserID int64, deleteOriginal bool) ([]graph.Record, error) {
	course, err := s.store.Find(ctx, lms.Course, courseID)
	if err != nil {
		return nil, errors.Wrapf(err, "loading course %d", courseID)
	}
	sections, err := s.activeSections(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if len(sections) <= 1 {
		log.Info("course has a single section, nothing to split", zap.Int("sections", len(sections)))
		return nil, nil
	}

	created := make([]graph.Record, 0, len(sections))
	for _, section := range sections {
		slog := log.With(zap.Int64("section_id", section.ID), zap.String("section", section.String("name")))

		target, err := s.createShell(ctx, course, section)
		if err != nil {
			slog.Error("creating course shell", zap.Error(err))
			return created, err
		}
		if err := s.copier.CopyCourse(ctx, course.ID, target.ID, actingUserID); err != nil {
			slog.Error("copying course", zap.Int64("target_course_id", target.ID), zap.Error(err))
			return created, errors.Wrapf(err, "copying course %d into %d", course.ID, target.ID)
		}
		created = append(created, target)

		if err := s.migrateSection(ctx, slog, course, target, section); err != nil {
			slog.Error("migrating section", zap.Int64("target_course_id", target.ID), zap.Error(err))
			continue
		}
		slog.Info("section moved", zap.Int64("target_course_id", target.ID))
	}

	if deleteOriginal {
		if err := lms.CourseDeletion.SoftDelete(ctx, s.store, course); err != nil {
			log.Error("deleting original course", zap.Error(err))
			return created, errors.Wrapf(err, "deleting course %d", course.ID)
		}
		log.Info("original course deleted")
	}
	return created, nil
}

// createShell inserts an empty course with the settings of course, coded
// after section.
func (s *Splitter) createShell(ctx context.Context, course, section graph.Record) (graph.Record, error) {
	now := s.nowFunc()
	fields := graph.Fields{
		"name":          course.String("name"),
		"course_code":   section.String("name"),
		lms.ColWorkflow: lms.StateClaimed,
		"created_at":    now,
		"updated_at":    now,
	}
	for _, col := range []string{"account_id", "root_account_id", "enrollment_term_id", "start_at", "conclude_at", "time_zone"} {
		fields[col] = course.Fields[col]
	}
	rec, err := s.store.Insert(ctx, graph.Record{Kind: lms.Course, Fields: fields})
	if err != nil {
		return graph.Record{}, errors.Wrapf(err, "creating course for section %d", section.ID)
	}
	return rec, nil
}

// SplitAccount splits every active course of accountID. A failing course does
// not stop the others; all failures are returned together.
func (s *Splitter) SplitAccount(ctx context.Context, accountID, actingUserID int64, deleteOriginal bool) ([]graph.Record, error) {
	log := logsvc.ForRun(s.log, logsvc.SectionSplitter).With(zap.Int64("account_id", accountID))
	courses, err := s.store.Select(ctx, lms.Course,
		graph.Eq("account_id", accountID),
		graph.NotEq(lms.ColWorkflow, lms.StateDeleted))
	if err != nil {
		return nil, errors.Wrapf(err, "loading courses of account %d", accountID)
	}

	var (
		created []graph.Record
		errs    error
	)
	for _, course := range courses {
		recs, err := s.splitCourse(ctx, log.With(zap.Int64("course_id", course.ID)), course.ID, actingUserID, deleteOriginal)
		created = append(created, recs...)
		if err != nil {
			errs = multierr.Append(errs, errors.Wrapf(err, "course %d", course.ID))
		}
	}
	log.Info("account split",
		zap.Int("courses", len(courses)),
		zap.Int("created", len(created)),
		zap.Int("failed", len(multierr.Errors(errs))))
	return created, errs
}

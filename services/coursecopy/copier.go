// Package coursecopy runs "copy everything" content migrations between two
// courses and waits for them to finish.
package coursecopy

import (
	"context"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/HotChalk/canvas-lms-sub000/core"
	"github.com/HotChalk/canvas-lms-sub000/services/logger"
)

var (
	ErrCopyFailed  = errors.New("course copy failed")
	ErrCopyTimeout = errors.New("course copy timed out")
)

// Status is the workflow state of a copy job.
type Status string

const (
	StatusQueued   Status = "queued"
	StatusRunning  Status = "running"
	StatusImported Status = "imported"
	StatusFailed   Status = "failed"
)

// Done reports whether the job reached a final state.
func (s Status) Done() bool { return s == StatusImported || s == StatusFailed }

// Runner starts copy jobs and reports their progress.
type Runner interface {
	Start(ctx context.Context, sourceID, targetID, userID int64) (jobID int64, err error)
	Status(ctx context.Context, jobID int64) (Status, error)
}

// Copier copies a course synchronously on top of a Runner.
type Copier struct {
	runner       Runner
	pollInterval time.Duration
	timeout      time.Duration
	log          *zap.Logger
}

func NewCopier(runner Runner, pollInterval, timeout time.Duration, log *zap.Logger) (*Copier, error) {
	if err := vala.BeginValidation().Validate(
		core.NotNil(runner, "runner"),
		vala.GreaterThan(int(pollInterval), 0, "pollInterval"),
		vala.GreaterThan(int(timeout), 0, "timeout"),
	).Check(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Copier{runner: runner, pollInterval: pollInterval, timeout: timeout, log: log}, nil
}

// CopyCourse copies all content of sourceID into targetID and blocks until the
// job is imported, failed, or the timeout elapses.
func (c *Copier) CopyCourse(ctx context.Context, sourceID, targetID, userID int64) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	jobID, err := c.runner.Start(ctx, sourceID, targetID, userID)
	if err != nil {
		return errors.Wrap(err, "starting course copy")
	}
	log := logsvc.ForRun(c.log, logsvc.CourseCopy).With(
		zap.Int64("job_id", jobID),
		zap.Int64("source_course_id", sourceID),
		zap.Int64("target_course_id", targetID))
	log.Debug("course copy started")

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	for {
		status, err := c.runner.Status(ctx, jobID)
		if err != nil {
			return errors.Wrap(err, "polling course copy")
		}
		if status.Done() {
			if status == StatusFailed {
				log.Warn("course copy failed")
				return errors.Wrapf(ErrCopyFailed, "job %d", jobID)
			}
			log.Debug("course copy imported")
			return nil
		}

		select {
		case <-ctx.Done():
			if ctx.Err() == context.DeadlineExceeded {
				return errors.Wrapf(ErrCopyTimeout, "job %d after %s", jobID, c.timeout)
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

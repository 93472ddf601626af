// Package logsvc builds the structured logger shared by every subsystem.
package logsvc

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/HotChalk/canvas-lms-sub000/core"
)

// Subsystem tags.
const (
	AccountRemover  = "ACCOUNT-REMOVER"
	SectionSplitter = "SECTION-SPLITTER"
	UserMerge       = "USER-MERGE"
	CourseCopy      = "COURSE-COPY"
)

// New returns a development logger in debug mode and a JSON production logger
// otherwise. Warnings and above also go to rollbar when a token is set.
func New(conf *core.Config) (*zap.Logger, error) {
	zconf := zap.NewProductionConfig()
	if conf.Debug {
		zconf = zap.NewDevelopmentConfig()
	}
	logger, err := zconf.Build(zap.Fields(zap.String("env", conf.Env), zap.String("build", conf.Build)))
	if err != nil {
		return nil, errors.Wrap(err, "building logger")
	}

	configureRollbar(conf)
	if conf.RollbarToken != "" {
		logger = logger.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
			return zapcore.NewTee(c, newRollbarCore(zapcore.WarnLevel))
		}))
	}
	return logger, nil
}

// ForRun returns the subsystem logger for one invocation, tagged with a fresh
// run id so interleaved jobs can be told apart.
func ForRun(logger *zap.Logger, subsystem string) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return logger.Named(subsystem).With(zap.String("run", uuid.New().String()))
}

package logsvc

import (
	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"
	"go.uber.org/zap/zapcore"

	"github.com/HotChalk/canvas-lms-sub000/core"
)

var rollbarLogFunc = rollbar.Log // mockable

func configureRollbar(conf *core.Config) {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	rollbar.SetEnabled(conf.RollbarToken != "")
}

// rollbarCore forwards entries at or above its level to rollbar, with the
// structured fields as extras.
type rollbarCore struct {
	zapcore.LevelEnabler
	fields []zapcore.Field
}

var _ zapcore.Core = (*rollbarCore)(nil)

func newRollbarCore(enab zapcore.LevelEnabler) *rollbarCore {
	return &rollbarCore{LevelEnabler: enab}
}

func (c *rollbarCore) With(fields []zapcore.Field) zapcore.Core {
	merged := make([]zapcore.Field, 0, len(c.fields)+len(fields))
	merged = append(merged, c.fields...)
	merged = append(merged, fields...)
	return &rollbarCore{LevelEnabler: c.LevelEnabler, fields: merged}
}

func (c *rollbarCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *rollbarCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	enc := zapcore.NewMapObjectEncoder()
	var cause error
	for _, group := range [][]zapcore.Field{c.fields, fields} {
		for _, f := range group {
			if e, ok := f.Interface.(error); ok && f.Type == zapcore.ErrorType && cause == nil {
				cause = e
			}
			f.AddTo(enc)
		}
	}
	extras := enc.Fields
	if ent.LoggerName != "" {
		extras["logger"] = ent.LoggerName
	}

	args := []interface{}{ent.Message, extras}
	if cause != nil {
		args = append(args, cause)
	}
	rollbarLogFunc(rollbarLevel(ent.Level), args...)
	return nil
}

func (c *rollbarCore) Sync() error {
	rollbar.Wait()
	return nil
}

func rollbarLevel(lvl zapcore.Level) string {
	switch {
	case lvl >= zapcore.DPanicLevel:
		return rollbar.CRIT
	case lvl == zapcore.ErrorLevel:
		return rollbar.ERR
	case lvl == zapcore.WarnLevel:
		return rollbar.WARN
	case lvl == zapcore.InfoLevel:
		return rollbar.INFO
	}
	return rollbar.DEBUG
}

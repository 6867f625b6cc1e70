package log

import "errors"

// LeveledLogger routes a library's leveled logging into this package.
// It satisfies retryablehttp.LeveledLogger.
type LeveledLogger struct {
	Component string
}

// Leveled returns a LeveledLogger tagging every line with component.
func Leveled(component string) LeveledLogger {
	return LeveledLogger{Component: component}
}

func (l LeveledLogger) tag(kv []any) []any {
	return append([]any{"component", l.Component}, kv...)
}

func (l LeveledLogger) Debug(msg string, kv ...any) { Debug(msg, l.tag(kv)...) }
func (l LeveledLogger) Info(msg string, kv ...any)  { Info(msg, l.tag(kv)...) }
func (l LeveledLogger) Warn(msg string, kv ...any)  { Warn(msg, l.tag(kv)...) }

// Error pulls an "error" value out of kv when the caller passed one.
func (l LeveledLogger) Error(msg string, kv ...any) {
	var err error
	rest := make([]any, 0, len(kv))
	for i := 0; i+1 < len(kv); i += 2 {
		if e, ok := kv[i+1].(error); ok && err == nil {
			err = e
			continue
		}
		rest = append(rest, kv[i], kv[i+1])
	}
	if err == nil {
		err = errors.New(msg)
	}
	Error(msg, err, l.tag(rest)...)
}

// CronLogger satisfies cron.Logger. Scheduler chatter goes to DEBUG.
type CronLogger struct{}

// Cron returns the scheduler logger.
func Cron() CronLogger { return CronLogger{} }

func (CronLogger) Info(msg string, kv ...any) {
	Debug("cron: "+msg, kv...)
}

func (CronLogger) Error(err error, msg string, kv ...any) {
	Error("cron: "+msg, err, kv...)
}

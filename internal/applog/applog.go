// Package applog is the runner's diagnostic logger: task failures, config
// load failures, and collaborator timeouts, distinct from the append-only
// decision log in internal/decisionlog (which stays a parseable JSON array,
// the wrong shape for logrus's leveled line-oriented output).
package applog

import (
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	mu  sync.Mutex
	log = logrus.New()
)

func init() {
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	log.SetOutput(os.Stderr)
	log.SetLevel(logrus.WarnLevel)
}

// Configure adjusts the logger's verbosity per the global config document's
// verbose_logging/show_errors knobs (§7). verbose turns on debug-level
// output; showErrors additionally surfaces non-fatal task errors at warn
// level instead of suppressing them.
func Configure(verbose, showErrors bool) {
	mu.Lock()
	defer mu.Unlock()
	switch {
	case verbose:
		log.SetLevel(logrus.DebugLevel)
	case showErrors:
		log.SetLevel(logrus.WarnLevel)
	default:
		log.SetLevel(logrus.ErrorLevel)
	}
}

// SetOutput redirects log output, used by tests to capture or silence it.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	log.SetOutput(w)
}

// Logger returns the shared logrus logger.
func Logger() *logrus.Logger {
	return log
}

func WithField(key string, value any) *logrus.Entry {
	return log.WithField(key, value)
}

func Debugf(format string, args ...any) { log.Debugf(format, args...) }
func Warnf(format string, args ...any)  { log.Warnf(format, args...) }
func Errorf(format string, args ...any) { log.Errorf(format, args...) }

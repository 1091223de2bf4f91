// Package forensiclog provides the process-wide sugared logger used by
// every core component.
package forensiclog

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/term"
)

var (
	once   sync.Once
	logger *zap.SugaredLogger
)

// Logger returns the shared sugared logger, building it on first use.
func Logger() *zap.SugaredLogger {
	once.Do(func() {
		var cfg zap.Config
		if term.IsTerminal(int(os.Stderr.Fd())) {
			cfg = zap.NewDevelopmentConfig()
		} else {
			cfg = zap.NewProductionConfig()
		}
		cfg.OutputPaths = []string{"stderr"}
		z, err := cfg.Build()
		if err != nil {
			// Fall back to a no-op logger rather than panic at import time.
			z = zap.NewNop()
		}
		logger = z.Sugar()
	})
	return logger
}

// SetLogger overrides the shared logger, used by tests and by callers
// that want a pre-wired core (e.g. writing to a buffer).
func SetLogger(l *zap.SugaredLogger) {
	logger = l
	once.Do(func() {}) // ensure Do is consumed so Logger() doesn't rebuild
}

// Package logging builds the daemon's structured zap logger. The CLI client
// stays on the teacher's lighter-weight ANSI printer (see internal/cliui);
// only the long-running daemon process gets full structured logging.
//
// Grounded on edirooss-zmux-server/cmd/zmux-server/main.go's buildLogger
// shape (zap.NewProductionConfig/zap.NewDevelopmentConfig, named logger,
// disabled caller/stacktrace noise for a CLI-adjacent process).
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the daemon's *zap.Logger. debug selects the more verbose,
// human-readable development encoder; otherwise a production JSON encoder
// is used, suited to being captured by systemd/journald.
func New(debug bool) (*zap.Logger, error) {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.DisableStacktrace = true
	return cfg.Build()
}

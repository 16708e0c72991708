package observability

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/tbourn/go-tutor-backend/internal/config"
)

// stdout is the console sink; tests replace it.
var stdout io.Writer = os.Stdout

// SetupLogging configures the global zerolog logger from cfg and returns a
// closer for the rotated log file, if any.
//
// Output is JSON on stdout, or a console writer when LogPretty is set. When
// LogFile is set, entries are also written as JSON to a lumberjack-rotated file.
func SetupLogging(cfg config.Config) (io.Closer, error) {
	lvl, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	var console io.Writer = stdout
	if cfg.LogPretty {
		console = zerolog.ConsoleWriter{Out: stdout, TimeFormat: time.RFC3339}
	}

	var closer io.Closer = nopCloser{}
	out := console
	if cfg.LogFile != "" {
		rot := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    cfg.LogMaxSizeMB,
			MaxBackups: cfg.LogMaxBackups,
			MaxAge:     cfg.LogMaxAgeDays,
			Compress:   true,
		}
		out = zerolog.MultiLevelWriter(console, rot)
		closer = rot
	}

	log.Logger = zerolog.New(out).With().
		Timestamp().
		Str("service", cfg.OTEL.ServiceName).
		Logger()
	return closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

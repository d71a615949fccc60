package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds the console logger. Output goes to stderr unless out is given,
// so CLI results on stdout stay machine-readable.
func New(environment string, out io.Writer) zerolog.Logger {
	if out == nil {
		out = os.Stderr
	}

	output := zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
		NoColor:    environment == "production",
	}

	logger := zerolog.New(output).With().
		Timestamp().
		Str("env", environment).
		Logger()

	if environment != "production" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	return logger
}

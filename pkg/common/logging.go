package common

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ConfigureLogger sets up the global zerolog logger. Pretty output is easier to
// read on a terminal but slower than plain JSON.
func ConfigureLogger(debug, pretty bool) {
	configureLogger(os.Stdout, debug, pretty)
}

func configureLogger(out io.Writer, debug, pretty bool) {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	if pretty {
		out = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: "2006-01-02T15:04:05",
		}
	}

	log.Logger = zerolog.New(out).With().Timestamp().Logger()
}

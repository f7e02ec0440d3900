package logging

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dshills/semcache/pkg/types"
)

// Output formats
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// New builds a logger writing to w at the given level ("debug", "info", ...)
// in console or JSON format
func New(level, format string, w io.Writer) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("%w: log level %q: %v", types.ErrConfiguration, level, err)
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	switch format {
	case FormatJSON:
	case FormatConsole, "":
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	default:
		return zerolog.Nop(), fmt.Errorf("%w: log format %q", types.ErrConfiguration, format)
	}

	return zerolog.New(w).Level(lvl).With().Timestamp().Logger(), nil
}

package badgerstore

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// badgerLogger routes Badger's internal logging through zerolog. Badger is
// chatty at info level, so info is demoted to debug.
type badgerLogger struct {
	log zerolog.Logger
}

func (l badgerLogger) Errorf(format string, args ...any) {
	l.log.Error().Msg(trim(format, args))
}

func (l badgerLogger) Warningf(format string, args ...any) {
	l.log.Warn().Msg(trim(format, args))
}

func (l badgerLogger) Infof(format string, args ...any) {
	l.log.Debug().Msg(trim(format, args))
}

func (l badgerLogger) Debugf(format string, args ...any) {
	l.log.Trace().Msg(trim(format, args))
}

func trim(format string, args []any) string {
	return strings.TrimSpace(fmt.Sprintf(format, args...))
}

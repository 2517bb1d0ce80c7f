package cli

import (
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/term"
)

// NewLogger returns a logrus logger writing to out. Terminals get coloured
// text, anything else gets one JSON object per line.
func NewLogger(level logrus.Level, out io.Writer) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(out)
	log.SetLevel(level)

	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339,
			ForceColors:     true,
		})
	} else {
		log.SetFormatter(&logrus.JSONFormatter{})
	}
	return log
}

// levelFor raises base by one level per -v flag, capped at trace.
func levelFor(base logrus.Level, verbose int) logrus.Level {
	level := base + logrus.Level(verbose)
	if level > logrus.TraceLevel {
		level = logrus.TraceLevel
	}
	return level
}

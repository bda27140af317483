package logger

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"food-share-server/config"
)

// Log is usable before Init so packages and tests can log unconditionally.
var Log = logrus.New()

func Init(cfg config.LogConfig) {
	Log.Out = os.Stdout

	if strings.EqualFold(cfg.Format, "text") {
		Log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		Log.SetFormatter(&logrus.JSONFormatter{})
	}

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		Log.WithError(err).Warnf("⚠️ Unknown log level %q, using info", cfg.Level)
		level = logrus.InfoLevel
	}
	Log.SetLevel(level)
}

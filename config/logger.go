package config

import (
	"os"

	"github.com/sirupsen/logrus"
)

var Log *logrus.Logger

func InitLogger() {
	Log = logrus.New()

	Log.SetFormatter(&logrus.JSONFormatter{})
	Log.SetOutput(os.Stdout)

	level := logrus.InfoLevel
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		if parsed, err := logrus.ParseLevel(v); err == nil {
			level = parsed
		}
	}
	Log.SetLevel(level)
}

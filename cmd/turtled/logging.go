package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// newLogger builds the process-wide structured logger from cfg's
// level/format flags. The serve command passes it to the robot socket
// listener and the HTTP API through their constructors rather than a
// package-level logger variable.
func newLogger() (*logrus.Entry, error) {
	log := logrus.New()

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid --log-level %q: %w", cfg.LogLevel, err)
	}
	log.SetLevel(level)

	switch cfg.LogFormat {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	case "text", "":
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("invalid --log-format %q: must be text or json", cfg.LogFormat)
	}

	return logrus.NewEntry(log), nil
}

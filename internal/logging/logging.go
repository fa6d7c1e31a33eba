// Package logging holds the shared application logger.
package logging

import (
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	logger *logrus.Logger
	once   sync.Once
)

// Init configures the package logger with the given level.
func Init(level logrus.Level) {
	once.Do(func() {
		logger = logrus.New()
		logger.SetLevel(level)
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	})
}

// GetLogger returns the shared logger, initializing it at info level if needed.
func GetLogger() *logrus.Logger {
	if logger == nil {
		Init(logrus.InfoLevel)
	}
	return logger
}

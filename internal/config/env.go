package config

import (
	"path/filepath"
	"runtime"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// NewLogger builds the text logger shared by every binary.
func NewLogger(level string) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)
	return logger
}

// LoadDotEnv loads .env from the working directory, falling back to the
// project root (where go.mod is). It must run before Load.
func LoadDotEnv(logger *logrus.Logger) {
	if err := godotenv.Load(); err == nil {
		logger.Info("loaded .env from working directory")
		return
	}

	_, filename, _, _ := runtime.Caller(0)
	envPath := filepath.Join(filepath.Dir(filename), "../..", ".env")
	if err := godotenv.Load(envPath); err != nil {
		logger.Debugf("no .env file found at %s, using system environment variables", envPath)
		return
	}
	logger.Infof("loaded .env from %s", envPath)
}

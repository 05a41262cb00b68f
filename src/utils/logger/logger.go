package logger

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/warp-contracts/shadowlink/src/utils/config"
)

var logger *logrus.Logger

func init() {
	logger = logrus.New()
}

func Init(config *config.Config) (err error) {
	level, err := logrus.ParseLevel(config.LogLevel)
	if err != nil {
		return
	}
	logger.SetLevel(level)
	logger.SetOutput(os.Stdout)

	if config.LogJSON {
		logger.SetFormatter(&logrus.JSONFormatter{})
		return nil
	}

	formatter := &logrus.TextFormatter{
		FullTimestamp: true,
	}
	logger.SetFormatter(formatter)

	return nil
}

func NewSublogger(tag string) *logrus.Entry {
	return logger.WithFields(logrus.Fields{"module": "shadowlink." + tag})
}

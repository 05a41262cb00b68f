package settlement

import (
	"github.com/sirupsen/logrus"
	"github.com/warp-contracts/shadowlink/src/utils/logger"
)

// Resty logger, transforms all logs to trace
type restyLogger struct {
	log *logrus.Entry
}

func newRestyLogger(tag string) (self *restyLogger) {
	self = new(restyLogger)
	self.log = logger.NewSublogger(tag)
	return
}

func (self *restyLogger) Errorf(format string, v ...interface{}) {
	self.log.Tracef(format, v...)
}

func (self *restyLogger) Warnf(format string, v ...interface{}) {
	self.log.Tracef(format, v...)
}

func (self *restyLogger) Debugf(format string, v ...interface{}) {
	self.log.Tracef(format, v...)
}

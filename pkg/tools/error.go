package tools

import (
	"fmt"

	log "github.com/sirupsen/logrus"
)

// ErrorWithPrintContext 用于 defer 关闭资源，失败只记日志
func ErrorWithPrintContext(closeFunc func() error, format string, args ...interface{}) {
	if err := closeFunc(); err != nil {
		log.WithError(err).Warnf("%s failed", fmt.Sprintf(format, args...))
	}
}

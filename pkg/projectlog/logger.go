package projectlog

import (
	"os"

	"github.com/parththirwani/ChatterStack-sub001/config"

	"github.com/sirupsen/logrus"
)

// Init 按配置设置全局 logrus，level 未配置时为 info
func Init() {
	logrus.SetFormatter(&JSONFormatter{})
	level := logrus.Level(config.GetInstance().GetIntOrDefault(config.AppLogLevel, int(logrus.InfoLevel)))
	logrus.SetLevel(level)
	rc := config.GetInstance().GetBool(config.AppLogReportcaller)
	logrus.SetReportCaller(rc)
	logrus.SetOutput(os.Stdout)
}

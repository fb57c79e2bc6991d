package router

import (
	"sync"

	"github.com/parththirwani/ChatterStack-sub001/config"
	"github.com/parththirwani/ChatterStack-sub001/middleware"

	"github.com/gin-gonic/gin"
)

var once sync.Once
var instance *gin.Engine

// GetInstance 第一次调用时构建路由，需在 factory.Init 之后使用
func GetInstance() *gin.Engine {
	once.Do(func() {
		instance = New()
	})
	return instance
}

func New() *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery(), middleware.RequestID)
	if config.GetInstance().GetBoolOrDefault(config.ApplicationLogRequest, true) {
		engine.Use(middleware.Logger)
	}
	addBasicRouter(engine)
	addApiRouter(engine)
	return engine
}

package router

import (
	"github.com/parththirwani/ChatterStack-sub001/controller"

	"github.com/gin-gonic/gin"
)

func addApiRouter(engine *gin.Engine) {
	api := engine.Group("/api/v1")
	{
		// 聊天
		api.POST("/chat", controller.Chat)

		// 长期记忆
		api.POST("/memory/ingest", controller.IngestMemory)
		api.POST("/memory/retrieve", controller.RetrieveMemory)
		api.GET("/memory/:user_id/fragments", controller.ListFragments)

		// 用户画像
		api.GET("/profile/:user_id", controller.GetProfile)
		api.POST("/profile/:user_id/infer", controller.InferProfile)
		api.PATCH("/profile/:user_id", controller.UpdateProfile)

		// 会话
		api.GET("/conversations", controller.ListConversations)
		api.GET("/conversation/:conversation_id/messages", controller.GetConversationMessages)
		api.GET("/conversation/:conversation_id/short-term", controller.GetShortTerm)
		api.DELETE("/conversation/:conversation_id", controller.DeleteConversation)
	}
}

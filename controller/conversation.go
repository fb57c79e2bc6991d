package controller

import (
	"net/http"

	"github.com/parththirwani/ChatterStack-sub001/model"
	"github.com/parththirwani/ChatterStack-sub001/service/factory"

	"github.com/gin-gonic/gin"
)

type listConversationsQuery struct {
	UserID   string `form:"user_id" binding:"required"`
	Limit    int    `form:"limit"`
	Offset   int    `form:"offset"`
	OrderBy  string `form:"order_by"`
	OrderAsc bool   `form:"order_asc"`
}

func ListConversations(ctx *gin.Context) {
	var query listConversationsQuery
	if err := ctx.ShouldBindQuery(&query); err != nil {
		bindError(ctx, err)
		return
	}

	condition := &model.GetConversationCondition{UserID: &query.UserID}
	if query.Limit > 0 {
		condition.Pager = &model.Pager{Limit: query.Limit, Offset: query.Offset}
	}
	if query.OrderBy != "" {
		condition.Order = &model.Order{OrderBy: query.OrderBy, OrderAsc: query.OrderAsc}
	}

	list, total, merr := factory.GetServiceFactory().ConversationService().List(ctx, condition)
	if merr != nil {
		abortWithError(ctx, merr)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"conversations": list, "total": total})
}

func GetConversationMessages(ctx *gin.Context) {
	messages, merr := factory.GetServiceFactory().ConversationService().Messages(ctx, ctx.Param("conversation_id"))
	if merr != nil {
		abortWithError(ctx, merr)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"messages": messages})
}

// GetShortTerm 会话短期缓存里的最近对话，过期后为空
func GetShortTerm(ctx *gin.Context) {
	conversationID := ctx.Param("conversation_id")
	turns, merr := factory.GetServiceFactory().ConversationService().ShortTerm(ctx, conversationID)
	if merr != nil {
		abortWithError(ctx, merr)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"conversation_id": conversationID, "turns": turns})
}

func DeleteConversation(ctx *gin.Context) {
	if merr := factory.GetServiceFactory().ConversationService().Delete(ctx, ctx.Param("conversation_id")); merr != nil {
		abortWithError(ctx, merr)
		return
	}
	ctx.Status(http.StatusNoContent)
}

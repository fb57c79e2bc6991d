package controller

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/parththirwani/ChatterStack-sub001/model"
	"github.com/parththirwani/ChatterStack-sub001/service/factory"
	"github.com/parththirwani/ChatterStack-sub001/service/memory"

	"github.com/gin-gonic/gin"
)

// IngestMemory 异步写入一条消息，入队即返回 202
func IngestMemory(ctx *gin.Context) {
	var req model.IngestRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		bindError(ctx, err)
		return
	}

	if merr := factory.GetServiceFactory().MemoryPipeline().Ingest(ctx, &req); merr != nil {
		abortWithError(ctx, merr)
		return
	}
	ctx.JSON(http.StatusAccepted, gin.H{"status": "accepted", "message_id": req.MessageID})
}

// RetrieveMemory 检索不会失败，最差返回只有短期上下文的结果
func RetrieveMemory(ctx *gin.Context) {
	var req model.RetrieveRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		bindError(ctx, err)
		return
	}

	rc := factory.GetServiceFactory().Retriever().Retrieve(ctx, &req)
	ctx.JSON(http.StatusOK, &model.RetrieveResponse{
		RetrievalContext: rc,
		Formatted:        memory.Format(rc),
	})
}

const defaultFragmentListLimit = 50

// ListFragments 查看用户已写入的长期记忆片段，按时间倒序
func ListFragments(ctx *gin.Context) {
	limit := defaultFragmentListLimit
	if raw := ctx.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			bindError(ctx, fmt.Errorf("limit must be a positive integer, got %q", raw))
			return
		}
		limit = parsed
	}

	chunks, merr := factory.GetServiceFactory().Retriever().ListFragments(ctx, ctx.Param("user_id"), limit)
	if merr != nil {
		abortWithError(ctx, merr)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"user_id": ctx.Param("user_id"), "fragments": chunks})
}

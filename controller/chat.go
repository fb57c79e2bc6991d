package controller

import (
	"encoding/json"
	"net/http"

	"github.com/parththirwani/ChatterStack-sub001/model"
	"github.com/parththirwani/ChatterStack-sub001/pkg/clients/httptool"
	"github.com/parththirwani/ChatterStack-sub001/service/factory"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// streamEvent SSE 每一帧的内容，最后一帧 done=true 并带上完整响应
type streamEvent struct {
	Delta    string              `json:"delta,omitempty"`
	Done     bool                `json:"done,omitempty"`
	Response *model.ChatResponse `json:"response,omitempty"`
	Error    *model.Error        `json:"error,omitempty"`
}

// Chat 聊天接口，stream=true 时以 SSE 返回
func Chat(ctx *gin.Context) {
	var req model.ChatRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		bindError(ctx, err)
		return
	}

	chatService := factory.GetServiceFactory().ChatService()
	if !req.Stream {
		res, merr := chatService.Chat(ctx, &req, nil)
		if merr != nil {
			abortWithError(ctx, merr)
			return
		}
		ctx.JSON(http.StatusOK, res)
		return
	}

	started := false
	writeEvent := func(event streamEvent) error {
		if !started {
			httptool.SetStreamHeaders(ctx.Writer.Header())
			ctx.Status(http.StatusOK)
			started = true
		}
		payload, err := json.Marshal(event)
		if err != nil {
			return err
		}
		if _, err := ctx.Writer.Write(httptool.StreamFrame(payload)); err != nil {
			return err
		}
		ctx.Writer.Flush()
		return nil
	}

	res, merr := chatService.Chat(ctx, &req, func(delta string) error {
		return writeEvent(streamEvent{Delta: delta})
	})
	if merr != nil {
		// 还没开始推流时可以正常返回错误状态码
		if !started {
			abortWithError(ctx, merr)
			return
		}
		if err := writeEvent(streamEvent{Done: true, Error: merr}); err != nil {
			log.WithError(err).Warn("write stream error frame failed")
		}
		return
	}
	if err := writeEvent(streamEvent{Done: true, Response: res}); err != nil {
		log.WithError(err).Warn("write stream done frame failed")
	}
}

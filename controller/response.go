package controller

import (
	"errors"
	"net/http"

	"github.com/parththirwani/ChatterStack-sub001/middleware"
	"github.com/parththirwani/ChatterStack-sub001/model"

	"github.com/gin-gonic/gin"
)

// abortWithError 按错误码返回 http 状态，同时记到上下文给访问日志用
func abortWithError(ctx *gin.Context, err error) {
	var merr *model.Error
	if !errors.As(err, &merr) {
		merr = model.NewError(model.ErrorParams, err)
		merr.Message = err.Error()
	}
	ctx.Set(middleware.GinContextErrorKey, merr.String())
	ctx.AbortWithStatusJSON(merr.HTTPStatus(), merr)
}

// bindError 请求体解析失败，统一按参数错误返回
func bindError(ctx *gin.Context, err error) {
	ctx.Set(middleware.GinContextErrorKey, err.Error())
	ctx.AbortWithStatusJSON(http.StatusBadRequest, model.NewErrorWithMessage(model.ErrorParams, err.Error()))
}

package controller

import (
	"net/http"

	"github.com/parththirwani/ChatterStack-sub001/model"
	"github.com/parththirwani/ChatterStack-sub001/service/factory"

	"github.com/gin-gonic/gin"
)

func GetProfile(ctx *gin.Context) {
	profile, merr := factory.GetServiceFactory().ProfileEngine().GetProfile(ctx, ctx.Param("user_id"))
	if merr != nil {
		abortWithError(ctx, merr)
		return
	}
	ctx.JSON(http.StatusOK, profile)
}

// InferProfile 基于全部历史重新推断，锁定字段保持不变
func InferProfile(ctx *gin.Context) {
	profile, merr := factory.GetServiceFactory().ProfileEngine().InferProfile(ctx, ctx.Param("user_id"))
	if merr != nil {
		abortWithError(ctx, merr)
		return
	}
	ctx.JSON(http.StatusOK, profile)
}

func UpdateProfile(ctx *gin.Context) {
	var overrides model.ProfileOverrides
	if err := ctx.ShouldBindJSON(&overrides); err != nil {
		bindError(ctx, err)
		return
	}

	profile, merr := factory.GetServiceFactory().ProfileEngine().UpdateProfile(ctx, ctx.Param("user_id"), &overrides)
	if merr != nil {
		abortWithError(ctx, merr)
		return
	}
	ctx.JSON(http.StatusOK, profile)
}

package controller

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/parththirwani/ChatterStack-sub001/middleware"
	"github.com/parththirwani/ChatterStack-sub001/model"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestContext() (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(w)
	ctx.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	return ctx, w
}

func TestAbortWithError_StatusByCode(t *testing.T) {
	cases := []struct {
		err    *model.Error
		status int
	}{
		{model.NewErrorVerificationFailed(model.ErrorParams, "user_id is required"), http.StatusBadRequest},
		{model.NewErrorWithMessage(model.ErrorProfileNotFound, "profile of u1 not found"), http.StatusNotFound},
		{model.NewErrorWithMessage(model.ErrorProfileConflict, "conflict"), http.StatusConflict},
		{model.NewErrorWithMessage(model.ErrorLLM, "llm down"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		ctx, w := newTestContext()
		abortWithError(ctx, c.err)

		assert.Equal(t, c.status, w.Code)
		assert.True(t, ctx.IsAborted())
		var body model.Error
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, c.err.Code, body.Code)
		assert.Equal(t, c.err.Message, body.Message)
		_, ok := ctx.Get(middleware.GinContextErrorKey)
		assert.True(t, ok)
	}
}

func TestAbortWithError_PlainError(t *testing.T) {
	ctx, w := newTestContext()
	abortWithError(ctx, errors.New("bad input"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "bad input")
}

func TestBindError(t *testing.T) {
	ctx, w := newTestContext()
	bindError(ctx, errors.New("Key: 'ChatRequest.UserID' Error:Field validation for 'UserID' failed on the 'required' tag"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "UserID")
}

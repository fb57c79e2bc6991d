package middleware

import (
	"bytes"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	RequestIDHeader    = "X-Request-ID"
	GinContextErrorKey = "Error"
	RequestIDInLogName = "request_id"

	// 对话内容可能很长，日志里只保留前面一段
	maxLoggedBodyBytes = 2048
)

// RequestID 沿用调用方传入的 request id，没有则生成一个
func RequestID(ctx *gin.Context) {
	requestID := ctx.GetHeader(RequestIDHeader)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	ctx.Set(RequestIDHeader, requestID)
	ctx.Header(RequestIDHeader, requestID)
	ctx.Next()
}

func Logger(ctx *gin.Context) {
	start := time.Now().UTC()
	path := ctx.Request.URL.Path
	var bodyBytes []byte
	if ctx.Request.Body != nil {
		bodyBytes, _ = io.ReadAll(ctx.Request.Body)
	}
	request, err := readBody(io.NopCloser(bytes.NewBuffer(bodyBytes)))
	if err != nil {
		logrus.Errorf("read body bytes err:%v", err)
		return
	}
	ctx.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))

	ip := ctx.ClientIP()

	ctx.Next()

	latency := time.Now().UTC().Sub(start)
	entry := logrus.WithField("status", ctx.Writer.Status())
	if requestID, ok := ctx.Get(RequestIDHeader); ok {
		entry = entry.WithField(RequestIDInLogName, requestID)
	}
	if value, ok := ctx.Get(GinContextErrorKey); ok {
		entry = entry.WithField("error", value)
	}
	entry.Infof("%s| %s| %s| %s |request: %s", ctx.Request.Method, latency, ip, path, request)
}

func readBody(reader io.Reader) (string, error) {
	buf := new(bytes.Buffer)
	_, err := buf.ReadFrom(reader)
	if err != nil {
		return "", errors.WithStack(err)
	}
	if buf.Len() > maxLoggedBodyBytes {
		return string(buf.Bytes()[:maxLoggedBodyBytes]) + "...(truncated)", nil
	}
	return buf.String(), nil
}

package model

import (
	"fmt"
	"net/http"
	"regexp"

	log "github.com/sirupsen/logrus"
)

const (
	ErrorParams               = 100010
	ErrorEmptyId              = 100011
	ErrorNewRepo              = 100012
	ErrorDB                   = 100015
	ErrorProfileNotFound      = 100016
	ErrorConversationNotFound = 100017
	ErrorVectorStore          = 100019
	ErrorCache                = 100021
	ErrorLLM                  = 100022
	ErrorProfileConflict      = 100023
)

var ErrorMessages = map[int]string{
	ErrorParams:               "参数错误",
	ErrorEmptyId:              "id 为空",
	ErrorNewRepo:              "新建 repo 失败",
	ErrorDB:                   "db error",
	ErrorProfileNotFound:      "用户画像不存在",
	ErrorConversationNotFound: "会话不存在",
	ErrorVectorStore:          "向量库异常",
	ErrorCache:                "短期记忆缓存异常",
	ErrorLLM:                  "大模型调用失败",
	ErrorProfileConflict:      "用户画像版本冲突",
}

type Error struct {
	Code       int    `json:"code"`
	Message    string `json:"message"`
	InnerError error  `json:"-"`
}

func (err Error) Error() string {
	return err.Message
}

func (err Error) String() string {
	if err.InnerError == nil {
		return err.Message
	}
	return err.InnerError.Error()
}

func (err Error) Unwrap() error {
	return err.InnerError
}

// HTTPStatus 错误码对应的 http 状态码
func (err Error) HTTPStatus() int {
	switch err.Code {
	case ErrorParams, ErrorEmptyId:
		return http.StatusBadRequest
	case ErrorProfileNotFound, ErrorConversationNotFound:
		return http.StatusNotFound
	case ErrorProfileConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func NewError(code int, innerError error) *Error {
	if innerError != nil {
		var re = regexp.MustCompile(`[\n\t]+`)
		innerErrorString := re.ReplaceAllString(fmt.Sprintf("%+v", innerError), " ")
		log.Errorf("NewError code:%d, message:%s, innerError:%+v\n", code, ErrorMessages[code], innerErrorString)
	}
	return &Error{
		Code:       code,
		Message:    ErrorMessages[code],
		InnerError: innerError,
	}
}

// NewErrorVerificationFailed 参数校验失败，message 直接返回给调用方
func NewErrorVerificationFailed(code int, format string, args ...interface{}) *Error {
	message := fmt.Sprintf(format, args...)
	return &Error{
		Code:       code,
		Message:    message,
		InnerError: fmt.Errorf("verification failed: %s", message),
	}
}

func NewErrorWithMessage(code int, message string) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		InnerError: nil,
	}
}

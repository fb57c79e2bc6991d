package httptool

import "net/http"

const (
	HeaderContentType       = "Content-Type"
	HeaderContentTypeStream = "text/event-stream;charset=utf-8"
	HeaderContentCache      = "Cache-Control"
	HeaderContentCacheNo    = "no-cache"
	HeaderContentConnection = "Connection"
	HeaderContentKeepAlive  = "keep-alive"
	HeaderContentTransfer   = "Transfer-Encoding"
	HeaderContentChunked    = "chunked"
)

var (
	StreamMessageStart = []byte("data: ")
	StreamMessageEnd   = []byte("\n\n")
)

// SetStreamHeaders 设置 SSE 响应头
func SetStreamHeaders(header http.Header) {
	header.Set(HeaderContentType, HeaderContentTypeStream)
	header.Set(HeaderContentCache, HeaderContentCacheNo)
	header.Set(HeaderContentConnection, HeaderContentKeepAlive)
	header.Set(HeaderContentTransfer, HeaderContentChunked)
}

// StreamFrame 拼装一帧 SSE 数据
func StreamFrame(payload []byte) []byte {
	frame := make([]byte, 0, len(StreamMessageStart)+len(payload)+len(StreamMessageEnd))
	frame = append(frame, StreamMessageStart...)
	frame = append(frame, payload...)
	return append(frame, StreamMessageEnd...)
}

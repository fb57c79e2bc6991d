package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type embeddingRequest struct {
	Input      []string `json:"input"`
	Model      string   `json:"model"`
	Dimensions int      `json:"dimensions"`
}

type EmbeddingClientTest struct {
	suite.Suite
	server   *httptest.Server
	requests atomic.Int32
	failures atomic.Int32
	lastDim  atomic.Int32
}

func (e *EmbeddingClientTest) SetupTest() {
	e.requests.Store(0)
	e.failures.Store(0)
	e.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		e.requests.Add(1)
		if e.failures.Load() > 0 {
			e.failures.Add(-1)
			http.Error(w, `{"error":{"message":"overloaded"}}`, http.StatusInternalServerError)
			return
		}

		var req embeddingRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		e.lastDim.Store(int32(req.Dimensions))

		// 倒序返回，客户端需要按 index 还原
		data := make([]map[string]any, 0, len(req.Input))
		for i := len(req.Input) - 1; i >= 0; i-- {
			data = append(data, map[string]any{
				"object":    "embedding",
				"index":     i,
				"embedding": []float64{float64(len(req.Input[i])), float64(i)},
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   data,
			"model":  req.Model,
			"usage":  map[string]int{"prompt_tokens": 1, "total_tokens": 1},
		})
	}))
}

func (e *EmbeddingClientTest) TearDownTest() {
	e.server.Close()
}

func (e *EmbeddingClientTest) newClient(cfg Config) *Client {
	cfg.APIKey = "test"
	cfg.ModelName = "text-embedding-3-small"
	cfg.BaseURL = e.server.URL + "/"
	cfg.RetryBackoff = time.Millisecond
	client, err := NewClient(cfg)
	e.Require().NoError(err)
	return client
}

func (e *EmbeddingClientTest) TestNewClient_MissingConfig() {
	_, err := NewClient(Config{ModelName: "m"})
	e.Error(err)
	_, err = NewClient(Config{APIKey: "k"})
	e.Error(err)
}

func (e *EmbeddingClientTest) TestEmbedBatch_OrderAndCache() {
	client := e.newClient(Config{})
	ctx := context.Background()

	vectors, err := client.EmbedBatch(ctx, []string{"a", "bbb", "cc"})
	e.Require().NoError(err)
	e.Require().Len(vectors, 3)
	e.Equal([]float32{1, 0}, vectors[0])
	e.Equal([]float32{3, 1}, vectors[1])
	e.Equal([]float32{2, 2}, vectors[2])
	e.Equal(int32(1), e.requests.Load())

	// 全部命中缓存，不再请求
	vector, err := client.Embed(ctx, "bbb")
	e.Require().NoError(err)
	e.Equal([]float32{3, 1}, vector)
	e.Equal(int32(1), e.requests.Load())
}

func (e *EmbeddingClientTest) TestEmbedBatch_Retry() {
	client := e.newClient(Config{MaxRetries: 3})
	e.failures.Store(2)

	vector, err := client.Embed(context.Background(), "retry")
	e.Require().NoError(err)
	e.Len(vector, 2)
	e.Equal(int32(3), e.requests.Load())
}

func (e *EmbeddingClientTest) TestEmbedBatch_RetryExhausted() {
	client := e.newClient(Config{MaxRetries: 2})
	e.failures.Store(5)

	_, err := client.Embed(context.Background(), "fail")
	e.Error(err)
	e.Equal(int32(2), e.requests.Load())
}

func (e *EmbeddingClientTest) TestEmbedBatch_Dimension() {
	client := e.newClient(Config{Dimension: 256})
	_, err := client.Embed(context.Background(), "dim")
	e.Require().NoError(err)
	e.Equal(int32(256), e.lastDim.Load())
	e.Equal(256, client.Dimension())
}

func (e *EmbeddingClientTest) TestEmbedBatch_Empty() {
	client := e.newClient(Config{})
	_, err := client.EmbedBatch(context.Background(), nil)
	e.Error(err)
}

func TestEmbeddingClient(t *testing.T) {
	suite.Run(t, new(EmbeddingClientTest))
}

package str

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "hello", TruncateRunes("  hello  ", 50))
	assert.Equal(t, "你好世", TruncateRunes("你好世界", 3))
	assert.Equal(t, "abc", TruncateRunes("abc", 0))
}

func TestMergeFold(t *testing.T) {
	merged := MergeFold([]string{"Go", "redis"}, "go", "Qdrant", "", "REDIS")
	assert.Equal(t, []string{"Go", "redis", "Qdrant"}, merged)
	assert.Empty(t, MergeFold(nil))
}

func TestRemoveFold(t *testing.T) {
	assert.Equal(t, []string{"redis"}, RemoveFold([]string{"Go", "redis"}, "GO"))
	assert.Equal(t, []string{"a"}, RemoveFold([]string{"a"}))
}

func TestFloorFloatLimitToString(t *testing.T) {
	assert.Equal(t, "0.12", FloorFloatLimitToString(0.123456, 2))
	assert.Equal(t, "", FloorFloatLimitToString(0, 2))
}

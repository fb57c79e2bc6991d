package memory

import (
	"testing"

	"github.com/parththirwani/ChatterStack-sub001/model"

	"github.com/stretchr/testify/assert"
)

func TestExtractTopics(t *testing.T) {
	topics := ExtractTopics("How do I stop a Goroutine leak when my Redis client times out?")
	assert.Equal(t, []string{"cache", "go"}, topics)

	assert.Contains(t, ExtractTopics("Any tips on machine learning with PyTorch?"), "machine learning")
	assert.Empty(t, ExtractTopics("hi there, how are you"))
}

func TestTechnicalScore(t *testing.T) {
	assert.Equal(t, 0.0, TechnicalScore(""))

	beginner := TechnicalScore("what is a computer? I am new to this")
	expert := TechnicalScore("Our raft consensus layer shows mutex contention; pprof points at the garbage collector and escape analysis of the slice")
	assert.Less(t, beginner, expert)
	assert.Equal(t, model.TechnicalLevelBeginner, LevelFromScore(beginner))
	assert.Equal(t, model.TechnicalLevelExpert, LevelFromScore(expert))
}

func TestLevelFromScore_Ordered(t *testing.T) {
	prev := -1
	for _, score := range []float64{0, 0.2, 0.4, 0.9} {
		rank := LevelFromScore(score).Rank()
		assert.Greater(t, rank, prev)
		prev = rank
	}
}

func TestStyleSignals(t *testing.T) {
	signals := StyleSignals("Can you walk me through it step by step? An example would help.")
	assert.Equal(t, 2, signals[model.ExplanationStyleStepByStep])
	assert.Equal(t, 1, signals[model.ExplanationStyleExampleDriven])

	style, ok := DominantStyle(signals)
	assert.True(t, ok)
	assert.Equal(t, model.ExplanationStyleStepByStep, style)

	_, ok = DominantStyle(StyleSignals("hello"))
	assert.False(t, ok)
}

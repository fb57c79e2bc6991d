package memory

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode"
)

const (
	DefaultChunkSize    = 600
	DefaultChunkOverlap = 100
)

// ChunkConfig 分块配置，单位为 token
type ChunkConfig struct {
	Size    int
	Overlap int
}

func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		Size:    DefaultChunkSize,
		Overlap: DefaultChunkOverlap,
	}
}

func (c ChunkConfig) Validate() error {
	if c.Size < 1 {
		return fmt.Errorf("chunk size must be greater than 0, got %d", c.Size)
	}
	if c.Overlap < 0 {
		return fmt.Errorf("chunk overlap must be greater than or equal to 0, got %d", c.Overlap)
	}
	if c.Overlap >= c.Size {
		return fmt.Errorf("chunk overlap (%d) must be less than chunk size (%d)", c.Overlap, c.Size)
	}
	return nil
}

// Fragment 消息中的一段连续文本，检索的最小单元。
// 分块只填写内容相关字段，消息、会话、用户信息由调用方补充。
type Fragment struct {
	Index      int
	Content    string
	IsCode     bool
	StartToken int
	EndToken   int

	MessageID      string
	ConversationID string
	UserID         string
	Role           string
	ModelUsed      string
	CreatedAt      time.Time
	ProfileTags    []string
}

type Chunker struct {
	config    ChunkConfig
	tokenizer Tokenizer
}

func NewChunker(config ChunkConfig, tokenizer Tokenizer) (*Chunker, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if tokenizer == nil {
		tokenizer = SimpleTokenizer{}
	}
	return &Chunker{config: config, tokenizer: tokenizer}, nil
}

func (c *Chunker) Config() ChunkConfig {
	return c.config
}

var (
	codeFencePattern      = regexp.MustCompile("(?s)```.*?```")
	paragraphBreakPattern = regexp.MustCompile(`\n\s*\n`)
)

// span 原文中的一个候选区间，字符区间 [start, end)，token 区间 [tokStart, tokEnd)
type span struct {
	start, end       int
	tokStart, tokEnd int
	isCode           bool
}

// Chunk 把消息切分为片段。
// 不超过 Size 的消息整条输出；否则先按代码块切开，文本再按段落打包，
// 单个超长段落和超长代码块按 token 窗口切分并保留 Overlap 重叠。
func (c *Chunker) Chunk(content string) []Fragment {
	tokens := c.tokenizer.Tokenize(content)
	if len(tokens) == 0 {
		return nil
	}

	if len(tokens) <= c.config.Size {
		return []Fragment{{
			Index:      0,
			Content:    content,
			IsCode:     isSingleFence(content),
			StartToken: 0,
			EndToken:   len(tokens),
		}}
	}

	var pieces []span
	for _, candidate := range splitFences(content) {
		candidate.tokStart, candidate.tokEnd = tokenRange(tokens, candidate.start, candidate.end)
		if candidate.tokEnd <= candidate.tokStart {
			continue
		}
		switch {
		case candidate.tokEnd-candidate.tokStart <= c.config.Size:
			pieces = append(pieces, candidate)
		case candidate.isCode:
			pieces = append(pieces, c.windows(tokens, candidate.tokStart, candidate.tokEnd, true)...)
		default:
			pieces = append(pieces, c.packParagraphs(content, tokens, candidate)...)
		}
	}

	fragments := make([]Fragment, 0, len(pieces))
	for _, p := range pieces {
		fragments = append(fragments, Fragment{
			Index:      len(fragments),
			Content:    content[p.start:p.end],
			IsCode:     p.isCode,
			StartToken: p.tokStart,
			EndToken:   p.tokEnd,
		})
	}
	return fragments
}

// packParagraphs 贪心地把相邻段落装进一个片段，直到下一个段落会超长
func (c *Chunker) packParagraphs(content string, tokens []Token, candidate span) []span {
	var (
		pieces []span
		group  *span
	)
	flush := func() {
		if group != nil {
			pieces = append(pieces, *group)
			group = nil
		}
	}

	for _, para := range splitParagraphs(content, candidate.start, candidate.end) {
		para.tokStart, para.tokEnd = tokenRange(tokens, para.start, para.end)
		if para.tokEnd <= para.tokStart {
			continue
		}
		if para.tokEnd-para.tokStart > c.config.Size {
			flush()
			pieces = append(pieces, c.windows(tokens, para.tokStart, para.tokEnd, false)...)
			continue
		}
		if group != nil && para.tokEnd-group.tokStart > c.config.Size {
			flush()
		}
		if group == nil {
			p := para
			group = &p
			continue
		}
		group.end = para.end
		group.tokEnd = para.tokEnd
	}
	flush()
	return pieces
}

// windows 按固定 token 窗口切分 [from, to)，相邻窗口重叠 Overlap 个 token
func (c *Chunker) windows(tokens []Token, from, to int, isCode bool) []span {
	step := c.config.Size - c.config.Overlap
	var pieces []span
	for start := from; ; start += step {
		end := start + c.config.Size
		if end > to {
			end = to
		}
		pieces = append(pieces, span{
			start:    tokens[start].Start,
			end:      tokens[end-1].End,
			tokStart: start,
			tokEnd:   end,
			isCode:   isCode,
		})
		if end == to {
			break
		}
	}
	return pieces
}

// splitFences 按 ``` 代码块切分，返回去掉首尾空白后的候选区间，保持原顺序
func splitFences(content string) []span {
	var candidates []span
	last := 0
	for _, loc := range codeFencePattern.FindAllStringIndex(content, -1) {
		if text, ok := trimmedSpan(content, last, loc[0]); ok {
			candidates = append(candidates, text)
		}
		candidates = append(candidates, span{start: loc[0], end: loc[1], isCode: true})
		last = loc[1]
	}
	if text, ok := trimmedSpan(content, last, len(content)); ok {
		candidates = append(candidates, text)
	}
	return candidates
}

// splitParagraphs 按空行切分 [start, end)
func splitParagraphs(content string, start, end int) []span {
	var paragraphs []span
	last := start
	for _, loc := range paragraphBreakPattern.FindAllStringIndex(content[start:end], -1) {
		if p, ok := trimmedSpan(content, last, start+loc[0]); ok {
			paragraphs = append(paragraphs, p)
		}
		last = start + loc[1]
	}
	if p, ok := trimmedSpan(content, last, end); ok {
		paragraphs = append(paragraphs, p)
	}
	return paragraphs
}

func trimmedSpan(content string, start, end int) (span, bool) {
	segment := content[start:end]
	trimmedLeft := strings.TrimLeftFunc(segment, unicode.IsSpace)
	if trimmedLeft == "" {
		return span{}, false
	}
	s := start + len(segment) - len(trimmedLeft)
	e := s + len(strings.TrimRightFunc(trimmedLeft, unicode.IsSpace))
	return span{start: s, end: e}, true
}

// tokenRange 起点落在 [start, end) 内的 token 区间
func tokenRange(tokens []Token, start, end int) (int, int) {
	from := sort.Search(len(tokens), func(i int) bool { return tokens[i].Start >= start })
	to := sort.Search(len(tokens), func(i int) bool { return tokens[i].Start >= end })
	return from, to
}

func isSingleFence(content string) bool {
	trimmed := strings.TrimSpace(content)
	loc := codeFencePattern.FindStringIndex(trimmed)
	return loc != nil && loc[0] == 0 && loc[1] == len(trimmed)
}


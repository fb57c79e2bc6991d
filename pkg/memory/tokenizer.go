package memory

import (
	"fmt"
	"regexp"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

const (
	TokenizerSimple   = "simple"
	TokenizerTiktoken = "tiktoken"

	DefaultTiktokenEncoding = "cl100k_base"
)

// Token 一个 token 在原文中的字节区间 [Start, End)
type Token struct {
	Start int
	End   int
}

// Tokenizer 分词器，返回 token 及其在原文中的位置
type Tokenizer interface {
	Name() string
	Tokenize(text string) []Token
}

// NewTokenizer 按名称创建分词器
func NewTokenizer(name, encoding string) (Tokenizer, error) {
	switch name {
	case "", TokenizerSimple:
		return SimpleTokenizer{}, nil
	case TokenizerTiktoken:
		return NewTiktokenTokenizer(encoding)
	default:
		return nil, fmt.Errorf("unknown tokenizer %q", name)
	}
}

// 单词（字母、数字、下划线）为一个 token，其余非空白字符各为一个 token
var simpleTokenPattern = regexp.MustCompile(`[\p{L}\p{N}_]+|[^\p{L}\p{N}_\s]`)

// SimpleTokenizer 基于正则的分词器，位置精确
type SimpleTokenizer struct{}

func (SimpleTokenizer) Name() string {
	return TokenizerSimple
}

func (SimpleTokenizer) Tokenize(text string) []Token {
	locs := simpleTokenPattern.FindAllStringIndex(text, -1)
	tokens := make([]Token, len(locs))
	for i, loc := range locs {
		tokens[i] = Token{Start: loc[0], End: loc[1]}
	}
	return tokens
}

// TiktokenTokenizer BPE 分词，token 数准确，字符位置按比例近似映射
type TiktokenTokenizer struct {
	encoding string
	enc      *tiktoken.Tiktoken
}

func NewTiktokenTokenizer(encoding string) (*TiktokenTokenizer, error) {
	if encoding == "" {
		encoding = DefaultTiktokenEncoding
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to load tiktoken encoding %s: %w", encoding, err)
	}
	return &TiktokenTokenizer{encoding: encoding, enc: enc}, nil
}

func (t *TiktokenTokenizer) Name() string {
	return TokenizerTiktoken + ":" + t.encoding
}

func (t *TiktokenTokenizer) Tokenize(text string) []Token {
	ids := t.enc.Encode(text, nil, nil)
	return proportionalTokens(text, len(ids))
}

// proportionalTokens 把 n 个 token 按比例铺在原文上，边界对齐到 rune 起点
func proportionalTokens(text string, n int) []Token {
	if n == 0 {
		return nil
	}
	length := len(text)
	tokens := make([]Token, n)
	prev := 0
	for i := 0; i < n; i++ {
		end := alignRuneStart(text, (i+1)*length/n)
		if i == n-1 {
			end = length
		}
		if end < prev {
			end = prev
		}
		tokens[i] = Token{Start: prev, End: end}
		prev = end
	}
	return tokens
}

func alignRuneStart(text string, pos int) int {
	if pos >= len(text) {
		return len(text)
	}
	for pos > 0 && !utf8.RuneStart(text[pos]) {
		pos--
	}
	return pos
}

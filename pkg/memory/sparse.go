package memory

import (
	"regexp"
	"sort"
	"strings"
	"sync"
)

// Vocabulary 进程内词表，词到 id 的双射，只增不减
type Vocabulary struct {
	mu    sync.RWMutex
	ids   map[string]uint32
	terms []string
}

func NewVocabulary() *Vocabulary {
	return &Vocabulary{ids: make(map[string]uint32)}
}

// Intern 返回词的 id，不存在时分配新 id
func (v *Vocabulary) Intern(term string) uint32 {
	v.mu.RLock()
	id, ok := v.ids[term]
	v.mu.RUnlock()
	if ok {
		return id
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if id, ok := v.ids[term]; ok {
		return id
	}
	id = uint32(len(v.terms))
	v.ids[term] = id
	v.terms = append(v.terms, term)
	return id
}

// Lookup 只查询不分配
func (v *Vocabulary) Lookup(term string) (uint32, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	id, ok := v.ids[term]
	return id, ok
}

// Term 根据 id 反查词
func (v *Vocabulary) Term(id uint32) (string, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if int(id) >= len(v.terms) {
		return "", false
	}
	return v.terms[id], true
}

func (v *Vocabulary) Size() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.terms)
}

// SparseVector 稀疏向量，Indices 升序
type SparseVector struct {
	Indices []uint32  `json:"indices"`
	Values  []float32 `json:"values"`
}

func (s SparseVector) Empty() bool {
	return len(s.Indices) == 0
}

var nonWordPattern = regexp.MustCompile(`[^\p{L}\p{N}_\s]+`)

// normalizeTerms 转小写，去掉非单词非空白字符，按空白切分
func normalizeTerms(text string) []string {
	cleaned := nonWordPattern.ReplaceAllString(strings.ToLower(text), "")
	return strings.Fields(cleaned)
}

// SparseGenerator 词频稀疏向量，权重为词频 / 总词数
type SparseGenerator struct {
	vocabulary *Vocabulary
}

func NewSparseGenerator(vocabulary *Vocabulary) *SparseGenerator {
	if vocabulary == nil {
		vocabulary = NewVocabulary()
	}
	return &SparseGenerator{vocabulary: vocabulary}
}

func (g *SparseGenerator) Vocabulary() *Vocabulary {
	return g.vocabulary
}

// Generate 生成文本的稀疏向量，新词写入词表
func (g *SparseGenerator) Generate(text string) SparseVector {
	terms := normalizeTerms(text)
	counts := make(map[uint32]int, len(terms))
	for _, term := range terms {
		counts[g.vocabulary.Intern(term)]++
	}
	return toSparseVector(counts, len(terms))
}

// GenerateQuery 生成查询用的稀疏向量，不认识的词直接忽略，不会扩充词表
func (g *SparseGenerator) GenerateQuery(text string) SparseVector {
	terms := normalizeTerms(text)
	counts := make(map[uint32]int, len(terms))
	for _, term := range terms {
		if id, ok := g.vocabulary.Lookup(term); ok {
			counts[id]++
		}
	}
	return toSparseVector(counts, len(terms))
}

func toSparseVector(counts map[uint32]int, total int) SparseVector {
	if total == 0 || len(counts) == 0 {
		return SparseVector{Indices: []uint32{}, Values: []float32{}}
	}
	indices := make([]uint32, 0, len(counts))
	for id := range counts {
		indices = append(indices, id)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })

	values := make([]float32, len(indices))
	for i, id := range indices {
		values[i] = float32(counts[id]) / float32(total)
	}
	return SparseVector{Indices: indices, Values: values}
}

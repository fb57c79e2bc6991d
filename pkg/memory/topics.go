package memory

import (
	"sort"
	"strings"

	"github.com/parththirwani/ChatterStack-sub001/model"
)

// topicLexicon 话题 -> 关键词（已归一化，小写、无标点）
var topicLexicon = map[string][]string{
	"go":               {"go", "golang", "goroutine", "goroutines", "gin", "gomod"},
	"python":           {"python", "pip", "django", "flask", "pandas", "numpy", "pytest"},
	"javascript":       {"javascript", "js", "typescript", "node", "nodejs", "npm", "react", "vue", "nextjs"},
	"rust":             {"rust", "cargo", "borrow checker", "lifetimes", "tokio"},
	"java":             {"java", "jvm", "spring", "maven", "gradle", "kotlin"},
	"database":         {"sql", "postgres", "postgresql", "mysql", "sqlite", "index", "transaction", "query planner", "orm"},
	"cache":            {"redis", "memcached", "cache", "caching", "ttl", "eviction"},
	"devops":           {"docker", "kubernetes", "k8s", "helm", "terraform", "ci", "cd", "pipeline", "deployment"},
	"cloud":            {"aws", "gcp", "azure", "s3", "lambda", "ec2"},
	"machine learning": {"machine learning", "ml", "neural network", "pytorch", "tensorflow", "training", "model", "gradient"},
	"llm":              {"llm", "gpt", "prompt", "embedding", "embeddings", "rag", "tokenizer", "fine tuning"},
	"networking":       {"tcp", "udp", "http", "grpc", "dns", "tls", "websocket", "socket"},
	"security":         {"auth", "oauth", "jwt", "encryption", "xss", "csrf", "vulnerability"},
	"frontend":         {"css", "html", "tailwind", "dom", "component", "ui"},
	"testing":          {"test", "tests", "unit test", "mock", "testify", "coverage", "benchmark"},
	"algorithms":       {"algorithm", "complexity", "big o", "sorting", "graph", "dynamic programming", "recursion", "heap"},
	"concurrency":      {"concurrency", "mutex", "lock", "race condition", "deadlock", "channel", "thread", "async"},
}

// advancedPhrases 出现即视为较深入的技术讨论
var advancedPhrases = []string{
	"lock free", "lockfree", "memory model", "cache coherence", "consensus", "raft", "paxos", "sharding",
	"escape analysis", "garbage collector", "compiler", "kernel", "syscall", "simd",
	"zero copy", "zerocopy", "backpressure", "linearizability", "idempotency", "profiling", "pprof",
	"generics", "reflection", "vectorization", "btree", "lsm", "mvcc",
}

// beginnerPhrases 初学者常见表达
var beginnerPhrases = []string{
	"what is", "new to", "beginner", "eli5", "simple terms", "explain like", "never used",
	"just started", "dont understand", "don t understand", "basics",
}

// stylePhrases 显式的讲解风格诉求
var stylePhrases = map[model.ExplanationStyle][]string{
	model.ExplanationStyleConcise:       {"briefly", "short answer", "tldr", "tl dr", "in short", "concise", "just the code", "one line"},
	model.ExplanationStyleDetailed:      {"in detail", "detailed", "deep dive", "thoroughly", "explain why", "in depth", "elaborate"},
	model.ExplanationStyleStepByStep:    {"step by step", "stepbystep", "walk me through", "steps", "one step at a time", "guide me"},
	model.ExplanationStyleExampleDriven: {"example", "examples", "show me", "sample code", "for instance", "demo"},
}

var technicalTerms = buildTechnicalTerms()

func buildTechnicalTerms() map[string]struct{} {
	terms := make(map[string]struct{})
	for _, keywords := range topicLexicon {
		for _, kw := range keywords {
			if !strings.Contains(kw, " ") {
				terms[kw] = struct{}{}
			}
		}
	}
	for _, w := range []string{"api", "function", "struct", "interface", "pointer", "latency",
		"throughput", "schema", "endpoint", "deploy", "runtime", "binary", "compile", "debug",
		"stack", "queue", "hash", "map", "slice", "array", "bug", "error", "config", "server", "client"} {
		terms[w] = struct{}{}
	}
	return terms
}

// normalizedText 归一化后用空格拼接，首尾加空格方便整词短语匹配
func normalizedText(terms []string) string {
	return " " + strings.Join(terms, " ") + " "
}

func containsPhrase(text, phrase string) bool {
	return strings.Contains(text, " "+phrase+" ")
}

func countPhrases(text string, phrases []string) int {
	n := 0
	for _, p := range phrases {
		n += strings.Count(text, " "+p+" ")
	}
	return n
}

// ExtractTopics 提取文本命中的话题，按话题名排序，去重
func ExtractTopics(text string) []string {
	joined := normalizedText(normalizeTerms(text))
	var topics []string
	for topic, keywords := range topicLexicon {
		for _, kw := range keywords {
			if containsPhrase(joined, kw) {
				topics = append(topics, topic)
				break
			}
		}
	}
	sort.Strings(topics)
	return topics
}

// TechnicalScore 文本的技术深度估计，范围 [0, 1]
func TechnicalScore(text string) float64 {
	terms := normalizeTerms(text)
	if len(terms) == 0 {
		return 0
	}
	joined := normalizedText(terms)

	hits := 0
	for _, t := range terms {
		if _, ok := technicalTerms[t]; ok {
			hits++
		}
	}
	density := float64(hits) / float64(len(terms))

	score := density * 2
	score += 0.15 * float64(countPhrases(joined, advancedPhrases))
	if strings.Contains(text, "```") || strings.Count(text, "`") >= 2 {
		score += 0.2
	}
	score -= 0.15 * float64(countPhrases(joined, beginnerPhrases))

	switch {
	case score < 0:
		return 0
	case score > 1:
		return 1
	default:
		return score
	}
}

// LevelFromScore 技术深度分数映射为等级
func LevelFromScore(score float64) model.TechnicalLevel {
	switch {
	case score < 0.15:
		return model.TechnicalLevelBeginner
	case score < 0.35:
		return model.TechnicalLevelIntermediate
	case score < 0.6:
		return model.TechnicalLevelAdvanced
	default:
		return model.TechnicalLevelExpert
	}
}

// StyleSignals 统计文本中各讲解风格的显式诉求次数
func StyleSignals(text string) map[model.ExplanationStyle]int {
	joined := normalizedText(normalizeTerms(text))
	signals := make(map[model.ExplanationStyle]int)
	for style, phrases := range stylePhrases {
		if n := countPhrases(joined, phrases); n > 0 {
			signals[style] = n
		}
	}
	return signals
}

// DominantStyle 信号最多的风格，没有信号返回 false；并列时按风格名排序取第一个
func DominantStyle(signals map[model.ExplanationStyle]int) (model.ExplanationStyle, bool) {
	best, bestCount := model.ExplanationStyle(""), 0
	for style, n := range signals {
		if n > bestCount || (n == bestCount && n > 0 && style < best) {
			best, bestCount = style, n
		}
	}
	return best, bestCount > 0
}

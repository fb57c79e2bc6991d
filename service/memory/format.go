package memory

import (
	"fmt"
	"sort"
	"strings"

	"github.com/parththirwani/ChatterStack-sub001/constant"
	"github.com/parththirwani/ChatterStack-sub001/model"
	timeutil "github.com/parththirwani/ChatterStack-sub001/pkg/time"
)

// Format 拼接成注入 prompt 的文本：先长期记忆（按分数降序），再短期对话（按时间顺序）。
// 相对日期以 GeneratedAt 为基准，同一个 context 多次格式化结果一致
func Format(rc *model.RetrievalContext) string {
	if rc == nil || (len(rc.Chunks) == 0 && len(rc.ShortTermContext) == 0) {
		return ""
	}

	var sections []string
	if len(rc.Chunks) > 0 {
		chunks := append([]model.RetrievedChunk(nil), rc.Chunks...)
		sort.SliceStable(chunks, func(i, j int) bool {
			return chunks[i].Score > chunks[j].Score
		})

		var b strings.Builder
		b.WriteString(constant.MemoryLongTermHeader)
		for i, chunk := range chunks {
			b.WriteString(fmt.Sprintf("\n%d. [%s, %s]",
				i+1,
				chunk.Timestamp.In(rc.GeneratedAt.Location()).Format(timeutil.TimeFormatCommonStyleDay),
				timeutil.RelativeDayLabel(chunk.Timestamp, rc.GeneratedAt)))
			if chunk.IsCode {
				b.WriteString(" " + constant.MemoryCodeMarker)
			}
			b.WriteString(" " + chunk.Content)
		}
		sections = append(sections, b.String())
	}

	if len(rc.ShortTermContext) > 0 {
		turns := append([]model.Turn(nil), rc.ShortTermContext...)
		sort.SliceStable(turns, func(i, j int) bool {
			return turns[i].Timestamp.Before(turns[j].Timestamp)
		})

		var b strings.Builder
		b.WriteString(constant.MemoryShortTermHeader)
		for _, turn := range turns {
			b.WriteString(fmt.Sprintf("\n%s: %s", turn.Role, turn.Content))
		}
		sections = append(sections, b.String())
	}
	return strings.Join(sections, "\n\n")
}

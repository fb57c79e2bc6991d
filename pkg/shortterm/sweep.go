package shortterm

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

// SweepJob 定时清理过期会话
type SweepJob struct {
	store Store
}

func NewSweepJob(store Store) *SweepJob {
	return &SweepJob{store: store}
}

func (j *SweepJob) Name() string {
	return "short_term_sweep"
}

func (j *SweepJob) Run(ctx context.Context) error {
	evicted, err := j.store.Sweep(ctx)
	if err != nil {
		return err
	}
	if evicted > 0 {
		log.Infof("short-term sweep evicted %d conversations", evicted)
	}
	return nil
}

// SweepSpec 把扫描间隔转换成 cron 描述符
func SweepSpec(interval time.Duration) string {
	if interval < time.Second {
		interval = DefaultSweepInterval
	}
	return fmt.Sprintf("@every %ds", int(interval/time.Second))
}

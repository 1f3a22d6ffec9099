package task

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/vic-labs/collectivo/internal/logger"
)

// ProposalExpirer 过期提案处理
type ProposalExpirer interface {
	ExpireProposals(ctx context.Context, now time.Time) (int, error)
}

// ProposalExpiryJob 提案过期任务
type ProposalExpiryJob struct {
	proposals ProposalExpirer
	interval  time.Duration
	now       func() time.Time
}

// NewProposalExpiryJob 创建提案过期任务
func NewProposalExpiryJob(proposals ProposalExpirer, intervalSeconds int) *ProposalExpiryJob {
	return &ProposalExpiryJob{
		proposals: proposals,
		interval:  time.Duration(intervalSeconds) * time.Second,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// GetName 获取任务名称
func (j *ProposalExpiryJob) GetName() string {
	return "proposal_expiry"
}

// GetSchedule 获取调度配置
func (j *ProposalExpiryJob) GetSchedule() gocron.JobDefinition {
	return gocron.DurationJob(j.interval)
}

// Execute 执行任务
func (j *ProposalExpiryJob) Execute(ctx context.Context) {
	expired, err := j.proposals.ExpireProposals(ctx, j.now())
	if err != nil {
		logger.Error("Failed to expire proposals: %v", err)
		return
	}
	if expired > 0 {
		logger.Info("Proposal expiry task completed. Rejected %d expired proposals", expired)
	}
}

// TentativeSweeper 作废超时的待确认记录
type TentativeSweeper interface {
	DropStaleTentative(ctx context.Context, cutoff time.Time) (int64, error)
}

// TentativeSweepJob 待确认记录清理任务
type TentativeSweepJob struct {
	sweeper  TentativeSweeper
	ttl      time.Duration
	interval time.Duration
	now      func() time.Time
}

// NewTentativeSweepJob 创建待确认记录清理任务
func NewTentativeSweepJob(sweeper TentativeSweeper, ttl time.Duration, intervalSeconds int) *TentativeSweepJob {
	return &TentativeSweepJob{
		sweeper:  sweeper,
		ttl:      ttl,
		interval: time.Duration(intervalSeconds) * time.Second,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// GetName 获取任务名称
func (j *TentativeSweepJob) GetName() string {
	return "tentative_sweep"
}

// GetSchedule 获取调度配置
func (j *TentativeSweepJob) GetSchedule() gocron.JobDefinition {
	return gocron.DurationJob(j.interval)
}

// Execute 执行任务，ttl 为 0 时不清理
func (j *TentativeSweepJob) Execute(ctx context.Context) {
	if j.ttl <= 0 {
		return
	}
	dropped, err := j.sweeper.DropStaleTentative(ctx, j.now().Add(-j.ttl))
	if err != nil {
		logger.Error("Failed to sweep tentative records: %v", err)
		return
	}
	if dropped > 0 {
		logger.Info("Tentative sweep completed. Dropped %d stale records", dropped)
	}
}

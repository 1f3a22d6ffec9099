package task

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/vic-labs/collectivo/internal/config"
	"github.com/vic-labs/collectivo/internal/logger"
	"github.com/vic-labs/collectivo/internal/logic"
	"github.com/vic-labs/collectivo/internal/model"
	"github.com/vic-labs/collectivo/internal/sui"
)

// EventSource 链上事件来源
type EventSource interface {
	QueryEvents(ctx context.Context, module string, cursor *sui.EventID, limit int) (*sui.EventPage, error)
}

// EventProcessor 事件处理
type EventProcessor interface {
	ProcessEvent(ctx context.Context, event *model.ChainEventModel) error
}

// ChainSyncJob 链上事件同步任务，按模块顺序拉取并处理事件
type ChainSyncJob struct {
	source    EventSource
	events    *logic.EventLogic
	processor EventProcessor
	modules   []string
	pageSize  int
	interval  time.Duration
}

// NewChainSyncJob 创建链上事件同步任务
func NewChainSyncJob(source EventSource, events *logic.EventLogic, processor EventProcessor, chain config.ChainConfig, intervalSeconds int) *ChainSyncJob {
	return &ChainSyncJob{
		source:    source,
		events:    events,
		processor: processor,
		modules:   chain.Modules,
		pageSize:  chain.PageSize,
		interval:  time.Duration(intervalSeconds) * time.Second,
	}
}

// GetName 获取任务名称
func (j *ChainSyncJob) GetName() string {
	return "chain_event_sync"
}

// GetSchedule 获取调度配置
func (j *ChainSyncJob) GetSchedule() gocron.JobDefinition {
	return gocron.DurationJob(j.interval)
}

// Execute 执行任务：先重试之前失败的事件，再同步新事件
func (j *ChainSyncJob) Execute(ctx context.Context) {
	j.retryPending(ctx)
	for _, module := range j.modules {
		n, err := j.SyncModule(ctx, module)
		if err != nil {
			logger.Error("Failed to sync module %s: %v", module, err)
			continue
		}
		if n > 0 {
			logger.Info("Synced %d new events from module %s", n, module)
		}
	}
}

// SyncModule 从游标处分页同步一个模块的事件，每页处理完后保存游标
func (j *ChainSyncJob) SyncModule(ctx context.Context, module string) (int, error) {
	saved, err := j.events.GetCursor(ctx, module)
	if err != nil {
		return 0, err
	}
	var cursor *sui.EventID
	if saved != nil {
		cursor = &sui.EventID{TxDigest: saved.TxDigest, EventSeq: saved.EventSeq}
	}

	synced := 0
	for {
		if err := ctx.Err(); err != nil {
			return synced, err
		}
		page, err := j.source.QueryEvents(ctx, module, cursor, j.pageSize)
		if err != nil {
			return synced, fmt.Errorf("failed to query events: %w", err)
		}

		for _, ev := range page.Data {
			record := &model.ChainEventModel{
				TxDigest:    ev.ID.TxDigest,
				EventSeq:    ev.ID.EventSeq,
				PackageId:   ev.PackageID,
				Module:      module,
				EventType:   ev.ShortType(),
				Sender:      ev.Sender,
				TimestampMs: ev.TimestampMs.Int64(),
				Data:        string(ev.ParsedJSON),
			}
			created, err := j.events.RecordEvent(ctx, record)
			if err != nil {
				return synced, err
			}
			if !created {
				continue
			}
			synced++
			j.process(ctx, record)
		}

		if page.NextCursor != nil {
			if err := j.events.SaveCursor(ctx, &model.SyncCursorModel{
				Module:   module,
				TxDigest: page.NextCursor.TxDigest,
				EventSeq: page.NextCursor.EventSeq,
			}); err != nil {
				return synced, err
			}
			cursor = page.NextCursor
		}
		if !page.HasNextPage || len(page.Data) == 0 {
			return synced, nil
		}
	}
}

// process 处理单个事件并记录结果，失败的事件在次数用完前留待下次重试
func (j *ChainSyncJob) process(ctx context.Context, record *model.ChainEventModel) {
	processErr := j.processor.ProcessEvent(ctx, record)
	if processErr != nil {
		if record.Attempts+1 >= logic.MaxEventAttempts {
			logger.Error("Giving up on %s event %s:%s after %d attempts: %v",
				record.EventType, record.TxDigest, record.EventSeq, record.Attempts+1, processErr)
		} else {
			logger.Warn("Failed to process %s event %s:%s: %v", record.EventType, record.TxDigest, record.EventSeq, processErr)
		}
	}
	if err := j.events.MarkProcessed(ctx, record.Id, processErr); err != nil {
		logger.Error("Failed to mark event %d: %v", record.Id, err)
	}
}

func (j *ChainSyncJob) retryPending(ctx context.Context) {
	pending, err := j.events.GetUnprocessedEvents(ctx, "", j.pageSize)
	if err != nil {
		logger.Error("Failed to load unprocessed events: %v", err)
		return
	}
	for i := range pending {
		j.process(ctx, &pending[i])
	}
}

package logic

import (
	"context"
	"errors"
	"fmt"

	"github.com/vic-labs/collectivo/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MaxEventAttempts 事件最多处理次数，用完后不再自动重试
const MaxEventAttempts = 5

// EventLogic 链上事件和同步游标
type EventLogic struct {
	db *gorm.DB
}

// NewEventLogic 创建事件业务逻辑
func NewEventLogic(db *gorm.DB) *EventLogic {
	return &EventLogic{db: db}
}

// RecordEvent 保存原始事件，已存在时返回 false
func (e *EventLogic) RecordEvent(ctx context.Context, event *model.ChainEventModel) (bool, error) {
	if err := validateEvent(event); err != nil {
		return false, err
	}
	res := e.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(event)
	if res.Error != nil {
		return false, fmt.Errorf("创建事件记录失败: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// MarkProcessed 标记事件处理结果并累计处理次数，失败时保存错误信息以便重试
func (e *EventLogic) MarkProcessed(ctx context.Context, id int64, processErr error) error {
	updates := map[string]interface{}{
		"processed":  processErr == nil,
		"last_error": "",
		"attempts":   gorm.Expr("attempts + 1"),
	}
	if processErr != nil {
		updates["last_error"] = processErr.Error()
	}
	if err := e.db.WithContext(ctx).Model(&model.ChainEventModel{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return fmt.Errorf("更新事件处理状态失败: %w", err)
	}
	return nil
}

// GetUnprocessedEvents 获取仍可重试的未处理事件，按链上顺序
func (e *EventLogic) GetUnprocessedEvents(ctx context.Context, module string, limit int) ([]model.ChainEventModel, error) {
	var events []model.ChainEventModel
	query := e.db.WithContext(ctx).Where("processed = ? AND attempts < ?", false, MaxEventAttempts)
	if module != "" {
		query = query.Where("module = ?", module)
	}
	if err := query.Order("timestamp_ms ASC").Order("id ASC").Limit(limit).Find(&events).Error; err != nil {
		return nil, fmt.Errorf("获取未处理事件失败: %w", err)
	}
	return events, nil
}

// GetCursor 获取模块同步游标，未同步过时返回 nil
func (e *EventLogic) GetCursor(ctx context.Context, module string) (*model.SyncCursorModel, error) {
	var cursor model.SyncCursorModel
	if err := e.db.WithContext(ctx).Where("module = ?", module).First(&cursor).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("获取同步游标失败: %w", err)
	}
	return &cursor, nil
}

// SaveCursor 保存模块同步游标
func (e *EventLogic) SaveCursor(ctx context.Context, cursor *model.SyncCursorModel) error {
	if err := e.db.WithContext(ctx).Save(cursor).Error; err != nil {
		return fmt.Errorf("保存同步游标失败: %w", err)
	}
	return nil
}

// Statistics 事件处理统计
func (e *EventLogic) Statistics(ctx context.Context) (map[string]int64, error) {
	var total, pending, exhausted int64
	db := e.db.WithContext(ctx).Model(&model.ChainEventModel{})
	if err := db.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("获取总事件数失败: %w", err)
	}
	if err := e.db.WithContext(ctx).Model(&model.ChainEventModel{}).Where("processed = ?", false).Count(&pending).Error; err != nil {
		return nil, fmt.Errorf("获取待处理事件数失败: %w", err)
	}
	if err := e.db.WithContext(ctx).Model(&model.ChainEventModel{}).
		Where("processed = ? AND attempts >= ?", false, MaxEventAttempts).Count(&exhausted).Error; err != nil {
		return nil, fmt.Errorf("获取放弃重试事件数失败: %w", err)
	}
	return map[string]int64{
		"total_events":     total,
		"processed_events": total - pending,
		"pending_events":   pending,
		"exhausted_events": exhausted,
	}, nil
}

// validateEvent 验证事件数据
func validateEvent(event *model.ChainEventModel) error {
	if event.TxDigest == "" {
		return errors.New("交易哈希不能为空")
	}
	if event.EventSeq == "" {
		return errors.New("事件序号不能为空")
	}
	if event.EventType == "" {
		return errors.New("事件类型不能为空")
	}
	if event.Module == "" {
		return errors.New("模块名称不能为空")
	}
	return nil
}

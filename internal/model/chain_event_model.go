package model

import (
	"time"
)

// ChainEventModel 链上事件记录
type ChainEventModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	TxDigest    string `json:"tx_digest" gorm:"not null;uniqueIndex:idx_chain_event_tx_seq"`
	EventSeq    string `json:"event_seq" gorm:"not null;uniqueIndex:idx_chain_event_tx_seq"`
	PackageId   string `json:"package_id"`
	Module      string `json:"module" gorm:"not null;index"`
	EventType   string `json:"event_type" gorm:"not null"`
	Sender      string `json:"sender"`
	TimestampMs int64  `json:"timestamp_ms"`
	Data        string `json:"data" gorm:"type:text"`
	Processed   bool   `json:"processed" gorm:"default:false"`
	Attempts    int    `json:"attempts" gorm:"not null;default:0"`
	LastError   string `json:"last_error" gorm:"type:text"`
}

// TableName 自定义表名
func (ChainEventModel) TableName() string {
	return "chain_event"
}

// SyncCursorModel 每个 Move 模块的事件同步游标
type SyncCursorModel struct {
	Module    string    `json:"module" gorm:"primaryKey"`
	UpdatedAt time.Time `json:"updated_at"`

	TxDigest string `json:"tx_digest"`
	EventSeq string `json:"event_seq"`
}

// TableName 自定义表名
func (SyncCursorModel) TableName() string {
	return "sync_cursor"
}

// All 需要迁移的全部模型
func All() []interface{} {
	return []interface{}{
		&CampaignModel{},
		&ContributionModel{},
		&WithdrawalModel{},
		&ProposalModel{},
		&VoteModel{},
		&ChainEventModel{},
		&SyncCursorModel{},
	}
}

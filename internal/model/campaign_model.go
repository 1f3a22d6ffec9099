package model

import (
	"time"

	"github.com/vic-labs/collectivo/internal/ledger"
	"gorm.io/gorm"
)

// RecordState 记录确认状态
type RecordState string

const (
	StateTentative RecordState = "tentative" // 已提交交易，等待链上确认
	StateConfirmed RecordState = "confirmed" // 已由链上事件确认
	StateDropped   RecordState = "dropped"   // 超时未确认，已作废
)

// NftStatus NFT 生命周期状态
type NftStatus string

const (
	NftStatusNone      NftStatus = "None"
	NftStatusPurchased NftStatus = "Purchased"
	NftStatusListed    NftStatus = "Listed"
	NftStatusDelisted  NftStatus = "Delisted"
)

// CampaignModel 众筹活动，SuiRaised 和 Status 仅反映已确认记录
type CampaignModel struct {
	Id        string         `json:"id" gorm:"primaryKey;size:66"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// NFT 信息
	NftId       string    `json:"nft_id" gorm:"size:66"`
	NftName     string    `json:"nft_name"`
	NftImageUrl string    `json:"nft_image_url"`
	NftType     string    `json:"nft_type"`
	NftRank     int64     `json:"nft_rank"`
	NftStatus   NftStatus `json:"nft_status" gorm:"default:'None'"`

	Description string `json:"description" gorm:"type:text"`

	// 众筹信息，单位 MIST
	Target          int64         `json:"target" gorm:"not null"`
	SuiRaised       int64         `json:"sui_raised" gorm:"default:0"`
	MinContribution int64         `json:"min_contribution" gorm:"not null"`
	Status          ledger.Status `json:"status" gorm:"default:'Active'"`

	Creator     string      `json:"creator" gorm:"not null;index"`
	TxDigest    string      `json:"tx_digest" gorm:"index"`
	State       RecordState `json:"state" gorm:"default:'tentative'"`
	CompletedAt *time.Time  `json:"completed_at"`
}

// TableName 自定义表名
func (CampaignModel) TableName() string {
	return "campaign"
}

// ToLedger 转换为账本快照
func (m CampaignModel) ToLedger() ledger.Campaign {
	return ledger.Campaign{
		ID:              m.Id,
		Target:          m.Target,
		SuiRaised:       m.SuiRaised,
		MinContribution: m.MinContribution,
		Status:          m.Status,
		Creator:         m.Creator,
		CreatedAt:       m.CreatedAt,
		CompletedAt:     m.CompletedAt,
	}
}

// NftPurchased NFT 是否已被购入（上架、下架均表示已持有）
func (m CampaignModel) NftPurchased() bool {
	return m.NftStatus == NftStatusPurchased || m.NftStatus == NftStatusListed || m.NftStatus == NftStatusDelisted
}

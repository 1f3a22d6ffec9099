package model

import (
	"time"

	"github.com/vic-labs/collectivo/internal/ledger"
)

// ContributionModel 贡献记录，只追加
type ContributionModel struct {
	Id        string    `json:"id" gorm:"primaryKey;size:36"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	CampaignId    string      `json:"campaign_id" gorm:"not null;index"`
	Contributor   string      `json:"contributor" gorm:"not null;index"`
	Amount        int64       `json:"amount" gorm:"not null"`
	TxDigest      string      `json:"tx_digest" gorm:"uniqueIndex"`
	State         RecordState `json:"state" gorm:"not null;index"`
	ContributedAt time.Time   `json:"contributed_at" gorm:"not null"`
	// ChainSeq 链上事件的入库顺序，待确认时为0
	ChainSeq      int64       `json:"chain_seq" gorm:"not null;default:0"`
}

// TableName 自定义表名
func (ContributionModel) TableName() string {
	return "contribution"
}

// ToLedger 转换为账本记录
func (m ContributionModel) ToLedger() ledger.Contribution {
	return ledger.Contribution{
		CampaignID:  m.CampaignId,
		Contributor: m.Contributor,
		Amount:      m.Amount,
		At:          m.ContributedAt,
		TxDigest:    m.TxDigest,
		Seq:         m.ChainSeq,
	}
}

// WithdrawalModel 提取记录，只追加
type WithdrawalModel struct {
	Id        string    `json:"id" gorm:"primaryKey;size:36"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	CampaignId       string      `json:"campaign_id" gorm:"not null;index"`
	Contributor      string      `json:"contributor" gorm:"not null;index"`
	Amount           int64       `json:"amount" gorm:"not null"`
	IsFullWithdrawal bool        `json:"is_full_withdrawal"`
	TxDigest         string      `json:"tx_digest" gorm:"uniqueIndex"`
	State            RecordState `json:"state" gorm:"not null;index"`
	WithdrawnAt      time.Time   `json:"withdrawn_at" gorm:"not null"`
	ChainSeq         int64       `json:"chain_seq" gorm:"not null;default:0"`
}

// TableName 自定义表名
func (WithdrawalModel) TableName() string {
	return "withdrawal"
}

// ToLedger 转换为账本记录
func (m WithdrawalModel) ToLedger() ledger.Withdrawal {
	return ledger.Withdrawal{
		CampaignID:       m.CampaignId,
		Contributor:      m.Contributor,
		Amount:           m.Amount,
		At:               m.WithdrawnAt,
		TxDigest:         m.TxDigest,
		IsFullWithdrawal: m.IsFullWithdrawal,
		Seq:              m.ChainSeq,
	}
}

package model

import (
	"time"

	"github.com/vic-labs/collectivo/internal/governance"
	"gorm.io/gorm"
)

// ProposalModel 治理提案，Status 仅反映已确认投票
type ProposalModel struct {
	Id        string         `json:"id" gorm:"primaryKey;size:36"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	ObjectId     *string                   `json:"object_id" gorm:"uniqueIndex;size:66"` // 链上对象ID，确认前为空
	CampaignId   string                    `json:"campaign_id" gorm:"not null;index"`
	Proposer     string                    `json:"proposer" gorm:"not null"`
	ProposalType governance.ProposalType   `json:"proposal_type" gorm:"not null"`
	ListPrice    int64                     `json:"list_price"`
	Status       governance.ProposalStatus `json:"status" gorm:"default:'Active'"`
	TxDigest     string                    `json:"tx_digest" gorm:"index"`
	State        RecordState               `json:"state" gorm:"not null;index"`
	EndedAt      *time.Time                `json:"ended_at"`
}

// TableName 自定义表名
func (ProposalModel) TableName() string {
	return "proposal"
}

// ToGovernance 组装提案及其投票
func (m ProposalModel) ToGovernance(votes []VoteModel) *governance.Proposal {
	p := &governance.Proposal{
		ID:         m.Id,
		CampaignID: m.CampaignId,
		Proposer:   m.Proposer,
		Type:       m.ProposalType,
		ListPrice:  m.ListPrice,
		Status:     m.Status,
		CreatedAt:  m.CreatedAt,
		EndedAt:    m.EndedAt,
		Votes:      make([]governance.Vote, 0, len(votes)),
	}
	for _, v := range votes {
		p.Votes = append(p.Votes, v.ToGovernance())
	}
	return p
}

// VoteModel 投票记录，每个提案每个地址最多一条
type VoteModel struct {
	Id        string    `json:"id" gorm:"primaryKey;size:36"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ProposalId string              `json:"proposal_id" gorm:"not null;uniqueIndex:idx_vote_proposal_voter"`
	Voter      string              `json:"voter" gorm:"not null;uniqueIndex:idx_vote_proposal_voter"`
	VoteType   governance.VoteType `json:"vote_type" gorm:"not null"`
	Weight     int64               `json:"weight" gorm:"not null"`
	TxDigest   string              `json:"tx_digest" gorm:"index"`
	State      RecordState         `json:"state" gorm:"not null;index"`
	VotedAt    time.Time           `json:"voted_at" gorm:"not null"`
}

// TableName 自定义表名
func (VoteModel) TableName() string {
	return "vote"
}

// ToGovernance 转换为投票
func (m VoteModel) ToGovernance() governance.Vote {
	return governance.Vote{
		ProposalID: m.ProposalId,
		Voter:      m.Voter,
		Type:       m.VoteType,
		Weight:     m.Weight,
		At:         m.VotedAt,
	}
}

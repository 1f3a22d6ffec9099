package governance

import (
	"time"

	"github.com/vic-labs/collectivo/internal/ledger"
)

// ProposalType 提案类型
type ProposalType string

const (
	ProposalList   ProposalType = "List"   // 挂单出售 NFT
	ProposalDelist ProposalType = "Delist" // 撤销挂单
)

// Valid 是否为已知类型
func (t ProposalType) Valid() bool {
	return t == ProposalList || t == ProposalDelist
}

// ProposalStatus 提案状态
type ProposalStatus string

const (
	ProposalActive   ProposalStatus = "Active"
	ProposalPassed   ProposalStatus = "Passed"
	ProposalRejected ProposalStatus = "Rejected"
)

// IsTerminal 终态不再变化
func (s ProposalStatus) IsTerminal() bool {
	return s == ProposalPassed || s == ProposalRejected
}

// VoteType 投票类型
type VoteType string

const (
	VoteApproval  VoteType = "Approval"
	VoteRejection VoteType = "Rejection"
)

// Valid 是否为已知类型
func (t VoteType) Valid() bool {
	return t == VoteApproval || t == VoteRejection
}

// Vote 投票记录，Weight 为投票时的份额
type Vote struct {
	ProposalID string    `json:"proposalId"`
	Voter      string    `json:"voter"`
	Type       VoteType  `json:"voteType"`
	Weight     int64     `json:"weight"`
	At         time.Time `json:"votedAt"`
}

// Proposal 治理提案
type Proposal struct {
	ID         string         `json:"id"`
	CampaignID string         `json:"campaignId"`
	Proposer   string         `json:"proposer"`
	Type       ProposalType   `json:"proposalType"`
	ListPrice  int64          `json:"listPrice,omitempty"`
	Status     ProposalStatus `json:"status"`
	CreatedAt  time.Time      `json:"createdAt"`
	EndedAt    *time.Time     `json:"endedAt"`
	Votes      []Vote         `json:"votes"`
}

// VoteOf 返回某地址的投票
func (p *Proposal) VoteOf(voter string) (Vote, bool) {
	for _, v := range p.Votes {
		if v.Voter == voter {
			return v, true
		}
	}
	return Vote{}, false
}

// Clone 深拷贝
func (p *Proposal) Clone() *Proposal {
	cp := *p
	cp.Votes = append([]Vote(nil), p.Votes...)
	if p.EndedAt != nil {
		t := *p.EndedAt
		cp.EndedAt = &t
	}
	return &cp
}

// CampaignState 创建提案时需要的活动状态
type CampaignState struct {
	Campaign     ledger.Campaign
	NftPurchased bool
}

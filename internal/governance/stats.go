package governance

import (
	"github.com/shopspring/decimal"
	"github.com/vic-labs/collectivo/internal/ledger"
)

// VoteStats 提案投票统计
type VoteStats struct {
	TotalVotes          int             `json:"totalVotes"`
	ApprovalVotes       []Vote          `json:"approvalVotes"`
	RejectionVotes      []Vote          `json:"rejectionVotes"`
	ApprovalPower       int64           `json:"approvalPower"`
	RejectionPower      int64           `json:"rejectionPower"`
	TotalPower          int64           `json:"totalPower"`
	ApprovalPercentage  decimal.Decimal `json:"approvalPercentage"`
	RejectionPercentage decimal.Decimal `json:"rejectionPercentage"`
	UserVote            *Vote           `json:"userVote"`
}

var hundred = decimal.NewFromInt(100)

// Stats 统计投票结果，纯函数；百分比保留两位小数并向下取整
func Stats(p *Proposal, stakes ledger.Stakes, votingUser string) VoteStats {
	s := VoteStats{
		TotalVotes:     len(p.Votes),
		ApprovalVotes:  []Vote{},
		RejectionVotes: []Vote{},
		TotalPower:     stakes.Total(),
	}
	for _, v := range p.Votes {
		switch v.Type {
		case VoteApproval:
			s.ApprovalVotes = append(s.ApprovalVotes, v)
			s.ApprovalPower += v.Weight
		case VoteRejection:
			s.RejectionVotes = append(s.RejectionVotes, v)
			s.RejectionPower += v.Weight
		}
		if votingUser != "" && v.Voter == votingUser {
			uv := v
			s.UserVote = &uv
		}
	}
	s.ApprovalPercentage = percentage(s.ApprovalPower, s.TotalPower)
	s.RejectionPercentage = percentage(s.RejectionPower, s.TotalPower)
	return s
}

func percentage(power, total int64) decimal.Decimal {
	if total <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(power).Mul(hundred).Div(decimal.NewFromInt(total)).RoundDown(2)
}

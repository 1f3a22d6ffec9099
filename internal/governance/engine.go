package governance

import (
	"time"

	"github.com/vic-labs/collectivo/internal/ledger"
)

// CreateProposal 创建提案并记录提案人的隐式赞成票，提案人份额过半时立即通过
func CreateProposal(state CampaignState, stakes ledger.Stakes, id, proposer string,
	proposalType ProposalType, listPrice int64, at time.Time) (*Proposal, error) {
	c := state.Campaign
	if c.Status != ledger.StatusCompleted || !state.NftPurchased {
		return nil, ledger.NewError(ledger.KindCampaignNotCompleted, "proposals require a completed campaign with a purchased NFT",
			map[string]any{"status": c.Status, "nftPurchased": state.NftPurchased})
	}
	weight := stakes.Of(proposer)
	if weight <= 0 {
		return nil, ledger.NewError(ledger.KindNotAContributor, "proposer has no stake in the campaign",
			map[string]any{"proposer": proposer})
	}
	switch proposalType {
	case ProposalList:
		if listPrice <= 0 {
			return nil, ledger.NewError(ledger.KindInvalidListPrice, "list proposals need a positive price",
				map[string]any{"listPrice": listPrice})
		}
	case ProposalDelist:
		listPrice = 0
	default:
		return nil, ledger.NewError(ledger.KindInvalidProposalType, "unknown proposal type",
			map[string]any{"proposalType": proposalType})
	}

	p := &Proposal{
		ID:         id,
		CampaignID: c.ID,
		Proposer:   proposer,
		Type:       proposalType,
		ListPrice:  listPrice,
		Status:     ProposalActive,
		CreatedAt:  at,
		Votes: []Vote{{
			ProposalID: id,
			Voter:      proposer,
			Type:       VoteApproval,
			Weight:     weight,
			At:         at,
		}},
	}
	Resolve(p, stakes, at)
	return p, nil
}

// CastVote 校验并追加一票，然后重新判定提案状态；校验失败时提案不变
func CastVote(p *Proposal, stakes ledger.Stakes, voter string, voteType VoteType, at time.Time) (Vote, error) {
	if !voteType.Valid() {
		return Vote{}, ledger.NewError(ledger.KindInvalidVoteType, "unknown vote type",
			map[string]any{"voteType": voteType})
	}
	weight := stakes.Of(voter)
	if weight <= 0 {
		return Vote{}, ledger.NewError(ledger.KindNotAContributor, "voter has no stake in the campaign",
			map[string]any{"voter": voter})
	}
	if p.Status != ProposalActive {
		return Vote{}, ledger.NewError(ledger.KindProposalNotActive, "proposal is no longer accepting votes",
			map[string]any{"status": p.Status})
	}
	if existing, ok := p.VoteOf(voter); ok {
		return Vote{}, ledger.NewError(ledger.KindDuplicateVote, "voter has already voted on this proposal",
			map[string]any{"voter": voter, "voteType": existing.Type})
	}

	v := Vote{ProposalID: p.ID, Voter: voter, Type: voteType, Weight: weight, At: at}
	p.Votes = append(p.Votes, v)
	Resolve(p, stakes, at)
	return v, nil
}

// ApplyVote 记录链上已确认的投票，不做资格校验，仍保证每人一票
func ApplyVote(p *Proposal, stakes ledger.Stakes, v Vote) error {
	if _, ok := p.VoteOf(v.Voter); ok {
		return ledger.NewError(ledger.KindDuplicateVote, "voter has already voted on this proposal",
			map[string]any{"voter": v.Voter})
	}
	if v.Weight <= 0 {
		v.Weight = stakes.Of(v.Voter)
	}
	v.ProposalID = p.ID
	p.Votes = append(p.Votes, v)
	Resolve(p, stakes, v.At)
	return nil
}

// Resolve 按加权多数判定状态，超过总权重一半即进入终态；返回状态是否改变
func Resolve(p *Proposal, stakes ledger.Stakes, at time.Time) bool {
	if p.Status != ProposalActive {
		return false
	}
	total := stakes.Total()
	if total <= 0 {
		return false
	}
	approval, rejection := tally(p.Votes)
	switch {
	case approval*2 > total:
		p.Status = ProposalPassed
	case rejection*2 > total:
		p.Status = ProposalRejected
	default:
		return false
	}
	endedAt := at
	p.EndedAt = &endedAt
	return true
}

// Expire 超过有效期仍未形成多数的提案判定为否决；ttl<=0 表示永不过期
func Expire(p *Proposal, ttl time.Duration, now time.Time) bool {
	if ttl <= 0 || p.Status != ProposalActive {
		return false
	}
	if now.Sub(p.CreatedAt) < ttl {
		return false
	}
	endedAt := now
	p.Status = ProposalRejected
	p.EndedAt = &endedAt
	return true
}

func tally(votes []Vote) (approval, rejection int64) {
	for _, v := range votes {
		switch v.Type {
		case VoteApproval:
			approval += v.Weight
		case VoteRejection:
			rejection += v.Weight
		}
	}
	return approval, rejection
}

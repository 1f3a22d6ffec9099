package event

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vic-labs/collectivo/internal/governance"
	"github.com/vic-labs/collectivo/internal/logic"
	"github.com/vic-labs/collectivo/internal/model"
	"github.com/vic-labs/collectivo/internal/sui"
)

// CampaignStore 活动相关的链上事实写入
type CampaignStore interface {
	ApplyCampaignCreated(ctx context.Context, fact logic.CampaignFact) error
	ApplyContribution(ctx context.Context, fact logic.ContributionFact) error
	ApplyWithdrawal(ctx context.Context, fact logic.WithdrawalFact) error
	CheckCompleted(ctx context.Context, campaignID string) error
	ApplyCampaignDeleted(ctx context.Context, campaignID string) error
	ApplyNftStatus(ctx context.Context, campaignID string, status model.NftStatus) error
}

// ProposalStore 提案相关的链上事实写入
type ProposalStore interface {
	ApplyProposalCreated(ctx context.Context, fact logic.ProposalFact) error
	ApplyVote(ctx context.Context, fact logic.VoteFact) error
	ApplyProposalResolved(ctx context.Context, objectID string, status governance.ProposalStatus, at time.Time) error
	ApplyProposalDeleted(ctx context.Context, objectID string) error
}

// ObjectFetcher 读取链上对象
type ObjectFetcher interface {
	GetObject(ctx context.Context, id string) (*sui.ObjectData, error)
}

type campaignPayload struct {
	CampaignID string `json:"campaign_id"`
}

type contributionPayload struct {
	CampaignID  string  `json:"campaign_id"`
	Amount      sui.U64 `json:"amount"`
	Contributor string  `json:"contributor"`
	IsNew       bool    `json:"is_new"`
}

type withdrawPayload struct {
	CampaignID       string  `json:"campaign_id"`
	Amount           sui.U64 `json:"amount"`
	IsFullWithdrawal bool    `json:"is_full_withdrawal"`
	Contributor      string  `json:"contributor"`
}

type proposalPayload struct {
	ProposalID string `json:"proposal_id"`
}

type votedPayload struct {
	ProposalID string       `json:"proposal_id"`
	Voter      string       `json:"voter"`
	VoteType   sui.MoveEnum `json:"vote_type"`
}

// campaignObject campaign::Campaign 对象字段
type campaignObject struct {
	ID              sui.UID                   `json:"id"`
	NFT             sui.MoveStruct[nftObject] `json:"nft"`
	Description     string                    `json:"description"`
	Target          sui.U64                   `json:"target"`
	MinContribution sui.U64                   `json:"min_contribution"`
	Creator         string                    `json:"creator"`
	CreatedAt       sui.U64                   `json:"created_at"`
}

type nftObject struct {
	NftID       string  `json:"nft_id"`
	ImageURL    string  `json:"image_url"`
	Rank        sui.U64 `json:"rank"`
	IsPurchased bool    `json:"is_purchased"`
	IsListed    bool    `json:"is_listed"`
	NftType     string  `json:"nft_type"`
	Name        string  `json:"name"`
}

// status 由对象上的标志推出 NFT 状态，撤销挂单与已购入无法区分
func (n nftObject) status() model.NftStatus {
	switch {
	case n.IsPurchased && n.IsListed:
		return model.NftStatusListed
	case n.IsPurchased:
		return model.NftStatusPurchased
	default:
		return model.NftStatusNone
	}
}

// proposalObject proposal::Proposal 对象字段
type proposalObject struct {
	ID           sui.UID      `json:"id"`
	CampaignID   string       `json:"campaign_id"`
	Proposer     string       `json:"proposer"`
	ProposalType sui.MoveEnum `json:"proposal_type"`
	Status       sui.MoveEnum `json:"status"`
	CreatedAt    sui.U64      `json:"created_at"`
}

func (p proposalObject) listPrice() (int64, error) {
	if p.ProposalType.Variant != string(governance.ProposalList) || len(p.ProposalType.Fields) == 0 {
		return 0, nil
	}
	var fields struct {
		Price sui.U64 `json:"price"`
	}
	if err := json.Unmarshal(p.ProposalType.Fields, &fields); err != nil {
		return 0, fmt.Errorf("invalid list price: %w", err)
	}
	return fields.Price.Int64(), nil
}

func decodePayload(event *model.ChainEventModel, v interface{}) error {
	if err := json.Unmarshal([]byte(event.Data), v); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", event.EventType, err)
	}
	return nil
}

func eventTime(event *model.ChainEventModel) time.Time {
	return time.UnixMilli(event.TimestampMs).UTC()
}

func millisOr(ms sui.U64, fallback time.Time) time.Time {
	if ms == 0 {
		return fallback
	}
	return time.UnixMilli(ms.Int64()).UTC()
}

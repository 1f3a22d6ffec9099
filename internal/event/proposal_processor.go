package event

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/vic-labs/collectivo/internal/governance"
	"github.com/vic-labs/collectivo/internal/logger"
	"github.com/vic-labs/collectivo/internal/logic"
	"github.com/vic-labs/collectivo/internal/model"
	"github.com/vic-labs/collectivo/internal/sui"
)

// ProposalCreatedProcessor 提案创建事件处理器，读取提案对象补全字段
type ProposalCreatedProcessor struct {
	proposals ProposalStore
	fetcher   ObjectFetcher
}

// NewProposalCreatedProcessor 创建提案创建事件处理器
func NewProposalCreatedProcessor(proposals ProposalStore, fetcher ObjectFetcher) *ProposalCreatedProcessor {
	return &ProposalCreatedProcessor{proposals: proposals, fetcher: fetcher}
}

func (p *ProposalCreatedProcessor) GetEventType() string { return "ProposalCreatedEvent" }

// Process 处理提案创建事件
func (p *ProposalCreatedProcessor) Process(ctx context.Context, event *model.ChainEventModel) error {
	var payload proposalPayload
	if err := decodePayload(event, &payload); err != nil {
		return err
	}

	obj, err := p.fetcher.GetObject(ctx, payload.ProposalID)
	if err != nil {
		if errors.Is(err, sui.ErrObjectNotFound) {
			logger.Warn("Proposal object %s no longer exists, skipping creation", payload.ProposalID)
			return nil
		}
		return err
	}
	var fields proposalObject
	if err := obj.DecodeFields(&fields); err != nil {
		return fmt.Errorf("failed to decode proposal %s: %w", payload.ProposalID, err)
	}
	price, err := fields.listPrice()
	if err != nil {
		return err
	}

	fact := logic.ProposalFact{
		ObjectId:     payload.ProposalID,
		CampaignId:   fields.CampaignID,
		Proposer:     fields.Proposer,
		ProposalType: governance.ProposalType(fields.ProposalType.Variant),
		ListPrice:    price,
		TxDigest:     event.TxDigest,
		CreatedAt:    millisOr(fields.CreatedAt, eventTime(event)),
	}
	if err := p.proposals.ApplyProposalCreated(ctx, fact); err != nil {
		return err
	}
	logger.Info("Processed %s proposal %s on campaign %s", fact.ProposalType, payload.ProposalID, fact.CampaignId)
	return nil
}

// ProposalVotedProcessor 投票事件处理器
type ProposalVotedProcessor struct {
	proposals ProposalStore
}

// NewProposalVotedProcessor 创建投票事件处理器
func NewProposalVotedProcessor(proposals ProposalStore) *ProposalVotedProcessor {
	return &ProposalVotedProcessor{proposals: proposals}
}

func (p *ProposalVotedProcessor) GetEventType() string { return "ProposalVotedEvent" }

// Process 处理投票事件
func (p *ProposalVotedProcessor) Process(ctx context.Context, event *model.ChainEventModel) error {
	var payload votedPayload
	if err := decodePayload(event, &payload); err != nil {
		return err
	}
	voteType := governance.VoteType(payload.VoteType.Variant)
	if !voteType.Valid() {
		return fmt.Errorf("unknown vote type %q on proposal %s", payload.VoteType.Variant, payload.ProposalID)
	}
	if err := p.proposals.ApplyVote(ctx, logic.VoteFact{
		ProposalObjectId: payload.ProposalID,
		Voter:            payload.Voter,
		VoteType:         voteType,
		TxDigest:         event.TxDigest,
		At:               eventTime(event),
	}); err != nil {
		return err
	}
	logger.Info("Processed %s vote by %s on proposal %s", voteType, payload.Voter, payload.ProposalID)
	return nil
}

// ProposalResolvedProcessor 提案通过或否决事件处理器
type ProposalResolvedProcessor struct {
	proposals ProposalStore
	eventType string
	status    governance.ProposalStatus
}

// NewProposalResolvedProcessor 创建提案结束事件处理器，状态由事件名推出
func NewProposalResolvedProcessor(proposals ProposalStore, eventType string) *ProposalResolvedProcessor {
	status := governance.ProposalRejected
	if strings.HasPrefix(eventType, "ProposalPassed") {
		status = governance.ProposalPassed
	}
	return &ProposalResolvedProcessor{proposals: proposals, eventType: eventType, status: status}
}

func (p *ProposalResolvedProcessor) GetEventType() string { return p.eventType }

// Process 处理提案结束事件
func (p *ProposalResolvedProcessor) Process(ctx context.Context, event *model.ChainEventModel) error {
	var payload proposalPayload
	if err := decodePayload(event, &payload); err != nil {
		return err
	}
	return p.proposals.ApplyProposalResolved(ctx, payload.ProposalID, p.status, eventTime(event))
}

// ProposalDeletedProcessor 提案删除事件处理器
type ProposalDeletedProcessor struct {
	proposals ProposalStore
}

// NewProposalDeletedProcessor 创建提案删除事件处理器
func NewProposalDeletedProcessor(proposals ProposalStore) *ProposalDeletedProcessor {
	return &ProposalDeletedProcessor{proposals: proposals}
}

func (p *ProposalDeletedProcessor) GetEventType() string { return "ProposalDeletedEvent" }

// Process 处理提案删除事件
func (p *ProposalDeletedProcessor) Process(ctx context.Context, event *model.ChainEventModel) error {
	var payload proposalPayload
	if err := decodePayload(event, &payload); err != nil {
		return err
	}
	if err := p.proposals.ApplyProposalDeleted(ctx, payload.ProposalID); err != nil {
		return err
	}
	logger.Info("Processed proposal deletion %s", payload.ProposalID)
	return nil
}

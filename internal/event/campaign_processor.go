package event

import (
	"context"
	"errors"
	"fmt"

	"github.com/vic-labs/collectivo/internal/logger"
	"github.com/vic-labs/collectivo/internal/logic"
	"github.com/vic-labs/collectivo/internal/model"
	"github.com/vic-labs/collectivo/internal/sui"
)

// CampaignCreatedProcessor 活动创建事件处理器，读取活动对象补全字段
type CampaignCreatedProcessor struct {
	campaigns CampaignStore
	fetcher   ObjectFetcher
}

// NewCampaignCreatedProcessor 创建活动创建事件处理器
func NewCampaignCreatedProcessor(campaigns CampaignStore, fetcher ObjectFetcher) *CampaignCreatedProcessor {
	return &CampaignCreatedProcessor{campaigns: campaigns, fetcher: fetcher}
}

func (p *CampaignCreatedProcessor) GetEventType() string { return "NewCampaignEvent" }

// Process 处理活动创建事件
func (p *CampaignCreatedProcessor) Process(ctx context.Context, event *model.ChainEventModel) error {
	var payload campaignPayload
	if err := decodePayload(event, &payload); err != nil {
		return err
	}

	obj, err := p.fetcher.GetObject(ctx, payload.CampaignID)
	if err != nil {
		if errors.Is(err, sui.ErrObjectNotFound) {
			// 对象已被删除，后续的删除事件会处理
			logger.Warn("Campaign object %s no longer exists, skipping creation", payload.CampaignID)
			return nil
		}
		return err
	}
	var fields campaignObject
	if err := obj.DecodeFields(&fields); err != nil {
		return fmt.Errorf("failed to decode campaign %s: %w", payload.CampaignID, err)
	}

	nft := fields.NFT.Fields
	fact := logic.CampaignFact{
		CreateCampaignRequest: logic.CreateCampaignRequest{
			Id:              payload.CampaignID,
			NftId:           nft.NftID,
			NftName:         nft.Name,
			NftImageUrl:     nft.ImageURL,
			NftType:         nft.NftType,
			NftRank:         nft.Rank.Int64(),
			Description:     fields.Description,
			Target:          fields.Target.Int64(),
			MinContribution: fields.MinContribution.Int64(),
			Creator:         fields.Creator,
			TxDigest:        event.TxDigest,
		},
		NftStatus: nft.status(),
		CreatedAt: millisOr(fields.CreatedAt, eventTime(event)),
	}
	if err := p.campaigns.ApplyCampaignCreated(ctx, fact); err != nil {
		return err
	}
	logger.Info("Processed campaign creation %s (target %d)", payload.CampaignID, fact.Target)
	return nil
}

// ContributionProcessor 贡献事件处理器
type ContributionProcessor struct {
	campaigns CampaignStore
}

// NewContributionProcessor 创建贡献事件处理器
func NewContributionProcessor(campaigns CampaignStore) *ContributionProcessor {
	return &ContributionProcessor{campaigns: campaigns}
}

func (p *ContributionProcessor) GetEventType() string { return "NewContributionEvent" }

// Process 处理贡献事件
func (p *ContributionProcessor) Process(ctx context.Context, event *model.ChainEventModel) error {
	var payload contributionPayload
	if err := decodePayload(event, &payload); err != nil {
		return err
	}
	if err := p.campaigns.ApplyContribution(ctx, logic.ContributionFact{
		CampaignId:  payload.CampaignID,
		Contributor: payload.Contributor,
		Amount:      payload.Amount.Int64(),
		TxDigest:    event.TxDigest,
		At:          eventTime(event),
		Seq:         event.Id,
	}); err != nil {
		return err
	}
	logger.Info("Processed contribution: %d MIST from %s to campaign %s",
		payload.Amount, payload.Contributor, payload.CampaignID)
	return nil
}

// WithdrawProcessor 提取事件处理器
type WithdrawProcessor struct {
	campaigns CampaignStore
}

// NewWithdrawProcessor 创建提取事件处理器
func NewWithdrawProcessor(campaigns CampaignStore) *WithdrawProcessor {
	return &WithdrawProcessor{campaigns: campaigns}
}

func (p *WithdrawProcessor) GetEventType() string { return "WithdrawEvent" }

// Process 处理提取事件
func (p *WithdrawProcessor) Process(ctx context.Context, event *model.ChainEventModel) error {
	var payload withdrawPayload
	if err := decodePayload(event, &payload); err != nil {
		return err
	}
	if err := p.campaigns.ApplyWithdrawal(ctx, logic.WithdrawalFact{
		CampaignId:  payload.CampaignID,
		Contributor: payload.Contributor,
		Amount:      payload.Amount.Int64(),
		TxDigest:    event.TxDigest,
		At:          eventTime(event),
		Seq:         event.Id,
	}); err != nil {
		return err
	}
	logger.Info("Processed withdrawal: %d MIST by %s from campaign %s (full=%t)",
		payload.Amount, payload.Contributor, payload.CampaignID, payload.IsFullWithdrawal)
	return nil
}

// CampaignCompletedProcessor 活动完成事件，只做一致性检查
type CampaignCompletedProcessor struct {
	campaigns CampaignStore
}

// NewCampaignCompletedProcessor 创建活动完成事件处理器
func NewCampaignCompletedProcessor(campaigns CampaignStore) *CampaignCompletedProcessor {
	return &CampaignCompletedProcessor{campaigns: campaigns}
}

func (p *CampaignCompletedProcessor) GetEventType() string { return "CampaignCompletedEvent" }

// Process 处理活动完成事件
func (p *CampaignCompletedProcessor) Process(ctx context.Context, event *model.ChainEventModel) error {
	var payload campaignPayload
	if err := decodePayload(event, &payload); err != nil {
		return err
	}
	return p.campaigns.CheckCompleted(ctx, payload.CampaignID)
}

// CampaignDeletedProcessor 活动删除事件处理器
type CampaignDeletedProcessor struct {
	campaigns CampaignStore
}

// NewCampaignDeletedProcessor 创建活动删除事件处理器
func NewCampaignDeletedProcessor(campaigns CampaignStore) *CampaignDeletedProcessor {
	return &CampaignDeletedProcessor{campaigns: campaigns}
}

func (p *CampaignDeletedProcessor) GetEventType() string { return "CampaignDeletedEvent" }

// Process 处理活动删除事件
func (p *CampaignDeletedProcessor) Process(ctx context.Context, event *model.ChainEventModel) error {
	var payload campaignPayload
	if err := decodePayload(event, &payload); err != nil {
		return err
	}
	if err := p.campaigns.ApplyCampaignDeleted(ctx, payload.CampaignID); err != nil {
		return err
	}
	logger.Info("Processed campaign deletion %s", payload.CampaignID)
	return nil
}

// NftStatusProcessor NFT 购入、挂单、撤单事件处理器
type NftStatusProcessor struct {
	campaigns CampaignStore
	eventType string
	status    model.NftStatus
}

// NewNftStatusProcessor 创建 NFT 状态事件处理器
func NewNftStatusProcessor(campaigns CampaignStore, eventType string, status model.NftStatus) *NftStatusProcessor {
	return &NftStatusProcessor{campaigns: campaigns, eventType: eventType, status: status}
}

func (p *NftStatusProcessor) GetEventType() string { return p.eventType }

// Process 处理 NFT 状态事件
func (p *NftStatusProcessor) Process(ctx context.Context, event *model.ChainEventModel) error {
	var payload campaignPayload
	if err := decodePayload(event, &payload); err != nil {
		return err
	}
	if err := p.campaigns.ApplyNftStatus(ctx, payload.CampaignID, p.status); err != nil {
		return err
	}
	logger.Info("Updated campaign %s NFT status to %s", payload.CampaignID, p.status)
	return nil
}

package logic

import (
	"errors"
	"fmt"
	"sort"

	"github.com/vic-labs/collectivo/internal/governance"
	"github.com/vic-labs/collectivo/internal/ledger"
	"github.com/vic-labs/collectivo/internal/logger"
	"github.com/vic-labs/collectivo/internal/model"
	"gorm.io/gorm"
)

var (
	ErrCampaignNotFound = errors.New("众筹活动不存在")
	ErrProposalNotFound = errors.New("提案不存在")
	ErrCampaignExists   = errors.New("众筹活动已存在")
	ErrDuplicateTx      = errors.New("交易已记录")
	ErrInvalidRequest   = errors.New("请求参数无效")
)

// campaignView 活动的已确认视图和预估视图（已确认 + 待确认）
type campaignView struct {
	campaign  model.CampaignModel
	confirmed *ledger.Ledger
	projected *ledger.Ledger
}

var liveStates = []model.RecordState{model.StateConfirmed, model.StateTentative}

func findCampaign(tx *gorm.DB, id string) (*model.CampaignModel, error) {
	var campaign model.CampaignModel
	err := tx.Where("id = ? AND state <> ?", id, model.StateDropped).First(&campaign).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCampaignNotFound
		}
		return nil, fmt.Errorf("获取众筹活动失败: %w", err)
	}
	return &campaign, nil
}

func loadCampaignView(tx *gorm.DB, id string) (*campaignView, error) {
	campaign, err := findCampaign(tx, id)
	if err != nil {
		return nil, err
	}

	var contributions []model.ContributionModel
	if err := tx.Where("campaign_id = ? AND state IN ?", id, liveStates).
		Order("contributed_at ASC").Order("chain_seq ASC").Order("created_at ASC").
		Find(&contributions).Error; err != nil {
		return nil, fmt.Errorf("获取贡献记录失败: %w", err)
	}
	var withdrawals []model.WithdrawalModel
	if err := tx.Where("campaign_id = ? AND state IN ?", id, liveStates).
		Order("withdrawn_at ASC").Order("chain_seq ASC").Order("created_at ASC").
		Find(&withdrawals).Error; err != nil {
		return nil, fmt.Errorf("获取提取记录失败: %w", err)
	}

	var confirmedC, pendingC []ledger.Contribution
	for _, m := range contributions {
		if m.State == model.StateConfirmed {
			confirmedC = append(confirmedC, m.ToLedger())
		} else {
			pendingC = append(pendingC, m.ToLedger())
		}
	}
	var confirmedW, pendingW []ledger.Withdrawal
	for _, m := range withdrawals {
		if m.State == model.StateConfirmed {
			confirmedW = append(confirmedW, m.ToLedger())
		} else {
			pendingW = append(pendingW, m.ToLedger())
		}
	}

	snapshot := campaign.ToLedger()
	confirmed, err := ledger.Replay(snapshot, confirmedC, confirmedW)
	if err != nil {
		return nil, fmt.Errorf("重放活动 %s 已确认记录失败: %w", id, err)
	}
	projected, _ := ledger.Replay(snapshot, confirmedC, confirmedW)
	for _, e := range ledger.Order(pendingC, pendingW) {
		// 待确认记录可能已被链上状态淘汰，跳过即可
		if err := projected.Apply(e); err != nil {
			logger.Warn("Skipping tentative record in campaign %s projection: %v", id, err)
		}
	}

	return &campaignView{campaign: *campaign, confirmed: confirmed, projected: projected}, nil
}

// saveConfirmedAggregate 将已确认视图的聚合值写回活动行
func saveConfirmedAggregate(tx *gorm.DB, view *campaignView) error {
	snap := view.confirmed.Snapshot()
	return tx.Model(&model.CampaignModel{}).Where("id = ?", view.campaign.Id).Updates(map[string]interface{}{
		"sui_raised":   snap.SuiRaised,
		"status":       snap.Status,
		"completed_at": snap.CompletedAt,
	}).Error
}

func findProposal(tx *gorm.DB, id string) (*model.ProposalModel, error) {
	var proposal model.ProposalModel
	err := tx.Where("id = ? AND state <> ?", id, model.StateDropped).First(&proposal).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProposalNotFound
		}
		return nil, fmt.Errorf("获取提案失败: %w", err)
	}
	return &proposal, nil
}

func findProposalByObject(tx *gorm.DB, objectID string) (*model.ProposalModel, error) {
	var proposal model.ProposalModel
	err := tx.Where("object_id = ?", objectID).First(&proposal).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProposalNotFound
		}
		return nil, fmt.Errorf("获取提案失败: %w", err)
	}
	return &proposal, nil
}

func loadVotes(tx *gorm.DB, proposalID string) ([]model.VoteModel, error) {
	var votes []model.VoteModel
	if err := tx.Where("proposal_id = ? AND state IN ?", proposalID, liveStates).
		Order("voted_at ASC").Order("created_at ASC").
		Find(&votes).Error; err != nil {
		return nil, fmt.Errorf("获取投票记录失败: %w", err)
	}
	return votes, nil
}

// replayProposal 按时间重放投票得到提案状态；已落库的终态优先
func replayProposal(pm *model.ProposalModel, votes []model.VoteModel, stakes ledger.Stakes) *governance.Proposal {
	p := pm.ToGovernance(nil)
	p.Status = governance.ProposalActive
	p.EndedAt = nil

	sorted := append([]model.VoteModel(nil), votes...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].VotedAt.Before(sorted[j].VotedAt)
	})
	for _, v := range sorted {
		if err := governance.ApplyVote(p, stakes, v.ToGovernance()); err != nil {
			logger.Warn("Skipping vote of %s on proposal %s: %v", v.Voter, pm.Id, err)
		}
	}

	if pm.Status.IsTerminal() {
		p.Status = pm.Status
		p.EndedAt = pm.EndedAt
	}
	return p
}

func confirmedVotes(votes []model.VoteModel) []model.VoteModel {
	out := make([]model.VoteModel, 0, len(votes))
	for _, v := range votes {
		if v.State == model.StateConfirmed {
			out = append(out, v)
		}
	}
	return out
}

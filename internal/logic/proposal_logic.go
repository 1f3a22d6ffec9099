package logic

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/vic-labs/collectivo/internal/governance"
	"github.com/vic-labs/collectivo/internal/ledger"
	"github.com/vic-labs/collectivo/internal/logger"
	"github.com/vic-labs/collectivo/internal/model"
	"gorm.io/gorm"
)

// maxExpiryWorkers 过期处理的最大并发活动数
const maxExpiryWorkers = 8

// ProposalLogic 治理提案业务逻辑
type ProposalLogic struct {
	db     *gorm.DB
	locker *CampaignLocker
	opts   Options
}

// NewProposalLogic 创建提案业务逻辑
func NewProposalLogic(db *gorm.DB, locker *CampaignLocker, opts Options) *ProposalLogic {
	return &ProposalLogic{db: db, locker: locker, opts: opts.withDefaults()}
}

// ProposalView 提案的预估状态、已确认状态和投票统计
type ProposalView struct {
	Proposal        *governance.Proposal      `json:"proposal"`
	ObjectId        *string                   `json:"object_id"`
	State           model.RecordState         `json:"state"`
	ConfirmedStatus governance.ProposalStatus `json:"confirmed_status"`
	Stats           governance.VoteStats      `json:"stats"`
}

// CreateProposalRequest 创建提案命令
type CreateProposalRequest struct {
	CampaignId   string
	Proposer     string
	ProposalType governance.ProposalType
	ListPrice    int64
	TxDigest     string
}

// CreateProposal 校验并记录待确认提案，提案人的赞成票同时写入
func (p *ProposalLogic) CreateProposal(ctx context.Context, req CreateProposalRequest) (*ProposalView, error) {
	if err := normalizeLedgerRequest(&req.CampaignId, &req.Proposer, req.TxDigest); err != nil {
		return nil, err
	}
	unlock := p.locker.Lock(req.CampaignId)
	defer unlock()

	var result *ProposalView
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureNewDigest(tx, &model.ProposalModel{}, req.TxDigest); err != nil {
			return err
		}
		view, err := loadCampaignView(tx, req.CampaignId)
		if err != nil {
			return err
		}
		state := governance.CampaignState{
			Campaign:     view.projected.Snapshot(),
			NftPurchased: view.campaign.NftPurchased(),
		}
		stakes := view.projected.Stakes()
		now := p.opts.Now()
		proposal, err := governance.CreateProposal(state, stakes, uuid.NewString(), req.Proposer,
			req.ProposalType, req.ListPrice, now)
		if err != nil {
			return err
		}

		pm := &model.ProposalModel{
			Id:           proposal.ID,
			CreatedAt:    now,
			CampaignId:   req.CampaignId,
			Proposer:     req.Proposer,
			ProposalType: proposal.Type,
			ListPrice:    proposal.ListPrice,
			Status:       governance.ProposalActive,
			TxDigest:     req.TxDigest,
			State:        model.StateTentative,
		}
		if err := tx.Create(pm).Error; err != nil {
			return fmt.Errorf("创建提案失败: %w", err)
		}
		implicit := proposal.Votes[0]
		if err := tx.Create(newVoteModel(implicit, req.TxDigest, model.StateTentative)).Error; err != nil {
			return fmt.Errorf("创建提案人投票失败: %w", err)
		}
		result = &ProposalView{
			Proposal:        proposal,
			State:           pm.State,
			ConfirmedStatus: pm.Status,
			Stats:           governance.Stats(proposal, stakes, req.Proposer),
		}
		return nil
	})
	if err != nil {
		p.recordRejection("create_proposal", err)
		return nil, err
	}
	p.opts.Metrics.LedgerOp("create_proposal", boundaryCommand)
	p.opts.Cache.InvalidateCampaign(ctx, req.CampaignId)
	return result, nil
}

func newVoteModel(v governance.Vote, txDigest string, state model.RecordState) *model.VoteModel {
	return &model.VoteModel{
		Id:         uuid.NewString(),
		ProposalId: v.ProposalID,
		Voter:      v.Voter,
		VoteType:   v.Type,
		Weight:     v.Weight,
		TxDigest:   txDigest,
		State:      state,
		VotedAt:    v.At,
	}
}

// CastVoteRequest 投票命令
type CastVoteRequest struct {
	ProposalId string
	Voter      string
	VoteType   governance.VoteType
	TxDigest   string
}

// CastVote 校验并记录待确认投票
func (p *ProposalLogic) CastVote(ctx context.Context, req CastVoteRequest) (*ProposalView, error) {
	voter, err := ledger.NormalizeAddress(req.Voter)
	if err != nil {
		return nil, err
	}
	req.Voter = voter
	if req.TxDigest == "" {
		return nil, fmt.Errorf("%w: 交易哈希不能为空", ErrInvalidRequest)
	}
	pm, err := findProposal(p.db.WithContext(ctx), req.ProposalId)
	if err != nil {
		return nil, err
	}
	unlock := p.locker.Lock(pm.CampaignId)
	defer unlock()

	var result *ProposalView
	err = p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		pm, err := findProposal(tx, req.ProposalId)
		if err != nil {
			return err
		}
		view, err := loadCampaignView(tx, pm.CampaignId)
		if err != nil {
			return err
		}
		votes, err := loadVotes(tx, pm.Id)
		if err != nil {
			return err
		}
		stakes := view.projected.Stakes()
		proposal := replayProposal(pm, votes, stakes)

		vote, err := governance.CastVote(proposal, stakes, req.Voter, req.VoteType, p.opts.Now())
		if err != nil {
			return err
		}
		if err := tx.Create(newVoteModel(vote, req.TxDigest, model.StateTentative)).Error; err != nil {
			return fmt.Errorf("创建投票记录失败: %w", err)
		}
		result = &ProposalView{
			Proposal:        proposal,
			ObjectId:        pm.ObjectId,
			State:           pm.State,
			ConfirmedStatus: pm.Status,
			Stats:           governance.Stats(proposal, stakes, req.Voter),
		}
		return nil
	})
	if err != nil {
		p.recordRejection("cast_vote", err)
		return nil, err
	}
	p.opts.Metrics.LedgerOp("cast_vote", boundaryCommand)
	p.opts.Cache.InvalidateCampaign(ctx, pm.CampaignId)
	return result, nil
}

// ProposalFact 链上已确认的提案对象
type ProposalFact struct {
	ObjectId     string
	CampaignId   string
	Proposer     string
	ProposalType governance.ProposalType
	ListPrice    int64
	TxDigest     string
	CreatedAt    time.Time
}

// ApplyProposalCreated 链上提案创建事件；同一交易的待确认提案转为已确认
func (p *ProposalLogic) ApplyProposalCreated(ctx context.Context, fact ProposalFact) error {
	var err error
	if fact.ObjectId, err = ledger.NormalizeAddress(fact.ObjectId); err != nil {
		return err
	}
	if err := normalizeLedgerRequest(&fact.CampaignId, &fact.Proposer, fact.TxDigest); err != nil {
		return err
	}
	unlock := p.locker.Lock(fact.CampaignId)
	defer unlock()

	var resolved governance.ProposalStatus
	err = p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := findProposalByObject(tx.Unscoped(), fact.ObjectId); err == nil {
			return nil
		} else if !errors.Is(err, ErrProposalNotFound) {
			return err
		}
		view, err := loadCampaignView(tx, fact.CampaignId)
		if err != nil {
			return err
		}

		var pm model.ProposalModel
		isNew := false
		err = tx.Where("tx_digest = ? AND campaign_id = ?", fact.TxDigest, fact.CampaignId).First(&pm).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			pm = model.ProposalModel{Id: uuid.NewString()}
			isNew = true
		case err != nil:
			return err
		}
		objectID := fact.ObjectId
		pm.ObjectId = &objectID
		pm.CampaignId = fact.CampaignId
		pm.Proposer = fact.Proposer
		pm.ProposalType = fact.ProposalType
		pm.ListPrice = fact.ListPrice
		pm.TxDigest = fact.TxDigest
		pm.State = model.StateConfirmed
		pm.CreatedAt = fact.CreatedAt
		if pm.Status == "" {
			pm.Status = governance.ProposalActive
		}
		save := tx.Save
		if isNew {
			save = tx.Create
		}
		if err := save(&pm).Error; err != nil {
			return fmt.Errorf("保存提案失败: %w", err)
		}

		implicit := governance.Vote{
			ProposalID: pm.Id,
			Voter:      fact.Proposer,
			Type:       governance.VoteApproval,
			Weight:     view.confirmed.BalanceOf(fact.Proposer),
			At:         fact.CreatedAt,
		}
		if err := confirmVote(tx, implicit, fact.TxDigest); err != nil {
			return err
		}
		resolved, err = p.resolveConfirmed(tx, &pm, view)
		return err
	})
	if err != nil {
		return err
	}
	p.opts.Metrics.LedgerOp("create_proposal", boundaryIngest)
	p.afterResolve(ctx, fact.CampaignId, resolved)
	return nil
}

// VoteFact 链上已确认的投票
type VoteFact struct {
	ProposalObjectId string
	Voter            string
	VoteType         governance.VoteType
	TxDigest         string
	At               time.Time
}

// ApplyVote 链上投票事件；同一投票人的待确认投票转为已确认
func (p *ProposalLogic) ApplyVote(ctx context.Context, fact VoteFact) error {
	var err error
	if fact.ProposalObjectId, err = ledger.NormalizeAddress(fact.ProposalObjectId); err != nil {
		return err
	}
	if fact.Voter, err = ledger.NormalizeAddress(fact.Voter); err != nil {
		return err
	}
	pm, err := findProposalByObject(p.db.WithContext(ctx), fact.ProposalObjectId)
	if err != nil {
		return err
	}
	unlock := p.locker.Lock(pm.CampaignId)
	defer unlock()

	var resolved governance.ProposalStatus
	err = p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		pm, err := findProposalByObject(tx, fact.ProposalObjectId)
		if err != nil {
			return err
		}
		view, err := loadCampaignView(tx, pm.CampaignId)
		if err != nil {
			return err
		}
		v := governance.Vote{
			ProposalID: pm.Id,
			Voter:      fact.Voter,
			Type:       fact.VoteType,
			Weight:     view.confirmed.BalanceOf(fact.Voter),
			At:         fact.At,
		}
		if err := confirmVote(tx, v, fact.TxDigest); err != nil {
			return err
		}
		resolved, err = p.resolveConfirmed(tx, pm, view)
		return err
	})
	if err != nil {
		return err
	}
	p.opts.Metrics.LedgerOp("cast_vote", boundaryIngest)
	p.afterResolve(ctx, pm.CampaignId, resolved)
	return nil
}

// confirmVote 新建已确认投票或将待确认投票转为已确认，已确认的投票不变
func confirmVote(tx *gorm.DB, v governance.Vote, txDigest string) error {
	var existing model.VoteModel
	err := tx.Where("proposal_id = ? AND voter = ?", v.ProposalID, v.Voter).First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return tx.Create(newVoteModel(v, txDigest, model.StateConfirmed)).Error
	case err != nil:
		return err
	case existing.State == model.StateConfirmed:
		return nil
	}
	return tx.Model(&existing).Updates(map[string]interface{}{
		"vote_type": v.Type,
		"weight":    v.Weight,
		"tx_digest": txDigest,
		"state":     model.StateConfirmed,
		"voted_at":  v.At,
	}).Error
}

// resolveConfirmed 仅用已确认投票重新判定提案，进入终态时返回新状态
func (p *ProposalLogic) resolveConfirmed(tx *gorm.DB, pm *model.ProposalModel, view *campaignView) (governance.ProposalStatus, error) {
	if pm.Status.IsTerminal() {
		return "", nil
	}
	votes, err := loadVotes(tx, pm.Id)
	if err != nil {
		return "", err
	}
	proposal := replayProposal(pm, confirmedVotes(votes), view.confirmed.Stakes())
	if !proposal.Status.IsTerminal() {
		return "", nil
	}
	if err := p.finish(tx, pm, proposal.Status, *proposal.EndedAt); err != nil {
		return "", err
	}
	return proposal.Status, nil
}

// finish 写入终态，通过的提案同步修改 NFT 状态
func (p *ProposalLogic) finish(tx *gorm.DB, pm *model.ProposalModel, status governance.ProposalStatus, endedAt time.Time) error {
	if err := tx.Model(&model.ProposalModel{}).Where("id = ?", pm.Id).Updates(map[string]interface{}{
		"status":   status,
		"ended_at": endedAt,
	}).Error; err != nil {
		return err
	}
	pm.Status = status
	pm.EndedAt = &endedAt
	if status != governance.ProposalPassed {
		return nil
	}

	nftStatus := model.NftStatusListed
	if pm.ProposalType == governance.ProposalDelist {
		nftStatus = model.NftStatusDelisted
	}
	return tx.Model(&model.CampaignModel{}).Where("id = ?", pm.CampaignId).Update("nft_status", nftStatus).Error
}

func (p *ProposalLogic) afterResolve(ctx context.Context, campaignID string, resolved governance.ProposalStatus) {
	if resolved != "" {
		p.opts.Metrics.ProposalResolved(string(resolved))
		logger.Info("Proposal in campaign %s resolved %s", campaignID, resolved)
	}
	p.opts.Cache.InvalidateCampaign(ctx, campaignID)
}

// ApplyProposalResolved 链上提案结束事件，链上结果优先
func (p *ProposalLogic) ApplyProposalResolved(ctx context.Context, objectID string, status governance.ProposalStatus, at time.Time) error {
	objectID, err := ledger.NormalizeAddress(objectID)
	if err != nil {
		return err
	}
	pm, err := findProposalByObject(p.db.WithContext(ctx), objectID)
	if err != nil {
		return err
	}
	unlock := p.locker.Lock(pm.CampaignId)
	defer unlock()

	var resolved governance.ProposalStatus
	err = p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		pm, err := findProposalByObject(tx, objectID)
		if err != nil {
			return err
		}
		if pm.Status == status {
			return nil
		}
		if pm.Status.IsTerminal() {
			logger.Warn("Proposal %s is %s locally but %s on chain, adopting chain status", objectID, pm.Status, status)
		}
		resolved = status
		return p.finish(tx, pm, status, at)
	})
	if err != nil {
		return err
	}
	p.afterResolve(ctx, pm.CampaignId, resolved)
	return nil
}

// VoteStats 提案投票统计，优先读缓存
func (p *ProposalLogic) VoteStats(ctx context.Context, proposalID, voter string) (*ProposalView, error) {
	if voter != "" {
		normalized, err := ledger.NormalizeAddress(voter)
		if err != nil {
			return nil, err
		}
		voter = normalized
	}
	db := p.db.WithContext(ctx)
	pm, err := findProposal(db, proposalID)
	if err != nil {
		return nil, err
	}
	view, err := loadCampaignView(db, pm.CampaignId)
	if err != nil {
		return nil, err
	}
	return p.proposalView(ctx, db, pm, view, voter)
}

func (p *ProposalLogic) proposalView(ctx context.Context, db *gorm.DB, pm *model.ProposalModel, view *campaignView, voter string) (*ProposalView, error) {
	votes, err := loadVotes(db, pm.Id)
	if err != nil {
		return nil, err
	}
	stakes := view.projected.Stakes()
	proposal := replayProposal(pm, votes, stakes)

	result := &ProposalView{
		Proposal:        proposal,
		ObjectId:        pm.ObjectId,
		State:           pm.State,
		ConfirmedStatus: pm.Status,
	}
	version := statsVersion(proposal, stakes)
	if cached, ok := p.opts.Cache.GetVoteStats(ctx, pm.CampaignId, pm.Id, voter, version); ok {
		result.Stats = *cached
		return result, nil
	}
	result.Stats = governance.Stats(proposal, stakes, voter)
	p.opts.Cache.SetVoteStats(ctx, pm.CampaignId, pm.Id, voter, version, result.Stats)
	return result, nil
}

// statsVersion 投票统计输入的指纹：提案状态、投票和份额
func statsVersion(proposal *governance.Proposal, stakes ledger.Stakes) string {
	d := xxhash.New()
	_, _ = d.WriteString(string(proposal.Status))
	for _, v := range proposal.Votes {
		_, _ = d.WriteString("|" + v.Voter + ":" + string(v.Type))
	}
	for _, addr := range stakes.Addresses() {
		_, _ = d.WriteString("|" + addr + "=" + strconv.FormatInt(stakes[addr], 10))
	}
	return strconv.FormatUint(d.Sum64(), 16)
}

// ListProposals 活动下全部提案，按创建时间倒序
func (p *ProposalLogic) ListProposals(ctx context.Context, campaignID, voter string) ([]ProposalView, error) {
	campaignID, err := ledger.NormalizeAddress(campaignID)
	if err != nil {
		return nil, err
	}
	if voter != "" {
		if voter, err = ledger.NormalizeAddress(voter); err != nil {
			return nil, err
		}
	}
	db := p.db.WithContext(ctx)
	view, err := loadCampaignView(db, campaignID)
	if err != nil {
		return nil, err
	}

	var proposals []model.ProposalModel
	if err := db.Where("campaign_id = ? AND state <> ?", campaignID, model.StateDropped).
		Order("created_at DESC").Find(&proposals).Error; err != nil {
		return nil, fmt.Errorf("获取提案列表失败: %w", err)
	}
	out := make([]ProposalView, 0, len(proposals))
	for i := range proposals {
		pv, err := p.proposalView(ctx, db, &proposals[i], view, voter)
		if err != nil {
			return nil, err
		}
		out = append(out, *pv)
	}
	return out, nil
}

// DeleteProposal 提案人在无人投票时删除进行中的提案
func (p *ProposalLogic) DeleteProposal(ctx context.Context, proposalID, requester string) error {
	requester, err := ledger.NormalizeAddress(requester)
	if err != nil {
		return err
	}
	pm, err := findProposal(p.db.WithContext(ctx), proposalID)
	if err != nil {
		return err
	}
	unlock := p.locker.Lock(pm.CampaignId)
	defer unlock()

	err = p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		pm, err := findProposal(tx, proposalID)
		if err != nil {
			return err
		}
		if pm.Proposer != requester {
			return ledger.NewError(ledger.KindNotProposer, "only the proposer can delete a proposal",
				map[string]any{"proposer": pm.Proposer, "requester": requester})
		}
		view, err := loadCampaignView(tx, pm.CampaignId)
		if err != nil {
			return err
		}
		votes, err := loadVotes(tx, pm.Id)
		if err != nil {
			return err
		}
		proposal := replayProposal(pm, votes, view.projected.Stakes())
		if proposal.Status != governance.ProposalActive {
			return ledger.NewError(ledger.KindProposalNotActive, "only active proposals can be deleted",
				map[string]any{"status": proposal.Status})
		}
		for _, v := range votes {
			if v.Voter != pm.Proposer {
				return ledger.NewError(ledger.KindProposalHasVotes, "other contributors have already voted",
					map[string]any{"votes": len(votes)})
			}
		}
		return deleteProposal(tx, pm.Id)
	})
	if err != nil {
		p.recordRejection("delete_proposal", err)
		return err
	}
	p.opts.Cache.InvalidateCampaign(ctx, pm.CampaignId)
	return nil
}

func deleteProposal(tx *gorm.DB, id string) error {
	if err := tx.Where("proposal_id = ?", id).Delete(&model.VoteModel{}).Error; err != nil {
		return err
	}
	return tx.Delete(&model.ProposalModel{}, "id = ?", id).Error
}

// ApplyProposalDeleted 链上提案删除事件
func (p *ProposalLogic) ApplyProposalDeleted(ctx context.Context, objectID string) error {
	objectID, err := ledger.NormalizeAddress(objectID)
	if err != nil {
		return err
	}
	pm, err := findProposalByObject(p.db.WithContext(ctx), objectID)
	if err != nil {
		if errors.Is(err, ErrProposalNotFound) {
			return nil
		}
		return err
	}
	unlock := p.locker.Lock(pm.CampaignId)
	defer unlock()

	if err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return deleteProposal(tx, pm.Id)
	}); err != nil {
		return err
	}
	p.opts.Cache.InvalidateCampaign(ctx, pm.CampaignId)
	return nil
}

// ExpireProposals 将超过有效期的进行中提案判定为否决；不同活动并发处理，同一活动内顺序处理
func (p *ProposalLogic) ExpireProposals(ctx context.Context, now time.Time) (int, error) {
	ttl := p.opts.ProposalTTL
	if ttl <= 0 {
		return 0, nil
	}
	var candidates []model.ProposalModel
	if err := p.db.WithContext(ctx).
		Where("status = ? AND state <> ? AND created_at <= ?", governance.ProposalActive, model.StateDropped, now.Add(-ttl)).
		Order("created_at").Find(&candidates).Error; err != nil {
		return 0, fmt.Errorf("获取过期提案失败: %w", err)
	}
	if len(candidates) == 0 {
		return 0, nil
	}

	// 按活动分组
	byCampaign := make(map[string][]model.ProposalModel)
	for _, c := range candidates {
		byCampaign[c.CampaignId] = append(byCampaign[c.CampaignId], c)
	}

	pool, err := ants.NewPool(min(len(byCampaign), maxExpiryWorkers))
	if err != nil {
		return 0, fmt.Errorf("failed to create expiry pool: %w", err)
	}
	defer pool.Release()

	var (
		wg      sync.WaitGroup
		expired atomic.Int64
	)
	for campaignID, proposals := range byCampaign {
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			expired.Add(int64(p.expireCampaign(ctx, campaignID, proposals, ttl, now)))
		})
		if err != nil {
			wg.Done()
			logger.Error("Failed to submit expiry task for campaign %s: %v", campaignID, err)
		}
	}
	wg.Wait()
	return int(expired.Load()), nil
}

func (p *ProposalLogic) expireCampaign(ctx context.Context, campaignID string, proposals []model.ProposalModel, ttl time.Duration, now time.Time) int {
	expired := 0
	for _, c := range proposals {
		ok, err := p.expireOne(ctx, c.Id, campaignID, ttl, now)
		if err != nil {
			logger.Error("Failed to expire proposal %s: %v", c.Id, err)
			continue
		}
		if ok {
			expired++
			p.afterResolve(ctx, campaignID, governance.ProposalRejected)
		}
	}
	return expired
}

func (p *ProposalLogic) expireOne(ctx context.Context, id, campaignID string, ttl time.Duration, now time.Time) (bool, error) {
	unlock := p.locker.Lock(campaignID)
	defer unlock()

	expired := false
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		pm, err := findProposal(tx, id)
		if err != nil {
			return err
		}
		proposal := pm.ToGovernance(nil)
		if !governance.Expire(proposal, ttl, now) {
			return nil
		}
		expired = true
		return p.finish(tx, pm, proposal.Status, *proposal.EndedAt)
	})
	return expired, err
}

func (p *ProposalLogic) recordRejection(operation string, err error) {
	if kind := ledger.KindOf(err); kind != "" {
		p.opts.Metrics.Rejection(operation, string(kind))
	}
}

package logic

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vic-labs/collectivo/internal/cache"
	"github.com/vic-labs/collectivo/internal/ledger"
	"github.com/vic-labs/collectivo/internal/logger"
	"github.com/vic-labs/collectivo/internal/metrics"
	"github.com/vic-labs/collectivo/internal/model"
	"gorm.io/gorm"
)

const (
	boundaryCommand = "command"
	boundaryIngest  = "ingest"
)

// Options 业务逻辑公共依赖
type Options struct {
	Policy       ledger.Policy
	FeeBps       int64
	ProposalTTL  time.Duration
	TentativeTTL time.Duration
	Cache        cache.Cache
	Metrics      *metrics.Metrics
	Now          func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Cache == nil {
		o.Cache = cache.Nop{}
	}
	if o.Metrics == nil {
		o.Metrics = metrics.Nop()
	}
	if o.Now == nil {
		o.Now = func() time.Time { return time.Now().UTC() }
	}
	return o
}

// CampaignLogic 众筹活动业务逻辑
type CampaignLogic struct {
	db     *gorm.DB
	locker *CampaignLocker
	opts   Options
}

// NewCampaignLogic 创建众筹活动业务逻辑
func NewCampaignLogic(db *gorm.DB, locker *CampaignLocker, opts Options) *CampaignLogic {
	return &CampaignLogic{db: db, locker: locker, opts: opts.withDefaults()}
}

// CreateCampaignRequest 创建活动请求，Id 为链上对象ID
type CreateCampaignRequest struct {
	Id              string
	NftId           string
	NftName         string
	NftImageUrl     string
	NftType         string
	NftRank         int64
	Description     string
	Target          int64
	MinContribution int64
	Creator         string
	TxDigest        string
}

// CampaignFact 链上已确认的活动对象
type CampaignFact struct {
	CreateCampaignRequest
	NftStatus model.NftStatus
	CreatedAt time.Time
}

// CampaignDetail 活动详情
type CampaignDetail struct {
	Campaign          model.CampaignModel       `json:"campaign"`
	Confirmed         ledger.Campaign           `json:"confirmed"`
	Projected         ledger.Campaign           `json:"projected"`
	Contributions     []model.ContributionModel `json:"contributions"`
	Withdrawals       []model.WithdrawalModel   `json:"withdrawals"`
	ContributorsCount int                       `json:"contributors_count"`
}

// LedgerResult 贡献或提取命令的结果
type LedgerResult struct {
	RecordId       string          `json:"record_id"`
	Confirmed      ledger.Campaign `json:"confirmed"`
	Projected      ledger.Campaign `json:"projected"`
	Balance        int64           `json:"balance"`
	DepositWithFee int64           `json:"deposit_with_fee,omitempty"`
}

// BalanceResult 贡献者余额
type BalanceResult struct {
	Contributor string `json:"contributor"`
	Confirmed   int64  `json:"confirmed"`
	Projected   int64  `json:"projected"`
}

// ContributorStake 贡献者份额
type ContributorStake struct {
	Address   string `json:"address"`
	Confirmed int64  `json:"confirmed"`
	Projected int64  `json:"projected"`
}

// CampaignFilter 活动列表查询条件
type CampaignFilter struct {
	Search   string
	Status   string
	Creator  string
	Page     int
	PageSize int
}

// CreateCampaign 记录用户已提交的创建活动交易，等待链上确认
func (c *CampaignLogic) CreateCampaign(ctx context.Context, req CreateCampaignRequest) (*model.CampaignModel, error) {
	if err := c.normalizeCampaignRequest(&req); err != nil {
		return nil, err
	}
	if req.TxDigest == "" {
		return nil, fmt.Errorf("%w: 交易哈希不能为空", ErrInvalidRequest)
	}

	unlock := c.locker.Lock(req.Id)
	defer unlock()

	campaign := newCampaignModel(req, model.StateTentative, c.opts.Now())
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Unscoped().Model(&model.CampaignModel{}).Where("id = ?", req.Id).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrCampaignExists
		}
		return tx.Create(campaign).Error
	})
	if err != nil {
		return nil, err
	}
	c.opts.Metrics.LedgerOp("create_campaign", boundaryCommand)
	return campaign, nil
}

func (c *CampaignLogic) normalizeCampaignRequest(req *CreateCampaignRequest) error {
	var err error
	if req.Id, err = ledger.NormalizeAddress(req.Id); err != nil {
		return err
	}
	if req.Creator, err = ledger.NormalizeAddress(req.Creator); err != nil {
		return err
	}
	if req.Target <= 0 || req.MinContribution <= 0 {
		return ledger.NewError(ledger.KindInvalidAmount, "target and minimum contribution must be positive",
			map[string]any{"target": req.Target, "minContribution": req.MinContribution})
	}
	if req.MinContribution > req.Target {
		return ledger.NewError(ledger.KindInvalidAmount, "minimum contribution exceeds the target",
			map[string]any{"target": req.Target, "minContribution": req.MinContribution})
	}
	return nil
}

func newCampaignModel(req CreateCampaignRequest, state model.RecordState, createdAt time.Time) *model.CampaignModel {
	return &model.CampaignModel{
		Id:              req.Id,
		CreatedAt:       createdAt,
		NftId:           req.NftId,
		NftName:         req.NftName,
		NftImageUrl:     req.NftImageUrl,
		NftType:         req.NftType,
		NftRank:         req.NftRank,
		NftStatus:       model.NftStatusNone,
		Description:     req.Description,
		Target:          req.Target,
		MinContribution: req.MinContribution,
		Status:          ledger.StatusActive,
		Creator:         req.Creator,
		TxDigest:        req.TxDigest,
		State:           state,
	}
}

// ApplyCampaignCreated 链上活动创建事件，新建或确认活动
func (c *CampaignLogic) ApplyCampaignCreated(ctx context.Context, fact CampaignFact) error {
	if err := c.normalizeCampaignRequest(&fact.CreateCampaignRequest); err != nil {
		return err
	}
	unlock := c.locker.Lock(fact.Id)
	defer unlock()

	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.CampaignModel
		err := tx.Unscoped().Where("id = ?", fact.Id).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			campaign := newCampaignModel(fact.CreateCampaignRequest, model.StateConfirmed, fact.CreatedAt)
			if fact.NftStatus != "" {
				campaign.NftStatus = fact.NftStatus
			}
			return tx.Create(campaign).Error
		case err != nil:
			return err
		}

		updates := map[string]interface{}{
			"nft_id":           fact.NftId,
			"nft_name":         fact.NftName,
			"nft_image_url":    fact.NftImageUrl,
			"nft_type":         fact.NftType,
			"nft_rank":         fact.NftRank,
			"target":           fact.Target,
			"min_contribution": fact.MinContribution,
			"creator":          fact.Creator,
			"state":            model.StateConfirmed,
			"created_at":       fact.CreatedAt,
		}
		if fact.TxDigest != "" {
			updates["tx_digest"] = fact.TxDigest
		}
		if fact.Description != "" {
			updates["description"] = fact.Description
		}
		return tx.Unscoped().Model(&model.CampaignModel{}).Where("id = ?", fact.Id).Updates(updates).Error
	})
	if err != nil {
		return err
	}
	c.opts.Metrics.LedgerOp("create_campaign", boundaryIngest)
	c.opts.Cache.InvalidateCampaign(ctx, fact.Id)
	return nil
}

// GetCampaign 获取活动详情
func (c *CampaignLogic) GetCampaign(ctx context.Context, id string) (*CampaignDetail, error) {
	id, err := ledger.NormalizeAddress(id)
	if err != nil {
		return nil, err
	}
	db := c.db.WithContext(ctx)
	view, err := loadCampaignView(db, id)
	if err != nil {
		return nil, err
	}

	detail := &CampaignDetail{
		Campaign:          view.campaign,
		Confirmed:         view.confirmed.Snapshot(),
		Projected:         view.projected.Snapshot(),
		ContributorsCount: len(view.projected.Stakes()),
	}
	if err := db.Where("campaign_id = ? AND state IN ?", id, liveStates).
		Order("contributed_at DESC").Find(&detail.Contributions).Error; err != nil {
		return nil, fmt.Errorf("获取贡献记录失败: %w", err)
	}
	if err := db.Where("campaign_id = ? AND state IN ?", id, liveStates).
		Order("withdrawn_at DESC").Find(&detail.Withdrawals).Error; err != nil {
		return nil, fmt.Errorf("获取提取记录失败: %w", err)
	}
	return detail, nil
}

// ListCampaigns 分页查询活动
func (c *CampaignLogic) ListCampaigns(ctx context.Context, filter CampaignFilter) ([]model.CampaignModel, int64, error) {
	var campaigns []model.CampaignModel
	var total int64

	// 构建查询条件
	query := c.db.WithContext(ctx).Model(&model.CampaignModel{}).Where("state <> ?", model.StateDropped)
	if filter.Search != "" {
		like := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where("LOWER(nft_name) LIKE ? OR LOWER(description) LIKE ?", like, like)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Creator != "" {
		creator, err := ledger.NormalizeAddress(filter.Creator)
		if err != nil {
			return nil, 0, err
		}
		query = query.Where("creator = ?", creator)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("获取活动总数失败: %w", err)
	}

	page, pageSize := NormalizePage(filter.Page, filter.PageSize)
	if err := query.Offset((page - 1) * pageSize).Limit(pageSize).
		Order("created_at DESC").Find(&campaigns).Error; err != nil {
		return nil, 0, fmt.Errorf("获取活动列表失败: %w", err)
	}
	return campaigns, total, nil
}

// NormalizePage 规范化分页参数，每页最多100条
func NormalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return page, pageSize
}

// ContributeRequest 贡献命令
type ContributeRequest struct {
	CampaignId  string
	Contributor string
	Amount      int64
	TxDigest    string
}

// Contribute 校验贡献并记录为待确认
func (c *CampaignLogic) Contribute(ctx context.Context, req ContributeRequest) (*LedgerResult, error) {
	if err := normalizeLedgerRequest(&req.CampaignId, &req.Contributor, req.TxDigest); err != nil {
		return nil, err
	}
	unlock := c.locker.Lock(req.CampaignId)
	defer unlock()

	var result *LedgerResult
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureNewDigest(tx, &model.ContributionModel{}, req.TxDigest); err != nil {
			return err
		}
		view, err := loadCampaignView(tx, req.CampaignId)
		if err != nil {
			return err
		}
		balance := view.projected.BalanceOf(req.Contributor)
		if err := ledger.ValidateContribution(view.projected.Snapshot(), balance, req.Amount, c.opts.Policy); err != nil {
			return err
		}

		now := c.opts.Now()
		if _, err := view.projected.RecordContribution(req.Contributor, req.Amount, now, req.TxDigest); err != nil {
			return err
		}
		record := &model.ContributionModel{
			Id:            uuid.NewString(),
			CampaignId:    req.CampaignId,
			Contributor:   req.Contributor,
			Amount:        req.Amount,
			TxDigest:      req.TxDigest,
			State:         model.StateTentative,
			ContributedAt: now,
		}
		if err := tx.Create(record).Error; err != nil {
			return fmt.Errorf("创建贡献记录失败: %w", err)
		}
		result = &LedgerResult{
			RecordId:       record.Id,
			Confirmed:      view.confirmed.Snapshot(),
			Projected:      view.projected.Snapshot(),
			Balance:        view.projected.BalanceOf(req.Contributor),
			DepositWithFee: ledger.DepositWithFee(req.Amount, c.opts.FeeBps),
		}
		return nil
	})
	if err != nil {
		c.recordRejection("contribute", err)
		return nil, err
	}
	c.opts.Metrics.LedgerOp("contribute", boundaryCommand)
	c.opts.Cache.InvalidateCampaign(ctx, req.CampaignId)
	return result, nil
}

// WithdrawRequest 提取命令
type WithdrawRequest struct {
	CampaignId  string
	Contributor string
	Amount      int64
	TxDigest    string
}

// Withdraw 校验提取并记录为待确认
func (c *CampaignLogic) Withdraw(ctx context.Context, req WithdrawRequest) (*LedgerResult, error) {
	if err := normalizeLedgerRequest(&req.CampaignId, &req.Contributor, req.TxDigest); err != nil {
		return nil, err
	}
	unlock := c.locker.Lock(req.CampaignId)
	defer unlock()

	var result *LedgerResult
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureNewDigest(tx, &model.WithdrawalModel{}, req.TxDigest); err != nil {
			return err
		}
		view, err := loadCampaignView(tx, req.CampaignId)
		if err != nil {
			return err
		}
		balance := view.projected.BalanceOf(req.Contributor)
		if err := ledger.ValidateWithdrawal(view.projected.Snapshot(), balance, req.Amount); err != nil {
			return err
		}

		now := c.opts.Now()
		w, err := view.projected.RecordWithdrawal(req.Contributor, req.Amount, now, req.TxDigest)
		if err != nil {
			return err
		}
		record := &model.WithdrawalModel{
			Id:               uuid.NewString(),
			CampaignId:       req.CampaignId,
			Contributor:      req.Contributor,
			Amount:           req.Amount,
			IsFullWithdrawal: w.IsFullWithdrawal,
			TxDigest:         req.TxDigest,
			State:            model.StateTentative,
			WithdrawnAt:      now,
		}
		if err := tx.Create(record).Error; err != nil {
			return fmt.Errorf("创建提取记录失败: %w", err)
		}
		result = &LedgerResult{
			RecordId:  record.Id,
			Confirmed: view.confirmed.Snapshot(),
			Projected: view.projected.Snapshot(),
			Balance:   view.projected.BalanceOf(req.Contributor),
		}
		return nil
	})
	if err != nil {
		c.recordRejection("withdraw", err)
		return nil, err
	}
	c.opts.Metrics.LedgerOp("withdraw", boundaryCommand)
	c.opts.Cache.InvalidateCampaign(ctx, req.CampaignId)
	return result, nil
}

func normalizeLedgerRequest(campaignID, contributor *string, txDigest string) error {
	var err error
	if *campaignID, err = ledger.NormalizeAddress(*campaignID); err != nil {
		return err
	}
	if *contributor, err = ledger.NormalizeAddress(*contributor); err != nil {
		return err
	}
	if txDigest == "" {
		return fmt.Errorf("%w: 交易哈希不能为空", ErrInvalidRequest)
	}
	return nil
}

func ensureNewDigest(tx *gorm.DB, m interface{}, txDigest string) error {
	var count int64
	if err := tx.Model(m).Where("tx_digest = ?", txDigest).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrDuplicateTx
	}
	return nil
}

func (c *CampaignLogic) recordRejection(operation string, err error) {
	if kind := ledger.KindOf(err); kind != "" {
		c.opts.Metrics.Rejection(operation, string(kind))
	}
}

// ContributionFact 链上已确认的贡献
type ContributionFact struct {
	CampaignId  string
	Contributor string
	Amount      int64
	TxDigest    string
	At          time.Time
	// Seq 链上事件顺序，用于同一时刻记录的重放
	Seq         int64
}

// ApplyContribution 将链上贡献写入已确认视图，不经过校验；同一交易的待确认记录会被转为已确认
func (c *CampaignLogic) ApplyContribution(ctx context.Context, fact ContributionFact) error {
	if err := normalizeLedgerRequest(&fact.CampaignId, &fact.Contributor, fact.TxDigest); err != nil {
		return err
	}
	unlock := c.locker.Lock(fact.CampaignId)
	defer unlock()

	applied := false
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.ContributionModel
		found := true
		if err := tx.Where("tx_digest = ?", fact.TxDigest).First(&existing).Error; err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			found = false
		}
		if found && existing.State == model.StateConfirmed {
			return nil
		}

		view, err := loadCampaignView(tx, fact.CampaignId)
		if err != nil {
			return err
		}
		if _, err := view.confirmed.RecordContribution(fact.Contributor, fact.Amount, fact.At, fact.TxDigest); err != nil {
			return err
		}

		if found {
			if err := tx.Model(&existing).Updates(map[string]interface{}{
				"campaign_id":    fact.CampaignId,
				"contributor":    fact.Contributor,
				"amount":         fact.Amount,
				"state":          model.StateConfirmed,
				"contributed_at": fact.At,
				"chain_seq":      fact.Seq,
			}).Error; err != nil {
				return err
			}
		} else if err := tx.Create(&model.ContributionModel{
			Id:            uuid.NewString(),
			CampaignId:    fact.CampaignId,
			Contributor:   fact.Contributor,
			Amount:        fact.Amount,
			TxDigest:      fact.TxDigest,
			State:         model.StateConfirmed,
			ContributedAt: fact.At,
			ChainSeq:      fact.Seq,
		}).Error; err != nil {
			return err
		}
		applied = true
		return saveConfirmedAggregate(tx, view)
	})
	if err != nil {
		return err
	}
	if applied {
		c.opts.Metrics.LedgerOp("contribute", boundaryIngest)
		c.opts.Cache.InvalidateCampaign(ctx, fact.CampaignId)
	}
	return nil
}

// WithdrawalFact 链上已确认的提取
type WithdrawalFact struct {
	CampaignId  string
	Contributor string
	Amount      int64
	TxDigest    string
	At          time.Time
	Seq         int64
}

// ApplyWithdrawal 将链上提取写入已确认视图
func (c *CampaignLogic) ApplyWithdrawal(ctx context.Context, fact WithdrawalFact) error {
	if err := normalizeLedgerRequest(&fact.CampaignId, &fact.Contributor, fact.TxDigest); err != nil {
		return err
	}
	unlock := c.locker.Lock(fact.CampaignId)
	defer unlock()

	applied := false
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.WithdrawalModel
		found := true
		if err := tx.Where("tx_digest = ?", fact.TxDigest).First(&existing).Error; err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			found = false
		}
		if found && existing.State == model.StateConfirmed {
			return nil
		}

		view, err := loadCampaignView(tx, fact.CampaignId)
		if err != nil {
			return err
		}
		w, err := view.confirmed.RecordWithdrawal(fact.Contributor, fact.Amount, fact.At, fact.TxDigest)
		if err != nil {
			return err
		}

		if found {
			if err := tx.Model(&existing).Updates(map[string]interface{}{
				"campaign_id":        fact.CampaignId,
				"contributor":        fact.Contributor,
				"amount":             fact.Amount,
				"is_full_withdrawal": w.IsFullWithdrawal,
				"state":              model.StateConfirmed,
				"withdrawn_at":       fact.At,
				"chain_seq":          fact.Seq,
			}).Error; err != nil {
				return err
			}
		} else if err := tx.Create(&model.WithdrawalModel{
			Id:               uuid.NewString(),
			CampaignId:       fact.CampaignId,
			Contributor:      fact.Contributor,
			Amount:           fact.Amount,
			IsFullWithdrawal: w.IsFullWithdrawal,
			TxDigest:         fact.TxDigest,
			State:            model.StateConfirmed,
			WithdrawnAt:      fact.At,
			ChainSeq:         fact.Seq,
		}).Error; err != nil {
			return err
		}
		applied = true
		return saveConfirmedAggregate(tx, view)
	})
	if err != nil {
		return err
	}
	if applied {
		c.opts.Metrics.LedgerOp("withdraw", boundaryIngest)
		c.opts.Cache.InvalidateCampaign(ctx, fact.CampaignId)
	}
	return nil
}

// Balance 贡献者在活动中的余额
func (c *CampaignLogic) Balance(ctx context.Context, campaignID, contributor string) (*BalanceResult, error) {
	var err error
	if campaignID, err = ledger.NormalizeAddress(campaignID); err != nil {
		return nil, err
	}
	if contributor, err = ledger.NormalizeAddress(contributor); err != nil {
		return nil, err
	}
	view, err := loadCampaignView(c.db.WithContext(ctx), campaignID)
	if err != nil {
		return nil, err
	}
	return &BalanceResult{
		Contributor: contributor,
		Confirmed:   view.confirmed.BalanceOf(contributor),
		Projected:   view.projected.BalanceOf(contributor),
	}, nil
}

// Contributors 持有正余额的贡献者，按地址排序
func (c *CampaignLogic) Contributors(ctx context.Context, campaignID string) ([]ContributorStake, error) {
	campaignID, err := ledger.NormalizeAddress(campaignID)
	if err != nil {
		return nil, err
	}
	view, err := loadCampaignView(c.db.WithContext(ctx), campaignID)
	if err != nil {
		return nil, err
	}
	confirmed := view.confirmed.Stakes()
	projected := view.projected.Stakes()

	seen := make(map[string]bool)
	var out []ContributorStake
	for _, addrs := range [][]string{projected.Addresses(), confirmed.Addresses()} {
		for _, addr := range addrs {
			if seen[addr] {
				continue
			}
			seen[addr] = true
			out = append(out, ContributorStake{Address: addr, Confirmed: confirmed.Of(addr), Projected: projected.Of(addr)})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out, nil
}

var nftTransitions = map[model.NftStatus][]model.NftStatus{
	model.NftStatusNone:      {model.NftStatusPurchased},
	model.NftStatusPurchased: {model.NftStatusListed},
	model.NftStatusListed:    {model.NftStatusDelisted},
	model.NftStatusDelisted:  {model.NftStatusListed},
}

// SetNftStatus 修改 NFT 状态；购入要求活动已完成
func (c *CampaignLogic) SetNftStatus(ctx context.Context, campaignID string, status model.NftStatus) (*model.CampaignModel, error) {
	campaignID, err := ledger.NormalizeAddress(campaignID)
	if err != nil {
		return nil, err
	}
	unlock := c.locker.Lock(campaignID)
	defer unlock()

	var updated *model.CampaignModel
	err = c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		view, err := loadCampaignView(tx, campaignID)
		if err != nil {
			return err
		}
		current := view.campaign.NftStatus
		if !allowedNftTransition(current, status) {
			return ledger.NewError(ledger.KindInvalidNftTransition, "nft status change is not allowed",
				map[string]any{"from": current, "to": status})
		}
		if status == model.NftStatusPurchased && view.projected.Snapshot().Status != ledger.StatusCompleted {
			return ledger.NewError(ledger.KindCampaignNotCompleted, "the NFT can only be purchased by a completed campaign",
				map[string]any{"status": view.projected.Snapshot().Status})
		}
		if err := tx.Model(&model.CampaignModel{}).Where("id = ?", campaignID).Update("nft_status", status).Error; err != nil {
			return err
		}
		view.campaign.NftStatus = status
		updated = &view.campaign
		return nil
	})
	if err != nil {
		c.recordRejection("set_nft_status", err)
		return nil, err
	}
	c.opts.Cache.InvalidateCampaign(ctx, campaignID)
	return updated, nil
}

func allowedNftTransition(from, to model.NftStatus) bool {
	for _, s := range nftTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ApplyNftStatus 链上 NFT 状态事件，直接覆盖
func (c *CampaignLogic) ApplyNftStatus(ctx context.Context, campaignID string, status model.NftStatus) error {
	campaignID, err := ledger.NormalizeAddress(campaignID)
	if err != nil {
		return err
	}
	unlock := c.locker.Lock(campaignID)
	defer unlock()

	err = c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := findCampaign(tx, campaignID); err != nil {
			return err
		}
		return tx.Model(&model.CampaignModel{}).Where("id = ?", campaignID).Update("nft_status", status).Error
	})
	if err != nil {
		return err
	}
	c.opts.Cache.InvalidateCampaign(ctx, campaignID)
	return nil
}

// DeleteCampaign 创建者删除尚未募集到资金的活动
func (c *CampaignLogic) DeleteCampaign(ctx context.Context, campaignID, requester string) error {
	var err error
	if campaignID, err = ledger.NormalizeAddress(campaignID); err != nil {
		return err
	}
	if requester, err = ledger.NormalizeAddress(requester); err != nil {
		return err
	}
	unlock := c.locker.Lock(campaignID)
	defer unlock()

	err = c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		view, err := loadCampaignView(tx, campaignID)
		if err != nil {
			return err
		}
		if view.campaign.Creator != requester {
			return ledger.NewError(ledger.KindNotCreator, "only the creator can delete a campaign",
				map[string]any{"creator": view.campaign.Creator, "requester": requester})
		}
		confirmed, projected := view.confirmed.Snapshot().SuiRaised, view.projected.Snapshot().SuiRaised
		if confirmed > 0 || projected > 0 {
			return ledger.NewError(ledger.KindCampaignHasFunds, "campaign still holds contributions",
				map[string]any{"suiRaised": max(confirmed, projected)})
		}
		return tx.Delete(&model.CampaignModel{}, "id = ?", campaignID).Error
	})
	if err != nil {
		c.recordRejection("delete_campaign", err)
		return err
	}
	c.opts.Cache.InvalidateCampaign(ctx, campaignID)
	return nil
}

// ApplyCampaignDeleted 链上活动删除事件
func (c *CampaignLogic) ApplyCampaignDeleted(ctx context.Context, campaignID string) error {
	campaignID, err := ledger.NormalizeAddress(campaignID)
	if err != nil {
		return err
	}
	unlock := c.locker.Lock(campaignID)
	defer unlock()

	if err := c.db.WithContext(ctx).Delete(&model.CampaignModel{}, "id = ?", campaignID).Error; err != nil {
		return err
	}
	c.opts.Cache.InvalidateCampaign(ctx, campaignID)
	return nil
}

// CheckCompleted 对比链上完成事件与本地已确认状态
func (c *CampaignLogic) CheckCompleted(ctx context.Context, campaignID string) error {
	campaignID, err := ledger.NormalizeAddress(campaignID)
	if err != nil {
		return err
	}
	campaign, err := findCampaign(c.db.WithContext(ctx), campaignID)
	if err != nil {
		return err
	}
	if campaign.Status != ledger.StatusCompleted {
		logger.Warn("Campaign %s completed on chain but local confirmed status is %s (raised %d of %d)",
			campaignID, campaign.Status, campaign.SuiRaised, campaign.Target)
	}
	return nil
}

// DropStaleTentative 作废超时未确认的记录；待确认投票直接删除以释放唯一索引
func (c *CampaignLogic) DropStaleTentative(ctx context.Context, cutoff time.Time) (int64, error) {
	var dropped int64
	affected := make(map[string]bool)
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, m := range []interface{}{&model.ContributionModel{}, &model.WithdrawalModel{}} {
			var ids []string
			if err := tx.Model(m).Where("state = ? AND created_at < ?", model.StateTentative, cutoff).
				Distinct().Pluck("campaign_id", &ids).Error; err != nil {
				return err
			}
			for _, id := range ids {
				affected[id] = true
			}
			res := tx.Model(m).Where("state = ? AND created_at < ?", model.StateTentative, cutoff).
				Update("state", model.StateDropped)
			if res.Error != nil {
				return res.Error
			}
			dropped += res.RowsAffected
		}

		var stale []model.VoteModel
		if err := tx.Where("state = ? AND created_at < ?", model.StateTentative, cutoff).Find(&stale).Error; err != nil {
			return err
		}
		if len(stale) > 0 {
			proposalIDs := make([]string, 0, len(stale))
			voteIDs := make([]string, 0, len(stale))
			for _, v := range stale {
				proposalIDs = append(proposalIDs, v.ProposalId)
				voteIDs = append(voteIDs, v.Id)
			}
			var ids []string
			if err := tx.Unscoped().Model(&model.ProposalModel{}).Where("id IN ?", proposalIDs).
				Distinct().Pluck("campaign_id", &ids).Error; err != nil {
				return err
			}
			for _, id := range ids {
				affected[id] = true
			}
			res := tx.Where("id IN ?", voteIDs).Delete(&model.VoteModel{})
			if res.Error != nil {
				return res.Error
			}
			dropped += res.RowsAffected
		}

		res := tx.Model(&model.ProposalModel{}).Where("state = ? AND created_at < ?", model.StateTentative, cutoff).
			Update("state", model.StateDropped)
		if res.Error != nil {
			return res.Error
		}
		dropped += res.RowsAffected

		res = tx.Model(&model.CampaignModel{}).Where("state = ? AND created_at < ?", model.StateTentative, cutoff).
			Update("state", model.StateDropped)
		if res.Error != nil {
			return res.Error
		}
		dropped += res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, err
	}
	for id := range affected {
		c.opts.Cache.InvalidateCampaign(ctx, id)
	}
	return dropped, nil
}

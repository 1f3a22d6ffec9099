package handler

import (
	"time"

	"github.com/vic-labs/collectivo/internal/governance"
	"github.com/vic-labs/collectivo/internal/ledger"
	"github.com/vic-labs/collectivo/internal/logic"
	"github.com/vic-labs/collectivo/internal/model"
)

// 通用响应结构
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
	Error   *ErrorBody  `json:"error,omitempty"`
}

// ErrorBody 校验错误的类型和上下文数值
type ErrorBody struct {
	Kind    ledger.Kind    `json:"kind"`
	Details map[string]any `json:"details,omitempty"`
}

// 分页信息结构
type Pagination struct {
	Page      int   `json:"page"`
	PageSize  int   `json:"pageSize"`
	Total     int64 `json:"total"`
	TotalPage int64 `json:"totalPage"`
}

// Amount 金额，同时给出 MIST 整数和 SUI 十进制字符串
type Amount struct {
	Mist int64  `json:"mist"`
	Sui  string `json:"sui"`
}

// NewAmount 由 MIST 构造金额
func NewAmount(mist int64) Amount {
	return Amount{Mist: mist, Sui: ledger.FormatSui(mist)}
}

// 请求模型，金额均为 SUI 十进制字符串

// CreateCampaignRequest 创建活动请求
type CreateCampaignRequest struct {
	Id              string `json:"id" binding:"required"`
	NftId           string `json:"nftId"`
	NftName         string `json:"nftName"`
	NftImageUrl     string `json:"nftImageUrl"`
	NftType         string `json:"nftType"`
	NftRank         int64  `json:"nftRank"`
	Description     string `json:"description"`
	Target          string `json:"target" binding:"required"`
	MinContribution string `json:"minContribution" binding:"required"`
	Creator         string `json:"creator" binding:"required"`
	TxDigest        string `json:"txDigest" binding:"required"`
}

// LedgerRequest 贡献或提取请求
type LedgerRequest struct {
	Contributor string `json:"contributor" binding:"required"`
	Amount      string `json:"amount" binding:"required"`
	TxDigest    string `json:"txDigest" binding:"required"`
}

// NftStatusRequest 修改 NFT 状态请求
type NftStatusRequest struct {
	Status model.NftStatus `json:"status" binding:"required"`
}

// CreateProposalRequest 创建提案请求
type CreateProposalRequest struct {
	Proposer     string                  `json:"proposer" binding:"required"`
	ProposalType governance.ProposalType `json:"proposalType" binding:"required"`
	ListPrice    string                  `json:"listPrice"`
	TxDigest     string                  `json:"txDigest" binding:"required"`
}

// CastVoteRequest 投票请求
type CastVoteRequest struct {
	Voter    string              `json:"voter" binding:"required"`
	VoteType governance.VoteType `json:"voteType" binding:"required"`
	TxDigest string              `json:"txDigest" binding:"required"`
}

// 活动相关响应模型

// CampaignResponse 活动响应模型，金额为链上已确认值
type CampaignResponse struct {
	ID              string            `json:"id"`
	NftID           string            `json:"nftId"`
	NftName         string            `json:"nftName"`
	NftImageURL     string            `json:"nftImageUrl"`
	NftType         string            `json:"nftType"`
	NftRank         int64             `json:"nftRank"`
	NftStatus       model.NftStatus   `json:"nftStatus"`
	Description     string            `json:"description"`
	Target          Amount            `json:"target"`
	SuiRaised       Amount            `json:"suiRaised"`
	MinContribution Amount            `json:"minContribution"`
	Status          ledger.Status     `json:"status"`
	Creator         string            `json:"creator"`
	TxDigest        string            `json:"txDigest"`
	State           model.RecordState `json:"state"`
	CreatedAt       time.Time         `json:"createdAt"`
	CompletedAt     *time.Time        `json:"completedAt"`
}

// SnapshotResponse 账本快照
type SnapshotResponse struct {
	Target          Amount        `json:"target"`
	SuiRaised       Amount        `json:"suiRaised"`
	MinContribution Amount        `json:"minContribution"`
	Remaining       Amount        `json:"remaining"`
	Status          ledger.Status `json:"status"`
	CompletedAt     *time.Time    `json:"completedAt"`
}

// LedgerRecordResponse 贡献或提取记录
type LedgerRecordResponse struct {
	ID               string            `json:"id"`
	Contributor      string            `json:"contributor"`
	Amount           Amount            `json:"amount"`
	TxDigest         string            `json:"txDigest"`
	State            model.RecordState `json:"state"`
	At               time.Time         `json:"at"`
	IsFullWithdrawal bool              `json:"isFullWithdrawal,omitempty"`
}

// CampaignDetailResponse 活动详情
type CampaignDetailResponse struct {
	Campaign          CampaignResponse       `json:"campaign"`
	Confirmed         SnapshotResponse       `json:"confirmed"`
	Projected         SnapshotResponse       `json:"projected"`
	Contributions     []LedgerRecordResponse `json:"contributions"`
	Withdrawals       []LedgerRecordResponse `json:"withdrawals"`
	ContributorsCount int                    `json:"contributorsCount"`
	Proposals         []ProposalResponse     `json:"proposals"`
}

// GetCampaignsResponse 活动列表响应
type GetCampaignsResponse struct {
	Campaigns  []CampaignResponse `json:"campaigns"`
	Pagination Pagination         `json:"pagination"`
}

// LedgerResultResponse 贡献或提取结果
type LedgerResultResponse struct {
	RecordID       string           `json:"recordId"`
	Confirmed      SnapshotResponse `json:"confirmed"`
	Projected      SnapshotResponse `json:"projected"`
	Balance        Amount           `json:"balance"`
	DepositWithFee *Amount          `json:"depositWithFee,omitempty"`
}

// BalanceResponse 贡献者余额
type BalanceResponse struct {
	Contributor string `json:"contributor"`
	Confirmed   Amount `json:"confirmed"`
	Projected   Amount `json:"projected"`
}

// ContributorResponse 贡献者份额
type ContributorResponse struct {
	Address   string `json:"address"`
	Confirmed Amount `json:"confirmed"`
	Projected Amount `json:"projected"`
}

// GetContributorsResponse 贡献者列表响应
type GetContributorsResponse struct {
	Contributors []ContributorResponse `json:"contributors"`
	Count        int                   `json:"count"`
}

// 提案相关响应模型

// ProposalResponse 提案及投票统计
type ProposalResponse struct {
	ID              string                    `json:"id"`
	ObjectID        *string                   `json:"objectId"`
	CampaignID      string                    `json:"campaignId"`
	Proposer        string                    `json:"proposer"`
	ProposalType    governance.ProposalType   `json:"proposalType"`
	ListPrice       *Amount                   `json:"listPrice,omitempty"`
	Status          governance.ProposalStatus `json:"status"`
	ConfirmedStatus governance.ProposalStatus `json:"confirmedStatus"`
	State           model.RecordState         `json:"state"`
	CreatedAt       time.Time                 `json:"createdAt"`
	EndedAt         *time.Time                `json:"endedAt"`
	VoteStats       governance.VoteStats      `json:"voteStats"`
}

// 转换函数

// ToCampaignResponse 将数据库模型转换为响应模型
func ToCampaignResponse(campaign *model.CampaignModel) CampaignResponse {
	return CampaignResponse{
		ID:              campaign.Id,
		NftID:           campaign.NftId,
		NftName:         campaign.NftName,
		NftImageURL:     campaign.NftImageUrl,
		NftType:         campaign.NftType,
		NftRank:         campaign.NftRank,
		NftStatus:       campaign.NftStatus,
		Description:     campaign.Description,
		Target:          NewAmount(campaign.Target),
		SuiRaised:       NewAmount(campaign.SuiRaised),
		MinContribution: NewAmount(campaign.MinContribution),
		Status:          campaign.Status,
		Creator:         campaign.Creator,
		TxDigest:        campaign.TxDigest,
		State:           campaign.State,
		CreatedAt:       campaign.CreatedAt,
		CompletedAt:     campaign.CompletedAt,
	}
}

// ToCampaignResponseList 将数据库模型列表转换为响应模型列表
func ToCampaignResponseList(campaigns []model.CampaignModel) []CampaignResponse {
	result := make([]CampaignResponse, len(campaigns))
	for i := range campaigns {
		result[i] = ToCampaignResponse(&campaigns[i])
	}
	return result
}

// ToSnapshotResponse 账本快照转换
func ToSnapshotResponse(c ledger.Campaign) SnapshotResponse {
	return SnapshotResponse{
		Target:          NewAmount(c.Target),
		SuiRaised:       NewAmount(c.SuiRaised),
		MinContribution: NewAmount(c.MinContribution),
		Remaining:       NewAmount(c.Remaining()),
		Status:          c.Status,
		CompletedAt:     c.CompletedAt,
	}
}

// ToCampaignDetailResponse 活动详情转换
func ToCampaignDetailResponse(detail *logic.CampaignDetail, proposals []logic.ProposalView) CampaignDetailResponse {
	resp := CampaignDetailResponse{
		Campaign:          ToCampaignResponse(&detail.Campaign),
		Confirmed:         ToSnapshotResponse(detail.Confirmed),
		Projected:         ToSnapshotResponse(detail.Projected),
		Contributions:     make([]LedgerRecordResponse, len(detail.Contributions)),
		Withdrawals:       make([]LedgerRecordResponse, len(detail.Withdrawals)),
		ContributorsCount: detail.ContributorsCount,
		Proposals:         ToProposalResponseList(proposals),
	}
	for i, r := range detail.Contributions {
		resp.Contributions[i] = LedgerRecordResponse{
			ID:          r.Id,
			Contributor: r.Contributor,
			Amount:      NewAmount(r.Amount),
			TxDigest:    r.TxDigest,
			State:       r.State,
			At:          r.ContributedAt,
		}
	}
	for i, r := range detail.Withdrawals {
		resp.Withdrawals[i] = LedgerRecordResponse{
			ID:               r.Id,
			Contributor:      r.Contributor,
			Amount:           NewAmount(r.Amount),
			TxDigest:         r.TxDigest,
			State:            r.State,
			At:               r.WithdrawnAt,
			IsFullWithdrawal: r.IsFullWithdrawal,
		}
	}
	return resp
}

// ToLedgerResultResponse 贡献或提取结果转换，depositWithFee 仅贡献时返回
func ToLedgerResultResponse(result *logic.LedgerResult) LedgerResultResponse {
	resp := LedgerResultResponse{
		RecordID:  result.RecordId,
		Confirmed: ToSnapshotResponse(result.Confirmed),
		Projected: ToSnapshotResponse(result.Projected),
		Balance:   NewAmount(result.Balance),
	}
	if result.DepositWithFee > 0 {
		deposit := NewAmount(result.DepositWithFee)
		resp.DepositWithFee = &deposit
	}
	return resp
}

// ToContributorsResponse 贡献者列表转换
func ToContributorsResponse(stakes []logic.ContributorStake) GetContributorsResponse {
	resp := GetContributorsResponse{Contributors: make([]ContributorResponse, len(stakes))}
	for i, s := range stakes {
		resp.Contributors[i] = ContributorResponse{
			Address:   s.Address,
			Confirmed: NewAmount(s.Confirmed),
			Projected: NewAmount(s.Projected),
		}
		if s.Projected > 0 {
			resp.Count++
		}
	}
	return resp
}

// ToProposalResponse 提案视图转换，status 为包含待确认投票的预估状态
func ToProposalResponse(view *logic.ProposalView) ProposalResponse {
	p := view.Proposal
	resp := ProposalResponse{
		ID:              p.ID,
		ObjectID:        view.ObjectId,
		CampaignID:      p.CampaignID,
		Proposer:        p.Proposer,
		ProposalType:    p.Type,
		Status:          p.Status,
		ConfirmedStatus: view.ConfirmedStatus,
		State:           view.State,
		CreatedAt:       p.CreatedAt,
		EndedAt:         p.EndedAt,
		VoteStats:       view.Stats,
	}
	if p.Type == governance.ProposalList {
		price := NewAmount(p.ListPrice)
		resp.ListPrice = &price
	}
	return resp
}

// ToProposalResponseList 提案视图列表转换
func ToProposalResponseList(views []logic.ProposalView) []ProposalResponse {
	result := make([]ProposalResponse, len(views))
	for i := range views {
		result[i] = ToProposalResponse(&views[i])
	}
	return result
}

// totalPages 计算总页数
func totalPages(total int64, pageSize int) int64 {
	if pageSize <= 0 {
		return 0
	}
	return (total + int64(pageSize) - 1) / int64(pageSize)
}

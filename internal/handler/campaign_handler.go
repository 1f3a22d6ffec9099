package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/vic-labs/collectivo/internal/ledger"
	"github.com/vic-labs/collectivo/internal/logic"
)

type CampaignHandler struct {
	campaignLogic *logic.CampaignLogic
	proposalLogic *logic.ProposalLogic
}

func NewCampaignHandler(campaigns *logic.CampaignLogic, proposals *logic.ProposalLogic) *CampaignHandler {
	return &CampaignHandler{
		campaignLogic: campaigns,
		proposalLogic: proposals,
	}
}

// CreateCampaign 记录已提交的创建活动交易
func (h *CampaignHandler) CreateCampaign(c *gin.Context) {
	var req CreateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	target, err := ledger.SuiToMist(req.Target)
	if err != nil {
		HandleError(c, err)
		return
	}
	minContribution, err := ledger.SuiToMist(req.MinContribution)
	if err != nil {
		HandleError(c, err)
		return
	}

	campaign, err := h.campaignLogic.CreateCampaign(c.Request.Context(), logic.CreateCampaignRequest{
		Id:              req.Id,
		NftId:           req.NftId,
		NftName:         req.NftName,
		NftImageUrl:     req.NftImageUrl,
		NftType:         req.NftType,
		NftRank:         req.NftRank,
		Description:     req.Description,
		Target:          target,
		MinContribution: minContribution,
		Creator:         req.Creator,
		TxDigest:        req.TxDigest,
	})
	if err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusCreated, "活动创建成功，等待链上确认", ToCampaignResponse(campaign))
}

// GetCampaigns 获取活动列表
func (h *CampaignHandler) GetCampaigns(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))
	filter := logic.CampaignFilter{
		Search:   c.Query("search"),
		Status:   c.Query("status"),
		Creator:  c.Query("creator"),
		Page:     page,
		PageSize: pageSize,
	}

	campaigns, total, err := h.campaignLogic.ListCampaigns(c.Request.Context(), filter)
	if err != nil {
		HandleError(c, err)
		return
	}
	page, pageSize = logic.NormalizePage(page, pageSize)
	SuccessResponse(c, http.StatusOK, "获取活动列表成功", GetCampaignsResponse{
		Campaigns: ToCampaignResponseList(campaigns),
		Pagination: Pagination{
			Page:      page,
			PageSize:  pageSize,
			Total:     total,
			TotalPage: totalPages(total, pageSize),
		},
	})
}

// GetCampaign 获取活动详情，包含已确认和预估快照以及提案
func (h *CampaignHandler) GetCampaign(c *gin.Context) {
	ctx := c.Request.Context()
	detail, err := h.campaignLogic.GetCampaign(ctx, c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	proposals, err := h.proposalLogic.ListProposals(ctx, detail.Campaign.Id, c.Query("voter"))
	if err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "获取活动详情成功", ToCampaignDetailResponse(detail, proposals))
}

// DeleteCampaign 创建者删除活动
func (h *CampaignHandler) DeleteCampaign(c *gin.Context) {
	if err := h.campaignLogic.DeleteCampaign(c.Request.Context(), c.Param("id"), c.Query("requester")); err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "活动删除成功", nil)
}

// GetBalance 获取贡献者余额
func (h *CampaignHandler) GetBalance(c *gin.Context) {
	balance, err := h.campaignLogic.Balance(c.Request.Context(), c.Param("id"), c.Param("address"))
	if err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "获取余额成功", BalanceResponse{
		Contributor: balance.Contributor,
		Confirmed:   NewAmount(balance.Confirmed),
		Projected:   NewAmount(balance.Projected),
	})
}

// GetContributors 获取贡献者列表
func (h *CampaignHandler) GetContributors(c *gin.Context) {
	stakes, err := h.campaignLogic.Contributors(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "获取贡献者列表成功", ToContributorsResponse(stakes))
}

// Contribute 校验并记录贡献
func (h *CampaignHandler) Contribute(c *gin.Context) {
	var req LedgerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	amount, err := ledger.SuiToMist(req.Amount)
	if err != nil {
		HandleError(c, err)
		return
	}

	result, err := h.campaignLogic.Contribute(c.Request.Context(), logic.ContributeRequest{
		CampaignId:  c.Param("id"),
		Contributor: req.Contributor,
		Amount:      amount,
		TxDigest:    req.TxDigest,
	})
	if err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusCreated, "贡献已记录，等待链上确认", ToLedgerResultResponse(result))
}

// Withdraw 校验并记录提取
func (h *CampaignHandler) Withdraw(c *gin.Context) {
	var req LedgerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	amount, err := ledger.SuiToMist(req.Amount)
	if err != nil {
		HandleError(c, err)
		return
	}

	result, err := h.campaignLogic.Withdraw(c.Request.Context(), logic.WithdrawRequest{
		CampaignId:  c.Param("id"),
		Contributor: req.Contributor,
		Amount:      amount,
		TxDigest:    req.TxDigest,
	})
	if err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusCreated, "提取已记录，等待链上确认", ToLedgerResultResponse(result))
}

// SetNftStatus 修改 NFT 状态
func (h *CampaignHandler) SetNftStatus(c *gin.Context) {
	var req NftStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	campaign, err := h.campaignLogic.SetNftStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "NFT 状态更新成功", ToCampaignResponse(campaign))
}

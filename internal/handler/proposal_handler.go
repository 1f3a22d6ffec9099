package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vic-labs/collectivo/internal/ledger"
	"github.com/vic-labs/collectivo/internal/logic"
)

type ProposalHandler struct {
	proposalLogic *logic.ProposalLogic
}

func NewProposalHandler(proposals *logic.ProposalLogic) *ProposalHandler {
	return &ProposalHandler{proposalLogic: proposals}
}

// CreateProposal 创建提案，提案人自动投赞成票
func (h *ProposalHandler) CreateProposal(c *gin.Context) {
	var req CreateProposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	var listPrice int64
	if req.ListPrice != "" {
		price, err := ledger.PriceToMist(req.ListPrice)
		if err != nil {
			HandleError(c, err)
			return
		}
		listPrice = price
	}

	view, err := h.proposalLogic.CreateProposal(c.Request.Context(), logic.CreateProposalRequest{
		CampaignId:   c.Param("id"),
		Proposer:     req.Proposer,
		ProposalType: req.ProposalType,
		ListPrice:    listPrice,
		TxDigest:     req.TxDigest,
	})
	if err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusCreated, "提案创建成功，等待链上确认", ToProposalResponse(view))
}

// GetProposals 获取活动下的提案列表
func (h *ProposalHandler) GetProposals(c *gin.Context) {
	views, err := h.proposalLogic.ListProposals(c.Request.Context(), c.Param("id"), c.Query("voter"))
	if err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "获取提案列表成功", ToProposalResponseList(views))
}

// GetProposal 获取提案详情和投票统计
func (h *ProposalHandler) GetProposal(c *gin.Context) {
	view, err := h.proposalLogic.VoteStats(c.Request.Context(), c.Param("id"), c.Query("voter"))
	if err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "获取提案详情成功", ToProposalResponse(view))
}

// CastVote 投票
func (h *ProposalHandler) CastVote(c *gin.Context) {
	var req CastVoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	view, err := h.proposalLogic.CastVote(c.Request.Context(), logic.CastVoteRequest{
		ProposalId: c.Param("id"),
		Voter:      req.Voter,
		VoteType:   req.VoteType,
		TxDigest:   req.TxDigest,
	})
	if err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusCreated, "投票已记录，等待链上确认", ToProposalResponse(view))
}

// DeleteProposal 提案人删除提案
func (h *ProposalHandler) DeleteProposal(c *gin.Context) {
	if err := h.proposalLogic.DeleteProposal(c.Request.Context(), c.Param("id"), c.Query("requester")); err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "提案删除成功", nil)
}

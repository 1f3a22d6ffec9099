package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vic-labs/collectivo/internal/ledger"
	"github.com/vic-labs/collectivo/internal/logger"
	"github.com/vic-labs/collectivo/internal/logic"
)

// SuccessResponse 成功响应
func SuccessResponse(c *gin.Context, statusCode int, message string, data interface{}) {
	c.JSON(statusCode, Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// ErrorResponse 错误响应
func ErrorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, Response{
		Success: false,
		Message: message,
		Data:    nil,
	})
}

// HandleError 按错误类型返回对应的状态码
func HandleError(c *gin.Context, err error) {
	var verr *ledger.Error
	if errors.As(err, &verr) {
		c.JSON(validationStatus(verr.Kind), Response{
			Success: false,
			Message: verr.Error(),
			Error:   &ErrorBody{Kind: verr.Kind, Details: verr.Details},
		})
		return
	}

	switch {
	case errors.Is(err, logic.ErrCampaignNotFound), errors.Is(err, logic.ErrProposalNotFound):
		ErrorResponse(c, http.StatusNotFound, err.Error())
	case errors.Is(err, logic.ErrDuplicateTx), errors.Is(err, logic.ErrCampaignExists):
		ErrorResponse(c, http.StatusConflict, err.Error())
	case errors.Is(err, logic.ErrInvalidRequest):
		ErrorResponse(c, http.StatusBadRequest, err.Error())
	default:
		logger.Error("Request %s %s failed: %v", c.Request.Method, c.FullPath(), err)
		ErrorResponse(c, http.StatusInternalServerError, "服务器内部错误")
	}
}

func validationStatus(kind ledger.Kind) int {
	switch kind {
	case ledger.KindInvalidAddress, ledger.KindInvalidProposalType, ledger.KindInvalidVoteType:
		return http.StatusBadRequest
	case ledger.KindNotAContributor, ledger.KindNotCreator, ledger.KindNotProposer:
		return http.StatusForbidden
	case ledger.KindDuplicateVote:
		return http.StatusConflict
	default:
		return http.StatusUnprocessableEntity
	}
}

// bindError 请求体解析失败
func bindError(c *gin.Context, err error) {
	ErrorResponse(c, http.StatusBadRequest, "请求参数错误: "+err.Error())
}

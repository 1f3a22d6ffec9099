package ledger

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Kind 校验错误类型
type Kind string

const (
	KindInvalidAmount            Kind = "InvalidAmount"
	KindBelowMinimumContribution Kind = "BelowMinimumContribution"
	KindExceedsRemainingCapacity Kind = "ExceedsRemainingCapacity"
	KindInsufficientBalance      Kind = "InsufficientBalance"
	KindStrandedBalance          Kind = "StrandedBalance"
	KindNoBalance                Kind = "NoBalance"
	KindCampaignNotActive        Kind = "CampaignNotActive"
	KindNotAContributor          Kind = "NotAContributor"
	KindProposalNotActive        Kind = "ProposalNotActive"
	KindDuplicateVote            Kind = "DuplicateVote"
	KindCampaignNotCompleted     Kind = "CampaignNotCompleted"
	KindInvalidListPrice         Kind = "InvalidListPrice"
	KindInvalidProposalType      Kind = "InvalidProposalType"
	KindInvalidVoteType          Kind = "InvalidVoteType"
	KindInvalidAddress           Kind = "InvalidAddress"
	KindInvalidNftTransition     Kind = "InvalidNftTransition"
	KindNotCreator               Kind = "NotCreator"
	KindNotProposer              Kind = "NotProposer"
	KindCampaignHasFunds         Kind = "CampaignHasFunds"
	KindProposalHasVotes         Kind = "ProposalHasVotes"
)

// Error 带类型和上下文数值的校验错误
type Error struct {
	Kind    Kind
	Message string
	Details map[string]any
}

// Error 实现 error 接口
func (e *Error) Error() string {
	if len(e.Details) == 0 {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	keys := make([]string, 0, len(e.Details))
	for k := range e.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, e.Details[k]))
	}
	return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, strings.Join(parts, ", "))
}

// Is 按错误类型比较，使 errors.Is(err, ErrDuplicateVote) 可用
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// 哨兵错误，仅用于 errors.Is 比较
var (
	ErrInvalidAmount            = &Error{Kind: KindInvalidAmount}
	ErrBelowMinimumContribution = &Error{Kind: KindBelowMinimumContribution}
	ErrExceedsRemainingCapacity = &Error{Kind: KindExceedsRemainingCapacity}
	ErrInsufficientBalance      = &Error{Kind: KindInsufficientBalance}
	ErrStrandedBalance          = &Error{Kind: KindStrandedBalance}
	ErrNoBalance                = &Error{Kind: KindNoBalance}
	ErrCampaignNotActive        = &Error{Kind: KindCampaignNotActive}
	ErrNotAContributor          = &Error{Kind: KindNotAContributor}
	ErrProposalNotActive        = &Error{Kind: KindProposalNotActive}
	ErrDuplicateVote            = &Error{Kind: KindDuplicateVote}
	ErrCampaignNotCompleted     = &Error{Kind: KindCampaignNotCompleted}
	ErrInvalidListPrice         = &Error{Kind: KindInvalidListPrice}
	ErrInvalidProposalType      = &Error{Kind: KindInvalidProposalType}
	ErrInvalidVoteType          = &Error{Kind: KindInvalidVoteType}
	ErrInvalidAddress           = &Error{Kind: KindInvalidAddress}
	ErrInvalidNftTransition     = &Error{Kind: KindInvalidNftTransition}
	ErrNotCreator               = &Error{Kind: KindNotCreator}
	ErrNotProposer              = &Error{Kind: KindNotProposer}
	ErrCampaignHasFunds         = &Error{Kind: KindCampaignHasFunds}
	ErrProposalHasVotes         = &Error{Kind: KindProposalHasVotes}
)

// NewError 创建校验错误
func NewError(kind Kind, message string, details map[string]any) *Error {
	return &Error{Kind: kind, Message: message, Details: details}
}

// KindOf 返回错误类型，非校验错误返回空字符串
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsValidation 判断是否为校验错误
func IsValidation(err error) bool {
	return KindOf(err) != ""
}

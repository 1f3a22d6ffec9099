package ledger

import (
	"github.com/shopspring/decimal"
)

const basisPoints = 10000

// Policy 校验策略
type Policy struct {
	// OvercontributionToleranceBps 允许超出目标的比例（基点），100 即 1%
	OvercontributionToleranceBps int64
}

// DefaultPolicy 默认策略：最多超出目标 1%
func DefaultPolicy() Policy {
	return Policy{OvercontributionToleranceBps: 100}
}

// Capacity 活动在容忍范围内最多还能接受的金额
func (p Policy) Capacity(c Campaign) int64 {
	limit := decimal.NewFromInt(c.Target).
		Mul(decimal.NewFromInt(basisPoints + p.OvercontributionToleranceBps)).
		Div(decimal.NewFromInt(basisPoints)).
		Floor()
	remaining := limit.Sub(decimal.NewFromInt(c.SuiRaised))
	if remaining.IsNegative() {
		return 0
	}
	return remaining.IntPart()
}

// ValidateContribution 贡献前置校验，不修改任何状态
func ValidateContribution(c Campaign, balance, amount int64, p Policy) error {
	if amount <= 0 {
		return NewError(KindInvalidAmount, "contribution amount must be positive",
			map[string]any{"amount": amount})
	}
	if c.Status != StatusActive {
		return NewError(KindCampaignNotActive, "campaign is no longer accepting contributions",
			map[string]any{"status": c.Status})
	}
	// 已达到最低额度的贡献者可以小额追加
	if amount < c.MinContribution && balance < c.MinContribution {
		return NewError(KindBelowMinimumContribution, "contribution is below the campaign minimum",
			map[string]any{"amount": amount, "minContribution": c.MinContribution, "balance": balance})
	}
	if capacity := p.Capacity(c); amount > capacity {
		return NewError(KindExceedsRemainingCapacity, "contribution exceeds the remaining capacity",
			map[string]any{"amount": amount, "remaining": c.Remaining(), "capacity": capacity})
	}
	return nil
}

// ValidateWithdrawal 提取前置校验，不修改任何状态
func ValidateWithdrawal(c Campaign, balance, amount int64) error {
	if amount <= 0 {
		return NewError(KindInvalidAmount, "withdrawal amount must be positive",
			map[string]any{"amount": amount})
	}
	if c.Status != StatusActive {
		return NewError(KindCampaignNotActive, "funds are locked once the campaign is completed",
			map[string]any{"status": c.Status})
	}
	if balance <= 0 {
		return NewError(KindNoBalance, "contributor has nothing to withdraw", nil)
	}
	if amount > balance {
		return NewError(KindInsufficientBalance, "withdrawal exceeds contributor balance",
			map[string]any{"amount": amount, "balance": balance})
	}
	if remaining := balance - amount; remaining > 0 && remaining < c.MinContribution {
		return NewError(KindStrandedBalance, "partial withdrawal would leave a balance below the minimum",
			map[string]any{"amount": amount, "remaining": remaining, "minContribution": c.MinContribution})
	}
	return nil
}

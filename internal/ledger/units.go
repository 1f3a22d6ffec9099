package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MistPerSui 1 SUI = 10^9 MIST
const MistPerSui int64 = 1_000_000_000

const suiDecimals = 9

var mistPerSui = decimal.NewFromInt(MistPerSui)

// SuiToMist 将 SUI 十进制字符串转换为 MIST，拒绝超过9位小数和非正数
func SuiToMist(amount string) (int64, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return 0, NewError(KindInvalidAmount, "amount is not a decimal number",
			map[string]any{"amount": amount})
	}
	return DecimalSuiToMist(d)
}

// DecimalSuiToMist 将 SUI 金额转换为 MIST
func DecimalSuiToMist(d decimal.Decimal) (int64, error) {
	if !d.IsPositive() {
		return 0, NewError(KindInvalidAmount, "amount must be positive",
			map[string]any{"amount": d.String()})
	}
	return scaleToMist(d, KindInvalidAmount, "amount")
}

// PriceToMist 将挂单价格转换为 MIST；非正数原样返回，由提案创建时拒绝
func PriceToMist(price string) (int64, error) {
	d, err := decimal.NewFromString(price)
	if err != nil {
		return 0, NewError(KindInvalidListPrice, "list price is not a decimal number",
			map[string]any{"listPrice": price})
	}
	return scaleToMist(d, KindInvalidListPrice, "listPrice")
}

func scaleToMist(d decimal.Decimal, kind Kind, field string) (int64, error) {
	mist := d.Mul(mistPerSui)
	if !mist.Equal(mist.Truncate(0)) {
		return 0, NewError(kind, fmt.Sprintf("%s has more than %d decimal places", field, suiDecimals),
			map[string]any{field: d.String()})
	}
	if mist.Abs().GreaterThan(decimal.NewFromInt(1<<62)) {
		return 0, NewError(kind, field+" is too large",
			map[string]any{field: d.String()})
	}
	return mist.IntPart(), nil
}

// MistToSui MIST 转换为 SUI
func MistToSui(mist int64) decimal.Decimal {
	return decimal.NewFromInt(mist).Div(mistPerSui)
}

// FormatSui MIST 格式化为 SUI 字符串，去掉末尾的0
func FormatSui(mist int64) string {
	return decimal.New(mist, -suiDecimals).String()
}

// DepositWithFee 计算需要存入的金额，使扣除平台手续费后到账金额恰好为 contribution
func DepositWithFee(contribution int64, feeBps int64) int64 {
	q, _ := decimal.NewFromInt(contribution).
		Mul(decimal.NewFromInt(basisPoints + feeBps)).
		QuoRem(decimal.NewFromInt(basisPoints), 0)
	return q.IntPart()
}

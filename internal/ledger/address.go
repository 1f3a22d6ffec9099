package ledger

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// AddressLength Sui 地址和对象ID均为32字节
const AddressLength = 32

// NormalizeAddress 规范化 Sui 地址：小写、0x前缀、左侧补零至32字节
func NormalizeAddress(address string) (string, error) {
	raw := strings.ToLower(strings.TrimSpace(address))
	if !strings.HasPrefix(raw, "0x") {
		return "", NewError(KindInvalidAddress, "address must be 0x-prefixed hex",
			map[string]any{"address": address})
	}
	digits := raw[2:]
	if len(digits)%2 == 1 {
		digits = "0" + digits
	}
	b, err := hexutil.Decode("0x" + digits)
	if err != nil || len(b) == 0 || len(b) > AddressLength {
		return "", NewError(KindInvalidAddress, "address is not a valid 32-byte hex value",
			map[string]any{"address": address})
	}
	return hexutil.Encode(common.LeftPadBytes(b, AddressLength)), nil
}

// MustNormalizeAddress 规范化地址，失败时 panic，仅用于常量和测试
func MustNormalizeAddress(address string) string {
	a, err := NormalizeAddress(address)
	if err != nil {
		panic(err)
	}
	return a
}

// SameAddress 忽略大小写和前导零比较两个地址
func SameAddress(a, b string) bool {
	na, errA := NormalizeAddress(a)
	nb, errB := NormalizeAddress(b)
	if errA != nil || errB != nil {
		return strings.EqualFold(a, b)
	}
	return na == nb
}

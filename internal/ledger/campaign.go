package ledger

import (
	"sort"
	"time"
)

// Status 众筹活动状态
type Status string

const (
	StatusActive    Status = "Active"    // 募集中
	StatusCompleted Status = "Completed" // 已达成目标
)

// Campaign 众筹活动快照
type Campaign struct {
	ID              string     `json:"id"`
	Target          int64      `json:"target"`
	SuiRaised       int64      `json:"suiRaised"`
	MinContribution int64      `json:"minContribution"`
	Status          Status     `json:"status"`
	Creator         string     `json:"creator"`
	CreatedAt       time.Time  `json:"createdAt"`
	CompletedAt     *time.Time `json:"completedAt"`
}

// IsCompleted 是否已达成目标
func (c Campaign) IsCompleted() bool {
	return c.SuiRaised >= c.Target
}

// Remaining 距离目标的剩余金额，不小于0
func (c Campaign) Remaining() int64 {
	if c.SuiRaised >= c.Target {
		return 0
	}
	return c.Target - c.SuiRaised
}

// Contribution 贡献记录，写入后不可修改
type Contribution struct {
	CampaignID  string    `json:"campaignId"`
	Contributor string    `json:"contributor"`
	Amount      int64     `json:"amount"`
	At          time.Time `json:"contributedAt"`
	TxDigest    string    `json:"txDigest"`
	// Seq 链上事件顺序，待确认记录为0
	Seq         int64     `json:"seq,omitempty"`
}

// Withdrawal 提取记录，写入后不可修改
type Withdrawal struct {
	CampaignID       string    `json:"campaignId"`
	Contributor      string    `json:"contributor"`
	Amount           int64     `json:"amount"`
	At               time.Time `json:"withdrawnAt"`
	TxDigest         string    `json:"txDigest"`
	IsFullWithdrawal bool      `json:"isFullWithdrawal"`
	Seq              int64     `json:"seq,omitempty"`
}

// Stakes 贡献者当前持有份额（即投票权重）
type Stakes map[string]int64

// Of 获取某地址的份额
func (s Stakes) Of(address string) int64 {
	return s[address]
}

// Total 总份额
func (s Stakes) Total() int64 {
	var total int64
	for _, v := range s {
		total += v
	}
	return total
}

// Addresses 按字典序返回所有持有者
func (s Stakes) Addresses() []string {
	out := make([]string, 0, len(s))
	for addr := range s {
		out = append(out, addr)
	}
	sort.Strings(out)
	return out
}

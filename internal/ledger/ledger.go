package ledger

import (
	"sort"
	"time"
)

// Ledger 单个众筹活动的账本，只追加贡献和提取记录
type Ledger struct {
	campaign      Campaign
	contributions []Contribution
	withdrawals   []Withdrawal
	balances      map[string]int64
}

// New 基于活动元数据创建空账本，募集金额和状态从历史记录重新推导
func New(c Campaign) *Ledger {
	c.SuiRaised = 0
	c.Status = StatusActive
	c.CompletedAt = nil
	return &Ledger{
		campaign: c,
		balances: make(map[string]int64),
	}
}

// Entry 一条贡献或提取记录
type Entry struct {
	Contribution *Contribution
	Withdrawal   *Withdrawal
}

// At 记录时间
func (e Entry) At() time.Time {
	if e.Withdrawal != nil {
		return e.Withdrawal.At
	}
	return e.Contribution.At
}

// Seq 链上事件顺序
func (e Entry) Seq() int64 {
	if e.Withdrawal != nil {
		return e.Withdrawal.Seq
	}
	return e.Contribution.Seq
}

// Order 合并两类记录，按时间和链上顺序排序；同一检查点内的事件时间相同，
// 只能靠链上顺序区分。两者都相同时贡献先于提取
func Order(contributions []Contribution, withdrawals []Withdrawal) []Entry {
	entries := make([]Entry, 0, len(contributions)+len(withdrawals))
	for i := range contributions {
		entries = append(entries, Entry{Contribution: &contributions[i]})
	}
	for i := range withdrawals {
		entries = append(entries, Entry{Withdrawal: &withdrawals[i]})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		ai, aj := entries[i].At(), entries[j].At()
		if !ai.Equal(aj) {
			return ai.Before(aj)
		}
		if si, sj := entries[i].Seq(), entries[j].Seq(); si != sj {
			return si < sj
		}
		return entries[i].Withdrawal == nil && entries[j].Withdrawal != nil
	})
	return entries
}

// Replay 按 Order 的顺序重放历史记录
func Replay(c Campaign, contributions []Contribution, withdrawals []Withdrawal) (*Ledger, error) {
	l := New(c)
	for _, e := range Order(contributions, withdrawals) {
		if err := l.Apply(e); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// Apply 追加一条记录
func (l *Ledger) Apply(e Entry) error {
	if w := e.Withdrawal; w != nil {
		if _, err := l.RecordWithdrawal(w.Contributor, w.Amount, w.At, w.TxDigest); err != nil {
			return err
		}
		l.withdrawals[len(l.withdrawals)-1].Seq = w.Seq
		return nil
	}
	ct := e.Contribution
	if _, err := l.RecordContribution(ct.Contributor, ct.Amount, ct.At, ct.TxDigest); err != nil {
		return err
	}
	l.contributions[len(l.contributions)-1].Seq = ct.Seq
	return nil
}

// RecordContribution 追加贡献记录，达到目标时活动转为已完成
func (l *Ledger) RecordContribution(contributor string, amount int64, at time.Time, txDigest string) (Contribution, error) {
	if amount <= 0 {
		return Contribution{}, NewError(KindInvalidAmount, "contribution amount must be positive",
			map[string]any{"amount": amount})
	}

	ct := Contribution{
		CampaignID:  l.campaign.ID,
		Contributor: contributor,
		Amount:      amount,
		At:          at,
		TxDigest:    txDigest,
	}
	l.contributions = append(l.contributions, ct)
	l.balances[contributor] += amount
	l.campaign.SuiRaised += amount

	if l.campaign.Status == StatusActive && l.campaign.SuiRaised >= l.campaign.Target {
		completedAt := at
		l.campaign.Status = StatusCompleted
		l.campaign.CompletedAt = &completedAt
	}
	return ct, nil
}

// RecordWithdrawal 追加提取记录；已完成状态不会回退
func (l *Ledger) RecordWithdrawal(contributor string, amount int64, at time.Time, txDigest string) (Withdrawal, error) {
	if amount <= 0 {
		return Withdrawal{}, NewError(KindInvalidAmount, "withdrawal amount must be positive",
			map[string]any{"amount": amount})
	}
	balance := l.balances[contributor]
	if amount > balance {
		return Withdrawal{}, NewError(KindInsufficientBalance, "withdrawal exceeds contributor balance",
			map[string]any{"amount": amount, "balance": balance, "contributor": contributor})
	}

	w := Withdrawal{
		CampaignID:       l.campaign.ID,
		Contributor:      contributor,
		Amount:           amount,
		At:               at,
		TxDigest:         txDigest,
		IsFullWithdrawal: amount == balance,
	}
	l.withdrawals = append(l.withdrawals, w)
	l.balances[contributor] = balance - amount
	l.campaign.SuiRaised -= amount
	return w, nil
}

// BalanceOf 贡献者当前余额
func (l *Ledger) BalanceOf(contributor string) int64 {
	return l.balances[contributor]
}

// IsCompleted 是否已达成目标
func (l *Ledger) IsCompleted() bool {
	return l.campaign.IsCompleted()
}

// Snapshot 当前活动快照
func (l *Ledger) Snapshot() Campaign {
	c := l.campaign
	if c.CompletedAt != nil {
		t := *c.CompletedAt
		c.CompletedAt = &t
	}
	return c
}

// Contributions 贡献历史副本
func (l *Ledger) Contributions() []Contribution {
	out := make([]Contribution, len(l.contributions))
	copy(out, l.contributions)
	return out
}

// Withdrawals 提取历史副本
func (l *Ledger) Withdrawals() []Withdrawal {
	out := make([]Withdrawal, len(l.withdrawals))
	copy(out, l.withdrawals)
	return out
}

// Stakes 所有余额为正的贡献者份额
func (l *Ledger) Stakes() Stakes {
	s := make(Stakes, len(l.balances))
	for addr, bal := range l.balances {
		if bal > 0 {
			s[addr] = bal
		}
	}
	return s
}

// IsContributor 是否持有正余额
func (l *Ledger) IsContributor(address string) bool {
	return l.balances[address] > 0
}

package logic

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vic-labs/collectivo/internal/ledger"
	"github.com/vic-labs/collectivo/internal/model"
)

func TestContributeUpdatesProjectionOnly(t *testing.T) {
	f := newFixture(t, Options{FeeBps: 100})
	ctx := context.Background()
	f.confirmCampaign(t, campaignID, 100, 10)

	first, err := f.campaigns.Contribute(ctx, ContributeRequest{
		CampaignId: campaignID, Contributor: alice, Amount: 60, TxDigest: "tx-a",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(60), first.Projected.SuiRaised)
	assert.Equal(t, ledger.StatusActive, first.Projected.Status)
	assert.Equal(t, int64(60), first.Balance)
	assert.Equal(t, ledger.DepositWithFee(60, 100), first.DepositWithFee)

	second, err := f.campaigns.Contribute(ctx, ContributeRequest{
		CampaignId: campaignID, Contributor: bob, Amount: 40, TxDigest: "tx-b",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(100), second.Projected.SuiRaised)
	assert.Equal(t, ledger.StatusCompleted, second.Projected.Status)
	assert.Equal(t, int64(0), second.Confirmed.SuiRaised)
	assert.Equal(t, ledger.StatusActive, second.Confirmed.Status)

	row := f.campaignRow(t)
	assert.Equal(t, int64(0), row.SuiRaised)
	assert.Equal(t, ledger.StatusActive, row.Status)

	_, err = f.campaigns.Contribute(ctx, ContributeRequest{
		CampaignId: campaignID, Contributor: carol, Amount: 10, TxDigest: "tx-c",
	})
	assert.ErrorIs(t, err, ledger.ErrCampaignNotActive)
}

func TestIngestPromotesTentativeRecords(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	f.confirmCampaign(t, campaignID, 100, 10)

	_, err := f.campaigns.Contribute(ctx, ContributeRequest{CampaignId: campaignID, Contributor: alice, Amount: 60, TxDigest: "tx-a"})
	require.NoError(t, err)
	_, err = f.campaigns.Contribute(ctx, ContributeRequest{CampaignId: campaignID, Contributor: bob, Amount: 40, TxDigest: "tx-b"})
	require.NoError(t, err)

	f.confirmContribution(t, alice, 60, "tx-a")
	f.confirmContribution(t, bob, 40, "tx-b")
	// 重复投递的事件不改变状态
	f.confirmContribution(t, bob, 40, "tx-b")

	var records []model.ContributionModel
	require.NoError(t, f.db.Where("campaign_id = ?", campaignID).Find(&records).Error)
	require.Len(t, records, 2)
	for _, r := range records {
		assert.Equal(t, model.StateConfirmed, r.State)
	}

	row := f.campaignRow(t)
	assert.Equal(t, int64(100), row.SuiRaised)
	assert.Equal(t, ledger.StatusCompleted, row.Status)
	assert.NotNil(t, row.CompletedAt)

	detail, err := f.campaigns.GetCampaign(ctx, campaignID)
	require.NoError(t, err)
	assert.Equal(t, detail.Confirmed, detail.Projected)
	assert.Equal(t, 2, detail.ContributorsCount)
}

func TestIngestWithoutTentativeRecord(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	f.confirmCampaign(t, campaignID, 100, 10)

	// 链上事实不经过校验，低于最低贡献额也照常入账
	f.confirmContribution(t, alice, 5, "tx-small")
	require.NoError(t, f.campaigns.ApplyWithdrawal(ctx, WithdrawalFact{
		CampaignId: campaignID, Contributor: alice, Amount: 5, TxDigest: "tx-w", At: f.clock.Now(),
	}))

	var w model.WithdrawalModel
	require.NoError(t, f.db.Where("tx_digest = ?", "tx-w").First(&w).Error)
	assert.True(t, w.IsFullWithdrawal)
	assert.Equal(t, model.StateConfirmed, w.State)

	balance, err := f.campaigns.Balance(ctx, campaignID, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance.Confirmed)
	assert.Equal(t, int64(0), balance.Projected)
}

func TestIngestKeepsChainOrderWithinCheckpoint(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	f.confirmCampaign(t, campaignID, 100, 10)

	at := f.clock.Now()
	require.NoError(t, f.campaigns.ApplyContribution(ctx, ContributionFact{
		CampaignId: campaignID, Contributor: alice, Amount: 60, TxDigest: "tx-1", At: at, Seq: 1,
	}))
	require.NoError(t, f.campaigns.ApplyWithdrawal(ctx, WithdrawalFact{
		CampaignId: campaignID, Contributor: alice, Amount: 60, TxDigest: "tx-2", At: at, Seq: 2,
	}))
	require.NoError(t, f.campaigns.ApplyContribution(ctx, ContributionFact{
		CampaignId: campaignID, Contributor: bob, Amount: 50, TxDigest: "tx-3", At: at, Seq: 3,
	}))
	require.NoError(t, f.campaigns.ApplyContribution(ctx, ContributionFact{
		CampaignId: campaignID, Contributor: carol, Amount: 10, TxDigest: "tx-4", At: at, Seq: 4,
	}))

	row := f.campaignRow(t)
	assert.Equal(t, int64(60), row.SuiRaised)
	assert.Equal(t, ledger.StatusActive, row.Status)
	assert.Nil(t, row.CompletedAt)

	detail, err := f.campaigns.GetCampaign(ctx, campaignID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusActive, detail.Confirmed.Status)
	assert.Equal(t, int64(60), detail.Confirmed.SuiRaised)
}

func TestDuplicateDigestIsRejected(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	f.confirmCampaign(t, campaignID, 100, 10)

	_, err := f.campaigns.Contribute(ctx, ContributeRequest{CampaignId: campaignID, Contributor: alice, Amount: 20, TxDigest: "tx-a"})
	require.NoError(t, err)
	_, err = f.campaigns.Contribute(ctx, ContributeRequest{CampaignId: campaignID, Contributor: bob, Amount: 20, TxDigest: "tx-a"})
	assert.ErrorIs(t, err, ErrDuplicateTx)

	_, err = f.campaigns.Contribute(ctx, ContributeRequest{CampaignId: campaignID, Contributor: bob, Amount: 20})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestWithdrawValidation(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	f.confirmCampaign(t, campaignID, 100, 10)
	f.confirmContribution(t, alice, 60, "fund-a")

	_, err := f.campaigns.Withdraw(ctx, WithdrawRequest{CampaignId: campaignID, Contributor: alice, Amount: 55, TxDigest: "w-1"})
	assert.ErrorIs(t, err, ledger.ErrStrandedBalance)

	_, err = f.campaigns.Withdraw(ctx, WithdrawRequest{CampaignId: campaignID, Contributor: bob, Amount: 10, TxDigest: "w-2"})
	assert.ErrorIs(t, err, ledger.ErrNoBalance)

	res, err := f.campaigns.Withdraw(ctx, WithdrawRequest{CampaignId: campaignID, Contributor: alice, Amount: 60, TxDigest: "w-3"})
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.Balance)
	assert.Equal(t, int64(60), res.Confirmed.SuiRaised)
	assert.Equal(t, int64(0), res.Projected.SuiRaised)

	balance, err := f.campaigns.Balance(ctx, campaignID, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(60), balance.Confirmed)
	assert.Equal(t, int64(0), balance.Projected)
}

func TestProjectionSkipsSupersededTentativeRecords(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	f.confirmCampaign(t, campaignID, 100, 10)
	f.confirmContribution(t, alice, 60, "fund-a")

	_, err := f.campaigns.Withdraw(ctx, WithdrawRequest{CampaignId: campaignID, Contributor: alice, Amount: 60, TxDigest: "w-full"})
	require.NoError(t, err)

	// 链上先确认了另一笔部分提取，待确认的全额提取已无法成立
	require.NoError(t, f.campaigns.ApplyWithdrawal(ctx, WithdrawalFact{
		CampaignId: campaignID, Contributor: alice, Amount: 30, TxDigest: "w-partial", At: f.clock.Now(),
	}))

	balance, err := f.campaigns.Balance(ctx, campaignID, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(30), balance.Confirmed)
	assert.Equal(t, int64(30), balance.Projected)
}

func TestCreateCampaign(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	req := CreateCampaignRequest{
		Id: "0xc0ffee", NftName: "Fuddies #42", Target: 100, MinContribution: 10, Creator: "0xa1", TxDigest: "tx-create",
	}

	created, err := f.campaigns.CreateCampaign(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, campaignID, created.Id)
	assert.Equal(t, alice, created.Creator)
	assert.Equal(t, model.StateTentative, created.State)
	assert.Equal(t, model.NftStatusNone, created.NftStatus)

	_, err = f.campaigns.CreateCampaign(ctx, req)
	assert.ErrorIs(t, err, ErrCampaignExists)

	bad := req
	bad.Id = "0xbeef"
	bad.MinContribution = 200
	_, err = f.campaigns.CreateCampaign(ctx, bad)
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)

	bad.Id = "not-an-address"
	_, err = f.campaigns.CreateCampaign(ctx, bad)
	assert.ErrorIs(t, err, ledger.ErrInvalidAddress)

	f.confirmCampaign(t, campaignID, 100, 10)
	assert.Equal(t, model.StateConfirmed, f.campaignRow(t).State)
}

func TestListCampaigns(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	for i, name := range []string{"Fuddies #1", "Capys #2", "Fuddies #3"} {
		_, err := f.campaigns.CreateCampaign(ctx, CreateCampaignRequest{
			Id:              fmt.Sprintf("0x%x", 0x100+i),
			NftName:         name,
			Target:          100,
			MinContribution: 10,
			Creator:         bob,
			TxDigest:        fmt.Sprintf("create-%d", i),
		})
		require.NoError(t, err)
	}

	campaigns, total, err := f.campaigns.ListCampaigns(ctx, CampaignFilter{Search: "fuddies"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, campaigns, 2)
	assert.Equal(t, "Fuddies #3", campaigns[0].NftName)

	campaigns, total, err = f.campaigns.ListCampaigns(ctx, CampaignFilter{Creator: bob, Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, campaigns, 1)

	_, total, err = f.campaigns.ListCampaigns(ctx, CampaignFilter{Creator: alice})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestContributorsSortedByAddress(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	f.confirmCampaign(t, campaignID, 100, 10)
	f.confirmContribution(t, carol, 20, "fund-c")
	f.confirmContribution(t, alice, 30, "fund-a")
	_, err := f.campaigns.Contribute(ctx, ContributeRequest{CampaignId: campaignID, Contributor: bob, Amount: 10, TxDigest: "tx-b"})
	require.NoError(t, err)

	stakes, err := f.campaigns.Contributors(ctx, campaignID)
	require.NoError(t, err)
	assert.Equal(t, []ContributorStake{
		{Address: alice, Confirmed: 30, Projected: 30},
		{Address: bob, Confirmed: 0, Projected: 10},
		{Address: carol, Confirmed: 20, Projected: 20},
	}, stakes)
}

func TestSetNftStatusTransitions(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	f.confirmCampaign(t, campaignID, 100, 10)

	_, err := f.campaigns.SetNftStatus(ctx, campaignID, model.NftStatusPurchased)
	assert.ErrorIs(t, err, ledger.ErrCampaignNotCompleted)

	f.confirmContribution(t, alice, 100, "fund-a")
	_, err = f.campaigns.SetNftStatus(ctx, campaignID, model.NftStatusListed)
	assert.ErrorIs(t, err, ledger.ErrInvalidNftTransition)

	steps := []model.NftStatus{model.NftStatusPurchased, model.NftStatusListed, model.NftStatusDelisted, model.NftStatusListed}
	for _, s := range steps {
		updated, err := f.campaigns.SetNftStatus(ctx, campaignID, s)
		require.NoError(t, err)
		assert.Equal(t, s, updated.NftStatus)
	}

	_, err = f.campaigns.SetNftStatus(ctx, campaignID, model.NftStatusPurchased)
	assert.ErrorIs(t, err, ledger.ErrInvalidNftTransition)

	require.NoError(t, f.campaigns.ApplyNftStatus(ctx, campaignID, model.NftStatusDelisted))
	assert.Equal(t, model.NftStatusDelisted, f.campaignRow(t).NftStatus)
}

func TestDeleteCampaign(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	f.confirmCampaign(t, campaignID, 100, 10)

	err := f.campaigns.DeleteCampaign(ctx, campaignID, bob)
	assert.ErrorIs(t, err, ledger.ErrNotCreator)

	_, err = f.campaigns.Contribute(ctx, ContributeRequest{CampaignId: campaignID, Contributor: bob, Amount: 10, TxDigest: "tx-b"})
	require.NoError(t, err)
	err = f.campaigns.DeleteCampaign(ctx, campaignID, alice)
	assert.ErrorIs(t, err, ledger.ErrCampaignHasFunds)

	_, err = f.campaigns.Withdraw(ctx, WithdrawRequest{CampaignId: campaignID, Contributor: bob, Amount: 10, TxDigest: "tx-w"})
	require.NoError(t, err)
	require.NoError(t, f.campaigns.DeleteCampaign(ctx, campaignID, alice))

	_, err = f.campaigns.GetCampaign(ctx, campaignID)
	assert.ErrorIs(t, err, ErrCampaignNotFound)
}

func TestApplyCampaignDeleted(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	f.confirmCampaign(t, campaignID, 100, 10)

	require.NoError(t, f.campaigns.ApplyCampaignDeleted(ctx, campaignID))
	_, err := f.campaigns.GetCampaign(ctx, campaignID)
	assert.ErrorIs(t, err, ErrCampaignNotFound)
	assert.ErrorIs(t, f.campaigns.CheckCompleted(ctx, campaignID), ErrCampaignNotFound)
}

func TestDropStaleTentative(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	f.confirmCampaign(t, campaignID, 100, 10)
	f.confirmContribution(t, alice, 30, "fund-a")

	_, err := f.campaigns.Contribute(ctx, ContributeRequest{CampaignId: campaignID, Contributor: bob, Amount: 20, TxDigest: "tx-b"})
	require.NoError(t, err)
	_, err = f.campaigns.Withdraw(ctx, WithdrawRequest{CampaignId: campaignID, Contributor: alice, Amount: 30, TxDigest: "tx-w"})
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	// 截止时间之后的待确认记录保留
	_, err = f.campaigns.Contribute(ctx, ContributeRequest{CampaignId: campaignID, Contributor: carol, Amount: 15, TxDigest: "tx-c"})
	require.NoError(t, err)

	dropped, err := f.campaigns.DropStaleTentative(ctx, f.clock.Now().Add(-30*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(2), dropped)

	detail, err := f.campaigns.GetCampaign(ctx, campaignID)
	require.NoError(t, err)
	assert.Equal(t, int64(30), detail.Confirmed.SuiRaised)
	assert.Equal(t, int64(45), detail.Projected.SuiRaised)
	assert.Len(t, detail.Contributions, 2)
	assert.Empty(t, detail.Withdrawals)

	// 作废的交易不能再次提交
	_, err = f.campaigns.Contribute(ctx, ContributeRequest{CampaignId: campaignID, Contributor: bob, Amount: 20, TxDigest: "tx-b"})
	assert.ErrorIs(t, err, ErrDuplicateTx)
}

func TestConcurrentContributionsRespectCapacity(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	f.confirmCampaign(t, campaignID, 100, 10)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded, exceeded := 0, 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.campaigns.Contribute(ctx, ContributeRequest{
				CampaignId:  campaignID,
				Contributor: fmt.Sprintf("0x%x", 0x1000+i),
				Amount:      10,
				TxDigest:    fmt.Sprintf("tx-%d", i),
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case ledger.KindOf(err) == ledger.KindExceedsRemainingCapacity || ledger.KindOf(err) == ledger.KindCampaignNotActive:
				exceeded++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 10, succeeded)
	assert.Equal(t, 10, exceeded)
	assert.Zero(t, f.campaigns.locker.size())

	detail, err := f.campaigns.GetCampaign(ctx, campaignID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), detail.Projected.SuiRaised)
	assert.Equal(t, ledger.StatusCompleted, detail.Projected.Status)
}

func TestCampaignLocker(t *testing.T) {
	l := NewCampaignLocker()
	unlockA := l.Lock("a")
	unlockB := l.Lock("b")
	assert.Equal(t, 2, l.size())

	acquired := make(chan struct{})
	go func() {
		unlock := l.Lock("a")
		close(acquired)
		unlock()
	}()

	select {
	case <-acquired:
		t.Fatal("second lock on the same campaign must wait")
	case <-time.After(20 * time.Millisecond):
	}
	unlockA()
	<-acquired
	unlockB()

	assert.Eventually(t, func() bool { return l.size() == 0 }, time.Second, time.Millisecond)
}

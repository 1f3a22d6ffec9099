package logic

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/vic-labs/collectivo/internal/database"
	"github.com/vic-labs/collectivo/internal/ledger"
	"github.com/vic-labs/collectivo/internal/model"
	"gorm.io/gorm"
)

var (
	campaignID = ledger.MustNormalizeAddress("0xc0ffee")
	alice      = ledger.MustNormalizeAddress("0xa1")
	bob        = ledger.MustNormalizeAddress("0xb2")
	carol      = ledger.MustNormalizeAddress("0xc3")
)

// testClock 每次读取前进 1ms，保证记录顺序稳定
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	db        *gorm.DB
	clock     *testClock
	campaigns *CampaignLogic
	proposals *ProposalLogic
	events    *EventLogic
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := database.Open(sqlite.Open(dsn), "silent")
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.Migrate(db))
	return db
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	db := newTestDB(t)
	clock := &testClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	db.Config.NowFunc = clock.Now
	if opts.Policy == (ledger.Policy{}) {
		opts.Policy = ledger.DefaultPolicy()
	}
	opts.Now = clock.Now

	locker := NewCampaignLocker()
	return &fixture{
		db:        db,
		clock:     clock,
		campaigns: NewCampaignLogic(db, locker, opts),
		proposals: NewProposalLogic(db, locker, opts),
		events:    NewEventLogic(db),
	}
}

func (f *fixture) confirmCampaign(t *testing.T, id string, target, minContribution int64) {
	t.Helper()
	err := f.campaigns.ApplyCampaignCreated(context.Background(), CampaignFact{
		CreateCampaignRequest: CreateCampaignRequest{
			Id:              id,
			NftName:         "Fuddies #42",
			Target:          target,
			MinContribution: minContribution,
			Creator:         alice,
			TxDigest:        "create-" + id,
		},
		CreatedAt: f.clock.Now(),
	})
	require.NoError(t, err)
}

func (f *fixture) confirmContribution(t *testing.T, contributor string, amount int64, digest string) {
	t.Helper()
	require.NoError(t, f.campaigns.ApplyContribution(context.Background(), ContributionFact{
		CampaignId:  campaignID,
		Contributor: contributor,
		Amount:      amount,
		TxDigest:    digest,
		At:          f.clock.Now(),
	}))
}

// fundAndPurchase 按给定份额完成活动并标记 NFT 已购入
func (f *fixture) fundAndPurchase(t *testing.T, stakes map[string]int64) {
	t.Helper()
	var total int64
	for _, v := range stakes {
		total += v
	}
	f.confirmCampaign(t, campaignID, total, 10)
	for _, addr := range []string{alice, bob, carol} {
		if amount, ok := stakes[addr]; ok {
			f.confirmContribution(t, addr, amount, "fund-"+addr)
		}
	}
	_, err := f.campaigns.SetNftStatus(context.Background(), campaignID, model.NftStatusPurchased)
	require.NoError(t, err)
}

func (f *fixture) campaignRow(t *testing.T) model.CampaignModel {
	t.Helper()
	var m model.CampaignModel
	require.NoError(t, f.db.Where("id = ?", campaignID).First(&m).Error)
	return m
}

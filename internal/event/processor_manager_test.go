package event

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vic-labs/collectivo/internal/governance"
	"github.com/vic-labs/collectivo/internal/logic"
	"github.com/vic-labs/collectivo/internal/metrics"
	"github.com/vic-labs/collectivo/internal/model"
	"github.com/vic-labs/collectivo/internal/sui"
)

type fakeCampaigns struct {
	created       []logic.CampaignFact
	contributions []logic.ContributionFact
	withdrawals   []logic.WithdrawalFact
	completed     []string
	deleted       []string
	nft           map[string]model.NftStatus
	err           error
}

func (f *fakeCampaigns) ApplyCampaignCreated(_ context.Context, fact logic.CampaignFact) error {
	f.created = append(f.created, fact)
	return f.err
}

func (f *fakeCampaigns) ApplyContribution(_ context.Context, fact logic.ContributionFact) error {
	f.contributions = append(f.contributions, fact)
	return f.err
}

func (f *fakeCampaigns) ApplyWithdrawal(_ context.Context, fact logic.WithdrawalFact) error {
	f.withdrawals = append(f.withdrawals, fact)
	return f.err
}

func (f *fakeCampaigns) CheckCompleted(_ context.Context, id string) error {
	f.completed = append(f.completed, id)
	return f.err
}

func (f *fakeCampaigns) ApplyCampaignDeleted(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return f.err
}

func (f *fakeCampaigns) ApplyNftStatus(_ context.Context, id string, status model.NftStatus) error {
	if f.nft == nil {
		f.nft = make(map[string]model.NftStatus)
	}
	f.nft[id] = status
	return f.err
}

type resolution struct {
	objectID string
	status   governance.ProposalStatus
	at       time.Time
}

type fakeProposals struct {
	created  []logic.ProposalFact
	votes    []logic.VoteFact
	resolved []resolution
	deleted  []string
}

func (f *fakeProposals) ApplyProposalCreated(_ context.Context, fact logic.ProposalFact) error {
	f.created = append(f.created, fact)
	return nil
}

func (f *fakeProposals) ApplyVote(_ context.Context, fact logic.VoteFact) error {
	f.votes = append(f.votes, fact)
	return nil
}

func (f *fakeProposals) ApplyProposalResolved(_ context.Context, id string, status governance.ProposalStatus, at time.Time) error {
	f.resolved = append(f.resolved, resolution{id, status, at})
	return nil
}

func (f *fakeProposals) ApplyProposalDeleted(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeFetcher map[string]string

func (f fakeFetcher) GetObject(_ context.Context, id string) (*sui.ObjectData, error) {
	fields, ok := f[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", sui.ErrObjectNotFound, id)
	}
	return &sui.ObjectData{
		ObjectID: id,
		Content:  &sui.MoveContent{DataType: "moveObject", Fields: json.RawMessage(fields)},
	}, nil
}

const eventTimestamp int64 = 1740830400000

func chainEvent(eventType, data string) *model.ChainEventModel {
	return &model.ChainEventModel{
		TxDigest:    "D1",
		EventSeq:    "0",
		Module:      "campaign",
		EventType:   eventType,
		TimestampMs: eventTimestamp,
		Data:        data,
	}
}

func newManager(fetcher fakeFetcher) (*ProcessorManager, *fakeCampaigns, *fakeProposals) {
	campaigns, proposals := &fakeCampaigns{}, &fakeProposals{}
	return NewProcessorManager(campaigns, proposals, fetcher, nil), campaigns, proposals
}

func TestSupportedEventTypes(t *testing.T) {
	pm, _, _ := newManager(nil)
	assert.Equal(t, []string{
		"CampaignCompletedEvent", "CampaignDeletedEvent", "NFTDelistedEvent", "NFTListedEvent",
		"NFTPurchasedEvent", "NewCampaignEvent", "NewContributionEvent", "ProposalCreatedEvent",
		"ProposalDeletedEvent", "ProposalPassedEvent", "ProposalRejectedEvent", "ProposalVotedEvent",
		"WithdrawEvent",
	}, pm.GetSupportedEventTypes())
}

func TestCampaignEvents(t *testing.T) {
	pm, campaigns, _ := newManager(fakeFetcher{
		"0xc0ffee": `{
			"id": {"id": "0xc0ffee"},
			"nft": {"type": "0xpkg::campaign::NFT", "fields": {
				"nft_id": "0xf00d", "image_url": "https://img/42.png", "rank": "42",
				"is_purchased": false, "is_listed": false, "nft_type": "0xnft::fuddies::Fuddy", "name": "Fuddies #42"
			}},
			"description": "pool for #42",
			"target": "100000000000",
			"sui_raised": "0",
			"min_contribution": "1000000000",
			"status": {"variant": "Active", "fields": {}},
			"creator": "0xa1",
			"created_at": "1740830000000"
		}`,
	})
	ctx := context.Background()

	require.NoError(t, pm.ProcessEvent(ctx, chainEvent("0xpkg::campaign::NewCampaignEvent", `{"campaign_id":"0xc0ffee"}`)))
	require.Len(t, campaigns.created, 1)
	fact := campaigns.created[0]
	assert.Equal(t, "0xc0ffee", fact.Id)
	assert.Equal(t, "Fuddies #42", fact.NftName)
	assert.Equal(t, int64(42), fact.NftRank)
	assert.Equal(t, int64(100_000_000_000), fact.Target)
	assert.Equal(t, int64(1_000_000_000), fact.MinContribution)
	assert.Equal(t, model.NftStatusNone, fact.NftStatus)
	assert.Equal(t, "D1", fact.TxDigest)
	assert.Equal(t, time.UnixMilli(1740830000000).UTC(), fact.CreatedAt)

	// 对象已删除时跳过
	require.NoError(t, pm.ProcessEvent(ctx, chainEvent("NewCampaignEvent", `{"campaign_id":"0xgone"}`)))
	assert.Len(t, campaigns.created, 1)

	contributed := chainEvent("NewContributionEvent",
		`{"campaign_id":"0xc0ffee","amount":"1500000000","contributor":"0xb2","is_new":true}`)
	contributed.Id = 42
	require.NoError(t, pm.ProcessEvent(ctx, contributed))
	require.Len(t, campaigns.contributions, 1)
	assert.Equal(t, logic.ContributionFact{
		CampaignId: "0xc0ffee", Contributor: "0xb2", Amount: 1_500_000_000, TxDigest: "D1",
		At: time.UnixMilli(eventTimestamp).UTC(), Seq: 42,
	}, campaigns.contributions[0])

	require.NoError(t, pm.ProcessEvent(ctx, chainEvent("WithdrawEvent",
		`{"campaign_id":"0xc0ffee","amount":"500000000","is_full_withdrawal":false,"contributor":"0xb2"}`)))
	require.Len(t, campaigns.withdrawals, 1)
	assert.Equal(t, int64(500_000_000), campaigns.withdrawals[0].Amount)

	require.NoError(t, pm.ProcessEvent(ctx, chainEvent("CampaignCompletedEvent", `{"campaign_id":"0xc0ffee"}`)))
	require.NoError(t, pm.ProcessEvent(ctx, chainEvent("NFTPurchasedEvent", `{"campaign_id":"0xc0ffee"}`)))
	assert.Equal(t, model.NftStatusPurchased, campaigns.nft["0xc0ffee"])
	require.NoError(t, pm.ProcessEvent(ctx, chainEvent("NFTListedEvent", `{"campaign_id":"0xc0ffee"}`)))
	assert.Equal(t, model.NftStatusListed, campaigns.nft["0xc0ffee"])
	require.NoError(t, pm.ProcessEvent(ctx, chainEvent("CampaignDeletedEvent", `{"campaign_id":"0xc0ffee"}`)))

	assert.Equal(t, []string{"0xc0ffee"}, campaigns.completed)
	assert.Equal(t, []string{"0xc0ffee"}, campaigns.deleted)
}

func TestProposalEvents(t *testing.T) {
	pm, _, proposals := newManager(fakeFetcher{
		"0x9001": `{
			"id": {"id": "0x9001"},
			"campaign_id": "0xc0ffee",
			"proposer": "0xa1",
			"proposal_type": {"variant": "List", "fields": {"price": "250000000000"}},
			"status": {"variant": "Active", "fields": {}},
			"created_at": "0"
		}`,
		"0x9002": `{
			"id": {"id": "0x9002"},
			"campaign_id": "0xc0ffee",
			"proposer": "0xb2",
			"proposal_type": {"variant": "Delist", "fields": {}},
			"status": {"variant": "Active", "fields": {}},
			"created_at": "1740830000000"
		}`,
	})
	ctx := context.Background()

	require.NoError(t, pm.ProcessEvent(ctx, chainEvent("ProposalCreatedEvent", `{"proposal_id":"0x9001"}`)))
	require.NoError(t, pm.ProcessEvent(ctx, chainEvent("ProposalCreatedEvent", `{"proposal_id":"0x9002"}`)))
	require.Len(t, proposals.created, 2)
	assert.Equal(t, logic.ProposalFact{
		ObjectId: "0x9001", CampaignId: "0xc0ffee", Proposer: "0xa1", ProposalType: governance.ProposalList,
		ListPrice: 250_000_000_000, TxDigest: "D1", CreatedAt: time.UnixMilli(eventTimestamp).UTC(),
	}, proposals.created[0])
	assert.Equal(t, governance.ProposalDelist, proposals.created[1].ProposalType)
	assert.Zero(t, proposals.created[1].ListPrice)

	require.NoError(t, pm.ProcessEvent(ctx, chainEvent("ProposalVotedEvent",
		`{"proposal_id":"0x9001","voter":"0xb2","vote_type":{"variant":"Rejection","fields":{}}}`)))
	require.Len(t, proposals.votes, 1)
	assert.Equal(t, governance.VoteRejection, proposals.votes[0].VoteType)

	err := pm.ProcessEvent(ctx, chainEvent("ProposalVotedEvent",
		`{"proposal_id":"0x9001","voter":"0xb2","vote_type":"Abstain"}`))
	assert.Error(t, err)

	require.NoError(t, pm.ProcessEvent(ctx, chainEvent("ProposalPassedEvent", `{"proposal_id":"0x9001"}`)))
	require.NoError(t, pm.ProcessEvent(ctx, chainEvent("ProposalRejectedEvent", `{"proposal_id":"0x9002"}`)))
	assert.Equal(t, []resolution{
		{"0x9001", governance.ProposalPassed, time.UnixMilli(eventTimestamp).UTC()},
		{"0x9002", governance.ProposalRejected, time.UnixMilli(eventTimestamp).UTC()},
	}, proposals.resolved)

	require.NoError(t, pm.ProcessEvent(ctx, chainEvent("ProposalDeletedEvent", `{"proposal_id":"0x9002"}`)))
	assert.Equal(t, []string{"0x9002"}, proposals.deleted)
}

func TestProcessEventMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	campaigns := &fakeCampaigns{err: errors.New("campaign not found")}
	pm := NewProcessorManager(campaigns, &fakeProposals{}, fakeFetcher{}, m)
	ctx := context.Background()

	require.NoError(t, pm.ProcessEvent(ctx, chainEvent("WalletAddressSetEvent", `{}`)))
	assert.Error(t, pm.ProcessEvent(ctx, chainEvent("NFTListedEvent", `{"campaign_id":"0xc0ffee"}`)))
	assert.Error(t, pm.ProcessEvent(ctx, chainEvent("WithdrawEvent", `not json`)))

	count, err := testutil.GatherAndCount(reg, "collectivo_chain_events_total")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

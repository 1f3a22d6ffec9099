package governance

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vic-labs/collectivo/internal/ledger"
)

var (
	alice = ledger.MustNormalizeAddress("0xa1")
	bob   = ledger.MustNormalizeAddress("0xb2")
	carol = ledger.MustNormalizeAddress("0xc3")
	t0    = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
)

func completedState(purchased bool) CampaignState {
	return CampaignState{
		Campaign: ledger.Campaign{
			ID:              ledger.MustNormalizeAddress("0xcafe"),
			Target:          100,
			SuiRaised:       100,
			MinContribution: 10,
			Status:          ledger.StatusCompleted,
			Creator:         alice,
		},
		NftPurchased: purchased,
	}
}

func TestCreateProposalPassesWhenProposerHoldsMajority(t *testing.T) {
	stakes := ledger.Stakes{alice: 60, bob: 40}

	p, err := CreateProposal(completedState(true), stakes, "p1", alice, ProposalList, 500, t0)
	require.NoError(t, err)
	assert.Equal(t, ProposalPassed, p.Status)
	require.NotNil(t, p.EndedAt)
	assert.True(t, p.EndedAt.Equal(t0))
	require.Len(t, p.Votes, 1)
	assert.Equal(t, Vote{ProposalID: "p1", Voter: alice, Type: VoteApproval, Weight: 60, At: t0}, p.Votes[0])
}

func TestMinorityProposerWaitsForMajority(t *testing.T) {
	stakes := ledger.Stakes{alice: 30, bob: 70}

	p, err := CreateProposal(completedState(true), stakes, "p1", alice, ProposalDelist, 0, t0)
	require.NoError(t, err)
	assert.Equal(t, ProposalActive, p.Status)
	assert.Nil(t, p.EndedAt)

	v, err := CastVote(p, stakes, bob, VoteRejection, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(70), v.Weight)
	assert.Equal(t, ProposalRejected, p.Status)
	require.NotNil(t, p.EndedAt)
	assert.True(t, p.EndedAt.Equal(t0.Add(time.Hour)))
}

func TestNoMajorityKeepsProposalActive(t *testing.T) {
	stakes := ledger.Stakes{alice: 30, bob: 20, carol: 50}

	p, err := CreateProposal(completedState(true), stakes, "p1", alice, ProposalDelist, 0, t0)
	require.NoError(t, err)

	_, err = CastVote(p, stakes, bob, VoteRejection, t0)
	require.NoError(t, err)
	assert.Equal(t, ProposalActive, p.Status)

	_, err = CastVote(p, stakes, carol, VoteRejection, t0)
	require.NoError(t, err)
	assert.Equal(t, ProposalRejected, p.Status)
}

func TestExactlyHalfIsNotMajority(t *testing.T) {
	stakes := ledger.Stakes{alice: 50, bob: 50}

	p, err := CreateProposal(completedState(true), stakes, "p1", alice, ProposalDelist, 0, t0)
	require.NoError(t, err)
	assert.Equal(t, ProposalActive, p.Status)

	_, err = CastVote(p, stakes, bob, VoteRejection, t0)
	require.NoError(t, err)
	assert.Equal(t, ProposalActive, p.Status)
}

func TestCreateProposalValidation(t *testing.T) {
	stakes := ledger.Stakes{alice: 60, bob: 40}

	active := completedState(true)
	active.Campaign.Status = ledger.StatusActive

	tests := []struct {
		name         string
		state        CampaignState
		proposer     string
		proposalType ProposalType
		price        int64
		want         error
	}{
		{"campaign still active", active, alice, ProposalList, 10, ledger.ErrCampaignNotCompleted},
		{"nft not purchased", completedState(false), alice, ProposalList, 10, ledger.ErrCampaignNotCompleted},
		{"non contributor", completedState(true), carol, ProposalList, 10, ledger.ErrNotAContributor},
		{"list without price", completedState(true), alice, ProposalList, 0, ledger.ErrInvalidListPrice},
		{"list with negative price", completedState(true), alice, ProposalList, -1, ledger.ErrInvalidListPrice},
		{"unknown type", completedState(true), alice, ProposalType("Burn"), 0, ledger.ErrInvalidProposalType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := CreateProposal(tt.state, stakes, "p1", tt.proposer, tt.proposalType, tt.price, t0)
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, p)
		})
	}
}

func TestDelistIgnoresPrice(t *testing.T) {
	p, err := CreateProposal(completedState(true), ledger.Stakes{alice: 10, bob: 90}, "p1", alice, ProposalDelist, 999, t0)
	require.NoError(t, err)
	assert.Zero(t, p.ListPrice)
}

func TestCastVoteRejectsDuplicates(t *testing.T) {
	stakes := ledger.Stakes{alice: 20, bob: 30, carol: 50}
	p, err := CreateProposal(completedState(true), stakes, "p1", alice, ProposalDelist, 0, t0)
	require.NoError(t, err)

	_, err = CastVote(p, stakes, bob, VoteApproval, t0)
	require.NoError(t, err)
	before := Stats(p, stakes, "")

	_, err = CastVote(p, stakes, bob, VoteRejection, t0)
	assert.ErrorIs(t, err, ledger.ErrDuplicateVote)
	assert.Equal(t, before, Stats(p, stakes, ""))

	// the proposer's creation-time approval counts as their vote
	_, err = CastVote(p, stakes, alice, VoteApproval, t0)
	assert.ErrorIs(t, err, ledger.ErrDuplicateVote)
	assert.Len(t, p.Votes, 2)
}

func TestCastVoteRejectsNonContributor(t *testing.T) {
	stakes := ledger.Stakes{alice: 30, bob: 70}
	p, err := CreateProposal(completedState(true), stakes, "p1", alice, ProposalDelist, 0, t0)
	require.NoError(t, err)

	_, err = CastVote(p, stakes, carol, VoteApproval, t0)
	assert.ErrorIs(t, err, ledger.ErrNotAContributor)
	assert.Len(t, p.Votes, 1)

	_, err = CastVote(p, stakes, bob, VoteType("Abstain"), t0)
	assert.ErrorIs(t, err, ledger.ErrInvalidVoteType)
}

func TestTerminalProposalDoesNotFlap(t *testing.T) {
	stakes := ledger.Stakes{alice: 60, bob: 40}
	p, err := CreateProposal(completedState(true), stakes, "p1", alice, ProposalList, 5, t0)
	require.NoError(t, err)
	require.Equal(t, ProposalPassed, p.Status)
	endedAt := *p.EndedAt

	_, err = CastVote(p, stakes, bob, VoteRejection, t0.Add(time.Minute))
	assert.ErrorIs(t, err, ledger.ErrProposalNotActive)

	// a late confirmed vote from the chain is recorded but cannot flip the outcome
	require.NoError(t, ApplyVote(p, ledger.Stakes{alice: 10, bob: 90}, Vote{Voter: bob, Type: VoteRejection, Weight: 90, At: t0}))
	assert.Equal(t, ProposalPassed, p.Status)
	assert.True(t, p.EndedAt.Equal(endedAt))
	assert.False(t, Resolve(p, stakes, t0.Add(time.Hour)))
}

func TestApplyVoteKeepsSingleVote(t *testing.T) {
	stakes := ledger.Stakes{alice: 30, bob: 70}
	p, err := CreateProposal(completedState(true), stakes, "p1", alice, ProposalDelist, 0, t0)
	require.NoError(t, err)

	require.NoError(t, ApplyVote(p, stakes, Vote{Voter: bob, Type: VoteApproval, At: t0}))
	assert.Equal(t, ProposalPassed, p.Status)
	v, ok := p.VoteOf(bob)
	require.True(t, ok)
	assert.Equal(t, int64(70), v.Weight)
	assert.Equal(t, "p1", v.ProposalID)

	assert.ErrorIs(t, ApplyVote(p, stakes, Vote{Voter: bob, Type: VoteRejection, At: t0}), ledger.ErrDuplicateVote)
}

func TestResolveWithoutStakeDoesNothing(t *testing.T) {
	p := &Proposal{ID: "p1", Status: ProposalActive, Votes: []Vote{{Voter: alice, Type: VoteApproval, Weight: 10}}}
	assert.False(t, Resolve(p, ledger.Stakes{}, t0))
	assert.Equal(t, ProposalActive, p.Status)
}

func TestExpire(t *testing.T) {
	stakes := ledger.Stakes{alice: 30, bob: 70}
	p, err := CreateProposal(completedState(true), stakes, "p1", alice, ProposalDelist, 0, t0)
	require.NoError(t, err)

	assert.False(t, Expire(p, 0, t0.Add(1000*time.Hour)))
	assert.False(t, Expire(p, 24*time.Hour, t0.Add(23*time.Hour)))
	assert.Equal(t, ProposalActive, p.Status)

	now := t0.Add(24 * time.Hour)
	assert.True(t, Expire(p, 24*time.Hour, now))
	assert.Equal(t, ProposalRejected, p.Status)
	assert.True(t, p.EndedAt.Equal(now))
	assert.False(t, Expire(p, 24*time.Hour, now.Add(time.Hour)))
}

func TestStats(t *testing.T) {
	stakes := ledger.Stakes{alice: 20, bob: 30, carol: 50}
	p, err := CreateProposal(completedState(true), stakes, "p1", alice, ProposalDelist, 0, t0)
	require.NoError(t, err)
	_, err = CastVote(p, stakes, bob, VoteRejection, t0.Add(time.Second))
	require.NoError(t, err)

	s := Stats(p, stakes, bob)
	assert.Equal(t, 2, s.TotalVotes)
	assert.Equal(t, int64(20), s.ApprovalPower)
	assert.Equal(t, int64(30), s.RejectionPower)
	assert.Equal(t, int64(100), s.TotalPower)
	assert.True(t, s.ApprovalPercentage.Equal(decimal.NewFromInt(20)))
	assert.True(t, s.RejectionPercentage.Equal(decimal.NewFromInt(30)))
	require.NotNil(t, s.UserVote)
	assert.Equal(t, VoteRejection, s.UserVote.Type)
	assert.Len(t, s.ApprovalVotes, 1)
	assert.Len(t, s.RejectionVotes, 1)

	assert.Equal(t, s, Stats(p, stakes, bob))
	assert.Nil(t, Stats(p, stakes, carol).UserVote)

	sum := s.ApprovalPercentage.Add(s.RejectionPercentage)
	assert.True(t, sum.LessThanOrEqual(decimal.NewFromInt(100)))
}

func TestStatsRoundsDown(t *testing.T) {
	stakes := ledger.Stakes{alice: 1, bob: 1, carol: 1}
	p := &Proposal{ID: "p1", Status: ProposalActive, Votes: []Vote{
		{Voter: alice, Type: VoteApproval, Weight: 1},
		{Voter: bob, Type: VoteRejection, Weight: 1},
	}}
	s := Stats(p, stakes, "")
	assert.Equal(t, "33.33", s.ApprovalPercentage.String())
	assert.Equal(t, "33.33", s.RejectionPercentage.String())
	assert.True(t, Stats(&Proposal{}, ledger.Stakes{}, "").ApprovalPercentage.IsZero())
}

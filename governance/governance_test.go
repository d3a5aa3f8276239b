// Copyright 2026 LinkDAO
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package governance

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/magickw/linkdao/database"
	"github.com/magickw/linkdao/gateway"
	"github.com/magickw/linkdao/ledger"
	"github.com/magickw/linkdao/oracle"
	"github.com/magickw/linkdao/staking"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testClock is a controllable time source
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{
		now: time.Unix(1_700_000_000, 0),
	}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// stakeStub maps accounts to a fixed staking voting contribution
type stakeStub map[string]uint64

func (s stakeStub) VotingContribution(account string) uint64 {
	return s[account]
}

const testCaller = "governance-engine"

type testEnv struct {
	engine  *Engine
	ledger  *ledger.Memory
	oracle  *oracle.Static
	gateway *gateway.Memory
	clock   *testClock
	staking stakeStub
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		ledger:  ledger.NewMemory(),
		oracle:  oracle.NewStatic(),
		gateway: gateway.NewMemory(testCaller),
		clock:   newTestClock(),
		staking: make(stakeStub),
	}
	e, err := NewEngine(EngineConfig{
		PromRegistry:   prometheus.NewRegistry(),
		Ledger:         env.ledger,
		Oracle:         env.oracle,
		Staking:        env.staking,
		Gateway:        env.gateway,
		Admins:         []string{"admin"},
		CallerIdentity: testCaller,
		GracePeriod:    14 * 24 * time.Hour,
		NowFunc:        env.clock.Now,
	})
	require.NoError(t, err)
	env.engine = e
	return env
}

// setTestPolicy installs the standard test policy: quorum 1M, 50%
// approval, 100k proposal threshold, 7-day voting period
func setTestPolicy(t *testing.T, env *testEnv, category Category) {
	t.Helper()
	err := env.engine.SetPolicy(
		"admin",
		category,
		Policy{
			Quorum:            1_000_000,
			ProposalThreshold: 100_000,
			ApprovalThreshold: 5000,
			VotingPeriod:      7 * 24 * time.Hour,
		},
	)
	require.NoError(t, err)
}

func createTestProposal(
	t *testing.T,
	env *testEnv,
	actions []gateway.Action,
) uint64 {
	t.Helper()
	env.ledger.SetBalance("proposer", 200_000)
	id, err := env.engine.Propose(
		"proposer",
		"test proposal",
		"a proposal used in tests",
		CategoryGeneral,
		actions,
	)
	require.NoError(t, err)
	return id
}

func TestVotingPowerComposition(t *testing.T) {
	env := newTestEnv(t)
	env.ledger.SetBalance("alice", 1000)
	env.staking["alice"] = 400
	env.oracle.SetBonus("alice", 50)

	assert.Equal(t, uint64(1450), env.engine.VotingPower("alice"))
	assert.Equal(t, uint64(0), env.engine.VotingPower("bob"))
}

func TestVotingPowerRisesByStakedAmount(t *testing.T) {
	l := ledger.NewMemory()
	l.SetBalance("alice", 5000)
	clk := newTestClock()

	stakingEngine, err := staking.NewEngine(staking.EngineConfig{
		PromRegistry: prometheus.NewRegistry(),
		Ledger:       l,
		Admins:       []string{"admin"},
		NowFunc:      clk.Now,
	})
	require.NoError(t, err)
	tierID, err := stakingEngine.CreateTier(
		"admin", 30*24*time.Hour, 500, 100,
	)
	require.NoError(t, err)

	engine, err := NewEngine(EngineConfig{
		PromRegistry: prometheus.NewRegistry(),
		Ledger:       l,
		Staking:      stakingEngine,
		NowFunc:      clk.Now,
	})
	require.NoError(t, err)

	powerBefore := engine.VotingPower("alice")
	assert.Equal(t, uint64(5000), powerBefore)

	_, err = stakingEngine.Stake("alice", 1000, tierID)
	require.NoError(t, err)

	// The ledger debit is offset by the double-weighted staked principal,
	// so power rises by exactly the staked amount and never drops below
	// the spendable balance.
	powerAfter := engine.VotingPower("alice")
	assert.Equal(t, powerBefore+1000, powerAfter)
	assert.GreaterOrEqual(t, powerAfter, l.BalanceOf("alice"))
}

func TestProposeRequiresPolicy(t *testing.T) {
	env := newTestEnv(t)
	env.ledger.SetBalance("alice", 1_000_000)

	_, err := env.engine.Propose(
		"alice", "t", "d", CategoryGeneral, nil,
	)
	assert.ErrorIs(t, err, ErrNoPolicy)
}

func TestProposeInsufficientPower(t *testing.T) {
	env := newTestEnv(t)
	setTestPolicy(t, env, CategoryGeneral)
	env.ledger.SetBalance("alice", 99_999)

	_, err := env.engine.Propose(
		"alice", "t", "d", CategoryGeneral, nil,
	)
	assert.ErrorIs(t, err, ErrInsufficientPower)

	// A failed proposal must not consume an id
	env.ledger.SetBalance("alice", 100_000)
	id, err := env.engine.Propose(
		"alice", "t", "d", CategoryGeneral, nil,
	)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), id)
}

func TestProposalIdsSequential(t *testing.T) {
	env := newTestEnv(t)
	setTestPolicy(t, env, CategoryGeneral)
	env.ledger.SetBalance("alice", 200_000)

	for want := uint64(1); want <= 3; want++ {
		id, err := env.engine.Propose(
			"alice", "t", "d", CategoryGeneral, nil,
		)
		require.NoError(t, err)
		assert.Equal(t, want, id)
	}
}

func TestProposalStartsActive(t *testing.T) {
	env := newTestEnv(t)
	setTestPolicy(t, env, CategoryGeneral)
	id := createTestProposal(t, env, nil)

	p, err := env.engine.Proposal(id)
	require.NoError(t, err)
	assert.Equal(t, StateActive, p.State)
	assert.Equal(
		t,
		env.clock.Now().Add(7*24*time.Hour),
		p.VotingEnd,
	)
}

func TestCastVoteTallies(t *testing.T) {
	env := newTestEnv(t)
	setTestPolicy(t, env, CategoryGeneral)
	id := createTestProposal(t, env, nil)
	env.ledger.SetBalance("alice", 600_000)
	env.ledger.SetBalance("bob", 300_000)
	env.ledger.SetBalance("carol", 100_000)

	require.NoError(t, env.engine.CastVote("alice", id, VoteFor))
	require.NoError(t, env.engine.CastVote("bob", id, VoteAgainst))
	require.NoError(t, env.engine.CastVote("carol", id, VoteAbstain))

	p, err := env.engine.Proposal(id)
	require.NoError(t, err)
	assert.Equal(t, uint64(600_000), p.ForVotes)
	assert.Equal(t, uint64(300_000), p.AgainstVotes)
	assert.Equal(t, uint64(100_000), p.AbstainVotes)

	env.clock.Advance(7*24*time.Hour + time.Second)
	state, err := env.engine.Finalize(id)
	require.NoError(t, err)
	assert.Equal(t, StateSucceeded, state)
}

func TestQuorumNotMet(t *testing.T) {
	env := newTestEnv(t)
	setTestPolicy(t, env, CategoryGeneral)
	id := createTestProposal(t, env, nil)
	env.ledger.SetBalance("alice", 400_000)

	require.NoError(t, env.engine.CastVote("alice", id, VoteFor))

	env.clock.Advance(7*24*time.Hour + time.Second)
	state, err := env.engine.Finalize(id)
	require.NoError(t, err)
	assert.Equal(t, StateDefeated, state)
}

func TestApprovalThresholdNotMet(t *testing.T) {
	env := newTestEnv(t)
	setTestPolicy(t, env, CategoryGeneral)
	id := createTestProposal(t, env, nil)
	env.ledger.SetBalance("alice", 400_000)
	env.ledger.SetBalance("bob", 600_000)

	require.NoError(t, env.engine.CastVote("alice", id, VoteFor))
	require.NoError(t, env.engine.CastVote("bob", id, VoteAgainst))

	env.clock.Advance(7*24*time.Hour + time.Second)
	state, err := env.engine.Finalize(id)
	require.NoError(t, err)
	assert.Equal(t, StateDefeated, state)
}

func TestAbstainOnlyVoteNeverPasses(t *testing.T) {
	env := newTestEnv(t)
	setTestPolicy(t, env, CategoryGeneral)
	id := createTestProposal(t, env, nil)
	env.ledger.SetBalance("alice", 2_000_000)

	// Quorum is met but there are no for/against votes
	require.NoError(t, env.engine.CastVote("alice", id, VoteAbstain))

	env.clock.Advance(7*24*time.Hour + time.Second)
	state, err := env.engine.Finalize(id)
	require.NoError(t, err)
	assert.Equal(t, StateDefeated, state)
}

func TestDoubleVote(t *testing.T) {
	env := newTestEnv(t)
	setTestPolicy(t, env, CategoryGeneral)
	id := createTestProposal(t, env, nil)
	env.ledger.SetBalance("alice", 500_000)

	require.NoError(t, env.engine.CastVote("alice", id, VoteFor))
	err := env.engine.CastVote("alice", id, VoteAgainst)
	assert.ErrorIs(t, err, ErrAlreadyVoted)

	p, err := env.engine.Proposal(id)
	require.NoError(t, err)
	assert.Equal(t, uint64(500_000), p.ForVotes)
	assert.Equal(t, uint64(0), p.AgainstVotes)
}

func TestVoteWeightCapturedAtCastTime(t *testing.T) {
	env := newTestEnv(t)
	setTestPolicy(t, env, CategoryGeneral)
	id := createTestProposal(t, env, nil)
	env.ledger.SetBalance("alice", 2_000_000)

	require.NoError(t, env.engine.CastVote("alice", id, VoteFor))

	// Later balance changes must not affect the recorded weight
	env.ledger.SetBalance("alice", 0)

	record, err := env.engine.Vote(id, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(2_000_000), record.Weight)

	// An existing proposal with no vote from the account is a distinct
	// error from an unknown proposal
	_, err = env.engine.Vote(id, "bob")
	assert.ErrorIs(t, err, ErrVoteNotFound)
	_, err = env.engine.Vote(id+100, "alice")
	assert.ErrorIs(t, err, ErrProposalNotFound)

	env.clock.Advance(7*24*time.Hour + time.Second)
	state, err := env.engine.Finalize(id)
	require.NoError(t, err)
	assert.Equal(t, StateSucceeded, state)
}

func TestVotingClosedAfterWindow(t *testing.T) {
	env := newTestEnv(t)
	setTestPolicy(t, env, CategoryGeneral)
	id := createTestProposal(t, env, nil)
	env.ledger.SetBalance("alice", 500_000)

	env.clock.Advance(7*24*time.Hour + time.Second)
	err := env.engine.CastVote("alice", id, VoteFor)
	assert.ErrorIs(t, err, ErrVotingClosed)
}

func TestVoteUnknownProposal(t *testing.T) {
	env := newTestEnv(t)
	err := env.engine.CastVote("alice", 42, VoteFor)
	assert.ErrorIs(t, err, ErrProposalNotFound)
}

func TestFinalizeBeforeWindowCloses(t *testing.T) {
	env := newTestEnv(t)
	setTestPolicy(t, env, CategoryGeneral)
	id := createTestProposal(t, env, nil)

	_, err := env.engine.Finalize(id)
	var stateErr *InvalidStateError
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, StateActive, stateErr.State)
}

func TestPolicySnapshotImmuneToEdits(t *testing.T) {
	env := newTestEnv(t)
	setTestPolicy(t, env, CategoryGeneral)
	id := createTestProposal(t, env, nil)
	env.ledger.SetBalance("alice", 2_000_000)

	// Raising the quorum mid-vote must not affect the open proposal
	err := env.engine.SetPolicy(
		"admin",
		CategoryGeneral,
		Policy{
			Quorum:            10_000_000,
			ProposalThreshold: 100_000,
			ApprovalThreshold: 5000,
			VotingPeriod:      7 * 24 * time.Hour,
		},
	)
	require.NoError(t, err)

	require.NoError(t, env.engine.CastVote("alice", id, VoteFor))
	env.clock.Advance(7*24*time.Hour + time.Second)
	state, err := env.engine.Finalize(id)
	require.NoError(t, err)
	assert.Equal(t, StateSucceeded, state)

	assert.Len(t, env.engine.PolicyVersions(CategoryGeneral), 2)
}

func TestQueueAndExecute(t *testing.T) {
	env := newTestEnv(t)
	setTestPolicy(t, env, CategoryGeneral)
	actions := []gateway.Action{
		{Target: "treasury", Value: 1000, Payload: []byte("grant")},
		{Target: "registry", Value: 0, Payload: []byte("update")},
	}
	id := createTestProposal(t, env, actions)
	env.ledger.SetBalance("alice", 2_000_000)
	require.NoError(t, env.engine.CastVote("alice", id, VoteFor))
	env.clock.Advance(7*24*time.Hour + time.Second)

	require.NoError(t, env.engine.Queue(id))
	require.NoError(t, env.engine.Execute(id))

	p, err := env.engine.Proposal(id)
	require.NoError(t, err)
	assert.Equal(t, StateExecuted, p.State)

	dispatched := env.gateway.Dispatched()
	require.Len(t, dispatched, 2)
	assert.Equal(t, "treasury", dispatched[0].Action.Target)
	assert.Equal(t, 0, dispatched[0].ActionIndex)
	assert.Equal(t, "registry", dispatched[1].Action.Target)
	assert.Equal(t, testCaller, dispatched[0].Caller)
}

func TestQueueSignalOnlyProposal(t *testing.T) {
	env := newTestEnv(t)
	setTestPolicy(t, env, CategoryGeneral)
	id := createTestProposal(t, env, nil)
	env.ledger.SetBalance("alice", 2_000_000)
	require.NoError(t, env.engine.CastVote("alice", id, VoteFor))
	env.clock.Advance(7*24*time.Hour + time.Second)

	err := env.engine.Queue(id)
	var stateErr *InvalidStateError
	assert.ErrorAs(t, err, &stateErr)

	// Signal-only proposals stay succeeded with nothing to execute
	p, err := env.engine.Proposal(id)
	require.NoError(t, err)
	assert.Equal(t, StateSucceeded, p.State)
}

func TestQueueDefeatedProposal(t *testing.T) {
	env := newTestEnv(t)
	setTestPolicy(t, env, CategoryGeneral)
	id := createTestProposal(
		t, env, []gateway.Action{{Target: "treasury"}},
	)
	env.clock.Advance(7*24*time.Hour + time.Second)

	err := env.engine.Queue(id)
	var stateErr *InvalidStateError
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, StateDefeated, stateErr.State)
}

func TestExecutePartialFailureLeavesQueued(t *testing.T) {
	env := newTestEnv(t)
	setTestPolicy(t, env, CategoryGeneral)
	actions := []gateway.Action{
		{Target: "treasury", Value: 1000},
		{Target: "broken", Value: 5},
		{Target: "registry", Value: 0},
	}
	id := createTestProposal(t, env, actions)
	env.ledger.SetBalance("alice", 2_000_000)
	require.NoError(t, env.engine.CastVote("alice", id, VoteFor))
	env.clock.Advance(7*24*time.Hour + time.Second)
	require.NoError(t, env.engine.Queue(id))

	targetErr := errors.New("downstream unavailable")
	env.gateway.FailTarget("broken", targetErr)

	err := env.engine.Execute(id)
	var dispatchErr *gateway.DispatchError
	require.ErrorAs(t, err, &dispatchErr)
	assert.Equal(t, 1, dispatchErr.ActionIndex)
	assert.ErrorIs(t, err, targetErr)

	p, err := env.engine.Proposal(id)
	require.NoError(t, err)
	assert.Equal(t, StateQueued, p.State)
	require.Len(t, env.gateway.Dispatched(), 1)

	// A retry resumes from the failed action without re-dispatching
	// completed ones
	env.gateway.FailTarget("broken", nil)
	require.NoError(t, env.engine.Execute(id))

	p, err = env.engine.Proposal(id)
	require.NoError(t, err)
	assert.Equal(t, StateExecuted, p.State)
	dispatched := env.gateway.Dispatched()
	require.Len(t, dispatched, 3)
	assert.Equal(t, "treasury", dispatched[0].Action.Target)
	assert.Equal(t, "broken", dispatched[1].Action.Target)
	assert.Equal(t, "registry", dispatched[2].Action.Target)
}

func TestExecuteCoAuthGating(t *testing.T) {
	env := newTestEnv(t)
	err := env.engine.SetPolicy(
		"admin",
		CategoryTreasury,
		Policy{
			Quorum:            1_000_000,
			ProposalThreshold: 100_000,
			ApprovalThreshold: 5000,
			VotingPeriod:      7 * 24 * time.Hour,
			RequiresCoAuth:    true,
		},
	)
	require.NoError(t, err)
	env.ledger.SetBalance("proposer", 200_000)
	id, err := env.engine.Propose(
		"proposer",
		"treasury spend",
		"d",
		CategoryTreasury,
		[]gateway.Action{{Target: "treasury", Value: 1000}},
	)
	require.NoError(t, err)
	env.ledger.SetBalance("alice", 2_000_000)
	require.NoError(t, env.engine.CastVote("alice", id, VoteFor))
	env.clock.Advance(7*24*time.Hour + time.Second)
	require.NoError(t, env.engine.Queue(id))

	// Execution is rejected until co-authorization has been granted at
	// the gateway
	err = env.engine.Execute(id)
	assert.ErrorIs(t, err, gateway.ErrCoAuthRequired)

	env.gateway.GrantCoAuth(id)
	require.NoError(t, env.engine.Execute(id))

	p, err := env.engine.Proposal(id)
	require.NoError(t, err)
	assert.Equal(t, StateExecuted, p.State)
}

func TestCancelByProposer(t *testing.T) {
	env := newTestEnv(t)
	setTestPolicy(t, env, CategoryGeneral)
	id := createTestProposal(t, env, nil)

	require.NoError(t, env.engine.Cancel("proposer", id))

	p, err := env.engine.Proposal(id)
	require.NoError(t, err)
	assert.Equal(t, StateCancelled, p.State)

	// Terminal: voting and a second cancel are both rejected
	env.ledger.SetBalance("alice", 500_000)
	assert.ErrorIs(
		t,
		env.engine.CastVote("alice", id, VoteFor),
		ErrVotingClosed,
	)
	var stateErr *InvalidStateError
	assert.ErrorAs(t, env.engine.Cancel("proposer", id), &stateErr)
}

func TestCancelPermissions(t *testing.T) {
	env := newTestEnv(t)
	setTestPolicy(t, env, CategoryGeneral)
	id := createTestProposal(t, env, nil)

	err := env.engine.Cancel("mallory", id)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	// Admin override
	require.NoError(t, env.engine.Cancel("admin", id))
}

func TestCancelAfterVotingEnd(t *testing.T) {
	env := newTestEnv(t)
	setTestPolicy(t, env, CategoryGeneral)
	id := createTestProposal(t, env, nil)

	env.clock.Advance(7*24*time.Hour + time.Second)
	err := env.engine.Cancel("proposer", id)
	var stateErr *InvalidStateError
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, StateDefeated, stateErr.State)
}

func TestGraceExpiry(t *testing.T) {
	env := newTestEnv(t)
	setTestPolicy(t, env, CategoryGeneral)
	id := createTestProposal(
		t, env, []gateway.Action{{Target: "treasury"}},
	)
	env.ledger.SetBalance("alice", 2_000_000)
	require.NoError(t, env.engine.CastVote("alice", id, VoteFor))
	env.clock.Advance(7*24*time.Hour + time.Second)
	require.NoError(t, env.engine.Queue(id))

	// 14-day grace window from the end of voting
	env.clock.Advance(14 * 24 * time.Hour)

	err := env.engine.Execute(id)
	var stateErr *InvalidStateError
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, StateExpired, stateErr.State)
	assert.Empty(t, env.gateway.Dispatched())
}

func TestGraceExpiryExemptsSignalProposals(t *testing.T) {
	env := newTestEnv(t)
	setTestPolicy(t, env, CategoryGeneral)
	id := createTestProposal(t, env, nil)
	env.ledger.SetBalance("alice", 2_000_000)
	require.NoError(t, env.engine.CastVote("alice", id, VoteFor))

	env.clock.Advance(400 * 24 * time.Hour)
	p, err := env.engine.Proposal(id)
	require.NoError(t, err)
	assert.Equal(t, StateSucceeded, p.State)
}

func TestProposalsOrderedByID(t *testing.T) {
	env := newTestEnv(t)
	setTestPolicy(t, env, CategoryGeneral)
	env.ledger.SetBalance("alice", 200_000)
	for i := 0; i < 3; i++ {
		_, err := env.engine.Propose(
			"alice", "t", "d", CategoryGeneral, nil,
		)
		require.NoError(t, err)
	}

	proposals := env.engine.Proposals()
	require.Len(t, proposals, 3)
	for i, p := range proposals {
		assert.Equal(t, uint64(i+1), p.ID)
	}
}

func TestEngineReloadFromDatabase(t *testing.T) {
	db, err := database.New(&database.Config{DataDir: t.TempDir()})
	require.NoError(t, err)
	defer db.Close()

	clk := newTestClock()
	l := ledger.NewMemory()
	l.SetBalance("proposer", 200_000)
	l.SetBalance("alice", 2_000_000)

	newEngine := func() *Engine {
		e, err := NewEngine(EngineConfig{
			PromRegistry:   prometheus.NewRegistry(),
			Ledger:         l,
			Database:       db,
			Admins:         []string{"admin"},
			CallerIdentity: testCaller,
			NowFunc:        clk.Now,
		})
		require.NoError(t, err)
		return e
	}

	e := newEngine()
	require.NoError(t, e.SetPolicy(
		"admin",
		CategoryGeneral,
		Policy{
			Quorum:            1_000_000,
			ProposalThreshold: 100_000,
			ApprovalThreshold: 5000,
			VotingPeriod:      7 * 24 * time.Hour,
		},
	))
	id, err := e.Propose(
		"proposer",
		"persisted",
		"d",
		CategoryGeneral,
		[]gateway.Action{{Target: "treasury", Value: 7}},
	)
	require.NoError(t, err)
	require.NoError(t, e.CastVote("alice", id, VoteFor))

	// A fresh engine over the same database sees the proposal, its vote,
	// and continues the id sequence
	e2 := newEngine()
	p, err := e2.Proposal(id)
	require.NoError(t, err)
	assert.Equal(t, StateActive, p.State)
	assert.Equal(t, uint64(2_000_000), p.ForVotes)
	require.Len(t, p.Actions, 1)
	assert.Equal(t, "treasury", p.Actions[0].Target)

	record, err := e2.Vote(id, "alice")
	require.NoError(t, err)
	assert.Equal(t, VoteFor, record.Choice)

	assert.ErrorIs(
		t,
		e2.CastVote("alice", id, VoteFor),
		ErrAlreadyVoted,
	)

	id2, err := e2.Propose(
		"proposer", "next", "d", CategoryGeneral, nil,
	)
	require.NoError(t, err)
	assert.Equal(t, id+1, id2)

	// Policy survives the reload too
	policy, err := e2.PolicyFor(CategoryGeneral)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000_000), policy.Quorum)
}

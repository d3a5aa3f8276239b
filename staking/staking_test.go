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

package staking

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/magickw/linkdao/database"
	"github.com/magickw/linkdao/ledger"

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

func newTestEngine(
	t *testing.T,
	l ledger.Ledger,
	clk *testClock,
) *Engine {
	t.Helper()
	e, err := NewEngine(EngineConfig{
		PromRegistry:     prometheus.NewRegistry(),
		Ledger:           l,
		Admins:           []string{"admin"},
		PremiumThreshold: 1000,
		DiscountTiers: []DiscountTier{
			{MinStaked: 100, DiscountBps: 100},
			{MinStaked: 1000, DiscountBps: 250},
			{MinStaked: 10000, DiscountBps: 500},
		},
		ActivityReward:   10,
		ActivityCooldown: 24 * time.Hour,
		NowFunc:          clk.Now,
	})
	require.NoError(t, err)
	return e
}

// createTestTier creates the standard test tier: 30-day lock, 5% annual
// rate, 100-token minimum
func createTestTier(t *testing.T, e *Engine) uint64 {
	t.Helper()
	tierID, err := e.CreateTier("admin", 30*24*time.Hour, 500, 100)
	require.NoError(t, err)
	return tierID
}

func TestStakeOpensPosition(t *testing.T) {
	l := ledger.NewMemory()
	l.SetBalance("alice", 5000)
	clk := newTestClock()
	e := newTestEngine(t, l, clk)
	tierID := createTestTier(t, e)

	idx, err := e.Stake("alice", 1000, tierID)
	require.NoError(t, err)
	assert.Equal(t, 0, idx)
	assert.Equal(t, uint64(4000), l.BalanceOf("alice"))
	assert.Equal(t, uint64(1000), e.TotalStaked("alice"))
	assert.Equal(t, uint64(2000), e.VotingContribution("alice"))
	assert.True(t, e.HasPremiumStatus("alice"))

	positions := e.Positions("alice")
	require.Len(t, positions, 1)
	assert.True(t, positions[0].Active)
	assert.Equal(t, tierID, positions[0].TierID)
}

func TestStakeInvalidTier(t *testing.T) {
	l := ledger.NewMemory()
	l.SetBalance("alice", 5000)
	clk := newTestClock()
	e := newTestEngine(t, l, clk)

	_, err := e.Stake("alice", 1000, 99)
	require.ErrorIs(t, err, ErrInvalidTier)

	// Deactivated tiers are also invalid
	tierID := createTestTier(t, e)
	require.NoError(t,
		e.UpdateTier("admin", tierID, 30*24*time.Hour, 500, 100, false))
	_, err = e.Stake("alice", 1000, tierID)
	require.ErrorIs(t, err, ErrInvalidTier)
	// No debit happened
	assert.Equal(t, uint64(5000), l.BalanceOf("alice"))
}

func TestStakeAmountTooLow(t *testing.T) {
	l := ledger.NewMemory()
	l.SetBalance("alice", 5000)
	clk := newTestClock()
	e := newTestEngine(t, l, clk)
	tierID := createTestTier(t, e)

	_, err := e.Stake("alice", 99, tierID)
	require.ErrorIs(t, err, ErrAmountTooLow)
	assert.Zero(t, e.TotalStaked("alice"))
}

func TestStakeInsufficientBalance(t *testing.T) {
	l := ledger.NewMemory()
	l.SetBalance("alice", 500)
	clk := newTestClock()
	e := newTestEngine(t, l, clk)
	tierID := createTestTier(t, e)

	_, err := e.Stake("alice", 1000, tierID)
	require.Error(t, err)
	var insufficientErr *ledger.InsufficientBalanceError
	require.True(t, errors.As(err, &insufficientErr))
	assert.Empty(t, e.Positions("alice"))
}

func TestUnstakeLifecycle(t *testing.T) {
	l := ledger.NewMemory()
	l.SetBalance("alice", 5000)
	clk := newTestClock()
	e := newTestEngine(t, l, clk)
	tierID := createTestTier(t, e)

	idx, err := e.Stake("alice", 1000, tierID)
	require.NoError(t, err)

	// Still locked before the lock duration elapses
	clk.Advance(29 * 24 * time.Hour)
	_, err = e.Unstake("alice", idx)
	var lockedErr *StillLockedError
	require.True(t, errors.As(err, &lockedErr))

	// After 31 days total the lock has elapsed; returned amount includes
	// a positive reward: 1000 * 500/10000 * 31/365 = 4 (floored)
	clk.Advance(2 * 24 * time.Hour)
	returned, err := e.Unstake("alice", idx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1004), returned)
	assert.Greater(t, returned, uint64(1000))
	assert.Equal(t, uint64(5004), l.BalanceOf("alice"))
	assert.Zero(t, e.TotalStaked("alice"))

	// Second unstake on the same index fails
	_, err = e.Unstake("alice", idx)
	require.ErrorIs(t, err, ErrPositionInactive)
}

func TestUnstakeAtExactUnlockInstant(t *testing.T) {
	l := ledger.NewMemory()
	l.SetBalance("alice", 5000)
	clk := newTestClock()
	e := newTestEngine(t, l, clk)
	tierID := createTestTier(t, e)

	idx, err := e.Stake("alice", 1000, tierID)
	require.NoError(t, err)

	clk.Advance(30 * 24 * time.Hour)
	returned, err := e.Unstake("alice", idx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, returned, uint64(1000))
}

func TestUnstakeUnknownPosition(t *testing.T) {
	l := ledger.NewMemory()
	clk := newTestClock()
	e := newTestEngine(t, l, clk)

	_, err := e.Unstake("alice", 0)
	require.ErrorIs(t, err, ErrPositionNotFound)
	_, err = e.Unstake("alice", -1)
	require.ErrorIs(t, err, ErrPositionNotFound)
}

func TestClaimRewardsExactYear(t *testing.T) {
	l := ledger.NewMemory()
	l.SetBalance("alice", 5000)
	clk := newTestClock()
	e := newTestEngine(t, l, clk)
	tierID := createTestTier(t, e)

	_, err := e.Stake("alice", 1000, tierID)
	require.NoError(t, err)

	// Exactly 365 days at 500 bps accrues exactly principal*500/10000
	clk.Advance(365 * 24 * time.Hour)
	assert.Equal(t, uint64(50), e.AccruedRewards("alice"))
	claimed, err := e.ClaimRewards("alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(50), claimed)
	assert.Equal(t, uint64(4050), l.BalanceOf("alice"))

	// Zero elapsed time since the claim: idempotent no-op
	claimed, err = e.ClaimRewards("alice")
	require.NoError(t, err)
	assert.Zero(t, claimed)
	assert.Equal(t, uint64(4050), l.BalanceOf("alice"))
}

func TestClaimRewardsMultiplePositions(t *testing.T) {
	l := ledger.NewMemory()
	l.SetBalance("alice", 5000)
	clk := newTestClock()
	e := newTestEngine(t, l, clk)
	tierID := createTestTier(t, e)

	_, err := e.Stake("alice", 1000, tierID)
	require.NoError(t, err)
	_, err = e.Stake("alice", 2000, tierID)
	require.NoError(t, err)

	clk.Advance(365 * 24 * time.Hour)
	claimed, err := e.ClaimRewards("alice")
	require.NoError(t, err)
	// 50 + 100, credited in one ledger call
	assert.Equal(t, uint64(150), claimed)

	// Claiming does not close positions
	assert.Equal(t, uint64(3000), e.TotalStaked("alice"))
}

func TestTierEditDoesNotAffectOpenPositions(t *testing.T) {
	l := ledger.NewMemory()
	l.SetBalance("alice", 5000)
	clk := newTestClock()
	e := newTestEngine(t, l, clk)
	tierID := createTestTier(t, e)

	idx, err := e.Stake("alice", 1000, tierID)
	require.NoError(t, err)

	// Double the lock and rate after the position is open
	require.NoError(t,
		e.UpdateTier("admin", tierID, 60*24*time.Hour, 1000, 100, true))

	// Position still unlocks on the original 30-day schedule with the
	// original 500 bps rate
	clk.Advance(31 * 24 * time.Hour)
	returned, err := e.Unstake("alice", idx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1004), returned)
}

func TestTierAdminPermissions(t *testing.T) {
	l := ledger.NewMemory()
	clk := newTestClock()
	e := newTestEngine(t, l, clk)

	_, err := e.CreateTier("mallory", time.Hour, 100, 1)
	require.ErrorIs(t, err, ErrPermissionDenied)

	tierID := createTestTier(t, e)
	err = e.UpdateTier("mallory", tierID, time.Hour, 100, 1, false)
	require.ErrorIs(t, err, ErrPermissionDenied)
	err = e.UpdateTier("admin", 99, time.Hour, 100, 1, false)
	require.ErrorIs(t, err, ErrTierNotFound)
}

func TestTierIdsMonotonic(t *testing.T) {
	l := ledger.NewMemory()
	clk := newTestClock()
	e := newTestEngine(t, l, clk)

	first := createTestTier(t, e)
	second := createTestTier(t, e)
	assert.Equal(t, uint64(1), first)
	assert.Equal(t, uint64(2), second)

	tiers := e.Tiers()
	require.Len(t, tiers, 2)
	assert.Equal(t, first, tiers[0].ID)
	assert.Equal(t, second, tiers[1].ID)
}

func TestDiscountTier(t *testing.T) {
	l := ledger.NewMemory()
	l.SetBalance("alice", 50_000)
	clk := newTestClock()
	e := newTestEngine(t, l, clk)
	tierID := createTestTier(t, e)

	// Nothing staked: no discount
	_, ok := e.DiscountTier("alice")
	assert.False(t, ok)

	_, err := e.Stake("alice", 1500, tierID)
	require.NoError(t, err)
	dt, ok := e.DiscountTier("alice")
	require.True(t, ok)
	assert.Equal(t, uint64(1000), dt.MinStaked)
	assert.Equal(t, uint32(250), dt.DiscountBps)

	_, err = e.Stake("alice", 9000, tierID)
	require.NoError(t, err)
	dt, ok = e.DiscountTier("alice")
	require.True(t, ok)
	assert.Equal(t, uint64(10000), dt.MinStaked)
}

func TestActivityRewardCooldown(t *testing.T) {
	l := ledger.NewMemory()
	clk := newTestClock()
	e := newTestEngine(t, l, clk)

	amount, err := e.ClaimActivityReward("alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(10), amount)
	assert.Equal(t, uint64(10), l.BalanceOf("alice"))

	// Second claim within the 24h window fails
	clk.Advance(23 * time.Hour)
	_, err = e.ClaimActivityReward("alice")
	var cooldownErr *OnCooldownError
	require.True(t, errors.As(err, &cooldownErr))

	clk.Advance(time.Hour)
	_, err = e.ClaimActivityReward("alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(20), l.BalanceOf("alice"))
}

func TestEngineReloadFromDatabase(t *testing.T) {
	dataDir := t.TempDir()
	db, err := database.New(&database.Config{DataDir: dataDir})
	require.NoError(t, err)

	l := ledger.NewMemory()
	l.SetBalance("alice", 5000)
	clk := newTestClock()

	e, err := NewEngine(EngineConfig{
		PromRegistry: prometheus.NewRegistry(),
		Ledger:       l,
		Database:     db,
		Admins:       []string{"admin"},
		NowFunc:      clk.Now,
	})
	require.NoError(t, err)

	tierID, err := e.CreateTier("admin", 30*24*time.Hour, 500, 100)
	require.NoError(t, err)
	_, err = e.Stake("alice", 1000, tierID)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	// Reopen the database and rebuild the engine from it
	db2, err := database.New(&database.Config{DataDir: dataDir})
	require.NoError(t, err)
	defer db2.Close() //nolint:errcheck

	e2, err := NewEngine(EngineConfig{
		PromRegistry: prometheus.NewRegistry(),
		Ledger:       l,
		Database:     db2,
		Admins:       []string{"admin"},
		NowFunc:      clk.Now,
	})
	require.NoError(t, err)

	assert.Equal(t, uint64(1000), e2.TotalStaked("alice"))
	positions := e2.Positions("alice")
	require.Len(t, positions, 1)
	assert.Equal(t, tierID, positions[0].TierID)
	assert.Equal(t, 30*24*time.Hour, positions[0].LockDuration)

	// Tier ids continue from where they left off
	next, err := e2.CreateTier("admin", time.Hour, 100, 1)
	require.NoError(t, err)
	assert.Equal(t, tierID+1, next)
}

func TestTierDeactivationSurvivesReload(t *testing.T) {
	dataDir := t.TempDir()
	db, err := database.New(&database.Config{DataDir: dataDir})
	require.NoError(t, err)

	l := ledger.NewMemory()
	l.SetBalance("alice", 5000)
	clk := newTestClock()

	e, err := NewEngine(EngineConfig{
		PromRegistry: prometheus.NewRegistry(),
		Ledger:       l,
		Database:     db,
		Admins:       []string{"admin"},
		NowFunc:      clk.Now,
	})
	require.NoError(t, err)

	tierID, err := e.CreateTier("admin", 30*24*time.Hour, 500, 100)
	require.NoError(t, err)
	require.NoError(
		t,
		e.UpdateTier("admin", tierID, 30*24*time.Hour, 500, 100, false),
	)
	require.NoError(t, db.Close())

	db2, err := database.New(&database.Config{DataDir: dataDir})
	require.NoError(t, err)
	defer db2.Close() //nolint:errcheck

	e2, err := NewEngine(EngineConfig{
		PromRegistry: prometheus.NewRegistry(),
		Ledger:       l,
		Database:     db2,
		Admins:       []string{"admin"},
		NowFunc:      clk.Now,
	})
	require.NoError(t, err)

	tier, err := e2.Tier(tierID)
	require.NoError(t, err)
	assert.False(t, tier.Active)

	_, err = e2.Stake("alice", 1000, tierID)
	assert.ErrorIs(t, err, ErrInvalidTier)
}

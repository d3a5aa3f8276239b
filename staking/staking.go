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
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/magickw/linkdao/database"
	"github.com/magickw/linkdao/database/models"
	"github.com/magickw/linkdao/event"
	"github.com/magickw/linkdao/ledger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	StakeEventType    event.EventType = "staking.stake"
	UnstakeEventType  event.EventType = "staking.unstake"
	ClaimEventType    event.EventType = "staking.claim"
	TierEventType     event.EventType = "staking.tier"
	ActivityEventType event.EventType = "staking.activity"
)

type StakeEvent struct {
	Account       string
	PositionIndex int
	TierID        uint64
	Amount        uint64
}

type UnstakeEvent struct {
	Account       string
	PositionIndex int
	Principal     uint64
	Reward        uint64
}

type ClaimEvent struct {
	Account string
	Amount  uint64
}

type TierEvent struct {
	TierID uint64
	Active bool
}

type ActivityEvent struct {
	Account string
	Amount  uint64
}

// Position is one stake position in an account's append-only position list.
// Lock duration and reward rate are captured from the tier at creation time
// and are unaffected by later tier edits.
type Position struct {
	StartedAt    time.Time
	LastClaimAt  time.Time
	Index        int
	TierID       uint64
	Principal    uint64
	LockDuration time.Duration
	RewardRate   uint32 // basis points
	Claimed      uint64
	Active       bool
}

// DiscountTier pairs a total-staked threshold with the fee discount it
// grants.
type DiscountTier struct {
	MinStaked   uint64
	DiscountBps uint32
}

type EngineConfig struct {
	PromRegistry     prometheus.Registerer
	Logger           *slog.Logger
	EventBus         *event.EventBus
	Ledger           ledger.Ledger
	Database         *database.Database
	Admins           []string
	DiscountTiers    []DiscountTier
	PremiumThreshold uint64
	ActivityReward   uint64
	ActivityCooldown time.Duration
	// NowFunc overrides the time source. Used by tests; defaults to
	// time.Now
	NowFunc func() time.Time
}

// Engine owns all stake positions and the tier table. Every public
// operation is serialized behind the embedded mutex and reads the clock
// once, so state transitions are atomic with respect to each other.
type Engine struct {
	config  EngineConfig
	metrics struct {
		activePositions prometheus.Gauge
		stakedTotal     prometheus.Gauge
		rewardsPaid     prometheus.Counter
	}
	logger         *slog.Logger
	eventBus       *event.EventBus
	ledger         ledger.Ledger
	db             *database.Database
	now            func() time.Time
	admins         map[string]bool
	tiers          map[uint64]*Tier
	positions      map[string][]*Position
	activityClaims map[string]time.Time
	nextTierID     uint64
	sync.RWMutex
}

// NewEngine creates a staking engine and, when a database is configured,
// reloads tiers, positions, and activity claims from it.
func NewEngine(config EngineConfig) (*Engine, error) {
	if config.Ledger == nil {
		return nil, fmt.Errorf("no ledger provided")
	}
	e := &Engine{
		config:         config,
		eventBus:       config.EventBus,
		ledger:         config.Ledger,
		db:             config.Database,
		admins:         make(map[string]bool),
		tiers:          make(map[uint64]*Tier),
		positions:      make(map[string][]*Position),
		activityClaims: make(map[string]time.Time),
		nextTierID:     1,
		now:            config.NowFunc,
	}
	if config.Logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		e.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	} else {
		e.logger = config.Logger
	}
	if e.now == nil {
		e.now = time.Now
	}
	for _, admin := range config.Admins {
		e.admins[admin] = true
	}
	// Init metrics
	promautoFactory := promauto.With(config.PromRegistry)
	e.metrics.activePositions = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "linkdao_staking_active_positions",
		Help: "current count of active stake positions",
	})
	e.metrics.stakedTotal = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "linkdao_staking_staked_total",
		Help: "current total staked principal across all accounts",
	})
	e.metrics.rewardsPaid = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "linkdao_staking_rewards_paid_total",
		Help: "total staking rewards credited",
	})
	if e.db != nil {
		if err := e.load(); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// load rebuilds the in-memory registries from the database
func (e *Engine) load() error {
	tiers, err := e.db.GetStakingTiers()
	if err != nil {
		return err
	}
	for _, t := range tiers {
		e.tiers[t.ID] = &Tier{
			ID:           t.ID,
			LockDuration: time.Duration(t.LockSeconds) * time.Second,
			RewardRate:   t.RewardRateBps,
			MinStake:     t.MinStake,
			Active:       t.Active,
		}
		if t.ID >= e.nextTierID {
			e.nextTierID = t.ID + 1
		}
	}
	positions, err := e.db.GetAllStakePositions()
	if err != nil {
		return err
	}
	for _, p := range positions {
		pos := &Position{
			Index:        p.Index,
			TierID:       p.TierID,
			Principal:    p.Principal,
			LockDuration: time.Duration(p.LockSeconds) * time.Second,
			RewardRate:   p.RewardRateBps,
			StartedAt:    time.Unix(p.StartedAt, 0),
			LastClaimAt:  time.Unix(p.LastClaimAt, 0),
			Claimed:      p.Claimed,
			Active:       p.Active,
		}
		e.positions[p.Account] = append(e.positions[p.Account], pos)
		if pos.Active {
			e.metrics.activePositions.Inc()
			e.metrics.stakedTotal.Add(float64(pos.Principal))
		}
	}
	claims, err := e.db.GetActivityClaims()
	if err != nil {
		return err
	}
	for _, c := range claims {
		e.activityClaims[c.Account] = time.Unix(c.LastClaimAt, 0)
	}
	e.logger.Info(
		"loaded staking state",
		"component", "staking",
		"tiers", len(tiers),
		"positions", len(positions),
	)
	return nil
}

// Stake debits amount from the account's ledger balance and opens a new
// active position against the given tier. From this call onward the staked
// principal carries double voting weight, so the account's voting power
// rises by the staked amount.
func (e *Engine) Stake(
	account string,
	amount uint64,
	tierID uint64,
) (int, error) {
	e.Lock()
	defer e.Unlock()
	now := e.now()
	tier, ok := e.tiers[tierID]
	if !ok || !tier.Active {
		return 0, ErrInvalidTier
	}
	if amount < tier.MinStake {
		return 0, ErrAmountTooLow
	}
	if err := e.ledger.Debit(account, amount); err != nil {
		return 0, err
	}
	position := &Position{
		Index:        len(e.positions[account]),
		TierID:       tier.ID,
		Principal:    amount,
		LockDuration: tier.LockDuration,
		RewardRate:   tier.RewardRate,
		StartedAt:    now,
		LastClaimAt:  now,
		Active:       true,
	}
	e.positions[account] = append(e.positions[account], position)
	e.persistPosition(account, position)
	e.metrics.activePositions.Inc()
	e.metrics.stakedTotal.Add(float64(amount))
	e.logger.Debug(
		"opened stake position",
		"component", "staking",
		"account", account,
		"position", position.Index,
		"tier", tier.ID,
		"amount", amount,
	)
	e.publish(StakeEventType, StakeEvent{
		Account:       account,
		PositionIndex: position.Index,
		TierID:        tier.ID,
		Amount:        amount,
	})
	return position.Index, nil
}

// Unstake closes a position after its lock has elapsed and credits the
// ledger with the principal plus any reward accrued since the last claim.
func (e *Engine) Unstake(account string, positionIndex int) (uint64, error) {
	e.Lock()
	defer e.Unlock()
	now := e.now()
	accountPositions := e.positions[account]
	if positionIndex < 0 || positionIndex >= len(accountPositions) {
		return 0, ErrPositionNotFound
	}
	position := accountPositions[positionIndex]
	if !position.Active {
		return 0, ErrPositionInactive
	}
	unlocksAt := position.StartedAt.Add(position.LockDuration)
	if now.Before(unlocksAt) {
		return 0, &StillLockedError{UnlocksAt: unlocksAt}
	}
	reward := accrueReward(
		position.Principal,
		position.RewardRate,
		position.LastClaimAt,
		now,
	)
	returned := position.Principal + reward
	if err := e.ledger.Credit(account, returned); err != nil {
		return 0, err
	}
	position.Active = false
	position.LastClaimAt = now
	position.Claimed += reward
	e.persistPosition(account, position)
	e.metrics.activePositions.Dec()
	e.metrics.stakedTotal.Sub(float64(position.Principal))
	e.metrics.rewardsPaid.Add(float64(reward))
	e.logger.Debug(
		"closed stake position",
		"component", "staking",
		"account", account,
		"position", positionIndex,
		"returned", returned,
	)
	e.publish(UnstakeEventType, UnstakeEvent{
		Account:       account,
		PositionIndex: positionIndex,
		Principal:     position.Principal,
		Reward:        reward,
	})
	return returned, nil
}

// ClaimRewards claims accrued rewards across all of the account's active
// positions as a single ledger credit. A call with nothing accrued is a
// no-op. Position markers only advance once the credit has succeeded, so
// the claim is atomic.
func (e *Engine) ClaimRewards(account string) (uint64, error) {
	e.Lock()
	defer e.Unlock()
	now := e.now()
	var total uint64
	for _, position := range e.positions[account] {
		if !position.Active {
			continue
		}
		total += accrueReward(
			position.Principal,
			position.RewardRate,
			position.LastClaimAt,
			now,
		)
	}
	if total == 0 {
		return 0, nil
	}
	if err := e.ledger.Credit(account, total); err != nil {
		return 0, err
	}
	for _, position := range e.positions[account] {
		if !position.Active {
			continue
		}
		reward := accrueReward(
			position.Principal,
			position.RewardRate,
			position.LastClaimAt,
			now,
		)
		position.LastClaimAt = now
		position.Claimed += reward
		e.persistPosition(account, position)
	}
	e.metrics.rewardsPaid.Add(float64(total))
	e.logger.Debug(
		"claimed stake rewards",
		"component", "staking",
		"account", account,
		"amount", total,
	)
	e.publish(ClaimEventType, ClaimEvent{
		Account: account,
		Amount:  total,
	})
	return total, nil
}

// ClaimActivityReward credits the flat per-account activity reward, at most
// once per cooldown window.
func (e *Engine) ClaimActivityReward(account string) (uint64, error) {
	e.Lock()
	defer e.Unlock()
	now := e.now()
	if lastClaim, ok := e.activityClaims[account]; ok {
		nextClaimAt := lastClaim.Add(e.config.ActivityCooldown)
		if now.Before(nextClaimAt) {
			return 0, &OnCooldownError{NextClaimAt: nextClaimAt}
		}
	}
	if err := e.ledger.Credit(account, e.config.ActivityReward); err != nil {
		return 0, err
	}
	e.activityClaims[account] = now
	if e.db != nil {
		if err := e.db.SetActivityClaim(&models.ActivityClaim{
			Account:     account,
			LastClaimAt: now.Unix(),
		}); err != nil {
			e.logger.Error(
				"failed to persist activity claim",
				"component", "staking",
				"account", account,
				"error", err,
			)
		}
	}
	e.publish(ActivityEventType, ActivityEvent{
		Account: account,
		Amount:  e.config.ActivityReward,
	})
	return e.config.ActivityReward, nil
}

// Positions returns a copy of the account's position list, including
// inactive historical positions.
func (e *Engine) Positions(account string) []Position {
	e.RLock()
	defer e.RUnlock()
	accountPositions := e.positions[account]
	ret := make([]Position, len(accountPositions))
	for i := range accountPositions {
		ret[i] = *accountPositions[i]
	}
	return ret
}

// TotalStaked returns the sum of the account's active principals
func (e *Engine) TotalStaked(account string) uint64 {
	e.RLock()
	defer e.RUnlock()
	return e.totalStaked(account)
}

func (e *Engine) totalStaked(account string) uint64 {
	var total uint64
	for _, position := range e.positions[account] {
		if position.Active {
			total += position.Principal
		}
	}
	return total
}

// VotingContribution returns the staking-derived voting weight. Each unit
// of staked principal carries two units of weight versus one for a spendable
// unit, so staking raises voting power by exactly the staked amount despite
// the ledger debit.
func (e *Engine) VotingContribution(account string) uint64 {
	return 2 * e.TotalStaked(account)
}

// HasPremiumStatus reports whether the account's total staked principal
// meets the premium threshold
func (e *Engine) HasPremiumStatus(account string) bool {
	e.RLock()
	defer e.RUnlock()
	return e.totalStaked(account) >= e.config.PremiumThreshold
}

// DiscountTier returns the highest configured discount tier whose threshold
// does not exceed the account's total staked principal. ok is false when no
// tier qualifies.
func (e *Engine) DiscountTier(account string) (DiscountTier, bool) {
	e.RLock()
	defer e.RUnlock()
	staked := e.totalStaked(account)
	var best DiscountTier
	found := false
	for _, dt := range e.config.DiscountTiers {
		if staked >= dt.MinStaked &&
			(!found || dt.MinStaked > best.MinStaked) {
			best = dt
			found = true
		}
	}
	return best, found
}

// AccruedRewards returns the total reward currently claimable across the
// account's active positions, without claiming it.
func (e *Engine) AccruedRewards(account string) uint64 {
	e.RLock()
	defer e.RUnlock()
	now := e.now()
	var total uint64
	for _, position := range e.positions[account] {
		if !position.Active {
			continue
		}
		total += accrueReward(
			position.Principal,
			position.RewardRate,
			position.LastClaimAt,
			now,
		)
	}
	return total
}

func (e *Engine) persistPosition(account string, position *Position) {
	if e.db == nil {
		return
	}
	if err := e.db.SetStakePosition(&models.StakePosition{
		Account:       account,
		Index:         position.Index,
		TierID:        position.TierID,
		Principal:     position.Principal,
		LockSeconds:   uint64(position.LockDuration / time.Second),
		RewardRateBps: position.RewardRate,
		StartedAt:     position.StartedAt.Unix(),
		LastClaimAt:   position.LastClaimAt.Unix(),
		Claimed:       position.Claimed,
		Active:        position.Active,
	}); err != nil {
		e.logger.Error(
			"failed to persist stake position",
			"component", "staking",
			"account", account,
			"position", position.Index,
			"error", err,
		)
	}
}

func (e *Engine) publish(eventType event.EventType, data any) {
	if e.eventBus == nil {
		return
	}
	e.eventBus.Publish(eventType, event.NewEvent(eventType, data))
}

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
	"slices"
	"time"

	"github.com/magickw/linkdao/database/models"
)

// Tier is a staking tier: a lock duration paired with an annualized reward
// rate and a minimum stake. Tier 0 is reserved; ids are assigned
// monotonically from 1 and never reused. Tiers are deactivated rather than
// deleted so historical positions stay valid.
type Tier struct {
	ID           uint64
	LockDuration time.Duration
	RewardRate   uint32 // basis points
	MinStake     uint64
	Active       bool
}

// CreateTier adds a new staking tier and returns its id. Restricted to
// admin accounts.
func (e *Engine) CreateTier(
	caller string,
	lockDuration time.Duration,
	rewardRateBps uint32,
	minStake uint64,
) (uint64, error) {
	e.Lock()
	defer e.Unlock()
	if !e.admins[caller] {
		return 0, ErrPermissionDenied
	}
	tier := &Tier{
		ID:           e.nextTierID,
		LockDuration: lockDuration,
		RewardRate:   rewardRateBps,
		MinStake:     minStake,
		Active:       true,
	}
	e.nextTierID++
	e.tiers[tier.ID] = tier
	e.persistTier(tier)
	e.logger.Info(
		"created staking tier",
		"component", "staking",
		"tier", tier.ID,
		"lock", lockDuration.String(),
		"rate_bps", rewardRateBps,
		"min_stake", minStake,
	)
	e.publish(TierEventType, TierEvent{TierID: tier.ID, Active: true})
	return tier.ID, nil
}

// UpdateTier edits an existing tier. Open positions keep the lock duration
// and rate captured when they were created; edits only affect future
// stakes. Restricted to admin accounts.
func (e *Engine) UpdateTier(
	caller string,
	tierID uint64,
	lockDuration time.Duration,
	rewardRateBps uint32,
	minStake uint64,
	active bool,
) error {
	e.Lock()
	defer e.Unlock()
	if !e.admins[caller] {
		return ErrPermissionDenied
	}
	tier, ok := e.tiers[tierID]
	if !ok {
		return ErrTierNotFound
	}
	tier.LockDuration = lockDuration
	tier.RewardRate = rewardRateBps
	tier.MinStake = minStake
	tier.Active = active
	e.persistTier(tier)
	e.logger.Info(
		"updated staking tier",
		"component", "staking",
		"tier", tier.ID,
		"active", active,
	)
	e.publish(TierEventType, TierEvent{TierID: tier.ID, Active: active})
	return nil
}

// Tier returns the tier with the given id
func (e *Engine) Tier(tierID uint64) (Tier, error) {
	e.RLock()
	defer e.RUnlock()
	tier, ok := e.tiers[tierID]
	if !ok {
		return Tier{}, ErrTierNotFound
	}
	return *tier, nil
}

// Tiers returns all tiers ordered by id
func (e *Engine) Tiers() []Tier {
	e.RLock()
	defer e.RUnlock()
	ret := make([]Tier, 0, len(e.tiers))
	for _, tier := range e.tiers {
		ret = append(ret, *tier)
	}
	slices.SortFunc(ret, func(a, b Tier) int {
		return int(a.ID) - int(b.ID)
	})
	return ret
}

func (e *Engine) persistTier(tier *Tier) {
	if e.db == nil {
		return
	}
	if err := e.db.SetStakingTier(&models.StakingTier{
		ID:            tier.ID,
		LockSeconds:   uint64(tier.LockDuration / time.Second),
		RewardRateBps: tier.RewardRate,
		MinStake:      tier.MinStake,
		Active:        tier.Active,
	}); err != nil {
		e.logger.Error(
			"failed to persist staking tier",
			"component", "staking",
			"tier", tier.ID,
			"error", err,
		)
	}
}

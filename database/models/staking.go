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

package models

// StakingTier is the durable record of a staking tier. Tier ids are assigned
// by the staking engine starting at 1 and are never reused; tiers are
// deactivated rather than deleted so historical positions stay resolvable.
type StakingTier struct {
	ID            uint64 `gorm:"primarykey"`
	LockSeconds   uint64 `gorm:"not null"`
	RewardRateBps uint32 `gorm:"not null"`
	MinStake      uint64 `gorm:"not null"`
	Active        bool   `gorm:"not null"`
}

// TableName returns the table name
func (StakingTier) TableName() string {
	return "staking_tier"
}

// StakePosition is the durable record of a stake position, identified by
// (account, index). Lock duration and reward rate are captured at creation
// time and unaffected by later tier edits. Positions are never deleted;
// unstaking marks them inactive.
type StakePosition struct {
	ID            uint   `gorm:"primarykey"`
	Account       string `gorm:"uniqueIndex:idx_position_account_index,priority:1;size:64;not null"`
	Index         int    `gorm:"uniqueIndex:idx_position_account_index,priority:2;not null"`
	TierID        uint64 `gorm:"index;not null"`
	Principal     uint64 `gorm:"not null"`
	LockSeconds   uint64 `gorm:"not null"`
	RewardRateBps uint32 `gorm:"not null"`
	StartedAt     int64  `gorm:"not null"` // unix seconds
	LastClaimAt   int64  `gorm:"not null"` // unix seconds
	Claimed       uint64 `gorm:"not null"`
	Active        bool   `gorm:"index;not null"`
}

// TableName returns the table name
func (StakePosition) TableName() string {
	return "stake_position"
}

// ActivityClaim tracks the last activity reward claim per account for
// cooldown enforcement.
type ActivityClaim struct {
	ID          uint   `gorm:"primarykey"`
	Account     string `gorm:"uniqueIndex;size:64;not null"`
	LastClaimAt int64  `gorm:"not null"` // unix seconds
}

// TableName returns the table name
func (ActivityClaim) TableName() string {
	return "activity_claim"
}

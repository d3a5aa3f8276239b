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

package database

import (
	"fmt"

	"github.com/magickw/linkdao/database/models"

	"gorm.io/gorm/clause"
)

// SetStakingTier creates or updates a staking tier
func (d *Database) SetStakingTier(tier *models.StakingTier) error {
	onConflict := clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"lock_seconds",
			"reward_rate_bps",
			"min_stake",
			"active",
		}),
	}
	if result := d.db.Clauses(onConflict).Create(tier); result.Error != nil {
		return fmt.Errorf("failed to set staking tier: %w", result.Error)
	}
	return nil
}

// GetStakingTiers returns all staking tiers ordered by id
func (d *Database) GetStakingTiers() ([]*models.StakingTier, error) {
	var tiers []*models.StakingTier
	if result := d.db.Order("id").Find(&tiers); result.Error != nil {
		return nil, fmt.Errorf("failed to get staking tiers: %w", result.Error)
	}
	return tiers, nil
}

// SetStakePosition creates or updates a stake position
func (d *Database) SetStakePosition(position *models.StakePosition) error {
	onConflict := clause.OnConflict{
		Columns: []clause.Column{
			{Name: "account"},
			{Name: "index"},
		},
		// started_at is NOT updated on conflict: a position's start time is
		// fixed at creation
		DoUpdates: clause.AssignmentColumns([]string{
			"last_claim_at",
			"claimed",
			"active",
		}),
	}
	if result := d.db.Clauses(onConflict).Create(position); result.Error != nil {
		return fmt.Errorf("failed to set stake position: %w", result.Error)
	}
	return nil
}

// GetStakePositions returns all stake positions for an account ordered by index
func (d *Database) GetStakePositions(
	account string,
) ([]*models.StakePosition, error) {
	var positions []*models.StakePosition
	if result := d.db.Where("account = ?", account).
		Order("`index`").
		Find(&positions); result.Error != nil {
		return nil, fmt.Errorf(
			"failed to get stake positions: %w",
			result.Error,
		)
	}
	return positions, nil
}

// GetAllStakePositions returns every stake position, ordered by account and
// index. Used by the staking engine to rebuild its registry on startup.
func (d *Database) GetAllStakePositions() ([]*models.StakePosition, error) {
	var positions []*models.StakePosition
	if result := d.db.Order("account, `index`").
		Find(&positions); result.Error != nil {
		return nil, fmt.Errorf(
			"failed to get stake positions: %w",
			result.Error,
		)
	}
	return positions, nil
}

// SetActivityClaim records the last activity reward claim for an account
func (d *Database) SetActivityClaim(claim *models.ActivityClaim) error {
	onConflict := clause.OnConflict{
		Columns:   []clause.Column{{Name: "account"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_claim_at"}),
	}
	if result := d.db.Clauses(onConflict).Create(claim); result.Error != nil {
		return fmt.Errorf("failed to set activity claim: %w", result.Error)
	}
	return nil
}

// GetActivityClaims returns all activity claim records
func (d *Database) GetActivityClaims() ([]*models.ActivityClaim, error) {
	var claims []*models.ActivityClaim
	if result := d.db.Find(&claims); result.Error != nil {
		return nil, fmt.Errorf("failed to get activity claims: %w", result.Error)
	}
	return claims, nil
}

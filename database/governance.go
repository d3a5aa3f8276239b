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

// AddCategoryPolicy appends a category policy version. Policies are never
// updated in place; edits add a new row with a later effective timestamp.
func (d *Database) AddCategoryPolicy(policy *models.CategoryPolicy) error {
	if result := d.db.Create(policy); result.Error != nil {
		return fmt.Errorf("failed to add category policy: %w", result.Error)
	}
	return nil
}

// GetCategoryPolicies returns all policy versions ordered by category and
// effective timestamp
func (d *Database) GetCategoryPolicies() ([]*models.CategoryPolicy, error) {
	var policies []*models.CategoryPolicy
	if result := d.db.Order("category, effective_at").
		Find(&policies); result.Error != nil {
		return nil, fmt.Errorf(
			"failed to get category policies: %w",
			result.Error,
		)
	}
	return policies, nil
}

// SetProposal creates or updates a proposal record
func (d *Database) SetProposal(proposal *models.Proposal) error {
	onConflict := clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		// created_at, voting_end, and the policy snapshot columns are NOT
		// updated on conflict: they are fixed at proposal creation
		DoUpdates: clause.AssignmentColumns([]string{
			"state",
			"queued_at",
			"executed_at",
			"for_votes",
			"against_votes",
			"abstain_votes",
			"dispatched_actions",
		}),
	}
	if result := d.db.Clauses(onConflict).Create(proposal); result.Error != nil {
		return fmt.Errorf("failed to set proposal: %w", result.Error)
	}
	return nil
}

// GetProposals returns all proposals ordered by id
func (d *Database) GetProposals() ([]*models.Proposal, error) {
	var proposals []*models.Proposal
	if result := d.db.Order("id").Find(&proposals); result.Error != nil {
		return nil, fmt.Errorf("failed to get proposals: %w", result.Error)
	}
	return proposals, nil
}

// AddProposalActions stores a proposal's action list. Actions are immutable
// once the proposal is created.
func (d *Database) AddProposalActions(
	actions []*models.ProposalAction,
) error {
	if len(actions) == 0 {
		return nil
	}
	if result := d.db.Create(actions); result.Error != nil {
		return fmt.Errorf("failed to add proposal actions: %w", result.Error)
	}
	return nil
}

// GetProposalActions returns a proposal's actions in list order
func (d *Database) GetProposalActions(
	proposalID uint64,
) ([]*models.ProposalAction, error) {
	var actions []*models.ProposalAction
	if result := d.db.Where("proposal_id = ?", proposalID).
		Order("`index`").
		Find(&actions); result.Error != nil {
		return nil, fmt.Errorf(
			"failed to get proposal actions: %w",
			result.Error,
		)
	}
	return actions, nil
}

// AddGovernanceVote records a vote on a proposal. Votes are immutable; the
// unique (proposal_id, voter) index backs the double-vote check on reload.
func (d *Database) AddGovernanceVote(vote *models.GovernanceVote) error {
	if result := d.db.Create(vote); result.Error != nil {
		return fmt.Errorf("failed to add governance vote: %w", result.Error)
	}
	return nil
}

// GetGovernanceVotes returns all votes for a proposal
func (d *Database) GetGovernanceVotes(
	proposalID uint64,
) ([]*models.GovernanceVote, error) {
	var votes []*models.GovernanceVote
	if result := d.db.Where("proposal_id = ?", proposalID).
		Find(&votes); result.Error != nil {
		return nil, fmt.Errorf(
			"failed to get governance votes: %w",
			result.Error,
		)
	}
	return votes, nil
}

// GetAllGovernanceVotes returns every recorded vote. Used by the governance
// engine to rebuild voter maps on startup.
func (d *Database) GetAllGovernanceVotes() ([]*models.GovernanceVote, error) {
	var votes []*models.GovernanceVote
	if result := d.db.Order("proposal_id").Find(&votes); result.Error != nil {
		return nil, fmt.Errorf(
			"failed to get governance votes: %w",
			result.Error,
		)
	}
	return votes, nil
}

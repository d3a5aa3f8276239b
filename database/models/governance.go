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

// CategoryPolicy is one version of a category's governance policy. Policies
// are append-only: each administrative edit adds a row with a later
// effective timestamp, so the snapshot a proposal took at creation stays
// reconstructable.
type CategoryPolicy struct {
	ID                   uint   `gorm:"primarykey"`
	Category             uint8  `gorm:"index:idx_policy_category_effective,priority:1;not null"`
	EffectiveAt          int64  `gorm:"index:idx_policy_category_effective,priority:2;not null"` // unix seconds
	Quorum               uint64 `gorm:"not null"`
	ApprovalThresholdBps uint32 `gorm:"not null"`
	ProposalThreshold    uint64 `gorm:"not null"`
	VotingPeriodSeconds  uint64 `gorm:"not null"`
	RequiresCoAuth       bool   `gorm:"not null"`
}

// TableName returns the table name
func (CategoryPolicy) TableName() string {
	return "category_policy"
}

// Proposal is the durable record of a governance proposal, including its
// vote tallies and the policy snapshot taken at creation time.
type Proposal struct {
	ID          uint64 `gorm:"primarykey"`
	Proposer    string `gorm:"index;size:64;not null"`
	Title       string `gorm:"size:256;not null"`
	Description string
	Category    uint8 `gorm:"index;not null"`
	State       uint8 `gorm:"index;not null"`
	CreatedAt   int64 `gorm:"not null"` // unix seconds
	VotingEnd   int64 `gorm:"index;not null"`
	QueuedAt    int64
	ExecutedAt  int64
	ForVotes     uint64 `gorm:"not null"`
	AgainstVotes uint64 `gorm:"not null"`
	AbstainVotes uint64 `gorm:"not null"`
	// Count of actions already dispatched, so a retried execution after a
	// partial failure does not re-dispatch completed actions
	DispatchedActions int `gorm:"not null"`
	// Policy snapshot at creation
	Quorum               uint64 `gorm:"not null"`
	ApprovalThresholdBps uint32 `gorm:"not null"`
	RequiresCoAuth       bool   `gorm:"not null"`
}

// TableName returns the table name
func (Proposal) TableName() string {
	return "proposal"
}

// ProposalAction is one execution action of a proposal, kept in list order.
type ProposalAction struct {
	ID         uint   `gorm:"primarykey"`
	ProposalID uint64 `gorm:"uniqueIndex:idx_action_proposal_index,priority:1;not null"`
	Index      int    `gorm:"uniqueIndex:idx_action_proposal_index,priority:2;not null"`
	Target     string `gorm:"size:128;not null"`
	Value      uint64 `gorm:"not null"`
	Payload    []byte
}

// TableName returns the table name
func (ProposalAction) TableName() string {
	return "proposal_action"
}

// GovernanceVote is a vote cast on a proposal. The recorded weight is the
// voter's power at cast time and is immutable afterwards.
type GovernanceVote struct {
	ID         uint   `gorm:"primarykey"`
	ProposalID uint64 `gorm:"uniqueIndex:idx_vote_proposal_voter,priority:1;not null"`
	Voter      string `gorm:"uniqueIndex:idx_vote_proposal_voter,priority:2;size:64;not null"`
	Choice     uint8  `gorm:"not null"`
	Weight     uint64 `gorm:"not null"`
	CastAt     int64  `gorm:"not null"` // unix seconds
}

// TableName returns the table name
func (GovernanceVote) TableName() string {
	return "governance_vote"
}

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
	"math/big"
	"time"

	"github.com/magickw/linkdao/gateway"
)

// ProposalState is the lifecycle state of a proposal. Transitions:
//
//	Pending -> Active -> {Succeeded | Defeated} -> Queued -> Executed
//
// Cancelled is reachable from Pending/Active, Expired from
// Succeeded/Queued when execution is not triggered within the grace
// window. Terminal states are permanent.
type ProposalState uint8

const (
	StatePending ProposalState = iota
	StateActive
	StateSucceeded
	StateDefeated
	StateQueued
	StateExecuted
	StateCancelled
	StateExpired
)

func (s ProposalState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateActive:
		return "active"
	case StateSucceeded:
		return "succeeded"
	case StateDefeated:
		return "defeated"
	case StateQueued:
		return "queued"
	case StateExecuted:
		return "executed"
	case StateCancelled:
		return "cancelled"
	case StateExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// VoteChoice constants represent the vote choice on a proposal.
type VoteChoice uint8

const (
	VoteAgainst VoteChoice = 0
	VoteFor     VoteChoice = 1
	VoteAbstain VoteChoice = 2
)

func (c VoteChoice) String() string {
	switch c {
	case VoteAgainst:
		return "against"
	case VoteFor:
		return "for"
	case VoteAbstain:
		return "abstain"
	default:
		return "unknown"
	}
}

// VoteRecord is one voter's recorded vote: the choice and the voter's
// power at the moment of voting. Records are immutable once cast.
type VoteRecord struct {
	CastAt time.Time
	Weight uint64
	Choice VoteChoice
}

// Proposal is the externally visible proposal snapshot returned by engine
// queries.
type Proposal struct {
	CreatedAt    time.Time
	VotingEnd    time.Time
	Proposer     string
	Title        string
	Description  string
	Actions      []gateway.Action
	ID           uint64
	Category     Category
	State        ProposalState
	ForVotes     uint64
	AgainstVotes uint64
	AbstainVotes uint64
	Policy       Policy
}

// proposal is the engine-internal proposal record
type proposal struct {
	createdAt    time.Time
	votingEnd    time.Time
	queuedAt     time.Time
	executedAt   time.Time
	proposer     string
	title        string
	description  string
	actions      []gateway.Action
	votes        map[string]VoteRecord
	id           uint64
	forVotes     uint64
	againstVotes uint64
	abstainVotes uint64
	dispatched   int
	policy       Policy
	category     Category
	state        ProposalState
}

// passed evaluates the quorum and approval threshold against the final
// tallies using the policy snapshot taken at creation. The approval
// fraction counts only for/against votes; with no such votes the
// threshold is never met.
func (p *proposal) passed() bool {
	totalVotes := p.forVotes + p.againstVotes + p.abstainVotes
	if totalVotes < p.policy.Quorum {
		return false
	}
	decisive := p.forVotes + p.againstVotes
	if decisive == 0 {
		return false
	}
	lhs := new(big.Int).Mul(
		new(big.Int).SetUint64(p.forVotes),
		big.NewInt(bpsDenominator),
	)
	rhs := new(big.Int).Mul(
		new(big.Int).SetUint64(decisive),
		big.NewInt(int64(p.policy.ApprovalThreshold)),
	)
	return lhs.Cmp(rhs) >= 0
}

func (p *proposal) snapshot() Proposal {
	actions := make([]gateway.Action, len(p.actions))
	copy(actions, p.actions)
	return Proposal{
		ID:           p.id,
		Proposer:     p.proposer,
		Title:        p.title,
		Description:  p.description,
		Category:     p.category,
		State:        p.state,
		CreatedAt:    p.createdAt,
		VotingEnd:    p.votingEnd,
		Actions:      actions,
		ForVotes:     p.forVotes,
		AgainstVotes: p.againstVotes,
		AbstainVotes: p.abstainVotes,
		Policy:       p.policy,
	}
}

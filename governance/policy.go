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
	"time"

	"github.com/magickw/linkdao/database/models"
)

const bpsDenominator = 10000

// Policy is the per-category parameter set governing proposal creation
// and resolution. Proposals snapshot the policy in force at creation and
// are immune to later policy changes.
type Policy struct {
	EffectiveAt time.Time
	// Quorum is the minimum total voting weight (for + against + abstain)
	// for a vote to be valid.
	Quorum uint64
	// ProposalThreshold is the minimum voting power required to create a
	// proposal in this category.
	ProposalThreshold uint64
	// ApprovalThreshold is the minimum for/(for+against) fraction in
	// basis points for a proposal to pass.
	ApprovalThreshold uint32
	VotingPeriod      time.Duration
	// RequiresCoAuth marks categories whose actions need a secondary
	// authorization at the execution gateway.
	RequiresCoAuth bool
}

// SetPolicy appends a new policy version for a category. Existing
// proposals keep the policy snapshot taken when they were created. Only
// configured admins may change policy.
func (e *Engine) SetPolicy(
	caller string,
	category Category,
	policy Policy,
) error {
	e.Lock()
	defer e.Unlock()
	if !e.admins[caller] {
		return ErrPermissionDenied
	}
	if policy.ApprovalThreshold > bpsDenominator {
		return ErrInvalidPolicy
	}
	if policy.VotingPeriod <= 0 {
		return ErrInvalidPolicy
	}
	policy.EffectiveAt = e.now()
	e.policies[category] = append(e.policies[category], policy)
	e.persistPolicy(category, policy)
	e.publish(
		PolicyEventType,
		PolicyEvent{
			Category: category,
			Policy:   policy,
		},
	)
	e.logger.Info(
		"governance policy updated",
		"component", "governance",
		"category", category.String(),
		"quorum", policy.Quorum,
		"approval_threshold_bps", policy.ApprovalThreshold,
	)
	return nil
}

// PolicyFor returns the policy currently in force for a category
func (e *Engine) PolicyFor(category Category) (Policy, error) {
	e.RLock()
	defer e.RUnlock()
	return e.policyFor(category)
}

func (e *Engine) policyFor(category Category) (Policy, error) {
	versions := e.policies[category]
	if len(versions) == 0 {
		return Policy{}, ErrNoPolicy
	}
	return versions[len(versions)-1], nil
}

// PolicyVersions returns all policy versions recorded for a category in
// order of adoption
func (e *Engine) PolicyVersions(category Category) []Policy {
	e.RLock()
	defer e.RUnlock()
	ret := make([]Policy, len(e.policies[category]))
	copy(ret, e.policies[category])
	return ret
}

func (e *Engine) persistPolicy(category Category, policy Policy) {
	if e.db == nil {
		return
	}
	err := e.db.AddCategoryPolicy(
		&models.CategoryPolicy{
			Category:             uint8(category),
			EffectiveAt:          policy.EffectiveAt.Unix(),
			Quorum:               policy.Quorum,
			ApprovalThresholdBps: policy.ApprovalThreshold,
			ProposalThreshold:    policy.ProposalThreshold,
			VotingPeriodSeconds:  uint64(policy.VotingPeriod / time.Second),
			RequiresCoAuth:       policy.RequiresCoAuth,
		},
	)
	if err != nil {
		e.logger.Error(
			"failed to persist category policy",
			"component", "governance",
			"category", category.String(),
			"error", err,
		)
	}
}

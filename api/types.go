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

package api

import "time"

type ErrorResponse struct {
	StatusCode int    `json:"status_code"`
	Error      string `json:"error"`
	Message    string `json:"message"`
}

type RootResponse struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type HealthResponse struct {
	IsHealthy bool `json:"is_healthy"`
}

type ProposalResponse struct {
	ID           uint64    `json:"id"`
	Proposer     string    `json:"proposer"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	Category     string    `json:"category"`
	State        string    `json:"state"`
	CreatedAt    time.Time `json:"created_at"`
	VotingEnd    time.Time `json:"voting_end"`
	ForVotes     uint64    `json:"for_votes"`
	AgainstVotes uint64    `json:"against_votes"`
	AbstainVotes uint64    `json:"abstain_votes"`
	ActionCount  int       `json:"action_count"`
	Quorum       uint64    `json:"quorum"`
	ApprovalBps  uint32    `json:"approval_threshold_bps"`
}

type TierResponse struct {
	ID          uint64 `json:"id"`
	LockSeconds uint64 `json:"lock_seconds"`
	RewardBps   uint32 `json:"reward_rate_bps"`
	MinStake    uint64 `json:"min_stake"`
	Active      bool   `json:"active"`
}

type PositionResponse struct {
	Index       int       `json:"index"`
	TierID      uint64    `json:"tier_id"`
	Principal   uint64    `json:"principal"`
	StartedAt   time.Time `json:"started_at"`
	LockSeconds uint64    `json:"lock_seconds"`
	RewardBps   uint32    `json:"reward_rate_bps"`
	Claimed     uint64    `json:"claimed"`
	Active      bool      `json:"active"`
}

type PowerResponse struct {
	Account string `json:"account"`
	Power   uint64 `json:"power"`
}

type AccountStatusResponse struct {
	Account     string `json:"account"`
	TotalStaked uint64 `json:"total_staked"`
	Premium     bool   `json:"premium"`
	DiscountBps uint32 `json:"discount_bps"`
	Accrued     uint64 `json:"accrued_rewards"`
}

type AuditEntryResponse struct {
	Seq         uint64    `json:"seq"`
	Time        time.Time `json:"time"`
	Kind        string    `json:"kind"`
	ProposalID  uint64    `json:"proposal_id,omitempty"`
	ActionIndex int       `json:"action_index,omitempty"`
	Target      string    `json:"target,omitempty"`
	Value       uint64    `json:"value,omitempty"`
	Success     bool      `json:"success,omitempty"`
	Detail      string    `json:"detail,omitempty"`
}

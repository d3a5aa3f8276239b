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
	"errors"
	"fmt"
)

var (
	// ErrProposalNotFound is returned for an unknown proposal id
	ErrProposalNotFound = errors.New("proposal not found")
	// ErrVoteNotFound is returned when a voter has no recorded vote on an
	// existing proposal
	ErrVoteNotFound = errors.New("vote not found")
	// ErrInsufficientPower is returned when the proposer's voting power is
	// below the category's proposal threshold
	ErrInsufficientPower = errors.New("insufficient voting power to propose")
	// ErrAlreadyVoted is returned when a voter already has a recorded
	// weight on the proposal
	ErrAlreadyVoted = errors.New("already voted on proposal")
	// ErrVotingClosed is returned when casting a vote outside the voting
	// window
	ErrVotingClosed = errors.New("voting closed")
	// ErrPermissionDenied is returned on role or proposer-only checks
	ErrPermissionDenied = errors.New("permission denied")
	// ErrNoPolicy is returned when a category has no configured policy
	ErrNoPolicy = errors.New("no policy configured for category")
	// ErrInvalidPolicy is returned when a policy update carries an
	// out-of-range threshold or a non-positive voting period
	ErrInvalidPolicy = errors.New("invalid policy parameters")
)

// InvalidStateError is returned when an operation is attempted outside the
// proposal state it is valid in.
type InvalidStateError struct {
	Op    string
	State ProposalState
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf(
		"invalid proposal state for %s: %s",
		e.Op,
		e.State,
	)
}

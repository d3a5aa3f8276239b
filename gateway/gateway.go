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

package gateway

import (
	"errors"
	"fmt"
)

// Action is a single execution step attached to a governance proposal. The
// governance engine dispatches actions to the gateway in list order once a
// proposal has passed.
type Action struct {
	Target  string
	Payload []byte
	Value   uint64
}

// Dispatch describes a dispatch request as seen by the gateway: the caller
// identity, the action itself, and whether the proposal's category requires
// multi-party co-authorization to have been collected out-of-band.
type Dispatch struct {
	Caller         string
	ProposalID     uint64
	ActionIndex    int
	Action         Action
	RequiresCoAuth bool
}

// ExecutionGateway is the treasury/multisig execution surface. The gateway
// enforces its own authorization rules: the caller must be the recognized
// governance engine, and co-authorization (where required) must already
// have been granted. The governance engine never implements those rules
// itself.
type ExecutionGateway interface {
	Dispatch(d Dispatch) error
}

var (
	// ErrUnrecognizedCaller is returned when the dispatch does not
	// originate from the recognized governance engine identity.
	ErrUnrecognizedCaller = errors.New("unrecognized caller")
	// ErrCoAuthRequired is returned when a gated dispatch arrives before
	// the multi-party co-authorization has been collected.
	ErrCoAuthRequired = errors.New("co-authorization not granted")
)

// DispatchError wraps a failed action dispatch with its position in the
// proposal's action list.
type DispatchError struct {
	ProposalID  uint64
	ActionIndex int
	Err         error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf(
		"dispatch failed: proposal=%d action=%d: %s",
		e.ProposalID,
		e.ActionIndex,
		e.Err,
	)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

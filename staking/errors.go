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
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidTier is returned when staking against an unknown or
	// deactivated tier
	ErrInvalidTier = errors.New("invalid or inactive staking tier")
	// ErrAmountTooLow is returned when the stake amount is below the
	// tier's minimum
	ErrAmountTooLow = errors.New("stake amount below tier minimum")
	// ErrTierNotFound is returned when updating an unknown tier
	ErrTierNotFound = errors.New("staking tier not found")
	// ErrPositionNotFound is returned for an unknown position index
	ErrPositionNotFound = errors.New("stake position not found")
	// ErrPositionInactive is returned when unstaking an already-closed
	// position
	ErrPositionInactive = errors.New("stake position already inactive")
	// ErrPermissionDenied is returned when a non-admin calls a tier
	// administration operation
	ErrPermissionDenied = errors.New("permission denied")
)

// StillLockedError is returned when unstaking before the position's lock
// duration has elapsed.
type StillLockedError struct {
	UnlocksAt time.Time
}

func (e *StillLockedError) Error() string {
	return fmt.Sprintf(
		"stake position still locked until %s",
		e.UnlocksAt.UTC().Format(time.RFC3339),
	)
}

// OnCooldownError is returned when claiming the activity reward before the
// cooldown window from the previous claim has elapsed.
type OnCooldownError struct {
	NextClaimAt time.Time
}

func (e *OnCooldownError) Error() string {
	return fmt.Sprintf(
		"activity reward on cooldown until %s",
		e.NextClaimAt.UTC().Format(time.RFC3339),
	)
}

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

package oracle

import "sync"

// ReputationOracle returns a non-negative reputation bonus for an account.
// The scoring algorithm lives outside this repository; the governance
// engine treats the oracle as opaque.
type ReputationOracle interface {
	Bonus(account string) uint64
}

// Static is a ReputationOracle backed by a fixed table. Accounts without an
// entry have a zero bonus.
type Static struct {
	bonuses map[string]uint64
	mutex   sync.RWMutex
}

func NewStatic() *Static {
	return &Static{
		bonuses: make(map[string]uint64),
	}
}

func (s *Static) SetBonus(account string, bonus uint64) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.bonuses[account] = bonus
}

func (s *Static) Bonus(account string) uint64 {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.bonuses[account]
}

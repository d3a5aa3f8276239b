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

package ledger

import "sync"

// Memory is an in-memory Ledger implementation. The node wires it in dev
// mode when no external ledger is configured, and tests use it as a
// deterministic stand-in for the real balance ledger.
type Memory struct {
	balances map[string]uint64
	mutex    sync.Mutex
}

func NewMemory() *Memory {
	return &Memory{
		balances: make(map[string]uint64),
	}
}

// SetBalance sets an account's balance directly. Used for seeding dev and
// test accounts.
func (m *Memory) SetBalance(account string, amount uint64) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.balances[account] = amount
}

func (m *Memory) Debit(account string, amount uint64) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	balance := m.balances[account]
	if balance < amount {
		return &InsufficientBalanceError{
			Account: account,
			Balance: balance,
			Amount:  amount,
		}
	}
	m.balances[account] = balance - amount
	return nil
}

func (m *Memory) Credit(account string, amount uint64) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.balances[account] += amount
	return nil
}

func (m *Memory) BalanceOf(account string) uint64 {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.balances[account]
}

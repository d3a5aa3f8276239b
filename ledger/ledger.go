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

import "fmt"

// Ledger is the external token balance ledger consumed by the staking and
// governance engines. The engines never manage balances themselves; they
// only debit and credit through this interface. Calls are synchronous and
// either fully succeed or fully fail.
type Ledger interface {
	// Debit removes amount from the account's spendable balance
	Debit(account string, amount uint64) error
	// Credit adds amount to the account's spendable balance
	Credit(account string, amount uint64) error
	// BalanceOf returns the account's current spendable balance
	BalanceOf(account string) uint64
}

// InsufficientBalanceError is returned by Debit when the account's spendable
// balance cannot cover the requested amount.
type InsufficientBalanceError struct {
	Account string
	Balance uint64
	Amount  uint64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf(
		"insufficient balance: account=%s balance=%d requested=%d",
		e.Account,
		e.Balance,
		e.Amount,
	)
}

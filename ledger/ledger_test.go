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

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryDebitCredit(t *testing.T) {
	l := NewMemory()
	l.SetBalance("alice", 1000)

	require.NoError(t, l.Debit("alice", 400))
	assert.Equal(t, uint64(600), l.BalanceOf("alice"))

	require.NoError(t, l.Credit("alice", 100))
	assert.Equal(t, uint64(700), l.BalanceOf("alice"))
}

func TestMemoryDebitInsufficient(t *testing.T) {
	l := NewMemory()
	l.SetBalance("bob", 50)

	err := l.Debit("bob", 51)
	require.Error(t, err)
	var insufficientErr *InsufficientBalanceError
	require.True(t, errors.As(err, &insufficientErr))
	assert.Equal(t, "bob", insufficientErr.Account)
	assert.Equal(t, uint64(50), insufficientErr.Balance)
	assert.Equal(t, uint64(51), insufficientErr.Amount)
	// Balance unchanged on failure
	assert.Equal(t, uint64(50), l.BalanceOf("bob"))
}

func TestMemoryUnknownAccount(t *testing.T) {
	l := NewMemory()
	assert.Equal(t, uint64(0), l.BalanceOf("nobody"))
	err := l.Debit("nobody", 1)
	require.Error(t, err)
	// Credit to an unknown account creates it
	require.NoError(t, l.Credit("nobody", 10))
	assert.Equal(t, uint64(10), l.BalanceOf("nobody"))
}

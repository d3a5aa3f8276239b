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
	"math/big"
	"time"
)

const (
	bpsDenominator = 10000
	secondsPerYear = 365 * 86400
)

// accrueReward computes the linear time-proportional reward for a principal
// at an annualized rate (basis points) over the interval [from, to]:
//
//	principal * rateBps / 10000 * elapsedSeconds / secondsPerYear
//
// The multiplication is done at full precision via math/big and the final
// result is floored, so rounding never exceeds the exact value. A position
// staked at rate R bps for exactly 365 days accrues exactly
// principal*R/10000 (ignoring sub-integer remainder).
func accrueReward(
	principal uint64,
	rateBps uint32,
	from time.Time,
	to time.Time,
) uint64 {
	if !to.After(from) {
		return 0
	}
	elapsed := to.Unix() - from.Unix()
	if elapsed <= 0 {
		return 0
	}
	num := new(big.Int).SetUint64(principal)
	num.Mul(num, new(big.Int).SetUint64(uint64(rateBps)))
	num.Mul(num, big.NewInt(elapsed))
	den := big.NewInt(bpsDenominator * secondsPerYear)
	num.Quo(num, den)
	if !num.IsUint64() {
		// Saturate rather than wrap on absurd inputs
		return ^uint64(0)
	}
	return num.Uint64()
}

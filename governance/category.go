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

import "fmt"

// Category classifies proposals. Each category carries its own policy
// versions, so treasury spends can demand a higher quorum than general
// signal proposals.
type Category uint8

const (
	CategoryGeneral Category = iota
	CategoryTreasury
	CategoryMultisig
	CategoryParameter
	CategoryGrants
)

func (c Category) String() string {
	switch c {
	case CategoryGeneral:
		return "general"
	case CategoryTreasury:
		return "treasury"
	case CategoryMultisig:
		return "multisig"
	case CategoryParameter:
		return "parameter"
	case CategoryGrants:
		return "grants"
	default:
		return "unknown"
	}
}

// ParseCategory maps a category name to its Category value
func ParseCategory(name string) (Category, error) {
	switch name {
	case "general":
		return CategoryGeneral, nil
	case "treasury":
		return CategoryTreasury, nil
	case "multisig":
		return CategoryMultisig, nil
	case "parameter":
		return CategoryParameter, nil
	case "grants":
		return CategoryGrants, nil
	default:
		return 0, fmt.Errorf("unknown proposal category: %s", name)
	}
}

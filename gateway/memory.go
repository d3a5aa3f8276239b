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

import "sync"

// Memory is an in-process ExecutionGateway used in dev mode and tests. It
// verifies the caller identity, enforces co-authorization grants, records
// every successful dispatch, and can be scripted to fail specific targets.
type Memory struct {
	recognizedCaller string
	coAuthGrants     map[uint64]bool
	failTargets      map[string]error
	dispatched       []Dispatch
	mutex            sync.Mutex
}

func NewMemory(recognizedCaller string) *Memory {
	return &Memory{
		recognizedCaller: recognizedCaller,
		coAuthGrants:     make(map[uint64]bool),
		failTargets:      make(map[string]error),
	}
}

// GrantCoAuth records that the multi-party co-authorization for a proposal
// has been collected out-of-band.
func (m *Memory) GrantCoAuth(proposalID uint64) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.coAuthGrants[proposalID] = true
}

// FailTarget scripts the gateway to fail any dispatch against the given
// target with the provided error.
func (m *Memory) FailTarget(target string, err error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if err == nil {
		delete(m.failTargets, target)
		return
	}
	m.failTargets[target] = err
}

func (m *Memory) Dispatch(d Dispatch) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if d.Caller != m.recognizedCaller {
		return ErrUnrecognizedCaller
	}
	if d.RequiresCoAuth && !m.coAuthGrants[d.ProposalID] {
		return ErrCoAuthRequired
	}
	if err, ok := m.failTargets[d.Action.Target]; ok {
		return err
	}
	m.dispatched = append(m.dispatched, d)
	return nil
}

// Dispatched returns a copy of all successful dispatches in order.
func (m *Memory) Dispatched() []Dispatch {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	ret := make([]Dispatch, len(m.dispatched))
	copy(ret, m.dispatched)
	return ret
}

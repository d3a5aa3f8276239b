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
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/magickw/linkdao/database"
	"github.com/magickw/linkdao/database/models"
	"github.com/magickw/linkdao/event"
	"github.com/magickw/linkdao/gateway"
	"github.com/magickw/linkdao/ledger"
	"github.com/magickw/linkdao/oracle"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	ProposalEventType  event.EventType = "governance.proposal"
	VoteEventType      event.EventType = "governance.vote"
	StateEventType     event.EventType = "governance.state"
	ExecutionEventType event.EventType = "governance.execution"
	PolicyEventType    event.EventType = "governance.policy"
)

type ProposalEvent struct {
	ProposalID uint64
	Proposer   string
	Category   Category
	Title      string
}

type VoteEvent struct {
	ProposalID uint64
	Voter      string
	Choice     VoteChoice
	Weight     uint64
}

type StateEvent struct {
	ProposalID uint64
	OldState   ProposalState
	NewState   ProposalState
}

type ExecutionEvent struct {
	ProposalID  uint64
	ActionIndex int
	Target      string
	Value       uint64
	Success     bool
}

type PolicyEvent struct {
	Category Category
	Policy   Policy
}

// StakeProvider supplies the staking-derived component of an account's
// voting power.
type StakeProvider interface {
	VotingContribution(account string) uint64
}

type EngineConfig struct {
	PromRegistry prometheus.Registerer
	Logger       *slog.Logger
	EventBus     *event.EventBus
	Ledger       ledger.Ledger
	Oracle       oracle.ReputationOracle
	Staking      StakeProvider
	Gateway      gateway.ExecutionGateway
	Database     *database.Database
	Admins       []string
	// CallerIdentity is the identity presented to the execution gateway
	// on action dispatch
	CallerIdentity string
	// GracePeriod bounds how long a passed proposal with actions may sit
	// unexecuted after its voting window closes. Zero disables expiry.
	GracePeriod time.Duration
	// NowFunc overrides the time source. Used by tests; defaults to
	// time.Now
	NowFunc func() time.Time
}

// Engine owns the proposal registry and the per-category policy table.
// Proposal state is evaluated lazily: time-driven transitions (tally
// resolution, grace expiry) are applied on the first query or operation
// that observes the proposal after the deadline has passed.
type Engine struct {
	config  EngineConfig
	metrics struct {
		proposalsCreated  prometheus.Counter
		activeProposals   prometheus.Gauge
		votesCast         prometheus.Counter
		actionsDispatched prometheus.Counter
	}
	logger         *slog.Logger
	eventBus       *event.EventBus
	ledger         ledger.Ledger
	db             *database.Database
	now            func() time.Time
	admins         map[string]bool
	policies       map[Category][]Policy
	proposals      map[uint64]*proposal
	nextProposalID uint64
	sync.RWMutex
}

// NewEngine creates a governance engine and, when a database is configured,
// reloads policies, proposals, and votes from it.
func NewEngine(config EngineConfig) (*Engine, error) {
	if config.Ledger == nil {
		return nil, fmt.Errorf("no ledger provided")
	}
	e := &Engine{
		config:         config,
		eventBus:       config.EventBus,
		ledger:         config.Ledger,
		db:             config.Database,
		admins:         make(map[string]bool),
		policies:       make(map[Category][]Policy),
		proposals:      make(map[uint64]*proposal),
		nextProposalID: 1,
		now:            config.NowFunc,
	}
	if config.Logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		e.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	} else {
		e.logger = config.Logger
	}
	if e.now == nil {
		e.now = time.Now
	}
	for _, admin := range config.Admins {
		e.admins[admin] = true
	}
	// Init metrics
	promautoFactory := promauto.With(config.PromRegistry)
	e.metrics.proposalsCreated = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "linkdao_governance_proposals_created_total",
		Help: "total governance proposals created",
	})
	e.metrics.activeProposals = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "linkdao_governance_active_proposals",
		Help: "current count of proposals in their voting window",
	})
	e.metrics.votesCast = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "linkdao_governance_votes_cast_total",
		Help: "total governance votes cast",
	})
	e.metrics.actionsDispatched = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "linkdao_governance_actions_dispatched_total",
		Help: "total proposal actions dispatched to the execution gateway",
	})
	if e.db != nil {
		if err := e.load(); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// load rebuilds the in-memory registries from the database
func (e *Engine) load() error {
	policies, err := e.db.GetCategoryPolicies()
	if err != nil {
		return err
	}
	for _, p := range policies {
		category := Category(p.Category)
		e.policies[category] = append(
			e.policies[category],
			Policy{
				Quorum:            p.Quorum,
				ProposalThreshold: p.ProposalThreshold,
				ApprovalThreshold: p.ApprovalThresholdBps,
				VotingPeriod: time.Duration(p.VotingPeriodSeconds) *
					time.Second,
				RequiresCoAuth: p.RequiresCoAuth,
				EffectiveAt:    time.Unix(p.EffectiveAt, 0),
			},
		)
	}
	proposals, err := e.db.GetProposals()
	if err != nil {
		return err
	}
	for _, dbProposal := range proposals {
		actions, err := e.db.GetProposalActions(dbProposal.ID)
		if err != nil {
			return err
		}
		p := &proposal{
			id:           dbProposal.ID,
			proposer:     dbProposal.Proposer,
			title:        dbProposal.Title,
			description:  dbProposal.Description,
			category:     Category(dbProposal.Category),
			state:        ProposalState(dbProposal.State),
			createdAt:    time.Unix(dbProposal.CreatedAt, 0),
			votingEnd:    time.Unix(dbProposal.VotingEnd, 0),
			votes:        make(map[string]VoteRecord),
			forVotes:     dbProposal.ForVotes,
			againstVotes: dbProposal.AgainstVotes,
			abstainVotes: dbProposal.AbstainVotes,
			dispatched:   dbProposal.DispatchedActions,
			policy: Policy{
				Quorum:            dbProposal.Quorum,
				ApprovalThreshold: dbProposal.ApprovalThresholdBps,
				RequiresCoAuth:    dbProposal.RequiresCoAuth,
			},
		}
		if dbProposal.QueuedAt > 0 {
			p.queuedAt = time.Unix(dbProposal.QueuedAt, 0)
		}
		if dbProposal.ExecutedAt > 0 {
			p.executedAt = time.Unix(dbProposal.ExecutedAt, 0)
		}
		for _, a := range actions {
			p.actions = append(
				p.actions,
				gateway.Action{
					Target:  a.Target,
					Value:   a.Value,
					Payload: a.Payload,
				},
			)
		}
		e.proposals[p.id] = p
		if p.id >= e.nextProposalID {
			e.nextProposalID = p.id + 1
		}
		if p.state == StateActive {
			e.metrics.activeProposals.Inc()
		}
	}
	votes, err := e.db.GetAllGovernanceVotes()
	if err != nil {
		return err
	}
	for _, v := range votes {
		p, ok := e.proposals[v.ProposalID]
		if !ok {
			continue
		}
		p.votes[v.Voter] = VoteRecord{
			Choice: VoteChoice(v.Choice),
			Weight: v.Weight,
			CastAt: time.Unix(v.CastAt, 0),
		}
	}
	e.logger.Info(
		"loaded governance state",
		"component", "governance",
		"policies", len(policies),
		"proposals", len(proposals),
	)
	return nil
}

// VotingPower returns the account's current voting power: the spendable
// ledger balance, plus the staking engine's contribution (staked principal
// at double weight), plus the reputation oracle's bonus.
func (e *Engine) VotingPower(account string) uint64 {
	power := e.ledger.BalanceOf(account)
	if e.config.Staking != nil {
		power += e.config.Staking.VotingContribution(account)
	}
	if e.config.Oracle != nil {
		power += e.config.Oracle.Bonus(account)
	}
	return power
}

// Propose creates a proposal in the given category. The proposer's voting
// power must meet the category's proposal threshold; the category policy is
// snapshotted onto the proposal and the voting window opens immediately.
// The sequential id counter only advances on success.
func (e *Engine) Propose(
	proposer string,
	title string,
	description string,
	category Category,
	actions []gateway.Action,
) (uint64, error) {
	e.Lock()
	defer e.Unlock()
	policy, err := e.policyFor(category)
	if err != nil {
		return 0, err
	}
	if e.VotingPower(proposer) < policy.ProposalThreshold {
		return 0, ErrInsufficientPower
	}
	now := e.now()
	p := &proposal{
		id:          e.nextProposalID,
		proposer:    proposer,
		title:       title,
		description: description,
		category:    category,
		state:       StateActive,
		createdAt:   now,
		votingEnd:   now.Add(policy.VotingPeriod),
		actions:     make([]gateway.Action, len(actions)),
		votes:       make(map[string]VoteRecord),
		policy:      policy,
	}
	copy(p.actions, actions)
	e.nextProposalID++
	e.proposals[p.id] = p
	e.metrics.proposalsCreated.Inc()
	e.metrics.activeProposals.Inc()
	e.persistProposal(p)
	e.persistActions(p)
	e.publish(
		ProposalEventType,
		ProposalEvent{
			ProposalID: p.id,
			Proposer:   proposer,
			Category:   category,
			Title:      title,
		},
	)
	e.logger.Info(
		"proposal created",
		"component", "governance",
		"proposal_id", p.id,
		"proposer", proposer,
		"category", category.String(),
		"actions", len(p.actions),
	)
	return p.id, nil
}

// CastVote records a vote on an active proposal. The voter's power is
// captured at the moment of voting and never re-evaluated.
func (e *Engine) CastVote(
	voter string,
	proposalID uint64,
	choice VoteChoice,
) error {
	e.Lock()
	defer e.Unlock()
	p, ok := e.proposals[proposalID]
	if !ok {
		return ErrProposalNotFound
	}
	e.refreshState(p)
	if p.state != StateActive {
		return ErrVotingClosed
	}
	if _, voted := p.votes[voter]; voted {
		return ErrAlreadyVoted
	}
	now := e.now()
	weight := e.VotingPower(voter)
	record := VoteRecord{
		Choice: choice,
		Weight: weight,
		CastAt: now,
	}
	p.votes[voter] = record
	switch choice {
	case VoteFor:
		p.forVotes += weight
	case VoteAgainst:
		p.againstVotes += weight
	case VoteAbstain:
		p.abstainVotes += weight
	}
	e.metrics.votesCast.Inc()
	e.persistProposal(p)
	e.persistVote(p.id, voter, record)
	e.publish(
		VoteEventType,
		VoteEvent{
			ProposalID: p.id,
			Voter:      voter,
			Choice:     choice,
			Weight:     weight,
		},
	)
	return nil
}

// Finalize resolves a proposal's tallies after its voting window has
// closed, returning the resulting state. Finalization is idempotent; the
// same transitions also happen lazily on the first query after the window.
func (e *Engine) Finalize(proposalID uint64) (ProposalState, error) {
	e.Lock()
	defer e.Unlock()
	p, ok := e.proposals[proposalID]
	if !ok {
		return 0, ErrProposalNotFound
	}
	if p.state == StateActive && e.now().Before(p.votingEnd) {
		return 0, &InvalidStateError{Op: "finalize", State: p.state}
	}
	e.refreshState(p)
	return p.state, nil
}

// Queue moves a succeeded proposal with actions into the execution queue
func (e *Engine) Queue(proposalID uint64) error {
	e.Lock()
	defer e.Unlock()
	p, ok := e.proposals[proposalID]
	if !ok {
		return ErrProposalNotFound
	}
	e.refreshState(p)
	if p.state != StateSucceeded {
		return &InvalidStateError{Op: "queue", State: p.state}
	}
	if len(p.actions) == 0 {
		// Signal-only proposals have nothing to execute
		return &InvalidStateError{Op: "queue", State: p.state}
	}
	e.setState(p, StateQueued)
	p.queuedAt = e.now()
	e.persistProposal(p)
	return nil
}

// Execute dispatches a queued proposal's actions to the execution gateway
// in list order. A failed dispatch aborts the remaining actions and leaves
// the proposal queued; a retry resumes from the first undispatched action,
// since earlier side effects already occurred outside this engine.
func (e *Engine) Execute(proposalID uint64) error {
	e.Lock()
	defer e.Unlock()
	p, ok := e.proposals[proposalID]
	if !ok {
		return ErrProposalNotFound
	}
	e.refreshState(p)
	if p.state != StateQueued {
		return &InvalidStateError{Op: "execute", State: p.state}
	}
	if e.config.Gateway == nil {
		return fmt.Errorf("no execution gateway configured")
	}
	for i := p.dispatched; i < len(p.actions); i++ {
		action := p.actions[i]
		err := e.config.Gateway.Dispatch(
			gateway.Dispatch{
				Caller:         e.config.CallerIdentity,
				ProposalID:     p.id,
				ActionIndex:    i,
				Action:         action,
				RequiresCoAuth: p.policy.RequiresCoAuth,
			},
		)
		e.publish(
			ExecutionEventType,
			ExecutionEvent{
				ProposalID:  p.id,
				ActionIndex: i,
				Target:      action.Target,
				Value:       action.Value,
				Success:     err == nil,
			},
		)
		if err != nil {
			e.persistProposal(p)
			e.logger.Error(
				"proposal action dispatch failed",
				"component", "governance",
				"proposal_id", p.id,
				"action_index", i,
				"error", err,
			)
			return &gateway.DispatchError{
				ProposalID:  p.id,
				ActionIndex: i,
				Err:         err,
			}
		}
		p.dispatched = i + 1
		e.metrics.actionsDispatched.Inc()
	}
	e.setState(p, StateExecuted)
	p.executedAt = e.now()
	e.persistProposal(p)
	e.logger.Info(
		"proposal executed",
		"component", "governance",
		"proposal_id", p.id,
		"actions", len(p.actions),
	)
	return nil
}

// Cancel cancels a proposal before its vote resolves. Only the proposer or
// a configured admin may cancel, and only from the pending or active
// states. Cancellation is irreversible.
func (e *Engine) Cancel(caller string, proposalID uint64) error {
	e.Lock()
	defer e.Unlock()
	p, ok := e.proposals[proposalID]
	if !ok {
		return ErrProposalNotFound
	}
	if caller != p.proposer && !e.admins[caller] {
		return ErrPermissionDenied
	}
	e.refreshState(p)
	if p.state != StatePending && p.state != StateActive {
		return &InvalidStateError{Op: "cancel", State: p.state}
	}
	if p.state == StateActive {
		e.metrics.activeProposals.Dec()
	}
	e.setState(p, StateCancelled)
	e.persistProposal(p)
	return nil
}

// Proposal returns a snapshot of one proposal, applying any pending
// time-driven state transition first.
func (e *Engine) Proposal(proposalID uint64) (Proposal, error) {
	e.Lock()
	defer e.Unlock()
	p, ok := e.proposals[proposalID]
	if !ok {
		return Proposal{}, ErrProposalNotFound
	}
	e.refreshState(p)
	return p.snapshot(), nil
}

// Proposals returns snapshots of all proposals ordered by id
func (e *Engine) Proposals() []Proposal {
	e.Lock()
	defer e.Unlock()
	ret := make([]Proposal, 0, len(e.proposals))
	for id := uint64(1); id < e.nextProposalID; id++ {
		p, ok := e.proposals[id]
		if !ok {
			continue
		}
		e.refreshState(p)
		ret = append(ret, p.snapshot())
	}
	return ret
}

// Vote returns the recorded vote of a voter on a proposal
func (e *Engine) Vote(proposalID uint64, voter string) (VoteRecord, error) {
	e.RLock()
	defer e.RUnlock()
	p, ok := e.proposals[proposalID]
	if !ok {
		return VoteRecord{}, ErrProposalNotFound
	}
	record, voted := p.votes[voter]
	if !voted {
		return VoteRecord{}, ErrVoteNotFound
	}
	return record, nil
}

// refreshState applies time-driven transitions: tally resolution once the
// voting window closes, then grace expiry for passed proposals whose
// actions were never executed. Must be called with the write lock held.
func (e *Engine) refreshState(p *proposal) {
	now := e.now()
	if p.state == StateActive && !now.Before(p.votingEnd) {
		e.metrics.activeProposals.Dec()
		if p.passed() {
			e.setState(p, StateSucceeded)
		} else {
			e.setState(p, StateDefeated)
		}
		e.persistProposal(p)
	}
	if e.config.GracePeriod <= 0 {
		return
	}
	// Signal-only proposals have no execution deadline
	if len(p.actions) == 0 {
		return
	}
	if p.state == StateSucceeded || p.state == StateQueued {
		deadline := p.votingEnd.Add(e.config.GracePeriod)
		if !now.Before(deadline) {
			e.setState(p, StateExpired)
			e.persistProposal(p)
		}
	}
}

// setState records a state transition and publishes it
func (e *Engine) setState(p *proposal, newState ProposalState) {
	oldState := p.state
	p.state = newState
	e.publish(
		StateEventType,
		StateEvent{
			ProposalID: p.id,
			OldState:   oldState,
			NewState:   newState,
		},
	)
	e.logger.Debug(
		"proposal state transition",
		"component", "governance",
		"proposal_id", p.id,
		"old_state", oldState.String(),
		"new_state", newState.String(),
	)
}

func (e *Engine) persistProposal(p *proposal) {
	if e.db == nil {
		return
	}
	record := &models.Proposal{
		ID:                   p.id,
		Proposer:             p.proposer,
		Title:                p.title,
		Description:          p.description,
		Category:             uint8(p.category),
		State:                uint8(p.state),
		CreatedAt:            p.createdAt.Unix(),
		VotingEnd:            p.votingEnd.Unix(),
		ForVotes:             p.forVotes,
		AgainstVotes:         p.againstVotes,
		AbstainVotes:         p.abstainVotes,
		DispatchedActions:    p.dispatched,
		Quorum:               p.policy.Quorum,
		ApprovalThresholdBps: p.policy.ApprovalThreshold,
		RequiresCoAuth:       p.policy.RequiresCoAuth,
	}
	if !p.queuedAt.IsZero() {
		record.QueuedAt = p.queuedAt.Unix()
	}
	if !p.executedAt.IsZero() {
		record.ExecutedAt = p.executedAt.Unix()
	}
	if err := e.db.SetProposal(record); err != nil {
		e.logger.Error(
			"failed to persist proposal",
			"component", "governance",
			"proposal_id", p.id,
			"error", err,
		)
	}
}

func (e *Engine) persistActions(p *proposal) {
	if e.db == nil {
		return
	}
	actions := make([]*models.ProposalAction, 0, len(p.actions))
	for i, a := range p.actions {
		actions = append(
			actions,
			&models.ProposalAction{
				ProposalID: p.id,
				Index:      i,
				Target:     a.Target,
				Value:      a.Value,
				Payload:    a.Payload,
			},
		)
	}
	if err := e.db.AddProposalActions(actions); err != nil {
		e.logger.Error(
			"failed to persist proposal actions",
			"component", "governance",
			"proposal_id", p.id,
			"error", err,
		)
	}
}

func (e *Engine) persistVote(
	proposalID uint64,
	voter string,
	record VoteRecord,
) {
	if e.db == nil {
		return
	}
	err := e.db.AddGovernanceVote(
		&models.GovernanceVote{
			ProposalID: proposalID,
			Voter:      voter,
			Choice:     uint8(record.Choice),
			Weight:     record.Weight,
			CastAt:     record.CastAt.Unix(),
		},
	)
	if err != nil {
		e.logger.Error(
			"failed to persist governance vote",
			"component", "governance",
			"proposal_id", proposalID,
			"voter", voter,
			"error", err,
		)
	}
}

func (e *Engine) publish(eventType event.EventType, data any) {
	if e.eventBus == nil {
		return
	}
	e.eventBus.Publish(eventType, event.NewEvent(eventType, data))
}

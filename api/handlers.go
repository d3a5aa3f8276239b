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

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/magickw/linkdao/governance"
)

const apiVersion = "0.1.0"

// writeJSON writes a JSON response with the given status code.
func writeJSON(
	w http.ResponseWriter,
	status int,
	v any,
) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck,errchkjson
	json.NewEncoder(w).Encode(v)
}

func writeError(
	w http.ResponseWriter,
	status int,
	errStr string,
	message string,
) {
	writeJSON(w, status, ErrorResponse{
		StatusCode: status,
		Error:      errStr,
		Message:    message,
	})
}

func proposalResponse(p governance.Proposal) ProposalResponse {
	return ProposalResponse{
		ID:           p.ID,
		Proposer:     p.Proposer,
		Title:        p.Title,
		Description:  p.Description,
		Category:     p.Category.String(),
		State:        p.State.String(),
		CreatedAt:    p.CreatedAt,
		VotingEnd:    p.VotingEnd,
		ForVotes:     p.ForVotes,
		AgainstVotes: p.AgainstVotes,
		AbstainVotes: p.AbstainVotes,
		ActionCount:  len(p.Actions),
		Quorum:       p.Policy.Quorum,
		ApprovalBps:  p.Policy.ApprovalThreshold,
	}
}

// handleRoot handles GET / and returns API metadata.
func (a *Api) handleRoot(
	w http.ResponseWriter,
	_ *http.Request,
) {
	writeJSON(w, http.StatusOK, RootResponse{
		Name:    "linkdao",
		Version: apiVersion,
	})
}

// handleHealth handles GET /health.
func (a *Api) handleHealth(
	w http.ResponseWriter,
	_ *http.Request,
) {
	writeJSON(w, http.StatusOK, HealthResponse{
		IsHealthy: true,
	})
}

// handleProposals handles GET /api/v1/proposals.
func (a *Api) handleProposals(
	w http.ResponseWriter,
	_ *http.Request,
) {
	proposals := a.config.Governance.Proposals()
	ret := make([]ProposalResponse, 0, len(proposals))
	for _, p := range proposals {
		ret = append(ret, proposalResponse(p))
	}
	writeJSON(w, http.StatusOK, ret)
}

// handleProposal handles GET /api/v1/proposals/{id}.
func (a *Api) handleProposal(
	w http.ResponseWriter,
	r *http.Request,
) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(
			w,
			http.StatusBadRequest,
			"Bad Request",
			"invalid proposal id",
		)
		return
	}
	p, err := a.config.Governance.Proposal(id)
	if err != nil {
		if errors.Is(err, governance.ErrProposalNotFound) {
			writeError(
				w,
				http.StatusNotFound,
				"Not Found",
				"unknown proposal",
			)
			return
		}
		a.logger.Error(
			"failed to get proposal",
			"error", err,
		)
		writeError(
			w,
			http.StatusInternalServerError,
			"Internal Server Error",
			"failed to retrieve proposal",
		)
		return
	}
	writeJSON(w, http.StatusOK, proposalResponse(p))
}

// handleTiers handles GET /api/v1/tiers.
func (a *Api) handleTiers(
	w http.ResponseWriter,
	_ *http.Request,
) {
	tiers := a.config.Staking.Tiers()
	ret := make([]TierResponse, 0, len(tiers))
	for _, tier := range tiers {
		ret = append(ret, TierResponse{
			ID:          tier.ID,
			LockSeconds: uint64(tier.LockDuration / time.Second),
			RewardBps:   tier.RewardRate,
			MinStake:    tier.MinStake,
			Active:      tier.Active,
		})
	}
	writeJSON(w, http.StatusOK, ret)
}

// handleAccountPower handles GET /api/v1/accounts/{account}/power.
func (a *Api) handleAccountPower(
	w http.ResponseWriter,
	r *http.Request,
) {
	account := r.PathValue("account")
	writeJSON(w, http.StatusOK, PowerResponse{
		Account: account,
		Power:   a.config.Governance.VotingPower(account),
	})
}

// handleAccountPositions handles
// GET /api/v1/accounts/{account}/positions.
func (a *Api) handleAccountPositions(
	w http.ResponseWriter,
	r *http.Request,
) {
	account := r.PathValue("account")
	positions := a.config.Staking.Positions(account)
	ret := make([]PositionResponse, 0, len(positions))
	for _, p := range positions {
		ret = append(ret, PositionResponse{
			Index:       p.Index,
			TierID:      p.TierID,
			Principal:   p.Principal,
			StartedAt:   p.StartedAt,
			LockSeconds: uint64(p.LockDuration / time.Second),
			RewardBps:   p.RewardRate,
			Claimed:     p.Claimed,
			Active:      p.Active,
		})
	}
	writeJSON(w, http.StatusOK, ret)
}

// handleAccountStatus handles GET /api/v1/accounts/{account}/status.
func (a *Api) handleAccountStatus(
	w http.ResponseWriter,
	r *http.Request,
) {
	account := r.PathValue("account")
	resp := AccountStatusResponse{
		Account:     account,
		TotalStaked: a.config.Staking.TotalStaked(account),
		Premium:     a.config.Staking.HasPremiumStatus(account),
		Accrued:     a.config.Staking.AccruedRewards(account),
	}
	if discount, ok := a.config.Staking.DiscountTier(account); ok {
		resp.DiscountBps = discount.DiscountBps
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleAudit handles GET /api/v1/audit with optional from and limit
// query parameters.
func (a *Api) handleAudit(
	w http.ResponseWriter,
	r *http.Request,
) {
	if a.config.Audit == nil {
		writeError(
			w,
			http.StatusNotFound,
			"Not Found",
			"audit log not enabled",
		)
		return
	}
	var fromSeq uint64
	limit := 100
	if from := r.URL.Query().Get("from"); from != "" {
		parsed, err := strconv.ParseUint(from, 10, 64)
		if err != nil {
			writeError(
				w,
				http.StatusBadRequest,
				"Bad Request",
				"invalid from sequence",
			)
			return
		}
		fromSeq = parsed
	}
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 {
			writeError(
				w,
				http.StatusBadRequest,
				"Bad Request",
				"invalid limit",
			)
			return
		}
		limit = parsed
	}
	entries, err := a.config.Audit.Entries(fromSeq, limit)
	if err != nil {
		a.logger.Error(
			"failed to read audit log",
			"error", err,
		)
		writeError(
			w,
			http.StatusInternalServerError,
			"Internal Server Error",
			"failed to read audit log",
		)
		return
	}
	ret := make([]AuditEntryResponse, 0, len(entries))
	for _, entry := range entries {
		ret = append(ret, AuditEntryResponse{
			Seq:         entry.Seq,
			Time:        entry.Time,
			Kind:        entry.Kind,
			ProposalID:  entry.ProposalID,
			ActionIndex: entry.ActionIndex,
			Target:      entry.Target,
			Value:       entry.Value,
			Success:     entry.Success,
			Detail:      entry.Detail,
		})
	}
	writeJSON(w, http.StatusOK, ret)
}

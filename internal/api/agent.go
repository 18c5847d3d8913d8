package api

import (
	"net/http"

	"snapkart-be/internal/apperr"
	"snapkart-be/internal/auth"
	"snapkart-be/internal/dispatch"
	"snapkart-be/internal/pricing"
	"snapkart-be/internal/transport"
)

type locationRequest struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

type availabilityRequest struct {
	Available *bool `json:"available"`
}

func (h *Handler) UpdateAgentLocation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	agentID, err := transport.PathID(r, "id")
	if err != nil {
		transport.WriteError(ctx, w, err)
		return
	}
	if err := agentSelf(ctx, agentID); err != nil {
		transport.WriteError(ctx, w, err)
		return
	}

	var req locationRequest
	if err := transport.DecodeJSON(r, &req); err != nil {
		transport.WriteError(ctx, w, err)
		return
	}
	if req.Lat == nil || req.Lng == nil {
		transport.WriteError(ctx, w, apperr.Validation("lat and lng are required"))
		return
	}

	if err := h.Agents.UpdateLocation(ctx, agentID, *req.Lat, *req.Lng); err != nil {
		transport.WriteError(ctx, w, err)
		return
	}
	transport.WriteJSON(w, http.StatusNoContent, nil)
}

func (h *Handler) GetAgentLocation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	agentID, err := transport.PathID(r, "id")
	if err != nil {
		transport.WriteError(ctx, w, err)
		return
	}
	if err := agentSelf(ctx, agentID); err != nil {
		transport.WriteError(ctx, w, err)
		return
	}

	loc, err := h.Agents.GetLocation(ctx, agentID)
	if err != nil {
		transport.WriteError(ctx, w, err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, loc)
}

func (h *Handler) SetAgentAvailability(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	agentID, err := transport.PathID(r, "id")
	if err != nil {
		transport.WriteError(ctx, w, err)
		return
	}
	if err := agentSelf(ctx, agentID); err != nil {
		transport.WriteError(ctx, w, err)
		return
	}

	var req availabilityRequest
	if err := transport.DecodeJSON(r, &req); err != nil {
		transport.WriteError(ctx, w, err)
		return
	}
	if req.Available == nil {
		transport.WriteError(ctx, w, apperr.Validation("available is required"))
		return
	}

	if err := h.Agents.SetAvailability(ctx, agentID, *req.Available); err != nil {
		transport.WriteError(ctx, w, err)
		return
	}
	transport.WriteJSON(w, http.StatusNoContent, nil)
}

func (h *Handler) GetAgentLoad(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	agentID, err := transport.PathID(r, "id")
	if err != nil {
		transport.WriteError(ctx, w, err)
		return
	}
	if err := agentSelf(ctx, agentID); err != nil {
		transport.WriteError(ctx, w, err)
		return
	}

	load, err := h.Agents.Load(ctx, agentID)
	if err != nil {
		transport.WriteError(ctx, w, err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, load)
}

func (h *Handler) RegisterAgent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if _, err := auth.Require(ctx, auth.RoleAdmin); err != nil {
		transport.WriteError(ctx, w, err)
		return
	}

	var a dispatch.Agent
	if err := transport.DecodeJSON(r, &a); err != nil {
		transport.WriteError(ctx, w, err)
		return
	}
	if err := h.Agents.Register(ctx, &a); err != nil {
		transport.WriteError(ctx, w, err)
		return
	}
	transport.WriteJSON(w, http.StatusCreated, a)
}

func (h *Handler) CreatePricingRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if _, err := auth.Require(ctx, auth.RoleAdmin); err != nil {
		transport.WriteError(ctx, w, err)
		return
	}

	var rule pricing.Rule
	if err := transport.DecodeJSON(r, &rule); err != nil {
		transport.WriteError(ctx, w, err)
		return
	}
	if err := h.Pricing.CreateRule(ctx, &rule); err != nil {
		transport.WriteError(ctx, w, err)
		return
	}
	transport.WriteJSON(w, http.StatusCreated, rule)
}

func (h *Handler) DeactivatePricingRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if _, err := auth.Require(ctx, auth.RoleAdmin); err != nil {
		transport.WriteError(ctx, w, err)
		return
	}
	ruleID, err := transport.PathID(r, "id")
	if err != nil {
		transport.WriteError(ctx, w, err)
		return
	}

	if err := h.Pricing.DeactivateRule(ctx, ruleID); err != nil {
		transport.WriteError(ctx, w, err)
		return
	}
	transport.WriteJSON(w, http.StatusNoContent, nil)
}

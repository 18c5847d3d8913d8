package dispatch

import "snapkart-be/internal/apperr"

var (
	ErrNoCapacity        = apperr.New(apperr.KindNoCapacity, "no delivery agent available with free capacity")
	ErrAgentNotFound     = apperr.NotFound("delivery agent not found")
	ErrLocationUnknown   = apperr.NotFound("delivery agent has not reported a location")
	ErrInvalidCapacity   = apperr.Validation("max active orders must be at least one")
	ErrInvalidCommission = apperr.Validation("commission must be FLAT or PERCENTAGE with a non-negative value")
	ErrMissingAgentName  = apperr.Validation("agent name and phone are required")
)

// Package transport holds the HTTP request and response helpers shared by
// the API handlers and the webhook endpoint.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"snapkart-be/internal/apperr"
	"snapkart-be/internal/logger"

	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

type ErrorBody struct {
	Kind    apperr.Kind `json:"kind"`
	Message string      `json:"message"`
}

type errorEnvelope struct {
	Error ErrorBody `json:"error"`
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindNoCapacity:
		return http.StatusServiceUnavailable
	case apperr.KindInvalidSignature:
		return http.StatusUnauthorized
	case apperr.KindExternalService:
		return http.StatusBadGateway
	case apperr.KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes err as {"error":{"kind","message"}}. Internal errors are
// logged with their cause and answered with a generic message.
func WriteError(ctx context.Context, w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	status := StatusFor(kind)

	log := logger.FromCtx(ctx)
	if status >= http.StatusInternalServerError && kind != apperr.KindNoCapacity {
		log.Error("request failed", zap.String("kind", string(kind)), zap.Error(err))
	} else {
		log.Info("request rejected", zap.String("kind", string(kind)), zap.String("reason", err.Error()))
	}

	WriteJSON(w, status, errorEnvelope{Error: ErrorBody{Kind: kind, Message: apperr.Message(err)}})
}

// DecodeJSON reads a single JSON object from the request body into v.
// Unknown fields and trailing data are rejected.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Validation("request body is empty")
		}
		return apperr.Wrap(apperr.KindValidation, "invalid request body", err)
	}
	if dec.More() {
		return apperr.Validation("request body must contain a single JSON object")
	}
	return nil
}

// PathID parses a positive int64 path value.
func PathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validationf("invalid %s", name)
	}
	return id, nil
}

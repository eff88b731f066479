// ICSWatch - ICS Network Traffic Replay and Threat Classification
// Copyright 2026 ICSWatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/icswatch/icswatch

package api

import (
	"net/http"
	"strconv"

	"github.com/icswatch/icswatch/internal/validation"
)

// SpeedRequest is the body for POST /replay/speed. The controller clamps
// the value to its supported range, so validation only rejects values that
// cannot be clamped meaningfully.
type SpeedRequest struct {
	Speed float64 `json:"speed" validate:"required,gt=0,lte=1000"`
}

// RandomModeRequest is the body for POST /replay/random-mode.
type RandomModeRequest struct {
	Enabled bool `json:"enabled"`
}

// LoginRequest is the body for POST /auth/login.
type LoginRequest struct {
	Username string `json:"username" validate:"required,min=1"`
	Password string `json:"password" validate:"required,min=1"`
}

// ClassificationsRequest holds validated query parameters for
// GET /classifications.
type ClassificationsRequest struct {
	Limit int `validate:"min=0,max=1000"`
}

// TimelineRequest holds validated query parameters for GET /timeline.
type TimelineRequest struct {
	Minutes int `validate:"min=1,max=10080"`
}

// validateRequest validates a struct with go-playground/validator.
// Returns nil when validation passes.
func validateRequest(v interface{}) *APIError {
	validationErr := validation.ValidateStruct(v)
	if validationErr == nil {
		return nil
	}

	apiErr := validationErr.ToAPIError()
	return &APIError{
		Code:    ErrCodeValidationFailed,
		Message: apiErr.Message,
		Details: apiErr.Details,
	}
}

// getIntParam extracts an integer query parameter with a default value.
func getIntParam(r *http.Request, key string, defaultValue int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intValue
}

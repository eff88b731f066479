// ICSWatch - ICS Network Traffic Replay and Threat Classification
// Copyright 2026 ICSWatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/icswatch/icswatch

package replay

import (
	"errors"
	"fmt"
)

// Failure taxonomy for the replay engine. Every failure is isolated to
// the smallest unit of work (one record, one subscriber); none of these
// terminate the process.
var (
	// ErrDataSourceUnavailable reports a failed record fetch. The loop
	// skips the index and continues.
	ErrDataSourceUnavailable = errors.New("replay: data source unavailable")

	// ErrPredictorUnavailable reports that no model is loaded. The
	// pipeline falls back to the default label; not fatal.
	ErrPredictorUnavailable = errors.New("replay: predictor unavailable")

	// ErrPoolExhausted reports that the sampling pool has no indices
	// left. Depending on configuration the loop reshuffles or stops.
	ErrPoolExhausted = errors.New("replay: sampling pool exhausted")

	// ErrInvalidStateTransition reports a control call that is not legal
	// in the current playback state. Reported and ignored, never fatal.
	ErrInvalidStateTransition = errors.New("replay: invalid state transition")
)

// transitionError builds an ErrInvalidStateTransition with the offending
// operation and current state attached.
func transitionError(op string, from State) error {
	return fmt.Errorf("%w: %s while %s", ErrInvalidStateTransition, op, from)
}

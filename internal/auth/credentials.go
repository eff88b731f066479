// ICSWatch - ICS Network Traffic Replay and Threat Classification
// Copyright 2026 ICSWatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/icswatch/icswatch

package auth

import (
	"crypto/sha256"
	"crypto/subtle"

	"github.com/icswatch/icswatch/internal/config"
)

// RoleAdmin is the role granted to the configured admin account.
const RoleAdmin = "admin"

// Credentials checks login attempts against the configured admin account.
type Credentials struct {
	usernameHash [32]byte
	passwordHash [32]byte
}

// NewCredentials builds a credential checker from the security configuration.
// Credentials are hashed so comparisons are constant time regardless of
// input length.
func NewCredentials(cfg *config.SecurityConfig) *Credentials {
	return &Credentials{
		usernameHash: sha256.Sum256([]byte(cfg.AdminUsername)),
		passwordHash: sha256.Sum256([]byte(cfg.AdminPassword)),
	}
}

// Verify reports whether the given username and password match the
// configured admin account. Both comparisons always run.
func (c *Credentials) Verify(username, password string) bool {
	userHash := sha256.Sum256([]byte(username))
	passHash := sha256.Sum256([]byte(password))

	userOK := subtle.ConstantTimeCompare(c.usernameHash[:], userHash[:])
	passOK := subtle.ConstantTimeCompare(c.passwordHash[:], passHash[:])
	return userOK == 1 && passOK == 1
}

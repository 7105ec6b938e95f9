// Package domain contains core business types and interfaces.
//
// This file defines the verified identity produced by the external auth
// collaborator. Session issuance and OAuth flows live outside this service;
// the core only ever reads an already-verified identity.
package domain

import "github.com/google/uuid"

// VerifiedIdentity is the authenticated caller as attested by the auth
// collaborator.
type VerifiedIdentity struct {
	UserID uuid.UUID
	Email  string
}

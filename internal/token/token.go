// Package token produces the public reference codes and capability secrets
// that stand in for authentication on the customer-facing surface.
package token

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// ReferencePrefix is prepended to every appointment reference number.
const ReferencePrefix = "OT-"

// referenceAlphabet excludes visually ambiguous characters (0/O, 1/I).
const referenceAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// referenceLength is the number of random characters after the prefix.
const referenceLength = 8

// capabilityBytes is the secret size: 256 bits, hex encoded to 64 chars.
const capabilityBytes = 32

// Purpose scopes a capability to the operations it authorizes.
type Purpose string

const (
	// PurposeManage authorizes both cancel and reschedule of one
	// appointment. The two operations deliberately share a single secret;
	// splitting them would allow revoking one without the other, which the
	// product does not need today.
	PurposeManage Purpose = "appointment_manage"
	// PurposeEstimateApproval authorizes viewing and responding to one
	// estimate.
	PurposeEstimateApproval Purpose = "estimate_approval"
)

// ManageTokenTTL is the validity window of an appointment management
// capability, counted from mint time.
const ManageTokenTTL = 30 * 24 * time.Hour

// Capability is an explicit bearer secret with expiry and purpose. It is
// passed by value between the service and its collaborators; nothing in the
// system relies on ambient token state.
type Capability struct {
	Value     string
	ExpiresAt time.Time
	Purpose   Purpose
}

// Valid reports whether the capability is usable at the given instant.
func (c Capability) Valid(now time.Time) bool {
	return c.Value != "" && now.Before(c.ExpiresAt)
}

// NewReference generates a reference code like "OT-K7KWM3QH". Uniqueness is
// the caller's responsibility (checked against storage, retried on
// collision).
func NewReference() (string, error) {
	return NewCode(ReferencePrefix)
}

// NewCode generates a random code from the reference alphabet with the given
// prefix. Estimate and repair order numbers use their own prefixes.
func NewCode(prefix string) (string, error) {
	buf := make([]byte, referenceLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("reference entropy: %w", err)
	}

	out := make([]byte, referenceLength)
	for i, b := range buf {
		out[i] = referenceAlphabet[int(b)%len(referenceAlphabet)]
	}
	return prefix + string(out), nil
}

// NewCapability mints a fresh capability secret valid for ttl from now.
func NewCapability(purpose Purpose, ttl time.Duration) (Capability, error) {
	buf := make([]byte, capabilityBytes)
	if _, err := rand.Read(buf); err != nil {
		return Capability{}, fmt.Errorf("capability entropy: %w", err)
	}

	return Capability{
		Value:     hex.EncodeToString(buf),
		ExpiresAt: time.Now().Add(ttl),
		Purpose:   purpose,
	}, nil
}

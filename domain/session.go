// Package domain contains core concepts of the presence and messaging system.
// This file defines Session entities and identity snapshots.
// No runtime, network, or UI logic should be added here.
package domain

import (
	"time"
)

type SessionID string

type UserID string

type Capability string

const (
	CapabilityRead  Capability = "read"
	CapabilityWrite Capability = "write"
	CapabilityAdmin Capability = "admin"
)

// Identity is the result of a successful credential verification.
// Capabilities are a snapshot taken at connect time and stay authoritative
// for the lifetime of the sessions admitted with it.
type Identity struct {
	UserID       UserID
	Email        string
	DisplayName  string
	Capabilities []Capability
}

func (i Identity) Has(c Capability) bool {
	for _, cap := range i.Capabilities {
		if cap == c {
			return true
		}
	}
	return false
}

// Session represents one live, authenticated connection.
// The identifier is unique per connection, not per user.
type Session struct {
	ID           SessionID
	UserID       UserID
	DisplayName  string
	Capabilities []Capability
	ConnectedAt  time.Time
	LastActivity time.Time
}

func (s Session) Has(c Capability) bool {
	for _, cap := range s.Capabilities {
		if cap == c {
			return true
		}
	}
	return false
}

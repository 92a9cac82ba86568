package models

import (
	"fmt"
	"strings"
)

// DefaultPartition is used when the caller does not name one.
const DefaultPartition = "Common"

type State string

const (
	StatePresent State = "present"
	StateAbsent  State = "absent"
)

// Intent is the two-valued desired state for the session and monitor
// subsystems. The control plane reports back a richer status vocabulary,
// see SessionStatus and MonitorStatus.
type Intent string

const (
	IntentEnabled  Intent = "enabled"
	IntentDisabled Intent = "disabled"
)

// SessionStatus is the live traffic-admission status of a member. Only the
// forced sentinel marks an explicit administrator override; everything else
// (enabled, disabled, addr_disabled, ...) can occur naturally.
type SessionStatus string

const SessionForcedDisabled SessionStatus = "forced_disabled"

// MonitorStatus is the live health-monitoring status of a member. Same
// deal: up/down/unchecked come and go with health, forced_down only from an
// explicit override.
type MonitorStatus string

const MonitorForcedDown MonitorStatus = "forced_down"

// FQName qualifies an object name with its partition. Already-qualified
// names pass through untouched.
func FQName(partition, name string) string {
	if name == "" || strings.HasPrefix(name, "/") {
		return name
	}
	if partition == "" {
		partition = DefaultPartition
	}
	return fmt.Sprintf("/%s/%s", partition, name)
}

// MemberSpec is the desired state for a single pool member, assembled once
// per invocation by the CLI layer and passed by value into the reconciler.
// Nil attribute pointers mean "not managed": never compared, never written.
type MemberSpec struct {
	State     State
	Pool      string
	Partition string
	Host      string
	Port      *int

	ConnectionLimit *int64
	RateLimit       *int64
	Ratio           *int64
	PriorityGroup   *int64
	Description     *string
	SessionState    *Intent
	MonitorState    *Intent

	PreserveNode bool
	DryRun       bool
}

// FQPool returns the partition-qualified pool name.
func (s MemberSpec) FQPool() string {
	return FQName(s.Partition, s.Pool)
}

// FQAddress returns the partition-qualified member address.
func (s MemberSpec) FQAddress() string {
	return FQName(s.Partition, s.Host)
}

// Validate checks the spec before any remote call is made.
func (s MemberSpec) Validate() error {
	switch s.State {
	case StatePresent, StateAbsent:
	default:
		return fmt.Errorf("state must be present or absent, got %q", s.State)
	}
	if s.Pool == "" {
		return fmt.Errorf("pool is required")
	}
	if s.Host == "" || s.Port == nil {
		return fmt.Errorf("both host and port must be supplied")
	}
	if *s.Port < 0 || *s.Port > 65535 {
		return fmt.Errorf("valid ports must be in range 0 - 65535")
	}
	if s.ConnectionLimit != nil && *s.ConnectionLimit < 0 {
		return fmt.Errorf("connection limit must not be negative")
	}
	if s.RateLimit != nil && *s.RateLimit < 0 {
		return fmt.Errorf("rate limit must not be negative")
	}
	if s.SessionState != nil && !validIntent(*s.SessionState) {
		return fmt.Errorf("session state must be enabled or disabled, got %q", *s.SessionState)
	}
	if s.MonitorState != nil && !validIntent(*s.MonitorState) {
		return fmt.Errorf("monitor state must be enabled or disabled, got %q", *s.MonitorState)
	}
	// ratio range is owned by the control plane, no local check
	return nil
}

func validIntent(i Intent) bool {
	return i == IntentEnabled || i == IntentDisabled
}

// ObjectStatus is the availability snapshot returned by existence probes.
type ObjectStatus struct {
	AvailabilityState string
	EnabledState      string
}

// Result is the terminal outcome of one reconciliation. Deleted is only set
// when a node deletion was actually attempted.
type Result struct {
	Changed bool  `json:"changed"`
	Deleted *bool `json:"deleted,omitempty"`
}

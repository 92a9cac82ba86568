package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFQName(t *testing.T) {
	require.Equal(t, "/Common/web-pool", FQName("Common", "web-pool"))
	require.Equal(t, "/Tenant-A/web-pool", FQName("Tenant-A", "web-pool"))
	require.Equal(t, "/Common/web-pool", FQName("", "web-pool"))
	// already qualified names pass through
	require.Equal(t, "/Other/web-pool", FQName("Common", "/Other/web-pool"))
	require.Equal(t, "", FQName("Common", ""))
}

func validSpec() MemberSpec {
	port := 80
	return MemberSpec{
		State: StatePresent,
		Pool:  "web-pool",
		Host:  "10.0.0.1",
		Port:  &port,
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, validSpec().Validate())

	spec := validSpec()
	spec.State = "paused"
	require.ErrorContains(t, spec.Validate(), "state must be present or absent")

	spec = validSpec()
	spec.Pool = ""
	require.ErrorContains(t, spec.Validate(), "pool is required")

	spec = validSpec()
	spec.Port = nil
	require.ErrorContains(t, spec.Validate(), "both host and port must be supplied")

	spec = validSpec()
	spec.Host = ""
	require.ErrorContains(t, spec.Validate(), "both host and port must be supplied")

	spec = validSpec()
	badPort := 70000
	spec.Port = &badPort
	require.ErrorContains(t, spec.Validate(), "valid ports must be in range 0 - 65535")

	spec = validSpec()
	negative := int64(-1)
	spec.ConnectionLimit = &negative
	require.ErrorContains(t, spec.Validate(), "connection limit must not be negative")

	spec = validSpec()
	spec.RateLimit = &negative
	require.ErrorContains(t, spec.Validate(), "rate limit must not be negative")

	spec = validSpec()
	badIntent := Intent("forced")
	spec.SessionState = &badIntent
	require.ErrorContains(t, spec.Validate(), "session state must be enabled or disabled")

	spec = validSpec()
	spec.MonitorState = &badIntent
	require.ErrorContains(t, spec.Validate(), "monitor state must be enabled or disabled")

	// ratio is not validated locally, the control plane owns the range
	spec = validSpec()
	hugeRatio := int64(1000)
	spec.Ratio = &hugeRatio
	require.NoError(t, spec.Validate())
}

func TestResultOmitsDeletedWhenUnset(t *testing.T) {
	raw, err := json.Marshal(Result{Changed: true})
	require.NoError(t, err)
	require.JSONEq(t, `{"changed":true}`, string(raw))

	deleted := false
	raw, err = json.Marshal(Result{Changed: true, Deleted: &deleted})
	require.NoError(t, err)
	require.JSONEq(t, `{"changed":true,"deleted":false}`, string(raw))
}

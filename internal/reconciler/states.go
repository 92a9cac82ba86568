package reconciler

import (
	"github.com/Sh00ty/bigip-member/internal/models"
)

// statePolicy projects a two-valued intent onto the control plane's richer
// status vocabulary. Each subsystem has exactly one forced sentinel, the
// value an administrator override leaves behind:
//
//	intent=enabled  is violated only when the live status IS the sentinel;
//	                a naturally disabled/down member already satisfies it.
//	intent=disabled is violated when the live status is anything BUT the
//	                sentinel.
//
// The asymmetry is deliberate: the reconciler never fights transient health
// transitions, but an explicit force-offline request is re-applied if
// something else cleared it.
type statePolicy struct {
	sentinel string
}

func (p statePolicy) violated(intent models.Intent, live string) bool {
	if intent == models.IntentEnabled {
		return live == p.sentinel
	}
	return live != p.sentinel
}

var (
	sessionPolicy = statePolicy{sentinel: string(models.SessionForcedDisabled)}
	monitorPolicy = statePolicy{sentinel: string(models.MonitorForcedDown)}
)

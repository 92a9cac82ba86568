package reconciler

import (
	"context"

	"github.com/Sh00ty/bigip-member/internal/models"
)

// attribute is one independently reconciled member setting. differs reads
// the live value and compares it to the desired one; write applies the
// desired value. Both are single remote round trips.
type attribute struct {
	name     string
	supplied bool
	differs  func(ctx context.Context) (bool, error)
	write    func(ctx context.Context) error
}

// attributes returns the full attribute set in the fixed order writes are
// issued in, on both the creation and the update path: connectionLimit,
// description, rateLimit, ratio, session state, monitor state,
// priorityGroup.
func (r *Reconciler) attributes(spec models.MemberSpec, pool, address string, port int) []attribute {
	return []attribute{
		scalarAttr("connection limit", spec.ConnectionLimit,
			func(ctx context.Context) (int64, error) { return r.clnt.GetConnectionLimit(ctx, pool, address, port) },
			func(ctx context.Context, v int64) error { return r.clnt.SetConnectionLimit(ctx, pool, address, port, v) }),
		scalarAttr("description", spec.Description,
			func(ctx context.Context) (string, error) { return r.clnt.GetDescription(ctx, pool, address, port) },
			func(ctx context.Context, v string) error { return r.clnt.SetDescription(ctx, pool, address, port, v) }),
		scalarAttr("rate limit", spec.RateLimit,
			func(ctx context.Context) (int64, error) { return r.clnt.GetRateLimit(ctx, pool, address, port) },
			func(ctx context.Context, v int64) error { return r.clnt.SetRateLimit(ctx, pool, address, port, v) }),
		scalarAttr("ratio", spec.Ratio,
			func(ctx context.Context) (int64, error) { return r.clnt.GetRatio(ctx, pool, address, port) },
			func(ctx context.Context, v int64) error { return r.clnt.SetRatio(ctx, pool, address, port, v) }),
		stateAttr("session state", spec.SessionState, sessionPolicy,
			func(ctx context.Context) (string, error) {
				status, err := r.clnt.GetSessionStatus(ctx, pool, address, port)
				return string(status), err
			},
			func(ctx context.Context, intent models.Intent) error {
				return r.clnt.SetSessionState(ctx, pool, address, port, intent)
			}),
		stateAttr("monitor state", spec.MonitorState, monitorPolicy,
			func(ctx context.Context) (string, error) {
				status, err := r.clnt.GetMonitorStatus(ctx, pool, address, port)
				return string(status), err
			},
			func(ctx context.Context, intent models.Intent) error {
				return r.clnt.SetMonitorState(ctx, pool, address, port, intent)
			}),
		scalarAttr("priority group", spec.PriorityGroup,
			func(ctx context.Context) (int64, error) { return r.clnt.GetPriorityGroup(ctx, pool, address, port) },
			func(ctx context.Context, v int64) error { return r.clnt.SetPriorityGroup(ctx, pool, address, port, v) }),
	}
}

// scalarAttr builds an attribute whose diff is plain value equality.
func scalarAttr[T comparable](name string, desired *T,
	get func(ctx context.Context) (T, error),
	set func(ctx context.Context, v T) error,
) attribute {
	return attribute{
		name:     name,
		supplied: desired != nil,
		differs: func(ctx context.Context) (bool, error) {
			current, err := get(ctx)
			if err != nil {
				return false, err
			}
			return current != *desired, nil
		},
		write: func(ctx context.Context) error {
			return set(ctx, *desired)
		},
	}
}

// stateAttr builds an attribute whose diff is the forced-sentinel policy
// rather than value equality.
func stateAttr(name string, desired *models.Intent, policy statePolicy,
	get func(ctx context.Context) (string, error),
	set func(ctx context.Context, intent models.Intent) error,
) attribute {
	return attribute{
		name:     name,
		supplied: desired != nil,
		differs: func(ctx context.Context) (bool, error) {
			live, err := get(ctx)
			if err != nil {
				return false, err
			}
			return policy.violated(*desired, live), nil
		},
		write: func(ctx context.Context) error {
			return set(ctx, *desired)
		},
	}
}

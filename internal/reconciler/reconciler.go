package reconciler

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/Sh00ty/bigip-member/internal/bigip"
	"github.com/Sh00ty/bigip-member/internal/models"
)

// Client is the remote operation set the reconciler needs. The bigip
// package implements it; tests substitute a recording fake. NotFound and
// StillReferenced conditions must surface as the bigip sentinel kinds.
type Client interface {
	GetPoolStatus(ctx context.Context, pool string) (models.ObjectStatus, error)
	GetMemberStatus(ctx context.Context, pool, address string, port int) (models.ObjectStatus, error)
	AddMember(ctx context.Context, pool, address string, port int) error
	RemoveMember(ctx context.Context, pool, address string, port int) error
	DeleteNodeAddress(ctx context.Context, address string) error

	GetConnectionLimit(ctx context.Context, pool, address string, port int) (int64, error)
	SetConnectionLimit(ctx context.Context, pool, address string, port int, limit int64) error
	GetRateLimit(ctx context.Context, pool, address string, port int) (int64, error)
	SetRateLimit(ctx context.Context, pool, address string, port int, limit int64) error
	GetRatio(ctx context.Context, pool, address string, port int) (int64, error)
	SetRatio(ctx context.Context, pool, address string, port int, ratio int64) error
	GetPriorityGroup(ctx context.Context, pool, address string, port int) (int64, error)
	SetPriorityGroup(ctx context.Context, pool, address string, port int, group int64) error
	GetDescription(ctx context.Context, pool, address string, port int) (string, error)
	SetDescription(ctx context.Context, pool, address string, port int, description string) error

	GetSessionStatus(ctx context.Context, pool, address string, port int) (models.SessionStatus, error)
	SetSessionState(ctx context.Context, pool, address string, port int, intent models.Intent) error
	GetMonitorStatus(ctx context.Context, pool, address string, port int) (models.MonitorStatus, error)
	SetMonitorState(ctx context.Context, pool, address string, port int, intent models.Intent) error
}

// Reconciler converges one pool member onto its desired state with the
// minimal set of writes. It holds no state between invocations; every run
// re-reads the live state.
type Reconciler struct {
	clnt Client
}

func New(clnt Client) *Reconciler {
	return &Reconciler{clnt: clnt}
}

// Reconcile validates the spec, probes pool and member existence and walks
// the absent/present branch. Remote calls are strictly sequential; any
// failure past validation is terminal, already-applied writes stay in place.
func (r *Reconciler) Reconcile(ctx context.Context, spec models.MemberSpec) (models.Result, error) {
	if err := spec.Validate(); err != nil {
		return models.Result{}, err
	}
	pool := spec.FQPool()
	address := spec.FQAddress()
	port := *spec.Port

	poolFound, err := r.poolExists(ctx, pool)
	if err != nil {
		return models.Result{}, err
	}
	if !poolFound {
		return models.Result{}, fmt.Errorf("pool %s does not exist", pool)
	}

	memberFound, err := r.memberExists(ctx, pool, address, port)
	if err != nil {
		return models.Result{}, err
	}

	if spec.State == models.StateAbsent {
		if !memberFound {
			return models.Result{}, nil
		}
		return r.removeMember(ctx, spec, pool, address, port)
	}

	if !memberFound {
		return r.createMember(ctx, spec, pool, address, port)
	}
	return r.updateMember(ctx, spec, pool, address, port)
}

func (r *Reconciler) poolExists(ctx context.Context, pool string) (bool, error) {
	_, err := r.clnt.GetPoolStatus(ctx, pool)
	if errors.Is(err, bigip.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("probing pool %s: %w", pool, err)
	}
	return true, nil
}

func (r *Reconciler) memberExists(ctx context.Context, pool, address string, port int) (bool, error) {
	_, err := r.clnt.GetMemberStatus(ctx, pool, address, port)
	if errors.Is(err, bigip.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("probing member %s:%d in pool %s: %w", address, port, pool, err)
	}
	return true, nil
}

// createMember adds the member and applies every supplied attribute
// unconditionally, in the fixed attribute order.
func (r *Reconciler) createMember(ctx context.Context, spec models.MemberSpec, pool, address string, port int) (models.Result, error) {
	if spec.DryRun {
		return models.Result{Changed: true}, nil
	}
	if err := r.clnt.AddMember(ctx, pool, address, port); err != nil {
		return models.Result{}, fmt.Errorf("adding member %s:%d to pool %s: %w", address, port, pool, err)
	}
	log.Info().Msgf("added member %s:%d to pool %s", address, port, pool)

	for _, attr := range r.attributes(spec, pool, address, port) {
		if !attr.supplied {
			continue
		}
		if err := attr.write(ctx); err != nil {
			return models.Result{Changed: true}, fmt.Errorf("setting %s on new member %s:%d: %w", attr.name, address, port, err)
		}
	}
	return models.Result{Changed: true}, nil
}

// updateMember diffs every supplied attribute independently and writes only
// on mismatch. Diffs are still computed under dry-run, writes are not
// issued.
func (r *Reconciler) updateMember(ctx context.Context, spec models.MemberSpec, pool, address string, port int) (models.Result, error) {
	changed := false
	for _, attr := range r.attributes(spec, pool, address, port) {
		if !attr.supplied {
			continue
		}
		differs, err := attr.differs(ctx)
		if err != nil {
			return models.Result{Changed: changed}, fmt.Errorf("reading %s of member %s:%d: %w", attr.name, address, port, err)
		}
		if !differs {
			continue
		}
		changed = true
		if spec.DryRun {
			continue
		}
		if err := attr.write(ctx); err != nil {
			return models.Result{Changed: changed}, fmt.Errorf("setting %s on member %s:%d: %w", attr.name, address, port, err)
		}
		log.Info().Msgf("updated %s of member %s:%d in pool %s", attr.name, address, port, pool)
	}
	return models.Result{Changed: changed}, nil
}

// removeMember detaches the member and, unless the caller preserves it,
// tries to delete the underlying node. A node still referenced by another
// pool member is not an error, it is reported as deleted=false.
func (r *Reconciler) removeMember(ctx context.Context, spec models.MemberSpec, pool, address string, port int) (models.Result, error) {
	if spec.DryRun {
		return models.Result{Changed: true}, nil
	}
	if err := r.clnt.RemoveMember(ctx, pool, address, port); err != nil {
		return models.Result{}, fmt.Errorf("removing member %s:%d from pool %s: %w", address, port, pool, err)
	}
	log.Info().Msgf("removed member %s:%d from pool %s", address, port, pool)

	res := models.Result{Changed: true}
	if spec.PreserveNode {
		return res, nil
	}
	err := r.clnt.DeleteNodeAddress(ctx, address)
	switch {
	case errors.Is(err, bigip.ErrStillReferenced):
		log.Info().Msgf("node %s kept, still referenced by another pool member", address)
		res.Deleted = boolPtr(false)
	case err != nil:
		return res, fmt.Errorf("deleting node %s: %w", address, err)
	default:
		log.Info().Msgf("deleted node %s", address)
		res.Deleted = boolPtr(true)
	}
	return res, nil
}

func boolPtr(b bool) *bool { return &b }

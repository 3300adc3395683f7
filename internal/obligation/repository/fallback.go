package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/personalfinance/finance/backend/go-scheduler/internal/obligation"
	"github.com/personalfinance/finance/backend/go-scheduler/pkg/logger"
	"github.com/personalfinance/finance/backend/go-scheduler/pkg/metrics"
)

// Tier names the storage tier that served a call.
type Tier string

const (
	TierNone   Tier = ""
	TierRemote Tier = "remote"
	TierLocal  Tier = "local"
)

// Fallback tries the remote tier first and applies the same call to the
// local tier when the remote fails for any reason other than a rejected
// request. Writes accepted locally are never replayed to the remote.
//
// Reads go to the tier that last accepted a write for the owner; with no
// recorded write they try remote, then local. A nil remote makes the
// decorator local-only.
type Fallback struct {
	remote Repository
	local  Repository

	mu      sync.Mutex
	written map[string]Tier
	served  map[string]Tier
}

func NewFallback(remote, local Repository) *Fallback {
	return &Fallback{
		remote:  remote,
		local:   local,
		written: make(map[string]Tier),
		served:  make(map[string]Tier),
	}
}

// LastTier returns the tier that served the owner's most recent call.
func (f *Fallback) LastTier(ownerID string) Tier {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.served[ownerID]
}

func (f *Fallback) record(ownerID, op string, tier Tier, write bool) {
	f.mu.Lock()
	f.served[ownerID] = tier
	if write {
		f.written[ownerID] = tier
	}
	f.mu.Unlock()
	metrics.TierServed.WithLabelValues(op, string(tier)).Inc()
	logger.Debugw("storage call served", logger.Fields{"op": op, "owner": ownerID, "tier": tier})
}

func (f *Fallback) readTier(ownerID string) Tier {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.written[ownerID]
}

// call runs fn against the remote tier and, on failure, against the local one.
// A remote ErrNotFound is not an outage: the record may exist only locally.
// A local ErrNotFound after a remote outage is reported as ErrUnavailable,
// since the remote may hold the record.
func call[T any](f *Fallback, op, ownerID string, write bool, fn func(Repository) (T, error)) (T, error) {
	var zero T
	var remoteErr error

	skipRemote := f.remote == nil || (!write && f.readTier(ownerID) == TierLocal)
	if !skipRemote {
		v, err := fn(f.remote)
		if err == nil {
			f.record(ownerID, op, TierRemote, write)
			return v, nil
		}
		if rejected(err) {
			return zero, err
		}
		remoteErr = err
		if errors.Is(err, obligation.ErrNotFound) {
			logger.Debugw("remote has no such record, trying local cache", logger.Fields{"op": op, "owner": ownerID})
		} else {
			metrics.RemoteFailures.WithLabelValues(op).Inc()
			logger.Warnw("remote storage failed, using local cache", logger.Fields{"op": op, "owner": ownerID, "err": err})
		}
	}

	v, err := fn(f.local)
	if err == nil {
		f.record(ownerID, op, TierLocal, write)
		return v, nil
	}
	remoteDown := remoteErr != nil && !errors.Is(remoteErr, obligation.ErrNotFound)
	if !remoteDown || rejected(err) {
		return zero, err
	}
	return zero, fmt.Errorf("%w: remote: %v; local: %v", ErrUnavailable, remoteErr, err)
}

func (f *Fallback) List(ctx context.Context, ownerID string) ([]obligation.Obligation, error) {
	return call(f, "list", ownerID, false, func(r Repository) ([]obligation.Obligation, error) {
		return r.List(ctx, ownerID)
	})
}

func (f *Fallback) Get(ctx context.Context, ownerID, id string) (*obligation.Obligation, error) {
	return call(f, "get", ownerID, false, func(r Repository) (*obligation.Obligation, error) {
		return r.Get(ctx, ownerID, id)
	})
}

func (f *Fallback) Create(ctx context.Context, ob obligation.Obligation) error {
	_, err := call(f, "create", ob.OwnerID, true, func(r Repository) (struct{}, error) {
		return struct{}{}, r.Create(ctx, ob)
	})
	return err
}

func (f *Fallback) Mutate(ctx context.Context, ownerID, id string, fn MutateFunc) (*obligation.Obligation, error) {
	return call(f, "mutate", ownerID, true, func(r Repository) (*obligation.Obligation, error) {
		return r.Mutate(ctx, ownerID, id, fn)
	})
}

func (f *Fallback) Delete(ctx context.Context, ownerID, id string) error {
	_, err := call(f, "delete", ownerID, true, func(r Repository) (struct{}, error) {
		return struct{}{}, r.Delete(ctx, ownerID, id)
	})
	return err
}

type executed struct {
	ob  *obligation.Obligation
	occ *obligation.Occurrence
}

func (f *Fallback) Execute(ctx context.Context, ownerID, id string, fn ExecuteFunc) (*obligation.Obligation, *obligation.Occurrence, error) {
	res, err := call(f, "execute", ownerID, true, func(r Repository) (executed, error) {
		ob, occ, err := r.Execute(ctx, ownerID, id, fn)
		return executed{ob: ob, occ: occ}, err
	})
	if err != nil {
		return nil, nil, err
	}
	metrics.Executions.WithLabelValues(string(f.LastTier(ownerID))).Inc()
	return res.ob, res.occ, nil
}

func (f *Fallback) ListOccurrences(ctx context.Context, ownerID string) ([]obligation.Occurrence, error) {
	return call(f, "history", ownerID, false, func(r Repository) ([]obligation.Occurrence, error) {
		return r.ListOccurrences(ctx, ownerID)
	})
}

// Package report collects the snapshots a skew report needs and aggregates
// them.
package report

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/apimachinery/pkg/util/validation"

	"github.com/HaPhanBaoMinh/kskew/internal/domain"
	"github.com/HaPhanBaoMinh/kskew/internal/owner"
	"github.com/HaPhanBaoMinh/kskew/internal/skew"
)

// ErrInvalidRequest is returned for requests rejected before any API call.
var ErrInvalidRequest = errors.New("invalid input")

const podRunning = "Running"

// Request is the immutable configuration of one report.
type Request struct {
	Mode skew.Mode
	// Namespace limits pods and workloads; "" means all namespaces.
	Namespace string
	// Selector filters pods in pod mode, nodes in node mode and workloads in
	// workload modes.
	Selector string
	// Name limits a single-kind workload report to one workload.
	Name        string
	TopologyKey string
	// AllPhases counts pods in every phase instead of Running only.
	AllPhases bool
	Policy    owner.Policy
	// Timeout bounds the whole collection. Zero means no timeout.
	Timeout time.Duration
}

// Validate rejects malformed input.
func (r Request) Validate() error {
	if _, err := skew.ParseMode(string(r.Mode)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if errs := validation.IsQualifiedName(r.TopologyKey); len(errs) > 0 {
		return fmt.Errorf("%w: topology key %q: %s", ErrInvalidRequest, r.TopologyKey, strings.Join(errs, "; "))
	}
	if _, err := labels.Parse(r.Selector); err != nil {
		return fmt.Errorf("%w: selector %q: %v", ErrInvalidRequest, r.Selector, err)
	}
	if r.Name != "" && len(r.Mode.Targets()) != 1 {
		return fmt.Errorf("%w: a name is only accepted by single workload kinds, not %q", ErrInvalidRequest, r.Mode)
	}
	return nil
}

// Snapshot is everything one report is computed from.
type Snapshot struct {
	Pods  []domain.Pod
	Nodes []domain.Node
	// Workloads are the listed target workloads.
	Workloads []domain.Controller
	// Intermediates are the controllers between pods and workloads.
	Intermediates []domain.Controller
	// IntermediateKinds were fetched for Intermediates, found or not.
	IntermediateKinds []domain.WorkloadKind
}

type fetch struct {
	name string
	run  func(ctx context.Context) error
}

// Collect fetches the snapshots req needs concurrently. Any failure cancels
// the remaining fetches and no snapshot is returned.
func Collect(ctx context.Context, repo domain.ClusterRepo, req Request) (*Snapshot, error) {
	logger := log.FromContext(ctx)
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	snap := &Snapshot{}
	fetches := []fetch{{
		name: "nodes",
		run: func(ctx context.Context) (err error) {
			snap.Nodes, err = repo.ListNodes(ctx)
			return err
		},
	}}

	var workloads, intermediates [][]domain.Controller
	targets := req.Mode.Targets()
	switch {
	case req.Mode == skew.ModeNode:
	case len(targets) == 0:
		fetches = append(fetches, fetch{
			name: "pods",
			run: func(ctx context.Context) (err error) {
				snap.Pods, err = repo.ListPods(ctx, req.Namespace, req.Selector)
				return err
			},
		})
	default:
		fetches = append(fetches, fetch{
			name: "pods",
			run: func(ctx context.Context) (err error) {
				snap.Pods, err = repo.ListPods(ctx, req.Namespace, "")
				return err
			},
		})
		workloads = make([][]domain.Controller, len(targets))
		for i, kind := range targets {
			fetches = append(fetches, fetch{
				name: strings.ToLower(string(kind)) + "s",
				run: func(ctx context.Context) (err error) {
					workloads[i], err = repo.ListControllers(ctx, kind, req.Namespace, req.Selector)
					return err
				},
			})
		}
		snap.IntermediateKinds = lo.Uniq(lo.FlatMap(targets, func(k domain.WorkloadKind, _ int) []domain.WorkloadKind {
			return k.Intermediates()
		}))
		intermediates = make([][]domain.Controller, len(snap.IntermediateKinds))
		for i, kind := range snap.IntermediateKinds {
			fetches = append(fetches, fetch{
				name: strings.ToLower(string(kind)) + "s",
				run: func(ctx context.Context) (err error) {
					intermediates[i], err = repo.ListControllers(ctx, kind, req.Namespace, "")
					return err
				},
			})
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, f := range fetches {
		g.Go(func() error {
			start := time.Now()
			if err := f.run(gctx); err != nil {
				return fmt.Errorf("fetching %s: %w", f.name, err)
			}
			logger.Debug("fetched", "resource", f.name, "took", time.Since(start).Round(time.Millisecond))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	snap.Workloads = lo.Flatten(workloads)
	snap.Intermediates = lo.Flatten(intermediates)
	return snap, nil
}

// Aggregate turns a snapshot into the report for req.
func Aggregate(snap *Snapshot, req Request) domain.ResultSet {
	pods := snap.Pods
	if !req.AllPhases {
		pods = lo.Filter(pods, func(p domain.Pod, _ int) bool { return p.Phase == podRunning })
	}

	in := skew.Input{
		Mode:        req.Mode,
		TopologyKey: req.TopologyKey,
		Nodes:       snap.Nodes,
		Pods:        pods,
	}

	switch {
	case req.Mode == skew.ModeNode:
		if req.Selector != "" {
			// validated by Request.Validate
			sel, _ := labels.Parse(req.Selector)
			in.NodeMembers = lo.Filter(snap.Nodes, func(n domain.Node, _ int) bool {
				return sel.Matches(labels.Set(n.Labels))
			})
		}
	case req.Mode.Workload():
		idx := owner.NewIndex(snap.Intermediates, snap.IntermediateKinds...)
		in.Resolver = owner.NewResolver(idx, req.Mode.Targets(), req.Policy)
		workloads := snap.Workloads
		if req.Name != "" {
			workloads = lo.Filter(workloads, func(c domain.Controller, _ int) bool { return c.Name == req.Name })
		}
		in.Seeds = lo.Map(workloads, func(c domain.Controller, _ int) domain.OwnerIdentity { return c.Identity() })
		in.RestrictToSeeds = req.Name != "" || req.Selector != ""
	}
	return skew.Aggregate(in)
}

// Build validates req, collects its snapshots and aggregates them.
func Build(ctx context.Context, repo domain.ClusterRepo, req Request) (domain.ResultSet, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	snap, err := Collect(ctx, repo, req)
	if err != nil {
		return nil, err
	}
	rs := Aggregate(snap, req)
	log.FromContext(ctx).Debug("aggregated", "mode", req.Mode, "owners", len(rs), "pods", len(snap.Pods), "nodes", len(snap.Nodes))
	return rs, nil
}

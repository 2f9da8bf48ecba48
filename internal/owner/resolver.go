// Package owner resolves pods to the top-level workload that manages them.
//
// Ownership is modelled as a graph keyed by (kind, namespace, name). The
// resolver walks it upward iteratively from a pod's controller reference until
// it reaches one of the target kinds, the chain ends, or the walk is cut off.
package owner

import (
	"github.com/HaPhanBaoMinh/kskew/internal/domain"
)

// DefaultMaxHops covers Pod -> ReplicaSet -> Deployment with room for custom
// controllers layered in between.
const DefaultMaxHops = 5

type Status int

const (
	// Resolved means the chain reached a target kind.
	Resolved Status = iota
	// Unmanaged means the pod has no controller, or the chain ends at a kind
	// that is neither a target nor indexed.
	Unmanaged
	// Unresolved means a link the index should contain is missing, the chain
	// loops, or it is longer than the hop limit.
	Unresolved
)

func (s Status) String() string {
	switch s {
	case Resolved:
		return "resolved"
	case Unmanaged:
		return "unmanaged"
	case Unresolved:
		return "unresolved"
	}
	return "unknown"
}

type Resolution struct {
	Identity domain.OwnerIdentity
	Status   Status
}

type key struct {
	kind, namespace, name string
}

// Index maps controllers by (kind, namespace, name) to their own controller
// reference. It also remembers which kinds were fetched, so that a missing
// entry of a fetched kind can be told apart from an untracked kind.
type Index struct {
	parents map[key]*domain.OwnerRef
	kinds   map[string]bool
}

// NewIndex builds an index over controllers. kinds lists every kind that was
// fetched, including kinds for which the cluster returned nothing.
func NewIndex(controllers []domain.Controller, kinds ...domain.WorkloadKind) *Index {
	idx := &Index{
		parents: make(map[key]*domain.OwnerRef, len(controllers)),
		kinds:   make(map[string]bool, len(kinds)),
	}
	for _, k := range kinds {
		idx.kinds[string(k)] = true
	}
	for _, c := range controllers {
		idx.parents[key{c.Kind, c.Namespace, c.Name}] = c.Owner
		idx.kinds[c.Kind] = true
	}
	return idx
}

func (idx *Index) lookup(kind, namespace, name string) (parent *domain.OwnerRef, found, tracked bool) {
	if idx == nil {
		return nil, false, false
	}
	parent, found = idx.parents[key{kind, namespace, name}]
	return parent, found, idx.kinds[kind]
}

type Policy struct {
	// MaxHops bounds the number of owner references followed, counting the
	// one that reaches the target. Zero means DefaultMaxHops.
	MaxHops int
}

type Resolver struct {
	index   *Index
	targets map[string]bool
	maxHops int
}

func NewResolver(index *Index, targets []domain.WorkloadKind, policy Policy) *Resolver {
	r := &Resolver{
		index:   index,
		targets: make(map[string]bool, len(targets)),
		maxHops: policy.MaxHops,
	}
	if r.maxHops <= 0 {
		r.maxHops = DefaultMaxHops
	}
	for _, t := range targets {
		r.targets[string(t)] = true
	}
	return r
}

// Resolve walks from the pod's controller reference up to a target kind.
// Owner references are namespaced, so every hop stays in the pod's namespace.
func (r *Resolver) Resolve(pod domain.Pod) Resolution {
	ref := pod.ControllerRef()
	if ref == nil {
		return Resolution{Identity: domain.UnmanagedIdentity(pod.Namespace), Status: Unmanaged}
	}
	visited := make(map[key]bool, r.maxHops)
	for hops := 1; ; hops++ {
		if hops > r.maxHops {
			return unresolved(pod.Namespace)
		}
		if r.targets[ref.Kind] {
			return Resolution{
				Identity: domain.OwnerIdentity{
					APIVersion: ref.APIVersion,
					Kind:       ref.Kind,
					Namespace:  pod.Namespace,
					Name:       ref.Name,
				},
				Status: Resolved,
			}
		}
		k := key{ref.Kind, pod.Namespace, ref.Name}
		if visited[k] {
			return unresolved(pod.Namespace)
		}
		visited[k] = true

		parent, found, tracked := r.index.lookup(ref.Kind, pod.Namespace, ref.Name)
		switch {
		case !found && tracked:
			// dangling reference, e.g. the ReplicaSet was deleted between list calls
			return unresolved(pod.Namespace)
		case !found:
			return Resolution{Identity: domain.UnmanagedIdentity(pod.Namespace), Status: Unmanaged}
		case parent == nil:
			return Resolution{Identity: domain.UnmanagedIdentity(pod.Namespace), Status: Unmanaged}
		}
		ref = parent
	}
}

func unresolved(namespace string) Resolution {
	return Resolution{Identity: domain.UnresolvedIdentity(namespace), Status: Unresolved}
}

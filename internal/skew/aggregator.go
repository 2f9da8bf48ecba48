// Package skew groups pods or nodes by owner and topology domain and derives
// the per-domain skew of every owner.
package skew

import (
	"fmt"
	"sort"

	"github.com/samber/lo"

	"github.com/HaPhanBaoMinh/kskew/internal/domain"
	"github.com/HaPhanBaoMinh/kskew/internal/owner"
	"github.com/HaPhanBaoMinh/kskew/internal/topology"
)

// Mode selects what is counted and how members are grouped.
type Mode string

const (
	ModePod         Mode = "pod"
	ModeNode        Mode = "node"
	ModeDeployment  Mode = "deployment"
	ModeStatefulSet Mode = "statefulset"
	ModeDaemonSet   Mode = "daemonset"
	ModeJob         Mode = "job"
	ModeAll         Mode = "all"
)

var Modes = []Mode{ModePod, ModeNode, ModeDeployment, ModeStatefulSet, ModeDaemonSet, ModeJob, ModeAll}

func ParseMode(s string) (Mode, error) {
	for _, m := range Modes {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown mode %q", s)
}

// Targets returns the workload kinds pods are resolved to. Pod and node
// modes have none.
func (m Mode) Targets() []domain.WorkloadKind {
	switch m {
	case ModeDeployment:
		return []domain.WorkloadKind{domain.KindDeployment}
	case ModeStatefulSet:
		return []domain.WorkloadKind{domain.KindStatefulSet}
	case ModeDaemonSet:
		return []domain.WorkloadKind{domain.KindDaemonSet}
	case ModeJob:
		return []domain.WorkloadKind{domain.KindJob}
	case ModeAll:
		return domain.WorkloadKinds
	}
	return nil
}

// Workload reports whether pods are grouped by resolved owner.
func (m Mode) Workload() bool { return len(m.Targets()) > 0 }

type Input struct {
	Mode        Mode
	TopologyKey string

	// Nodes is the full node snapshot. It always defines the domain universe.
	Nodes []domain.Node
	// NodeMembers are the nodes counted in node mode. Nil counts all Nodes.
	NodeMembers []domain.Node
	Pods        []domain.Pod

	// Resolver groups pods in workload modes.
	Resolver *owner.Resolver
	// Seeds are workloads that get a row even when none of their pods is
	// counted.
	Seeds []domain.OwnerIdentity
	// RestrictToSeeds drops pods whose owner is not a seed, along with the
	// unresolved bucket.
	RestrictToSeeds bool
}

// Aggregate computes one row per owner. Every row carries every domain of the
// universe; rows are ordered by owner identity and cells by domain.
func Aggregate(in Input) domain.ResultSet {
	nodesByName := topology.ByName(in.Nodes)
	universe := topology.Universe(in.Nodes, in.TopologyKey)

	counts := make(map[domain.OwnerIdentity]map[string]int)
	add := func(id domain.OwnerIdentity, d string) {
		if counts[id] == nil {
			counts[id] = make(map[string]int)
		}
		counts[id][d]++
		if !lo.Contains(universe, d) {
			universe = append(universe, d)
		}
	}

	seeds := lo.KeyBy(in.Seeds, unversioned)
	if in.Mode.Workload() {
		for _, s := range in.Seeds {
			counts[s] = make(map[string]int)
		}
	}

	switch {
	case in.Mode == ModeNode:
		members := in.NodeMembers
		if members == nil {
			members = in.Nodes
		}
		for _, n := range members {
			add(domain.NodesIdentity(), topology.Classify(n, in.TopologyKey))
		}
	case in.Mode.Workload():
		for _, p := range in.Pods {
			id, ok := in.groupOf(p, seeds)
			if !ok {
				continue
			}
			add(id, topology.ClassifyPod(p, nodesByName, in.TopologyKey))
		}
	default:
		for _, p := range in.Pods {
			add(domain.PodsIdentity(), topology.ClassifyPod(p, nodesByName, in.TopologyKey))
		}
	}

	topology.SortDomains(universe)

	ids := lo.Keys(counts)
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })

	rs := make(domain.ResultSet, 0, len(ids))
	for _, id := range ids {
		rs = append(rs, row(id, counts[id], universe))
	}
	return rs
}

// groupOf decides which row a pod is counted under in workload modes. A
// resolved owner that matches a seed by kind, namespace and name is counted
// under the seed, whatever API version the owner reference carried.
func (in Input) groupOf(p domain.Pod, seeds map[domain.OwnerIdentity]domain.OwnerIdentity) (domain.OwnerIdentity, bool) {
	if in.Resolver == nil {
		return domain.OwnerIdentity{}, false
	}
	res := in.Resolver.Resolve(p)
	switch res.Status {
	case owner.Resolved:
		if seed, ok := seeds[unversioned(res.Identity)]; ok {
			return seed, true
		}
		return res.Identity, !in.RestrictToSeeds
	case owner.Unresolved:
		return res.Identity, !in.RestrictToSeeds
	default:
		return res.Identity, in.Mode == ModeAll && !in.RestrictToSeeds
	}
}

func unversioned(id domain.OwnerIdentity) domain.OwnerIdentity {
	id.APIVersion = ""
	return id
}

func row(id domain.OwnerIdentity, counts map[string]int, universe []string) domain.SkewRow {
	cells := make([]domain.SkewCell, len(universe))
	for i, d := range universe {
		cells[i] = domain.SkewCell{Domain: d, Count: counts[d]}
	}
	if len(cells) > 0 {
		lowest := lo.MinBy(cells, func(a, b domain.SkewCell) bool { return a.Count < b.Count }).Count
		for i := range cells {
			cells[i].Skew = cells[i].Count - lowest
		}
	}
	return domain.SkewRow{Resource: id, Topology: cells}
}

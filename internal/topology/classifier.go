// Package topology maps nodes and pods onto topology domains.
package topology

import (
	"sort"

	"github.com/samber/lo"

	"github.com/HaPhanBaoMinh/kskew/internal/domain"
)

// DefaultKey is the well-known zone label.
const DefaultKey = "topology.kubernetes.io/zone"

// Classify returns the value of key on node, or domain.UnknownDomain when the
// label is missing or empty.
func Classify(node domain.Node, key string) string {
	if v, ok := node.Labels[key]; ok && v != "" {
		return v
	}
	return domain.UnknownDomain
}

// ClassifyPod classifies a pod through its assigned node. Unscheduled pods and
// pods whose node is missing from nodes fall into domain.UnknownDomain.
func ClassifyPod(pod domain.Pod, nodes map[string]domain.Node, key string) string {
	if pod.NodeName == "" {
		return domain.UnknownDomain
	}
	node, ok := nodes[pod.NodeName]
	if !ok {
		return domain.UnknownDomain
	}
	return Classify(node, key)
}

// Universe returns the sorted set of domains over all nodes.
func Universe(nodes []domain.Node, key string) []string {
	domains := lo.Uniq(lo.Map(nodes, func(n domain.Node, _ int) string {
		return Classify(n, key)
	}))
	SortDomains(domains)
	return domains
}

// ByName indexes nodes by name.
func ByName(nodes []domain.Node) map[string]domain.Node {
	return lo.KeyBy(nodes, func(n domain.Node) string { return n.Name })
}

// SortDomains sorts ascending with domain.UnknownDomain last.
func SortDomains(domains []string) {
	sort.Slice(domains, func(i, j int) bool { return Less(domains[i], domains[j]) })
}

func Less(a, b string) bool {
	if a == domain.UnknownDomain || b == domain.UnknownDomain {
		return b == domain.UnknownDomain && a != domain.UnknownDomain
	}
	return a < b
}

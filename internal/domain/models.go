package domain

import (
	"fmt"
	"strings"
)

// UnknownDomain is the topology domain of a node without the topology label,
// and of a pod whose node is not in the snapshot.
const UnknownDomain = "<unknown>"

type OwnerRef struct {
	APIVersion string
	Kind       string
	Name       string
	Controller bool // set on the managing controller reference only
}

type Pod struct {
	Namespace string
	Name      string
	NodeName  string // empty when unscheduled
	Phase     string // Running, Pending...
	Labels    map[string]string
	Owners    []OwnerRef
}

// ControllerRef returns the owner reference flagged as the managing
// controller, or nil.
func (p Pod) ControllerRef() *OwnerRef {
	for i := range p.Owners {
		if p.Owners[i].Controller {
			return &p.Owners[i]
		}
	}
	return nil
}

type Node struct {
	Name   string
	Labels map[string]string
}

// Controller is a controller resource (ReplicaSet, Deployment, ...) as seen in
// the snapshot, with its own controller owner reference if it has one.
type Controller struct {
	APIVersion string
	Kind       string
	Namespace  string
	Name       string
	Labels     map[string]string
	Owner      *OwnerRef
}

// Identity is the controller as an owner identity.
func (c Controller) Identity() OwnerIdentity {
	return OwnerIdentity{APIVersion: c.APIVersion, Kind: c.Kind, Namespace: c.Namespace, Name: c.Name}
}

// OwnerIdentity identifies the group a pod or node is counted under.
type OwnerIdentity struct {
	APIVersion string `json:"apiVersion,omitempty"`
	Kind       string `json:"kind"`
	Namespace  string `json:"namespace,omitempty"`
	Name       string `json:"name,omitempty"`
}

const (
	KindPods       = "Pod"
	KindNodes      = "Node"
	KindUnmanaged  = "Unmanaged"
	KindUnresolved = "Unresolved"
)

func PodsIdentity() OwnerIdentity       { return OwnerIdentity{APIVersion: "v1", Kind: KindPods} }
func NodesIdentity() OwnerIdentity      { return OwnerIdentity{APIVersion: "v1", Kind: KindNodes} }

// UnmanagedIdentity and UnresolvedIdentity bucket pods per namespace.
func UnmanagedIdentity(namespace string) OwnerIdentity {
	return OwnerIdentity{Kind: KindUnmanaged, Namespace: namespace}
}

func UnresolvedIdentity(namespace string) OwnerIdentity {
	return OwnerIdentity{Kind: KindUnresolved, Namespace: namespace}
}

// Less orders identities by kind, namespace, name and finally API version.
func (o OwnerIdentity) Less(other OwnerIdentity) bool {
	if o.Kind != other.Kind {
		return o.Kind < other.Kind
	}
	if o.Namespace != other.Namespace {
		return o.Namespace < other.Namespace
	}
	if o.Name != other.Name {
		return o.Name < other.Name
	}
	return o.APIVersion < other.APIVersion
}

// String renders the identity as "apps/v1/deployment/default/nginx".
// Empty parts are left out.
func (o OwnerIdentity) String() string {
	parts := make([]string, 0, 4)
	for _, p := range []string{o.APIVersion, strings.ToLower(o.Kind), o.Namespace, o.Name} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "/")
}

// SkewCell is the count and skew of one owner in one topology domain.
type SkewCell struct {
	Domain string `json:"domain"`
	Count  int    `json:"count"`
	Skew   int    `json:"skew"`
}

func (c SkewCell) String() string {
	return fmt.Sprintf("%s => count: %d skew: %d", c.Domain, c.Count, c.Skew)
}

type SkewRow struct {
	Resource OwnerIdentity `json:"resource"`
	Topology []SkewCell    `json:"topology"`
}

// Total is the number of members counted in the row.
func (r SkewRow) Total() int {
	n := 0
	for _, c := range r.Topology {
		n += c.Count
	}
	return n
}

// MaxSkew is the largest skew in the row.
func (r SkewRow) MaxSkew() int {
	m := 0
	for _, c := range r.Topology {
		if c.Skew > m {
			m = c.Skew
		}
	}
	return m
}

type ResultSet []SkewRow

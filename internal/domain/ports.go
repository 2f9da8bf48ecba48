package domain

import "context"

// WorkloadKind is one of the top-level workload kinds a report can group by,
// plus ReplicaSet which is only ever an intermediate owner.
type WorkloadKind string

const (
	KindDeployment  WorkloadKind = "Deployment"
	KindStatefulSet WorkloadKind = "StatefulSet"
	KindDaemonSet   WorkloadKind = "DaemonSet"
	KindJob         WorkloadKind = "Job"
	KindReplicaSet  WorkloadKind = "ReplicaSet"
)

// WorkloadKinds are the kinds grouped by the "all" report, in fetch order.
var WorkloadKinds = []WorkloadKind{KindDeployment, KindStatefulSet, KindDaemonSet, KindJob}

// Intermediates returns the kinds that sit between a pod and k in the
// ownership chain.
func (k WorkloadKind) Intermediates() []WorkloadKind {
	if k == KindDeployment {
		return []WorkloadKind{KindReplicaSet}
	}
	return nil
}

// ClusterRepo serves read-only snapshots of the cluster.
type ClusterRepo interface {
	// ListPods lists pods in ns ("" for all namespaces) matching selector.
	ListPods(ctx context.Context, ns string, selector string) ([]Pod, error)
	ListNodes(ctx context.Context) ([]Node, error)
	// ListControllers lists controllers of the given kind in ns ("" for all
	// namespaces) whose own labels match selector.
	ListControllers(ctx context.Context, kind WorkloadKind, ns string, selector string) ([]Controller, error)
}

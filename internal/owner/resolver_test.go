package owner

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/HaPhanBaoMinh/kskew/internal/domain"
)

func ctrlRef(apiVersion, kind, name string) domain.OwnerRef {
	return domain.OwnerRef{APIVersion: apiVersion, Kind: kind, Name: name, Controller: true}
}

func podOwnedBy(refs ...domain.OwnerRef) domain.Pod {
	return domain.Pod{Namespace: "default", Name: "p", Owners: refs}
}

func replicaSet(name, deployment string) domain.Controller {
	c := domain.Controller{APIVersion: "apps/v1", Kind: "ReplicaSet", Namespace: "default", Name: name}
	if deployment != "" {
		ref := ctrlRef("apps/v1", "Deployment", deployment)
		c.Owner = &ref
	}
	return c
}

func TestResolveDeploymentThroughReplicaSet(t *testing.T) {
	idx := NewIndex([]domain.Controller{replicaSet("nginx-5d4f", "nginx")}, domain.KindReplicaSet)
	r := NewResolver(idx, []domain.WorkloadKind{domain.KindDeployment}, Policy{})

	res := r.Resolve(podOwnedBy(ctrlRef("apps/v1", "ReplicaSet", "nginx-5d4f")))

	assert.Equal(t, Resolved, res.Status)
	assert.Equal(t, domain.OwnerIdentity{APIVersion: "apps/v1", Kind: "Deployment", Namespace: "default", Name: "nginx"}, res.Identity)
}

func TestResolveDirectOwner(t *testing.T) {
	r := NewResolver(NewIndex(nil), domain.WorkloadKinds, Policy{})

	res := r.Resolve(podOwnedBy(ctrlRef("apps/v1", "StatefulSet", "db")))

	assert.Equal(t, Resolved, res.Status)
	assert.Equal(t, "StatefulSet", res.Identity.Kind)
	assert.Equal(t, "db", res.Identity.Name)
}

func TestResolveFollowsControllerRefOnly(t *testing.T) {
	r := NewResolver(NewIndex(nil), domain.WorkloadKinds, Policy{})
	auxiliary := domain.OwnerRef{APIVersion: "apps/v1", Kind: "StatefulSet", Name: "not-me"}

	res := r.Resolve(podOwnedBy(auxiliary, ctrlRef("batch/v1", "Job", "migrate")))
	assert.Equal(t, Resolved, res.Status)
	assert.Equal(t, "migrate", res.Identity.Name)

	res = r.Resolve(podOwnedBy(auxiliary))
	assert.Equal(t, Unmanaged, res.Status)
	assert.Equal(t, domain.UnmanagedIdentity("default"), res.Identity)
}

func TestResolveUnmanaged(t *testing.T) {
	idx := NewIndex([]domain.Controller{replicaSet("orphan-rs", "")}, domain.KindReplicaSet)
	r := NewResolver(idx, []domain.WorkloadKind{domain.KindDeployment}, Policy{})

	tests := []struct {
		name string
		pod  domain.Pod
	}{
		{"bare pod", podOwnedBy()},
		{"untracked kind", podOwnedBy(ctrlRef("example.com/v1", "Widget", "w"))},
		{"replicaset without owner", podOwnedBy(ctrlRef("apps/v1", "ReplicaSet", "orphan-rs"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, Unmanaged, r.Resolve(tt.pod).Status)
		})
	}
}

func TestResolveDanglingReference(t *testing.T) {
	// ReplicaSets were fetched but this one is gone.
	idx := NewIndex(nil, domain.KindReplicaSet)
	r := NewResolver(idx, []domain.WorkloadKind{domain.KindDeployment}, Policy{})

	res := r.Resolve(podOwnedBy(ctrlRef("apps/v1", "ReplicaSet", "deleted-rs")))

	assert.Equal(t, Unresolved, res.Status)
	assert.Equal(t, domain.UnresolvedIdentity("default"), res.Identity)
}

func TestResolveBucketsKeepPodNamespace(t *testing.T) {
	r := NewResolver(NewIndex(nil, domain.KindReplicaSet), []domain.WorkloadKind{domain.KindDeployment}, Policy{})

	bare := podOwnedBy()
	bare.Namespace = "team-a"
	assert.Equal(t, domain.UnmanagedIdentity("team-a"), r.Resolve(bare).Identity)

	dangling := podOwnedBy(ctrlRef("apps/v1", "ReplicaSet", "deleted-rs"))
	dangling.Namespace = "team-b"
	assert.Equal(t, domain.UnresolvedIdentity("team-b"), r.Resolve(dangling).Identity)
}

func TestResolveCycle(t *testing.T) {
	a := domain.Controller{Kind: "Widget", Namespace: "default", Name: "a"}
	b := domain.Controller{Kind: "Widget", Namespace: "default", Name: "b"}
	refA, refB := ctrlRef("example.com/v1", "Widget", "a"), ctrlRef("example.com/v1", "Widget", "b")
	a.Owner, b.Owner = &refB, &refA

	r := NewResolver(NewIndex([]domain.Controller{a, b}), domain.WorkloadKinds, Policy{MaxHops: 100})

	assert.Equal(t, Unresolved, r.Resolve(podOwnedBy(refA)).Status)
}

func TestResolveHopLimit(t *testing.T) {
	idx := NewIndex([]domain.Controller{replicaSet("nginx-5d4f", "nginx")}, domain.KindReplicaSet)
	pod := podOwnedBy(ctrlRef("apps/v1", "ReplicaSet", "nginx-5d4f"))
	targets := []domain.WorkloadKind{domain.KindDeployment}

	assert.Equal(t, Unresolved, NewResolver(idx, targets, Policy{MaxHops: 1}).Resolve(pod).Status)
	assert.Equal(t, Resolved, NewResolver(idx, targets, Policy{MaxHops: 2}).Resolve(pod).Status)
}

func TestResolveStaysInPodNamespace(t *testing.T) {
	other := replicaSet("nginx-5d4f", "nginx")
	other.Namespace = "other"
	idx := NewIndex([]domain.Controller{other}, domain.KindReplicaSet)
	r := NewResolver(idx, []domain.WorkloadKind{domain.KindDeployment}, Policy{})

	assert.Equal(t, Unresolved, r.Resolve(podOwnedBy(ctrlRef("apps/v1", "ReplicaSet", "nginx-5d4f"))).Status)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "resolved", Resolved.String())
	assert.Equal(t, "unmanaged", Unmanaged.String())
	assert.Equal(t, "unresolved", Unresolved.String())
}

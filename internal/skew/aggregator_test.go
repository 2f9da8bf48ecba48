package skew

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HaPhanBaoMinh/kskew/internal/domain"
	"github.com/HaPhanBaoMinh/kskew/internal/owner"
	"github.com/HaPhanBaoMinh/kskew/internal/topology"
)

const zoneKey = topology.DefaultKey

func zonedNodes(zones ...string) []domain.Node {
	nodes := make([]domain.Node, 0, len(zones))
	for i, z := range zones {
		n := domain.Node{Name: fmt.Sprintf("node-%d", i), Labels: map[string]string{}}
		if z != "" {
			n.Labels[zoneKey] = z
		}
		nodes = append(nodes, n)
	}
	return nodes
}

// deploymentPods creates pods of one deployment spread as perNode[i] pods on
// node-i. The ReplicaSet is "<name>-rs".
func deploymentPods(name string, perNode ...int) []domain.Pod {
	var pods []domain.Pod
	for i, n := range perNode {
		for j := 0; j < n; j++ {
			pods = append(pods, domain.Pod{
				Namespace: "default",
				Name:      fmt.Sprintf("%s-%d-%d", name, i, j),
				NodeName:  fmt.Sprintf("node-%d", i),
				Phase:     "Running",
				Owners: []domain.OwnerRef{
					{APIVersion: "apps/v1", Kind: "ReplicaSet", Name: name + "-rs", Controller: true},
				},
			})
		}
	}
	return pods
}

func deploymentResolver(names ...string) *owner.Resolver {
	var rs []domain.Controller
	for _, n := range names {
		rs = append(rs, domain.Controller{
			APIVersion: "apps/v1", Kind: "ReplicaSet", Namespace: "default", Name: n + "-rs",
			Owner: &domain.OwnerRef{APIVersion: "apps/v1", Kind: "Deployment", Name: n, Controller: true},
		})
	}
	idx := owner.NewIndex(rs, domain.KindReplicaSet)
	return owner.NewResolver(idx, ModeDeployment.Targets(), owner.Policy{})
}

func deployment(name string) domain.OwnerIdentity {
	return domain.OwnerIdentity{APIVersion: "apps/v1", Kind: "Deployment", Namespace: "default", Name: name}
}

func TestAggregateSpreadExamples(t *testing.T) {
	pods := append(deploymentPods("nginx", 3, 4, 4), deploymentPods("one", 1, 0, 0)...)

	rs := Aggregate(Input{
		Mode:        ModeDeployment,
		TopologyKey: zoneKey,
		Nodes:       zonedNodes("a", "b", "c"),
		Pods:        pods,
		Resolver:    deploymentResolver("nginx", "one"),
	})

	require.Len(t, rs, 2)
	assert.Equal(t, deployment("nginx"), rs[0].Resource)
	assert.Equal(t, []domain.SkewCell{
		{Domain: "a", Count: 3, Skew: 0},
		{Domain: "b", Count: 4, Skew: 1},
		{Domain: "c", Count: 4, Skew: 1},
	}, rs[0].Topology)

	assert.Equal(t, deployment("one"), rs[1].Resource)
	assert.Equal(t, []domain.SkewCell{
		{Domain: "a", Count: 1, Skew: 1},
		{Domain: "b", Count: 0, Skew: 0},
		{Domain: "c", Count: 0, Skew: 0},
	}, rs[1].Topology)
}

func TestAggregateEmptySelection(t *testing.T) {
	rs := Aggregate(Input{Mode: ModePod, TopologyKey: zoneKey, Nodes: zonedNodes("a", "b")})
	assert.NotNil(t, rs)
	assert.Empty(t, rs)
}

func TestAggregatePodMode(t *testing.T) {
	pods := deploymentPods("web", 2, 1)
	pods = append(pods, domain.Pod{Namespace: "default", Name: "lonely", NodeName: "node-1"})

	rs := Aggregate(Input{Mode: ModePod, TopologyKey: zoneKey, Nodes: zonedNodes("a", "b", "c"), Pods: pods})

	require.Len(t, rs, 1)
	assert.Equal(t, domain.PodsIdentity(), rs[0].Resource)
	assert.Equal(t, []domain.SkewCell{
		{Domain: "a", Count: 2, Skew: 2},
		{Domain: "b", Count: 2, Skew: 2},
		{Domain: "c", Count: 0, Skew: 0},
	}, rs[0].Topology)
}

func TestAggregateNodeMode(t *testing.T) {
	nodes := zonedNodes("a", "a", "b", "")

	rs := Aggregate(Input{Mode: ModeNode, TopologyKey: zoneKey, Nodes: nodes})
	require.Len(t, rs, 1)
	assert.Equal(t, domain.NodesIdentity(), rs[0].Resource)
	assert.Equal(t, []domain.SkewCell{
		{Domain: "a", Count: 2, Skew: 1},
		{Domain: "b", Count: 1, Skew: 0},
		{Domain: domain.UnknownDomain, Count: 1, Skew: 0},
	}, rs[0].Topology)

	// selected members only, universe still from every node
	rs = Aggregate(Input{Mode: ModeNode, TopologyKey: zoneKey, Nodes: nodes, NodeMembers: nodes[:2]})
	require.Len(t, rs, 1)
	assert.Equal(t, []domain.SkewCell{
		{Domain: "a", Count: 2, Skew: 2},
		{Domain: "b", Count: 0, Skew: 0},
		{Domain: domain.UnknownDomain, Count: 0, Skew: 0},
	}, rs[0].Topology)

	assert.Empty(t, Aggregate(Input{Mode: ModeNode, TopologyKey: zoneKey, Nodes: nodes, NodeMembers: []domain.Node{}}))
}

func TestAggregateDeletedNodeGoesToUnknown(t *testing.T) {
	pods := deploymentPods("nginx", 1, 1)
	pods[1].NodeName = "deleted-node"

	rs := Aggregate(Input{
		Mode:        ModeDeployment,
		TopologyKey: zoneKey,
		Nodes:       zonedNodes("a", "b"),
		Pods:        pods,
		Resolver:    deploymentResolver("nginx"),
	})

	require.Len(t, rs, 1)
	assert.Equal(t, []domain.SkewCell{
		{Domain: "a", Count: 1, Skew: 1},
		{Domain: "b", Count: 0, Skew: 0},
		{Domain: domain.UnknownDomain, Count: 1, Skew: 1},
	}, rs[0].Topology)
	assert.Equal(t, 2, rs[0].Total())
}

func TestAggregateOwnerBuckets(t *testing.T) {
	pods := deploymentPods("nginx", 1, 1)
	dangling := deploymentPods("ghost", 1)
	bare := domain.Pod{Namespace: "default", Name: "bare", NodeName: "node-0"}
	sts := domain.Pod{Namespace: "default", Name: "db-0", NodeName: "node-1", Owners: []domain.OwnerRef{
		{APIVersion: "apps/v1", Kind: "StatefulSet", Name: "db", Controller: true},
	}}
	pods = append(pods, dangling[0], bare, sts)
	nodes := zonedNodes("a", "b")

	idx := owner.NewIndex([]domain.Controller{{
		APIVersion: "apps/v1", Kind: "ReplicaSet", Namespace: "default", Name: "nginx-rs",
		Owner: &domain.OwnerRef{APIVersion: "apps/v1", Kind: "Deployment", Name: "nginx", Controller: true},
	}}, domain.KindReplicaSet)

	t.Run("single kind drops unmanaged", func(t *testing.T) {
		rs := Aggregate(Input{
			Mode: ModeDeployment, TopologyKey: zoneKey, Nodes: nodes, Pods: pods,
			Resolver: owner.NewResolver(idx, ModeDeployment.Targets(), owner.Policy{}),
		})
		require.Len(t, rs, 2)
		assert.Equal(t, deployment("nginx"), rs[0].Resource)
		assert.Equal(t, domain.UnresolvedIdentity("default"), rs[1].Resource)
		assert.Equal(t, 1, rs[1].Total())
	})

	t.Run("all keeps unmanaged", func(t *testing.T) {
		rs := Aggregate(Input{
			Mode: ModeAll, TopologyKey: zoneKey, Nodes: nodes, Pods: pods,
			Resolver: owner.NewResolver(idx, ModeAll.Targets(), owner.Policy{}),
		})
		kinds := make([]string, 0, len(rs))
		for _, r := range rs {
			kinds = append(kinds, r.Resource.Kind)
		}
		assert.Equal(t, []string{"Deployment", "StatefulSet", domain.KindUnmanaged, domain.KindUnresolved}, kinds)
	})

	t.Run("restricted to seeds", func(t *testing.T) {
		rs := Aggregate(Input{
			Mode: ModeAll, TopologyKey: zoneKey, Nodes: nodes, Pods: pods,
			Resolver:        owner.NewResolver(idx, ModeAll.Targets(), owner.Policy{}),
			Seeds:           []domain.OwnerIdentity{deployment("nginx"), deployment("idle")},
			RestrictToSeeds: true,
		})
		require.Len(t, rs, 2)
		assert.Equal(t, deployment("idle"), rs[0].Resource)
		assert.Equal(t, 0, rs[0].Total())
		assert.Len(t, rs[0].Topology, 2)
		assert.Equal(t, deployment("nginx"), rs[1].Resource)
		assert.Equal(t, 2, rs[1].Total())
	})
}

func TestAggregateBucketsPerNamespace(t *testing.T) {
	nodes := zonedNodes("a", "b")
	pods := []domain.Pod{
		{Namespace: "team-a", Name: "bare-a", NodeName: "node-0"},
		{Namespace: "team-b", Name: "bare-b", NodeName: "node-1"},
	}
	rs := Aggregate(Input{
		Mode: ModeAll, TopologyKey: zoneKey, Nodes: nodes, Pods: pods,
		Resolver: owner.NewResolver(owner.NewIndex(nil), ModeAll.Targets(), owner.Policy{}),
	})
	require.Len(t, rs, 2)
	assert.Equal(t, domain.UnmanagedIdentity("team-a"), rs[0].Resource)
	assert.Equal(t, []int{1, 0}, []int{rs[0].Topology[0].Count, rs[0].Topology[1].Count})
	assert.Equal(t, domain.UnmanagedIdentity("team-b"), rs[1].Resource)
	assert.Equal(t, []int{0, 1}, []int{rs[1].Topology[0].Count, rs[1].Topology[1].Count})
}

func TestAggregateMatchesSeedsAcrossAPIVersions(t *testing.T) {
	nodes := zonedNodes("a", "b")
	// owner reference written with an older group version than the listed workload
	pods := []domain.Pod{{Namespace: "default", Name: "db-0", NodeName: "node-0", Owners: []domain.OwnerRef{
		{APIVersion: "apps/v1beta2", Kind: "StatefulSet", Name: "db", Controller: true},
	}}}
	seed := domain.OwnerIdentity{APIVersion: "apps/v1", Kind: "StatefulSet", Namespace: "default", Name: "db"}

	for _, restrict := range []bool{false, true} {
		rs := Aggregate(Input{
			Mode: ModeStatefulSet, TopologyKey: zoneKey, Nodes: nodes, Pods: pods,
			Resolver:        owner.NewResolver(owner.NewIndex(nil), ModeStatefulSet.Targets(), owner.Policy{}),
			Seeds:           []domain.OwnerIdentity{seed},
			RestrictToSeeds: restrict,
		})
		require.Len(t, rs, 1)
		assert.Equal(t, seed, rs[0].Resource)
		assert.Equal(t, 1, rs[0].Total())
	}
}

func TestAggregateProperties(t *testing.T) {
	nodes := zonedNodes("a", "b", "c", "", "c")
	pods := append(deploymentPods("api", 5, 0, 2, 1, 3), deploymentPods("web", 0, 0, 0, 0, 7)...)
	pods = append(pods, deploymentPods("cache", 1, 1, 1)...)
	pods[0].NodeName = "missing"

	in := Input{
		Mode:        ModeDeployment,
		TopologyKey: zoneKey,
		Nodes:       nodes,
		Pods:        pods,
		Resolver:    deploymentResolver("api", "web", "cache"),
		Seeds:       []domain.OwnerIdentity{deployment("empty")},
	}
	rs := Aggregate(in)
	require.Len(t, rs, 4)

	want := map[string]int{"api": 11, "web": 7, "cache": 3, "empty": 0}
	universe := []string{"a", "b", "c", domain.UnknownDomain}
	for _, r := range rs {
		// count conservation
		assert.Equal(t, want[r.Resource.Name], r.Total(), r.Resource.String())

		// domain completeness
		domains := make([]string, 0, len(r.Topology))
		zero := false
		for _, c := range r.Topology {
			domains = append(domains, c.Domain)
			assert.GreaterOrEqual(t, c.Skew, 0)
			zero = zero || c.Skew == 0
		}
		assert.Equal(t, universe, domains)
		// minimum-zero
		assert.True(t, zero, r.Resource.String())
	}

	// determinism
	assert.Equal(t, rs, Aggregate(in))
	for i := 1; i < len(rs); i++ {
		assert.True(t, rs[i-1].Resource.Less(rs[i].Resource))
	}
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("statefulset")
	require.NoError(t, err)
	assert.Equal(t, ModeStatefulSet, m)
	assert.True(t, m.Workload())
	assert.False(t, ModePod.Workload())
	assert.Len(t, ModeAll.Targets(), 4)

	_, err = ParseMode("replicaset")
	assert.Error(t, err)
}

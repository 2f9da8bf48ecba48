package mock

import (
	"context"
	"fmt"

	"k8s.io/apimachinery/pkg/labels"

	"github.com/HaPhanBaoMinh/kskew/internal/domain"
)

const zoneLabel = "topology.kubernetes.io/zone"

// Repo serves a fixed synthetic cluster: six nodes over three zones and a
// handful of workloads with known spreads.
type Repo struct {
	nodes       []domain.Node
	pods        []domain.Pod
	controllers map[domain.WorkloadKind][]domain.Controller
}

func New() *Repo {
	r := &Repo{controllers: make(map[domain.WorkloadKind][]domain.Controller)}

	zones := []string{"ap-northeast-1a", "ap-northeast-1c", "ap-northeast-1d"}
	base := []string{"ip-10-0-1-5", "ip-10-0-1-12", "ip-10-0-2-3", "ip-10-0-2-7", "ip-10-0-3-2", "ip-10-0-3-9"}
	for i, n := range base {
		r.nodes = append(r.nodes, domain.Node{
			Name: n,
			Labels: map[string]string{
				"kubernetes.io/hostname":        n,
				"topology.kubernetes.io/region": "ap-northeast-1",
				zoneLabel:                       zones[i/2],
			},
		})
	}
	// nodeIn returns the k-th node of a zone, alternating between its two nodes
	nodeIn := func(zone, k int) string { return base[zone*2+k%2] }

	// api: 3/4/4, web: 1/0/0
	r.deployment("default", "api", "7cfb9d9c9c", map[string]string{"app": "api"}, 3, 4, 4)
	r.deployment("default", "web", "5f7dcbffd6", map[string]string{"app": "web"}, 1, 0, 0)
	r.deployment("staging", "cart", "6d79f8b5f7", map[string]string{"app": "cart"}, 2, 2, 1)
	r.deployment("staging", "idle", "84c6b7d9f5", map[string]string{"app": "idle"}, 0, 0, 0)

	r.owned("default", domain.KindStatefulSet, "apps/v1", "postgres", map[string]string{"app": "postgres"},
		func(i int) string { return fmt.Sprintf("postgres-%d", i) }, 2, 1, 0)
	r.owned("kube-system", domain.KindDaemonSet, "apps/v1", "node-exporter", map[string]string{"app": "node-exporter"},
		func(i int) string { return fmt.Sprintf("node-exporter-%05d", 31415+i) }, 2, 2, 2)
	r.owned("default", domain.KindJob, "batch/v1", "db-migrate", map[string]string{"job-name": "db-migrate"},
		func(i int) string { return fmt.Sprintf("db-migrate-%d", i) }, 0, 1, 0)

	// ReplicaSet already deleted
	r.pods = append(r.pods, domain.Pod{
		Namespace: "staging", Name: "legacy-58d8b4c7b6-qz7vx", NodeName: nodeIn(1, 0), Phase: "Running",
		Labels: map[string]string{"app": "legacy"},
		Owners: []domain.OwnerRef{{APIVersion: "apps/v1", Kind: "ReplicaSet", Name: "legacy-58d8b4c7b6", Controller: true}},
	})
	r.pods = append(r.pods, domain.Pod{
		Namespace: "default", Name: "debug-shell", NodeName: nodeIn(2, 1), Phase: "Running",
		Labels: map[string]string{"run": "debug-shell"},
	})
	r.pods = append(r.pods, domain.Pod{
		Namespace: "default", Name: "api-7cfb9d9c9c-pending", Phase: "Pending",
		Labels: map[string]string{"app": "api"},
		Owners: []domain.OwnerRef{{APIVersion: "apps/v1", Kind: "ReplicaSet", Name: "api-7cfb9d9c9c", Controller: true}},
	})
	return r
}

func (r *Repo) deployment(ns, name, hash string, lbls map[string]string, perZone ...int) {
	rsName := name + "-" + hash
	r.controllers[domain.KindDeployment] = append(r.controllers[domain.KindDeployment], domain.Controller{
		APIVersion: "apps/v1", Kind: string(domain.KindDeployment), Namespace: ns, Name: name, Labels: lbls,
	})
	r.controllers[domain.KindReplicaSet] = append(r.controllers[domain.KindReplicaSet], domain.Controller{
		APIVersion: "apps/v1", Kind: string(domain.KindReplicaSet), Namespace: ns, Name: rsName, Labels: lbls,
		Owner: &domain.OwnerRef{APIVersion: "apps/v1", Kind: string(domain.KindDeployment), Name: name, Controller: true},
	})
	r.spread(ns, lbls, domain.OwnerRef{APIVersion: "apps/v1", Kind: string(domain.KindReplicaSet), Name: rsName, Controller: true},
		func(i int) string { return fmt.Sprintf("%s-%05x", rsName, 0x9a2b+i*7) }, perZone)
}

func (r *Repo) owned(ns string, kind domain.WorkloadKind, apiVersion, name string, lbls map[string]string, podName func(int) string, perZone ...int) {
	r.controllers[kind] = append(r.controllers[kind], domain.Controller{
		APIVersion: apiVersion, Kind: string(kind), Namespace: ns, Name: name, Labels: lbls,
	})
	r.spread(ns, lbls, domain.OwnerRef{APIVersion: apiVersion, Kind: string(kind), Name: name, Controller: true}, podName, perZone)
}

func (r *Repo) spread(ns string, lbls map[string]string, ref domain.OwnerRef, podName func(int) string, perZone []int) {
	i := 0
	for zone, n := range perZone {
		for k := 0; k < n; k++ {
			r.pods = append(r.pods, domain.Pod{
				Namespace: ns,
				Name:      podName(i),
				NodeName:  r.nodes[zone*2+k%2].Name,
				Phase:     "Running",
				Labels:    lbls,
				Owners:    []domain.OwnerRef{ref},
			})
			i++
		}
	}
}

func (r *Repo) ListNodes(ctx context.Context) ([]domain.Node, error) {
	return append([]domain.Node(nil), r.nodes...), nil
}

func (r *Repo) ListPods(ctx context.Context, ns string, selector string) ([]domain.Pod, error) {
	sel, err := labels.Parse(selector)
	if err != nil {
		return nil, err
	}
	var out []domain.Pod
	for _, p := range r.pods {
		if (ns == "" || p.Namespace == ns) && sel.Matches(labels.Set(p.Labels)) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *Repo) ListControllers(ctx context.Context, kind domain.WorkloadKind, ns string, selector string) ([]domain.Controller, error) {
	sel, err := labels.Parse(selector)
	if err != nil {
		return nil, err
	}
	var out []domain.Controller
	for _, c := range r.controllers[kind] {
		if (ns == "" || c.Namespace == ns) && sel.Matches(labels.Set(c.Labels)) {
			out = append(out, c)
		}
	}
	return out, nil
}

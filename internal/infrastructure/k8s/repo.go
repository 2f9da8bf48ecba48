package k8s

import (
	"context"
	"fmt"

	appsv1 "k8s.io/api/apps/v1"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes"
	_ "k8s.io/client-go/plugin/pkg/client/auth"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	clientcmdapi "k8s.io/client-go/tools/clientcmd/api"
	"k8s.io/client-go/tools/pager"

	"github.com/HaPhanBaoMinh/kskew/internal/domain"
)

// Options selects the kubeconfig and the context/cluster/user inside it.
type Options struct {
	Kubeconfig string
	Context    string
	Cluster    string
	User       string
}

func (o Options) explicit() bool {
	return o.Kubeconfig != "" || o.Context != "" || o.Cluster != "" || o.User != ""
}

type Repo struct {
	core      kubernetes.Interface
	pageSize  int64
	namespace string
}

func New(opts Options) (*Repo, error) {
	cc := clientConfig(opts)
	cfg, err := restConfig(opts, cc)
	if err != nil {
		return nil, err
	}
	cfg.QPS = 30
	cfg.Burst = 60
	core, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, err
	}
	r := NewForClient(core)
	if ns, _, err := cc.Namespace(); err == nil && ns != "" {
		r.namespace = ns
	}
	return r, nil
}

// NewForClient wraps an existing clientset.
func NewForClient(core kubernetes.Interface) *Repo {
	return &Repo{core: core, pageSize: 500, namespace: metav1.NamespaceDefault}
}

// DefaultNamespace is the namespace of the selected kubeconfig context.
func (r *Repo) DefaultNamespace() string { return r.namespace }

func restConfig(opts Options, cc clientcmd.ClientConfig) (*rest.Config, error) {
	if !opts.explicit() {
		if cfg, err := rest.InClusterConfig(); err == nil {
			return cfg, nil
		}
	}
	cfg, err := cc.ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("loading kubeconfig: %w", err)
	}
	return cfg, nil
}

func clientConfig(opts Options) clientcmd.ClientConfig {
	loadingRules := clientcmd.NewDefaultClientConfigLoadingRules()
	loadingRules.ExplicitPath = opts.Kubeconfig
	overrides := &clientcmd.ConfigOverrides{
		CurrentContext: opts.Context,
		Context: clientcmdapi.Context{
			Cluster:  opts.Cluster,
			AuthInfo: opts.User,
		},
	}
	return clientcmd.NewNonInteractiveDeferredLoadingClientConfig(loadingRules, overrides)
}

// each pages through a list call and hands every item to fn.
func (r *Repo) each(ctx context.Context, selector string, list pager.ListPageFunc, fn func(runtime.Object) error) error {
	p := pager.New(list)
	p.PageSize = r.pageSize
	return p.EachListItem(ctx, metav1.ListOptions{LabelSelector: selector}, fn)
}

func (r *Repo) ListPods(ctx context.Context, ns string, selector string) ([]domain.Pod, error) {
	var out []domain.Pod
	err := r.each(ctx, selector, func(ctx context.Context, opts metav1.ListOptions) (runtime.Object, error) {
		return r.core.CoreV1().Pods(ns).List(ctx, opts)
	}, func(obj runtime.Object) error {
		p, ok := obj.(*corev1.Pod)
		if !ok {
			return fmt.Errorf("unexpected object %T in pod list", obj)
		}
		out = append(out, podFrom(p))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing pods: %w", err)
	}
	return out, nil
}

func (r *Repo) ListNodes(ctx context.Context) ([]domain.Node, error) {
	var out []domain.Node
	err := r.each(ctx, "", func(ctx context.Context, opts metav1.ListOptions) (runtime.Object, error) {
		return r.core.CoreV1().Nodes().List(ctx, opts)
	}, func(obj runtime.Object) error {
		n, ok := obj.(*corev1.Node)
		if !ok {
			return fmt.Errorf("unexpected object %T in node list", obj)
		}
		out = append(out, domain.Node{Name: n.Name, Labels: n.Labels})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing nodes: %w", err)
	}
	return out, nil
}

func (r *Repo) ListControllers(ctx context.Context, kind domain.WorkloadKind, ns string, selector string) ([]domain.Controller, error) {
	var list pager.ListPageFunc
	apiVersion := appsv1.SchemeGroupVersion.String()
	switch kind {
	case domain.KindReplicaSet:
		list = func(ctx context.Context, opts metav1.ListOptions) (runtime.Object, error) {
			return r.core.AppsV1().ReplicaSets(ns).List(ctx, opts)
		}
	case domain.KindDeployment:
		list = func(ctx context.Context, opts metav1.ListOptions) (runtime.Object, error) {
			return r.core.AppsV1().Deployments(ns).List(ctx, opts)
		}
	case domain.KindStatefulSet:
		list = func(ctx context.Context, opts metav1.ListOptions) (runtime.Object, error) {
			return r.core.AppsV1().StatefulSets(ns).List(ctx, opts)
		}
	case domain.KindDaemonSet:
		list = func(ctx context.Context, opts metav1.ListOptions) (runtime.Object, error) {
			return r.core.AppsV1().DaemonSets(ns).List(ctx, opts)
		}
	case domain.KindJob:
		apiVersion = batchv1.SchemeGroupVersion.String()
		list = func(ctx context.Context, opts metav1.ListOptions) (runtime.Object, error) {
			return r.core.BatchV1().Jobs(ns).List(ctx, opts)
		}
	default:
		return nil, fmt.Errorf("unsupported controller kind %q", kind)
	}

	var out []domain.Controller
	err := r.each(ctx, selector, list, func(obj runtime.Object) error {
		m, ok := obj.(metav1.Object)
		if !ok {
			return fmt.Errorf("unexpected object %T in %s list", obj, kind)
		}
		out = append(out, domain.Controller{
			APIVersion: apiVersion,
			Kind:       string(kind),
			Namespace:  m.GetNamespace(),
			Name:       m.GetName(),
			Labels:     m.GetLabels(),
			Owner:      ownerFrom(metav1.GetControllerOf(m)),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", kind, err)
	}
	return out, nil
}

func podFrom(p *corev1.Pod) domain.Pod {
	owners := make([]domain.OwnerRef, 0, len(p.OwnerReferences))
	for i := range p.OwnerReferences {
		owners = append(owners, *ownerFrom(&p.OwnerReferences[i]))
	}
	return domain.Pod{
		Namespace: p.Namespace,
		Name:      p.Name,
		NodeName:  p.Spec.NodeName,
		Phase:     string(p.Status.Phase),
		Labels:    p.Labels,
		Owners:    owners,
	}
}

func ownerFrom(ref *metav1.OwnerReference) *domain.OwnerRef {
	if ref == nil {
		return nil
	}
	return &domain.OwnerRef{
		APIVersion: ref.APIVersion,
		Kind:       ref.Kind,
		Name:       ref.Name,
		Controller: ref.Controller != nil && *ref.Controller,
	}
}

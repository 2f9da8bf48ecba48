package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/HaPhanBaoMinh/kskew/internal/app"
	"github.com/HaPhanBaoMinh/kskew/internal/domain"
	"github.com/HaPhanBaoMinh/kskew/internal/owner"
	"github.com/HaPhanBaoMinh/kskew/internal/render"
	"github.com/HaPhanBaoMinh/kskew/internal/report"
	"github.com/HaPhanBaoMinh/kskew/internal/skew"
	"github.com/HaPhanBaoMinh/kskew/internal/topology"
)

type workloadCommand struct {
	mode    skew.Mode
	kind    domain.WorkloadKind
	aliases []string
}

var workloadCommands = []workloadCommand{
	{skew.ModeDeployment, domain.KindDeployment, []string{"deploy"}},
	{skew.ModeStatefulSet, domain.KindStatefulSet, []string{"sts"}},
	{skew.ModeDaemonSet, domain.KindDaemonSet, []string{"ds"}},
	{skew.ModeJob, domain.KindJob, nil},
}

// modeOptions are the flags shared by every report subcommand.
type modeOptions struct {
	namespace     string
	allNamespaces bool
	topologyKey   string
	selector      string
	allPhases     bool
}

func (o *modeOptions) addReportFlags(cmd *cobra.Command, selectorHelp string) {
	f := cmd.Flags()
	f.StringVarP(&o.topologyKey, "topology-key", "t", topology.DefaultKey, "node label that defines a topology domain")
	f.StringVarP(&o.selector, "selector", "l", "", selectorHelp)
}

func (o *modeOptions) addPodFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVarP(&o.namespace, "namespace", "n", "", "namespace to report on (default: the kubeconfig context namespace)")
	f.BoolVarP(&o.allNamespaces, "all-namespaces", "A", false, "report on every namespace")
	f.BoolVar(&o.allPhases, "all-phases", false, "count pods in every phase, not only Running ones")
}

func (c *CLI) podCommand() *cobra.Command {
	var o modeOptions
	cmd := &cobra.Command{
		Use:     "pod",
		Aliases: []string{"po"},
		Short:   "Spread of pods across topology domains",
		Example: `  kskew pod -n kube-system -l k8s-app=kube-dns`,
		Args:    invalidArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, skew.ModePod, o, "")
		},
	}
	o.addReportFlags(cmd, "label selector for pods")
	o.addPodFlags(cmd)
	return cmd
}

func (c *CLI) nodeCommand() *cobra.Command {
	var o modeOptions
	cmd := &cobra.Command{
		Use:     "node",
		Aliases: []string{"no"},
		Short:   "Spread of nodes across topology domains",
		Example: `  kskew node -l node.kubernetes.io/instance-type=m5.large`,
		Args:    invalidArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, skew.ModeNode, o, "")
		},
	}
	o.addReportFlags(cmd, "label selector for the nodes to count")
	return cmd
}

func (c *CLI) workloadCommand(w workloadCommand) *cobra.Command {
	var o modeOptions
	cmd := &cobra.Command{
		Use:     string(w.mode) + " [NAME]",
		Aliases: w.aliases,
		Short:   fmt.Sprintf("Spread of %s pods across topology domains", w.kind),
		Example: fmt.Sprintf("  kskew %s -A\n  kskew %s my-app -o yaml", w.mode, w.mode),
		Args:    invalidArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			var name string
			if len(args) == 1 {
				name = args[0]
			}
			return c.run(cmd, w.mode, o, name)
		},
		ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
			if len(args) > 0 {
				return nil, cobra.ShellCompDirectiveNoFileComp
			}
			return c.completeNames(cmd.Context(), w.kind, o), cobra.ShellCompDirectiveNoFileComp
		},
	}
	o.addReportFlags(cmd, fmt.Sprintf("label selector for %ss", w.kind))
	o.addPodFlags(cmd)
	return cmd
}

func (c *CLI) allCommand() *cobra.Command {
	var o modeOptions
	cmd := &cobra.Command{
		Use:   "all",
		Short: "Spread of pods of every workload kind across topology domains",
		Long: `Reports every Deployment, StatefulSet, DaemonSet and Job. Pods without a
controller are counted under "unmanaged"; pods whose owner chain cannot be
followed are counted under "unresolved". Both get one row per namespace.`,
		Args: invalidArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, skew.ModeAll, o, "")
		},
	}
	o.addReportFlags(cmd, "label selector for workloads")
	o.addPodFlags(cmd)
	return cmd
}

// request merges flags with config and validates the result.
func (c *CLI) request(cmd *cobra.Command, mode skew.Mode, o modeOptions, name string) (report.Request, render.Format, error) {
	f := cmd.Flags()
	if !f.Changed("topology-key") {
		o.topologyKey = c.cfg.TopologyKey
	}
	if !f.Changed("all-phases") {
		o.allPhases = c.cfg.AllPhases
	}

	format, err := render.ParseFormat(c.opts.output)
	if err != nil {
		return report.Request{}, "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if o.namespace != "" && o.allNamespaces {
		return report.Request{}, "", fmt.Errorf("%w: --namespace and --all-namespaces are mutually exclusive", ErrInvalidInput)
	}
	if c.opts.timeout < 0 {
		return report.Request{}, "", fmt.Errorf("%w: --timeout must not be negative", ErrInvalidInput)
	}
	if c.opts.watch && c.opts.watchInterval <= 0 {
		return report.Request{}, "", fmt.Errorf("%w: --watch-interval must be positive", ErrInvalidInput)
	}

	req := report.Request{
		Mode:        mode,
		Namespace:   o.namespace,
		Selector:    o.selector,
		Name:        name,
		TopologyKey: o.topologyKey,
		AllPhases:   o.allPhases,
		Policy:      owner.Policy{MaxHops: c.cfg.OwnerMaxHops},
		Timeout:     c.opts.timeout,
	}
	return req, format, req.Validate()
}

func (c *CLI) run(cmd *cobra.Command, mode skew.Mode, o modeOptions, name string) error {
	ctx := cmd.Context()
	logger := loggerFromContext(ctx)

	req, format, err := c.request(cmd, mode, o, name)
	if err != nil {
		return err
	}
	repo, err := c.repo(ctx)
	if err != nil {
		return err
	}
	if mode != skew.ModeNode && !o.allNamespaces && req.Namespace == "" {
		req.Namespace = defaultNamespace(repo)
	}
	logger.Debug("report", "mode", req.Mode, "namespace", req.Namespace, "topologyKey", req.TopologyKey, "selector", req.Selector)

	if c.opts.watch {
		return c.watch(ctx, repo, req)
	}

	rs, err := report.Build(ctx, repo, req)
	if err != nil {
		return err
	}
	if len(rs) == 0 && (format == render.FormatText || format == render.FormatTree) {
		fmt.Fprintln(c.stderr, "No resources found.")
		return nil
	}
	return render.Write(c.stdout, rs, format)
}

func (c *CLI) watch(ctx context.Context, repo domain.ClusterRepo, req report.Request) error {
	// the alternate screen owns the terminal
	quiet := withLogger(ctx, log.New(io.Discard))
	ns := req.Namespace
	if ns == "" {
		ns = "*"
	}
	title := fmt.Sprintf("%s  ns: %s  key: %s", req.Mode, ns, req.TopologyKey)
	if req.Mode == skew.ModeNode {
		title = fmt.Sprintf("%s  key: %s", req.Mode, req.TopologyKey)
	}
	err := app.Run(quiet, func(ctx context.Context) (domain.ResultSet, error) {
		return report.Build(ctx, repo, req)
	}, c.opts.watchInterval, title)
	if err != nil && ctx.Err() != nil {
		return errors.Join(ctx.Err(), err)
	}
	return err
}

// completeNames lists workload names for shell completion. Errors yield no
// suggestions.
func (c *CLI) completeNames(ctx context.Context, kind domain.WorkloadKind, o modeOptions) []string {
	if ctx == nil {
		ctx = context.Background()
	}
	repo, err := c.repo(ctx)
	if err != nil {
		return nil
	}
	ns := o.namespace
	if ns == "" && !o.allNamespaces {
		ns = defaultNamespace(repo)
	}
	workloads, err := repo.ListControllers(ctx, kind, ns, o.selector)
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(workloads))
	for _, w := range workloads {
		names = append(names, w.Name)
	}
	return names
}

// invalidArgs marks positional argument errors as invalid input.
func invalidArgs(fn cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := fn(cmd, args); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return nil
	}
}

func defaultNamespace(repo domain.ClusterRepo) string {
	if r, ok := repo.(interface{ DefaultNamespace() string }); ok {
		return r.DefaultNamespace()
	}
	return "default"
}

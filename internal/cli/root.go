// Package cli implements the kskew command-line interface.
//
// Every subcommand computes one skew report: it validates its flags, fetches
// the pods, nodes and controllers the report needs and renders the result to
// stdout. Logs go to stderr through a charmbracelet/log logger carried in the
// command context; --verbose turns on debug output.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/HaPhanBaoMinh/kskew/help"
	"github.com/HaPhanBaoMinh/kskew/internal/config"
	"github.com/HaPhanBaoMinh/kskew/internal/domain"
	"github.com/HaPhanBaoMinh/kskew/internal/infrastructure/k8s"
	"github.com/HaPhanBaoMinh/kskew/internal/infrastructure/mock"
	"github.com/HaPhanBaoMinh/kskew/internal/report"
)

// ErrInvalidInput marks errors caused by bad flags, arguments or config,
// detected before any API call.
var ErrInvalidInput = report.ErrInvalidRequest

// version is set with -ldflags "-X github.com/HaPhanBaoMinh/kskew/internal/cli.version=...".
var version = "dev"

// RepoFactory builds the cluster access layer from the kubeconfig flags.
type RepoFactory func(opts k8s.Options) (domain.ClusterRepo, error)

type globalOptions struct {
	kubeconfig    string
	context       string
	cluster       string
	user          string
	output        string
	configPath    string
	verbose       bool
	mock          bool
	watch         bool
	timeout       time.Duration
	watchInterval time.Duration
}

type CLI struct {
	stdout, stderr io.Writer
	newRepo        RepoFactory
	opts           globalOptions
	cfg            config.Config
}

func New(stdout, stderr io.Writer) *CLI {
	return &CLI{
		stdout: stdout,
		stderr: stderr,
		cfg:    config.Defaults(),
		newRepo: func(opts k8s.Options) (domain.ClusterRepo, error) {
			r, err := k8s.New(opts)
			if err != nil {
				return nil, err
			}
			return r, nil
		},
	}
}

// WithRepoFactory replaces the client-go backed repository.
func (c *CLI) WithRepoFactory(f RepoFactory) *CLI {
	c.newRepo = f
	return c
}

// Execute runs kskew with the process arguments.
func Execute(ctx context.Context) error {
	return New(os.Stdout, os.Stderr).RootCommand().ExecuteContext(ctx)
}

func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "kskew",
		Short: "Show how pods and nodes are spread across topology domains",
		Long: `kskew counts pods or nodes per topology domain (a node label such as
topology.kubernetes.io/zone), grouped by the workload that owns them, and
reports the skew of every domain: its count minus the smallest count of the
same owner.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := log.InfoLevel
			if c.opts.verbose {
				level = log.DebugLevel
			}
			cmd.SetContext(withLogger(cmd.Context(), newLogger(c.stderr, level)))
			return c.loadConfig(cmd)
		},
	}
	root.SetOut(c.stdout)
	root.SetErr(c.stderr)
	root.CompletionOptions.DisableDefaultCmd = true
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	})

	pf := root.PersistentFlags()
	pf.StringVar(&c.opts.kubeconfig, "kubeconfig", "", "path to the kubeconfig file")
	pf.StringVar(&c.opts.context, "context", "", "kubeconfig context to use")
	pf.StringVar(&c.opts.cluster, "cluster", "", "kubeconfig cluster to use")
	pf.StringVar(&c.opts.user, "user", "", "kubeconfig user to use")
	pf.StringVarP(&c.opts.output, "output", "o", c.cfg.Output, "output format: text, yaml, json or tree")
	pf.StringVar(&c.opts.configPath, "config", "", "config file (default "+help.ConfigFile()+")")
	pf.BoolVarP(&c.opts.verbose, "verbose", "v", false, "enable debug logging")
	pf.BoolVar(&c.opts.mock, "mock", false, "use a built-in synthetic cluster")
	pf.BoolVar(&c.opts.watch, "watch", false, "open an interactive view that refreshes the report")
	pf.DurationVar(&c.opts.timeout, "timeout", c.cfg.Timeout, "time limit for fetching cluster state (0 disables it)")
	pf.DurationVar(&c.opts.watchInterval, "watch-interval", c.cfg.WatchInterval, "refresh interval of --watch")

	_ = root.RegisterFlagCompletionFunc("output", cobra.FixedCompletions(
		[]string{"text", "yaml", "json", "tree"}, cobra.ShellCompDirectiveNoFileComp))

	root.AddCommand(c.podCommand())
	root.AddCommand(c.nodeCommand())
	for _, w := range workloadCommands {
		root.AddCommand(c.workloadCommand(w))
	}
	root.AddCommand(c.allCommand())
	root.AddCommand(c.completionCommand())
	return root
}

// loadConfig reads the config file and fills in every global flag the user
// did not set.
func (c *CLI) loadConfig(cmd *cobra.Command) error {
	explicit := cmd.Flags().Changed("config")
	path := c.opts.configPath
	if !explicit {
		path = help.ConfigFile()
	}
	cfg, err := config.Load(path, explicit)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	c.cfg = cfg
	loggerFromContext(cmd.Context()).Debug("config loaded", "path", path)

	f := cmd.Flags()
	if !f.Changed("output") {
		c.opts.output = cfg.Output
	}
	if !f.Changed("timeout") {
		c.opts.timeout = cfg.Timeout
	}
	if !f.Changed("watch-interval") {
		c.opts.watchInterval = cfg.WatchInterval
	}
	if !f.Changed("kubeconfig") {
		c.opts.kubeconfig = cfg.Kubeconfig
	}
	return nil
}

func (c *CLI) repo(ctx context.Context) (domain.ClusterRepo, error) {
	if c.opts.mock {
		loggerFromContext(ctx).Debug("using synthetic cluster")
		return mock.New(), nil
	}
	return c.newRepo(k8s.Options{
		Kubeconfig: c.opts.kubeconfig,
		Context:    c.opts.context,
		Cluster:    c.opts.cluster,
		User:       c.opts.user,
	})
}

package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/chazu/usdassemble/pkg/assemble"
	"github.com/chazu/usdassemble/pkg/asset"
	"github.com/chazu/usdassemble/pkg/config"
	"github.com/chazu/usdassemble/pkg/logging"
	"github.com/chazu/usdassemble/pkg/scan"
)

// Exit codes by error kind.
const (
	exitOK         = 0
	exitFailure    = 1
	exitValidation = 2
	exitStructural = 3
	exitBackend    = 4
)

func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	switch asset.KindOf(err) {
	case asset.KindValidation, asset.KindAggregate:
		return exitValidation
	case asset.KindStructural:
		return exitStructural
	case asset.KindBackend:
		return exitBackend
	default:
		return exitFailure
	}
}

// run executes one command line and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	c := &cli{stdout: stdout, stderr: stderr}
	root := c.rootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if c.logger != nil {
		_ = c.logger.Sync()
	}
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
	}
	return exitCode(err)
}

type cli struct {
	stdout, stderr io.Writer

	configPath string
	logger     *zap.Logger
	app        *App
}

// flagKeys binds command-line flags onto configuration keys.
var flagKeys = map[string]string{
	"log-level":        "log.level",
	"log-format":       "log.format",
	"workers":          "workers",
	"metrics-textfile": "metrics_textfile",
}

func (c *cli) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "usdassemble",
		Short:         "Assemble USD assets with material variants from a directory layout",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup(cmd)
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&c.configPath, "config", "", "configuration file (default ./usdassemble.yaml or ~/.config/usdassemble/usdassemble.yaml)")
	pf.String("log-level", "", "log level: debug, info, warn or error")
	pf.String("log-format", "", "log format: console or json")

	root.AddCommand(c.assembleCommand(), c.scanCommand(), c.validateCommand(), c.watchCommand())
	return root
}

func (c *cli) setup(cmd *cobra.Command) error {
	v := config.New()
	for flag, key := range flagKeys {
		if f := cmd.Flags().Lookup(flag); f != nil && f.Changed {
			if err := v.BindPFlag(key, f); err != nil {
				return err
			}
		}
	}
	cfg, err := config.Load(v, c.configPath)
	if err != nil {
		return err
	}
	if c.logger, err = logging.New(cfg.Log); err != nil {
		return err
	}
	if cfg.File != "" {
		c.logger.Debug("configuration loaded", zap.String("file", cfg.File))
	}
	c.app, err = NewApp(cfg, c.logger)
	return err
}

func rootArg(args []string) string {
	if len(args) == 0 {
		return "."
	}
	return args[0]
}

// ---------------------------------------------------------------------------
// Commands
// ---------------------------------------------------------------------------

func (c *cli) assembleCommand() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "assemble [root]",
		Short: "Scan the asset at root and write every component and the assembly document",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := c.app.Assemble(cmd.Context(), rootArg(args), dryRun)
			if report != nil {
				printReport(c.stdout, report)
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "scan and report without writing anything")
	cmd.Flags().Int("workers", 0, "components composed in parallel (default number of CPUs)")
	cmd.Flags().String("metrics-textfile", "", "write run metrics to this file in textfile format")
	return cmd
}

func (c *cli) scanCommand() *cobra.Command {
	var details bool
	cmd := &cobra.Command{
		Use:   "scan [root]",
		Short: "List the components, variants and textures found under root",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := c.app.Scan(cmd.Context(), rootArg(args))
			if err != nil {
				return err
			}
			printScan(c.stdout, res, c.app.profile.Taxonomy.Version, details)
			return nil
		},
	}
	cmd.Flags().BoolVar(&details, "details", false, "list every classified texture")
	return cmd
}

func (c *cli) validateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [root]",
		Short: "Check that every component under root can be assembled",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := c.app.Validate(cmd.Context(), rootArg(args))
			if res != nil && err == nil {
				fmt.Fprintf(c.stdout, "%s: %d %s valid\n", res.Name, len(res.Components), res.Type.Directory())
			}
			if res != nil && err != nil {
				printRejected(c.stdout, res.Rejected)
			}
			return err
		},
	}
}

func (c *cli) watchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [root]",
		Short: "Assemble root and reassemble whenever its inputs change",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.app.Watch(cmd.Context(), rootArg(args), func(r *assemble.Report, err error) {
				if r != nil {
					printReport(c.stdout, r)
				}
				if err != nil {
					fmt.Fprintf(c.stderr, "error: %v\n", err)
				}
			})
		},
	}
	cmd.Flags().Int("workers", 0, "components composed in parallel (default number of CPUs)")
	cmd.Flags().String("metrics-textfile", "", "write run metrics to this file in textfile format")
	return cmd
}

// ---------------------------------------------------------------------------
// Output
// ---------------------------------------------------------------------------

func printReport(w io.Writer, r *assemble.Report) {
	fmt.Fprintf(w, "%s (%s, run %s)\n", r.Name, r.Type.Directory(), r.RunID)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "COMPONENT\tVARIANTS\tTEXTURES\tSTATUS\tTIME")
	for _, c := range r.Components {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", c.Name, variantList(c.Variants), c.Textures, c.Status, c.Duration.Round(time.Millisecond))
	}
	tw.Flush()
	printRejected(w, r.Rejected)
	switch {
	case r.DryRun:
		fmt.Fprintln(w, "dry run: nothing written")
	case r.Assembly != "":
		fmt.Fprintf(w, "assembly: %s\n", r.Assembly)
	}
}

func printScan(w io.Writer, res *scan.Result, taxonomy string, details bool) {
	fmt.Fprintf(w, "%s (%s, taxonomy %s)\n", res.Name, res.Type.Directory(), taxonomy)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "COMPONENT\tVARIANTS\tTEXTURES")
	for _, c := range res.Components {
		fmt.Fprintf(tw, "%s\t%s\t%d\n", c.Name, variantList(c.VariantNames()), c.TextureCount())
		if !details {
			continue
		}
		if !c.HasVariants() {
			printTextures(tw, "", c.Textures)
		}
		for _, v := range c.Variants {
			printTextures(tw, v.Name, v.Textures)
		}
	}
	tw.Flush()
	printRejected(w, res.Rejected)
}

func printTextures(tw io.Writer, variant string, m asset.TextureMap) {
	for _, slot := range m.Slots() {
		fmt.Fprintf(tw, "  %s\t%s\t%s\n", slot, variant, m[slot])
	}
}

func printRejected(w io.Writer, rejected []asset.Rejected) {
	for _, r := range rejected {
		fmt.Fprintf(w, "rejected %s: %v\n", r.Name, r.Reason)
	}
}

func variantList(names []string) string {
	if len(names) == 0 {
		return "-"
	}
	return strings.Join(names, ",")
}

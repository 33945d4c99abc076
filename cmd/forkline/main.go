package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/forkline/forkline/internal/annotate"
	"github.com/forkline/forkline/internal/apply"
	"github.com/forkline/forkline/internal/corpus"
	"github.com/forkline/forkline/internal/extract"
	"github.com/forkline/forkline/internal/feature"
	"github.com/forkline/forkline/internal/gitx"
	"github.com/forkline/forkline/internal/project"
	"github.com/forkline/forkline/internal/reconcile"
	"github.com/forkline/forkline/internal/ui"
)

// Set via ldflags at build time
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func buildVersion() string {
	if commit == "none" {
		return version
	}
	return fmt.Sprintf("%s (%s, %s)", version, commit, date)
}

func main() {
	var noColor bool

	rootCmd := &cobra.Command{
		Use:   "forkline",
		Short: "forkline — patch lifecycle manager for long-lived forks",
		Long:  "A local CLI tool that extracts fork changes from git history into an ordered patch corpus, replays them onto fresh upstream checkouts, and keeps the corpus organized by feature.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			ui.Init(noColor)
		},
	}

	rootCmd.Version = buildVersion()
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	// Command groups
	rootCmd.AddGroup(
		&cobra.Group{ID: "core", Title: "Core Commands:"},
		&cobra.Group{ID: "patches", Title: "Patch Commands:"},
		&cobra.Group{ID: "features", Title: "Feature Commands:"},
	)

	initC := initCmd()
	initC.GroupID = "core"
	doctorC := doctorCmd()
	doctorC.GroupID = "core"

	extractC := extractCmd()
	extractC.GroupID = "patches"
	applyC := applyCmd()
	applyC.GroupID = "patches"

	featureC := featureCmd()
	featureC.GroupID = "features"
	annotateC := annotateCmd()
	annotateC.GroupID = "features"

	rootCmd.AddCommand(initC)
	rootCmd.AddCommand(doctorC)
	rootCmd.AddCommand(extractC)
	rootCmd.AddCommand(applyC)
	rootCmd.AddCommand(featureC)
	rootCmd.AddCommand(annotateC)
	rootCmd.AddCommand(completionCmd())

	if err := rootCmd.Execute(); err != nil {
		var ee exitError
		if errors.As(err, &ee) {
			os.Exit(ee.code)
		}
		os.Exit(1)
	}
}

// exitError carries a specific process exit code through cobra's error
// path instead of calling os.Exit mid-command.
type exitError struct {
	code int
	msg  string
}

func (e exitError) Error() string { return e.msg }

func initCmd() *cobra.Command {
	var source string
	var force bool
	cmd := &cobra.Command{
		Use:     "init",
		Short:   "Initialize a forkline workspace in the current directory",
		Long:    "Create forkline.yaml, the patch corpus directory, and an empty series file. Run this once at the root of the repository that holds your patches.",
		Example: "  forkline init --source ../chromium/src\n  forkline init --source /work/upstream --force",
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return err
			}
			if err := project.Init(cwd, source, force); err != nil {
				return err
			}
			ui.Success("forkline workspace initialized")
			ui.Detail("Root:  ", cwd)
			ui.Detail("Source:", source)
			return nil
		},
	}
	cmd.Flags().StringVar(&source, "source", "../src", "Path to the upstream source tree (git repository)")
	cmd.Flags().BoolVar(&force, "force", false, "Reinitialize even if forkline.yaml already exists")
	return cmd
}

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:          "doctor",
		Short:        "Check the health of the workspace, corpus, series, and feature index",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadProject()
			if err != nil {
				return err
			}
			ui.CommandBanner("DOCTOR", "health check")

			issues := p.CheckHealth()
			if len(issues) == 0 {
				ui.Success("Everything looks good")
				return nil
			}

			hasError := false
			for _, issue := range issues {
				if issue.Severity == "error" {
					ui.Error(fmt.Sprintf("[ERR]  %s", issue.Message))
					hasError = true
				} else {
					ui.Warning(fmt.Sprintf("[WARN] %s", issue.Message))
				}
			}
			if hasError {
				return exitError{code: 2, msg: "health check found problems"}
			}
			return exitError{code: 1, msg: "health check found warnings"}
		},
	}
}

func extractCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract changes from source history into the patch corpus",
		Long:  "Pull a commit or a commit range out of the upstream working repository into per-file patches, appending new files to the series.",
	}
	cmd.AddCommand(extractCommitCmd())
	cmd.AddCommand(extractRangeCmd())
	return cmd
}

type extractFlags struct {
	base           string
	featureName    string
	force          bool
	includeBinary  bool
	nonInteractive bool
}

func (f *extractFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.base, "base", "", "Diff against this commit instead of the natural parent")
	cmd.Flags().StringVar(&f.featureName, "feature", "", "Assign extracted patches to this feature")
	cmd.Flags().BoolVar(&f.force, "force", false, "Overwrite existing corpus entries without asking")
	cmd.Flags().BoolVar(&f.includeBinary, "include-binary", false, "Record binary changes as marker files")
	cmd.Flags().BoolVar(&f.nonInteractive, "non-interactive", false, "Never prompt; refuse overwrites and skip feature assignment prompts")
}

func (f *extractFlags) engine(p *project.Project) *extract.Engine {
	e := &extract.Engine{
		SrcDir:        p.SourceDir(),
		Corpus:        corpus.New(p.PatchesDir()),
		SeriesPath:    p.SeriesPath(),
		IncludeBinary: f.includeBinary,
		Force:         f.force,
	}
	if !f.nonInteractive {
		e.Confirm = func(existing []string) (bool, error) {
			ui.Warning(fmt.Sprintf("%d corpus entries already exist:", len(existing)))
			for _, p := range existing {
				ui.Detail("", p)
			}
			return ui.Confirm("Overwrite them?")
		}
	}
	return e
}

func extractCommitCmd() *cobra.Command {
	var flags extractFlags
	cmd := &cobra.Command{
		Use:   "commit <ref>",
		Short: "Extract a single commit",
		Example: `  forkline extract commit HEAD
  forkline extract commit abc1234 --feature dark-mode
  forkline extract commit abc1234 --base upstream/main`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadProject()
			if err != nil {
				return err
			}
			if err := p.ValidateSource(); err != nil {
				return err
			}

			ui.Logger.Info("extracting commit", "ref", args[0])
			res, err := flags.engine(p).Commit(args[0], flags.base)
			if err != nil {
				if errors.Is(err, extract.ErrCanceled) {
					ui.Info("Cancelled.")
					return nil
				}
				return err
			}

			ui.Success(fmt.Sprintf("Extracted %s", res.Commit.Hash[:minInt(12, len(res.Commit.Hash))]))
			ui.KeyValue("Subject:", res.Commit.Subject)
			ui.KeyValue("Patches:", fmt.Sprintf("%d written, %d added to series", len(res.Written), res.SeriesAdded))
			if res.SkippedBinary > 0 {
				ui.Warning(fmt.Sprintf("%d binary file(s) skipped (use --include-binary to record markers)", res.SkippedBinary))
			}

			return assignToFeature(p, &flags, res.Written, res.Commit.Subject, res.Commit.Hash)
		},
	}
	flags.register(cmd)
	return cmd
}

func extractRangeCmd() *cobra.Command {
	var flags extractFlags
	var squash bool
	cmd := &cobra.Command{
		Use:   "range <start> <end>",
		Short: "Extract a commit range",
		Long:  "Extract every change between start (exclusive) and end (inclusive). By default each commit is extracted individually; with --squash the range collapses into one cumulative patch per file.",
		Example: `  forkline extract range upstream-tag HEAD --squash
  forkline extract range abc1234 def5678 --feature perf-fixes`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadProject()
			if err != nil {
				return err
			}
			if err := p.ValidateSource(); err != nil {
				return err
			}

			ui.Logger.Info("extracting range", "start", args[0], "end", args[1], "squash", squash)
			res, err := flags.engine(p).Range(args[0], args[1], flags.base, squash)
			if err != nil {
				if errors.Is(err, extract.ErrCanceled) {
					ui.Info("Cancelled.")
					return nil
				}
				return err
			}

			mode := "individually"
			if squash {
				mode = "squashed"
			}
			ui.Success(fmt.Sprintf("Extracted %d commit(s) %s", res.Commits, mode))
			ui.KeyValue("Patches:", fmt.Sprintf("%d written, %d added to series", len(res.Written), res.SeriesAdded))
			if res.SkippedBinary > 0 {
				ui.Warning(fmt.Sprintf("%d binary file(s) skipped (use --include-binary to record markers)", res.SkippedBinary))
			}
			if report := res.FailureReport(); report != "" {
				ui.Warning(report)
			}

			if err := assignToFeature(p, &flags, res.Written, "", ""); err != nil {
				return err
			}
			if len(res.Failures) > 0 {
				return fmt.Errorf("%d commit(s) failed to extract", len(res.Failures))
			}
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&squash, "squash", false, "Collapse the range into one cumulative patch per file")
	return cmd
}

// assignToFeature records freshly extracted patches under a feature. With
// --feature the assignment is direct; otherwise, interactively, the user is
// offered the choice.
func assignToFeature(p *project.Project, flags *extractFlags, written []string, defaultDesc, commitHash string) error {
	if len(written) == 0 {
		return nil
	}

	name := flags.featureName
	description := defaultDesc

	if name == "" {
		if flags.nonInteractive {
			return nil
		}
		ok, err := ui.Confirm(fmt.Sprintf("Assign %d extracted patch(es) to a feature?", len(written)))
		if err != nil || !ok {
			return err
		}
		reg, err := feature.Load(p.FeaturesPath())
		if err != nil {
			return err
		}
		options := append(reg.Names(), "(new feature)")
		idx, err := ui.Select("Choose a feature", options)
		if err != nil || idx < 0 {
			return err
		}
		if idx == len(options)-1 {
			name, err = ui.Input("New feature name:")
			if err != nil || name == "" {
				return err
			}
			description, err = ui.Input("Description:")
			if err != nil {
				return err
			}
		} else {
			name = options[idx]
		}
	}

	reg, err := feature.Load(p.FeaturesPath())
	if err != nil {
		return err
	}
	slug := feature.Slugify(name)
	if slug == "" {
		return fmt.Errorf("invalid feature name %q", name)
	}
	added := reg.AddFiles(slug, description, commitHash, written)
	if err := reg.Save(p.FeaturesPath()); err != nil {
		return err
	}
	ui.Success(fmt.Sprintf("Feature %q: %d file(s) added, %d already present", slug, added, len(written)-added))
	return nil
}

func applyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply corpus patches to the upstream source tree",
		Long:  "Replay patches onto the source tree: the whole series in order, one feature's files, or just the patches a corpus-repo commit touched.",
	}
	cmd.AddCommand(applyAllCmd())
	cmd.AddCommand(applyFeatureCmd())
	cmd.AddCommand(applyChangedCmd())
	return cmd
}

func newApplier(p *project.Project, nonInteractive bool) *apply.Applier {
	a := &apply.Applier{
		SrcDir:    p.SourceDir(),
		Corpus:    corpus.New(p.PatchesDir()),
		PatchTool: p.PatchTool(),
	}
	if !nonInteractive {
		a.Resolver = func(patchPath string, attempt int, output string) (apply.Resolution, error) {
			if output != "" {
				fmt.Fprintln(os.Stderr, ui.Dim(output))
			}
			if attempt > 1 {
				ui.Warning(fmt.Sprintf("attempt %d failed", attempt))
			}
			choice, err := ui.ResolveFailure(patchPath)
			if err != nil {
				return apply.Abort, err
			}
			switch choice {
			case "retry":
				ui.PressEnter("Fix the patch or target, then press enter to retry:")
				return apply.Retry, nil
			case "manual":
				ui.PressEnter("Apply the change by hand, then press enter to continue:")
				return apply.Manual, nil
			case "abort":
				return apply.Abort, nil
			default:
				return apply.Skip, nil
			}
		}
	}
	return a
}

// annotateAfterApply turns the changes a run just applied to the source
// tree into per-feature commits there. Only is empty for whole-series
// runs, or a feature name for apply feature.
func annotateAfterApply(p *project.Project, only string) error {
	reg, err := feature.Load(p.FeaturesPath())
	if err != nil {
		return err
	}
	if len(reg.Names()) == 0 {
		return nil
	}
	engine := &annotate.Engine{SrcDir: p.SourceDir()}
	res, err := engine.Run(reg, only)
	if err != nil {
		return err
	}
	for _, name := range res.Committed {
		ui.Success(fmt.Sprintf("committed %s", name))
	}
	return nil
}

func reportSummary(sum apply.Summary) {
	ui.SectionHeader("Summary")
	ui.KeyValue("Applied:", fmt.Sprintf("%d", len(sum.Applied)))
	ui.KeyValue("Skipped:", fmt.Sprintf("%d", len(sum.Skipped)))
	ui.KeyValue("Failed: ", fmt.Sprintf("%d", len(sum.Failed)))
	if len(sum.Missing) > 0 {
		ui.Warning(fmt.Sprintf("%d series entries had no corpus file:", len(sum.Missing)))
		for _, m := range sum.Missing {
			ui.Detail("", m)
		}
	}
	for _, f := range sum.Failed {
		ui.Error(fmt.Sprintf("failed: %s", f))
	}
}

func applyAllCmd() *cobra.Command {
	var nonInteractive bool
	var doAnnotate bool
	var resetTo string
	cmd := &cobra.Command{
		Use:     "all",
		Short:   "Apply every series entry in order",
		Example: "  forkline apply all\n  forkline apply all --reset-to upstream/main --non-interactive",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadProject()
			if err != nil {
				return err
			}
			if err := p.ValidateSource(); err != nil {
				return err
			}

			applier := newApplier(p, nonInteractive)
			applier.Baseline = resetTo
			engine := &apply.Engine{
				Applier: applier,
				Progress: func(relPath string, index, total int) {
					ui.Progress(index, total, relPath)
				},
			}
			ui.Logger.Info("applying series", "source", p.SourceDir())
			if resetTo != "" {
				ui.Logger.Info("resetting targets before each patch", "baseline", resetTo)
			}
			sum, err := engine.ApplyAll(p.SeriesPath())
			reportSummary(sum)
			if err != nil {
				if errors.Is(err, apply.ErrAborted) {
					ui.Info("Aborted.")
					return err
				}
				return err
			}
			ui.Notify("forkline", fmt.Sprintf("apply all finished: %s", sum))
			if !sum.OK() {
				return fmt.Errorf("%d patch(es) failed", len(sum.Failed))
			}
			ui.Success("All patches applied")
			if doAnnotate {
				return annotateAfterApply(p, "")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&nonInteractive, "non-interactive", false, "Never prompt; record failures and continue")
	cmd.Flags().BoolVar(&doAnnotate, "annotate", false, "After a clean run, commit the applied changes as per-feature commits")
	cmd.Flags().StringVar(&resetTo, "reset-to", "", "Reset each target to this source-repo ref before applying its patch")
	return cmd
}

func applyFeatureCmd() *cobra.Command {
	var nonInteractive bool
	var doAnnotate bool
	var resetTo string
	cmd := &cobra.Command{
		Use:     "feature <name>",
		Short:   "Apply one feature's patches",
		Example: "  forkline apply feature dark-mode\n  forkline apply feature dark-mode --reset-to upstream/main",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadProject()
			if err != nil {
				return err
			}
			if err := p.ValidateSource(); err != nil {
				return err
			}
			reg, err := feature.Load(p.FeaturesPath())
			if err != nil {
				return err
			}

			applier := newApplier(p, nonInteractive)
			applier.Baseline = resetTo
			engine := &apply.Engine{
				Applier: applier,
				Progress: func(relPath string, index, total int) {
					ui.Progress(index, total, relPath)
				},
			}
			sum, err := engine.ApplyFeature(reg, args[0])
			if err != nil && !errors.Is(err, apply.ErrAborted) {
				return err
			}
			reportSummary(sum)
			if err != nil {
				ui.Info("Aborted.")
				return err
			}
			if !sum.OK() {
				return fmt.Errorf("%d patch(es) failed", len(sum.Failed))
			}
			ui.Success(fmt.Sprintf("Feature %q applied", args[0]))
			if doAnnotate {
				return annotateAfterApply(p, args[0])
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&nonInteractive, "non-interactive", false, "Never prompt; record failures and continue")
	cmd.Flags().BoolVar(&doAnnotate, "annotate", false, "After a clean run, commit this feature's applied changes")
	cmd.Flags().StringVar(&resetTo, "reset-to", "", "Reset each target to this source-repo ref before applying its patch")
	return cmd
}

func applyChangedCmd() *cobra.Command {
	var commitRef string
	var rangeRefs []string
	var resetTo string
	var dryRun bool
	var yes bool
	var nonInteractive bool
	cmd := &cobra.Command{
		Use:   "changed",
		Short: "Reconcile corpus edits with the source tree",
		Long:  "Look at a commit (or range) in this repository, work out which patches it touched, reset the affected source files to a baseline, and reapply the surviving patches. Deleted patches leave their targets at the baseline.",
		Example: `  forkline apply changed --commit HEAD --reset-to upstream/main
  forkline apply changed --range abc1234,def5678 --reset-to upstream/main --dry-run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if commitRef != "" && len(rangeRefs) > 0 {
				return fmt.Errorf("--commit and --range are mutually exclusive")
			}
			if len(rangeRefs) != 0 && len(rangeRefs) != 2 {
				return fmt.Errorf("--range needs exactly two refs: start,end")
			}

			p, err := loadProject()
			if err != nil {
				return err
			}
			if err := p.ValidateSource(); err != nil {
				return err
			}
			prefix, err := p.CorpusPrefix()
			if err != nil {
				return err
			}

			engine := &reconcile.Engine{
				ForkDir:  p.Root,
				SrcDir:   p.SourceDir(),
				Prefix:   prefix,
				Applier:  newApplier(p, nonInteractive),
				Baseline: resetTo,
			}

			sp := ui.NewSpinner("Computing reconciliation plan")
			var plan *reconcile.Plan
			if len(rangeRefs) == 2 {
				plan, err = engine.ComputeRange(rangeRefs[0], rangeRefs[1])
			} else {
				if commitRef == "" {
					commitRef = "HEAD"
				}
				plan, err = engine.ComputeCommit(commitRef)
			}
			sp.Stop()
			if err != nil {
				return err
			}
			if plan.Empty() {
				ui.EmptyState("No corpus changes in that revision.")
				return nil
			}

			ui.SectionHeader("Plan")
			fmt.Fprintln(os.Stderr, plan.Summary())

			if dryRun {
				res, _ := engine.Execute(plan, true)
				ui.Info(fmt.Sprintf("Dry run: %d would be reapplied, %d reset only.", len(res.Applied), len(res.ResetOnly)))
				return nil
			}

			if !yes {
				if nonInteractive {
					return fmt.Errorf("refusing to modify the source tree without --yes in non-interactive mode")
				}
				proceed, err := ui.Confirm(fmt.Sprintf("Reset and reapply %d target(s)?", len(plan.Changes)))
				if err != nil {
					return err
				}
				if !proceed {
					ui.Info("Cancelled.")
					return nil
				}
			}

			ui.Logger.Info("reconciling", "targets", len(plan.Changes), "baseline", resetTo)
			res, err := engine.Execute(plan, false)
			ui.SectionHeader("Summary")
			ui.KeyValue("Reapplied: ", fmt.Sprintf("%d", len(res.Applied)))
			ui.KeyValue("Reset only:", fmt.Sprintf("%d", len(res.ResetOnly)))
			ui.KeyValue("Failed:    ", fmt.Sprintf("%d", len(res.Failed)))
			for _, f := range res.Failed {
				ui.Error(fmt.Sprintf("failed: %s", f))
			}
			if err != nil {
				ui.Info("Aborted.")
				return err
			}
			if len(res.Failed) > 0 {
				return fmt.Errorf("%d target(s) failed to reconcile", len(res.Failed))
			}
			ui.Success("Source tree reconciled")
			return nil
		},
	}
	cmd.Flags().StringVar(&commitRef, "commit", "", "Reconcile the corpus changes of this commit (default HEAD)")
	cmd.Flags().StringSliceVar(&rangeRefs, "range", nil, "Reconcile a commit range: --range start,end")
	cmd.Flags().StringVar(&resetTo, "reset-to", "", "Source-repo ref targets are reset to before reapplying (required)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show the plan without touching anything")
	cmd.Flags().BoolVar(&yes, "yes", false, "Skip the confirmation prompt")
	cmd.Flags().BoolVar(&nonInteractive, "non-interactive", false, "Never prompt on patch failures")
	_ = cmd.MarkFlagRequired("reset-to")
	return cmd
}

func featureCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feature",
		Short: "Manage the feature index",
		Long:  "List, inspect, and grow the mapping from feature names to the patch files that implement them.",
	}
	cmd.AddCommand(featureListCmd())
	cmd.AddCommand(featureShowCmd())
	cmd.AddCommand(featureAddCmd())
	cmd.AddCommand(featureClassifyCmd())
	return cmd
}

func featureListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all features",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadProject()
			if err != nil {
				return err
			}
			reg, err := feature.Load(p.FeaturesPath())
			if err != nil {
				return err
			}
			names := reg.Names()
			if len(names) == 0 {
				ui.EmptyState("No features yet. Use 'forkline feature add' or extract with --feature.")
				return nil
			}

			var rows [][]string
			for _, name := range names {
				f, _ := reg.Get(name)
				rows = append(rows, []string{name, fmt.Sprintf("%d", len(f.Files)), f.Description})
			}
			ui.Table([]string{"FEATURE", "FILES", "DESCRIPTION"}, rows)

			files, err := corpus.New(p.PatchesDir()).List()
			if err == nil {
				if n := len(reg.Unclassified(files)); n > 0 {
					ui.Warning(fmt.Sprintf("%d unclassified patch file(s) — run 'forkline feature classify'", n))
				}
			}
			return nil
		},
	}
}

func featureShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Show one feature's description and files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadProject()
			if err != nil {
				return err
			}
			reg, err := feature.Load(p.FeaturesPath())
			if err != nil {
				return err
			}
			f, ok := reg.Get(args[0])
			if !ok {
				return fmt.Errorf("unknown feature %q", args[0])
			}

			var b strings.Builder
			fmt.Fprintf(&b, "# %s\n\n", args[0])
			if f.Description != "" {
				fmt.Fprintf(&b, "%s\n\n", f.Description)
			}
			if f.Commit != "" {
				fmt.Fprintf(&b, "First extracted from `%s`.\n\n", f.Commit)
			}
			fmt.Fprintf(&b, "## Files (%d)\n\n", len(f.Files))
			for _, file := range f.Files {
				fmt.Fprintf(&b, "- `%s`\n", file)
			}
			ui.RenderMarkdown(b.String())
			return nil
		},
	}
}

func featureAddCmd() *cobra.Command {
	var description string
	var commitRef string
	var files []string
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a feature or add files to it",
		Long:  "Add patch files to a feature, creating it if needed. Files can be named explicitly with --file, or taken from the files a source-tree commit touched with --commit.",
		Example: `  forkline feature add dark-mode --file chrome/browser/themes/theme_service.cc
  forkline feature add dark-mode --commit HEAD --description "Dark mode support"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadProject()
			if err != nil {
				return err
			}
			name := feature.Slugify(args[0])
			if name == "" {
				return fmt.Errorf("invalid feature name %q", args[0])
			}

			toAdd := append([]string(nil), files...)
			hash := ""
			if commitRef != "" {
				if err := p.ValidateSource(); err != nil {
					return err
				}
				srcDir := p.SourceDir()
				if !gitx.CommitExists(srcDir, commitRef) {
					return fmt.Errorf("commit %s not found in %s", commitRef, srcDir)
				}
				changed, err := gitx.ChangedFiles(srcDir, commitRef)
				if err != nil {
					return err
				}
				if len(changed) == 0 {
					return fmt.Errorf("commit %s touched no files", commitRef)
				}
				toAdd = append(toAdd, changed...)
				if info, err := gitx.Info(srcDir, commitRef); err == nil {
					hash = info.Hash
					if description == "" {
						description = info.Subject
					}
				}
			}
			if len(toAdd) == 0 {
				return fmt.Errorf("nothing to add: use --file or --commit")
			}

			c := corpus.New(p.PatchesDir())
			for _, f := range toAdd {
				if !c.Exists(f) {
					ui.Warning(fmt.Sprintf("not in corpus: %s", f))
				}
			}

			reg, err := feature.Load(p.FeaturesPath())
			if err != nil {
				return err
			}
			added := reg.AddFiles(name, description, hash, toAdd)
			if err := reg.Save(p.FeaturesPath()); err != nil {
				return err
			}
			ui.Success(fmt.Sprintf("Feature %q: %d file(s) added, %d already present", name, added, len(toAdd)-added))
			return nil
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "Feature description (kept if the feature already has one)")
	cmd.Flags().StringVar(&commitRef, "commit", "", "Take files from the paths this source-tree commit touched")
	cmd.Flags().StringSliceVar(&files, "file", nil, "Corpus-relative patch file to add (repeatable)")
	return cmd
}

func featureClassifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify",
		Short: "Interactively assign unclassified patches to features",
		Long:  "Walk every corpus file no feature claims and assign each to an existing or new feature. Progress is saved after every decision, so ctrl-c is safe; the next run picks up where this one stopped.",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadProject()
			if err != nil {
				return err
			}
			reg, err := feature.Load(p.FeaturesPath())
			if err != nil {
				return err
			}
			files, err := corpus.New(p.PatchesDir()).List()
			if err != nil {
				return err
			}
			if len(reg.Unclassified(files)) == 0 {
				ui.Success("Every corpus file is classified")
				return nil
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			res, err := reg.Classify(ctx, p.FeaturesPath(), files, classifyPicker)
			if err != nil {
				if errors.Is(err, feature.ErrInterrupted) {
					ui.Warning(err.Error())
					ui.Info(fmt.Sprintf("%d assigned, %d skipped so far. Run classify again to continue.", res.Assigned, res.Skipped))
					return nil
				}
				return err
			}
			ui.Success(fmt.Sprintf("Classification done: %d assigned, %d skipped", res.Assigned, res.Skipped))
			return nil
		},
	}
}

func classifyPicker(file string, features []string, index, total int) (feature.Assignment, error) {
	ui.Progress(index+1, total, ui.Bold(file))
	options := append(append([]string(nil), features...), "(new feature)", "(skip)")
	idx, err := ui.Select("Assign to feature", options)
	if err != nil {
		return feature.Assignment{}, err
	}
	switch {
	case idx < 0 || idx == len(options)-1:
		return feature.Assignment{}, nil
	case idx == len(options)-2:
		name, err := ui.Input("New feature name:")
		if err != nil || name == "" {
			return feature.Assignment{}, err
		}
		desc, err := ui.Input("Description:")
		if err != nil {
			return feature.Assignment{}, err
		}
		return feature.Assignment{Feature: name, Description: desc}, nil
	default:
		return feature.Assignment{Feature: options[idx]}, nil
	}
}

func annotateCmd() *cobra.Command {
	var only string
	cmd := &cobra.Command{
		Use:   "annotate",
		Short: "Commit applied source-tree changes as per-feature commits",
		Long:  "Group uncommitted source-tree modifications by the feature that owns each file and create one commit per feature in the source repository, using the feature's name and description as the message. Features with no modified files are skipped.",
		Example: "  forkline annotate\n  forkline annotate --feature dark-mode",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadProject()
			if err != nil {
				return err
			}
			if err := p.ValidateSource(); err != nil {
				return err
			}
			reg, err := feature.Load(p.FeaturesPath())
			if err != nil {
				return err
			}
			if len(reg.Names()) == 0 {
				ui.EmptyState("No features to annotate.")
				return nil
			}

			engine := &annotate.Engine{
				SrcDir: p.SourceDir(),
				Progress: func(name string, index, total int) {
					ui.Progress(index, total, name)
				},
			}
			res, err := engine.Run(reg, only)
			if err != nil {
				return err
			}

			sort.Strings(res.Committed)
			for _, name := range res.Committed {
				ui.Success(fmt.Sprintf("committed %s", name))
			}
			if len(res.Committed) == 0 {
				ui.EmptyState("Nothing to commit.")
			} else {
				ui.Success(fmt.Sprintf("%d feature commit(s) created, %d feature(s) clean", len(res.Committed), len(res.Clean)))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&only, "feature", "", "Annotate just this feature")
	return cmd
}

func completionCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "completion [bash|zsh|fish]",
		Short:     "Generate shell completion scripts",
		Long:      "Generate shell completion scripts for bash, zsh, or fish. Output the script to stdout for sourcing in your shell profile.",
		Example:   "  forkline completion bash > ~/.bashrc.d/forkline\n  forkline completion zsh > ~/.zfunc/_forkline",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"bash", "zsh", "fish"},
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(os.Stdout)
			case "zsh":
				return cmd.Root().GenZshCompletion(os.Stdout)
			case "fish":
				return cmd.Root().GenFishCompletion(os.Stdout, true)
			default:
				return fmt.Errorf("unsupported shell: %s (use bash, zsh, or fish)", args[0])
			}
		},
	}
}

func loadProject() (*project.Project, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	root, err := project.Locate(cwd)
	if err != nil {
		return nil, err
	}
	return project.Load(root)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

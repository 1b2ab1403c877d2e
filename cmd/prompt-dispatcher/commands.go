package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"prompt-dispatcher/internal/common/config"
	"prompt-dispatcher/internal/dataset"
	"prompt-dispatcher/internal/dispatch"
	"prompt-dispatcher/internal/prompt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

func newTemplatesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "templates",
		Short: "List the available template identifiers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, id := range prompt.IDs() {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}
}

func newRenderCmd() *cobra.Command {
	var templateID, datasetRef, baseDir, embedMode string

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Print the composed prompt without calling the generation service",
		Long: `render prints exactly the text dispatch would send. Dataset base_dir and
embed_mode come from the config when one loads; --base-dir and --embed override them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := renderSettings()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("base-dir") {
				settings.BaseDir = baseDir
			}
			if cmd.Flags().Changed("embed") {
				settings.EmbedMode = embedMode
			}
			if settings.EmbedMode != config.EmbedReference && settings.EmbedMode != config.EmbedInline {
				return fmt.Errorf("embed mode %q is not supported", settings.EmbedMode)
			}

			d := dispatch.New(dispatch.Options{
				Resolver:  dataset.NewResolver(afero.NewOsFs(), settings.BaseDir),
				EmbedMode: settings.EmbedMode,
			})
			rendered, err := d.Render(templateID, datasetRef)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), rendered.Text)
			return nil
		},
	}

	cmd.Flags().StringVarP(&templateID, "template", "t", "", "Template identifier (zero_shot, few_shot, chain_of_thought)")
	cmd.Flags().StringVarP(&datasetRef, "dataset", "d", "", "Path to the dataset file")
	cmd.Flags().StringVar(&baseDir, "base-dir", ".", "Directory relative dataset paths resolve against (overrides dataset.base_dir)")
	cmd.Flags().StringVar(&embedMode, "embed", config.EmbedReference, "Dataset embed mode: reference or inline (overrides dataset.embed_mode)")
	_ = cmd.MarkFlagRequired("template")
	_ = cmd.MarkFlagRequired("dataset")
	return cmd
}

// renderSettings returns the dataset section render should use. An explicit
// --config must load; otherwise a config that fails to load leaves the defaults.
func renderSettings() (config.DatasetConfig, error) {
	settings := config.DatasetConfig{BaseDir: ".", EmbedMode: config.EmbedReference}

	if cfgFile != "" {
		cfg, err := config.LoadFromFile(cfgFile)
		if err != nil {
			return settings, fmt.Errorf("config load failed: %w", err)
		}
		return cfg.Dataset, nil
	}

	if cfg, err := config.Load(); err == nil {
		return cfg.Dataset, nil
	}
	return settings, nil
}

func newDispatchCmd() *cobra.Command {
	var templateID, datasetRef string
	var printResponse bool

	cmd := &cobra.Command{
		Use:   "dispatch",
		Short: "Render a template, send it to the generation service and capture the reply",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, afero.NewOsFs())
			if err != nil {
				return err
			}
			defer a.close()

			result, err := a.dispatcher.Dispatch(ctx, templateID, datasetRef)
			if err != nil {
				return err
			}

			printResult(cmd, result, printResponse)
			return nil
		},
	}

	cmd.Flags().StringVarP(&templateID, "template", "t", "", "Template identifier (zero_shot, few_shot, chain_of_thought)")
	cmd.Flags().StringVarP(&datasetRef, "dataset", "d", "", "Path to the dataset file")
	cmd.Flags().BoolVar(&printResponse, "print", false, "Also print the captured response text")
	_ = cmd.MarkFlagRequired("template")
	_ = cmd.MarkFlagRequired("dataset")
	return cmd
}

func newRunAllCmd() *cobra.Command {
	var datasetRef string
	var templateIDs []string

	cmd := &cobra.Command{
		Use:   "run-all",
		Short: "Dispatch several templates in parallel against one dataset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, afero.NewOsFs())
			if err != nil {
				return err
			}
			defer a.close()

			return runAll(ctx, cmd, a.dispatcher, templateIDs, datasetRef)
		},
	}

	defaults := make([]string, 0, 3)
	for _, id := range prompt.IDs() {
		defaults = append(defaults, string(id))
	}

	cmd.Flags().StringVarP(&datasetRef, "dataset", "d", "", "Path to the dataset file")
	cmd.Flags().StringSliceVar(&templateIDs, "templates", defaults, "Templates to dispatch")
	_ = cmd.MarkFlagRequired("dataset")
	return cmd
}

func runAll(ctx context.Context, cmd *cobra.Command, d *dispatch.Dispatcher, templateIDs []string, datasetRef string) error {
	outcomes, err := d.DispatchAll(ctx, templateIDs, datasetRef)
	for _, o := range outcomes {
		if o.Err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", o.TemplateID, o.Err)
			continue
		}
		printResult(cmd, o.Result, false)
	}
	return err
}

func printResult(cmd *cobra.Command, result *dispatch.Result, withText bool) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", result.Response.TemplateID, result.Response.ID, result.Location)
	if withText {
		fmt.Fprintln(cmd.OutOrStdout())
		fmt.Fprintln(cmd.OutOrStdout(), result.Response.Text)
	}
}

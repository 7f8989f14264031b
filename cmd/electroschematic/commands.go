package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kalambet/electroschematic/internal/api"
	"github.com/kalambet/electroschematic/internal/appstate"
	"github.com/kalambet/electroschematic/internal/config"
	"github.com/kalambet/electroschematic/internal/imagecodec"
	"github.com/kalambet/electroschematic/internal/pipeline"
	"github.com/kalambet/electroschematic/internal/schematic"
	"github.com/kalambet/electroschematic/internal/storage"
)

// --- analyze ---

var analyzeCmd = &cobra.Command{
	Use:   "analyze <photo>",
	Short: "Analyze a device photo and draw its diagram",
	Long: `Analyze a device photo and draw its diagram.

The run is saved to history like one started from the API.

Examples:
  electroschematic analyze ./radio.jpg
  electroschematic analyze ./radio.jpg --out radio-diagram.png
  electroschematic analyze ./radio.jpg --json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")
		asJSON, _ := cmd.Flags().GetBool("json")

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.close()

		return runAnalyze(cmd.Context(), a.orch, args[0], out, asJSON)
	},
}

func init() {
	analyzeCmd.Flags().String("out", "", "write the generated diagram to this file")
	analyzeCmd.Flags().Bool("json", false, "print the result as JSON instead of formatted text")
}

// analyzeRunner is the orchestrator surface the analyze command needs.
type analyzeRunner interface {
	Run(ctx context.Context, up pipeline.Upload) (schematic.HistoryItem, error)
	Subscribe() (<-chan appstate.AppState, func())
}

func runAnalyze(ctx context.Context, p analyzeRunner, path, out string, asJSON bool) error {
	states, cancel := p.Subscribe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		var last appstate.Status
		for s := range states {
			if s.Status == last {
				continue
			}
			last = s.Status
			switch s.Status {
			case appstate.StatusAnalyzing:
				printStep("Analyzing %s...", path)
			case appstate.StatusGenerating:
				printStep("Drawing the diagram...")
			}
		}
	}()

	item, err := p.Run(ctx, pipeline.FileUpload(path))
	cancel()
	<-done
	if err != nil {
		return err
	}

	if out != "" {
		if err := writeImageFile(out, item.GeneratedImage); err != nil {
			return err
		}
	}

	if asJSON {
		if err := printItemJSON(item); err != nil {
			return err
		}
	} else if err := printItem(item); err != nil {
		return err
	}

	if out != "" {
		printSuccess("Diagram written to %s", out)
	}
	return nil
}

// --- history ---

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Browse and manage past analyses",
}

// historyReader is the read side of the history store.
type historyReader interface {
	Items(ctx context.Context) ([]schematic.HistoryItem, error)
	Get(ctx context.Context, id string) (schematic.HistoryItem, error)
}

// withHistory opens the configured history store for one command.
func withHistory(fn func(h *storage.History) error) error {
	cfg, err := config.LoadLocal()
	if err != nil {
		return err
	}
	h := openHistory(cfg)
	defer h.Close()
	return fn(h)
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List past analyses, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		return withHistory(func(h *storage.History) error {
			return listHistory(cmd.Context(), h, limit)
		})
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one past analysis",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		return withHistory(func(h *storage.History) error {
			return showHistory(cmd.Context(), h, args[0], asJSON)
		})
	},
}

var historyExportCmd = &cobra.Command{
	Use:   "export-image <id> <file>",
	Short: "Write the diagram (or the original photo) of a past analysis to a file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, _ := cmd.Flags().GetString("kind")
		return withHistory(func(h *storage.History) error {
			return exportImage(cmd.Context(), h, args[0], kind, args[1])
		})
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every stored analysis",
	RunE: func(cmd *cobra.Command, args []string) error {
		confirm, _ := cmd.Flags().GetBool("confirm")
		if !confirm {
			printWarning("This will delete ALL stored analyses. Use --confirm to proceed.")
			return nil
		}
		return withHistory(func(h *storage.History) error {
			if err := h.ClearAll(cmd.Context()); err != nil {
				return err
			}
			printSuccess("History cleared")
			return nil
		})
	},
}

func init() {
	historyListCmd.Flags().Int("limit", 0, "maximum number of entries to list (0 for all)")
	historyShowCmd.Flags().Bool("json", false, "print as JSON")
	historyExportCmd.Flags().String("kind", "generated", "which image to export: generated or original")
	historyClearCmd.Flags().Bool("confirm", false, "confirm deletion")

	historyCmd.AddCommand(historyListCmd, historyShowCmd, historyExportCmd, historyClearCmd)
}

func listHistory(ctx context.Context, h historyReader, limit int) error {
	items, err := h.Items(ctx)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		printWarning("No analyses yet.")
		return nil
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tDEVICE\tCOMPONENTS")
	for _, it := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n",
			it.ID,
			it.CreatedAt().Local().Format(time.DateTime),
			it.Analysis.DeviceName,
			len(it.Analysis.Components),
		)
	}
	return tw.Flush()
}

func showHistory(ctx context.Context, h historyReader, id string, asJSON bool) error {
	item, err := h.Get(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("no analysis with id %s", id)
		}
		return err
	}
	if asJSON {
		return printItemJSON(item)
	}
	return printItem(item)
}

func exportImage(ctx context.Context, h historyReader, id, kind, path string) error {
	item, err := h.Get(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("no analysis with id %s", id)
		}
		return err
	}

	var encoded string
	switch kind {
	case "generated":
		encoded = item.GeneratedImage
	case "original":
		encoded = item.OriginalImage
	default:
		return fmt.Errorf("unknown image kind %q (want generated or original)", kind)
	}
	if err := writeImageFile(path, encoded); err != nil {
		return err
	}
	printSuccess("Wrote %s image of %s to %s", kind, item.Analysis.DeviceName, path)
	return nil
}

// --- status ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show server and configuration status",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadLocal()
		if err != nil {
			return err
		}
		showStatus(cmd.Context(), newAPIClient(cfg), cfg)
		return nil
	},
}

func showStatus(ctx context.Context, client *apiClient, cfg config.Config) {
	fmt.Fprintln(stderr, versionString())

	resp, err := client.get(ctx, "/health")
	running := err == nil && resp.StatusCode == 200
	switch {
	case err != nil:
		printStatus("Server", "stopped")
	case running:
		resp.Body.Close()
		printStatus("Server", "running on port %d", cfg.Server.Port)
	default:
		resp.Body.Close()
		printStatus("Server", "error (HTTP %d)", resp.StatusCode)
	}

	if running {
		if resp, err := client.get(ctx, "/state"); err == nil {
			var s api.StateView
			if decodeJSON(resp, &s) == nil {
				printStatus("Status", "%s", s.Status)
				printStatus("History", "%d items", s.HistoryCount)
			}
		}
	}

	printStatus("Analysis model", "%s", cfg.Gemini.AnalysisModel)
	printStatus("Image model", "%s", cfg.Gemini.ImageModel)
	if cfg.Gemini.APIKey == "" {
		printStatus("API key", "%s", colorize(colorRed, "missing"))
	} else {
		printStatus("API key", "set")
	}
	printStatus("Storage", "%s", cfg.Storage.Backend)
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadLocal()
		if err != nil {
			return err
		}

		fmt.Fprintf(stdout, "# %s\n", config.Path())
		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(stdout, "  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) > 0 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		return config.ValidKeys(), cobra.ShellCompDirectiveNoFileComp
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s", key)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd, configSetCmd)
}

// --- shared ---

func writeImageFile(path, encoded string) error {
	if encoded == "" {
		return errors.New("no image to write")
	}
	raw, err := imagecodec.Decode(encoded)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func printItem(item schematic.HistoryItem) error {
	rendered, err := renderMarkdown(analysisMarkdown(item.Analysis))
	if err != nil {
		return err
	}
	fmt.Fprint(stdout, rendered)
	fmt.Fprintf(stdout, "%s\n\n", schematic.ShareText(item.Analysis))
	printStatus("ID", "%s", item.ID)
	printStatus("Created", "%s", item.CreatedAt().Local().Format(time.DateTime))
	return nil
}

func printItemJSON(item schematic.HistoryItem) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		ID        string                   `json:"id"`
		Timestamp int64                    `json:"timestamp"`
		Analysis  schematic.AnalysisResult `json:"analysis"`
		ShareText string                   `json:"shareText"`
	}{item.ID, item.Timestamp, item.Analysis, schematic.ShareText(item.Analysis)})
}

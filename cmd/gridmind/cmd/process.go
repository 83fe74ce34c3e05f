package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gridmind/gridmind/internal/core"
	"github.com/gridmind/gridmind/internal/engine"
	"github.com/gridmind/gridmind/internal/export"
)

var processCmd = &cobra.Command{
	Use:   "process <snapshot.json>",
	Short: "Apply an instruction to a sheet snapshot offline",
	Long: `Apply a template instruction to one column of a sheet snapshot and
write the results without starting a server.

The snapshot is a JSON file in the same format the store persists. Results
are written atomically; a crash never leaves a truncated output file.

Examples:
  # Sentiment-tag column B from column A
  gridmind process sheet.json --column B --source A \
    --template sentiment --instruction "Classify the review sentiment" \
    --out results.json

  # CSV output, reprocessing manual overrides too
  gridmind process sheet.json -c B -s A -t freeform \
    -i "Summarize in one line" --format csv --force -o results.csv`,
	Args: cobra.ExactArgs(1),
	RunE: runProcess,
}

var (
	processColumn      string
	processSource      string
	processTemplate    string
	processInstruction string
	processParams      []string
	processOut         string
	processFormat      string
	processForce       bool
)

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().StringVarP(&processColumn, "column", "c", "", "target column (required)")
	processCmd.Flags().StringVarP(&processSource, "source", "s", "", "source column (required)")
	processCmd.Flags().StringVarP(&processTemplate, "template", "t", "freeform", "template id")
	processCmd.Flags().StringVarP(&processInstruction, "instruction", "i", "", "instruction body (required)")
	processCmd.Flags().StringArrayVar(&processParams, "param", nil, "template parameter as key=value (repeatable)")
	processCmd.Flags().StringVarP(&processOut, "out", "o", "", "output file (required)")
	processCmd.Flags().StringVar(&processFormat, "format", "json", "output format (json, csv)")
	processCmd.Flags().BoolVar(&processForce, "force", false, "reprocess cells with manual overrides")

	_ = processCmd.MarkFlagRequired("column")
	_ = processCmd.MarkFlagRequired("source")
	_ = processCmd.MarkFlagRequired("instruction")
	_ = processCmd.MarkFlagRequired("out")
}

func runProcess(_ *cobra.Command, args []string) error {
	if processFormat != "json" && processFormat != "csv" {
		return fmt.Errorf("unsupported format %q (want json or csv)", processFormat)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	snap, err := readSnapshot(args[0])
	if err != nil {
		return err
	}

	st, err := buildStack(cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sess := st.service.Open(snap)

	inst := &core.ColumnInstruction{
		Column:       core.ColumnID(processColumn),
		TemplateID:   core.TemplateID(processTemplate),
		Instruction:  processInstruction,
		SourceColumn: core.ColumnID(processSource),
		Params:       parseParams(processParams),
	}
	if err := sess.Orchestrator.SetInstruction(inst); err != nil {
		return err
	}

	summary, err := sess.Orchestrator.ApplyColumn(ctx, inst.Column, engine.ApplyOptions{Force: processForce})
	if err != nil {
		return err
	}
	logger.Info("column applied",
		"column", summary.Column,
		"jobs", summary.Jobs,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"cancelled", summary.Cancelled,
		"skipped", summary.Skipped)

	cells := sess.Tracker.ExportViews()
	if processFormat == "csv" {
		err = export.WriteCSV(processOut, cells)
	} else {
		err = export.WriteJSON(processOut, snap.ID, cells)
	}
	if err != nil {
		return err
	}

	fmt.Printf("%d/%d cells succeeded, results written to %s\n",
		summary.Succeeded, summary.Jobs, processOut)
	if summary.Failed > 0 {
		return fmt.Errorf("%d cells failed", summary.Failed)
	}
	return nil
}

func readSnapshot(path string) (*core.SheetSnapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}
	var snap core.SheetSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parsing snapshot: %w", err)
	}
	if snap.ID == "" {
		return nil, fmt.Errorf("snapshot has no sheet id")
	}
	return &snap, nil
}

func parseParams(pairs []string) map[string]string {
	if len(pairs) == 0 {
		return nil
	}
	params := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found {
			continue
		}
		params[key] = value
	}
	return params
}

package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/hexastack/agentic/channel"
	"github.com/hexastack/agentic/cli/internal/security"
	"github.com/hexastack/agentic/cli/internal/telemetry"
	"github.com/hexastack/agentic/runtime"
)

var (
	varsFile  string
	inputFile string
	recipient string
)

var runCmd = &cobra.Command{
	Use:   "run <workflow-file>",
	Short: "Run a workflow once and print its outputs",
	Long: `Run executes a workflow with vars and input read from JSON or YAML files.
Outbound messages are not delivered; they are logged and the run result,
outputs included, is printed as JSON.

Example:
  agentic run workflows/greeting.yaml --vars vars.json
  agentic run workflows/support.yaml --input message.yaml --recipient user-1
`,
	Args: cobra.ExactArgs(1),
	RunE: runWorkflow,
}

func init() {
	runCmd.Flags().StringVar(&varsFile, "vars", "", "File holding the run variables ($vars)")
	runCmd.Flags().StringVar(&inputFile, "input", "", "File holding the triggering payload ($input)")
	runCmd.Flags().StringVar(&recipient, "recipient", "cli", "Recipient id of the simulated conversation")
}

func runWorkflow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	l := newLogger(cmd.ErrOrStderr(), cfg)

	files := []string{args[0]}
	for _, f := range []string{varsFile, inputFile} {
		if f != "" {
			files = append(files, f)
		}
	}
	if err := security.ValidatePathsWithinBoundary(projectDir, files...); err != nil {
		return err
	}

	recorder := channel.NewRecorder(cfg.Channels.Default, l)
	registry, err := buildRegistry(cfg, recorder)
	if err != nil {
		return err
	}
	shutdown, err := startRegistry(cmd.Context(), registry)
	if err != nil {
		return err
	}
	defer shutdown(cmd.Context())

	wf, err := runtime.LoadWorkflowFile(args[0], registry)
	if err != nil {
		return err
	}
	vars, err := readObject(varsFile)
	if err != nil {
		return err
	}
	input, err := readObject(inputFile)
	if err != nil {
		return err
	}

	interp := runtime.NewInterpreter(registry,
		runtime.WithLogger(l),
		runtime.WithObservers(telemetry.LogObserver(l)))
	result, runErr := interp.Run(cmd.Context(), wf, runtime.RunRequest{
		Vars:    vars,
		Input:   input,
		Channel: runtime.Channel{Name: cfg.Channels.Default, Recipient: recipient},
	})

	report := map[string]any{"result": result}
	var execErr *runtime.ExecutionError
	if errors.As(runErr, &execErr) {
		report["error"] = execErr.ToMap()
	}
	if deliveries := recorder.Deliveries(); len(deliveries) > 0 {
		sent := make([]any, len(deliveries))
		for i, d := range deliveries {
			sent[i] = d.Envelope
		}
		report["sent"] = sent
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return err
	}
	return runErr
}

// readObject reads a JSON or YAML object. An empty path yields nil.
func readObject(path string) (map[string]any, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return out, nil
}

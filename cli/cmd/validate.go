package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hexastack/agentic/channel"
	"github.com/hexastack/agentic/runtime"
)

var validateCmd = &cobra.Command{
	Use:   "validate <workflow-file>...",
	Short: "Load workflow files and report every definition problem",
	Long: `Validate loads each workflow against the built-in actions without running
it, and lists all problems found: unknown tasks or actions, unparseable
expressions, bad metadata.

Example:
  agentic validate workflows/greeting.yaml
  agentic validate workflows/*.yaml
`,
	Args: cobra.MinimumNArgs(1),
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	registry, err := buildRegistry(cfg, channel.NewRecorder("validate", nil))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	failed := 0
	for _, path := range args {
		wf, err := runtime.LoadWorkflowFile(path, registry)
		if err == nil {
			fmt.Fprintf(out, "ok    %s (%s %s, %d tasks)\n", path, wf.Name(), wf.Version(), len(wf.Tasks()))
			continue
		}

		failed++
		var defErr *runtime.DefinitionValidationError
		if !errors.As(err, &defErr) {
			fmt.Fprintf(out, "FAIL  %s: %v\n", path, err)
			continue
		}
		fmt.Fprintf(out, "FAIL  %s: %d problem(s)\n", path, len(defErr.Problems))
		for _, p := range defErr.Problems {
			fmt.Fprintf(out, "      - %s\n", p)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d workflow(s) invalid", failed, len(args))
	}
	return nil
}

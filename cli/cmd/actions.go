package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hexastack/agentic/channel"
)

var showSchemas bool

var actionsCmd = &cobra.Command{
	Use:   "actions",
	Short: "List the registered actions",
	Args:  cobra.NoArgs,
	RunE:  listActions,
}

func init() {
	actionsCmd.Flags().BoolVar(&showSchemas, "schemas", false, "Print input, output and settings schemas as JSON")
}

func listActions(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	registry, err := buildRegistry(cfg, channel.NewRecorder("actions", nil))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if showSchemas {
		list := make([]map[string]any, 0)
		for _, a := range registry.List() {
			list = append(list, map[string]any{
				"name":            a.Name(),
				"description":     a.Description(),
				"input_schema":    a.InputSchema(),
				"output_schema":   a.OutputSchema(),
				"settings_schema": a.SettingsSchema(),
			})
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(list)
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tDESCRIPTION")
	for _, a := range registry.List() {
		fmt.Fprintf(w, "%s\t%s\n", a.Name(), a.Description())
	}
	return w.Flush()
}

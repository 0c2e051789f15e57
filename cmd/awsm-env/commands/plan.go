package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/systmms/awsmenv/internal/resolve"
)

func NewPlanCommand(rt *Runtime) *cobra.Command {
	var (
		in         inputFlags
		outputJSON bool
	)

	cmd := &cobra.Command{
		Use:   "plan [spec]",
		Short: "Show what will be resolved (no secrets fetched)",
		Long: `Plan shows, for every key of the annotated env file, where its value would
come from and which secret name each directive expands to, without calling
any provider. Missing placeholders are all reported at once.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := rt.open(args)
			if err != nil {
				return err
			}
			params, err := s.params(in)
			if err != nil {
				return err
			}

			result := s.resolver(nil).Plan(s.doc.Declarations, params)

			out := cmd.OutOrStdout()
			if outputJSON {
				if err := outputPlanJSON(out, result); err != nil {
					return err
				}
			} else {
				outputPlanTable(out, result, s.specPath)
			}

			if len(result.Errors) > 0 {
				return fmt.Errorf("plan completed with %d errors: %w", len(result.Errors), explain(result.Errors[0]))
			}
			return nil
		},
	}

	addInputFlags(cmd, &in)
	cmd.Flags().BoolVar(&outputJSON, "json", false, "Output in JSON format")

	return cmd
}

type planEntryJSON struct {
	Key      string `json:"key"`
	Line     int    `json:"line,omitempty"`
	Source   string `json:"source"`
	Provider string `json:"provider,omitempty"`
	Name     string `json:"name,omitempty"`
	Optional bool   `json:"optional"`
	Default  bool   `json:"default"`
	Override bool   `json:"override"`
	Error    string `json:"error,omitempty"`
}

// outputPlanJSON outputs the plan result as JSON
func outputPlanJSON(w io.Writer, result *resolve.PlanResult) error {
	entries := make([]planEntryJSON, 0, len(result.Entries))
	for _, e := range result.Entries {
		entry := planEntryJSON{
			Key:      e.Key,
			Line:     e.Line,
			Source:   e.Source().String(),
			Name:     e.Resource,
			Optional: e.Optional,
			Default:  e.HasDefault,
			Override: e.Override,
		}
		if e.Kind != 0 {
			entry.Provider = e.Kind.String()
		}
		if e.Error != nil {
			entry.Error = e.Error.Error()
		}
		entries = append(entries, entry)
	}

	output := map[string]interface{}{
		"entries": entries,
		"errors":  errorStrings(result.Errors),
		"summary": map[string]interface{}{
			"total_entries": len(result.Entries),
			"error_count":   len(result.Errors),
		},
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}

// outputPlanTable outputs the plan result as a formatted table in declaration order
func outputPlanTable(out io.Writer, result *resolve.PlanResult, specPath string) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintf(w, "KEY\tSOURCE\tPROVIDER\tNAME\tOPTIONAL\tSTATUS\n")
	_, _ = fmt.Fprintf(w, "---\t------\t--------\t----\t--------\t------\n")

	for _, e := range result.Entries {
		status := "✓ OK"
		if e.Error != nil {
			status = "✗ ERROR"
		}

		providerName, name := "-", "-"
		if e.Kind != 0 {
			providerName = e.Kind.String()
			if e.Resource != "" {
				name = e.Resource
			}
		}

		optional := ""
		if e.Optional {
			optional = "yes"
			if e.HasDefault {
				optional = "yes (default)"
			}
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.Key, e.Source(), providerName, name, optional, status)
	}
	_ = w.Flush()

	_, _ = fmt.Fprintf(out, "\nSummary:\n")
	_, _ = fmt.Fprintf(out, "  Total entries: %d\n", len(result.Entries))

	if len(result.Errors) > 0 {
		_, _ = fmt.Fprintf(out, "  Errors: %d\n", len(result.Errors))
		_, _ = fmt.Fprintf(out, "\nErrors:\n")
		for i, err := range result.Errors {
			_, _ = fmt.Fprintf(out, "  %d. %s\n", i+1, err.Error())
		}
		return
	}

	_, _ = fmt.Fprintf(out, "\n✓ All entries ready to resolve!\n")
	_, _ = fmt.Fprintf(out, "\nNext steps:\n")
	_, _ = fmt.Fprintf(out, "  • Run 'awsm-env %s' to render the variables\n", specPath)
	_, _ = fmt.Fprintf(out, "  • Run 'awsm-env exec %s -- <command>' to run with secrets\n", specPath)
}

func errorStrings(errs []error) []string {
	result := make([]string, len(errs))
	for i, err := range errs {
		result[i] = err.Error()
	}
	return result
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/phrazzld/bpm-api/internal/portability"
	"github.com/spf13/cobra"
)

func (c *CLI) importCommand() *cobra.Command {
	var (
		format      string
		mode        string
		onInvalid   string
		printResult bool
	)

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import an exported screen package",
		Long: `Import a file written by "bpmctl export" in a single transaction.

Entities whose stable id already exists are updated unless --mode skip is
given. Invalid entities abort the import unless --on-validation-error skip
is given, in which case they are reported and left out.

Use "-" to read the payload from stdin.`,
		Example: `  bpmctl import customer.yaml
  bpmctl import customer.json --mode skip --on-validation-error skip`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			values := map[string]any{}
			if cmd.Flags().Changed("mode") {
				values[portability.OptionMode] = mode
			}
			if cmd.Flags().Changed("on-validation-error") {
				values[portability.OptionOnValidationError] = onInvalid
			}
			opts, err := portability.NewOptions(values)
			if err != nil {
				return err
			}

			payload, err := readPayload(cmd.InOrStdin(), args[0], format)
			if err != nil {
				return err
			}
			return c.runImport(cmd.Context(), payload, opts, printResult)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "", "input format: json or yaml (default: from the file extension)")
	cmd.Flags().StringVar(&mode, "mode", "update", "what to do with existing entities: update or skip")
	cmd.Flags().StringVar(&onInvalid, "on-validation-error", "abort", "what to do with invalid entities: abort or skip")
	cmd.Flags().BoolVar(&printResult, "json", false, "print the full import result as JSON")

	return cmd
}

func readPayload(stdin io.Reader, path, format string) (*portability.Payload, error) {
	f, err := resolveFormat(format, path)
	if err != nil {
		return nil, err
	}

	r := stdin
	if path != "-" {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer file.Close()
		r = file
	}

	if f == formatYAML {
		return portability.DecodePayloadYAML(r)
	}
	return portability.DecodePayload(r)
}

func (c *CLI) runImport(ctx context.Context, payload *portability.Payload, opts *portability.Options, printResult bool) error {
	start := time.Now()
	return c.withBackend(ctx, func(b *Backend) error {
		result, err := b.Portability.Import(ctx, payload, opts)
		if err != nil {
			c.logImportFailure(err)
			return fmt.Errorf("import failed: %w", err)
		}

		c.logger.Info("Imported payload",
			"nodes", len(result.Nodes),
			"options", opts.String(),
			"elapsed", time.Since(start).Round(time.Millisecond))

		if printResult {
			return printJSON(c.out, result)
		}
		printSummary(c.out, result)
		return nil
	})
}

func (c *CLI) logImportFailure(err error) {
	var schemaErr *portability.SchemaError
	if errors.As(err, &schemaErr) {
		for _, v := range schemaErr.Violations {
			c.logger.Error("schema violation", "detail", v)
		}
	}
	var validationErr *portability.ValidationError
	if errors.As(err, &validationErr) {
		c.logger.Error("invalid node", "detail", validationErr.Error())
	}
}

func printSummary(w io.Writer, result *portability.Result) {
	kinds := make([]string, 0, len(result.Counts))
	for k := range result.Counts {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)

	for _, k := range kinds {
		n := result.Counts[portability.Kind(k)]
		fmt.Fprintf(w, "%-16s created=%d updated=%d skipped=%d invalid=%d\n",
			k, n.Created, n.Updated, n.Skipped, n.Invalid)
	}
	for _, e := range result.Errors {
		fmt.Fprintf(w, "invalid: %s\n", e.Error())
	}
}

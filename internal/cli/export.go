package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/phrazzld/bpm-api/internal/portability"
	"github.com/spf13/cobra"
)

// Payload file formats
const (
	formatJSON = "json"
	formatYAML = "yaml"
)

func (c *CLI) exportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export entities with their dependencies",
	}
	cmd.AddCommand(c.exportScreenCommand())
	return cmd
}

func (c *CLI) exportScreenCommand() *cobra.Command {
	var (
		output string
		format string
		tree   bool
	)

	cmd := &cobra.Command{
		Use:   "screen <id>",
		Short: "Export a screen and everything it depends on",
		Long: `Export a screen together with its categories, the scripts its watchers
run, the script categories and any nested screens.

The format is taken from --format, then from the extension of --output
(.json, .yaml or .yml), and defaults to JSON.`,
		Example: `  bpmctl export screen 42 -o customer.yaml
  bpmctl export screen 42 --tree`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid screen id %q", args[0])
			}
			f, err := resolveFormat(format, output)
			if err != nil {
				return err
			}
			return c.runExport(cmd.Context(), id, output, f, tree)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	cmd.Flags().StringVarP(&format, "format", "f", "", "output format: json or yaml")
	cmd.Flags().BoolVar(&tree, "tree", false, "print the dependency tree instead of the payload")

	return cmd
}

func (c *CLI) runExport(ctx context.Context, id int64, output, format string, tree bool) error {
	start := time.Now()
	return c.withBackend(ctx, func(b *Backend) error {
		export, err := b.Portability.ExportScreen(ctx, id)
		if err != nil {
			return fmt.Errorf("export failed: %w", err)
		}

		w, closeOut, err := c.openOutput(output)
		if err != nil {
			return err
		}
		defer closeOut()

		if tree {
			printTree(w, export.Tree, 0)
		} else if format == formatYAML {
			err = portability.EncodePayloadYAML(w, export.Payload)
		} else {
			err = portability.EncodePayload(w, export.Payload)
		}
		if err != nil {
			return err
		}

		c.logger.Info("Exported screen",
			"screen_id", id,
			"nodes", len(export.Payload.Nodes),
			"elapsed", time.Since(start).Round(time.Millisecond))
		return nil
	})
}

// openOutput returns c.out for an empty path, otherwise a created file.
func (c *CLI) openOutput(path string) (io.Writer, func(), error) {
	if path == "" {
		return c.out, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	return f, func() {
		if err := f.Close(); err != nil {
			c.logger.Warn("failed to close output file", "path", path, "error", err)
		}
	}, nil
}

// resolveFormat picks the payload format from an explicit flag or a file extension.
func resolveFormat(flag, path string) (string, error) {
	switch strings.ToLower(flag) {
	case formatJSON:
		return formatJSON, nil
	case formatYAML, "yml":
		return formatYAML, nil
	case "":
	default:
		return "", fmt.Errorf("unsupported format %q (want json or yaml)", flag)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return formatYAML, nil
	default:
		return formatJSON, nil
	}
}

func printTree(w io.Writer, nodes []portability.TreeNode, depth int) {
	for _, n := range nodes {
		label := n.Name
		if label == "" {
			label = n.UUID.String()
		}
		suffix := ""
		if n.Cycle {
			suffix = " (cycle)"
		}
		fmt.Fprintf(w, "%s%s %s [%s]%s\n", strings.Repeat("  ", depth), n.Type, label, n.UUID, suffix)
		printTree(w, n.Dependents, depth+1)
	}
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

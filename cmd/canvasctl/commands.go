package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ideacanvas/application/queries"
	querybus "ideacanvas/application/queries/bus"
	"ideacanvas/application/services"
	"ideacanvas/domain/core/valueobjects"
)

var (
	rootID    string
	startID   string
	direction string
	nodeID    string
	exportDir string
)

var migrateCmd = &cobra.Command{
	Use:   "migrate <file>",
	Short: "Upgrade a snapshot to the current document schema",
	Long: `Loads a snapshot in any supported schema, including tldraw store
snapshots, and writes it back in the current schema. Nodes missing fields
get their kind's defaults.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		ws, err := openWorkspace(ctx, args[0])
		if err != nil {
			return err
		}
		return ws.write(ctx, outputPath, cmd.OutOrStdout())
	},
}

var layoutCmd = &cobra.Command{
	Use:   "layout <file>",
	Short: "Lay out the tree below a node",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		ws, err := openWorkspace(ctx, args[0])
		if err != nil {
			return err
		}
		plan, err := ws.layout.LayoutFrom(ctx, fileChat, valueobjects.ShapeID(rootID))
		if err != nil {
			return err
		}
		logger.Info("Layout applied", zap.Int("moves", len(plan.Moves)))
		return ws.write(ctx, outputPath, cmd.OutOrStdout())
	},
}

var traverseCmd = &cobra.Command{
	Use:   "traverse <file>",
	Short: "List the nodes reachable from a node, one id per line",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := ask[[]valueobjects.ShapeID](cmd.Context(), args[0], queries.TraverseGraphQuery{
			ChatID:    fileChat,
			StartID:   valueobjects.ShapeID(startID),
			Direction: direction,
		})
		if err != nil {
			return err
		}
		for _, id := range ids {
			fmt.Fprintln(cmd.OutOrStdout(), id)
		}
		return nil
	},
}

var contextCmd = &cobra.Command{
	Use:   "context <file>",
	Short: "Print the prompt context a node would send to the model",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := ask[string](cmd.Context(), args[0], queries.GetPromptContextQuery{
			ChatID: fileChat,
			NodeID: valueobjects.ShapeID(nodeID),
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), text)
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Compile the canvas into markdown documents",
	Long: `Compiles the branch nodes of a generated document tree into
docs/<name>.md files plus a task checklist. Without --dir the files are
printed as JSON.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		files, err := ask[[]services.ExportFile](cmd.Context(), args[0], queries.ExportPackQuery{ChatID: fileChat})
		if err != nil {
			return err
		}
		if exportDir == "" {
			if files == nil {
				files = []services.ExportFile{}
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(files)
		}
		for _, f := range files {
			path := filepath.Join(exportDir, filepath.FromSlash(f.Path))
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return err
			}
			if err := os.WriteFile(path, []byte(f.Content), 0o644); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
		}
		return nil
	},
}

func ask[R any](ctx context.Context, path string, query querybus.Query) (R, error) {
	var zero R
	ws, err := openWorkspace(ctx, path)
	if err != nil {
		return zero, err
	}
	return querybus.Ask[R](ctx, ws.queries, query)
}

func init() {
	for _, cmd := range []*cobra.Command{migrateCmd, layoutCmd} {
		cmd.Flags().StringVarP(&outputPath, "output", "o", "", "write the document here instead of stdout")
	}

	layoutCmd.Flags().StringVar(&rootID, "root", "", "id of the tree's root node")
	_ = layoutCmd.MarkFlagRequired("root")

	traverseCmd.Flags().StringVar(&startID, "start", "", "id of the node to start from")
	traverseCmd.Flags().StringVar(&direction, "direction", "", "start follows outgoing connections, end incoming ones; empty follows both")
	_ = traverseCmd.MarkFlagRequired("start")

	contextCmd.Flags().StringVar(&nodeID, "node", "", "id of the node")
	_ = contextCmd.MarkFlagRequired("node")

	exportCmd.Flags().StringVar(&exportDir, "dir", "", "write the files below this directory")

	rootCmd.AddCommand(migrateCmd, layoutCmd, traverseCmd, contextCmd, exportCmd)
}

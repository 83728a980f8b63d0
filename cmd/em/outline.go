package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/anmolarora1/em/application/commands"
	"github.com/anmolarora1/em/application/services"
	"github.com/anmolarora1/em/domain/core/valueobjects"
	"github.com/anmolarora1/em/infrastructure/di"
)

var (
	importContext string
	treeDepth     int
	includeMeta   bool
)

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import an indented outline into the thought graph",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", args[0], err)
		}
		return withContainer(cmd.Context(), func(ctx context.Context, c *di.Container) error {
			at, err := c.Thoughts.PathOf(valueobjects.ParseContext(importContext))
			if err != nil {
				return err
			}
			result, err := c.Thoughts.Dispatch(ctx, commands.ImportText{At: at, Text: string(data)})
			if err != nil {
				return err
			}
			if result.Alert != "" {
				return fmt.Errorf("import rejected: %s", result.Alert)
			}
			c.Logger.Info("Imported outline",
				zap.String("file", args[0]),
				zap.Int("keys", result.Delta.Len()),
			)
			return nil
		})
	},
}

var treeCmd = &cobra.Command{
	Use:   "tree [context]",
	Short: "Print the thoughts under a slash-separated context",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var ctx valueobjects.Context
		if len(args) == 1 {
			ctx = valueobjects.ParseContext(args[0])
		}
		return withContainer(cmd.Context(), func(_ context.Context, c *di.Container) error {
			nodes, err := c.Thoughts.Tree(ctx, treeDepth, includeMeta)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), renderTree(nodes))
			return nil
		})
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the whole graph as an outline that import accepts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd.Context(), func(_ context.Context, c *di.Container) error {
			text, err := c.Thoughts.Export(valueobjects.Context{}, includeMeta)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), text)
			return nil
		})
	},
}

func init() {
	importCmd.Flags().StringVar(&importContext, "context", "", "slash-separated context to import under")
	treeCmd.Flags().IntVar(&treeDepth, "depth", 0, "levels to print, 0 for all")
	treeCmd.Flags().BoolVar(&includeMeta, "meta", false, "include =meta thoughts")
	exportCmd.Flags().BoolVar(&includeMeta, "meta", false, "include =meta thoughts")
}

func renderTree(nodes []*services.TreeNode) string {
	var lines []commands.OutlineLine
	var walk func(nodes []*services.TreeNode, depth int)
	walk = func(nodes []*services.TreeNode, depth int) {
		for _, node := range nodes {
			lines = append(lines, commands.OutlineLine{Depth: depth, Value: node.Value})
			walk(node.Children, depth+1)
		}
	}
	walk(nodes, 0)
	return commands.FormatOutline(lines)
}

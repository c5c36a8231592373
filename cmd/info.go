// Package cmd implements CLI commands.
package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"firestige.xyz/ninox/internal/stream"
)

var infoChunkSize int

// infoCmd represents the info command
var infoCmd = &cobra.Command{
	Use:   "info <file>",
	Short: "Show chunk layout for a capture file",
	Long: `Print size and chunk count for a capture file at a given chunk size.

Examples:
  ninox info capture.bin
  ninox info --chunk-size 512 capture.bin`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runInfo(args[0], infoChunkSize, cmd.OutOrStdout()); err != nil {
			exitWithError("failed to inspect file", err)
		}
	},
}

func init() {
	infoCmd.Flags().IntVarP(&infoChunkSize, "chunk-size", "s", 1400, "chunk size in bytes")

	rootCmd.AddCommand(infoCmd)
}

func runInfo(path string, chunkSize int, out io.Writer) error {
	src, err := stream.NewFileSource(stream.FileConfig{Path: path}, chunkSize)
	if err != nil {
		return err
	}
	defer src.Close()

	fmt.Fprintf(out, "path:        %s\n", src.Path())
	fmt.Fprintf(out, "size:        %d bytes\n", src.Size())
	fmt.Fprintf(out, "chunk size:  %d bytes\n", src.ChunkSize())
	fmt.Fprintf(out, "chunks:      %d\n", src.ChunkCount())
	return nil
}

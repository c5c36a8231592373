// Package cmd implements CLI commands using cobra framework.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "ninox",
	Short: "Ninox - pull-based chunked byte-stream reader",
	Long: `Ninox reads a stream of byte chunks from one of three interchangeable
sources: a local capture file, a bound UDP socket, or raw link-layer capture
with a kernel BPF pre-filter and user-space UDP port demultiplexing.

Sources:
  file     read a capture file chunk by chunk, with seek support
  udp      receive datagrams on a bound UDP socket
  rawcap   capture link-layer frames and extract UDP payloads for one port`,
	Version: "0.1.0",
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "/etc/ninox/config.yml",
		"config file path")
}

// exitWithError prints error message and exits with code 1
func exitWithError(msg string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
	}
	os.Exit(1)
}

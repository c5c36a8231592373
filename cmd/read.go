// Package cmd implements CLI commands.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"firestige.xyz/ninox/internal/config"
	"firestige.xyz/ninox/internal/log"
	"firestige.xyz/ninox/internal/metrics"
	"firestige.xyz/ninox/internal/stream"
	"firestige.xyz/ninox/internal/stream/capture"
)

var (
	readKind      string
	readPath      string
	readOffset    int64
	readIP        string
	readPort      uint16
	readIface     string
	readBackend   string
	readChunkSize int
	readTimeout   time.Duration
	readDuration  time.Duration
	readMetrics   bool
)

// readCmd represents the read command
var readCmd = &cobra.Command{
	Use:   "read",
	Short: "Read chunks from a source until end of stream or signal",
	Long: `Read chunks from the configured source and report session statistics.

The source comes from the config file; flags override individual fields.
SIGINT/SIGTERM interrupt an in-flight read and end the session cleanly.

Examples:
  ninox read --kind file --path capture.bin --chunk-size 1400
  ninox read --kind udp --ip 0.0.0.0 --port 5060 --timeout 500ms
  ninox read --kind rawcap --iface eth0 --port 5060 --duration 30s`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadReadConfig(cmd)
		if err != nil {
			exitWithError("failed to load configuration", err)
		}
		log.Init(&cfg.Log)

		if err := runRead(cfg, readDuration, cmd.OutOrStdout()); err != nil {
			exitWithError("read session failed", err)
		}
	},
}

func init() {
	readCmd.Flags().StringVarP(&readKind, "kind", "k", "", "source kind (file|udp|rawcap)")
	readCmd.Flags().StringVarP(&readPath, "path", "p", "", "file source: path to read")
	readCmd.Flags().Int64Var(&readOffset, "offset", 0, "file source: initial byte offset")
	readCmd.Flags().StringVar(&readIP, "ip", "", "udp source: local IP to bind")
	readCmd.Flags().Uint16Var(&readPort, "port", 0, "udp/rawcap source: port to receive or match")
	readCmd.Flags().StringVarP(&readIface, "iface", "i", "", "rawcap source: network interface to capture on")
	readCmd.Flags().StringVar(&readBackend, "backend", "", "rawcap source: capture backend (sockraw|afpacket)")
	readCmd.Flags().IntVarP(&readChunkSize, "chunk-size", "s", 0, "chunk size in bytes")
	readCmd.Flags().DurationVarP(&readTimeout, "timeout", "t", 0, "receive timeout (0 blocks indefinitely)")
	readCmd.Flags().DurationVarP(&readDuration, "duration", "d", 0, "stop after this long (0 runs until end of stream or signal)")
	readCmd.Flags().BoolVar(&readMetrics, "metrics", false, "serve Prometheus metrics while reading")

	rootCmd.AddCommand(readCmd)
}

// loadReadConfig merges the config file with command-line flag overrides.
// A missing file at the default location is not an error: flags alone can
// describe the source.
func loadReadConfig(cmd *cobra.Command) (*config.GlobalConfig, error) {
	path := configFile
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		if cmd.Flags().Changed("config") {
			return nil, fmt.Errorf("config file does not exist: %s", path)
		}
		path = ""
	}

	cfg, err := config.Read(path)
	if err != nil {
		return nil, err
	}

	applySourceFlags(cmd.Flags(), &cfg.Source)
	if cmd.Flags().Changed("metrics") {
		cfg.Metrics.Enabled = readMetrics
	}

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applySourceFlags overlays explicitly-set flags onto the source config.
// Validation afterwards normalizes the kind and backend strings.
func applySourceFlags(fs *pflag.FlagSet, sc *stream.Config) {
	if fs.Changed("kind") {
		sc.Kind = stream.Kind(readKind)
	}
	if fs.Changed("chunk-size") {
		sc.ChunkSize = readChunkSize
	}
	if fs.Changed("timeout") {
		sc.Timeout = readTimeout
	}
	if fs.Changed("path") {
		sc.File.Path = readPath
	}
	if fs.Changed("offset") {
		sc.File.Offset = readOffset
	}
	if fs.Changed("ip") {
		sc.UDP.IP = readIP
	}
	if fs.Changed("port") {
		sc.UDP.Port = readPort
		sc.Raw.Port = readPort
	}
	if fs.Changed("iface") {
		sc.Raw.Interface = readIface
	}
	if fs.Changed("backend") {
		sc.Raw.Backend = capture.Backend(readBackend)
	}
}

// sessionStats accumulates per-session read accounting.
type sessionStats struct {
	Chunks     uint64
	Bytes      uint64
	Timeouts   uint64
	Interrupts uint64
	Malformed  uint64
	Elapsed    time.Duration
}

// runRead builds the source, wires signal and duration handling, drives the
// read loop and writes the session summary to out.
func runRead(cfg *config.GlobalConfig, duration time.Duration, out io.Writer) error {
	src, err := stream.New(cfg.Source)
	if err != nil {
		return fmt.Errorf("failed to build source: %w", err)
	}
	defer src.Close()

	logger := log.GetLogger()
	logger.Infof("reading from %s (chunk size %d, timeout %s)", src.Label(), src.ChunkSize(), cfg.Source.Timeout)

	if cfg.Metrics.Enabled {
		srv := metrics.NewServer(cfg.Metrics.Listen, cfg.Metrics.Path)
		if err := srv.Start(); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
		defer srv.Stop(context.Background())
	}

	metrics.SourceUp.WithLabelValues(src.Label()).Set(1)
	defer metrics.SourceUp.WithLabelValues(src.Label()).Set(0)

	var stopping atomic.Bool

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var timerC <-chan time.Time
	if duration > 0 {
		timer := time.NewTimer(duration)
		defer timer.Stop()
		timerC = timer.C
	}

	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case sig := <-sigCh:
			logger.Infof("received %s, stopping", sig)
		case <-timerC:
			logger.Infof("duration %s elapsed, stopping", duration)
		case <-done:
			return
		}
		stopping.Store(true)
		if ir, ok := src.(stream.Interrupter); ok {
			ir.Interrupt()
		}
	}()

	st, err := readLoop(src, &stopping)
	if err != nil {
		return err
	}

	writeSummary(out, src.Label(), st)
	return nil
}

// readLoop pulls chunks until end of stream, a fatal error, or stopping is
// set. Timeouts, interrupts and malformed frames are counted and skipped.
func readLoop(src stream.Source, stopping *atomic.Bool) (st sessionStats, err error) {
	logger := log.GetLogger()
	label := src.Label()
	buf := make([]byte, src.ChunkSize())

	start := time.Now()
	defer func() { st.Elapsed = time.Since(start) }()

	for !stopping.Load() {
		n, rerr := src.ReadInto(buf)
		switch {
		case rerr == nil:
			st.Chunks++
			st.Bytes += uint64(n)
			metrics.ChunksReadTotal.WithLabelValues(label).Inc()
			metrics.BytesReadTotal.WithLabelValues(label).Add(float64(n))
			metrics.ChunkBytes.WithLabelValues(label).Observe(float64(n))
			if logger.IsDebugEnabled() {
				logger.Debugf("chunk %d: %d bytes", st.Chunks, n)
			}
		case errors.Is(rerr, io.EOF):
			logger.Infof("end of stream after %d chunks", st.Chunks)
			return st, nil
		case errors.Is(rerr, stream.ErrTimeout):
			st.Timeouts++
			metrics.ReadTimeoutsTotal.WithLabelValues(label).Inc()
		case errors.Is(rerr, stream.ErrInterrupted):
			st.Interrupts++
			logger.Info("read interrupted")
		case errors.Is(rerr, stream.ErrMalformedFrame):
			st.Malformed++
			metrics.MalformedFramesTotal.WithLabelValues(label).Inc()
			logger.Warnf("dropped malformed frame: %v", rerr)
		default:
			return st, fmt.Errorf("read on %s failed: %w", label, rerr)
		}
	}
	return st, nil
}

// writeSummary prints the end-of-session statistics.
func writeSummary(w io.Writer, label string, st sessionStats) {
	fmt.Fprintf(w, "\nSession summary for %s\n", label)
	fmt.Fprintf(w, "  duration:    %s\n", st.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "  chunks:      %d\n", st.Chunks)
	fmt.Fprintf(w, "  bytes:       %d\n", st.Bytes)
	fmt.Fprintf(w, "  timeouts:    %d\n", st.Timeouts)
	fmt.Fprintf(w, "  interrupts:  %d\n", st.Interrupts)
	fmt.Fprintf(w, "  malformed:   %d\n", st.Malformed)
	if st.Chunks > 0 {
		fmt.Fprintf(w, "  mean chunk:  %.1f bytes\n", float64(st.Bytes)/float64(st.Chunks))
	}
	if st.Elapsed > 0 {
		fmt.Fprintf(w, "  throughput:  %.3f Mbit/s\n", float64(st.Bytes)*8/st.Elapsed.Seconds()/1e6)
	}
}

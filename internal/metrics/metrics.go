// Package metrics implements Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ChunksReadTotal counts chunks delivered by a source
	ChunksReadTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ninox_chunks_read_total",
			Help: "Total number of chunks delivered by the source",
		},
		[]string{"source"},
	)

	// BytesReadTotal counts payload bytes delivered by a source
	BytesReadTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ninox_bytes_read_total",
			Help: "Total number of payload bytes delivered by the source",
		},
		[]string{"source"},
	)

	// ReadTimeoutsTotal counts reads that ended in a receive timeout
	ReadTimeoutsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ninox_read_timeouts_total",
			Help: "Total number of reads that timed out waiting for data",
		},
		[]string{"source"},
	)

	// MalformedFramesTotal counts frames rejected by the demultiplexer
	MalformedFramesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ninox_malformed_frames_total",
			Help: "Total number of captured frames rejected as structurally invalid",
		},
		[]string{"source"},
	)

	// ChunkBytes tracks the chunk size distribution
	ChunkBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ninox_chunk_bytes",
			Help:    "Distribution of delivered chunk sizes in bytes",
			Buckets: prometheus.ExponentialBuckets(64, 2, 11), // 64B to 64KiB
		},
		[]string{"source"},
	)

	// SourceUp reports whether a source is currently being read
	SourceUp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ninox_source_up",
			Help: "Whether the source is open and being read (1=reading, 0=stopped)",
		},
		[]string{"source"},
	)
)

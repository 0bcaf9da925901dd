// Package diag samples kernel TCP statistics for live connections.
//
// Sampling is best effort: on platforms without TCP_INFO, or for connections
// that do not expose a file descriptor, samplers report no data and callers
// carry on unchanged.
package diag

import (
	"net"
	"sync"
	"time"
)

// TCPInfo is the subset of the kernel's struct tcp_info that is recorded.
// Times are in microseconds as reported by the kernel.
type TCPInfo struct {
	State        uint8  `json:"state"`
	Retransmits  uint8  `json:"retransmits"`
	RTO          uint32 `json:"rto_us"`
	SndMSS       uint32 `json:"snd_mss"`
	RcvMSS       uint32 `json:"rcv_mss"`
	Unacked      uint32 `json:"unacked"`
	Lost         uint32 `json:"lost"`
	Retrans      uint32 `json:"retrans"`
	PMTU         uint32 `json:"pmtu"`
	RTT          uint32 `json:"rtt_us"`
	RTTVar       uint32 `json:"rttvar_us"`
	SndSsthresh  uint32 `json:"snd_ssthresh"`
	SndCwnd      uint32 `json:"snd_cwnd"`
	RcvSpace     uint32 `json:"rcv_space"`
	TotalRetrans uint32 `json:"total_retrans"`
}

// Sample is one TCP_INFO reading.
type Sample struct {
	Timestamp time.Time `json:"timestamp"`
	TCPInfo   TCPInfo   `json:"tcp_info"`
}

// Sampler reads transport statistics from a connection.
type Sampler interface {
	// Sample returns the current statistics of conn. The boolean is false
	// when nothing could be read.
	Sample(conn net.Conn) (Sample, bool)
}

// NoopSampler never returns data.
type NoopSampler struct{}

func (NoopSampler) Sample(net.Conn) (Sample, bool) {
	return Sample{}, false
}

// New returns the platform sampler when enabled, or a NoopSampler.
func New(enabled bool) Sampler {
	if !enabled || !Supported() {
		return NoopSampler{}
	}
	return platformSampler{}
}

// DefaultMaxSamples bounds the samples a Collector keeps for one transfer.
const DefaultMaxSamples = 4096

// Collector accumulates samples for one connection, typically once per
// transferred chunk.
//
// Memory is bounded by maxSamples. When the limit is reached every other
// sample is dropped and the sampling stride doubles, so a long transfer keeps
// evenly spaced readings from start to end.
type Collector struct {
	sampler    Sampler
	conn       net.Conn
	maxSamples int

	mu      sync.Mutex
	samples []Sample
	stride  uint64
	calls   uint64
}

// CollectorOption configures a Collector.
type CollectorOption func(*Collector)

// WithMaxSamples sets the sample limit. n <= 0 removes it.
func WithMaxSamples(n int) CollectorOption {
	return func(c *Collector) {
		c.maxSamples = n
	}
}

// NewCollector returns a collector bound to conn. A nil sampler disables
// collection.
func NewCollector(sampler Sampler, conn net.Conn, opts ...CollectorOption) *Collector {
	if sampler == nil {
		sampler = NoopSampler{}
	}
	c := &Collector{
		sampler:    sampler,
		conn:       conn,
		maxSamples: DefaultMaxSamples,
		stride:     1,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Capture takes one sample and keeps it if the sampler produced one.
// Calls falling between strides are skipped without touching the socket.
func (c *Collector) Capture() {
	c.mu.Lock()
	defer c.mu.Unlock()

	call := c.calls
	c.calls++
	if call%c.stride != 0 {
		return
	}

	s, ok := c.sampler.Sample(c.conn)
	if !ok {
		return
	}
	c.samples = append(c.samples, s)

	if c.maxSamples > 0 && len(c.samples) >= c.maxSamples {
		c.downsampleLocked()
	}
}

func (c *Collector) downsampleLocked() {
	kept := c.samples[:0]
	for i := 0; i < len(c.samples); i += 2 {
		kept = append(kept, c.samples[i])
	}
	clear(c.samples[len(kept):])
	c.samples = kept
	c.stride *= 2
}

// Samples returns the collected samples and resets the collector.
func (c *Collector) Samples() []Sample {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.samples
	c.samples = nil
	c.stride = 1
	c.calls = 0
	return out
}

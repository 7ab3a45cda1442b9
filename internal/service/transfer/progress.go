package transfer

import (
	"time"

	"github.com/vertextoedge/planetdl/internal/port"
)

// progress forwards counter updates from the session loop to a reporter.
// A nil *progress is the no-op reporter; it never reads the clock.
type progress struct {
	reporter port.Reporter
	interval time.Duration

	last         time.Time
	lastReported uint64
	reported     bool
}

func newProgress(r port.Reporter, interval time.Duration) *progress {
	if r == nil {
		return nil
	}
	return &progress{reporter: r, interval: interval}
}

// update reports the counter, at most once per interval when one is set
func (p *progress) update(downloaded uint64, total int64) {
	if p == nil {
		return
	}
	if p.interval > 0 {
		now := time.Now()
		if p.reported && now.Sub(p.last) < p.interval {
			return
		}
		p.last = now
	}
	p.report(downloaded, total)
}

// flush reports the final value unless it was already the last one sent
func (p *progress) flush(downloaded uint64, total int64) {
	if p == nil {
		return
	}
	if p.reported && p.lastReported == downloaded {
		return
	}
	p.report(downloaded, total)
}

func (p *progress) report(downloaded uint64, total int64) {
	p.reported = true
	p.lastReported = downloaded
	p.reporter.Report(downloaded, reportedTotal(total))
}

// reportedTotal maps an unknown size to 0 for reporters
func reportedTotal(total int64) uint64 {
	if total < 0 {
		return 0
	}
	return uint64(total)
}

// Progress is one progress sample
type Progress struct {
	Downloaded uint64
	Total      uint64
}

// ChannelReporter hands progress to a consumer on another goroutine. It
// keeps only the latest sample, so a slow consumer never stalls the
// transfer and sees values in order. It supports a single producer.
type ChannelReporter struct {
	ch chan Progress
}

// Ensure ChannelReporter implements port.Reporter
var _ port.Reporter = (*ChannelReporter)(nil)

// NewChannelReporter creates a new ChannelReporter
func NewChannelReporter() *ChannelReporter {
	return &ChannelReporter{ch: make(chan Progress, 1)}
}

// Report replaces any unread sample with the new one
func (c *ChannelReporter) Report(downloaded, total uint64) {
	p := Progress{Downloaded: downloaded, Total: total}
	for {
		select {
		case c.ch <- p:
			return
		default:
		}
		select {
		case <-c.ch:
		default:
		}
	}
}

// C returns the channel samples are delivered on
func (c *ChannelReporter) C() <-chan Progress {
	return c.ch
}

// Close closes the channel. Call it after the transfer has finished.
func (c *ChannelReporter) Close() {
	close(c.ch)
}

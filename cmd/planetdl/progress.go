package main

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/vertextoedge/planetdl/internal/util/ratelimiter"
)

// progressPrinter redraws a single status line on a terminal
type progressPrinter struct {
	w       io.Writer
	enabled bool
	limiter *ratelimiter.Limiter

	mu        sync.Mutex
	start     time.Time
	current   uint64
	total     uint64
	drawn     bool
	lineWidth int
}

func newProgressPrinter(w io.Writer, interval time.Duration, enabled bool) *progressPrinter {
	return &progressPrinter{
		w:       w,
		enabled: enabled,
		limiter: ratelimiter.New(interval),
		start:   time.Now(),
	}
}

// update records a sample and redraws at most once per interval
func (p *progressPrinter) update(downloaded, total uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current = downloaded
	p.total = total
	if p.enabled && p.limiter.Allow() {
		p.draw()
	}
}

// reset starts a new attempt
func (p *progressPrinter) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current = 0
	p.total = 0
	p.start = time.Now()
	p.limiter.Reset()
}

// finish draws the final state and ends the line
func (p *progressPrinter) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.enabled || !p.drawn {
		return
	}
	p.draw()
	fmt.Fprintln(p.w)
	p.drawn = false
}

func (p *progressPrinter) downloaded() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

func (p *progressPrinter) draw() {
	line := formatProgress(p.current, p.total, time.Since(p.start))
	pad := p.lineWidth - len(line)
	if pad < 0 {
		pad = 0
	}
	fmt.Fprintf(p.w, "\r%s%*s", line, pad, "")
	p.lineWidth = len(line)
	p.drawn = true
}

// formatProgress renders one status line. total == 0 means unknown.
func formatProgress(downloaded, total uint64, elapsed time.Duration) string {
	rate := ""
	if secs := elapsed.Seconds(); secs > 0 {
		rate = fmt.Sprintf(" %s/s", humanize.IBytes(uint64(float64(downloaded)/secs)))
	}

	if total == 0 {
		return fmt.Sprintf("%s%s", humanize.IBytes(downloaded), rate)
	}

	pct := float64(downloaded) / float64(total) * 100
	line := fmt.Sprintf("%5.1f%% %s / %s%s", pct, humanize.IBytes(downloaded), humanize.IBytes(total), rate)

	if downloaded > 0 && downloaded < total && elapsed > 0 {
		remaining := time.Duration(float64(elapsed) * float64(total-downloaded) / float64(downloaded))
		line += " eta " + remaining.Round(time.Second).String()
	}
	return line
}

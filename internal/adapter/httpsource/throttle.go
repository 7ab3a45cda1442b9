package httpsource

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

// maxBurst bounds a single limiter reservation
const maxBurst = 1024 * 1024

// Throttle caps the combined read bandwidth of every stream it wraps using
// a token bucket. A nil Throttle does not limit.
type Throttle struct {
	limiter *rate.Limiter
	burst   int
}

// NewThrottle creates a throttle for bytesPerSecond. Zero or negative
// means unlimited and returns nil.
func NewThrottle(bytesPerSecond int64) *Throttle {
	if bytesPerSecond <= 0 {
		return nil
	}
	burst := int(min(bytesPerSecond, maxBurst))
	return &Throttle{
		limiter: rate.NewLimiter(rate.Limit(bytesPerSecond), burst),
		burst:   burst,
	}
}

// Wrap returns rc limited by the throttle, or rc itself when unlimited
func (t *Throttle) Wrap(ctx context.Context, rc io.ReadCloser) io.ReadCloser {
	if t == nil {
		return rc
	}
	return &throttledReader{ctx: ctx, rc: rc, t: t}
}

type throttledReader struct {
	ctx context.Context
	rc  io.ReadCloser
	t   *Throttle
}

func (r *throttledReader) Read(p []byte) (int, error) {
	if len(p) > r.t.burst {
		p = p[:r.t.burst]
	}
	n, err := r.rc.Read(p)
	if n > 0 {
		if werr := r.t.limiter.WaitN(r.ctx, n); werr != nil && err == nil {
			err = werr
		}
	}
	return n, err
}

func (r *throttledReader) Close() error {
	return r.rc.Close()
}

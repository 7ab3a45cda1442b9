package port

// Reporter receives progress updates for a transfer. Total is 0 when the
// size is unknown. Implementations must not block for long; they run on the
// transfer goroutine.
type Reporter interface {
	Report(downloaded, total uint64)
}

// ReporterFunc adapts a function to the Reporter interface
type ReporterFunc func(downloaded, total uint64)

// Report calls f(downloaded, total)
func (f ReporterFunc) Report(downloaded, total uint64) {
	f(downloaded, total)
}

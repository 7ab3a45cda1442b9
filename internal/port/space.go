package port

// DiskUsage represents disk usage statistics
type DiskUsage struct {
	Total   uint64  // Total disk space in bytes
	Used    uint64  // Used disk space in bytes
	Free    uint64  // Free disk space in bytes
	UsedPct float64 // Used percentage (0-100)
}

// SpaceChecker reports free space at a destination
type SpaceChecker interface {
	// DiskUsage returns usage statistics for the volume holding dest
	DiskUsage(dest string) (*DiskUsage, error)
}

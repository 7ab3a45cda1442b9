package domain

// Tier identifies how a source identifier is routed to a mirror
type Tier string

// Routing tiers
const (
	TierPlanet    Tier = "planet"
	TierRegion    Tier = "region"
	TierSubregion Tier = "subregion"
)

// UnknownSize marks a size that the source did not advertise
const UnknownSize int64 = -1

// Target is a fully resolved download target. It is immutable once produced
// by the resolver.
type Target struct {
	Source       string
	Tier         Tier
	URL          string
	Filename     string
	ExpectedSize int64
}

// SizeKnown returns true if the expected size is known
func (t Target) SizeKnown() bool {
	return t.ExpectedSize >= 0
}

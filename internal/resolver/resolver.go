// Package resolver maps hierarchical source identifiers such as "planet",
// "europe" or "europe/belgium" to mirror URLs and local filenames.
package resolver

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/vertextoedge/planetdl/internal/domain"
)

const (
	// DefaultPlanetURL is the full planet extract
	DefaultPlanetURL = "https://planet.openstreetmap.org/pbf/planet-latest.osm.pbf"

	// DefaultGeofabrikBaseURL hosts continent and country extracts
	DefaultGeofabrikBaseURL = "https://download.geofabrik.de"

	planetID        = "planet"
	extractSuffix   = "-latest.osm.pbf"
	maxPathSegments = 3
)

var segmentPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

// Config contains mirror endpoints
type Config struct {
	PlanetURL        string
	GeofabrikBaseURL string
}

// DefaultConfig returns the public OpenStreetMap mirrors
func DefaultConfig() *Config {
	return &Config{
		PlanetURL:        DefaultPlanetURL,
		GeofabrikBaseURL: DefaultGeofabrikBaseURL,
	}
}

// Resolver turns identifiers into download targets. It never performs
// network I/O.
type Resolver struct {
	planetURL string
	baseURL   string
}

// New creates a new Resolver
func New(cfg *Config) *Resolver {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	planetURL := cfg.PlanetURL
	if planetURL == "" {
		planetURL = DefaultPlanetURL
	}
	baseURL := strings.TrimRight(cfg.GeofabrikBaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultGeofabrikBaseURL
	}
	return &Resolver{
		planetURL: planetURL,
		baseURL:   baseURL,
	}
}

// Resolve validates id and returns its target. The expected size is left
// unknown; it is filled in by probing.
func (r *Resolver) Resolve(id string) (domain.Target, error) {
	segments, err := parse(id)
	if err != nil {
		return domain.Target{}, err
	}

	target := domain.Target{
		Source:       id,
		Filename:     filenameFor(segments),
		ExpectedSize: domain.UnknownSize,
	}

	switch {
	case len(segments) == 1 && segments[0] == planetID:
		target.Tier = domain.TierPlanet
		target.URL = r.planetURL
	case len(segments) == 1:
		target.Tier = domain.TierRegion
		target.URL = r.baseURL + "/" + id + extractSuffix
	default:
		target.Tier = domain.TierSubregion
		target.URL = r.baseURL + "/" + id + extractSuffix
	}

	return target, nil
}

// Filename returns the local filename a download of id is saved under.
// It depends only on the identifier.
func Filename(id string) (string, error) {
	segments, err := parse(id)
	if err != nil {
		return "", err
	}
	return filenameFor(segments), nil
}

func filenameFor(segments []string) string {
	if len(segments) == 1 && segments[0] == planetID {
		return planetID + extractSuffix
	}
	return segments[len(segments)-1] + extractSuffix
}

// parse splits id into validated path segments
func parse(id string) ([]string, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: source identifier is empty", domain.ErrInvalidInput)
	}

	segments := strings.Split(id, "/")
	if len(segments) > maxPathSegments {
		return nil, fmt.Errorf("%w: source %q has more than %d path segments", domain.ErrInvalidInput, id, maxPathSegments)
	}

	for _, seg := range segments {
		if seg == "" {
			return nil, fmt.Errorf("%w: source %q contains an empty path segment", domain.ErrInvalidInput, id)
		}
		if !segmentPattern.MatchString(seg) {
			return nil, fmt.Errorf("%w: source %q contains invalid segment %q", domain.ErrInvalidInput, id, seg)
		}
	}

	return segments, nil
}

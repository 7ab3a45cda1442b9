package resolver

import "strings"

// knownContinents are the top-level Geofabrik regions
var knownContinents = []string{
	"africa", "antarctica", "asia", "australia", "europe",
	"north-america", "south-america", "central-america", "oceania",
}

// knownSources is the fixed list typo suggestions are drawn from, in
// priority order.
var knownSources = append(append([]string{"planet"}, knownContinents...),
	"europe/germany", "europe/france", "europe/belgium", "europe/netherlands", "europe/italy", "europe/spain",
	"europe/united-kingdom", "europe/poland", "europe/switzerland", "europe/austria", "europe/monaco",
	"asia/china", "asia/japan", "asia/india", "asia/russia",
	"north-america/us", "north-america/canada",
	"south-america/brazil", "south-america/argentina",
	"africa/south-africa", "australia/australia",
)

// Suggest returns a likely intended identifier for a misspelled id.
// It returns false when id is already a known source or nothing is close.
func Suggest(id string) (string, bool) {
	lower := strings.ToLower(id)
	maxDistance := min(max(len(id)/3, 1), 3)

	best := ""
	bestDistance := int(^uint(0) >> 1)

	for _, known := range knownSources {
		d := levenshtein(lower, known)
		if d == 0 {
			return "", false
		}
		if d <= maxDistance && d < bestDistance {
			bestDistance = d
			best = known
		}
	}

	if continent, country, ok := strings.Cut(id, "/"); ok {
		if home, found := continentOf(country); found {
			// A known country under the wrong continent is relocated.
			best = home + "/" + country
		} else {
			continent = strings.ToLower(continent)
			for _, known := range knownContinents {
				d := levenshtein(continent, known)
				if d > 0 && d <= maxDistance && d < bestDistance {
					bestDistance = d
					best = known
				}
			}
		}
	}

	return best, best != ""
}

// continentOf finds the continent a known country is listed under
func continentOf(country string) (string, bool) {
	for _, known := range knownSources {
		continent, c, ok := strings.Cut(known, "/")
		if ok && strings.EqualFold(c, country) {
			return continent, true
		}
	}
	return "", false
}

// levenshtein returns the edit distance between a and b, counted in runes
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}

	return prev[len(rb)]
}

package recommend

import "strings"

// GenreFilter decides whether an artist genre label is used as a
// recommendation seed. Labels are passed lower-cased.
type GenreFilter func(genre string) bool

// DefaultGenreKeywords is the keyword set used when none is configured.
var DefaultGenreKeywords = []string{"trap", "hip hop", "rap"}

// KeywordFilter matches genres containing any of keywords, ignoring case.
// With no keywords nothing matches and genre seeding is disabled.
func KeywordFilter(keywords ...string) GenreFilter {
	kws := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			kws = append(kws, k)
		}
	}
	return func(genre string) bool {
		for _, k := range kws {
			if strings.Contains(genre, k) {
				return true
			}
		}
		return false
	}
}

// narrowGenres lower-cases genres, keeps those accepted by f and returns at
// most max of them in their original order.
func narrowGenres(genres []string, f GenreFilter, max int) []string {
	if f == nil {
		return nil
	}
	var out []string
	for _, g := range genres {
		g = strings.ToLower(g)
		if f(g) {
			out = append(out, g)
			if len(out) == max {
				break
			}
		}
	}
	return out
}

package query

// DefaultLimit caps list and search results.
const DefaultLimit = 200

// Kind selects the shape of a statement.
type Kind string

const (
	// KindTitles returns title rows: all, by key, or by search term.
	KindTitles Kind = "titles"
	// KindTopGenres returns the five most frequent genre strings.
	KindTopGenres Kind = "top_genres"
	// KindMostTitlesYear returns the year with the most titles.
	KindMostTitlesYear Kind = "most_titles_year"
	// KindAdultCount returns adult and non-adult title counts.
	KindAdultCount Kind = "adult_count"
)

// Statement is a read that any node can answer.
type Statement struct {
	Kind Kind

	// Key restricts KindTitles to one tconst.
	Key string

	// Search matches KindTitles rows whose primaryTitle contains the term
	// or whose tconst equals it.
	Search string

	// Limit caps KindTitles rows. Zero means DefaultLimit.
	Limit int
}

// Titles lists up to limit titles.
func Titles(limit int) Statement {
	return Statement{Kind: KindTitles, Limit: limit}
}

// ByKey selects the title with the given tconst.
func ByKey(key string) Statement {
	return Statement{Kind: KindTitles, Key: key, Limit: 1}
}

// Search finds titles by title substring or exact tconst.
func Search(term string, limit int) Statement {
	return Statement{Kind: KindTitles, Search: term, Limit: limit}
}

// TopGenres reports the five most frequent genres.
func TopGenres() Statement {
	return Statement{Kind: KindTopGenres}
}

// MostTitlesYear reports the year with the most titles.
func MostTitlesYear() Statement {
	return Statement{Kind: KindMostTitlesYear}
}

// AdultCount reports adult vs non-adult title counts.
func AdultCount() Statement {
	return Statement{Kind: KindAdultCount}
}

package sites

import "fmt"

// PaginationMode selects how the next listing page is located.
type PaginationMode int

const (
	// ModeAffordance follows a next-page URL embedded in the page response.
	ModeAffordance PaginationMode = iota
	// ModeOffset computes the next page's offset against a canonical URL,
	// independent of page markup.
	ModeOffset
)

// Pagination is a per-site policy deciding whether and where to fetch the
// next listing page. MaxExtraPages caps follow-up listing fetches: 0 means
// first page only, a negative value means no cap.
type Pagination struct {
	Mode          PaginationMode
	URLTemplate   string // offset mode: format string with one %d for the offset
	PageSize      int    // offset mode
	MaxExtraPages int
}

// Next returns the URL of the next listing page to fetch, given how many
// listing pages have been fetched so far, how many items the latest page
// yielded, and the next-page affordance found in it (if any). ok is false
// once the run is done paginating.
func (p Pagination) Next(pagesFetched, itemCount int, nextPageURL string) (string, bool) {
	if p.MaxExtraPages >= 0 && pagesFetched > p.MaxExtraPages {
		return "", false
	}
	switch p.Mode {
	case ModeOffset:
		if itemCount == 0 {
			return "", false
		}
		return fmt.Sprintf(p.URLTemplate, pagesFetched*p.PageSize), true
	default:
		if nextPageURL == "" {
			return "", false
		}
		return nextPageURL, true
	}
}

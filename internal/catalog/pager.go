package catalog

import (
	"net/url"
	"strconv"
	"strings"
)

// SortOrder selects the grid ordering.
type SortOrder string

const (
	SortNone SortOrder = ""
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// ParseSort normalises a sort query value.
func ParseSort(v string) SortOrder {
	switch SortOrder(strings.ToLower(strings.TrimSpace(v))) {
	case SortAsc:
		return SortAsc
	case SortDesc:
		return SortDesc
	default:
		return SortNone
	}
}

// MaxPage bounds the page query value before any source sees it.
const MaxPage = 10000

// Pager tracks the catalog position. Page is 1-based.
type Pager struct {
	Page           int
	Pages          int
	Search         string
	Sort           SortOrder
	OnlyDiscounted bool
}

// ParsePager reads the pager from query values. The search form echoes the active term as
// "cq"; a different "q" starts over at page 1.
func ParsePager(values url.Values) Pager {
	p := Pager{Page: 1, Pages: 1}
	if n, err := strconv.Atoi(values.Get("page")); err == nil && n > 1 {
		p.Page = min(n, MaxPage)
	}
	p.Sort = ParseSort(values.Get("sort"))
	p.OnlyDiscounted = values.Get("discounted") == "1" || values.Get("discounted") == "on"

	term := strings.TrimSpace(values.Get("q"))
	if values.Has("cq") {
		p.Search = strings.TrimSpace(values.Get("cq"))
		p.SetSearch(term)
	} else {
		p.Search = term
	}
	return p
}

// SetTotal records the number of pages and clamps the current page into range.
func (p *Pager) SetTotal(pages int) {
	if pages < 1 {
		pages = 1
	}
	p.Pages = pages
	p.clamp()
}

// SetSearch changes the search term, returning to the first page when it differs.
func (p *Pager) SetSearch(term string) {
	term = strings.TrimSpace(term)
	if term != p.Search {
		p.Search = term
		p.Page = 1
	}
}

// Prev moves one page back; it is a no-op on the first page.
func (p *Pager) Prev() {
	if p.Page > 1 {
		p.Page--
	}
}

// Next moves one page forward; it is a no-op on the last page.
func (p *Pager) Next() {
	if p.Page < p.Pages {
		p.Page++
	}
}

func (p *Pager) clamp() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Page > p.Pages {
		p.Page = p.Pages
	}
}

// PrevDisabled reports whether the previous control is disabled.
func (p Pager) PrevDisabled() bool { return p.Page <= 1 }

// NextDisabled reports whether the next control is disabled.
func (p Pager) NextDisabled() bool { return p.Page >= p.Pages }

// Values renders the pager as query values, omitting defaults.
func (p Pager) Values() url.Values {
	v := url.Values{}
	if p.Page > 1 {
		v.Set("page", strconv.Itoa(p.Page))
	}
	if p.Search != "" {
		v.Set("q", p.Search)
	}
	if p.Sort != SortNone {
		v.Set("sort", string(p.Sort))
	}
	if p.OnlyDiscounted {
		v.Set("discounted", "1")
	}
	return v
}

// URL returns the catalog URL for page n with the other settings kept.
func (p Pager) URL(n int) string {
	q := p
	q.Page = n
	q.clamp()
	if enc := q.Values().Encode(); enc != "" {
		return "/?" + enc
	}
	return "/"
}

// PrevURL links to the previous page.
func (p Pager) PrevURL() string { return p.URL(p.Page - 1) }

// NextURL links to the next page.
func (p Pager) NextURL() string { return p.URL(p.Page + 1) }

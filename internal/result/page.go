package result

// DefaultPerPage is the default number of rows per page.
const DefaultPerPage = 25

// PerPageOptions lists the page sizes a viewer can choose from.
var PerPageOptions = []int{10, 15, 20, 25, 50, 100, 250}

// SnapPerPage returns the smallest page size option that holds n rows, the
// largest option when n exceeds them all, or DefaultPerPage when n is not
// positive.
func SnapPerPage(n int) int {
	if n <= 0 {
		return DefaultPerPage
	}
	for _, opt := range PerPageOptions {
		if n <= opt {
			return opt
		}
	}
	return PerPageOptions[len(PerPageOptions)-1]
}

// Page is one page of a result set.
type Page struct {
	Number int // 1-based
	Count  int // total pages
	Start  int // 0-based index of the first row
	Rows   [][]any
}

// End returns the 0-based index one past the last row of the page.
func (p Page) End() int {
	return p.Start + len(p.Rows)
}

// Page returns page number n (1-based) of perPage rows. Out of range page
// numbers are clamped.
func (s *Set) Page(n, perPage int) Page {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	count := (len(s.Rows) + perPage - 1) / perPage
	if count == 0 {
		count = 1
	}
	n = max(1, min(n, count))

	start := (n - 1) * perPage
	end := min(start+perPage, len(s.Rows))
	if start > end {
		start = end
	}
	return Page{Number: n, Count: count, Start: start, Rows: s.Rows[start:end]}
}

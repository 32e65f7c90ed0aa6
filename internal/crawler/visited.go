package crawler

import "sort"

// URLSet is a set of URLs compared by exact string equality.
type URLSet map[string]struct{}

// NewURLSet returns a set holding urls.
func NewURLSet(urls ...string) URLSet {
	s := make(URLSet, len(urls))
	for _, u := range urls {
		s[u] = struct{}{}
	}
	return s
}

// Add inserts u and reports whether it was not already present.
func (s URLSet) Add(u string) bool {
	if _, ok := s[u]; ok {
		return false
	}
	s[u] = struct{}{}
	return true
}

// Has reports whether u is in the set.
func (s URLSet) Has(u string) bool {
	_, ok := s[u]
	return ok
}

// Len returns the number of URLs.
func (s URLSet) Len() int {
	return len(s)
}

// Sorted returns the URLs in lexical order.
func (s URLSet) Sorted() []string {
	urls := make([]string, 0, len(s))
	for u := range s {
		urls = append(urls, u)
	}
	sort.Strings(urls)
	return urls
}

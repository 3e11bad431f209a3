// Package urlstate binds a single query-string parameter to a string value.
package urlstate

import (
	"net/url"
	"sync"
)

const DefaultParam = "filter"

// Navigator owns the current location and can replace it in place,
// without creating a new history entry.
type Navigator interface {
	Location() *url.URL
	Replace(u string)
}

type Filter struct {
	nav   Navigator
	name  string
	def   string
	mu    sync.Mutex
	value string
	last  string
}

// NewFilter reads the parameter once. Later changes to the location are not
// read back; the filter only writes.
func NewFilter(nav Navigator, name, def string) *Filter {
	if name == "" {
		name = DefaultParam
	}
	loc := nav.Location()
	value := def
	if q := loc.Query(); q.Has(name) {
		value = q.Get(name)
	}
	return &Filter{
		nav:   nav,
		name:  name,
		def:   def,
		value: value,
		last:  loc.String(),
	}
}

func (f *Filter) Name() string { return f.name }

func (f *Filter) Value() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value
}

// Set updates the value and replaces the location when the resulting URL
// differs from the last one applied.
func (f *Filter) Set(v string) {
	f.mu.Lock()
	f.value = v
	next := Apply(f.nav.Location(), f.name, v, f.def).String()
	if next == f.last {
		f.mu.Unlock()
		return
	}
	f.last = next
	f.mu.Unlock()
	f.nav.Replace(next)
}

// Clear resets to the empty string, not to the configured default.
func (f *Filter) Clear() { f.Set("") }

// Apply returns a copy of u with name set to value, or removed when value is
// empty or equal to def.
func Apply(u *url.URL, name, value, def string) *url.URL {
	out := *u
	q := out.Query()
	if value == "" || value == def {
		q.Del(name)
	} else {
		q.Set(name, value)
	}
	out.RawQuery = q.Encode()
	return &out
}

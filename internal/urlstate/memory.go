package urlstate

import (
	"net/url"
	"sync"
)

// MemoryNavigator keeps the location in memory. It backs command line
// clients that have no browser history.
type MemoryNavigator struct {
	mu       sync.Mutex
	loc      *url.URL
	replaced int
}

func NewMemoryNavigator(raw string) (*MemoryNavigator, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	return &MemoryNavigator{loc: u}, nil
}

func (n *MemoryNavigator) Location() *url.URL {
	n.mu.Lock()
	defer n.mu.Unlock()
	u := *n.loc
	return &u
}

func (n *MemoryNavigator) Replace(raw string) {
	u, err := url.Parse(raw)
	if err != nil {
		return
	}
	n.mu.Lock()
	n.loc = u
	n.replaced++
	n.mu.Unlock()
}

// Replaced counts the calls to Replace.
func (n *MemoryNavigator) Replaced() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.replaced
}

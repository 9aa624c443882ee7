package testutil

import (
	"fmt"
	"sync"
)

// Tokens issues request tokens "<prefix>-0001", "<prefix>-0002", ... The
// zero padding keeps them sortable in golden files.
//
// Satisfies engine.TokenGenerator. Safe for concurrent use.
type Tokens struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewTokens returns a generator for prefix. An empty prefix becomes "tok".
func NewTokens(prefix string) *Tokens {
	if prefix == "" {
		prefix = "tok"
	}
	return &Tokens{prefix: prefix}
}

// Generate returns the next token.
func (g *Tokens) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%04d", g.prefix, g.n)
}

// Reset restarts the sequence.
func (g *Tokens) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n = 0
}

package view

import (
	"context"
	"sync"
)

// Token identifies one generation of a view. Results fetched under a token
// are applied only while it is still current.
type Token uint64

// Lifecycle ties in-flight loads to a view being entered and left. Entering
// again or leaving cancels the previous generation.
type Lifecycle struct {
	mu      sync.Mutex
	current Token
	cancel  context.CancelFunc
}

// Enter starts a new generation and returns its context and token.
func (l *Lifecycle) Enter(parent context.Context) (context.Context, Token) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cancel != nil {
		l.cancel()
	}

	ctx, cancel := context.WithCancel(parent)
	l.current++
	l.cancel = cancel

	return ctx, l.current
}

// Leave cancels the current generation. Later commits are discarded.
func (l *Lifecycle) Leave() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	l.current++
}

// Current reports whether token is the live generation.
func (l *Lifecycle) Current(token Token) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return token == l.current && l.cancel != nil
}

// Commit runs apply while holding the lifecycle lock if token is still
// current, and reports whether it did.
func (l *Lifecycle) Commit(token Token, apply func()) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if token != l.current || l.cancel == nil {
		return false
	}

	apply()

	return true
}

// Package cancel implements the cooperative cancellation token shared between
// the foreground actor and the background pipeline worker. The token is passed
// by reference through the stage call chain and polled at defined safe points;
// raising it never preempts a stage, it only makes the next poll unwind.
package cancel

import (
	"sync/atomic"

	"github.com/lamina3d/lamina/pkg/slicer/support/util/exception"
)

// Token is a raisable cancellation flag. The zero value is ready to use.
type Token struct {
	raised atomic.Bool
}

// NewToken returns a fresh, un-raised token.
func NewToken() *Token {
	return &Token{}
}

// Raise sets the cancellation flag. Safe to call from any goroutine.
func (t *Token) Raise() {
	t.raised.Store(true)
}

// Reset clears the flag so the next pipeline attempt can run.
func (t *Token) Reset() {
	t.raised.Store(false)
}

// Raised reports whether cancellation was requested.
func (t *Token) Raised() bool {
	return t.raised.Load()
}

// Check is the safe-point poll. It returns exception.ErrCanceled when the
// flag is raised and nil otherwise, so stages can unwind with a plain
// `if err := tok.Check(); err != nil { return err }`.
func (t *Token) Check() error {
	if t.raised.Load() {
		return exception.ErrCanceled
	}
	return nil
}

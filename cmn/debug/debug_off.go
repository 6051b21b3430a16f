//go:build !debug

package debug

const enabled = false

// Assert is a no-op in production builds; invariants still get checked by
// the caller's regular error-handling path, this is only the cheap extra
// check used while developing.
func Assert(cond bool, args ...interface{}) {}

func Assertf(cond bool, format string, args ...interface{}) {}

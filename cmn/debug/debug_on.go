//go:build debug

// Package debug provides assertions that are compiled in only under the
// "debug" build tag, the way the teacher keeps its own assertion package out
// of production binaries.
package debug

import (
	"fmt"

	"github.com/golang/glog"
)

const enabled = true

// Assert panics with msg if cond is false. Used to check invariants that
// would otherwise be silent data corruption (e.g. a Readynet row with no
// backing Target).
func Assert(cond bool, args ...interface{}) {
	if cond {
		return
	}
	msg := "assertion failed"
	if len(args) > 0 {
		msg = fmt.Sprint(args...)
	}
	glog.Error(msg)
	panic(msg)
}

func Assertf(cond bool, format string, args ...interface{}) {
	if cond {
		return
	}
	msg := fmt.Sprintf(format, args...)
	glog.Error(msg)
	panic(msg)
}

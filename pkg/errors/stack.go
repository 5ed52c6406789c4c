package errors

import (
	"fmt"
	"runtime"
	"strings"
)

const maxStackDepth = 32

type stack []uintptr

func callers() stack {
	var pcs [maxStackDepth]uintptr
	n := runtime.Callers(3, pcs[:])
	return pcs[0:n]
}

// fullStack renders the captured frames as "file:line func" lines,
// trimming runtime internals.
func (s stack) fullStack() []string {
	frames := runtime.CallersFrames(s)
	var lines []string
	for {
		frame, more := frames.Next()
		if strings.HasPrefix(frame.Function, "runtime.") {
			break
		}
		lines = append(lines, fmt.Sprintf("%s:%d %s", frame.File, frame.Line, frame.Function))
		if !more {
			break
		}
	}
	return lines
}

// limiterKey picks the reporter rate-limit key: the first frame outside
// this package when present.
func limiterKey(stacks []string) string {
	if len(stacks) > 2 {
		return stacks[2]
	}
	if len(stacks) > 0 {
		return stacks[len(stacks)-1]
	}
	return "unknown"
}

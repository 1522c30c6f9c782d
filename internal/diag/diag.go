// Package diag implements the three-tier error taxonomy of spec section
// 7: catastrophic kernel errors halt, task-fatal errors kill the
// offending task, and syscall-local errors are plain returned error
// values handled entirely by their caller (so this package is never
// involved with those). Diagnostics render through a small leveled
// ring-buffer writer in the style of gopher-os's kernel/kfmt package,
// adapted to the fixed-screen-row model go-dav-os's terminal.Print call
// sites assume (no real terminal package is in scope here -- only the
// call contract is).
package diag

import "fmt"

// Row is the diagnostic sink: a fixed-row screen writer on real
// hardware, a line buffer under test. Kept as a package variable so
// kernel/kmain can swap in the real terminal driver at boot while tests
// use the default buffering Writer.
var Row Writer = &Buffer{}

// Writer is anything that can render one diagnostic line at a time.
type Writer interface {
	WriteLine(line string)
}

// Buffer is a Writer that simply remembers every line written to it,
// for tests to assert against.
type Buffer struct {
	Lines []string
}

func (b *Buffer) WriteLine(line string) {
	b.Lines = append(b.Lines, line)
}

// Killer is implemented by whatever can terminate a task; package sched satisfies it without diag importing sched directly,
// avoiding an import cycle (sched does not depend on diag).
type Killer interface {
	Exit()
}

// Warn logs a non-fatal diagnostic.
func Warn(format string, args ...interface{}) {
	Row.WriteLine("WARN: " + fmt.Sprintf(format, args...))
}

// Kill logs a task-fatal diagnostic and terminates the offending task
// via k, per spec section 7: "print diagnostic and call exit() on the
// offending task."
func Kill(k Killer, format string, args ...interface{}) {
	Row.WriteLine("KILL: " + fmt.Sprintf(format, args...))
	k.Exit()
}

// fatalFunc is what Fatal calls after logging. It panics by default;
// tests override it to avoid actually halting the test binary.
var fatalFunc = func() {
	panic("kernel halted")
}

// Fatal logs a catastrophic diagnostic and halts, per spec section 7.
func Fatal(format string, args ...interface{}) {
	Row.WriteLine("FATAL: " + fmt.Sprintf(format, args...))
	fatalFunc()
}

// SetFatalFunc overrides the halt behavior triggered by Fatal. Tests use
// it; nothing in kernel/kmain installs a replacement.
func SetFatalFunc(f func()) {
	fatalFunc = f
}

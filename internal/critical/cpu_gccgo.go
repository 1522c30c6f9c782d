//go:build gccgo

package critical

// cli and sti are implemented in assembly and linked in by the kernel
// build; they execute the CLI/STI instructions directly.
func cli()
func sti()

func disableInterrupts() {
	cli()
}

func enableInterrupts() {
	sti()
}

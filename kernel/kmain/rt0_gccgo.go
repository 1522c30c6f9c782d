//go:build gccgo

package kmain

import "github.com/krihaa/minikernel/internal/blockdev"

// Rt0Kmain is the symbol the assembly bootstrap calls once it has set up
// a stack and switched to protected mode; it wires the real primary-
// master ATA drive in and falls into Kmain's idle loop.
func Rt0Kmain() {
	Kmain(blockdev.ATADevice{})
}

//go:build !gccgo

package sched

// Stub implementation of cpuSwitch for non-gccgo builds: there is no real
// stack to switch to under go test, so this only updates the bookkeeping
// the scheduler needs to verify, exactly as
// github.com/dmarro89/go-dav-os's cpu_switch_stub.go does for its own
// scheduler tests.
func cpuSwitch(oldSP *uintptr, newSP uintptr) {
	if oldSP != nil {
		*oldSP = newSP
	}
}

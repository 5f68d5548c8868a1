//go:build linux

package sensors

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// nameThread sets the name of the calling OS thread. Linux truncates it to
// 15 bytes.
func nameThread(name string) error {
	if len(name) > 15 {
		name = name[:15]
	}
	p, err := unix.BytePtrFromString(name)
	if err != nil {
		return err
	}
	return unix.Prctl(unix.PR_SET_NAME, uintptr(unsafe.Pointer(p)), 0, 0, 0)
}

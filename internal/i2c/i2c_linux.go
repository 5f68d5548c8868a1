//go:build linux

package i2c

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

// ioctl request and message flag from linux/i2c-dev.h and linux/i2c.h.
const (
	ioctlRdwr = 0x0707
	flagRead  = 0x0001
)

var ErrClosed = errors.New("i2c: bus closed")

// segment mirrors struct i2c_msg.
type segment struct {
	addr  uint16
	flags uint16
	len   uint16
	buf   uintptr
}

// rdwrIoctl mirrors struct i2c_rdwr_ioctl_data.
type rdwrIoctl struct {
	segs  uintptr
	nsegs uint32
}

// BusPath is the character device for adapter n.
func BusPath(n int) string {
	return fmt.Sprintf("/dev/i2c-%d", n)
}

// Bus is one /dev/i2c-N adapter. Every transfer holds the bus lock, so a
// sensor reader and a probe can share it.
type Bus struct {
	mu   sync.Mutex
	f    *os.File
	path string
}

func Open(path string) (*Bus, error) {
	path = filepath.Clean(path)
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("i2c: %w", err)
	}
	return &Bus{f: f, path: path}, nil
}

func (b *Bus) Path() string {
	if b == nil {
		return ""
	}
	return b.path
}

// Close is safe to call more than once.
func (b *Bus) Close() error {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.f == nil {
		return nil
	}
	err := b.f.Close()
	b.f = nil
	return err
}

func (b *Bus) Dev(addr uint16) *Dev {
	if b == nil {
		return nil
	}
	return &Dev{bus: b, addr: addr}
}

// transfer runs segs as one I2C_RDWR call, with repeated starts between
// segments.
func (b *Bus) transfer(addr uint16, segs []segment) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.f == nil {
		return ErrClosed
	}
	req := rdwrIoctl{segs: uintptr(unsafe.Pointer(&segs[0])), nsegs: uint32(len(segs))}
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, b.f.Fd(), uintptr(ioctlRdwr), uintptr(unsafe.Pointer(&req)))
	if errno != 0 {
		return fmt.Errorf("i2c: %s addr 0x%02X: %w", b.path, addr, errno)
	}
	return nil
}

// Dev is a register-addressed peripheral at a 7-bit address.
type Dev struct {
	bus  *Bus
	addr uint16
}

func (d *Dev) Addr() uint16 { return d.addr }

// ReadReg fills dst starting at reg. Most sensors auto-increment, so this is
// also a burst read.
func (d *Dev) ReadReg(reg byte, dst []byte) error {
	return d.do([]byte{reg}, dst)
}

func (d *Dev) ReadRegU8(reg byte) (byte, error) {
	var v [1]byte
	if err := d.ReadReg(reg, v[:]); err != nil {
		return 0, err
	}
	return v[0], nil
}

func (d *Dev) WriteReg(reg, value byte) error {
	return d.do([]byte{reg, value}, nil)
}

func (d *Dev) do(out, in []byte) error {
	if d == nil || d.bus == nil {
		return errors.New("i2c: device is nil")
	}
	if d.addr == 0 || d.addr > 0x7F {
		return fmt.Errorf("i2c: invalid addr 0x%X", d.addr)
	}
	segs := make([]segment, 0, 2)
	if len(out) > 0 {
		segs = append(segs, segment{addr: d.addr, len: uint16(len(out)), buf: uintptr(unsafe.Pointer(&out[0]))})
	}
	if len(in) > 0 {
		segs = append(segs, segment{addr: d.addr, flags: flagRead, len: uint16(len(in)), buf: uintptr(unsafe.Pointer(&in[0]))})
	}
	if len(segs) == 0 {
		return nil
	}
	return d.bus.transfer(d.addr, segs)
}

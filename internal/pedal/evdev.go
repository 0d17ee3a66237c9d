// Raw evdev device access: the input_event wire struct and the ioctls used
// to probe a device's supported button/axis codes and axis ranges.
//
// Grounded stylistically on the teacher's direct golang.org/x/sys usage
// elsewhere in its udev/netlink stack (the teacher never touches evdev
// itself — Dire Wolf's inputs are radio audio and serial PTT lines, not
// character-device pedals — so this fills a gap its dependency list implies
// but never exercises).
package pedal

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	evSyn = 0x00
	evKey = 0x01
	evAbs = 0x03

	keyMax = 0x2ff
	absMax = 0x3f

	bitsPerByte = 8
)

// inputEvent mirrors struct input_event from linux/input.h on 64-bit
// little-endian hosts (two 8-byte time fields, then type/code/value).
type inputEvent struct {
	Sec   int64
	Usec  int64
	Type  uint16
	Code  uint16
	Value int32
}

const inputEventSize = 24 // 8 + 8 + 2 + 2 + 4, matching the struct above

type inputAbsInfo struct {
	Value      int32
	Minimum    int32
	Maximum    int32
	Fuzz       int32
	Flat       int32
	Resolution int32
}

// ioctl direction/type encoding, following Linux's _IOC macro.
const (
	iocNRBits    = 8
	iocTypeBits  = 8
	iocSizeBits  = 14
	iocNRShift   = 0
	iocTypeShift = iocNRShift + iocNRBits
	iocSizeShift = iocTypeShift + iocTypeBits
	iocDirShift  = iocSizeShift + iocSizeBits
	iocRead      = 2
)

func ioc(dir, typ, nr, size uintptr) uintptr {
	return (dir << iocDirShift) | (typ << iocTypeShift) | (nr << iocNRShift) | (size << iocSizeShift)
}

func eviocgbit(ev int, length int) uintptr {
	return ioc(iocRead, uintptr('E'), uintptr(0x20+ev), uintptr(length))
}

func eviocgabs(abs int) uintptr {
	return ioc(iocRead, uintptr('E'), uintptr(0x40+abs), uintptr(unsafe.Sizeof(inputAbsInfo{})))
}

func eviocgname(length int) uintptr {
	return ioc(iocRead, uintptr('E'), 0x06, uintptr(length))
}

func ioctl(fd uintptr, request uintptr, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, request, uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

func testBit(bits []byte, n int) bool {
	return bits[n/bitsPerByte]&(1<<(uint(n)%bitsPerByte)) != 0
}

// probeCapabilities reads f's supported EV_KEY/EV_ABS code bitsets and, for
// each supported axis, its min/max (spec §4.5's probe protocol): codes are
// assigned contiguous indices starting at 0 in code-ascending order.
func probeCapabilities(f *os.File) (buttons, axes map[uint16]uint16, axisMin, axisMax []int32, err error) {
	keyBits := make([]byte, (keyMax+7)/8)
	if err := ioctl(f.Fd(), eviocgbit(evKey, len(keyBits)), unsafe.Pointer(&keyBits[0])); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("pedal: EVIOCGBIT(EV_KEY): %w", err)
	}

	absBits := make([]byte, (absMax+7)/8)
	if err := ioctl(f.Fd(), eviocgbit(evAbs, len(absBits)), unsafe.Pointer(&absBits[0])); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("pedal: EVIOCGBIT(EV_ABS): %w", err)
	}

	buttons = make(map[uint16]uint16)
	idx := uint16(0)
	for code := 0; code < keyMax; code++ {
		if testBit(keyBits, code) {
			buttons[uint16(code)] = idx
			idx++
		}
	}

	axes = make(map[uint16]uint16)
	idx = 0
	for code := 0; code < absMax; code++ {
		if !testBit(absBits, code) {
			continue
		}
		var info inputAbsInfo
		if err := ioctl(f.Fd(), eviocgabs(code), unsafe.Pointer(&info)); err != nil {
			return nil, nil, nil, nil, fmt.Errorf("pedal: EVIOCGABS(%d): %w", code, err)
		}

		axes[uint16(code)] = idx
		idx++

		min, max := info.Minimum, info.Maximum
		if min == max {
			min, max = -(1 << 31), (1<<31)-1
		}
		axisMin = append(axisMin, min)
		axisMax = append(axisMax, max)
	}

	return buttons, axes, axisMin, axisMax, nil
}

// readEvent reads one raw input_event from f, retrying on short reads
// (evdev nodes deliver events atomically, but keep this defensive against
// the same class of flaky reads decoder.Decoder guards against).
func readEvent(f *os.File) (inputEvent, error) {
	var buf [inputEventSize]byte
	if _, err := readFull(f, buf[:]); err != nil {
		return inputEvent{}, err
	}

	return inputEvent{
		Sec:   int64(binary.LittleEndian.Uint64(buf[0:8])),
		Usec:  int64(binary.LittleEndian.Uint64(buf[8:16])),
		Type:  binary.LittleEndian.Uint16(buf[16:18]),
		Code:  binary.LittleEndian.Uint16(buf[18:20]),
		Value: int32(binary.LittleEndian.Uint32(buf[20:24])),
	}, nil
}

func readFull(f *os.File, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := f.Read(buf[total:])
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, fmt.Errorf("pedal: zero-byte non-EOF read from %s", f.Name())
		}
		total += n
	}
	return total, nil
}

func (e inputEvent) timestamp() time.Time {
	return time.Unix(e.Sec, e.Usec*1000)
}

// deviceName reads f's human-readable name via EVIOCGNAME, falling back to
// the device node's basename if the ioctl fails.
func deviceName(f *os.File) string {
	buf := make([]byte, 256)
	if err := ioctl(f.Fd(), eviocgname(len(buf)), unsafe.Pointer(&buf[0])); err != nil {
		return filepath.Base(f.Name())
	}
	if i := indexZeroByte(buf); i >= 0 {
		return string(buf[:i])
	}
	return string(buf)
}

func indexZeroByte(b []byte) int {
	for i, c := range b {
		if c == 0 {
			return i
		}
	}
	return -1
}

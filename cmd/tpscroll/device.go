//go:build linux

package main

import (
	"fmt"
	"os"
	"strings"
	"unsafe"

	"golang.org/x/sys/unix"
)

const maxEventDevices = 32

// ioc assembles a linux _IOC ioctl request number.
func ioc(dir, typ, nr, size uintptr) uintptr {
	return dir<<30 | size<<16 | typ<<8 | nr
}

const (
	iocRead  = 2
	iocWrite = 1
)

// EVIOCGNAME(len) = _IOC(_IOC_READ, 'E', 0x06, len)
func eviocgName(size uintptr) uintptr {
	return ioc(iocRead, 'E', 0x06, size)
}

// EVIOCGRAB = _IOW('E', 0x90, int)
var eviocGrab = ioc(iocWrite, 'E', 0x90, unsafe.Sizeof(int32(0)))

// deviceName reads the kernel-reported device name for an event node.
func deviceName(f *os.File) (string, error) {
	buf := make([]byte, 256)
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(), eviocgName(uintptr(len(buf))), uintptr(unsafe.Pointer(&buf[0])))
	if errno != 0 {
		return "", fmt.Errorf("EVIOCGNAME %s: %w", f.Name(), errno)
	}
	if i := strings.IndexByte(string(buf), 0); i >= 0 {
		buf = buf[:i]
	}
	return string(buf), nil
}

// findDevices scans /dev/input/event* and returns the paths whose device
// names contain any of the keywords.
func findDevices(keywords []string) ([]string, error) {
	var paths []string
	for i := 0; i < maxEventDevices; i++ {
		path := fmt.Sprintf("/dev/input/event%d", i)
		f, err := os.Open(path)
		if err != nil {
			continue
		}
		name, err := deviceName(f)
		f.Close()
		if err != nil {
			continue
		}
		if matchesKeywords(name, keywords) {
			paths = append(paths, path)
		}
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no input device matched keywords %v", keywords)
	}
	return paths, nil
}

func matchesKeywords(name string, keywords []string) bool {
	lower := strings.ToLower(name)
	for _, kw := range keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// openDevice opens an event node and optionally grabs it for exclusive
// access. Grabbing stops the kernel from also delivering the raw wheel
// ticks to the desktop, which would double every scroll.
func openDevice(path string, grab bool) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if grab {
		if err := unix.IoctlSetInt(int(f.Fd()), uint(eviocGrab), 1); err != nil {
			f.Close()
			return nil, fmt.Errorf("grab %s: %w", path, err)
		}
	}
	return f, nil
}

// releaseDevice undoes a grab. Errors are ignored on the shutdown path.
func releaseDevice(f *os.File) {
	unix.IoctlSetInt(int(f.Fd()), uint(eviocGrab), 0)
}

//go:build linux

package main

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"log/slog"
	"os"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// uinput ioctl requests (linux/uinput.h).
const (
	uinputMaxNameSize = 80

	uiSetEvBit   = 0x40045564
	uiSetKeyBit  = 0x40045565
	uiSetRelBit  = 0x40045566
	uiDevSetup   = 0x405c5503
	uiDevCreate  = 0x5501
	uiDevDestroy = 0x5502
)

type inputID struct {
	Bustype uint16
	Vendor  uint16
	Product uint16
	Version uint16
}

type uinputSetup struct {
	ID           inputID
	Name         [uinputMaxNameSize]byte
	FFEffectsMax uint32
}

// uinputSink is the virtual scroll device. It exposes hi-res wheel axes
// plus the legacy detent axes and a middle button, and implements
// WheelSink over raw writes to /dev/uinput.
type uinputSink struct {
	f   *os.File
	log *slog.Logger

	// Hi-res remainder per axis, folded into legacy detent events so
	// consumers without hi-res support still scroll at the right rate.
	detentCarry [2]int32
}

func newUinputSink(log *slog.Logger) (*uinputSink, error) {
	f, err := os.OpenFile("/dev/uinput", os.O_WRONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("open /dev/uinput: %w", err)
	}

	caps := []struct {
		req  uint
		val  int
		name string
	}{
		{uiSetEvBit, int(evRel), "EV_REL"},
		{uiSetRelBit, int(relWheel), "REL_WHEEL"},
		{uiSetRelBit, int(relHWheel), "REL_HWHEEL"},
		{uiSetRelBit, int(relWheelHiRes), "REL_WHEEL_HI_RES"},
		{uiSetRelBit, int(relHWheelHiRes), "REL_HWHEEL_HI_RES"},
		{uiSetEvBit, int(evKey), "EV_KEY"},
		{uiSetKeyBit, int(btnMiddle), "BTN_MIDDLE"},
	}
	for _, c := range caps {
		if err := unix.IoctlSetInt(int(f.Fd()), c.req, c.val); err != nil {
			f.Close()
			return nil, fmt.Errorf("uinput set %s: %w", c.name, err)
		}
	}

	var setup uinputSetup
	copy(setup.Name[:], "tpscroll virtual wheel")
	setup.ID.Bustype = 0x03
	setup.ID.Vendor = 0x17ef
	setup.ID.Product = 0x6047
	setup.ID.Version = 1
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(), uiDevSetup, uintptr(unsafe.Pointer(&setup))); errno != 0 {
		f.Close()
		return nil, fmt.Errorf("uinput device setup: %w", errno)
	}
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(), uiDevCreate, 0); errno != 0 {
		f.Close()
		return nil, fmt.Errorf("uinput device create: %w", errno)
	}

	// Give the desktop's input stack a moment to pick up the new node
	// before events start flowing.
	time.Sleep(100 * time.Millisecond)

	return &uinputSink{f: f, log: log}, nil
}

// SendWheel emits one scroll delta in hi-res units, plus any whole
// detents the running remainder has accumulated. Zero deltas are
// swallowed here so the engine can emit unconditionally every tick.
func (u *uinputSink) SendWheel(delta Delta) {
	if delta.Value == 0 {
		return
	}

	hiResCode := relWheelHiRes
	legacyCode := relWheel
	if delta.Axis == AxisHorizontal {
		hiResCode = relHWheelHiRes
		legacyCode = relHWheel
	}

	events := []inputEvent{{Type: evRel, Code: hiResCode, Value: delta.Value}}

	u.detentCarry[delta.Axis] += delta.Value
	if detents := u.detentCarry[delta.Axis] / WheelUnit; detents != 0 {
		u.detentCarry[delta.Axis] -= detents * WheelUnit
		events = append(events, inputEvent{Type: evRel, Code: legacyCode, Value: detents})
	}

	events = append(events, inputEvent{Type: evSyn, Code: synReport})
	u.write(events)
}

// SendMiddleClick emits a full press/release pair.
func (u *uinputSink) SendMiddleClick() {
	u.write([]inputEvent{
		{Type: evKey, Code: btnMiddle, Value: evValuePress},
		{Type: evSyn, Code: synReport},
	})
	u.write([]inputEvent{
		{Type: evKey, Code: btnMiddle, Value: evValueRelease},
		{Type: evSyn, Code: synReport},
	})
}

func (u *uinputSink) write(events []inputEvent) {
	var buf bytes.Buffer
	now := time.Now()
	for i := range events {
		events[i].Sec = now.Unix()
		events[i].Usec = int64(now.Nanosecond() / 1000)
		if err := binary.Write(&buf, binary.LittleEndian, events[i]); err != nil {
			u.log.Error("encode uinput event", "error", err)
			return
		}
	}
	if _, err := u.f.Write(buf.Bytes()); err != nil {
		// Emission is fire-and-forget; log and carry on.
		u.log.Error("write uinput event", "error", err)
	}
}

func (u *uinputSink) Close() error {
	unix.Syscall(unix.SYS_IOCTL, u.f.Fd(), uiDevDestroy, 0)
	return u.f.Close()
}

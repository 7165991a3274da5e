//go:build darwin

package input

/*
#cgo darwin CFLAGS: -x objective-c -fmodules -fobjc-arc
#cgo darwin LDFLAGS: -framework CoreGraphics -framework ApplicationServices
#include <ApplicationServices/ApplicationServices.h>
#include <CoreFoundation/CoreFoundation.h>
#include <stdint.h>

static Boolean axIsTrusted(void) {
        return AXIsProcessTrusted();
}

extern CGEventRef goHandleInput(CGEventTapProxy proxy, CGEventType type, CGEventRef event, void *userInfo);

static CFRunLoopSourceRef startInputTap(uintptr_t handle, CGEventMask mask, CFMachPortRef *tapOut) {
        CFMachPortRef tap = CGEventTapCreate(kCGSessionEventTap,
                                             kCGHeadInsertEventTap,
                                             kCGEventTapOptionListenOnly,
                                             mask,
                                             goHandleInput,
                                             (void *)handle);
        if (tap == NULL) {
                return NULL;
        }
        CGEventTapEnable(tap, true);
        *tapOut = tap;
        return CFMachPortCreateRunLoopSource(kCFAllocatorDefault, tap, 0);
}

static void disableTap(CFMachPortRef tap) {
        CGEventTapEnable(tap, false);
        CFMachPortInvalidate(tap);
}

static CGEventMask maskBit(CGEventType type) {
        return ((CGEventMask)1) << type;
}

static void addSource(CFRunLoopRef loop, CFRunLoopSourceRef source) {
        CFRunLoopAddSource(loop, source, kCFRunLoopCommonModes);
}

static void removeSource(CFRunLoopRef loop, CFRunLoopSourceRef source) {
        CFRunLoopRemoveSource(loop, source, kCFRunLoopCommonModes);
}

static double eventX(CGEventRef event) { return CGEventGetLocation(event).x; }
static double eventY(CGEventRef event) { return CGEventGetLocation(event).y; }

static int64_t eventKeycode(CGEventRef event) {
        return CGEventGetIntegerValueField(event, kCGKeyboardEventKeycode);
}

static int64_t scrollDelta(CGEventRef event, int axis) {
        return CGEventGetIntegerValueField(event, axis == 1 ? kCGScrollWheelEventDeltaAxis1 : kCGScrollWheelEventDeltaAxis2);
}

static int eventChars(CGEventRef event, UniChar *buf, int max) {
        UniCharCount n = 0;
        CGEventKeyboardGetUnicodeString(event, max, &n, buf);
        return (int)n;
}
*/
import "C"

import (
	"context"
	"errors"
	"runtime"
	"runtime/cgo"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf16"
	"unsafe"
)

// Default returns the Quartz event tap hook and its provider name.
func Default() (Hook, string) { return quartzHook{}, "quartz" }

type quartzHook struct{}

type tapStream struct {
	fn  func(Raw)
	now func() time.Time
}

func (quartzHook) Listen(ctx context.Context, mask Mask, fn func(Raw)) error {
	if C.axIsTrusted() == C.Boolean(0) {
		return ErrAccessibilityPermission
	}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	handle := cgo.NewHandle(&tapStream{fn: fn, now: time.Now})
	defer handle.Delete()

	var cgMask C.CGEventMask
	if mask.Has(MaskKeyboard) {
		cgMask |= C.maskBit(C.kCGEventKeyDown)
	}
	if mask.Has(MaskPointer) {
		cgMask |= C.maskBit(C.kCGEventMouseMoved) |
			C.maskBit(C.kCGEventLeftMouseDragged) |
			C.maskBit(C.kCGEventRightMouseDragged) |
			C.maskBit(C.kCGEventLeftMouseDown) |
			C.maskBit(C.kCGEventLeftMouseUp) |
			C.maskBit(C.kCGEventRightMouseDown) |
			C.maskBit(C.kCGEventRightMouseUp) |
			C.maskBit(C.kCGEventOtherMouseDown) |
			C.maskBit(C.kCGEventOtherMouseUp) |
			C.maskBit(C.kCGEventScrollWheel)
	}

	var tap C.CFMachPortRef
	source := C.startInputTap(C.uintptr_t(handle), cgMask, &tap)
	if source == 0 {
		return errors.New("failed to create CGEvent tap")
	}
	defer C.CFRelease(C.CFTypeRef(source))
	defer C.CFRelease(C.CFTypeRef(tap))

	loop := C.CFRunLoopGetCurrent()
	C.addSource(loop, source)

	var stopOnce sync.Once
	stop := func() { stopOnce.Do(func() { C.CFRunLoopStop(loop) }) }
	done := make(chan struct{})
	watcher := make(chan struct{})
	go func() {
		defer close(watcher)
		select {
		case <-ctx.Done():
			stop()
		case <-done:
		}
	}()

	C.CFRunLoopRun()
	close(done)
	<-watcher

	C.removeSource(loop, source)
	C.disableTap(tap)
	return nil
}

//export goHandleInput
func goHandleInput(_ C.CGEventTapProxy, eventType C.CGEventType, ev C.CGEventRef, userInfo unsafe.Pointer) C.CGEventRef {
	stream, ok := cgo.Handle(uintptr(userInfo)).Value().(*tapStream)
	if !ok {
		return ev
	}
	raw := Raw{At: stream.now(), X: int(C.eventX(ev)), Y: int(C.eventY(ev))}

	switch eventType {
	case C.kCGEventKeyDown:
		raw.Kind = KeyDown
		raw.Char = eventChars(ev)
		raw.Key = keyName(int(C.eventKeycode(ev)), raw.Char)
	case C.kCGEventMouseMoved, C.kCGEventLeftMouseDragged, C.kCGEventRightMouseDragged:
		raw.Kind = PointerMove
	case C.kCGEventLeftMouseDown:
		raw.Kind, raw.Button = PointerDown, "left"
	case C.kCGEventLeftMouseUp:
		raw.Kind, raw.Button = PointerUp, "left"
	case C.kCGEventRightMouseDown:
		raw.Kind, raw.Button = PointerDown, "right"
	case C.kCGEventRightMouseUp:
		raw.Kind, raw.Button = PointerUp, "right"
	case C.kCGEventOtherMouseDown:
		raw.Kind, raw.Button = PointerDown, "other"
	case C.kCGEventOtherMouseUp:
		raw.Kind, raw.Button = PointerUp, "other"
	case C.kCGEventScrollWheel:
		raw.Kind = Scroll
		raw.DY = int(C.scrollDelta(ev, 1))
		raw.DX = int(C.scrollDelta(ev, 2))
	default:
		return ev
	}
	stream.fn(raw)
	return ev
}

func eventChars(ev C.CGEventRef) string {
	var buf [8]C.UniChar
	n := int(C.eventChars(ev, &buf[0], C.int(len(buf))))
	if n <= 0 {
		return ""
	}
	units := make([]uint16, n)
	for i := 0; i < n; i++ {
		units[i] = uint16(buf[i])
	}
	return string(utf16.Decode(units))
}

// keyName maps macOS virtual keycodes for non-printing keys. Printable keys
// are named by the character they produce.
func keyName(code int, char string) string {
	if name, ok := specialKeys[code]; ok {
		return name
	}
	if char != "" {
		return strings.ToLower(char)
	}
	return "key_" + strconv.Itoa(code)
}

var specialKeys = map[int]string{
	36: "return", 48: "tab", 49: "space", 51: "backspace", 53: "escape",
	117: "delete", 115: "home", 119: "end", 116: "page_up", 121: "page_down",
	123: "left", 124: "right", 125: "down", 126: "up",
	122: "f1", 120: "f2", 99: "f3", 118: "f4", 96: "f5", 97: "f6",
	98: "f7", 100: "f8", 101: "f9", 109: "f10", 103: "f11", 111: "f12",
}

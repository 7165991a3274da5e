//go:build darwin

package activewindow

/*
#cgo darwin CFLAGS: -x objective-c -fmodules -fobjc-arc
#cgo darwin LDFLAGS: -framework ApplicationServices -framework Cocoa
#include <ApplicationServices/ApplicationServices.h>
#include <Cocoa/Cocoa.h>

static CFStringRef copyFrontmostAppName(void) {
        NSRunningApplication *app = [[NSWorkspace sharedWorkspace] frontmostApplication];
        if (app == nil) {
                return NULL;
        }
        NSString *name = app.localizedName ?: @"";
        return (__bridge_retained CFStringRef)name;
}

static CFStringRef copyFocusedWindowTitle(void) {
        AXUIElementRef systemWide = AXUIElementCreateSystemWide();
        if (systemWide == NULL) {
                return NULL;
        }
        AXUIElementRef app = NULL;
        AXError err = AXUIElementCopyAttributeValue(systemWide, kAXFocusedApplicationAttribute, (CFTypeRef *)&app);
        CFRelease(systemWide);
        if (err != kAXErrorSuccess || app == NULL) {
                if (app != NULL) {
                        CFRelease(app);
                }
                return NULL;
        }
        AXUIElementRef window = NULL;
        err = AXUIElementCopyAttributeValue(app, kAXFocusedWindowAttribute, (CFTypeRef *)&window);
        CFRelease(app);
        if (err != kAXErrorSuccess || window == NULL) {
                if (window != NULL) {
                        CFRelease(window);
                }
                return NULL;
        }
        CFStringRef title = NULL;
        AXUIElementCopyAttributeValue(window, kAXTitleAttribute, (CFTypeRef *)&title);
        CFRelease(window);
        return title;
}
*/
import "C"

import (
	"context"
	"unsafe"
)

type quartzResolver struct{}

func platformResolver() (Resolver, string) {
	return quartzResolver{}, "nsworkspace"
}

// Resolve reads AppKit state directly, which completes well inside CallTimeout.
func (quartzResolver) Resolve(context.Context) (string, string) {
	return cfStringToGo(C.copyFrontmostAppName()), cfStringToGo(C.copyFocusedWindowTitle())
}

func cfStringToGo(str C.CFStringRef) string {
	if str == 0 {
		return ""
	}
	defer C.CFRelease(C.CFTypeRef(str))
	length := C.CFStringGetLength(str)
	if length == 0 {
		return ""
	}
	bufSize := C.CFIndex(1 + 4*length)
	buf := make([]byte, int(bufSize))
	if C.CFStringGetCString(str, (*C.char)(unsafe.Pointer(&buf[0])), bufSize, C.kCFStringEncodingUTF8) == C.Boolean(0) {
		return ""
	}
	return C.GoString((*C.char)(unsafe.Pointer(&buf[0])))
}

//go:build darwin

package screen

/*
#cgo darwin CFLAGS: -x objective-c -fobjc-arc
#cgo darwin LDFLAGS: -framework Foundation -framework CoreGraphics -framework ImageIO

#import <Foundation/Foundation.h>
#import <CoreGraphics/CoreGraphics.h>
#import <ImageIO/ImageIO.h>
#import <stdlib.h>
#import <string.h>

struct GrabResult {
        CFDataRef data;
        char *err;
        int denied;
};

static struct GrabResult grab_main_display(void) {
        struct GrabResult result = {0};
        if (@available(macOS 10.15, *)) {
                if (!CGPreflightScreenCaptureAccess()) {
                        result.denied = 1;
                        result.err = strdup("screen recording permission not granted");
                        return result;
                }
        }
        CGImageRef image = CGDisplayCreateImage(CGMainDisplayID());
        if (!image) {
                result.err = strdup("display capture failed");
                return result;
        }
        CFMutableDataRef data = CFDataCreateMutable(NULL, 0);
        if (!data) {
                result.err = strdup("failed to allocate image buffer");
                CGImageRelease(image);
                return result;
        }
        CGImageDestinationRef dest = CGImageDestinationCreateWithData(data, CFSTR("public.png"), 1, NULL);
        if (!dest) {
                result.err = strdup("failed to create image destination");
                CFRelease(data);
                CGImageRelease(image);
                return result;
        }
        CGImageDestinationAddImage(dest, image, NULL);
        BOOL ok = CGImageDestinationFinalize(dest);
        CFRelease(dest);
        CGImageRelease(image);
        if (!ok) {
                result.err = strdup("failed to finalize image");
                CFRelease(data);
                return result;
        }
        result.data = data;
        return result;
}

static const UInt8 *grab_bytes(CFDataRef data) { return CFDataGetBytePtr(data); }
static CFIndex grab_length(CFDataRef data) { return CFDataGetLength(data); }
*/
import "C"

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"
	"unsafe"
)

// Default returns the CoreGraphics display grabber.
func Default() (Grabber, string) {
	return GrabberFunc(grabCoreGraphics), "coregraphics"
}

func grabCoreGraphics(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	result := C.grab_main_display()
	if result.err != nil {
		defer C.free(unsafe.Pointer(result.err))
		msg := C.GoString(result.err)
		if result.denied != 0 {
			return Frame{}, newPermissionError(msg)
		}
		return Frame{}, errors.New(msg)
	}
	if result.data == 0 {
		return Frame{}, errors.New("no image data returned from capture")
	}
	encoded := C.GoBytes(unsafe.Pointer(C.grab_bytes(result.data)), C.int(C.grab_length(result.data)))
	C.CFRelease(C.CFTypeRef(result.data))

	img, err := png.Decode(bytes.NewReader(encoded))
	if err != nil {
		return Frame{}, fmt.Errorf("decode display image: %w", err)
	}
	return Frame{Image: img, Backend: "coregraphics"}, nil
}

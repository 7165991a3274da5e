//go:build windows

package activewindow

import (
	"context"
	"path/filepath"
	"strings"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32             = windows.NewLazySystemDLL("user32.dll")
	procGetWindowTextW = user32.NewProc("GetWindowTextW")
)

type win32Resolver struct{}

func platformResolver() (Resolver, string) {
	if err := procGetWindowTextW.Find(); err != nil {
		return Static{}, "unavailable"
	}
	return win32Resolver{}, "win32"
}

func (win32Resolver) Resolve(context.Context) (string, string) {
	hwnd := windows.GetForegroundWindow()
	if hwnd == 0 {
		return "", ""
	}
	return processName(hwnd), windowTitle(hwnd)
}

func windowTitle(hwnd windows.HWND) string {
	buf := make([]uint16, 512)
	n, _, _ := procGetWindowTextW.Call(uintptr(hwnd), uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
	if n == 0 {
		return ""
	}
	return windows.UTF16ToString(buf[:n])
}

func processName(hwnd windows.HWND) string {
	var pid uint32
	if _, err := windows.GetWindowThreadProcessId(hwnd, &pid); err != nil || pid == 0 {
		return ""
	}
	h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, pid)
	if err != nil {
		return ""
	}
	defer windows.CloseHandle(h)

	buf := make([]uint16, windows.MAX_PATH)
	size := uint32(len(buf))
	if err := windows.QueryFullProcessImageName(h, 0, &buf[0], &size); err != nil {
		return ""
	}
	exe := filepath.Base(windows.UTF16ToString(buf[:size]))
	return strings.TrimSuffix(exe, filepath.Ext(exe))
}

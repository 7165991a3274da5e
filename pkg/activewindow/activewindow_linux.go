//go:build linux

package activewindow

import (
	"context"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// xdotoolResolver queries X11 through xdotool. Wayland sessions without
// XWayland focus tracking resolve to Unknown.
type xdotoolResolver struct {
	bin string
}

func platformResolver() (Resolver, string) {
	bin, err := exec.LookPath("xdotool")
	if err != nil || os.Getenv("DISPLAY") == "" {
		return Static{}, "unavailable"
	}
	return xdotoolResolver{bin: bin}, "xdotool"
}

func (r xdotoolResolver) Resolve(ctx context.Context) (string, string) {
	title := r.run(ctx, "getactivewindow", "getwindowname")
	pid, err := strconv.Atoi(r.run(ctx, "getactivewindow", "getwindowpid"))
	if err != nil || pid <= 0 {
		return "", title
	}
	comm, err := os.ReadFile("/proc/" + strconv.Itoa(pid) + "/comm")
	if err != nil {
		return "", title
	}
	return strings.TrimSpace(string(comm)), title
}

func (r xdotoolResolver) run(ctx context.Context, args ...string) string {
	out, err := exec.CommandContext(ctx, r.bin, args...).Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

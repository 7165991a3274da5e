//go:build !darwin && !linux && !windows

package activewindow

func platformResolver() (Resolver, string) {
	return Static{}, "unavailable"
}

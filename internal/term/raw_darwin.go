//go:build darwin

package term

import "golang.org/x/sys/unix"

// enterRawMode disables echo and line buffering while leaving signal keys
// alone, so the usual interrupt still works locally. The returned function
// restores the previous modes.
func enterRawMode(fd uintptr) (func() error, error) {
	old, err := unix.IoctlGetTermios(int(fd), unix.TIOCGETA)
	if err != nil {
		return nil, err
	}

	raw := *old
	raw.Lflag &^= unix.ECHO | unix.ICANON
	raw.Iflag &^= unix.IXON | unix.ICRNL
	raw.Cc[unix.VMIN] = 1
	raw.Cc[unix.VTIME] = 0
	if err := unix.IoctlSetTermios(int(fd), unix.TIOCSETA, &raw); err != nil {
		return nil, err
	}

	return func() error {
		return unix.IoctlSetTermios(int(fd), unix.TIOCSETA, old)
	}, nil
}

func windowSize(fd uintptr) (width, height float64, ok bool) {
	ws, err := unix.IoctlGetWinsize(int(fd), unix.TIOCGWINSZ)
	if err != nil || ws.Col == 0 || ws.Row == 0 {
		return 0, 0, false
	}
	return float64(ws.Col), float64(ws.Row), true
}

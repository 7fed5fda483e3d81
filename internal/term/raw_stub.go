//go:build !linux && !darwin

package term

import "github.com/pkg/errors"

func enterRawMode(fd uintptr) (func() error, error) {
	return nil, errors.New("raw terminal capture is not supported on this platform")
}

func windowSize(fd uintptr) (width, height float64, ok bool) {
	return 0, 0, false
}

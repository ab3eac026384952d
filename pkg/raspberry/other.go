//go:build !linux

package raspberry

func openChip(string) (GPIO, error) {
	return nil, ErrNotSupported
}

func openMem() (GPIO, error) {
	return nil, ErrNotSupported
}

//go:build !linux

package watch

func newInotifyBackend() (backend, error) {
	return nil, ErrUnsupportedBackend
}

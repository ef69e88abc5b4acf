//go:build !linux
// +build !linux

package he

// TODO: add a kqueue Poller for darwin and the BSDs.
func defaultPoller(int) (Poller, error) {
	return nil, ErrUnsupported
}

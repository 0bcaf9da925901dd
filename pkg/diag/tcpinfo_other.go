//go:build !linux

package diag

import "net"

// Supported reports whether TCP_INFO sampling is available on this platform.
func Supported() bool {
	return false
}

type platformSampler struct{}

func (platformSampler) Sample(net.Conn) (Sample, bool) {
	return Sample{}, false
}

//go:build linux

package diag

import (
	"net"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// Supported reports whether TCP_INFO sampling is available on this platform.
func Supported() bool {
	return true
}

type platformSampler struct{}

func (platformSampler) Sample(conn net.Conn) (Sample, bool) {
	sc, ok := conn.(syscall.Conn)
	if !ok {
		return Sample{}, false
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return Sample{}, false
	}

	var (
		info    *unix.TCPInfo
		sockErr error
	)
	err = raw.Control(func(fd uintptr) {
		info, sockErr = unix.GetsockoptTCPInfo(int(fd), unix.IPPROTO_TCP, unix.TCP_INFO)
	})
	if err != nil || sockErr != nil || info == nil {
		return Sample{}, false
	}

	return Sample{
		Timestamp: time.Now(),
		TCPInfo: TCPInfo{
			State:        info.State,
			Retransmits:  info.Retransmits,
			RTO:          info.Rto,
			SndMSS:       info.Snd_mss,
			RcvMSS:       info.Rcv_mss,
			Unacked:      info.Unacked,
			Lost:         info.Lost,
			Retrans:      info.Retrans,
			PMTU:         info.Pmtu,
			RTT:          info.Rtt,
			RTTVar:       info.Rttvar,
			SndSsthresh:  info.Snd_ssthresh,
			SndCwnd:      info.Snd_cwnd,
			RcvSpace:     info.Rcv_space,
			TotalRetrans: info.Total_retrans,
		},
	}, true
}

//go:build !linux

package companion

import (
	"errors"
	"net"
)

type peerCred struct {
	Pid int32
	Uid uint32
}

var errPeerCredUnsupported = errors.New("companion: peer credentials unsupported on this platform")

func peerCredentials(net.Conn) (*peerCred, error) {
	return nil, errPeerCredUnsupported
}

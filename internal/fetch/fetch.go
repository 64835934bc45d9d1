package fetch

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/danmuck/devprofile/internal/protocol/frame"
	"github.com/rs/zerolog/log"
)

var (
	ErrConnect   = errors.New("fetch: connect to helper failed")
	ErrTransport = errors.New("fetch: transport failed")
	ErrNoSocket  = errors.New("fetch: helper socket path not set")
)

// Connector hands out one fresh channel to the privileged helper.
type Connector interface {
	ConnectToPrivilegedHelper() (io.ReadWriteCloser, error)
}

// Fetch reads one configuration document from the helper. An empty
// document (L<=0) is returned as nil with a nil error. The channel is
// closed on every path.
func Fetch(c Connector, limits frame.Limits) ([]byte, error) {
	conn, err := c.ConnectToPrivilegedHelper()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnect, err)
	}
	if conn == nil {
		return nil, ErrConnect
	}
	defer conn.Close()

	doc, err := frame.ReadDocument(conn, limits)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	log.Debug().Int("bytes", len(doc)).Msg("fetch.Fetch document received")
	return doc, nil
}

// UnixConnector dials the helper's unix socket directly. Timeout bounds the
// dial and the whole exchange when positive.
type UnixConnector struct {
	Path    string
	Timeout time.Duration
}

func (u UnixConnector) ConnectToPrivilegedHelper() (io.ReadWriteCloser, error) {
	path := strings.TrimSpace(u.Path)
	if path == "" {
		return nil, ErrNoSocket
	}
	dialer := net.Dialer{Timeout: u.Timeout}
	conn, err := dialer.Dial("unix", path)
	if err != nil {
		return nil, err
	}
	if u.Timeout > 0 {
		if err := conn.SetDeadline(time.Now().Add(u.Timeout)); err != nil {
			_ = conn.Close()
			return nil, err
		}
	}
	return conn, nil
}

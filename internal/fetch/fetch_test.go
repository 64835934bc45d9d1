package fetch

import (
	"bytes"
	"errors"
	"io"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/danmuck/devprofile/internal/protocol/frame"
	"github.com/danmuck/devprofile/internal/testutil/testlog"
)

type connectorFunc func() (io.ReadWriteCloser, error)

func (f connectorFunc) ConnectToPrivilegedHelper() (io.ReadWriteCloser, error) { return f() }

type scriptedConn struct {
	*bytes.Reader
	closed bool
}

func (c *scriptedConn) Write(p []byte) (int, error) { return len(p), nil }
func (c *scriptedConn) Close() error                { c.closed = true; return nil }

func scripted(wire []byte) (*scriptedConn, Connector) {
	conn := &scriptedConn{Reader: bytes.NewReader(wire)}
	return conn, connectorFunc(func() (io.ReadWriteCloser, error) { return conn, nil })
}

func TestFetchDocument(t *testing.T) {
	testlog.Start(t)

	doc := []byte(`{"PACKAGES_A":["com.example.app"]}`)
	var wire bytes.Buffer
	if err := frame.WriteDocument(&wire, doc, frame.DefaultLimits()); err != nil {
		t.Fatalf("encode: %v", err)
	}
	conn, c := scripted(wire.Bytes())

	out, err := Fetch(c, frame.DefaultLimits())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if !bytes.Equal(out, doc) {
		t.Fatalf("unexpected document: %q", out)
	}
	if !conn.closed {
		t.Fatalf("connection not closed")
	}
}

func TestFetchEmptyDocumentIsNotAnError(t *testing.T) {
	testlog.Start(t)

	for _, n := range []int32{0, -1} {
		conn, c := scripted(frame.EncodeLength(n))
		out, err := Fetch(c, frame.DefaultLimits())
		if err != nil {
			t.Fatalf("L=%d: unexpected error %v", n, err)
		}
		if out != nil {
			t.Fatalf("L=%d: expected nil document", n)
		}
		if !conn.closed {
			t.Fatalf("L=%d: connection not closed", n)
		}
	}
}

func TestFetchTransportFailuresCloseConnection(t *testing.T) {
	testlog.Start(t)

	cases := map[string][]byte{
		"short header": {7},
		"short body":   append(frame.EncodeLength(64), []byte("{}")...),
	}
	for name, wire := range cases {
		conn, c := scripted(wire)
		out, err := Fetch(c, frame.DefaultLimits())
		if !errors.Is(err, ErrTransport) {
			t.Fatalf("%s: expected ErrTransport, got %v", name, err)
		}
		if out != nil {
			t.Fatalf("%s: partial data must not be returned", name)
		}
		if !conn.closed {
			t.Fatalf("%s: connection not closed", name)
		}
	}
}

func TestFetchConnectFailure(t *testing.T) {
	testlog.Start(t)

	boom := errors.New("no companion")
	_, err := Fetch(connectorFunc(func() (io.ReadWriteCloser, error) { return nil, boom }), frame.DefaultLimits())
	if !errors.Is(err, ErrConnect) || !errors.Is(err, boom) {
		t.Fatalf("expected wrapped connect error, got %v", err)
	}
}

func TestUnixConnectorDialsHelper(t *testing.T) {
	testlog.Start(t)

	path := filepath.Join(t.TempDir(), "helper.sock")
	ln, err := net.Listen("unix", path)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	doc := []byte(`{"k":"v"}`)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_ = frame.WriteDocument(conn, doc, frame.DefaultLimits())
	}()

	out, err := Fetch(UnixConnector{Path: path, Timeout: 2 * time.Second}, frame.DefaultLimits())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if !bytes.Equal(out, doc) {
		t.Fatalf("unexpected document: %q", out)
	}
}

func TestUnixConnectorMissingSocket(t *testing.T) {
	testlog.Start(t)

	if _, err := (UnixConnector{}).ConnectToPrivilegedHelper(); !errors.Is(err, ErrNoSocket) {
		t.Fatalf("expected ErrNoSocket, got %v", err)
	}
	_, err := Fetch(UnixConnector{Path: filepath.Join(t.TempDir(), "absent.sock")}, frame.DefaultLimits())
	if !errors.Is(err, ErrConnect) {
		t.Fatalf("expected ErrConnect, got %v", err)
	}
}

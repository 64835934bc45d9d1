package companion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/devprofile/internal/observability"
	"github.com/danmuck/devprofile/internal/protocol/frame"
	"github.com/rs/zerolog/log"
)

// DefaultWriteTimeout bounds sending one document to a client.
const DefaultWriteTimeout = 5 * time.Second

// DefaultConfigPath is where the module installer drops the root-only document.
const DefaultConfigPath = "/data/adb/modules/COPG/config.json"

var (
	ErrNoConfigPath = errors.New("companion: config path not set")
	errSizeChanged  = errors.New("companion: config size changed while reading")
)

// Provider serves the configuration file, one document per connection.
// It keeps no cache: the file is re-read for every request.
type Provider struct {
	path         string
	limits       frame.Limits
	writeTimeout time.Duration

	active atomic.Int64
	served atomic.Uint64
}

func NewProvider(path string, limits frame.Limits) (*Provider, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, ErrNoConfigPath
	}
	return &Provider{path: path, limits: limits, writeTimeout: DefaultWriteTimeout}, nil
}

// SetWriteTimeout changes the per-connection send deadline. Zero disables it.
func (p *Provider) SetWriteTimeout(d time.Duration) {
	p.writeTimeout = d
}

func (p *Provider) Path() string {
	return p.path
}

// Served is the number of connections handled so far.
func (p *Provider) Served() uint64 {
	return p.served.Load()
}

// ReadConfig returns the whole file or nil. Open, stat and read failures,
// short reads and oversized files all yield nil so that a partial document
// is never sent.
func (p *Provider) ReadConfig() []byte {
	f, err := os.Open(p.path)
	if err != nil {
		log.Warn().Err(err).Str("path", p.path).Msg("companion.Provider.ReadConfig open failed")
		return nil
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		log.Warn().Err(err).Str("path", p.path).Msg("companion.Provider.ReadConfig stat failed")
		return nil
	}
	size := info.Size()
	if size <= 0 {
		log.Debug().Str("path", p.path).Msg("companion.Provider.ReadConfig file is empty")
		return nil
	}
	if p.limits.MaxDocumentBytes > 0 && size > int64(p.limits.MaxDocumentBytes) {
		log.Warn().Int64("size", size).Int32("limit", p.limits.MaxDocumentBytes).Msg("companion.Provider.ReadConfig file too large")
		return nil
	}

	buf, err := readSized(f, size)
	if err != nil {
		log.Warn().Err(err).Str("path", p.path).Int64("size", size).Msg("companion.Provider.ReadConfig read failed")
		return nil
	}
	return buf
}

// readSized reads exactly size bytes and confirms r ends there. A reader
// that is shorter or longer than size changed after it was measured.
func readSized(r io.Reader, size int64) ([]byte, error) {
	buf := make([]byte, size)
	if _, err := io.ReadFull(r, buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, errSizeChanged
		}
		return nil, err
	}
	var extra [1]byte
	switch _, err := io.ReadFull(r, extra[:]); {
	case err == nil:
		return nil, errSizeChanged
	case !errors.Is(err, io.EOF):
		return nil, err
	}
	return buf, nil
}

// ServeConn sends one document on conn and closes it.
func (p *Provider) ServeConn(conn io.ReadWriteCloser) error {
	defer conn.Close()
	start := time.Now()
	p.served.Add(1)

	if dc, ok := conn.(interface{ SetWriteDeadline(time.Time) error }); ok && p.writeTimeout > 0 {
		if err := dc.SetWriteDeadline(time.Now().Add(p.writeTimeout)); err != nil {
			observability.RecordHelperServe(observability.OutcomeWriteFailed, 0, time.Since(start))
			return fmt.Errorf("companion: set write deadline: %w", err)
		}
	}

	doc := p.ReadConfig()
	if err := frame.WriteDocument(conn, doc, p.limits); err != nil {
		observability.RecordHelperServe(observability.OutcomeWriteFailed, len(doc), time.Since(start))
		return fmt.Errorf("companion: send document: %w", err)
	}

	outcome := observability.OutcomeServed
	if len(doc) == 0 {
		outcome = observability.OutcomeEmpty
	}
	observability.RecordHelperServe(outcome, len(doc), time.Since(start))
	log.Debug().Int("bytes", len(doc)).Str("outcome", outcome).Msg("companion.Provider.ServeConn sent document")
	return nil
}

// Serve accepts connections until ctx is done. Each connection is handled on
// its own goroutine; Serve waits for in-flight connections before returning.
func (p *Provider) Serve(ctx context.Context, ln net.Listener) error {
	defer ln.Close()
	log.Info().Str("addr", ln.Addr().String()).Str("config", p.path).Msg("companion.Provider listening")

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.handleConn(conn)
		}()
	}
}

func (p *Provider) handleConn(conn net.Conn) {
	active := p.active.Add(1)
	defer p.active.Add(-1)

	event := log.Debug().Int64("active", active)
	if cred, err := peerCredentials(conn); err == nil {
		event = event.Int32("pid", cred.Pid).Uint32("uid", cred.Uid)
	}
	event.Msg("companion.Provider client connected")

	if err := p.ServeConn(conn); err != nil {
		log.Warn().Err(err).Msg("companion.Provider serve failed")
	}
}

// ListenSocket creates a unix socket listener, removing any stale socket
// file, and applies mode to the socket path.
func ListenSocket(socketPath string, mode os.FileMode) (net.Listener, error) {
	socketDir := filepath.Dir(socketPath)
	if err := os.MkdirAll(socketDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating socket directory %s: %w", socketDir, err)
	}

	if err := os.Remove(socketPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("removing stale socket %s: %w", socketPath, err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, err
	}

	if err := os.Chmod(socketPath, mode); err != nil {
		listener.Close()
		return nil, fmt.Errorf("setting socket permissions: %w", err)
	}

	return listener, nil
}

package companion

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/danmuck/devprofile/internal/protocol/frame"
	"github.com/rs/zerolog/log"
)

// DefaultSocketPath is where the helper listens for target processes.
const DefaultSocketPath = "/dev/socket/devprofiled"

var ErrNoSocketPath = errors.New("companion: socket path not set")

// ServiceConfig configures the standalone helper daemon.
type ServiceConfig struct {
	Name        string
	ConfigPath  string
	SocketPath  string
	SocketMode  os.FileMode
	Limits      frame.Limits
	MetricsAddr string
}

func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Name:        "devprofiled",
		ConfigPath:  DefaultConfigPath,
		SocketPath:  DefaultSocketPath,
		SocketMode:  0o660,
		Limits:      frame.DefaultLimits(),
		MetricsAddr: "",
	}
}

// Service runs the provider on a unix socket with an optional diagnostics
// endpoint beside it.
type Service struct {
	cfg      ServiceConfig
	provider *Provider
	started  time.Time
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if strings.TrimSpace(cfg.SocketPath) == "" {
		return nil, ErrNoSocketPath
	}
	if cfg.Limits.MaxDocumentBytes <= 0 {
		cfg.Limits = frame.DefaultLimits()
	}
	if strings.TrimSpace(cfg.Name) == "" {
		cfg.Name = DefaultServiceConfig().Name
	}
	p, err := NewProvider(cfg.ConfigPath, cfg.Limits)
	if err != nil {
		return nil, err
	}
	return &Service{cfg: cfg, provider: p}, nil
}

func (s *Service) Provider() *Provider {
	return s.provider
}

// Run blocks until SIGINT or SIGTERM.
func (s *Service) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return s.RunContext(ctx)
}

// RunContext serves until ctx is done, then removes the socket file.
func (s *Service) RunContext(ctx context.Context) error {
	s.started = time.Now()
	ln, err := ListenSocket(s.cfg.SocketPath, s.cfg.SocketMode)
	if err != nil {
		return fmt.Errorf("companion: listen %s: %w", s.cfg.SocketPath, err)
	}
	defer os.Remove(s.cfg.SocketPath)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	if addr := strings.TrimSpace(s.cfg.MetricsAddr); addr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			router := DiagnosticsRouter(s.cfg.Name, s.provider, s.started)
			if err := ServeDiagnostics(ctx, addr, router); err != nil {
				log.Error().Err(err).Str("addr", addr).Msg("companion.Service diagnostics stopped")
			}
		}()
	}

	log.Info().
		Str("service", s.cfg.Name).
		Str("socket", s.cfg.SocketPath).
		Str("config", s.provider.Path()).
		Msg("companion.Service ready")
	err = s.provider.Serve(ctx, ln)
	cancel()
	wg.Wait()
	log.Info().Uint64("served", s.provider.Served()).Msg("companion.Service stopped")
	return err
}

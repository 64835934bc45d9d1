package lifecycle

import (
	"errors"
	"fmt"

	"github.com/danmuck/devprofile/internal/fetch"
	"github.com/danmuck/devprofile/internal/overlay"
	"github.com/danmuck/devprofile/internal/profile"
	"github.com/danmuck/devprofile/internal/protocol/frame"
	"github.com/rs/zerolog/log"
)

var (
	ErrLifecycleOrder = errors.New("lifecycle: invalid lifecycle transition")
	ErrNotLoaded      = errors.New("lifecycle: host capabilities not loaded")
	ErrMissingArgs    = errors.New("lifecycle: missing specialize arguments")
	ErrSystemServer   = errors.New("lifecycle: system server is never targeted")
	ErrEmptyProfile   = errors.New("lifecycle: resolved profile sets no fields")
	ErrNothingToApply = errors.New("lifecycle: overlay mapping writes none of the profile fields")
)

// Phase describes where one spawned process is in the overlay lifecycle.
type Phase string

const (
	PhaseFresh             Phase = "fresh"
	PhaseAwaitingPackageID Phase = "awaiting_package_id"
	PhaseAwaitingConfig    Phase = "awaiting_config"
	PhaseResolving         Phase = "resolving"
	PhaseTargeted          Phase = "targeted"
	PhaseNotTargeted       Phase = "not_targeted"
	PhaseApplied           Phase = "applied"
)

// Terminal reports whether no further transitions are possible.
func (p Phase) Terminal() bool {
	return p == PhaseApplied || p == PhaseNotTargeted
}

// Option is a lifecycle request made to the host framework.
type Option int

const (
	// OptionUnload asks the host to unload the module after the current callback.
	OptionUnload Option = iota + 1
	// OptionForceOverlayUnmount asks the host to unmount overlays hidden from the target.
	OptionForceOverlayUnmount
)

func (o Option) String() string {
	switch o {
	case OptionUnload:
		return "unload"
	case OptionForceOverlayUnmount:
		return "force_overlay_unmount"
	default:
		return fmt.Sprintf("option(%d)", int(o))
	}
}

// Host is the injection framework as seen from inside the target process.
type Host interface {
	fetch.Connector
	SetOption(opt Option)
}

// SpecializeArgs carries what the host exposes about the process being specialized.
type SpecializeArgs struct {
	AppDataDir string
}

// Config selects resolution and overlay behavior.
type Config struct {
	Resolver profile.Resolver
	Mapping  overlay.Mapping
	Limits   frame.Limits
}

func DefaultConfig() Config {
	return Config{
		Resolver: profile.NewResolver(),
		Mapping:  overlay.DefaultMapping(),
		Limits:   frame.DefaultLimits(),
	}
}

// Status is the observable controller state. It never exposes the package
// identifier or the resolved profile.
type Status struct {
	Phase  Phase
	Reason error
}

// Controller drives one spawned process from fresh to applied or
// not_targeted. It is single use and not safe for concurrent callbacks.
type Controller struct {
	cfg Config

	host    Host
	runtime overlay.Runtime
	props   overlay.PropertyStore

	phase  Phase
	reason error

	pkg    string
	group  string
	device *profile.Device
}

func New(cfg Config) *Controller {
	return &Controller{cfg: cfg, phase: PhaseFresh}
}

func (c *Controller) Status() Status {
	return Status{Phase: c.phase, Reason: c.reason}
}

// OnLoad records the host capabilities. Runtime and props may be nil, in
// which case that overlay surface is skipped.
func (c *Controller) OnLoad(host Host, runtime overlay.Runtime, props overlay.PropertyStore) error {
	if c.phase != PhaseFresh {
		return transitionError(c.phase, PhaseFresh)
	}
	c.host = host
	c.runtime = runtime
	c.props = props
	log.Debug().Msg("lifecycle.Controller.OnLoad module loaded")
	return nil
}

// BeforeSpecialize decides whether this process is targeted. Every failure
// resolves to not_targeted and an unload request; the returned error is
// only set for out-of-order callbacks.
func (c *Controller) BeforeSpecialize(args *SpecializeArgs) (Phase, error) {
	if c.phase != PhaseFresh {
		return c.phase, transitionError(c.phase, PhaseAwaitingPackageID)
	}
	if c.host == nil {
		c.notTargeted(ErrNotLoaded)
		return c.phase, nil
	}

	c.phase = PhaseAwaitingPackageID
	if args == nil {
		c.notTargeted(ErrMissingArgs)
		return c.phase, nil
	}
	pkg, err := profile.PackageFromDataDir(args.AppDataDir)
	if err != nil {
		c.notTargeted(fmt.Errorf("%w: %q", err, args.AppDataDir))
		return c.phase, nil
	}
	c.pkg = pkg

	c.phase = PhaseAwaitingConfig
	doc, err := fetch.Fetch(c.host, c.cfg.Limits)
	if err != nil {
		c.notTargeted(err)
		return c.phase, nil
	}

	c.phase = PhaseResolving
	res, err := c.cfg.Resolver.Resolve(doc, c.pkg)
	if err != nil {
		c.notTargeted(err)
		return c.phase, nil
	}
	if res.Device.IsEmpty() {
		c.notTargeted(fmt.Errorf("%w: group %q", ErrEmptyProfile, res.Group))
		return c.phase, nil
	}
	if !c.cfg.Mapping.Writes(res.Device) {
		c.notTargeted(fmt.Errorf("%w: group %q", ErrNothingToApply, res.Group))
		return c.phase, nil
	}

	c.group = res.Group
	c.device = &res.Device
	c.phase = PhaseTargeted
	c.host.SetOption(OptionForceOverlayUnmount)
	log.Info().Str("package", c.pkg).Str("group", c.group).Msg("lifecycle.Controller targeted")
	return c.phase, nil
}

// AfterSpecialize applies the overlay once for a targeted process and then
// drops all transient state. For a not_targeted process it does nothing.
func (c *Controller) AfterSpecialize(*SpecializeArgs) (overlay.Report, error) {
	switch c.phase {
	case PhaseNotTargeted:
		return overlay.Report{}, nil
	case PhaseTargeted:
	default:
		return overlay.Report{}, transitionError(c.phase, PhaseApplied)
	}

	dev := *c.device
	c.teardown()
	c.phase = PhaseApplied

	applier := overlay.NewApplier(c.cfg.Mapping, c.props, c.runtime)
	report, err := applier.Apply(dev)
	if err != nil {
		c.reason = err
		log.Error().Err(err).Msg("lifecycle.Controller overlay not applied")
		return report, nil
	}
	if failures := report.Failures(); len(failures) > 0 {
		log.Warn().Int("failures", len(failures)).Msg("lifecycle.Controller overlay applied with failures")
	} else {
		log.Debug().Msg("lifecycle.Controller overlay applied")
	}
	return report, nil
}

// BeforeServerSpecialize routes the system server straight to not_targeted.
func (c *Controller) BeforeServerSpecialize() error {
	if c.phase != PhaseFresh {
		return transitionError(c.phase, PhaseNotTargeted)
	}
	c.notTargeted(ErrSystemServer)
	return nil
}

func (c *Controller) notTargeted(reason error) {
	from := c.phase
	c.teardown()
	c.phase = PhaseNotTargeted
	c.reason = reason
	if c.host != nil {
		c.host.SetOption(OptionUnload)
	}
	event := log.Debug()
	if !errors.Is(reason, profile.ErrNotListed) && !errors.Is(reason, ErrSystemServer) {
		event = log.Warn()
	}
	event.Err(reason).Str("from", string(from)).Msg("lifecycle.Controller not targeted")
}

func (c *Controller) teardown() {
	c.pkg = ""
	c.group = ""
	c.device = nil
}

func transitionError(from, to Phase) error {
	return fmt.Errorf("%w: %s -> %s", ErrLifecycleOrder, from, to)
}

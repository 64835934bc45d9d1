// Package fakehost provides in-memory stand-ins for the native property
// store, the managed runtime and the host framework.
package fakehost

import (
	"errors"
	"io"
	"net"
	"sync"

	"github.com/danmuck/devprofile/internal/overlay"
)

var (
	ErrPropertyRejected = errors.New("fakehost: property rejected")
	ErrNoSuchField      = errors.New("fakehost: no such field")
	ErrPendingFault     = errors.New("fakehost: call made with pending fault")
	ErrAssignRejected   = errors.New("fakehost: assignment rejected")
)

// Properties is a native property store backed by a map.
type Properties struct {
	mu     sync.Mutex
	values map[string]string
	reject map[string]bool
	sets   int
}

func NewProperties(initial map[string]string) *Properties {
	values := make(map[string]string, len(initial))
	for k, v := range initial {
		values[k] = v
	}
	return &Properties{values: values, reject: make(map[string]bool)}
}

// Reject makes every set of name fail.
func (p *Properties) Reject(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reject[name] = true
}

func (p *Properties) SetProperty(name, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sets++
	if p.reject[name] {
		return ErrPropertyRejected
	}
	p.values[name] = value
	return nil
}

func (p *Properties) Get(name string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.values[name]
	return v, ok
}

// Sets counts SetProperty calls, including rejected ones.
func (p *Properties) Sets() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sets
}

type fieldRef struct {
	class string
	name  string
}

type stringRef struct {
	value string
}

// Runtime models static String fields on named classes with a pending
// fault flag that mirrors managed-runtime exception semantics.
type Runtime struct {
	mu         sync.Mutex
	classes    map[string]map[string]string
	readOnly   map[fieldRef]bool
	pending    bool
	violations int
	clears     int
}

func NewRuntime(classes map[string]map[string]string) *Runtime {
	copied := make(map[string]map[string]string, len(classes))
	for class, fields := range classes {
		inner := make(map[string]string, len(fields))
		for k, v := range fields {
			inner[k] = v
		}
		copied[class] = inner
	}
	return &Runtime{classes: copied, readOnly: make(map[fieldRef]bool)}
}

// ReadOnly makes assignment to class.name fail.
func (r *Runtime) ReadOnly(class, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.readOnly[fieldRef{class: class, name: name}] = true
}

func (r *Runtime) checkPending() {
	if r.pending {
		r.violations++
	}
}

func (r *Runtime) StaticStringField(class, name string) (overlay.FieldHandle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkPending()
	fields, ok := r.classes[class]
	if !ok {
		r.pending = true
		return nil, ErrNoSuchField
	}
	if _, ok := fields[name]; !ok {
		r.pending = true
		return nil, ErrNoSuchField
	}
	return fieldRef{class: class, name: name}, nil
}

func (r *Runtime) NewString(value string) (overlay.StringRef, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkPending()
	return stringRef{value: value}, nil
}

func (r *Runtime) SetStaticField(class string, field overlay.FieldHandle, value overlay.StringRef) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkPending()
	ref, ok := field.(fieldRef)
	if !ok || ref.class != class {
		r.pending = true
		return ErrNoSuchField
	}
	str, ok := value.(stringRef)
	if !ok {
		r.pending = true
		return ErrAssignRejected
	}
	if r.readOnly[ref] {
		r.pending = true
		return ErrAssignRejected
	}
	r.classes[class][ref.name] = str.value
	return nil
}

func (r *Runtime) ClearFault() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = false
	r.clears++
}

func (r *Runtime) Field(class, name string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.classes[class][name]
	return v, ok
}

// Violations counts calls made while a fault was still pending.
func (r *Runtime) Violations() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.violations
}

// Pending reports whether a fault is left uncleared.
func (r *Runtime) Pending() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pending
}

// Host records lifecycle options and hands out helper connections from
// Dial. A nil Dial makes every connection attempt fail.
type Host struct {
	mu      sync.Mutex
	Dial    func() (io.ReadWriteCloser, error)
	options []int
	dials   int
}

var ErrNoHelper = errors.New("fakehost: helper unavailable")

func (h *Host) ConnectToPrivilegedHelper() (io.ReadWriteCloser, error) {
	h.mu.Lock()
	h.dials++
	dial := h.Dial
	h.mu.Unlock()
	if dial == nil {
		return nil, ErrNoHelper
	}
	return dial()
}

// Record stores an option value; lifecycle tests adapt it to their option type.
func (h *Host) Record(opt int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.options = append(h.options, opt)
}

func (h *Host) Options() []int {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]int, len(h.options))
	copy(out, h.options)
	return out
}

func (h *Host) Dials() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dials
}

// TrackedConn wraps a connection and records whether it was closed.
type TrackedConn struct {
	net.Conn
	mu     sync.Mutex
	closed bool
}

func (c *TrackedConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return c.Conn.Close()
}

func (c *TrackedConn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

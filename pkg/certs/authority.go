package certs

import (
	"errors"
	"fmt"
	"sync"

	"github.com/cuemby/hutch/pkg/storage"
)

// ErrUnknownAuthority means no certificate authority is registered under
// the requested name.
var ErrUnknownAuthority = errors.New("unknown certificate authority")

// Authority is the capability set a certificate authority adapter exposes.
// Adapters are bound to one (domain, notification email, instance) triple at
// construction time.
type Authority interface {
	// UploadCSR hands a signing request to the authority. Authorities that
	// derive the request themselves treat this as a no-op.
	UploadCSR(csr []byte) error

	// DownloadCRT produces a signed PEM certificate for the bound domain
	// using the given PEM private key.
	DownloadCRT(key []byte) ([]byte, error)

	// Revoke revokes the instance's current certificate.
	Revoke() error
}

// Env carries the dependencies authority factories may need.
type Env struct {
	Store storage.Store

	// ACMEDirectoryURL overrides the ACME directory for the "le"
	// authority; empty means the production Let's Encrypt directory.
	ACMEDirectoryURL string
}

// Factory builds an authority bound to a domain, notification email and
// instance name.
type Factory func(env Env, domain, email, instance string) (Authority, error)

// Registry maps authority names to factories. Built-in authorities
// (self-signed, ACME, held CSR) are registered on construction.
type Registry struct {
	env       Env
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an authority registry with the built-in adapters
// registered.
func NewRegistry(env Env) *Registry {
	r := &Registry{env: env, factories: make(map[string]Factory)}
	r.Register("default", newSelfSigned)
	r.Register("le", newLetsEncrypt)
	r.Register("csr", newExternalCSR)
	return r
}

// Register adds an authority factory under a name.
func (r *Registry) Register(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// New builds the named authority bound to the given domain, email and
// instance.
func (r *Registry) New(name, domain, email, instance string) (Authority, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAuthority, name)
	}
	return factory(r.env, domain, email, instance)
}

// SPDX-License-Identifier: GPL-3.0-or-later

package suggestions

import "github.com/bassosimone/runtimex"

// Services holds the state shared by every instance of a [*Factory].
//
// Construct using [NewServices].
type Services struct {
	// Transport performs all the service calls.
	Transport Func[*Request, *Response]

	// Registry maps types to strategies.
	Registry *Registry

	// Status deduplicates status checks.
	Status *StatusCoalescer

	// Locator performs the IP geolocation lookup.
	Locator *Locator
}

// NewServices returns fresh [*Services] wired from cfg.
func NewServices(cfg *Config) *Services {
	runtimex.Assert(cfg != nil)
	txp := NewTransport(cfg)
	return &Services{
		Transport: txp,
		Registry:  NewRegistry(),
		Status:    NewStatusCoalescer(txp, cfg.Logger),
		Locator:   NewLocator(txp, cfg.Logger),
	}
}

// family is the capability token shared by the instances of a factory.
// Only its address matters.
type family struct {
	_ byte
}

// Factory creates [*Instance] values sharing the same [*Services].
//
// Instances of the same factory can be linked with [Link].
type Factory struct {
	// Config is the configuration used by every instance.
	Config *Config

	// Services is the shared state.
	Services *Services

	family *family
}

// NewFactory returns a [*Factory] with fresh [*Services].
func NewFactory(cfg *Config) *Factory {
	return NewFactoryWithServices(cfg, NewServices(cfg))
}

// NewFactoryWithServices returns a [*Factory] using the given services.
func NewFactoryWithServices(cfg *Config, services *Services) *Factory {
	runtimex.Assert(cfg != nil && services != nil)
	return &Factory{Config: cfg, Services: services, family: &family{}}
}

// Instance is a provider driven by an [*OptionsSpy] that already carries
// the geolocation transform.
type Instance struct {
	// ID uniquely identifies the instance.
	ID string

	// Provider is the underlying provider.
	Provider *Provider

	// Spy drives the provider options.
	Spy *OptionsSpy

	family *family
}

// New creates a new [*Instance] configured with opts.
func (f *Factory) New(opts Options) (*Instance, error) {
	provider, err := NewProvider(f.Config, f.Services, opts)
	if err != nil {
		return nil, err
	}
	spy := NewOptionsSpy(provider, opts)
	spy.Subscribe(GeolocationSubscriberID, newGeolocationTransform(f.Config, f.Services))
	return &Instance{
		ID:       newInstanceID(),
		Provider: provider,
		Spy:      spy,
		family:   f.family,
	}, nil
}

// SetOptions merges patch into the instance options.
func (in *Instance) SetOptions(patch Options) {
	in.Spy.SetOptions(patch)
}

// Options returns the options currently applied to the provider.
func (in *Instance) Options() Options {
	return in.Provider.Options()
}

// Dispose cancels the in-flight requests of the instance.
func (in *Instance) Dispose() {
	in.Provider.Dispose()
}

package sites

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/jobspy-server/internal/extract"
	"github.com/JakeFAU/jobspy-server/internal/scraper"
)

// OptionsValidator is implemented by adapters that can reject an options bag up front.
type OptionsValidator interface {
	ValidateOptions(raw scraper.Options) error
}

// Registry maps sites to their adapters.
type Registry struct {
	adapters map[scraper.Site]scraper.Adapter
}

// NewRegistry indexes adapters by site. A later adapter for the same site wins.
func NewRegistry(adapters ...scraper.Adapter) *Registry {
	r := &Registry{adapters: make(map[scraper.Site]scraper.Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Site()] = a
	}
	return r
}

// Lookup returns the adapter registered for site.
func (r *Registry) Lookup(site scraper.Site) (scraper.Adapter, bool) {
	a, ok := r.adapters[site]
	return a, ok
}

// Sites lists the registered sites in declaration order.
func (r *Registry) Sites() []scraper.Site {
	var out []scraper.Site
	for _, s := range scraper.AllSites() {
		if _, ok := r.adapters[s]; ok {
			out = append(out, s)
		}
	}
	return out
}

// ValidateRequest runs every requested adapter's options check.
func (r *Registry) ValidateRequest(req scraper.Request) error {
	var errs []error
	for _, site := range req.Sites {
		a, ok := r.adapters[site]
		if !ok {
			continue
		}
		if v, ok := a.(OptionsValidator); ok {
			if err := v.ValidateOptions(req.Options); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Deps are the collaborators shared by the built-in adapters.
type Deps struct {
	Sessions   scraper.SessionFactory
	Challenges extract.ChallengeAwaiter
	Clock      scraper.Clock
	Defaults   Defaults
	Logger     *zap.Logger
}

func (d Deps) logger() *zap.Logger {
	if d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger
}

// NewDefaultRegistry registers the built-in adapters.
func NewDefaultRegistry(deps Deps) *Registry {
	if deps.Defaults.ChallengeTimeout <= 0 {
		deps.Defaults.ChallengeTimeout = 60 * time.Second
	}
	return NewRegistry(
		NewJapanDev(deps),
		NewTokyoDev(deps),
	)
}

package virtend

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/virtend/virtend/internal/ajax"
	"github.com/virtend/virtend/internal/config"
	"github.com/virtend/virtend/internal/observability"
	"github.com/virtend/virtend/internal/router"
	"github.com/virtend/virtend/internal/util"
)

// LoadFixtures registers the endpoints a fixture YAML file declares:
// static responses with optional headers, guards, delays, and regexp or
// prefix patterns. ${VAR} and ${VAR:-default} references in the file expand
// from the environment. Each load replaces the endpoints of the previous
// one; endpoints registered with Add are untouched.
func (i *Interceptor) LoadFixtures(path string) error {
	if i.Destroyed() {
		return util.ErrDestroyed
	}

	fixtures, err := config.LoadFixtures(path)
	if err != nil {
		return err
	}
	return i.applyFixtures(fixtures)
}

// WatchFixtures loads a fixture file and reloads it whenever it changes,
// debounced, swapping the previous fixture endpoints for the new set
// atomically. A reload that fails to parse or validate is logged and
// leaves the current endpoints in place. The returned stop function ends
// watching; Destroy stops any remaining watchers itself.
func (i *Interceptor) WatchFixtures(path string) (stop func(), err error) {
	if i.Destroyed() {
		return nil, util.ErrDestroyed
	}

	watcher, err := config.NewWatcher(path, func(f *config.FixtureFile) {
		if applyErr := i.applyFixtures(f); applyErr != nil {
			i.logger.Error("failed to apply reloaded fixtures",
				observability.String("path", path),
				observability.Error(applyErr))
		}
	}, config.WithLogger(i.logger))
	if err != nil {
		return nil, err
	}

	if err := watcher.Start(context.Background()); err != nil {
		return nil, err
	}

	i.mu.Lock()
	i.watchers = append(i.watchers, watcher)
	i.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			if err := watcher.Stop(); err != nil {
				i.logger.Warn("failed to stop fixture watcher",
					observability.Error(err))
			}
			i.forgetWatcher(watcher)
		})
	}, nil
}

// forgetWatcher drops a stopped watcher from the destroy list.
func (i *Interceptor) forgetWatcher(w *config.Watcher) {
	i.mu.Lock()
	defer i.mu.Unlock()
	for idx, existing := range i.watchers {
		if existing == w {
			i.watchers = append(i.watchers[:idx], i.watchers[idx+1:]...)
			return
		}
	}
}

// applyFixtures registers the declared endpoints and retires the
// previous fixture set. The new set registers before the old one is
// removed, so there is no window where neither answers; a build or
// registration error leaves the registry as it was.
func (i *Interceptor) applyFixtures(f *config.FixtureFile) error {
	if i.Destroyed() {
		return util.ErrDestroyed
	}

	i.fixtureMu.Lock()
	defer i.fixtureMu.Unlock()

	built := make([]*router.Endpoint, 0, len(f.Endpoints))
	for idx := range f.Endpoints {
		ep, err := i.buildFixtureEndpoint(&f.Endpoints[idx])
		if err != nil {
			return fmt.Errorf("endpoints[%d]: %w", idx, err)
		}
		built = append(built, ep)
	}

	registered := make([]*router.Endpoint, 0, len(built))
	for _, ep := range built {
		added, err := i.registry.Add(ep)
		if err != nil {
			for _, undo := range registered {
				i.registry.Remove(undo)
			}
			return err
		}
		registered = append(registered, added)
	}

	previous := i.fixtures
	i.fixtures = registered
	for _, ep := range previous {
		i.registry.Remove(ep)
	}

	i.logger.Info("fixtures applied",
		observability.Int("endpoints", len(registered)),
		observability.Int("replaced", len(previous)))
	return nil
}

// buildFixtureEndpoint turns one fixture declaration into a registrable
// endpoint.
func (i *Interceptor) buildFixtureEndpoint(fe *config.FixtureEndpoint) (*router.Endpoint, error) {
	var matcher router.Matcher
	var err error
	switch {
	case fe.Regexp != "":
		matcher, err = router.CompileRegexp(fe.Regexp)
	case fe.Prefix != "":
		matcher = router.NewPrefixMatcher(fe.Prefix)
	default:
		matcher, err = router.CompilePattern(fe.Pattern)
	}
	if err != nil {
		return nil, err
	}

	ep := &router.Endpoint{
		Name:         fe.Name,
		Method:       fe.Method,
		Matcher:      matcher,
		Handler:      fixtureHandler(fe.Response),
		Delay:        fe.Delay.Duration(),
		RegisteredAt: i.now(),
	}

	if fe.Guard != "" {
		guard, err := router.NewGuard(fe.Guard)
		if err != nil {
			return nil, err
		}
		ep.Guard = guard
	}
	return ep, nil
}

// fixtureHandler answers with the declared static response. Validation
// limits json and body forms to 200 responses; other statuses carry the
// standard reason phrase.
func fixtureHandler(resp config.FixtureResponse) ajax.Handler {
	return func(w ajax.ResponseWriter, _ *ajax.Request) {
		for name, value := range resp.Headers {
			w.Header().Set(name, value)
		}

		switch {
		case resp.JSON != nil:
			_ = w.JSON(resp.JSON)
		case resp.Body != "":
			_ = w.Send(resp.Body)
		case resp.Status != 0 && resp.Status != http.StatusOK:
			_ = w.SendStatus(resp.Status)
		default:
			_ = w.Send("")
		}
	}
}

// Package virtend intercepts outgoing HTTP requests with virtual
// endpoints: handlers registered against method and URL patterns that
// synthesize responses in place of the network.
//
// A dispatched request resolves in three steps. A registered endpoint
// may intercept it and answer through its handler; otherwise the
// response cache may answer it; otherwise it proxies to the real network
// and the response is cached for next time. Batches mix requests with
// plain values and dispatch concurrently, settling into positional
// results:
//
//	in, _ := virtend.New()
//	defer in.Destroy()
//
//	in.Add(http.MethodGet, "/food/:kind", func(w virtend.ResponseWriter, r *virtend.Request) {
//		_ = w.JSON(map[string]any{"kind": r.Params.Get("kind"), "tasty": true})
//	})
//
//	resp, err := in.Do(ctx, &virtend.Request{URL: "/food/tacos"})
//
// Host programs integrate through Transport and InterceptClient, which
// route a plain *http.Client through interception; LoadFixtures and
// WatchFixtures, which register endpoints declared in YAML; and
// AdminHandler, which exposes registrations, cache counters, and
// prometheus metrics over HTTP.
package virtend

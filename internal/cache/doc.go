// Package cache stores dispatched responses keyed by request signature.
//
// Store is the byte-level backend interface. The memory backend is an
// in-process LRU with a capacity cap and periodic expiry sweeps; the
// redis backend shares an instance across processes, prefixing (and
// optionally hashing) its keys, spreading TTLs with jitter, and
// retrying round trips with exponential backoff. Both backends trace
// their operations and feed the Prometheus collectors in this package.
//
// ResponseCache sits on top of a Store and implements the dispatch
// semantics: one entry per request signature (canonical method plus
// canonical URL), comparator-gated lookups, and versioned overwrites.
//
// Typical wiring:
//
//	store, err := cache.New(cfg, logger)
//	if err != nil {
//	    return err
//	}
//	rc := cache.NewResponseCache(store, cfg.TTL.Duration(), logger)
//	defer rc.Close()
//
//	err = rc.Store(ctx, req, resp)       // record a dispatched response
//	resp, ok := rc.Lookup(ctx, req, nil) // serve it back for an equal request
//
// Every type in the package is safe for concurrent use.
package cache

// Package config provides configuration types and loading for virtend.
//
// This package defines the cache configuration model, the fixture file
// schema for declaratively registered endpoints, YAML loading with
// environment variable substitution, validation, and file watching for
// fixture hot-reload support.
//
// # Features
//
//   - YAML fixture file loading
//   - Environment variable substitution with ${VAR:-default} syntax
//   - Fixture validation with detailed error reporting
//   - File watching for fixture hot-reload
//   - Memory and redis cache backend configuration
//
// # Fixture Loading
//
// Load fixtures from a YAML file:
//
//	fixtures, err := config.LoadFixtures("fixtures.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # File Watching
//
// Watch for fixture changes:
//
//	watcher, err := config.NewWatcher(path, func(f *config.FixtureFile) {
//	    // Handle fixture update
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	watcher.Start(ctx)
package config

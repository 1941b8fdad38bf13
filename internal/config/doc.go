// Package config provides configuration management for mythgate.
//
// Configuration is loaded from environment variables using the env package.
// All configuration values have sensible defaults for development use; the
// block explorer API key and node provider settings are only needed for the
// source analysis mode and the bytecode pre-check respectively.
//
// Example usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Printf("HTTP server will listen on %s\n", cfg.GetHTTPAddr())
package config

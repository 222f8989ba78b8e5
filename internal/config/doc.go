// Package config resolves the effective SDK configuration.
//
// Values come from three layers, highest precedence first:
//
//  1. Overrides set at runtime (Resolver.SetOverride, Settings passed to
//     Configure)
//  2. The active environment from the environments file
//  3. The environments file's default section
//
// The built-in environments file (environments.yaml) defines production,
// per-region and development environments. Hosts may supply their own via
// LoadEnvironments.
//
// # Derived Fields
//
// Config.RegionCode, Host, Debug and DevEnv are recomputed whenever any layer
// changes. Host comes from the "host" key if set, otherwise from the region
// code. A change producing an unknown region is rejected with
// ConfigError.UnknownRegion and leaves the resolver unchanged.
//
// # Usage Example
//
//	r, err := config.NewResolver(nil)
//	if err != nil {
//	    return err
//	}
//	if err := r.Configure(config.Settings{ProjectID: id, ProjectKey: key}); err != nil {
//	    return err // MissingCredentials or UnknownRegion
//	}
//	host := r.Effective().Host
//
// # Thread Safety
//
// Resolver is safe for concurrent use; writes are serialized by a mutex.
package config

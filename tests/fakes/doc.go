// Package fakes provides test doubles for awsm-env provider interfaces.
//
// Fakes are manually implemented (not generated) to provide precise control
// over test behavior: per-name values and errors, injected latency and call
// counting. The SDK fakes satisfy the narrow client interfaces declared in
// internal/providers so providers can be tested without cloud access.
//
// Usage:
//
//	f := fakes.NewFakeFetcher().
//	    WithSecret(provider.SecretsManager, "prod/db-url", "postgres://...").
//	    WithDelay(provider.SecretsManager, "prod/db-url", 50*time.Millisecond)
//
//	result, err := resolver.Resolve(ctx, decls, f, params)
package fakes

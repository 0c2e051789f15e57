// # Architecture Overview
//
// The provider package sits between the resolution pipeline and the concrete
// cloud clients:
//
//	┌─────────────────────────────────────────────────────────────┐
//	│                    CLI Commands                             │
//	│              (cmd/awsm-env/commands/)                       │
//	└─────────────────────────┬───────────────────────────────────┘
//	                          │
//	┌─────────────────────────▼───────────────────────────────────┐
//	│                Resolution Pipeline                          │
//	│              (internal/resolve/)                            │
//	└─────────────────────────┬───────────────────────────────────┘
//	                          │  Fetcher
//	┌─────────────────────────▼───────────────────────────────────┐
//	│                Provider Interface                           │
//	│                 (pkg/provider/)                             │
//	└─────────────────────────┬───────────────────────────────────┘
//	                          │
//	┌─────────────────────────▼───────────────────────────────────┐
//	│              Provider Implementations                       │
//	│              (internal/providers/)                          │
//	│   aws-sm · aws-ps · gcp-sm · azure-kv                       │
//	└─────────────────────────────────────────────────────────────┘
//
// # Adding a Provider
//
//  1. Add a Kind constant and its directive tag
//  2. Implement Provider in internal/providers
//  3. Register a constructor in the providers Registry
package provider

// Package domain defines the core domain models of the TAN service.
//
// Domain models are plain values without IO dependencies:
//
//   - Tan: the persisted record of an issued TAN or TeleTAN, keyed by hash
//   - TanStatus: the read-only verification outcome
//   - TestResult: lab result codes
//   - Errors: DomainError codes shared by every layer
package domain

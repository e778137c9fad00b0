// Package service implements the TAN lifecycle.
//
// TanService issues, verifies and redeems TANs and TeleTANs against a
// TanRepository. The repository provides atomic insert-if-absent and
// version compare-and-set; the service adds bounded collision retry,
// per-hash serialisation of redemption and lazy expiry against an
// injected Clock.
//
// LabResultService wraps a LabResultClient with input validation and
// result-code normalisation.
package service

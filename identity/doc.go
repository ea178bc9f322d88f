// Package identity provides developer identity and signing key helpers
// for publishing charter artifacts.
//
// Stable:
//   - Pure, deterministic primitives: developer identity checks,
//     signer-key formatting, and role-seed derivation.
//
// Experimental:
//   - Filesystem-backed key storage (KeyStore and related functions).
//     These are local-first utilities for the CLI and are not part of
//     the long-term protocol contract.
package identity

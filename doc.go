// Package login provides a minimal credential issuance and validation core:
// a credential store that verifies secrets against bcrypt digests, a token
// service that issues and validates signed, time-bounded JWTs, and an
// authenticator that composes the two behind a small HTTP surface.
//
// Storage:
//   - Users are kept behind the UserStore contract. MemoryStore is a
//     process-lifetime implementation intended for tests and demos; the Users
//     repository persists records through Bun and is the production path.
//   - Registration and status changes are the only mutations. Records are
//     never deleted by this package.
//
// Tokens:
//   - Verification is stateless. A token remains valid until its embedded
//     expiry even if the identity record changes afterwards; callers that
//     need revocation must layer a denylist on top.
//   - The signing key and method come from configuration. The service
//     refuses to start with an empty or short key.
package login

// Package identity implements Conflux's account and credential foundation.
//
// It contains the Account model, the credential Store boundary (in-memory and
// Postgres implementations), and the hashing primitives for passwords and
// refresh tokens. Business rules (registration policy, token rotation) live in
// the session service; this package is data access plus crypto helpers.
package identity

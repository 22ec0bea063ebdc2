// Package auth holds the credential primitives of the server: the bcrypt
// password hasher, the random token generator, the CSRF guard and the
// immutable session value carried in a request context.
//
// Nothing in this package performs I/O beyond reading crypto/rand.
package auth

// Package cli implements the SessionGuard command-line client.
//
// Each invocation runs one command (register, login, me, logout, delete,
// passwd, sessions) against the HTTP API. Credentials are prompted for,
// passwords without echo, and wiped once the request is done. The session
// itself is kept by the client package's state file.
package cli

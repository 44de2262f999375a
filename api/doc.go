// Package api is the HTTP client for the credential-issuing backend. It
// implements the authkit.Backend interface over three JSON endpoints: login,
// refresh, and logout.
//
// The client owns error classification: a 401/403 from the refresh endpoint
// becomes authkit.ErrAuthRejected (terminal), a 401/403 from login becomes
// authkit.ErrInvalidCredentials, and everything else — network errors and
// unexpected statuses alike — is wrapped so authkit.IsTransient holds.
package api

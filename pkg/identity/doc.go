// Package identity abstracts the remote identity provider that owns
// account credentials.
//
// Provider is the boundary the reconciliation engine talks through. Two
// implementations ship with the service: RESTProvider speaks an
// identity-toolkit-style HTTP API keyed by project API key, and
// OIDCProvider authenticates against any OpenID Connect issuer that allows
// the resource-owner password grant. FakeProvider backs tests.
//
// Provider failures carry a typed code (see ErrorCode) so callers can
// distinguish an email collision from a weak password from plain bad
// credentials without string matching. A pending multi-factor challenge is
// not an error: SignIn returns a result with MFARequired set and an opaque
// challenge reference for the follow-up step.
package identity

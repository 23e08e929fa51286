// Package accounts is the reconciliation engine between the remote
// identity provider and the local stores.
//
// The provider owns credentials; the local user record store and session
// flags are durable caches reconciled on every signup, login, and logout.
// The engine is deliberately availability-biased: once the provider has
// accepted an operation, local persistence failures are logged, counted,
// and swallowed rather than surfaced, because the provider and session
// manager remain queryable sources of truth and a missing local record is
// re-synthesized on the next login.
//
// Login identifiers are classified by shape: anything containing '@' is an
// email and always reaches the provider; anything else is a username and
// must match a local record first, since the provider only authenticates
// by email. Provider failures collapse into one generic invalid-credentials
// message so callers cannot learn which half of the credential pair was
// wrong. A pending multi-factor challenge is the one distinguished
// non-success outcome.
package accounts

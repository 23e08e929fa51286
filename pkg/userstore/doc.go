// Package userstore provides the local user record store.
//
// A UserRecord mirrors the identity-provider account locally so the
// application can resolve usernames, render profiles and work offline. The
// record is a cache of remote state: it is synthesized on signup or on the
// first successful login without a local match, refreshed on every login,
// and removed only by explicit account deletion.
//
// Invariants owned here: email is always stored lower-case and is unique;
// usernames are unique case-insensitively with original casing preserved for
// display.
package userstore

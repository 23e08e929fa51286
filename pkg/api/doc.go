// Package api is the HTTP facade over the accounts, rbac, and session
// services.
//
// # Overview
//
// The core packages are usable as libraries; this package is the glue
// that exposes them over gorilla/mux. Handlers are grouped by concern
// and each group registers its own routes:
//
//   - AuthHandlers: signup, login, logout, password operations, account
//     deletion, and session introspection under /api/v1/auth.
//   - UserHandlers: local profile reads and writes under /api/v1/users.
//   - AuthzHandlers: roles, capability checks, healthcare access grants,
//     and data access decisions.
//
// # Acting User
//
// Endpoints that need an acting user read it from the X-Actor-ID
// header. Token verification is out of scope here; the service sits
// behind a gateway that authenticates requests and stamps the header.
//
// # Usage Example
//
//	server := api.NewServer(accountsSvc, evaluator, sessions, api.Options{
//		Logger:  logger,
//		Tracing: true,
//	})
//	http.ListenAndServe(":8080", server)
package api

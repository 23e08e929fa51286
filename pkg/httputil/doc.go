// Package httputil provides small helpers shared by the HTTP handlers:
// JSON response writing, request body decoding, path/query parameter
// parsing, and the middleware applied to every route.
//
// Responses use a uniform shape. Successes encode the payload directly;
// failures encode an ErrorResponse:
//
//	httputil.WriteJSON(w, http.StatusOK, result)
//	httputil.WriteError(w, http.StatusForbidden, "not allowed")
//
// Request helpers return errors instead of writing responses so handlers
// stay in control of the status code:
//
//	var req loginRequest
//	if err := httputil.DecodeJSON(r, &req); err != nil {
//		httputil.WriteError(w, http.StatusBadRequest, err.Error())
//		return
//	}
//
// Middleware composes via Chain, outermost first:
//
//	handler := httputil.Chain(
//		httputil.RequestIDMiddleware,
//		httputil.LoggingMiddleware(logger),
//		httputil.RecoveryMiddleware(logger),
//	)(router)
package httputil

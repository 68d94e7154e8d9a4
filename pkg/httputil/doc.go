// Package httputil provides the JSON writers, query parsing and middleware
// shared by the institute HTTP handlers.
//
// Responses:
//
//	httputil.WriteJSON(w, http.StatusOK, stats)
//	httputil.WriteBadRequest(w, "invalid months")
//	httputil.WriteInternalError(w, err) // {"error": "..."}
//
// Query parameters:
//
//	months, err := httputil.ParseQueryInt(r, "months", 6)
//	from, to, err := httputil.ParseDateRange(r, loc)
//
// Middleware:
//
//	handler := httputil.Chain(
//		httputil.RequestIDMiddleware(logger),
//		httputil.LoggingMiddleware,
//		httputil.RecoveryMiddleware,
//	)(router)
package httputil

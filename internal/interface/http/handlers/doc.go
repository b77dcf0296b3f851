// Package handlers contains reusable HTTP building blocks for the portal API:
// health checks and middleware.
//
// # Health Checks
//
// CompositeHealthChecker runs named checks in parallel. Critical checks
// (the database) decide readiness; non-critical ones (cache, object storage)
// only mark the service as degraded:
//
//	checker := handlers.NewCompositeHealthChecker("v1")
//	checker.AddCheck("postgres", handlers.PingCheck(conn), true)
//	checker.AddCheck("redis", handlers.PingCheck(cache), false)
//
//	status := checker.Check(ctx)
//
// # Authentication
//
// Authenticator turns a bearer token into an identity.Principal stored in
// the request context. RequireAuth rejects anonymous requests; handlers read
// the caller with identity.PrincipalFrom.
package handlers

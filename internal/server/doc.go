// Package server provides HTTP routing, middleware, and lifecycle management
// for the relay service.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method-qualified patterns.
//
// # Lifecycle
//
// [Serve] runs an [http.Server] until the context is cancelled, then shuts it
// down gracefully so in-flight websocket close frames can drain.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server

// Package server hosts the Fiber HTTP service. A static path → (mode, format)
// route table is built once at startup from config plus the probed tool
// capabilities, so routes that need a missing rasterizer are never
// registered. Unknown paths and query-less requests become plain-text 404s
// before the raw query reaches a RouteHandler. Diagnostics endpoints live
// under /-/ in the routes subpackage.
package server

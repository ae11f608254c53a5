// Package api exposes the executor over a small JSON REST interface built on
// fiber.
//
// Routes:
//
//	POST /run        {"code", "language", "input"} -> {"output", "error", "execution_time"}
//	GET  /languages  supported languages and their images
//	GET  /healthz    engine reachability and sandbox slot usage
package api

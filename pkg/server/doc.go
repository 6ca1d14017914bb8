// Package server provides the HTTP server lifecycle shared by the evidence
// sidecar: start, graceful shutdown, optional TLS, and OS signal handling.
// Route wiring and middleware live in the package that owns the routes
// (pkg/sidecar); this package only manages the net/http.Server around an
// injected http.Handler.
//
// # Basic Usage
//
//	srv := server.New(&cfg.Sidecar, &cfg.Security, mux)
//	if err := srv.Start(context.Background()); err != nil {
//	    log.Fatal(err)
//	}
//
// # Graceful Shutdown
//
// The server shuts down automatically on SIGTERM/SIGINT, or can be
// triggered programmatically via Shutdown. Shutdown stops accepting new
// connections and waits for in-flight requests up to
// cfg.Sidecar.ShutdownTimeout; if they have not finished by then it
// returns an error and leaves the remaining connections open.
//
// # TLS
//
// When cfg.Security.TLS.Enabled is true, the server builds its tls.Config
// through pkg/security/tls from the configured minimum version, cipher
// suites and mTLS settings. With ReloadOnChange set it serves certificates
// through a CertificateReloader, so renewed cert/key files are picked up.
package server

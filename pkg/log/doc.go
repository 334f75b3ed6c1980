// Package log is sift's small wrapper around the standard library logger.
//
// Every component asks for a named logger once and keeps it:
//
//	l := log.ForService("enrich")
//	l.Infof("enriching %d urls", n)
//	l.Debugf("title fetch for %s failed: %v", u, err) // only with debug enabled
//
// Lines are prefixed with `[name>]`. Debug output is enabled either for every
// logger (SetGlobalDebug, wired to the --debug flag) or per service
// (EnableDebugFor). Request handlers derive a child logger with WithRequest so
// all lines belonging to one search share a request id:
//
//	INFO [web>3f1c9a2e] search "golang" -> 4 results in 812ms
//
// SetOutput redirects every logger, existing ones included, which is what the
// tests use to capture output in a bytes.Buffer.
package log

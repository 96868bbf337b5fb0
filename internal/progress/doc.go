// Package progress carries task lifecycle events from workers and the site dispatcher to
// pluggable sinks. Emit never blocks; a background goroutine batches events and fans them
// out.
package progress

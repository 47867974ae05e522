// Package tasks runs persistence work and long-running library jobs.
//
// # Persistence tasks
//
// [Dispatcher] is the single place where storefront writes decide what a failure means:
//
//   - [LogAndSwallow] : cart mirror writes. Submitted with [Dispatcher.Go], run off the
//     caller's goroutine, logged on failure and never reported back.
//   - [Surface] : checkout writes. Run with [Dispatcher.Do] on the caller's goroutine and
//     returned as errors.
//
// Asynchronous tasks sharing a key (the user id) run one at a time in submission order,
// so two quick cart mutations cannot reach the remote store out of order.
// [Dispatcher.Close] drains pending work; the CLI calls it before exiting.
//
// # Progress Reporting
//
// Sign-in and export report [ProgressUpdate] values through [SendProgress], which never
// blocks: updates are dropped when the channel is nil or full.
//
// # Library export
//
// [ExportLibrary] writes the purchase library in several formats with a worker pool and
// optionally uploads every file through an [Uploader] under a rate limit.
package tasks

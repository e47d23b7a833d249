// Package core runs the Data Sweeper pipeline for interactive sessions.
//
// A [Service] owns every live [Session]. A session holds the files a user
// uploaded, in upload order, each with its current working table, plus the
// exports produced so far. Every operation names the session it acts on:
//
//	sess, _ := svc.NewSession(ctx)
//	report, _ := svc.Ingest(ctx, sess.ID, files)
//	_, _ = svc.Filter(ctx, sess.ID, report.Files[0].File.ID, "age > 30")
//	rec, _ := svc.Convert(ctx, sess.ID, report.Files[0].File.ID, table.FormatXLSX)
//	bundle, _ := svc.Package(ctx, sess.ID)
//
// # Concurrency
//
// Operations on one session run one at a time under the session's mutex, so
// a step always sees the result of the step before it. Different sessions
// never share state. Parsing, exporting and packaging also take a slot from
// the shared [WorkLimiter], which bounds the CPU and memory spent on them.
//
// # Failure
//
// A failed step leaves the file's table as it was. Ingest reports a result
// per file, so one unreadable upload never stops the others. Errors map to
// user-facing text through [MapError].
//
// # Lifetime
//
// Nothing in a session outlives it. Idle sessions are removed by
// [Service.StartSessionSweeper]. Only metadata about each step is written to
// the history recorder.
package core

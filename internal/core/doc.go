// Package core runs regression tests and decides their outcome.
//
// A test run has three steps:
//
//  1. Execute: the command runs through the shell in its own process group,
//     with stdout and stderr merged into a single capture.
//  2. Record: the capture is written atomically to the test's output file,
//     or to its expected file when updating.
//  3. Verify: the capture is compared with the expected file after
//     normalization; a mismatch yields a unified diff.
//
// The Scheduler runs many tests with bounded concurrency while delivering
// results in suite order, so reports do not depend on timing.
package core

// Package workflow implements the Temporal workflow that evaluates every
// protocol template of a run against one subject's observed series.
//
// The workflow fans out one EvaluateProtocol activity per template, or runs
// them in order and stops at the first complete match when FindFirst is set.
// Ranking and the exit code are derived in workflow code from the returned
// protocols; that logic is pure and therefore replay safe.
//
// Workflows must not contain non-deterministic operations such as random
// number generation, system time access, or external I/O. Template files
// and header records are read by the caller and passed in the request.
package workflow

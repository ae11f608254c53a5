// Package executor is the entry point front ends call to run submitted code.
//
// A Service is built once per process. It holds the container engine, the
// run timeout and a ceiling on simultaneously active sandboxes, and turns
// every Request into a Result of the same shape: output, error text and
// elapsed time. Failures never escape as Go errors; an empty Error field
// means the run succeeded.
package executor

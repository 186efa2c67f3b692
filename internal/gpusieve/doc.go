// Package gpusieve drives the GPU sieve through its lifecycle. It is split by
// concern:
//
//   - sieve.go: Config, Sieve, New and the read-only status views.
//   - init.go: Init, the one-time prime generation, encoding and upload.
//   - buffers.go: device buffer allocation and Free.
//   - dispatch.go: InitExponent, InitClass and Segment kernel launches.
//   - events.go, eventpub_memory.go: lifecycle events.
//   - metrics.go: Prometheus collectors.
//   - errors.go: error values and predicates.
//
// Every call blocks until the device finishes. A Sieve is safe for concurrent
// use: lifecycle calls (Init, Free, InitExponent, InitClass, Segment) are
// serialised, and status views wait for an in-flight lifecycle call.
package gpusieve

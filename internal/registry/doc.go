// Package registry owns the live relay schedule.
//
// The Registry reconciles durable task records with a set of running interval
// executors: exactly one executor per live task id, started on register (or
// startup recovery) and stopped on unregister. The Sweeper is the only
// authority that retires tasks purely because time has passed.
//
// Concurrency model: the id->executor map is the single shared structure,
// guarded by one mutex. Ticks are serialized per task (one goroutine each)
// and parallel across tasks.
package registry

// Package pressure watches memory telemetry on behalf of the scheduler.
//
// The Monitor is a background sampler that runs for the lifetime of one
// drain and only logs and nudges the runtime; it takes no corrective
// action. The Governor is the synchronous admission check the drain loop
// consults before each dequeue, and it owns the advisory batch-size signal
// that shrinks under pressure.
package pressure

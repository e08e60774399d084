// Package pool provides a bounded pool of reusable worker slots.
//
// It provides:
//   - Acquire: non-blocking, best effort
//   - PrepareAcquire / AcquireWait: queue on a FIFO wait-list when saturated
//   - Release: direct hand-off to the oldest live waiter
//   - Resize and StartShutdown for dynamic sizing and graceful drain
//
// At all times busy + available == total, and the wait-list only holds live
// requests while no worker is available.
package pool

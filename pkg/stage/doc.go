// See controller.go for the allocation/completion policy and monitor.go
// for the liveness monitor; DESIGN.md records the end-game thresholds.
package stage

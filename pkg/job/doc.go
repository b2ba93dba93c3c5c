// See tracker.go for the Assign/Finish routing and DAG-driven phase
// scheduling; DESIGN.md records how this replaces the coordinator's old
// service/container orchestration loop.
package job

// See partition.go and DESIGN.md for the partitioning rules this package implements.
package partition

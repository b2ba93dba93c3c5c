// See dfs.go for the collaborator interface and DESIGN.md for its grounding.
package dfs

// See manager.go and DESIGN.md for the three split strategies this package implements.
package resource

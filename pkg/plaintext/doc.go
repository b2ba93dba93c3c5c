// See plaintext.go and DESIGN.md for the split-alignment rule this package implements.
package plaintext

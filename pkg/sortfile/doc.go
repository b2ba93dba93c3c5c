// See codec.go for the wire format and DESIGN.md for its grounding.
package sortfile

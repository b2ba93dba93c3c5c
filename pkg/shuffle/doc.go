// See merge.go and engine.go for the shuffle algorithm; DESIGN.md for grounding.
package shuffle

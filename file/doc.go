// Package file is documented in slot.go; stall.go adds the supplemented
// stall-detection guard described in SPEC_FULL.md.
package file

// Package token provides position tracking for the tablegen parser.
//
// We reuse the position and FileSet types from the standard library's
// go/token package: they are not Go-specific and they already solve
// line/column tracking over a mutable set of input files.
package token

import "go/token"

type (
	Position = token.Position
	Pos      = token.Pos
	File     = token.File
	FileSet  = token.FileSet
)

// NoPos is the zero Pos value; it means "position unknown".
const NoPos = token.NoPos

// NewFileSet creates a new, empty FileSet.
func NewFileSet() *FileSet {
	return token.NewFileSet()
}

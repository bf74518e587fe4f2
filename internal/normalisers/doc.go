// Package normalisers extracts plain text from landing files.
//
// Each subpackage handles a family of file extensions. The Registry in this
// package selects a normaliser by extension and is populated at startup.
package normalisers

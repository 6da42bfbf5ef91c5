// Package normalisers turns raw document bytes into plain text, one
// sub-package per format. The registry sub-package picks a normaliser by
// MIME type; this package holds the text clean-up they share.
package normalisers

// Package connectors holds document sources that feed the index builder.
// Each source implements driven.DocumentSource for one origin; the
// filesystem source reads and watches a local directory tree.
package connectors

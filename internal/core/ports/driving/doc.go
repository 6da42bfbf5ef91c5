// Package driving declares the use cases ragkit offers to its front ends:
// building the index, retrieving passages, answering questions and editing
// settings. The CLI, the HTTP API and the MCP server call these interfaces;
// internal/core/services implements them.
package driving

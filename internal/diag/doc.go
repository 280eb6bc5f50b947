// Package diag defines the diagnostic model shared by the resolution pipeline,
// the language server and the CLI.
//
// A Diagnostic is attached to one line: it carries a stable Code, a Severity,
// a human-oriented Message and the column range of the directive it refers to.
// Producers never format or transport diagnostics themselves; the LSP layer
// maps them to textDocument/publishDiagnostics and the CLI prints them.
package diag

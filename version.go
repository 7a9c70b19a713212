// Package pkgxmcp exposes pkgx as an MCP tool server that runs arbitrary
// open source programs in a sandboxed subprocess.
package pkgxmcp

// Version is reported to MCP clients and by the version subcommand.
const Version = "0.1.0"

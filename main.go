// Command zulip-mcp runs the Zulip MCP bridge: a stdio tool server that
// exposes a Zulip organization's messaging, streams, search, files, and
// agent-coordination primitives to MCP-speaking agents.
package main

import "github.com/zulipmcp/bridge/cmd"

func main() {
	cmd.Execute()
}

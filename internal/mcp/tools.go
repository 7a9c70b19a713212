package mcp

import (
	"context"

	"github.com/deixis/pkgxmcp/internal/command"
	"github.com/deixis/pkgxmcp/internal/runner"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Tool names.
const (
	ToolCommandLine = "run-command-line"
	ToolProgram     = "run-program-with-array-of-args"
)

// DefaultWorkingDirectory means "run in the server's current directory".
const DefaultWorkingDirectory = "."

const runRules = `
Programs cannot write to the file system.
HOME is set to a temporary directory you can write to.
OLD_HOME is the previous HOME.
Programs do not run in a terminal and thus do not have stdin capabilities.
Shell syntax like pipes ` + "`|`" + ` will not work.
If you need pipes, run the tool multiple times and pipe the output yourself.`

type commandLineParams struct {
	CommandLine      string `json:"commandLine" jsonschema:"The command line to run. pkgx provides almost all open source tools and the program can be versioned, eg. node@20. Many tools are in npm or pypa: if so run npx or uvx and put the tool you want in the arguments."`
	WorkingDirectory string `json:"workingDirectory,omitempty" jsonschema:"Directory to run the program in. Some tools behave differently depending on where they run. Defaults to the server's current directory (.)."`
}

type programParams struct {
	Program          string   `json:"program" jsonschema:"The program to run. pkgx provides almost all open source tools and the program can be versioned, eg. node@20. Many tools are in npm or pypa: if so set the program to npx or uvx and put the tool you want in args."`
	Args             []string `json:"args,omitempty" jsonschema:"Arguments passed to the program exactly as given. The program is not run inside a shell: shell quoting rules do not apply and any quotes are passed through to the program."`
	WorkingDirectory string   `json:"workingDirectory,omitempty" jsonschema:"Directory to run the program in. Some tools behave differently depending on where they run. Defaults to the server's current directory (.)."`
}

func registerTools(s *mcp.Server, h *handler) {
	mcp.AddTool(s, &mcp.Tool{
		Name: ToolCommandLine,
		Description: "Run a command line with `pkgx`.\n" +
			"The command line can only contain a single program instantiation." + runRules,
	}, h.commandLineHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name: ToolProgram,
		Description: "Run a single program with `pkgx`." + runRules + "\n" +
			"The `args` parameter must be an array of strings.",
	}, h.programHandler)
}

func (h *handler) commandLineHandler(ctx context.Context, req *mcp.CallToolRequest, params commandLineParams) (*mcp.CallToolResult, any, error) {
	program, args := command.Parse(params.CommandLine)
	return h.run(ctx, ToolCommandLine, runner.Request{
		Program: program,
		Args:    args,
		Dir:     workingDir(params.WorkingDirectory),
	})
}

func (h *handler) programHandler(ctx context.Context, req *mcp.CallToolRequest, params programParams) (*mcp.CallToolResult, any, error) {
	return h.run(ctx, ToolProgram, runner.Request{
		Program: params.Program,
		Args:    params.Args,
		Dir:     workingDir(params.WorkingDirectory),
	})
}

// workingDir maps the default working directory to an inherited one.
func workingDir(dir string) string {
	if dir == DefaultWorkingDirectory {
		return ""
	}
	return dir
}

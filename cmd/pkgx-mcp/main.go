// Command pkgx-mcp serves pkgx as an MCP tool server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime"

	"github.com/deixis/pkgxmcp"
	"github.com/deixis/pkgxmcp/internal/catalog"
	"github.com/deixis/pkgxmcp/internal/command"
	"github.com/deixis/pkgxmcp/internal/config"
	"github.com/deixis/pkgxmcp/internal/home"
	pxmcp "github.com/deixis/pkgxmcp/internal/mcp"
	"github.com/deixis/pkgxmcp/internal/metrics"
	"github.com/deixis/pkgxmcp/internal/pkgx"
	"github.com/deixis/pkgxmcp/internal/runner"
	"github.com/deixis/pkgxmcp/internal/sandbox"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("pkgx-mcp: ")

	cmd := "serve"
	args := os.Args[1:]
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}

	var err error
	switch cmd {
	case "serve":
		err = serveMain(args)
	case "run":
		err = runMain(args)
	case "version":
		fmt.Println(pkgxmcp.Version)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "pkgx-mcp: unknown command %q\n", cmd)
		usage()
		os.Exit(2)
	}

	if err != nil {
		log.Fatal(err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: pkgx-mcp <command> [flags]

Commands:
  serve       Start the MCP server (default)
  run         Run one program through pkgx and print the result
  version     Print the version
  help        Show this help

Use "pkgx-mcp <command> -h" for command-specific flags.`)
}

// --- serve ---

func serveMain(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "path to the config file")
	httpAddr := fs.String("http", "", "serve streamable HTTP on address (e.g. :9090) instead of stdio")
	instructions := fs.Bool("instructions", false, "print model instructions and exit")
	_ = fs.Parse(args)

	if *instructions {
		fmt.Print(pxmcp.Instructions)
		return nil
	}
	if pxmcp.Superuser() {
		return pxmcp.ErrSuperuser
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	d, err := build(*configPath)
	if err != nil {
		return err
	}
	server := pxmcp.NewServer(d.runner, d.catalog, pxmcp.WithMetrics(d.metrics))

	if *httpAddr != "" {
		return serveHTTP(ctx, server, d.metrics, *httpAddr)
	}
	return server.Run(ctx, &mcpsdk.StdioTransport{})
}

func serveHTTP(ctx context.Context, server *mcpsdk.Server, m *metrics.Collector, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/mcp", mcpsdk.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcpsdk.Server { return server },
		nil,
	))
	mux.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		_ = httpServer.Close()
	}()

	log.Printf("listening on %s", addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// --- run ---

func runMain(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "", "path to the config file")
	dir := fs.String("C", "", "working directory for the program")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Usage: pkgx-mcp run [flags] "<command line>"
       pkgx-mcp run [flags] <program> [args...]

A single argument is tokenized like the run-command-line tool; several
arguments are passed through like run-program-with-array-of-args.`)
		fs.PrintDefaults()
	}
	_ = fs.Parse(args)

	if fs.NArg() == 0 {
		fs.Usage()
		os.Exit(2)
	}
	if pxmcp.Superuser() {
		return pxmcp.ErrSuperuser
	}

	d, err := build(*configPath)
	if err != nil {
		return err
	}

	req := runner.Request{Dir: *dir}
	if fs.NArg() == 1 {
		req.Program, req.Args = command.Parse(fs.Arg(0))
	} else {
		req.Program, req.Args = fs.Arg(0), fs.Args()[1:]
	}

	res, runErr := d.runner.Run(context.Background(), req)
	text, isError := pxmcp.Envelope(res, runErr)
	fmt.Println(text)
	if isError {
		os.Exit(1)
	}
	return nil
}

// --- shared ---

type deps struct {
	runner  *runner.Runner
	catalog *catalog.Catalog
	metrics *metrics.Collector
}

func build(configPath string) (*deps, error) {
	loaded, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	cfg := loaded.Config
	if loaded.Path != "" {
		log.Printf("using config %s", loaded.Path)
	}

	m := metrics.New()
	h := home.New(cfg.Home())
	resolver := &pkgx.Resolver{
		Path:           cfg.Pkgx,
		ReuseInstalled: cfg.Reuse(),
		BaseURL:        cfg.DownloadURL(),
		Home:           h,
		Metrics:        m,
	}

	var policy *sandbox.Policy
	if cfg.SandboxEnabled() {
		realHome := home.Real()
		policy = sandbox.ForPlatform(runtime.GOOS, realHome, sandbox.Options{
			Writable:  cfg.Sandbox.Writable,
			Protected: cfg.Sandbox.Protected,
		})
		if policy != nil && realHome == "" {
			log.Printf("home directory unknown; credential directories are not read-protected")
		}
	}

	return &deps{
		runner: &runner.Runner{
			Pkgx:      resolver,
			Home:      h,
			Policy:    policy,
			Timeout:   cfg.Timeout(),
			MaxOutput: cfg.MaxOutputBytes(),
			Metrics:   m,
		},
		catalog: &catalog.Catalog{
			Pkgx:       resolver,
			ScriptsURL: cfg.ScriptsURL(),
		},
		metrics: m,
	}, nil
}

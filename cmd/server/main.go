package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/vinodismyname/branchrollup/config"
	"github.com/vinodismyname/branchrollup/internal/branches"
	"github.com/vinodismyname/branchrollup/internal/insights"
	"github.com/vinodismyname/branchrollup/internal/registry"
	"github.com/vinodismyname/branchrollup/internal/rollup"
	"github.com/vinodismyname/branchrollup/internal/runtime"
	"github.com/vinodismyname/branchrollup/internal/security"
	"github.com/vinodismyname/branchrollup/internal/sheets"
	"github.com/vinodismyname/branchrollup/internal/telemetry"
	"github.com/vinodismyname/branchrollup/internal/workbooks"
	"github.com/vinodismyname/branchrollup/pkg/version"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run wires and serves the server, returning the process exit code. Deferred
// cleanup runs before main exits.
func run(args []string) int {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	var (
		useStdio        bool
		shutdownTimeout time.Duration
		datasetCache    int
	)

	fs := flag.NewFlagSet("branchrollup-server", flag.ContinueOnError)
	fs.BoolVar(&useStdio, "stdio", false, "Run server over stdio transport")
	fs.DurationVar(&shutdownTimeout, "shutdown-timeout", 5*time.Second, "Graceful shutdown timeout")
	fs.IntVar(&datasetCache, "dataset-cache", 8, "Number of built report sets kept in memory")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	// stdout carries the MCP stream; logs go to stderr
	logger := zlog.Output(os.Stderr).With().Str("service", "branchrollup-server").Logger()
	ctx := logger.WithContext(context.Background())

	cfg, err := config.LoadFromEnv()
	if err != nil {
		logger.Error().Err(err).Msg("config: failed to load configuration")
		fmt.Fprintf(os.Stderr, "invalid configuration file; check %s\n", config.EnvConfigPath)
		return 1
	}

	// Security: validate allow-list directories on startup (fail-safe on error)
	secMgr, err := security.NewManagerFromEnv()
	if err != nil {
		logger.Error().Err(err).Msg("security: failed to initialize manager from env")
		fmt.Fprintf(os.Stderr, "invalid security configuration; set %s\n", config.EnvAllowedDirs)
		return 1
	}
	if err := secMgr.ValidateConfig(); err != nil {
		logger.Error().Err(err).Msg("security: invalid allow-list configuration")
		fmt.Fprintf(os.Stderr, "no allowed directories configured; set %s\n", config.EnvAllowedDirs)
		return 1
	}
	logger.Info().Strs("allowed_dirs", secMgr.AllowedDirectories()).Msg("security allow-list configured")

	mapper, err := branches.NewMapper(cfg.ExtraBranches)
	if err != nil {
		logger.Error().Err(err).Msg("config: invalid extra branch mappings")
		return 1
	}
	exempt := rollup.DefaultExempt()
	if len(cfg.ExemptBranches) > 0 {
		exempt = rollup.NewExemptSet(cfg.ExemptBranches...)
	}

	toolRegistry := registry.New()

	limits := runtime.NewLimits(0, 0).FromFile(cfg)
	if cfg.Model != "" {
		limits.MaxPayloadBytes = toolRegistry.PayloadBudget(cfg.Model, limits.MaxPayloadBytes)
	}
	runtimeController := runtime.NewController(limits)
	runtimeMW := runtime.NewMiddleware(runtimeController)

	wbMgr := workbooks.NewManager(0, 0, runtimeController, secMgr, nil)
	wbMgr.Start()
	defer func() {
		closeCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
		defer cancel()
		if err := wbMgr.Close(closeCtx); err != nil {
			logger.Warn().Err(err).Msg("workbook cache did not close cleanly")
		}
	}()

	analyzer := &insights.Analyzer{
		Limits: limits,
		Loader: &sheets.Loader{
			Limits:       limits,
			Mgr:          wbMgr,
			SheetName:    cfg.SheetName(),
			BranchColumn: cfg.BranchColumn(),
		},
		Builder: &rollup.Builder{Mapper: mapper, Exempt: exempt},
		Store:   insights.NewDatasetStore(datasetCache),
	}

	hooks := telemetry.NewHooks(logger)
	srv := server.NewMCPServer(
		"Branch Rollup Server",
		version.Version(),
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithHooks(hooks.Server()),
		server.WithToolHandlerMiddleware(runtimeMW.ToolMiddleware),
	)

	registry.RegisterReportTools(srv, toolRegistry, runtimeController.LimitsSnapshot(), analyzer)

	logger.Info().
		Ctx(ctx).
		Str("version", version.Version()).
		Str("revision", version.Revision()).
		Int("max_concurrent_requests", limits.MaxConcurrentRequests).
		Int("max_open_workbooks", limits.MaxOpenWorkbooks).
		Int("max_concurrent_loads", limits.MaxConcurrentLoads).
		Int("max_payload_bytes", limits.MaxPayloadBytes).
		Str("sheet", cfg.SheetName()).
		Int("extra_branches", len(cfg.ExtraBranches)).
		Bool("stdio", useStdio).
		Msg("server bootstrap configured")

	if useStdio {
		hooks.OnServerStart()
		err := server.ServeStdio(srv, server.WithStdioContextFunc(func(c context.Context) context.Context {
			return logger.WithContext(c)
		}))
		hooks.OnServerStop()
		if err != nil {
			// Use stderr for transport errors so clients don't misinterpret output
			fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
			return 1
		}
		return 0
	}

	// If no transport flags provided, print usage and exit non-zero
	fmt.Fprintln(os.Stderr, "no transport selected; use --stdio to run over stdio")
	return 2
}

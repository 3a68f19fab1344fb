package main

import (
    "context"
    "fmt"
    "io"
    "log/slog"
    "os"
    "os/signal"
    "syscall"

    "github.com/spf13/cobra"
    "gopkg.in/yaml.v3"

    "kanban-task-man/internal/config"
    "kanban-task-man/internal/logs"
    "kanban-task-man/internal/server"
    "kanban-task-man/internal/tasks"
    "kanban-task-man/internal/version"
)

type rootFlags struct {
    cfgFile string
    baseDir string
    host    string
    port    int
    debug   bool
}

func newRootCmd() *cobra.Command {
    f := &rootFlags{}
    cmd := &cobra.Command{
        Use:   "kanban-server",
        Short: "Serve a kanban board directory over HTTP",
        Long: `kanban-server exposes a board directory (one subdirectory per lane,
one markdown file per task) as a JSON API.

  kanban-server serve --base-dir ~/board --port 3003
  kanban-server config      Print the effective configuration`,
        SilenceUsage: true,
    }
    cmd.PersistentFlags().StringVar(&f.cfgFile, "config", config.DefaultPath(), "config file (.json or .yaml)")
    cmd.PersistentFlags().StringVar(&f.baseDir, "base-dir", "", "board directory (overrides config)")
    cmd.PersistentFlags().BoolVar(&f.debug, "debug", false, "enable debug logging")

    cmd.AddCommand(newServeCmd(f))
    cmd.AddCommand(newConfigCmd(f))
    cmd.AddCommand(newVersionCmd())
    return cmd
}

// loadConfig layers the config file, the environment and the flags.
func (f *rootFlags) loadConfig(cmd *cobra.Command) (config.Config, error) {
    cfg := config.Default()
    if err := config.Load(f.cfgFile, &cfg); err != nil && !os.IsNotExist(err) {
        return cfg, fmt.Errorf("load config %s: %w", f.cfgFile, err)
    }
    if f.baseDir != "" { cfg.BaseDir = f.baseDir }
    if p, err := config.ExpandPath(cfg.BaseDir); err == nil { cfg.BaseDir = p }
    if cmd.Flags().Changed("host") { cfg.Server.Host = f.host }
    if cmd.Flags().Changed("port") { cfg.Server.Port = f.port }
    if f.debug { cfg.Debug = true }
    return cfg, nil
}

func newServeCmd(f *rootFlags) *cobra.Command {
    cmd := &cobra.Command{
        Use:   "serve",
        Short: "Start the HTTP API",
        Args:  cobra.NoArgs,
        RunE: func(cmd *cobra.Command, args []string) error {
            cfg, err := f.loadConfig(cmd)
            if err != nil { return err }
            logger, closeLog := logs.New(logs.Options{
                Debug:   cfg.Debug,
                Writer:  cmd.ErrOrStderr(),
                File:    cfg.LogFile,
                Journal: cfg.LogJournal,
            })
            defer closeLog()

            ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
            defer stop()
            return serve(ctx, cfg, logger)
        },
    }
    def := config.Default().Server
    cmd.Flags().StringVar(&f.host, "host", def.Host, "listen host")
    cmd.Flags().IntVar(&f.port, "port", def.Port, "listen port")
    return cmd
}

func serve(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
    if err := config.EnsureDir(cfg.BaseDir); err != nil { return err }
    ledger, err := tasks.OpenLedger(tasks.LedgerPath(cfg.BaseDir))
    if err != nil { return fmt.Errorf("open trash ledger: %w", err) }
    defer ledger.Close()

    mgr, err := tasks.NewOSManager(cfg.BaseDir, tasks.WithLogger(logger), tasks.WithLedger(ledger))
    if err != nil { return err }
    logger.Info("serving board", "base_dir", cfg.BaseDir, "version", version.String())
    return server.New(mgr, logger).Run(ctx, cfg.Server.Addr())
}

func newConfigCmd(f *rootFlags) *cobra.Command {
    return &cobra.Command{
        Use:   "config",
        Short: "Print the effective configuration as YAML",
        Args:  cobra.NoArgs,
        RunE: func(cmd *cobra.Command, args []string) error {
            cfg, err := f.loadConfig(cmd)
            if err != nil { return err }
            return printYAML(cmd.OutOrStdout(), cfg)
        },
    }
}

func printYAML(w io.Writer, cfg config.Config) error {
    if cfg.OpenAI.APIKey != "" { cfg.OpenAI.APIKey = "***" }
    enc := yaml.NewEncoder(w)
    enc.SetIndent(2)
    if err := enc.Encode(cfg); err != nil { return err }
    return enc.Close()
}

func newVersionCmd() *cobra.Command {
    return &cobra.Command{
        Use:   "version",
        Short: "Print the version",
        Run: func(cmd *cobra.Command, args []string) {
            fmt.Fprintln(cmd.OutOrStdout(), version.String())
        },
    }
}

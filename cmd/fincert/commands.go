package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/sufield/fincert/internal/app"
	"github.com/sufield/fincert/internal/bulletins"
	"github.com/sufield/fincert/internal/config"
	"github.com/sufield/fincert/internal/fincert"
	"github.com/sufield/fincert/internal/identity"
)

const defaultConfigPath = "fincert.yaml"

func registerCommands(r *CommandRegistry) {
	opts := app.Options{Version: r.version.Version}

	runCmd := &Command{
		Name:        "run",
		Description: "Download feeds and new bulletins as configured",
		Usage:       "fincert run [--config fincert.yaml]",
		Examples: []string{
			"fincert run",
			"fincert run --config /etc/fincert/fincert.yaml",
		},
	}
	runCmd.Run = taskCommand(runCmd, opts, app.SyncAll())
	r.Register(runCmd)

	feedsCmd := &Command{
		Name:        "feeds",
		Description: "Download every antifraud feed",
		Usage:       "fincert feeds [--config fincert.yaml]",
		Examples:    []string{"fincert feeds"},
	}
	feedsCmd.Run = taskCommand(feedsCmd, opts, app.Feeds())
	r.Register(feedsCmd)

	bulletinsCmd := &Command{
		Name:        "bulletins",
		Description: "Download new bulletins, or list them with --list",
		Usage:       "fincert bulletins [--config fincert.yaml] [--limit N] [--offset N] [--list]",
		Examples: []string{
			"fincert bulletins",
			"fincert bulletins --limit 100 --offset 100",
			"fincert bulletins --list --limit 20",
		},
	}
	bulletinsCmd.Run = func(ctx context.Context, args []string) error {
		fs := bulletinsCmd.NewFlagSet()
		configPath := fs.String("config", defaultConfigPath, "Configuration file")
		limit := fs.Int("limit", 0, "Bulletins per page, 1-100 (default from configuration)")
		offset := fs.Int("offset", 0, "Start this many bulletins back in history; existing ones are skipped instead of stopping")
		list := fs.Bool("list", false, "Only write the summary file "+bulletins.ListFileName)
		if err := bulletinsCmd.Parse(fs, args); err != nil {
			return err
		}
		if *limit != 0 && (*limit < fincert.MinBulletinLimit || *limit > fincert.MaxBulletinLimit) {
			return fmt.Errorf("%w: --limit must be 1-100, got %d", errUsage, *limit)
		}
		if *offset < 0 {
			return fmt.Errorf("%w: --offset must not be negative", errUsage)
		}

		cfg, err := config.LoadOrCreate(*configPath)
		if err != nil {
			return err
		}
		n := *limit
		if n == 0 {
			n = cfg.Bulletins.Limit
		}
		if *list {
			return app.Run(ctx, cfg, opts, app.List(n, *offset))
		}
		return app.Run(ctx, cfg, opts, app.Bulletins(n, *offset))
	}
	r.Register(bulletinsCmd)

	checklistCmd := &Command{
		Name:        "checklist",
		Description: "Write the connection checklist kit (1.json, 2.json, 3.json and sample bulletins)",
		Usage:       "fincert checklist [--config fincert.yaml] [--dir CheckList] [--limit 4]",
		Examples:    []string{"fincert checklist --dir CheckList"},
	}
	checklistCmd.Run = func(ctx context.Context, args []string) error {
		fs := checklistCmd.NewFlagSet()
		configPath := fs.String("config", defaultConfigPath, "Configuration file")
		dir := fs.String("dir", "CheckList", "Directory receiving the kit")
		limit := fs.Int("limit", bulletins.DefaultCheckListLimit, "Number of sample bulletins")
		if err := checklistCmd.Parse(fs, args); err != nil {
			return err
		}
		cfg, err := config.LoadOrCreate(*configPath)
		if err != nil {
			return err
		}
		return app.Run(ctx, cfg, opts, app.CheckList(*dir, *limit))
	}
	r.Register(checklistCmd)

	validateCmd := &Command{
		Name:        "validate",
		Description: "Validate a configuration file",
		Usage:       "fincert validate [--config fincert.yaml]",
		Examples: []string{
			"fincert validate",
			"fincert validate --config /etc/fincert/fincert.yaml",
		},
	}
	validateCmd.Run = func(_ context.Context, args []string) error {
		fs := validateCmd.NewFlagSet()
		configPath := fs.String("config", defaultConfigPath, "Configuration file")
		if err := validateCmd.Parse(fs, args); err != nil {
			return err
		}
		return validateConfig(*configPath)
	}
	r.Register(validateCmd)

	certCmd := &Command{
		Name:        "cert",
		Description: "Show the client certificates of the store and the one selected",
		Usage:       "fincert cert [--config fincert.yaml] [--thumbprint HEX]",
		Examples: []string{
			"fincert cert",
			"fincert cert --thumbprint \"df 25 2a 12 ...\"",
		},
	}
	certCmd.Run = func(_ context.Context, args []string) error {
		fs := certCmd.NewFlagSet()
		configPath := fs.String("config", defaultConfigPath, "Configuration file")
		thumbprint := fs.String("thumbprint", "", "Thumbprint to look up (default from configuration)")
		if err := certCmd.Parse(fs, args); err != nil {
			return err
		}
		cfg, err := config.LoadOrCreate(*configPath)
		if err != nil {
			return err
		}
		if *thumbprint == "" {
			*thumbprint = cfg.TLS.ClientThumbprint
		}
		return showCertificates(cfg.TLS.CertStore, *thumbprint)
	}
	r.Register(certCmd)

	versionCmd := &Command{
		Name:        "version",
		Description: "Show version information",
		Usage:       "fincert version",
		Examples:    []string{"fincert version"},
	}
	versionCmd.Run = func(_ context.Context, args []string) error {
		fs := versionCmd.NewFlagSet()
		if err := versionCmd.Parse(fs, args); err != nil {
			return err
		}
		fmt.Printf("fincert %s\n", r.version.Version)
		fmt.Printf("  commit: %s\n", r.version.Commit)
		fmt.Printf("  built:  %s\n", r.version.Date)
		fmt.Printf("  go:     %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
		return nil
	}
	r.Register(versionCmd)

	r.Register(&Command{
		Name:        "help",
		Description: "Show help information",
		Usage:       "fincert help [command]",
		Examples: []string{
			"fincert help",
			"fincert help bulletins",
		},
		Run: func(_ context.Context, args []string) error {
			if len(args) > 0 {
				if cmd, ok := r.commands[args[0]]; ok {
					fs := cmd.NewFlagSet()
					fs.SetOutput(os.Stdout)
					cmd.PrintUsage(fs)
					return nil
				}
			}
			r.PrintHelp(os.Stdout)
			return nil
		},
	})
}

// taskCommand builds the Run function of a command that only takes --config.
func taskCommand(cmd *Command, opts app.Options, task app.Task) func(context.Context, []string) error {
	return func(ctx context.Context, args []string) error {
		fs := cmd.NewFlagSet()
		configPath := fs.String("config", defaultConfigPath, "Configuration file")
		if err := cmd.Parse(fs, args); err != nil {
			return err
		}
		cfg, err := config.LoadOrCreate(*configPath)
		if err != nil {
			return err
		}
		return app.Run(ctx, cfg, opts, task)
	}
}

func validateConfig(path string) error {
	cfg, err := config.LoadFromFile(path)
	if err != nil {
		return fmt.Errorf("%w: failed to load config: %w", config.ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	fmt.Printf("✓ Valid configuration: %s\n", path)
	fmt.Printf("  API:            %s\n", cfg.API.BaseURL)
	fmt.Printf("  Certificate:    %s in %s\n", identity.NormalizeThumbprint(cfg.TLS.ClientThumbprint), cfg.TLS.CertStore)
	fmt.Printf("  Chain check:    %t\n", cfg.TLS.ValidateChain)
	if cfg.TLS.PinThumbprint {
		fmt.Printf("  Pinned server:  %s\n", identity.NormalizeThumbprint(cfg.TLS.ServerThumbprint))
	}
	if cfg.Proxy.Enabled {
		fmt.Printf("  Proxy:          %s\n", cfg.Proxy.Address)
	}
	fmt.Printf("  Pacing:         %v, backoff %v, budget %v\n", cfg.Retry.PacingInterval, cfg.Retry.BackoffUnit, cfg.Retry.WaitBudget)
	if cfg.Feeds.Enabled {
		fmt.Printf("  Feeds:          %s\n", cfg.Feeds.Downloads)
	}
	if cfg.Bulletins.Enabled {
		fmt.Printf("  Bulletins:      %s (limit %d)\n", cfg.Bulletins.Downloads, cfg.Bulletins.Limit)
	}
	if cfg.Mirror.S3Bucket != "" {
		fmt.Printf("  Mirror:         s3://%s/%s\n", cfg.Mirror.S3Bucket, cfg.Mirror.S3Prefix)
	}
	return nil
}

func showCertificates(dir, thumbprint string) error {
	store := identity.NewStore(dir)
	certs, skipped, err := store.Load()
	if err != nil {
		return fmt.Errorf("%w: %w", identity.ErrCertificateNotFound, err)
	}
	for _, s := range skipped {
		fmt.Fprintf(os.Stderr, "⚠ %v\n", s)
	}

	now := time.Now()
	want := identity.NormalizeThumbprint(thumbprint)
	table := NewTableWriter([]string{"", "Thumbprint", "Subject", "Valid until", "File"})
	for _, c := range certs {
		mark := ""
		switch {
		case !c.IsValidAt(now):
			mark = "expired"
		case c.Thumbprint() == want:
			mark = "✓"
		}
		table.AddRow([]string{
			mark,
			c.Thumbprint(),
			c.Leaf().Subject.CommonName,
			c.Leaf().NotAfter.Format("2006-01-02"),
			c.Path(),
		})
	}
	table.Print(os.Stdout)

	if want == "" {
		return nil
	}
	selected, err := store.Find(thumbprint)
	if err != nil {
		return err
	}
	fmt.Printf("\nSelected: %s (%s)\n", selected.Thumbprint(), selected.Path())
	return nil
}

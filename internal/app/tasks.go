package app

import (
	"context"

	"github.com/sufield/fincert/internal/bulletins"
	"github.com/sufield/fincert/internal/config"
)

// Task is one unit of work run on an open session.
type Task func(ctx context.Context, a *Application) error

// Run bootstraps a session, runs task and logs out. A logout failure is
// logged by the client and does not change the result.
func Run(ctx context.Context, cfg *config.Config, opts Options, task Task) error {
	a, err := Bootstrap(ctx, cfg, opts)
	if err != nil {
		return err
	}

	err = task(ctx, a)
	if err != nil {
		a.Logger.Error().Err(err).Int("exit_code", ExitCode(err)).Msg("Run failed")
	}
	_ = a.Close(ctx)
	return err
}

// SyncAll downloads the feeds and the newest bulletins, each when enabled
// in the configuration.
func SyncAll() Task {
	return func(ctx context.Context, a *Application) error {
		if a.Config.Feeds.Enabled {
			if err := Feeds()(ctx, a); err != nil {
				return err
			}
		}
		if a.Config.Bulletins.Enabled {
			return Bulletins(a.Config.Bulletins.Limit, 0)(ctx, a)
		}
		return nil
	}
}

// Feeds downloads every feed into feeds.downloads.
func Feeds() Task {
	return func(ctx context.Context, a *Application) error {
		_, err := a.Feeds.LoadAll(ctx, a.Config.Feeds.Downloads)
		return err
	}
}

// Bulletins synchronizes one page of bulletins into bulletins.downloads.
func Bulletins(limit, offset int) Task {
	return func(ctx context.Context, a *Application) error {
		res, err := a.Bulletins.Sync(ctx, limit, offset)
		logResult(a, res, err)
		return err
	}
}

// List writes the summary file of one page of bulletins.
func List(limit, offset int) Task {
	return func(ctx context.Context, a *Application) error {
		_, err := a.Bulletins.List(ctx, limit, offset)
		return err
	}
}

// CheckList writes the checklist kit into dir.
func CheckList(dir string, limit int) Task {
	return func(ctx context.Context, a *Application) error {
		res, err := a.Bulletins.CheckList(ctx, dir, limit)
		logResult(a, res, err)
		return err
	}
}

func logResult(a *Application, res bulletins.Result, err error) {
	event := a.Logger.Info()
	if err != nil {
		event = a.Logger.Warn()
	}
	event.
		Int("total", res.Total).
		Int("listed", res.Listed).
		Int("created", res.Created).
		Int("skipped", res.Skipped).
		Bool("stopped", res.Stopped).
		Str("stop_at", res.StopAt).
		Msg("Bulletins synchronized")
}

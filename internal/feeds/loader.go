// Package feeds downloads every antifraud feed into a local directory.
package feeds

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/sufield/fincert/internal/fincert"
	"github.com/sufield/fincert/internal/fsutil"
	"github.com/sufield/fincert/internal/mirror"
)

// API is the part of *fincert.Client the loader uses.
type API interface {
	GetFeedStatus(ctx context.Context, t fincert.FeedType) (fincert.FeedStatus, error)
	DownloadFeed(ctx context.Context, t fincert.FeedType, w io.Writer) (int64, error)
}

// Config configures a Loader.
type Config struct {
	// Types restricts the download to these feeds. All feeds when empty.
	Types  []fincert.FeedType
	Mirror mirror.Mirror
	Logger zerolog.Logger
}

// Loader fetches feeds one after another.
type Loader struct {
	api    API
	types  []fincert.FeedType
	mirror mirror.Mirror
	logger zerolog.Logger
}

// Downloaded describes one stored feed.
type Downloaded struct {
	Type   fincert.FeedType
	Path   string
	Bytes  int64
	Status fincert.FeedStatus
}

// NewLoader returns a Loader reading from api.
func NewLoader(api API, cfg Config) *Loader {
	types := cfg.Types
	if len(types) == 0 {
		types = fincert.AllFeedTypes()
	}
	m := cfg.Mirror
	if m == nil {
		m = mirror.Nop{}
	}
	return &Loader{
		api:    api,
		types:  types,
		mirror: m,
		logger: cfg.Logger.With().Str("component", "feeds").Logger(),
	}
}

// LoadAll checks the status of each feed and stores its content as
// dir/<file name>. The first failure stops the run; feeds stored before it
// are returned with the error.
func (l *Loader) LoadAll(ctx context.Context, dir string) ([]Downloaded, error) {
	if err := fsutil.MkdirAll(dir); err != nil {
		return nil, err
	}

	var done []Downloaded
	for _, t := range l.types {
		d, err := l.Load(ctx, dir, t)
		if err != nil {
			return done, err
		}
		done = append(done, d)
	}
	l.logger.Info().Int("feeds", len(done)).Str("dir", dir).Msg("Feeds downloaded")
	return done, nil
}

// Load fetches a single feed into dir.
func (l *Loader) Load(ctx context.Context, dir string, t fincert.FeedType) (Downloaded, error) {
	status, err := l.api.GetFeedStatus(ctx, t)
	if err != nil {
		return Downloaded{}, fmt.Errorf("feed %s status: %w", t, err)
	}

	event := l.logger.Info().Str("feed", string(t)).Int("version", status.Version)
	if uploaded, perr := status.Uploaded(); perr == nil {
		event = event.Time("uploaded", uploaded)
	} else {
		event = event.Str("uploaded", status.UploadDatetime)
	}
	event.Msg("Feed status")

	path := filepath.Join(dir, t.FileName())
	n, err := fsutil.WriteStream(path, func(w io.Writer) (int64, error) {
		return l.api.DownloadFeed(ctx, t, w)
	})
	if err != nil {
		return Downloaded{}, fmt.Errorf("feed %s download: %w", t, err)
	}
	l.logger.Debug().Str("feed", string(t)).Int64("bytes", n).Str("path", path).Msg("Feed stored")

	if err := l.mirror.Put(ctx, "feeds/"+t.FileName(), path); err != nil {
		return Downloaded{}, fmt.Errorf("feed %s mirror: %w", t, err)
	}
	return Downloaded{Type: t, Path: path, Bytes: n, Status: status}, nil
}

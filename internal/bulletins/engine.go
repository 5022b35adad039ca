package bulletins

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/sufield/fincert/internal/archive"
	"github.com/sufield/fincert/internal/fincert"
	"github.com/sufield/fincert/internal/fsutil"
	"github.com/sufield/fincert/internal/mirror"
)

// ErrFileSystem marks a failure of the local file system.
var ErrFileSystem = fsutil.ErrFileSystem

// ErrNegativeOffset is returned for a listing offset below zero.
var ErrNegativeOffset = errors.New("offset must not be negative")

// MarkerName is written into a bulletin directory once all of its files
// are in place.
const MarkerName = ".complete"

// feedsArchivePrefix starts the names of the feed archives attached to
// "feeds" bulletins, e.g. feeds_20240703-03.zip.
const (
	feedsArchivePrefix  = "feeds_20"
	initialFeedsArchive = "feeds_20240101-01.zip"
)

// API is the part of *fincert.Client the engine uses.
type API interface {
	ListBulletinIDs(ctx context.Context, limit, offset int) (fincert.BulletinIDs, error)
	GetBulletinDetails(ctx context.Context, ids []string) (fincert.BulletinSummaries, error)
	GetBulletinDetail(ctx context.Context, id string) (fincert.BulletinDetail, error)
	DownloadAttachment(ctx context.Context, id string, w io.Writer) (int64, error)
	GetRaw(ctx context.Context, req fincert.Request, w io.Writer) (int64, error)
}

// Config configures an Engine.
type Config struct {
	// Root is the download directory holding one directory per bulletin.
	Root string

	// RequireMarker treats a directory without MarkerName as interrupted.
	// When false any existing directory is a checkpoint.
	RequireMarker bool

	// ArchiveTargets receive the content of every new feed archive.
	ArchiveTargets []string

	Mirror mirror.Mirror
	Logger zerolog.Logger
}

// Engine synchronizes bulletins into Root.
//
// Concurrency: not safe for concurrent use; one Sync at a time per Root.
type Engine struct {
	api            API
	root           string
	requireMarker  bool
	archiveTargets []string
	mirror         mirror.Mirror
	logger         zerolog.Logger
}

// Result summarizes one Sync.
type Result struct {
	Total   int // bulletins the server reports in all
	Listed  int // ids on the requested page
	Created int
	Skipped int
	Stopped bool   // stopped at an existing directory
	StopAt  string // name of that directory
}

// NewEngine returns an Engine reading from api.
func NewEngine(api API, cfg Config) *Engine {
	m := cfg.Mirror
	if m == nil {
		m = mirror.Nop{}
	}
	return &Engine{
		api:            api,
		root:           cfg.Root,
		requireMarker:  cfg.RequireMarker,
		archiveTargets: dedupTargets(cfg.ArchiveTargets),
		mirror:         m,
		logger:         cfg.Logger.With().Str("component", "bulletins").Logger(),
	}
}

// Root returns the download directory.
func (e *Engine) Root() string { return e.root }

type dirState int

const (
	dirAbsent dirState = iota
	dirPartial
	dirComplete
)

// Sync downloads the bulletins of one page of the listing that are not on
// disk yet. On error the counts reached so far are returned with it.
func (e *Engine) Sync(ctx context.Context, limit, offset int) (Result, error) {
	var res Result
	if offset < 0 {
		return res, fmt.Errorf("%w: %d", ErrNegativeOffset, offset)
	}
	if err := fsutil.MkdirAll(e.root); err != nil {
		return res, err
	}

	ids, err := e.api.ListBulletinIDs(ctx, limit, offset)
	if err != nil {
		return res, fmt.Errorf("list bulletins: %w", err)
	}
	res.Total = ids.Total
	res.Listed = len(ids.Items)
	e.logger.Info().Int("total", res.Total).Int("listed", res.Listed).Int("offset", offset).Msg("Bulletin listing")

	lastArchive := initialFeedsArchive
	for _, item := range ids.Items {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		detail, err := e.api.GetBulletinDetail(ctx, item.ID)
		if err != nil {
			return res, fmt.Errorf("bulletin %s: %w", item.ID, err)
		}
		published, err := detail.Published()
		if err != nil {
			return res, fmt.Errorf("bulletin %s: %w", item.ID, err)
		}

		name := DirName(published, detail.Hrid)
		dir := filepath.Join(e.root, name)
		state, err := e.state(dir)
		if err != nil {
			return res, err
		}

		switch state {
		case dirComplete:
			if offset == 0 {
				res.Stopped = true
				res.StopAt = name
				e.logger.Info().Str("dir", name).Msg("Reached downloaded bulletin, stopping")
				return res, nil
			}
			res.Skipped++
			e.logger.Debug().Str("dir", name).Msg("Bulletin already downloaded")
			continue
		case dirPartial:
			e.logger.Warn().Str("dir", name).Msg("Bulletin directory incomplete, downloading again")
		}

		if err := e.materialize(ctx, dir, detail, published, &lastArchive); err != nil {
			return res, fmt.Errorf("bulletin %s: %w", name, err)
		}
		res.Created++
		e.logger.Info().Str("dir", name).Str("header", detail.Header).Msg("Bulletin downloaded")

		if _, err := mirror.MirrorDir(ctx, e.mirror, e.root, name); err != nil {
			return res, fmt.Errorf("bulletin %s: %w", name, err)
		}
	}
	return res, nil
}

func (e *Engine) state(dir string) (dirState, error) {
	ok, err := fsutil.Exists(dir)
	if err != nil || !ok {
		return dirAbsent, err
	}
	if !e.requireMarker {
		return dirComplete, nil
	}
	done, err := fsutil.Exists(filepath.Join(dir, MarkerName))
	if err != nil {
		return dirAbsent, err
	}
	if done {
		return dirComplete, nil
	}
	return dirPartial, nil
}

// materialize writes the attachments, the manifest and finally the marker.
func (e *Engine) materialize(ctx context.Context, dir string, d fincert.BulletinDetail, published time.Time, lastArchive *string) error {
	if err := fsutil.MkdirAll(dir); err != nil {
		return err
	}

	manifestName := manifestFileName(d.Type)

	var primary string
	if d.Attachment != nil {
		primary = attachmentFileName(*d.Attachment, manifestName)
		path := filepath.Join(dir, primary)
		if err := e.download(ctx, *d.Attachment, path); err != nil {
			return err
		}
		if err := e.extractFeedsArchive(primary, path, lastArchive); err != nil {
			return err
		}
	}

	additional := make([]string, 0, len(d.AdditionalAttachments))
	for _, a := range d.AdditionalAttachments {
		name := attachmentFileName(a, manifestName)
		if err := e.download(ctx, a, filepath.Join(dir, name)); err != nil {
			return err
		}
		additional = append(additional, name)
	}

	text := manifest(d, published, primary, additional)
	if err := fsutil.WriteFile(filepath.Join(dir, manifestName), []byte(text)); err != nil {
		return err
	}
	return fsutil.WriteFile(filepath.Join(dir, MarkerName), nil)
}

func (e *Engine) download(ctx context.Context, a fincert.Attachment, path string) error {
	n, err := fsutil.WriteStream(path, func(w io.Writer) (int64, error) {
		return e.api.DownloadAttachment(ctx, a.ID, w)
	})
	if err != nil {
		return fmt.Errorf("attachment %s: %w", a.ID, err)
	}
	e.logger.Debug().Str("attachment", a.ID).Int64("bytes", n).Str("path", path).Msg("Attachment stored")
	return nil
}

// extractFeedsArchive unpacks a feed archive newer than the last one seen
// in this run into every archive target.
func (e *Engine) extractFeedsArchive(name, path string, last *string) error {
	if len(e.archiveTargets) == 0 {
		return nil
	}
	lower := strings.ToLower(name)
	if !strings.HasPrefix(lower, feedsArchivePrefix) || lower <= strings.ToLower(*last) {
		return nil
	}
	*last = name
	e.logger.Info().Str("archive", name).Msg("Feed archive received")

	for _, target := range e.archiveTargets {
		n, err := archive.ExtractZip(path, target)
		if err != nil {
			if errors.Is(err, archive.ErrUnsafePath) {
				return fmt.Errorf("feed archive %s: %w", name, err)
			}
			return fsutil.Wrap("extract", path, err)
		}
		e.logger.Info().Str("archive", name).Str("target", target).Int("files", n).Msg("Feed archive extracted")
	}
	return nil
}

// reservedPrefix is put in front of an attachment name that would collide
// with a file the engine writes itself.
const reservedPrefix = "attachment_"

func manifestFileName(bulletinType string) string {
	return Sanitize(bulletinType) + ".txt"
}

// attachmentFileName is the name an attachment is stored under. It never
// equals the marker, the manifest or a temporary download name.
func attachmentFileName(a fincert.Attachment, manifestName string) string {
	name := a.Name
	if strings.TrimSpace(name) == "" {
		name = a.ID
	}
	name = Sanitize(filepath.Base(strings.ReplaceAll(name, `\`, "/")))
	if name == "." || name == ".." {
		return Placeholder
	}
	if strings.EqualFold(name, MarkerName) || strings.EqualFold(name, manifestName) {
		return reservedPrefix + name
	}
	if strings.HasSuffix(strings.ToLower(name), fsutil.PartSuffix) {
		return name[:len(name)-len(fsutil.PartSuffix)] + "_part"
	}
	return name
}

func dedupTargets(targets []string) []string {
	var out []string
	for _, t := range targets {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		clean := filepath.Clean(t)
		if !slices.Contains(out, clean) {
			out = append(out, clean)
		}
	}
	return out
}

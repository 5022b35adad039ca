package bulletins

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/sufield/fincert/internal/fincert"
	"github.com/sufield/fincert/internal/fsutil"
)

// DefaultCheckListLimit is the number of bulletins in a checklist kit.
const DefaultCheckListLimit = 4

// CheckList assembles the files requested when connecting to FinCERT: the
// raw answers of the listing (1.json), of the batch details (2.json) and of
// the first bulletin (3.json), followed by a regular Sync of limit
// bulletins into dir.
func (e *Engine) CheckList(ctx context.Context, dir string, limit int) (Result, error) {
	if limit <= 0 {
		limit = DefaultCheckListLimit
	}
	if err := fsutil.MkdirAll(dir); err != nil {
		return Result{}, err
	}

	if err := e.saveRaw(ctx, fincert.BulletinIDsRequest(limit, 0), filepath.Join(dir, "1.json")); err != nil {
		return Result{}, err
	}

	ids, err := e.api.ListBulletinIDs(ctx, limit, 0)
	if err != nil {
		return Result{}, fmt.Errorf("list bulletins: %w", err)
	}

	listReq, err := fincert.BulletinListRequest(ids.IDs())
	if err != nil {
		return Result{}, err
	}
	if err := e.saveRaw(ctx, listReq, filepath.Join(dir, "2.json")); err != nil {
		return Result{}, err
	}

	if len(ids.Items) > 0 {
		if err := e.saveRaw(ctx, fincert.BulletinDetailRequest(ids.Items[0].ID), filepath.Join(dir, "3.json")); err != nil {
			return Result{}, err
		}
	}

	kit := *e
	kit.root = dir
	return kit.Sync(ctx, limit, 0)
}

func (e *Engine) saveRaw(ctx context.Context, req fincert.Request, path string) error {
	_, err := fsutil.WriteStream(path, func(w io.Writer) (int64, error) {
		return e.api.GetRaw(ctx, req, w)
	})
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.Path, err)
	}
	e.logger.Info().Str("path", path).Msg("Checklist file written")
	return nil
}

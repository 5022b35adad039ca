package bulletins

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sufield/fincert/internal/fincert"
	"github.com/sufield/fincert/internal/fsutil"
)

// ListFileName is written by List into the download root.
const ListFileName = "Bulletins.txt"

// List writes the summaries of one page of the listing to
// Root/Bulletins.txt, replacing the previous file, and returns them.
//
// The batch endpoint carries no additional attachments, so List is a quick
// overview only; use Sync to download bulletins.
func (e *Engine) List(ctx context.Context, limit, offset int) (fincert.BulletinSummaries, error) {
	if offset < 0 {
		return fincert.BulletinSummaries{}, fmt.Errorf("%w: %d", ErrNegativeOffset, offset)
	}
	if err := fsutil.MkdirAll(e.root); err != nil {
		return fincert.BulletinSummaries{}, err
	}

	ids, err := e.api.ListBulletinIDs(ctx, limit, offset)
	if err != nil {
		return fincert.BulletinSummaries{}, fmt.Errorf("list bulletins: %w", err)
	}
	e.logger.Info().Int("total", ids.Total).Int("listed", len(ids.Items)).Msg("Bulletin listing")

	summaries, err := e.api.GetBulletinDetails(ctx, ids.IDs())
	if err != nil {
		return fincert.BulletinSummaries{}, fmt.Errorf("bulletin summaries: %w", err)
	}

	var b strings.Builder
	for _, s := range summaries.Items {
		b.WriteString(summaryBlock(s))
	}
	path := filepath.Join(e.root, ListFileName)
	if err := fsutil.WriteFile(path, []byte(b.String())); err != nil {
		return summaries, err
	}
	e.logger.Info().Str("path", path).Int("bulletins", len(summaries.Items)).Msg("Bulletin list written")
	return summaries, nil
}

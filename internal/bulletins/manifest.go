package bulletins

import (
	"fmt"
	"strings"
	"time"

	"github.com/sufield/fincert/internal/fincert"
)

const (
	manifestTimeLayout = "2006-01-02 15:04"
	separator          = "------------------------------------"
)

// manifest is the text file written next to the attachments of a bulletin.
// Attachment names are those of the files on disk.
func manifest(d fincert.BulletinDetail, published time.Time, primary string, additional []string) string {
	var b strings.Builder
	b.WriteString(d.ID + "\n")
	line(&b, "Published:", published.Format(manifestTimeLayout))
	line(&b, "Identifier:", strings.TrimSpace(d.Hrid))
	line(&b, "Header:", d.Header)
	line(&b, "Type:", d.Type)
	line(&b, "Subtype:", d.Subtype)
	if primary != "" {
		line(&b, "Attachment:", primary)
	}
	for i, name := range additional {
		line(&b, fmt.Sprintf("Additional %d:", i+1), name)
	}
	line(&b, "Description:", d.Description)
	return b.String()
}

// summaryBlock is one entry of Bulletins.txt.
func summaryBlock(s fincert.BulletinSummary) string {
	var b strings.Builder
	b.WriteString(separator + "\n")
	b.WriteString(s.ID + "\n")
	published := s.PublishedDate
	if t, err := s.Published(); err == nil {
		published = t.Format(manifestTimeLayout)
	}
	line(&b, "Published:", published)
	line(&b, "Identifier:", s.Hrid)
	line(&b, "Header:", s.Header)
	line(&b, "Type:", s.Type)
	line(&b, "Subtype:", s.Subtype)
	if s.AttachmentID != "" {
		line(&b, "Attachment:", s.AttachmentID)
	}
	line(&b, "Description:", s.Description)
	return b.String()
}

func line(b *strings.Builder, label, value string) {
	fmt.Fprintf(b, "%-15s%s\n", label, value)
}

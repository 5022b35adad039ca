package fincert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Page size limits of the bulletin listing.
const (
	MinBulletinLimit = 1
	MaxBulletinLimit = 100
)

// BulletinID is one entry of the listing.
type BulletinID struct {
	ID string `json:"id"`
}

// BulletinIDs is one page of the listing, newest first.
type BulletinIDs struct {
	Total int          `json:"total"`
	Items []BulletinID `json:"items"`
}

// IDs returns the identifiers of the page in order.
func (b BulletinIDs) IDs() []string {
	ids := make([]string, len(b.Items))
	for i, item := range b.Items {
		ids[i] = item.ID
	}
	return ids
}

// BulletinSummary is the short form returned by bulletins/list.
type BulletinSummary struct {
	ID            string `json:"id"`
	Hrid          string `json:"hrid"`
	Header        string `json:"header"`
	Description   string `json:"description"`
	PublishedDate string `json:"publishedDate"`
	AttachmentID  string `json:"attachmentId"`
	Type          string `json:"type"`
	Subtype       string `json:"subtype"`
}

// BulletinSummaries is the answer of bulletins/list.
type BulletinSummaries struct {
	Total int               `json:"total"`
	Items []BulletinSummary `json:"items"`
}

// Attachment is a downloadable file of a bulletin.
type Attachment struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Size int64  `json:"size"`
	URL  string `json:"url"`
}

// BulletinDetail is the full record returned by bulletins/{id}.
type BulletinDetail struct {
	ID                    string       `json:"id"`
	Hrid                  string       `json:"hrid"`
	Header                string       `json:"header"`
	Description           string       `json:"description"`
	Attachment            *Attachment  `json:"attachment"`
	AdditionalAttachments []Attachment `json:"additionalAttachments"`
	PublishedDate         string       `json:"publishedDate"`
	Type                  string       `json:"type"`
	Subtype               string       `json:"subtype"`
}

// Published parses PublishedDate, keeping the offset it was published with.
func (d BulletinDetail) Published() (time.Time, error) {
	return parsePublished(d.PublishedDate)
}

// Published parses PublishedDate, keeping the offset it was published with.
func (s BulletinSummary) Published() (time.Time, error) {
	return parsePublished(s.PublishedDate)
}

func parsePublished(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: publishedDate %q: %w", ErrDecode, s, err)
	}
	return t, nil
}

// ClampLimit forces limit into the range the server accepts.
func ClampLimit(limit int) int {
	return max(MinBulletinLimit, min(limit, MaxBulletinLimit))
}

func bulletinIDsPath(limit, offset int) string {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(ClampLimit(limit)))
	q.Set("offset", strconv.Itoa(max(offset, 0)))
	return "bulletins?" + q.Encode()
}

// ListBulletinIDs returns one page of bulletin identifiers. limit is
// clamped to 1..100.
func (c *Client) ListBulletinIDs(ctx context.Context, limit, offset int) (BulletinIDs, error) {
	var ids BulletinIDs
	err := c.getJSON(ctx, bulletinIDsPath(limit, offset), &ids)
	return ids, err
}

// GetBulletinDetails returns the summaries of ids in one request.
func (c *Client) GetBulletinDetails(ctx context.Context, ids []string) (BulletinSummaries, error) {
	var out BulletinSummaries
	req, err := bulletinListRequest(ids)
	if err != nil {
		return out, err
	}
	err = c.doJSON(ctx, req, &out)
	return out, err
}

// GetBulletinDetail returns the full record of one bulletin.
func (c *Client) GetBulletinDetail(ctx context.Context, id string) (BulletinDetail, error) {
	var detail BulletinDetail
	err := c.getJSON(ctx, "bulletins/"+url.PathEscape(id), &detail)
	return detail, err
}

// DownloadAttachment streams an attachment into w.
func (c *Client) DownloadAttachment(ctx context.Context, id string, w io.Writer) (int64, error) {
	return c.GetRaw(ctx, Request{Method: http.MethodGet, Path: "attachments/" + url.PathEscape(id) + "/download"}, w)
}

// Raw request builders for tools that store the JSON verbatim.

// BulletinIDsRequest is the request behind ListBulletinIDs.
func BulletinIDsRequest(limit, offset int) Request {
	return Request{Method: http.MethodGet, Path: bulletinIDsPath(limit, offset)}
}

// BulletinDetailRequest is the request behind GetBulletinDetail.
func BulletinDetailRequest(id string) Request {
	return Request{Method: http.MethodGet, Path: "bulletins/" + url.PathEscape(id)}
}

// BulletinListRequest is the request behind GetBulletinDetails.
func BulletinListRequest(ids []string) (Request, error) {
	return bulletinListRequest(ids)
}

func bulletinListRequest(ids []string) (Request, error) {
	if ids == nil {
		ids = []string{}
	}
	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(struct {
		IDs []string `json:"ids"`
	}{ids}); err != nil {
		return Request{}, fmt.Errorf("encode ids: %w", err)
	}
	return Request{
		Method:      http.MethodPost,
		Path:        "bulletins/list",
		Body:        bytes.TrimSuffix(body.Bytes(), []byte("\n")),
		ContentType: "application/json",
	}, nil
}

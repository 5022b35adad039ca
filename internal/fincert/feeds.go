package fincert

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// FeedType names an antifraud feed.
type FeedType string

// Feed types in the order the loader fetches them.
const (
	FeedHashPassport  FeedType = "hashPassport"
	FeedHashSnils     FeedType = "hashSnils"
	FeedSwift         FeedType = "swift"
	FeedFastPayNumber FeedType = "fastPayNumber"
	FeedPhoneNumber   FeedType = "phoneNumber"
	FeedEwalletNumber FeedType = "ewalletNumber"
	FeedCardNumber    FeedType = "cardNumber"
	FeedAccountNumber FeedType = "accountNumber"
	FeedINN           FeedType = "inn"
)

var feedFileNames = map[FeedType]string{
	FeedHashPassport:  "passport_hash",
	FeedHashSnils:     "snils_hash",
	FeedSwift:         "swift",
	FeedFastPayNumber: "fastpay_number",
	FeedPhoneNumber:   "phone_number",
	FeedEwalletNumber: "ewallet_number",
	FeedCardNumber:    "card_number",
	FeedAccountNumber: "account_number",
	FeedINN:           "inn",
}

// AllFeedTypes returns every feed type in download order.
func AllFeedTypes() []FeedType {
	return []FeedType{
		FeedHashPassport, FeedHashSnils, FeedSwift, FeedFastPayNumber,
		FeedPhoneNumber, FeedEwalletNumber, FeedCardNumber, FeedAccountNumber, FeedINN,
	}
}

// ParseFeedType accepts the API name of a feed type.
func ParseFeedType(s string) (FeedType, error) {
	t := FeedType(s)
	if _, ok := feedFileNames[t]; !ok {
		return "", fmt.Errorf("unknown feed type %q", s)
	}
	return t, nil
}

// FileName is the local file the feed is stored in.
func (t FeedType) FileName() string {
	if name, ok := feedFileNames[t]; ok {
		return name + ".csv"
	}
	return string(t) + ".csv"
}

// FeedStatus is the answer of antifraud/feeds/{type}.
type FeedStatus struct {
	UploadDatetime string `json:"uploadDatetime"`
	Type           string `json:"type"`
	Version        int    `json:"version"`
}

// Uploaded parses UploadDatetime.
func (s FeedStatus) Uploaded() (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s.UploadDatetime)
}

// GetFeedStatus reports when a feed was last published.
func (c *Client) GetFeedStatus(ctx context.Context, t FeedType) (FeedStatus, error) {
	var status FeedStatus
	err := c.getJSON(ctx, "antifraud/feeds/"+url.PathEscape(string(t)), &status)
	return status, err
}

// DownloadFeed streams the CSV content of a feed into w.
func (c *Client) DownloadFeed(ctx context.Context, t FeedType, w io.Writer) (int64, error) {
	return c.GetRaw(ctx, Request{Method: http.MethodGet, Path: "antifraud/feeds/" + url.PathEscape(string(t)) + "/download"}, w)
}

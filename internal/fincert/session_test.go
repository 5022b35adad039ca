package fincert

// Session and Fetcher Tests
//
// These tests run the client against the in-process FinCERT API over mutual
// TLS. The fake clock keeps pacing and backoff instantaneous.
//
// Run these tests with:
//
//	go test ./internal/fincert/... -v

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sufield/fincert/internal/apitest"
	"github.com/sufield/fincert/internal/identity"
	"github.com/sufield/fincert/internal/tlsverify"
)

func TestOpen_LoginStoresTokenAndSendsBearer(t *testing.T) {
	srv := apitest.NewServer(t)
	srv.SetFeed("inn", "2024-07-01T13:00:12.253506+03:00", 1, []byte("inn\n7700000000\n"))

	client, _ := openTestClient(t, srv)

	assert.True(t, client.Session().Authenticated())
	assert.Equal(t, srv.Token(), client.Session().Token(), "token is the trimmed body")
	assert.Equal(t, srv.BaseURL(), client.Session().BaseURL())
	assert.NotEmpty(t, client.Session().Thumbprint())

	// Credentials are sent without HTML escaping.
	assert.Contains(t, string(srv.LastLoginBody()), `"password":"s3cret<&>"`)

	// Protected routes accept the bearer token.
	status, err := client.GetFeedStatus(context.Background(), FeedINN)
	require.NoError(t, err)
	assert.Equal(t, "inn", status.Type)
	assert.Equal(t, 1, status.Version)
	uploaded, err := status.Uploaded()
	require.NoError(t, err)
	assert.Equal(t, 13, uploaded.Hour())
	assert.Equal(t, "fincert/test", srv.LastUserAgent())
}

func TestOpen_EmptyCredentialsSendNothing(t *testing.T) {
	srv := apitest.NewServer(t)
	opts := testOptions(t, srv, newFakeClock())
	opts.Credentials.Password = ""

	_, err := Open(context.Background(), opts)
	require.ErrorIs(t, err, ErrAuth)
	assert.Equal(t, 0, srv.TotalRequests())
}

func TestOpen_WrongPassword(t *testing.T) {
	srv := apitest.NewServer(t)
	opts := testOptions(t, srv, newFakeClock())
	opts.Credentials.Password = "wrong"

	_, err := Open(context.Background(), opts)
	require.ErrorIs(t, err, ErrAuth)
	assert.ErrorIs(t, err, ErrUnexpectedStatus)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusUnauthorized, statusErr.Code)
	assert.Equal(t, 1, srv.Requests(http.MethodPost, "/account/login"))
}

func TestOpen_LoginRetriesUntilReady(t *testing.T) {
	srv := apitest.NewServer(t)
	srv.Script(http.MethodPost, "/account/login", http.StatusServiceUnavailable, http.StatusTooManyRequests)

	client, clock := openTestClient(t, srv)

	assert.True(t, client.Session().Authenticated())
	assert.Equal(t, 3, srv.Requests(http.MethodPost, "/account/login"))
	assert.Contains(t, clock.Sleeps(), 2*time.Second)
	assert.Contains(t, clock.Sleeps(), 4*time.Second)
}

func TestOpen_ServerRejectedByPolicy(t *testing.T) {
	srv := apitest.NewServer(t)

	t.Run("untrusted chain", func(t *testing.T) {
		opts := testOptions(t, srv, newFakeClock())
		opts.Verifier.Roots = apitest.NewCA(t, "other CA").Pool()

		_, err := Open(context.Background(), opts)
		require.ErrorIs(t, err, ErrAuth)
		assert.ErrorIs(t, err, ErrTLSRejected)
		assert.False(t, errors.Is(err, ErrTransport), "rejections are not plain transport errors")
	})

	t.Run("pin mismatch with valid chain", func(t *testing.T) {
		opts := testOptions(t, srv, newFakeClock())
		opts.Verifier.Policy = tlsverify.Policy{ValidateChain: true, PinThumbprint: true, Thumbprint: "00FF"}

		_, err := Open(context.Background(), opts)
		assert.ErrorIs(t, err, ErrTLSRejected)
	})

	t.Run("pin match without chain validation", func(t *testing.T) {
		opts := testOptions(t, srv, newFakeClock())
		opts.Verifier.Roots = apitest.NewCA(t, "other CA").Pool()
		opts.Verifier.Policy = tlsverify.Policy{PinThumbprint: true, Thumbprint: identity.Thumbprint(srv.ServerCert.Cert)}

		client, err := Open(context.Background(), opts)
		require.NoError(t, err)
		assert.NoError(t, client.Close(context.Background()))
	})
}

func TestOpen_MissingCertificate(t *testing.T) {
	srv := apitest.NewServer(t)
	opts := testOptions(t, srv, newFakeClock())
	opts.Certificate = nil

	_, err := Open(context.Background(), opts)
	require.ErrorIs(t, err, ErrAuth)
	assert.Equal(t, 0, srv.TotalRequests())
}

func TestClose_ClearsToken(t *testing.T) {
	srv := apitest.NewServer(t)
	client, err := Open(context.Background(), testOptions(t, srv, newFakeClock()))
	require.NoError(t, err)

	require.NoError(t, client.Close(context.Background()))
	assert.False(t, client.Session().Authenticated())
	assert.Empty(t, srv.Token(), "server saw the logout")
	assert.Equal(t, 1, srv.Requests(http.MethodPost, "/account/logout"))

	// A second Close is a no-op.
	require.NoError(t, client.Close(context.Background()))
	assert.Equal(t, 1, srv.Requests(http.MethodPost, "/account/logout"))
}

func TestClose_ClearsTokenWhenLogoutFails(t *testing.T) {
	srv := apitest.NewServer(t)
	client, err := Open(context.Background(), testOptions(t, srv, newFakeClock()))
	require.NoError(t, err)
	srv.Script(http.MethodPost, "/account/logout", http.StatusForbidden)

	err = client.Close(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnexpectedStatus)
	assert.False(t, client.Session().Authenticated())
}

func TestClient_ClassificationAgainstServer(t *testing.T) {
	srv := apitest.NewServer(t)
	srv.AddBulletin(apitest.Bulletin{ID: "A", Hrid: "FinCERT-20240701-01", PublishedDate: "2024-07-01T10:00:00+03:00", Type: "Bulletin"})
	client, _ := openTestClient(t, srv)

	for _, code := range []int{500, 502, 503, 408, 429, 204} {
		srv.ResetCounts()
		srv.Script(http.MethodGet, "/bulletins/A", code)

		detail, err := client.GetBulletinDetail(context.Background(), "A")
		require.NoError(t, err, "status %d", code)
		assert.Equal(t, "FinCERT-20240701-01", detail.Hrid)
		assert.Equal(t, 2, srv.Requests(http.MethodGet, "/bulletins/A"), "status %d is retried once", code)
	}

	for _, code := range []int{400, 401, 403, 404} {
		srv.ResetCounts()
		srv.Script(http.MethodGet, "/bulletins/A", code)

		_, err := client.GetBulletinDetail(context.Background(), "A")
		require.ErrorIs(t, err, ErrUnexpectedStatus, "status %d", code)
		assert.Equal(t, 1, srv.Requests(http.MethodGet, "/bulletins/A"), "status %d is not retried", code)
	}
}

func TestClient_Bulletins(t *testing.T) {
	srv := apitest.NewServer(t)
	srv.AddBulletin(apitest.Bulletin{
		ID: "A", Hrid: "FinCERT-20240701-01", Header: "Header A",
		PublishedDate: "2024-07-01T10:00:00+03:00", Type: "Bulletin", Subtype: "Info",
		Attachment:            &apitest.Attachment{ID: "att-1", Name: "report.pdf", Size: 4},
		AdditionalAttachments: []apitest.Attachment{{ID: "att-2", Name: "iocs.csv", Size: 3}},
	})
	srv.AddBulletin(apitest.Bulletin{ID: "B", Hrid: "FinCERT-20240630-02", PublishedDate: "2024-06-30T09:15:00+03:00", Type: "Bulletin"})
	srv.AddAttachment("att-1", []byte("%PDF"))
	srv.SetTotal(50)
	client, _ := openTestClient(t, srv)
	ctx := context.Background()

	ids, err := client.ListBulletinIDs(ctx, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 50, ids.Total)
	assert.Equal(t, []string{"A", "B"}, ids.IDs())

	// Out-of-range limits are clamped instead of rejected by the server.
	ids, err = client.ListBulletinIDs(ctx, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, ids.IDs())
	_, err = client.ListBulletinIDs(ctx, 1000, 0)
	require.NoError(t, err)

	summaries, err := client.GetBulletinDetails(ctx, []string{"A", "B"})
	require.NoError(t, err)
	require.Len(t, summaries.Items, 2)
	assert.Equal(t, "att-1", summaries.Items[0].AttachmentID)
	assert.Empty(t, summaries.Items[1].AttachmentID)

	detail, err := client.GetBulletinDetail(ctx, "A")
	require.NoError(t, err)
	require.NotNil(t, detail.Attachment)
	assert.Equal(t, "report.pdf", detail.Attachment.Name)
	require.Len(t, detail.AdditionalAttachments, 1)
	published, err := detail.Published()
	require.NoError(t, err)
	assert.Equal(t, "2024-07-01 1000", published.Format("2006-01-02 1504"))

	var buf bytes.Buffer
	n, err := client.DownloadAttachment(ctx, "att-1", &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	assert.Equal(t, "%PDF", buf.String())
}

func TestClient_Feeds(t *testing.T) {
	srv := apitest.NewServer(t)
	srv.SetFeed("cardNumber", "2024-07-01T13:00:12+03:00", 3, []byte("card\n4111\n"))
	client, _ := openTestClient(t, srv)

	var buf bytes.Buffer
	n, err := client.DownloadFeed(context.Background(), FeedCardNumber, &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(10), n)
	assert.Equal(t, "card\n4111\n", buf.String())

	_, err = client.GetFeedStatus(context.Background(), FeedSwift)
	assert.ErrorIs(t, err, ErrUnexpectedStatus, "unknown feed is a 404")
}

type failingWriter struct{ err error }

func (f failingWriter) Write([]byte) (int, error) { return 0, f.err }

func TestClient_GetRawReportsWriterErrors(t *testing.T) {
	srv := apitest.NewServer(t)
	srv.AddAttachment("att-1", []byte("data"))
	client, _ := openTestClient(t, srv)

	diskFull := errors.New("no space left on device")
	_, err := client.DownloadAttachment(context.Background(), "att-1", failingWriter{err: diskFull})
	require.ErrorIs(t, err, diskFull)
	assert.False(t, errors.Is(err, ErrTransport))
}

func TestFeedTypes(t *testing.T) {
	types := AllFeedTypes()
	require.Len(t, types, 9)
	assert.Equal(t, FeedHashPassport, types[0])
	assert.Equal(t, FeedINN, types[8])

	want := map[FeedType]string{
		FeedHashPassport:  "passport_hash.csv",
		FeedHashSnils:     "snils_hash.csv",
		FeedSwift:         "swift.csv",
		FeedFastPayNumber: "fastpay_number.csv",
		FeedPhoneNumber:   "phone_number.csv",
		FeedEwalletNumber: "ewallet_number.csv",
		FeedCardNumber:    "card_number.csv",
		FeedAccountNumber: "account_number.csv",
		FeedINN:           "inn.csv",
	}
	for ft, name := range want {
		assert.Equal(t, name, ft.FileName())
	}

	parsed, err := ParseFeedType("phoneNumber")
	require.NoError(t, err)
	assert.Equal(t, FeedPhoneNumber, parsed)
	_, err = ParseFeedType("phone")
	assert.Error(t, err)
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, 1, ClampLimit(-5))
	assert.Equal(t, 1, ClampLimit(0))
	assert.Equal(t, 42, ClampLimit(42))
	assert.Equal(t, 100, ClampLimit(101))
}

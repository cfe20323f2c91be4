// Package evolve implements the ResultSource and ArtifactFetcher ports
// against the Evolve portal over an authenticated HTTP session. One Client
// holds one session (cookie jar); report downloads go through the same
// session because the document store requires the login context.
package evolve

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gregjones/httpcache"

	"github.com/ericfisherdev/evolvesync/internal/domain/model"
	"github.com/ericfisherdev/evolvesync/internal/domain/port/driven"
)

// Compile-time interface satisfaction checks.
var (
	_ driven.ResultSource    = (*Client)(nil)
	_ driven.ArtifactFetcher = (*Client)(nil)
	_ driven.SourceOpener    = (*Opener)(nil)
)

const (
	loginPath   = "/Login"
	listingPath = "/TestAdministration/Results/Grid"
	reportPath  = "/TestAdministration/Results/CandidateReport"
)

// loginFormMarker appears in the login page markup. A login POST that
// answers with the form again was rejected.
const loginFormMarker = `id="UserName"`

// listingRow is the wire shape of one row in the portal's results grid feed.
type listingRow struct {
	Keycode      string `json:"keycode"`
	CandidateRef string `json:"candidateRef"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	Completed    string `json:"completed"`
	Subject      string `json:"subject"`
	TestName     string `json:"testName"`
	Result       string `json:"result"`
	Percent      string `json:"percent"`
	Duration     string `json:"duration"`
	CentreName   string `json:"centreName"`
}

// Client implements the ResultSource and ArtifactFetcher ports for one
// portal session.
type Client struct {
	http    *http.Client
	baseURL *url.URL
	timeout time.Duration
	now     func() time.Time

	focused    *model.Record
	reportHTML string
}

// NewClient creates a portal client with the following transport stack:
//  1. httpcache (conditional request caching for listing reloads)
//  2. cookie jar (session continuity across listing, report and download)
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	httpClient := &http.Client{
		Transport: httpcache.NewMemoryCacheTransport(),
		Jar:       jar,
		Timeout:   timeout,
	}
	return NewClientWithHTTPClient(httpClient, baseURL, timeout)
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and
// base URL. This constructor is intended for testing, allowing injection of
// an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	return &Client{
		http:    httpClient,
		baseURL: u,
		timeout: timeout,
		now:     time.Now,
	}, nil
}

func (c *Client) endpoint(path string) string {
	u := *c.baseURL
	u.Path = strings.TrimSuffix(u.Path, "/") + path
	return u.String()
}

// Login submits the portal login form and waits for the results listing to
// become reachable. Returns driven.ErrAuthFailed when the portal rejects
// the credentials.
func (c *Client) Login(ctx context.Context, username, password string) error {
	form := url.Values{
		"UserName": {username},
		"Password": {password},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(loginPath), strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("submit login: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read login response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return driven.ErrAuthFailed
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("login: unexpected status %d", resp.StatusCode)
	case strings.Contains(string(body), loginFormMarker):
		// The portal re-rendered the login form instead of the dashboard.
		return driven.ErrAuthFailed
	}

	return c.awaitListingReady(ctx)
}

// ListResults fetches the results grid and maps each row to a Record,
// stamping Report URL with the scrape time.
func (c *Client) ListResults(ctx context.Context) ([]model.Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(listingPath), nil)
	if err != nil {
		return nil, fmt.Errorf("build listing request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch listing: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("listing: unexpected status %d", resp.StatusCode)
	}

	var rows []listingRow
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode listing: %w", err)
	}

	scrapedAt := c.now().Format("2006-01-02 15:04:05")
	records := make([]model.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, model.Record{
			Keycode:      strings.TrimSpace(row.Keycode),
			CandidateRef: strings.TrimSpace(row.CandidateRef),
			FirstName:    strings.TrimSpace(row.FirstName),
			LastName:     strings.TrimSpace(row.LastName),
			Completed:    strings.TrimSpace(row.Completed),
			Subject:      strings.TrimSpace(row.Subject),
			TestName:     strings.TrimSpace(row.TestName),
			Result:       strings.TrimSpace(row.Result),
			Percent:      strings.TrimSpace(row.Percent),
			Duration:     strings.TrimSpace(row.Duration),
			CentreName:   strings.TrimSpace(row.CentreName),
			ReportURL:    scrapedAt,
		})
	}
	return records, nil
}

// FocusRow selects the listing row matching the record's identity fields.
// The listing is re-fetched so the match always reflects the portal's
// current state. Returns driven.ErrRowNotFound when the row is gone.
func (c *Client) FocusRow(ctx context.Context, rec model.Record) error {
	rows, err := c.ListResults(ctx)
	if err != nil {
		return err
	}

	want := rec.Identity()
	for i := range rows {
		if rows[i].Identity() == want {
			c.focused = &rows[i]
			return nil
		}
	}
	c.focused = nil
	return driven.ErrRowNotFound
}

// OpenReportView opens the candidate report for the focused row and
// captures its HTML.
func (c *Client) OpenReportView(ctx context.Context) error {
	if c.focused == nil {
		return fmt.Errorf("open report view: no row focused")
	}

	u, err := url.Parse(c.endpoint(reportPath))
	if err != nil {
		return fmt.Errorf("build report URL: %w", err)
	}
	q := u.Query()
	q.Set("keycode", c.focused.Keycode)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("build report request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("open report view: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return driven.ErrRowNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("report view: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read report view: %w", err)
	}
	c.reportHTML = string(body)
	return nil
}

// CurrentViewHTML returns the HTML of the report view opened last.
func (c *Client) CurrentViewHTML(_ context.Context) (string, error) {
	if c.reportHTML == "" {
		return "", fmt.Errorf("no report view open")
	}
	return c.reportHTML, nil
}

// ReturnToListing drops the focused row and report view and waits for the
// listing to be reachable again.
func (c *Client) ReturnToListing(ctx context.Context) error {
	c.focused = nil
	c.reportHTML = ""
	return c.awaitListingReady(ctx)
}

// Fetch downloads artifact bytes through the session. A non-2xx status is
// reported through the status value, not as an error.
func (c *Client) Fetch(ctx context.Context, rawURL string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("build artifact request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("fetch artifact: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read artifact: %w", err)
	}
	return resp.StatusCode, body, nil
}

// Close tears down the session. The portal holds no server-side resources
// worth an explicit logout; dropping the jar is enough.
func (c *Client) Close() error {
	c.focused = nil
	c.reportHTML = ""
	return nil
}

// awaitListingReady polls the listing endpoint until it answers 200,
// backing off between probes, bounded by the client timeout. Expiry maps
// to the single driven.ErrTimeout kind.
func (c *Client) awaitListingReady(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	b.MaxElapsedTime = c.timeout

	probe := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(listingPath), nil)
		if err != nil {
			return err
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("listing not ready: status %d", resp.StatusCode)
		}
		return nil
	}

	if err := backoff.Retry(probe, backoff.WithContext(b, ctx)); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return driven.ErrTimeout
	}
	return nil
}

// Opener builds one fresh session per account.
type Opener struct {
	baseURL string
	timeout time.Duration
}

// NewOpener creates a SourceOpener for the portal at baseURL.
func NewOpener(baseURL string, timeout time.Duration) *Opener {
	return &Opener{baseURL: baseURL, timeout: timeout}
}

// OpenSource opens a new session. The returned fetcher is the same client,
// so downloads share the session cookies.
func (o *Opener) OpenSource(_ context.Context) (driven.ResultSource, driven.ArtifactFetcher, error) {
	c, err := NewClient(o.baseURL, o.timeout)
	if err != nil {
		return nil, nil, err
	}
	return c, c, nil
}

package feed

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL = "https://events.grinnell.edu/live/json/events/response_fields/all"
	DefaultTimeout = 20 * time.Second

	maxFeedBytes = 64 << 20
)

// Client pulls one page of the LiveWhale JSON feed.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Logger  *zap.Logger
}

// NewClient returns a client with a bounded timeout. Zero values take the
// defaults.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: timeout},
		Logger:  logger,
	}
}

type envelope struct {
	Data *[]json.RawMessage `json:"data"`
}

// URL returns the endpoint for a page size; pageSize <= 0 asks for the
// whole feed unpaginated.
func (c *Client) URL(pageSize int) string {
	page := "false"
	if pageSize > 0 {
		page = strconv.Itoa(pageSize)
	}
	return c.BaseURL + "/paginate/" + page
}

// Fetch returns the raw records of one feed page. Any transport failure,
// non-200 status or malformed envelope is returned as an error and should
// abort the run.
func (c *Client) Fetch(ctx context.Context, pageSize int) ([]json.RawMessage, error) {
	url := c.URL(pageSize)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build feed request")
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "fetch feed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, errors.Errorf("fetch feed: unexpected status %s", resp.Status)
	}

	var env envelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxFeedBytes)).Decode(&env); err != nil {
		return nil, errors.Wrap(err, "decode feed")
	}
	if env.Data == nil {
		return nil, errors.New("decode feed: missing data array")
	}

	c.Logger.Info("feed fetched",
		zap.String("url", url),
		zap.Int("records", len(*env.Data)),
		zap.Duration("took", time.Since(start)),
	)
	return *env.Data, nil
}

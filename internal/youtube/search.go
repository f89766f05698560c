package youtube

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/AlexGustafsson/metube/internal/buffer"
	"github.com/AlexGustafsson/metube/internal/transport"
)

var (
	ErrTooManyRequests  = errors.New("too many requests")
	ErrUnexpectedStatus = errors.New("unexpected status")
)

const (
	DefaultHost          = "www.youtube.com"
	DefaultClientVersion = "2.20250222.10.00"
	DefaultUserAgent     = "Mozilla/5.0 (X11; Linux x86_64; rv:135.0) Gecko/20100101 Firefox/135.0"

	continuationPath = "/youtubei/v1/search"
)

// Sender sends a single request and returns the complete response.
type Sender interface {
	Do(ctx context.Context, request *transport.Request) (*transport.Response, error)
}

type SearchClientOptions struct {
	Host          string
	UserAgent     string
	ClientVersion string
	// Port overrides the port used for all hosts. Mainly useful for tests.
	Port string

	VideoThumbnailHost   string
	ChannelThumbnailHost string
}

type SearchClient struct {
	sender  Sender
	options SearchClientOptions
}

func NewSearchClient(sender Sender, options *SearchClientOptions) *SearchClient {
	var resolved SearchClientOptions
	if options != nil {
		resolved = *options
	}

	if resolved.Host == "" {
		resolved.Host = DefaultHost
	}
	if resolved.UserAgent == "" {
		resolved.UserAgent = DefaultUserAgent
	}
	if resolved.ClientVersion == "" {
		resolved.ClientVersion = DefaultClientVersion
	}
	if resolved.VideoThumbnailHost == "" {
		resolved.VideoThumbnailHost = VideoThumbnailHost
	}
	if resolved.ChannelThumbnailHost == "" {
		resolved.ChannelThumbnailHost = ChannelThumbnailHost
	}

	return &SearchClient{
		sender:  sender,
		options: resolved,
	}
}

// Search fetches the first page of results for query.
func (c *SearchClient) Search(ctx context.Context, query Query) (*Page, error) {
	request := transport.NewGetRequest(c.options.Host, query.Path(), c.options.UserAgent)

	slog.Debug("Performing search request", slog.String("query", query.Text), slog.String("path", request.Path))
	body, err := c.send(ctx, request)
	if err != nil {
		return nil, err
	}

	page, err := ParseInitialPage(body, query.AllowShorts)
	if err != nil {
		return nil, err
	}

	slog.Debug("Successfully performed search", slog.Int("results", len(page.Results)), slog.Int("dropped", page.Dropped))
	return page, nil
}

// Continue fetches the page identified by a continuation token.
func (c *SearchClient) Continue(ctx context.Context, token string, allowShorts bool) (*Page, error) {
	payload, err := ContinuationBody(c.options.ClientVersion, token)
	if err != nil {
		return nil, err
	}

	request := transport.NewPostRequest(c.options.Host, continuationPath, c.options.UserAgent, payload)

	slog.Debug("Performing continuation request")
	body, err := c.send(ctx, request)
	if err != nil {
		return nil, err
	}

	page, err := ParseContinuationPage(body, allowShorts)
	if err != nil {
		return nil, err
	}

	slog.Debug("Successfully performed continuation", slog.Int("results", len(page.Results)), slog.Int("dropped", page.Dropped))
	return page, nil
}

// Thumbnail fetches the raw thumbnail image of result.
func (c *SearchClient) Thumbnail(ctx context.Context, result Result) ([]byte, error) {
	if result.ThumbnailPath == "" {
		return nil, fmt.Errorf("%s %s has no thumbnail", result.Kind, result.ID)
	}

	host := c.options.VideoThumbnailHost
	if result.Kind == KindChannel {
		host = c.options.ChannelThumbnailHost
	}

	request := transport.NewGetRequest(host, result.ThumbnailPath, c.options.UserAgent)
	body, err := c.send(ctx, request)
	if err != nil {
		return nil, err
	}

	if !body.Ready() {
		return nil, ErrEmptyResponse
	}
	return body.Bytes(), nil
}

func (c *SearchClient) send(ctx context.Context, request *transport.Request) (*buffer.Buffer, error) {
	if c.options.Port != "" {
		request.Port = c.options.Port
	}

	res, err := c.sender.Do(ctx, request)
	if err != nil {
		return nil, err
	}

	// YouTube has started to redirect users to a /sorry page when some rate
	// is reached
	if res.StatusCode == 429 {
		return nil, ErrTooManyRequests
	} else if res.StatusCode >= 300 && res.StatusCode < 400 {
		location, _ := res.HeaderValue("Location")
		if strings.Contains(location, "/sorry") {
			return nil, ErrTooManyRequests
		}
		return nil, fmt.Errorf("%w: %d to %q", ErrUnexpectedStatus, res.StatusCode, location)
	} else if res.StatusCode != 200 {
		slog.Error("Failed to perform request", slog.String("host", request.Host), slog.Int("status", res.StatusCode))
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, res.StatusCode)
	}

	return res.Body, nil
}

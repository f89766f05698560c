package transport

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/AlexGustafsson/metube/internal/buffer"
	"github.com/AlexGustafsson/metube/internal/metrics"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

var (
	ErrResolveFailed      = errors.New("address resolution failed")
	ErrConnectFailed      = errors.New("connect failed")
	ErrTLSHandshakeFailed = errors.New("tls handshake failed")
	ErrWriteFailed        = errors.New("write failed")
	ErrMalformedHeader    = errors.New("malformed header")
	ErrChunkDecodeFailed  = errors.New("chunk decode failed")
	ErrTruncatedBody      = errors.New("truncated body")
	ErrAllocationFailed   = buffer.ErrAllocationFailed
)

const (
	DefaultMaxHeaderBytes    = 32 * 1024
	DefaultResolverCacheSize = 64
)

// Kind returns a short name for the failure kind of err, suitable as a
// metric label.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrResolveFailed):
		return "resolve"
	case errors.Is(err, ErrConnectFailed):
		return "connect"
	case errors.Is(err, ErrTLSHandshakeFailed):
		return "tls_handshake"
	case errors.Is(err, ErrWriteFailed):
		return "write"
	case errors.Is(err, ErrMalformedHeader):
		return "malformed_header"
	case errors.Is(err, ErrChunkDecodeFailed):
		return "chunk_decode"
	case errors.Is(err, ErrTruncatedBody):
		return "truncated_body"
	case errors.Is(err, ErrAllocationFailed):
		return "allocation"
	default:
		return "other"
	}
}

// Resolver resolves host names to addresses.
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// DialFunc opens a stream connection to address.
type DialFunc func(ctx context.Context, network string, address string) (net.Conn, error)

type Options struct {
	// TLSConfig is shared by all connections. ServerName defaults to the
	// request's host.
	TLSConfig *tls.Config
	Resolver  Resolver
	Dial      DialFunc

	// MaxHeaderBytes bounds the size of the response header block.
	MaxHeaderBytes int
	// MaxBodyBytes bounds the size of response bodies. Zero means
	// buffer.MaxSize.
	MaxBodyBytes int
	// ResolverCacheSize is the number of hosts whose addresses are kept.
	ResolverCacheSize int

	// IOTimeout is applied as a deadline to the entire exchange once
	// connected. Zero means requests may block forever.
	IOTimeout time.Duration

	Metrics *metrics.Metrics
}

// Client sends HTTP/1.1 requests over TLS.
type Client struct {
	tlsConfig      *tls.Config
	resolver       Resolver
	dial           DialFunc
	maxHeaderBytes int
	maxBodyBytes   int
	ioTimeout      time.Duration

	addresses *lru.Cache[string, []string]
	lookups   singleflight.Group

	metrics *metrics.Metrics
}

func NewClient(options *Options) (*Client, error) {
	if options == nil {
		options = &Options{}
	}

	tlsConfig := options.TLSConfig
	if tlsConfig == nil {
		tlsConfig = &tls.Config{
			MinVersion:         tls.VersionTLS12,
			ClientSessionCache: tls.NewLRUClientSessionCache(0),
		}
	}

	resolver := options.Resolver
	if resolver == nil {
		resolver = net.DefaultResolver
	}

	dial := options.Dial
	if dial == nil {
		dialer := &net.Dialer{}
		dial = dialer.DialContext
	}

	maxHeaderBytes := options.MaxHeaderBytes
	if maxHeaderBytes <= 0 {
		maxHeaderBytes = DefaultMaxHeaderBytes
	}

	cacheSize := options.ResolverCacheSize
	if cacheSize <= 0 {
		cacheSize = DefaultResolverCacheSize
	}
	addresses, err := lru.New[string, []string](cacheSize)
	if err != nil {
		return nil, err
	}

	m := options.Metrics
	if m == nil {
		m = metrics.New()
	}

	return &Client{
		tlsConfig:      tlsConfig,
		resolver:       resolver,
		dial:           dial,
		maxHeaderBytes: maxHeaderBytes,
		maxBodyBytes:   options.MaxBodyBytes,
		ioTimeout:      options.IOTimeout,
		addresses:      addresses,
		metrics:        m,
	}, nil
}

// Send sends the request and returns the response body. A response without a
// body yields an empty, non-nil buffer.
func (c *Client) Send(ctx context.Context, request *Request) (*buffer.Buffer, error) {
	res, err := c.Do(ctx, request)
	if err != nil {
		return nil, err
	}
	return res.Body, nil
}

// Do sends the request and reads the entire response.
func (c *Client) Do(ctx context.Context, request *Request) (*Response, error) {
	c.metrics.TransportRequests.WithLabelValues(request.Method).Inc()

	res, err := c.do(ctx, request)
	if err != nil {
		c.metrics.TransportErrors.WithLabelValues(Kind(err)).Inc()
		slog.Debug("Request failed", slog.String("host", request.Host), slog.String("path", request.Path), slog.Any("error", err))
		return nil, err
	}

	c.metrics.TransportBytes.Add(float64(res.Body.Len()))
	slog.Debug("Request completed", slog.String("host", request.Host), slog.Int("status", res.StatusCode), slog.Int("bytes", res.Body.Len()))
	return res, nil
}

func (c *Client) do(ctx context.Context, request *Request) (*Response, error) {
	conn, err := c.connect(ctx, request)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if c.ioTimeout > 0 {
		conn.SetDeadline(time.Now().Add(c.ioTimeout))
	}

	payload := request.HeaderBlock()
	if len(request.Body) > 0 {
		payload = append(payload, request.Body...)
	}
	if _, err := conn.Write(payload); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}

	reader := bufio.NewReaderSize(conn, c.maxHeaderBytes)
	header, err := readHeader(reader, c.maxHeaderBytes)
	if err != nil {
		return nil, err
	}

	body := buffer.New(0, c.maxBodyBytes)
	if err := readBody(reader, header, body); err != nil {
		return nil, err
	}

	return &Response{
		StatusCode: parseStatusCode(header),
		Header:     header,
		Body:       body,
	}, nil
}

// connect dials the request's host and performs the TLS handshake. The
// returned connection owns the underlying socket.
func (c *Client) connect(ctx context.Context, request *Request) (*tls.Conn, error) {
	addresses, err := c.resolve(ctx, request.Host)
	if err != nil {
		return nil, err
	}

	port := request.Port
	if port == "" {
		port = DefaultPort
	}

	var raw net.Conn
	var dialErr error
	for _, address := range addresses {
		raw, dialErr = c.dial(ctx, "tcp", net.JoinHostPort(address, port))
		if dialErr == nil {
			break
		}
	}
	if raw == nil {
		// Forget the addresses so that the next attempt resolves the host again
		c.addresses.Remove(request.Host)
		return nil, fmt.Errorf("%w: %s: %w", ErrConnectFailed, request.Address(), dialErr)
	}

	config := c.tlsConfig.Clone()
	if config.ServerName == "" {
		config.ServerName = request.Host
	}

	conn := tls.Client(raw, config)
	if err := conn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: %w", ErrTLSHandshakeFailed, err)
	}

	return conn, nil
}

// resolve returns the addresses of host. Addresses are cached for the
// lifetime of the client and concurrent lookups of the same host are
// coalesced.
func (c *Client) resolve(ctx context.Context, host string) ([]string, error) {
	if addresses, ok := c.addresses.Get(host); ok {
		return addresses, nil
	}

	value, err, _ := c.lookups.Do(host, func() (any, error) {
		c.metrics.ResolverLookups.Inc()
		addresses, err := c.resolver.LookupHost(ctx, host)
		if err != nil {
			return nil, err
		}
		if len(addresses) == 0 {
			return nil, fmt.Errorf("no addresses")
		}
		c.addresses.Add(host, addresses)
		return addresses, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrResolveFailed, host, err)
	}

	return value.([]string), nil
}

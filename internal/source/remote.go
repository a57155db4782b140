package source

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/gridwatch/sentinel/internal/model"
)

// HTTPOptions configures an HTTP source.
type HTTPOptions struct {
	UserAgent string
	Timeout   time.Duration
	Limiter   *rate.Limiter
}

// HTTPSource fetches a batch of data points from an HTTP endpoint. A rate
// limiter keeps repeated polling cycles polite toward the upstream host.
type HTTPSource struct {
	name    string
	url     string
	client  *http.Client
	opts    HTTPOptions
	limiter *rate.Limiter
}

// NewHTTP creates an HTTP source for the given URL.
func NewHTTP(name, rawURL string, opts HTTPOptions) *HTTPSource {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "sentinel/1.0"
	}
	limiter := opts.Limiter
	if limiter == nil {
		limiter = rate.NewLimiter(5, 5)
	}
	return &HTTPSource{
		name:    name,
		url:     rawURL,
		client:  &http.Client{Timeout: opts.Timeout},
		opts:    opts,
		limiter: limiter,
	}
}

func (s *HTTPSource) Name() string { return s.name }

func (s *HTTPSource) Fetch(ctx context.Context) ([]model.DataPoint, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "source: rate limiter wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, eris.Wrapf(err, "source %s: create request", s.name)
	}
	req.Header.Set("User-Agent", s.opts.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "source %s: fetch %s", s.name, s.url)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("source %s: unexpected status %d from %s", s.name, resp.StatusCode, s.url)
	}

	u, _ := url.Parse(s.url)
	return decodeByExtension(ctx, resp.Body, u.Path)
}

// FTPOptions configures an FTP source.
type FTPOptions struct {
	Timeout time.Duration
	User    string
	Pass    string
}

// FTPSource retrieves a batch file over FTP on each fetch.
type FTPSource struct {
	name string
	url  string
	opts FTPOptions
}

// NewFTP creates an FTP source. Anonymous login is used unless credentials
// are set.
func NewFTP(name, rawURL string, opts FTPOptions) *FTPSource {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.User == "" {
		opts.User = "anonymous"
		opts.Pass = "anonymous@"
	}
	return &FTPSource{name: name, url: rawURL, opts: opts}
}

func (s *FTPSource) Name() string { return s.name }

func (s *FTPSource) Fetch(ctx context.Context) ([]model.DataPoint, error) {
	host, path, err := parseFTPURL(s.url)
	if err != nil {
		return nil, err
	}

	zap.L().Debug("source: ftp connecting",
		zap.String("source", s.name),
		zap.String("host", host),
		zap.String("path", path),
	)

	conn, err := ftp.Dial(host, ftp.DialWithTimeout(s.opts.Timeout), ftp.DialWithContext(ctx))
	if err != nil {
		return nil, eris.Wrapf(err, "source %s: ftp dial", s.name)
	}
	defer conn.Quit() //nolint:errcheck

	if err := conn.Login(s.opts.User, s.opts.Pass); err != nil {
		return nil, eris.Wrapf(err, "source %s: ftp login", s.name)
	}

	resp, err := conn.Retr(path)
	if err != nil {
		return nil, eris.Wrapf(err, "source %s: ftp retrieve %s", s.name, path)
	}
	defer resp.Close() //nolint:errcheck

	return decodeByExtension(ctx, io.Reader(resp), path)
}

// parseFTPURL extracts host (with port) and path from an FTP URL.
func parseFTPURL(rawURL string) (host string, path string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", eris.Wrap(err, "source: parse ftp url")
	}
	if u.Scheme != "ftp" {
		return "", "", eris.Errorf("source: expected ftp scheme, got %q", u.Scheme)
	}

	host = u.Host
	if _, _, splitErr := net.SplitHostPort(host); splitErr != nil {
		host = net.JoinHostPort(host, "21")
	}

	path = u.Path
	if path == "" {
		return "", "", eris.New("source: empty path in ftp url")
	}

	return host, path, nil
}

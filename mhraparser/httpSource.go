package mhraparser

import (
	"context"
	"fmt"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"
	"golang.org/x/text/encoding/charmap"

	"github.com/giygas/mhra-extractor/interfaces"
	"github.com/giygas/mhra-extractor/logging"
)

// DefaultUserAgent is sent with every request.
const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// HTTPSourceOptions configures an HTTPSource.
type HTTPSourceOptions struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
	// Headless only matters to browser-backed sources. The HTTP source always
	// returns the server-rendered page.
	Headless bool
}

// HTTPSource fetches pages with a plain HTTP client. Redirects are only followed
// within the source host and cookies persist for the whole run.
type HTTPSource struct {
	client    *resty.Client
	baseURL   *url.URL
	idcounter atomic.Uint64
}

var _ interfaces.PageSource = (*HTTPSource)(nil)

type requestIDKey struct{}

// NewHTTPSource builds the resty client for opts.BaseURL.
func NewHTTPSource(opts HTTPSourceOptions) (*HTTPSource, error) {
	baseURL, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", opts.BaseURL, err)
	}
	if baseURL.Host == "" {
		return nil, fmt.Errorf("invalid base url %q: missing host", opts.BaseURL)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}

	client := resty.New()
	client.SetCookieJar(jar)
	client.SetHeader("user-agent", userAgent)
	client.SetHeader("accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	client.SetHeader("accept-language", "en-GB,en;q=0.9")
	client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(baseURL.Hostname()))
	client.SetTimeout(timeout)

	s := &HTTPSource{client: client, baseURL: baseURL}
	client.OnBeforeRequest(s.onBeforeRequest)
	client.OnAfterResponse(s.onAfterResponse)

	if !opts.Headless {
		logging.Debug("Headed mode requested, the HTTP page source has no browser window to show")
	}
	return s, nil
}

func (s *HTTPSource) onBeforeRequest(_ *resty.Client, req *resty.Request) error {
	id := strconv.FormatUint(s.idcounter.Add(1), 10)
	ctx := context.WithValue(req.Context(), requestIDKey{}, id)
	req.SetContext(ctx)
	logging.Debug("start request", "method", req.Method, "url", req.URL, "message_id", id)
	return nil
}

func (s *HTTPSource) onAfterResponse(_ *resty.Client, res *resty.Response) error {
	id, _ := res.Request.Context().Value(requestIDKey{}).(string)
	logging.Debug("request done",
		"method", res.Request.Method,
		"url", res.Request.URL,
		"status", res.StatusCode(),
		"bytes", len(res.Body()),
		"elapsed", res.Time(),
		"message_id", id,
	)
	return nil
}

// Fetch GETs target.URL, or POSTs target.Form to it. Any status >= 400 is
// returned as a *StatusError and a body that is not valid UTF-8 is decoded
// from Windows-1252.
func (s *HTTPSource) Fetch(ctx context.Context, target interfaces.Target) ([]byte, error) {
	req := s.client.R().SetContext(ctx)
	var (
		res *resty.Response
		err error
	)
	if target.Form != nil {
		res, err = req.SetFormDataFromValues(target.Form).Post(target.URL)
	} else {
		res, err = req.Get(target.URL)
	}
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", target.URL, err)
	}
	if res.StatusCode() >= 400 {
		return nil, &StatusError{Code: res.StatusCode(), URL: target.URL}
	}

	body := res.Body()
	if !utf8.Valid(body) {
		decoded, err := charmap.Windows1252.NewDecoder().Bytes(body)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", target.URL, err)
		}
		body = decoded
	}
	return body, nil
}

// Close releases idle connections.
func (s *HTTPSource) Close() error {
	s.client.GetClient().CloseIdleConnections()
	return nil
}

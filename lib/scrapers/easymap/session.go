package easymap

import (
	"context"
	"easymap-backend/lib/htmlutil"
	"easymap-backend/lib/restyutil"
	"easymap-backend/lib/telemetry"
	"encoding/json"
	"errors"
	"fmt"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

var tracer = otel.Tracer("easymap-backend/lib/scrapers/easymap")

const (
	DefaultBaseURL   = "https://easymap.land.moi.gov.tw"
	DefaultTimeout   = 30 * time.Second
	DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/94.0.4606.71 Safari/537.36"

	SessionCookie = "JSESSIONID"
)

const (
	indexPath     = "/Index"
	pointCityPath = "/Query_json_getPointCity"
	setTokenPath  = "/pages/setToken.jsp"
	doorInfoPath  = "/Door_json_getDoorInfoByXY"
)

type State int

const (
	StateUnestablished State = iota
	StateEstablished
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnestablished:
		return "unestablished"
	case StateEstablished:
		return "established"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

type SessionOptions struct {
	// defaults to DefaultBaseURL
	BaseURL string
	// outbound proxy, a bare host:port is treated as an http proxy
	Proxy string
	// per request timeout, defaults to DefaultTimeout
	Timeout time.Duration
	// defaults to DefaultUserAgent
	UserAgent string
	// requests per second, zero disables rate limiting
	RateLimit rate.Limit
	// defaults to htmlutil.RegexFieldExtractor
	Extractor htmlutil.FieldExtractor
	// wraps the transport with cloudflare-bp-go
	CloudflareBypass bool
	// when set, every exchange is dumped to it
	DumpOutput restyutil.InstrumentOutput
}

// Session is a single browsing session against the portal. it must be
// closed once done with and must not be shared between lookups since the
// portal ties its session cookie to one user.
type Session struct {
	http      *resty.Client
	baseURL   *url.URL
	extractor htmlutil.FieldExtractor

	lock  sync.Mutex
	state State
}

func normalizeProxy(proxy string) string {
	if proxy == "" || strings.Contains(proxy, "://") {
		return proxy
	}
	return "http://" + proxy
}

func newSession(opts SessionOptions) (*Session, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Extractor == nil {
		opts.Extractor = htmlutil.RegexFieldExtractor{}
	}

	baseURL, err := url.Parse(strings.TrimSuffix(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	client := resty.New()
	client.SetBaseURL(baseURL.String())
	client.SetTimeout(opts.Timeout)
	client.SetHeader("user-agent", opts.UserAgent)

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)

	proxy := normalizeProxy(opts.Proxy)
	if proxy != "" {
		_, err := url.Parse(proxy)
		if err != nil {
			return nil, fmt.Errorf("parse proxy: %w", err)
		}
		client.SetProxy(proxy)
	}
	if opts.CloudflareBypass {
		client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	}

	if opts.RateLimit > 0 {
		limiter := rate.NewLimiter(opts.RateLimit, 1)
		client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			return limiter.Wait(req.Context())
		})
	}
	telemetry.InstrumentResty(client, "easymap-backend/lib/scrapers/easymap/http")
	restyutil.InstrumentClient(client, "easymap", opts.DumpOutput)

	return &Session{
		http:      client,
		baseURL:   baseURL,
		extractor: opts.Extractor,
		state:     StateUnestablished,
	}, nil
}

// Open creates a session and establishes it with the portal.
func Open(ctx context.Context, opts SessionOptions) (*Session, error) {
	s, err := newSession(opts)
	if err != nil {
		return nil, err
	}
	err = s.establish(ctx)
	if err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// WithSession opens a session, runs fn with it and closes it whether or
// not fn succeeds.
func WithSession(ctx context.Context, opts SessionOptions, fn func(s *Session) error) error {
	s, err := Open(ctx, opts)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}

func (s *Session) State() State {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.state
}

// Close releases the connections held by the session, it is safe to call
// more than once.
func (s *Session) Close() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.state == StateClosed {
		return nil
	}
	s.state = StateClosed
	s.http.GetClient().CloseIdleConnections()
	s.http.SetCookieJar(nil)
	return nil
}

func (s *Session) checkEstablished() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	switch s.state {
	case StateEstablished:
		return nil
	case StateClosed:
		return &SessionError{Message: "cannot use session", Err: ErrSessionClosed}
	}
	return &SessionError{Message: "cannot use session", Err: ErrSessionNotEstablished}
}

func failSpan(span trace.Span, err error, msg string) {
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
}

func (s *Session) hasSessionCookie() bool {
	jar := s.http.GetClient().Jar
	if jar == nil {
		return false
	}
	indexURL := s.baseURL.JoinPath(indexPath)
	for _, u := range []*url.URL{s.baseURL, indexURL} {
		for _, c := range jar.Cookies(u) {
			if c.Name == SessionCookie && c.Value != "" {
				return true
			}
		}
	}
	return false
}

func (s *Session) establish(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Session:establish")
	defer span.End()

	s.lock.Lock()
	state := s.state
	s.lock.Unlock()
	if state != StateUnestablished {
		err := &SessionError{Message: fmt.Sprintf("cannot establish %s session", state)}
		failSpan(span, err, "invalid state")
		return err
	}

	res, err := s.http.R().
		SetContext(ctx).
		Get(indexPath)
	if err != nil {
		err = &SessionError{Message: "failed to fetch index", Err: err}
		failSpan(span, err, "failed to fetch index")
		return err
	}

	if !s.hasSessionCookie() {
		err := &SessionError{
			Message: "failed getting session from easymap",
			Status:  res.StatusCode(),
			Body:    res.String(),
		}
		failSpan(span, err, "no session cookie")
		return err
	}

	s.lock.Lock()
	defer s.lock.Unlock()
	if s.state == StateClosed {
		return &SessionError{Message: "session closed while establishing", Err: ErrSessionClosed}
	}
	s.state = StateEstablished
	return nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func decodeObject(res *resty.Response) (map[string]any, error) {
	var obj map[string]any
	err := json.Unmarshal(res.Body(), &obj)
	if err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, errors.New("response is not a json object")
	}
	return obj, nil
}

// GetCityCode returns the code of the city (county) the point lies in.
func (s *Session) GetCityCode(ctx context.Context, x, y float64) (string, error) {
	ctx, span := tracer.Start(ctx, "Session:GetCityCode")
	defer span.End()
	span.SetAttributes(attribute.Float64("easymap.x", x), attribute.Float64("easymap.y", y))

	err := s.checkEstablished()
	if err != nil {
		failSpan(span, err, "session not usable")
		return "", err
	}

	res, err := s.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"wgs84x": formatCoord(x),
			"wgs84y": formatCoord(y),
		}).
		Post(pointCityPath)
	if err != nil {
		err = &SessionError{Message: "failed to fetch point city", Err: err}
		failSpan(span, err, "failed to fetch point city")
		return "", err
	}
	if !res.IsSuccess() {
		err := &SessionError{
			Message: "unexpected point city response",
			Status:  res.StatusCode(),
			Body:    res.String(),
		}
		failSpan(span, err, "unexpected status")
		return "", err
	}

	obj, err := decodeObject(res)
	if err != nil {
		err = &SessionError{
			Message: "failed parsing point city json",
			Status:  res.StatusCode(),
			Body:    res.String(),
			Err:     err,
		}
		failSpan(span, err, "failed to parse json")
		return "", err
	}
	cityCode, ok := stringField(obj, "cityCode")
	if !ok {
		err := &SessionError{
			Message: fmt.Sprintf("failed parsing city code text:%s", res.String()),
			Status:  res.StatusCode(),
			Body:    res.String(),
		}
		failSpan(span, err, "missing city code")
		return "", err
	}

	span.SetAttributes(attribute.String("easymap.city_code", cityCode))
	return cityCode, nil
}

// GetToken fetches the anti forgery fields that must accompany a door info
// request, the returned fields always include "token".
func (s *Session) GetToken(ctx context.Context) (map[string]string, error) {
	ctx, span := tracer.Start(ctx, "Session:GetToken")
	defer span.End()

	err := s.checkEstablished()
	if err != nil {
		failSpan(span, err, "session not usable")
		return nil, err
	}

	res, err := s.http.R().
		SetContext(ctx).
		Post(setTokenPath)
	if err != nil {
		err = &SessionError{Message: "failed to fetch token page", Err: err}
		failSpan(span, err, "failed to fetch token page")
		return nil, err
	}
	if !res.IsSuccess() {
		err := &SessionError{
			Message: "unexpected token page response",
			Status:  res.StatusCode(),
			Body:    res.String(),
		}
		failSpan(span, err, "unexpected status")
		return nil, err
	}

	fields, err := s.extractor.ExtractHiddenFields(res.Body())
	if err != nil {
		err = &SessionError{
			Message: "failed parsing token",
			Status:  res.StatusCode(),
			Body:    res.String(),
			Err:     err,
		}
		failSpan(span, err, "failed to extract hidden fields")
		return nil, err
	}
	if _, ok := fields["token"]; !ok {
		err := &SessionError{
			Message: "failed parsing token",
			Status:  res.StatusCode(),
			Body:    res.String(),
		}
		failSpan(span, err, "missing token field")
		return nil, err
	}

	span.SetAttributes(attribute.Int("easymap.token_fields", len(fields)))
	return fields, nil
}

// GetDoorInfo looks up the land information of a point, token must be the
// fields returned by GetToken and is forwarded verbatim.
func (s *Session) GetDoorInfo(ctx context.Context, x, y float64, cityCode string, token map[string]string) (DoorInfo, error) {
	ctx, span := tracer.Start(ctx, "Session:GetDoorInfo")
	defer span.End()
	span.SetAttributes(
		attribute.Float64("easymap.x", x),
		attribute.Float64("easymap.y", y),
		attribute.String("easymap.city_code", cityCode),
	)

	err := s.checkEstablished()
	if err != nil {
		failSpan(span, err, "session not usable")
		return nil, err
	}

	form := map[string]string{
		"city":   cityCode,
		"coordX": formatCoord(x),
		"coordY": formatCoord(y),
	}
	for k, v := range token {
		form[k] = v
	}

	res, err := s.http.R().
		SetContext(ctx).
		SetFormData(form).
		Post(doorInfoPath)
	if err != nil {
		err = &SessionError{Message: "failed to fetch door info", Err: err}
		failSpan(span, err, "failed to fetch door info")
		return nil, err
	}
	if !res.IsSuccess() {
		err := &SessionError{
			Message: "unexpected door info response",
			Status:  res.StatusCode(),
			Body:    res.String(),
		}
		failSpan(span, err, "unexpected status")
		return nil, err
	}

	obj, err := decodeObject(res)
	if err != nil {
		err = &SessionError{
			Message: "failed parsing door info",
			Status:  res.StatusCode(),
			Body:    res.String(),
			Err:     err,
		}
		failSpan(span, err, "failed to parse json")
		return nil, err
	}
	return DoorInfo(obj), nil
}

package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/chuango-bridge/internal/device"
	"github.com/nerrad567/chuango-bridge/internal/infrastructure/config"
	"github.com/nerrad567/chuango-bridge/internal/infrastructure/logging"
)

// Request paths on the vendor API.
const (
	zonePath          = "/v2/server/zone"
	loginPath         = "/v2/user/login"
	sharedDevicesPath = "/v2/user/device/list/shared"
)

const (
	defaultRequestTimeout = 20 * time.Second

	// maxBodySize caps how much of a response is read.
	maxBodySize = 4 << 20

	// errorBodyLimit is how much of a failed response body goes into an error.
	errorBodyLimit = 300
)

// Logger is the logging interface used by Client.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Client talks to the vendor REST API. It holds no credentials; tokens
// are passed per call.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Client struct {
	http     *http.Client
	zoneBase string
	app      config.AppIdentityConfig

	logger   Logger
	loggerMu sync.RWMutex
}

// New creates a Client. A nil httpClient gets a default client using the
// configured request timeout.
func New(cfg config.CloudConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		timeout := time.Duration(cfg.RequestTimeout) * time.Second
		if timeout <= 0 {
			timeout = defaultRequestTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		http:     httpClient,
		zoneBase: strings.TrimRight(cfg.ZoneBaseURL, "/"),
		app:      cfg.App,
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for request tracing.
func (c *Client) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	defer c.loggerMu.Unlock()
	if logger == nil {
		logger = noopLogger{}
	}
	c.logger = logger
}

func (c *Client) log() Logger {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	return c.logger
}

// Zone resolves the account and broker hosts for a region.
func (c *Client) Zone(ctx context.Context, region string) (Zone, error) {
	var w wireZone
	if err := c.get(ctx, c.zoneBase+zonePath, url.Values{"region": {region}}, &w); err != nil {
		return Zone{}, fmt.Errorf("resolving zone %s: %w", region, err)
	}

	z := Zone{Region: string(w.Region), Auth: w.AM.endpoint(), MQTT: w.MQTT.endpoint()}
	if z.Region == "" {
		z.Region = region
	}
	if !z.Auth.Valid() {
		return Zone{}, fmt.Errorf("resolving zone %s: %w: response has no account host", region, ErrConnectivity)
	}
	return z, nil
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, auth Endpoint, req LoginRequest) (LoginResult, error) {
	params := url.Values{
		"countryCode": {req.CountryCode},
		"name":        {req.Email},
		"password":    {req.PasswordMD5},
		"uuid":        {req.InstallID},
		"os":          {c.app.OS},
		"osVer":       {c.app.OSVersion},
		"app":         {c.app.Package},
		"appVer":      {c.app.Version},
		"phoneBrand":  {c.app.PhoneBrand},
		"lang":        {c.app.Lang},
	}

	var w wireLogin
	if err := c.get(ctx, auth.BaseURL()+loginPath, params, &w); err != nil {
		return LoginResult{}, fmt.Errorf("login: %w", err)
	}

	if w.Token == "" || w.ExpireAt == 0 || w.UserInfo == nil {
		return LoginResult{}, fmt.Errorf("login: %w: unexpected response shape", ErrConnectivity)
	}

	return LoginResult{
		Token:     string(w.Token),
		ExpiresAt: int64(w.ExpireAt),
		Profile:   w.UserInfo,
	}, nil
}

// SharedDevices lists the devices shared with the token's account.
// An empty object is a valid empty result.
func (c *Client) SharedDevices(ctx context.Context, auth Endpoint, token string) ([]device.Device, error) {
	var raw json.RawMessage
	if err := c.get(ctx, auth.BaseURL()+sharedDevicesPath, url.Values{"token": {token}}, &raw); err != nil {
		return nil, fmt.Errorf("listing shared devices: %w", err)
	}

	items, err := decodeDeviceList(raw)
	if err != nil {
		return nil, fmt.Errorf("listing shared devices: %w: %w", ErrConnectivity, err)
	}

	devices := make([]device.Device, 0, len(items))
	for _, item := range items {
		devices = append(devices, item.device())
	}
	return devices, nil
}

// decodeDeviceList accepts {"list":[...]}, {} and a bare array.
// Array entries that are not objects are skipped.
func decodeDeviceList(raw json.RawMessage) ([]wireDevice, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	var list []json.RawMessage
	if raw[0] == '[' {
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, err
		}
	} else {
		var envelope struct {
			List []json.RawMessage `json:"list"`
		}
		if err := json.Unmarshal(raw, &envelope); err != nil {
			return nil, err
		}
		list = envelope.List
	}

	out := make([]wireDevice, 0, len(list))
	for _, item := range list {
		var d wireDevice
		if err := json.Unmarshal(item, &d); err != nil {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

// get performs a GET with the app identity headers and decodes a JSON body into dst.
func (c *Client) get(ctx context.Context, rawURL string, params url.Values, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConnectivity, err)
	}
	req.URL.RawQuery = params.Encode()
	c.setHeaders(req)

	logger := c.log()
	logger.Debug("cloud request",
		"method", req.Method,
		"url", rawURL,
		"params", logging.RedactStrings(flatten(params)),
	)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConnectivity, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("%w: reading body: %w", ErrConnectivity, err)
	}

	logger.Debug("cloud response",
		"url", rawURL,
		"status", resp.StatusCode,
		"body", logging.Truncate(redactBody(body), logging.MaxLoggedBody),
	)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: HTTP %d: %s", ErrAuth, resp.StatusCode, logging.Truncate(string(body), errorBodyLimit))
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("%w: HTTP %d: %s", ErrConnectivity, resp.StatusCode, logging.Truncate(string(body), errorBodyLimit))
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("%w: invalid JSON: %w", ErrConnectivity, err)
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Appversion", c.app.Version)
	req.Header.Set("Platform", c.app.OS)
	req.Header.Set("Lang", c.app.Lang)
	req.Header.Set("Brand", c.app.BrandHeader)
	req.Header.Set("User-Agent", c.app.UserAgent)
}

func flatten(v url.Values) map[string]string {
	out := make(map[string]string, len(v))
	for k := range v {
		out[k] = v.Get(k)
	}
	return out
}

// redactBody masks secrets in a JSON body for logging. Non-JSON bodies are
// returned unchanged.
func redactBody(body []byte) string {
	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		return string(body)
	}
	out, err := json.Marshal(logging.Redact(obj))
	if err != nil {
		return string(body)
	}
	return string(out)
}

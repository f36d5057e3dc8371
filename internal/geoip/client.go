package geoip

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fastjson"
)

// Placeholder values used in place of real geolocation attributes.
const (
	LocalNetwork  = "Local Network"
	NotApplicable = "N/A"
	Unknown       = "Unknown"
	ErrorValue    = "Error"
)

const (
	DefaultBaseURL = "https://ipinfo.io"
	DefaultTimeout = 5 * time.Second
)

// privatePrefixes are treated as the local network and never looked up.
var privatePrefixes = []string{"192.168.", "10.", "172.16."}

// GeoInfo is the geolocation of one address.
type GeoInfo struct {
	Country   string   `json:"country"`
	State     string   `json:"state"`
	City      string   `json:"city"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// LocalInfo is returned for private and empty addresses.
func LocalInfo() GeoInfo {
	return GeoInfo{Country: LocalNetwork, State: NotApplicable, City: NotApplicable}
}

// ErrorInfo is returned when the lookup failed.
func ErrorInfo() GeoInfo {
	return GeoInfo{Country: ErrorValue, State: ErrorValue, City: ErrorValue}
}

// IsLocal reports whether ip is empty or falls in one of the local prefixes.
// The address is not otherwise validated.
func IsLocal(ip string) bool {
	if ip == "" {
		return true
	}
	for _, p := range privatePrefixes {
		if strings.HasPrefix(ip, p) {
			return true
		}
	}
	return false
}

// Client is a client for an ipinfo-compatible geolocation API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithToken sends the token as a Bearer credential.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithBaseURL points the client at another endpoint.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(baseURL, "/") }
}

// NewClient creates a new geolocation client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Lookup fetches the geolocation of ip.
func (c *Client) Lookup(ctx context.Context, ip string) (GeoInfo, error) {
	endpoint := c.baseURL + "/" + url.PathEscape(ip) + "/json"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return GeoInfo{}, fmt.Errorf("failed to create request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return GeoInfo{}, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return GeoInfo{}, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if len(body) > 512 {
			body = body[:512]
		}
		return GeoInfo{}, fmt.Errorf("geolocation service returned status %d: %s", resp.StatusCode, string(body))
	}

	return parseInfo(body)
}

func parseInfo(body []byte) (GeoInfo, error) {
	v, err := fastjson.ParseBytes(body)
	if err != nil {
		return GeoInfo{}, fmt.Errorf("failed to decode response: %w", err)
	}

	info := GeoInfo{
		Country: stringOr(v, "country", Unknown),
		State:   stringOr(v, "region", Unknown),
		City:    stringOr(v, "city", Unknown),
	}
	info.Latitude, info.Longitude = parseLoc(stringOr(v, "loc", ","))
	return info, nil
}

func stringOr(v *fastjson.Value, key, fallback string) string {
	b := v.GetStringBytes(key)
	if b == nil {
		return fallback
	}
	return string(b)
}

// parseLoc splits a "lat,lon" pair. A part that is malformed, not finite or
// outside ±90/±180 is returned as nil.
func parseLoc(loc string) (*float64, *float64) {
	parts := strings.Split(loc, ",")
	var lat, lon *float64
	if len(parts) > 0 {
		lat = parseCoord(parts[0], 90)
	}
	if len(parts) > 1 {
		lon = parseCoord(parts[1], 180)
	}
	return lat, lon
}

func parseCoord(s string, limit float64) *float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > limit {
		return nil
	}
	return &f
}

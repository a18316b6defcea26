package main

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// cachedResponse is a helper struct to store the response fields
// we care about in a simple JSON format.
type cachedResponse struct {
	Status     string              `json:"status"`
	StatusCode int                 `json:"status_code"`
	Proto      string              `json:"proto"`
	Header     map[string][]string `json:"header"`
	Body       []byte              `json:"body"`
	StoredAt   time.Time           `json:"stored_at"`
}

// CachingRoundTripper implements http.RoundTripper. Successful responses are
// kept on disk and replayed until they are older than MaxAge.
type CachingRoundTripper struct {
	// UnderlyingTransport will be used when there's a cache miss.
	// If nil, http.DefaultTransport will be used.
	UnderlyingTransport http.RoundTripper

	// CacheDir is the directory where response files are stored.
	CacheDir string

	// MaxAge bounds how long a stored response is served. Zero keeps them forever.
	MaxAge time.Duration

	Logger *zap.Logger

	now func() time.Time
}

func (c *CachingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	transport := c.UnderlyingTransport
	if transport == nil {
		transport = http.DefaultTransport
	}
	logger := c.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	// Read the request body into memory so we can hash it
	// and also send it on to the next transport.
	var bodyBytes []byte
	if req.Body != nil {
		var err error
		bodyBytes, err = io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
	}

	// Headers are ignored, so only method, URL, and body are used.
	key := cacheKey(req.Method, req.URL.String(), bodyBytes)
	cacheFilePath := c.cacheFilePath(key)

	if cr, err := loadCachedResponse(cacheFilePath); err == nil {
		if c.MaxAge <= 0 || c.clock().Sub(cr.StoredAt) < c.MaxAge {
			cacheRequests.WithLabelValues("hit").Inc()
			logger.Debug("cache hit", zap.String("method", req.Method), zap.String("url", req.URL.Redacted()))
			return buildHTTPResponse(req, *cr), nil
		}
		logger.Debug("cache entry expired", zap.String("url", req.URL.Redacted()), zap.Time("stored_at", cr.StoredAt))
	}

	cacheRequests.WithLabelValues("miss").Inc()
	resp, err := transport.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	cr := cachedResponse{
		Status:     resp.Status,
		StatusCode: resp.StatusCode,
		Proto:      resp.Proto,
		Header:     resp.Header.Clone(),
		Body:       respBodyBytes,
		StoredAt:   c.clock(),
	}

	// Errors are passed through without being remembered.
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if err := saveCachedResponse(cacheFilePath, &cr); err != nil {
			logger.Warn("failed to store cached response", zap.String("path", cacheFilePath), zap.Error(err))
		}
	}

	return buildHTTPResponse(req, cr), nil
}

func (c *CachingRoundTripper) clock() time.Time {
	if c.now != nil {
		return c.now()
	}
	return time.Now()
}

// cacheKey builds a SHA-256 hash string from method, url, and request body.
func cacheKey(method, url string, body []byte) string {
	hash := sha256.New()
	hash.Write([]byte(method))
	hash.Write([]byte(url))
	if len(body) > 0 {
		hash.Write(body)
	}
	return hex.EncodeToString(hash.Sum(nil))
}

// cacheFilePath returns the path to the cache file for the given key.
func (c *CachingRoundTripper) cacheFilePath(key string) string {
	return filepath.Join(c.CacheDir, key+".json")
}

// loadCachedResponse reads and deserializes a cached file.
func loadCachedResponse(path string) (*cachedResponse, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cr cachedResponse
	if err := json.Unmarshal(data, &cr); err != nil {
		return nil, err
	}
	return &cr, nil
}

// saveCachedResponse saves the response struct to a file in JSON format.
func saveCachedResponse(path string, cr *cachedResponse) error {
	data, err := json.MarshalIndent(cr, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// buildHTTPResponse constructs a new *http.Response from cachedResponse data.
func buildHTTPResponse(req *http.Request, cr cachedResponse) *http.Response {
	return &http.Response{
		Status:        cr.Status,
		StatusCode:    cr.StatusCode,
		Proto:         cr.Proto,
		Header:        cr.Header,
		Body:          io.NopCloser(bytes.NewReader(cr.Body)),
		ContentLength: int64(len(cr.Body)),
		Request:       req,
	}
}

// newTransport wraps http.DefaultTransport in a disk cache unless dir is
// "disable". An empty dir uses the system temporary directory.
func newTransport(dir string, maxAge time.Duration, logger *zap.Logger) (http.RoundTripper, error) {
	if dir == "disable" {
		logger.Info("HTTP caching disabled")
		return http.DefaultTransport, nil
	}
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	logger.Info("HTTP caching enabled", zap.String("dir", dir), zap.Duration("max_age", maxAge))
	return &CachingRoundTripper{
		UnderlyingTransport: http.DefaultTransport,
		CacheDir:            filepath.Clean(dir),
		MaxAge:              maxAge,
		Logger:              logger.Named("cache"),
	}, nil
}

package store

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/contentkit/importer/internal/config"
)

// S3Uploader writes attachment binaries to an S3-compatible bucket using
// SigV4 request signing over plain HTTP, no SDK involved.
type S3Uploader struct {
	endpoint     *url.URL
	bucket       string
	region       string
	accessKey    string
	secretKey    string
	customDomain string
	pathStyle    bool
	client       *http.Client
	now          func() time.Time
}

// NewS3Uploader builds an uploader from the storage config.
func NewS3Uploader(cfg config.S3Config) (*S3Uploader, error) {
	if cfg.Bucket == "" || cfg.Region == "" || cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil, fmt.Errorf("incomplete s3 config: bucket, region and credentials are required")
	}

	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://s3.%s.amazonaws.com", cfg.Region)
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "https://" + endpoint
	}
	parsed, err := url.Parse(strings.TrimSuffix(endpoint, "/"))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid s3 endpoint %q", endpoint)
	}

	// Custom endpoints rarely support virtual-hosted buckets.
	pathStyle := cfg.PathStyleAccess || cfg.Endpoint != ""

	return &S3Uploader{
		endpoint:     parsed,
		bucket:       cfg.Bucket,
		region:       cfg.Region,
		accessKey:    cfg.AccessKeyID,
		secretKey:    cfg.SecretAccessKey,
		customDomain: strings.TrimRight(strings.TrimSpace(cfg.CustomDomain), "/"),
		pathStyle:    pathStyle,
		client:       &http.Client{Timeout: 45 * time.Second},
		now:          time.Now,
	}, nil
}

// Upload PUTs the payload under objectKey and returns the object's public
// URL.
func (u *S3Uploader) Upload(ctx context.Context, objectKey string, payload []byte, contentType string) (string, error) {
	key := cleanObjectKey(objectKey)
	if key == "" {
		return "", fmt.Errorf("invalid s3 object key %q", objectKey)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	requestURL, canonicalURI, host := u.target(key)
	payloadHash := sha256Hex(payload)
	now := u.now().UTC()

	headers := map[string]string{
		"content-length":       strconv.Itoa(len(payload)),
		"content-type":         contentType,
		"host":                 host,
		"x-amz-content-sha256": payloadHash,
		"x-amz-date":           now.Format("20060102T150405Z"),
	}
	authorization := u.sign(http.MethodPut, canonicalURI, headers, payloadHash, now)

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, requestURL, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Host = host
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("Authorization", authorization)

	resp, err := u.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))
		return "", fmt.Errorf("s3 upload failed: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if u.customDomain != "" {
		return u.customDomain + "/" + key, nil
	}
	return requestURL, nil
}

// sign produces the SigV4 Authorization header for the request.
func (u *S3Uploader) sign(method, canonicalURI string, headers map[string]string, payloadHash string, now time.Time) string {
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var canonicalHeaders strings.Builder
	for _, k := range keys {
		canonicalHeaders.WriteString(k + ":" + strings.TrimSpace(headers[k]) + "\n")
	}
	signedHeaders := strings.Join(keys, ";")

	canonicalRequest := strings.Join([]string{
		method, canonicalURI, "", canonicalHeaders.String(), signedHeaders, payloadHash,
	}, "\n")

	dateStamp := now.Format("20060102")
	scope := dateStamp + "/" + u.region + "/s3/aws4_request"
	stringToSign := strings.Join([]string{
		"AWS4-HMAC-SHA256",
		now.Format("20060102T150405Z"),
		scope,
		sha256Hex([]byte(canonicalRequest)),
	}, "\n")

	key := []byte("AWS4" + u.secretKey)
	for _, part := range []string{dateStamp, u.region, "s3", "aws4_request"} {
		key = hmacSHA256(key, part)
	}
	signature := hex.EncodeToString(hmacSHA256(key, stringToSign))

	return "AWS4-HMAC-SHA256 Credential=" + u.accessKey + "/" + scope +
		", SignedHeaders=" + signedHeaders +
		", Signature=" + signature
}

func (u *S3Uploader) target(objectKey string) (requestURL, canonicalURI, host string) {
	encoded := encodeObjectKey(objectKey)
	basePath := strings.TrimSuffix(u.endpoint.Path, "/")

	if u.pathStyle {
		canonicalURI = joinURLPath(basePath, u.bucket, encoded)
		host = u.endpoint.Host
	} else {
		host = u.endpoint.Host
		if !strings.HasPrefix(strings.ToLower(host), strings.ToLower(u.bucket)+".") {
			host = u.bucket + "." + host
		}
		canonicalURI = joinURLPath(basePath, encoded)
	}
	requestURL = u.endpoint.Scheme + "://" + host + canonicalURI
	return requestURL, canonicalURI, host
}

func cleanObjectKey(key string) string {
	key = strings.TrimSpace(strings.ReplaceAll(key, "\\", "/"))
	key = strings.TrimPrefix(key, "/")
	for strings.Contains(key, "//") {
		key = strings.ReplaceAll(key, "//", "/")
	}
	return key
}

func encodeObjectKey(key string) string {
	parts := strings.Split(cleanObjectKey(key), "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

func joinURLPath(parts ...string) string {
	segments := make([]string, 0, len(parts))
	for _, p := range parts {
		for _, seg := range strings.Split(p, "/") {
			if seg = strings.TrimSpace(seg); seg != "" {
				segments = append(segments, seg)
			}
		}
	}
	if len(segments) == 0 {
		return "/"
	}
	return "/" + strings.Join(segments, "/")
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func hmacSHA256(key []byte, data string) []byte {
	mac := hmac.New(sha256.New, key)
	_, _ = mac.Write([]byte(data))
	return mac.Sum(nil)
}

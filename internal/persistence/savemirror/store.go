// Package savemirror copies save files to an S3-compatible bucket.
package savemirror

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
	"path"
	"strings"
	"time"
)

const (
	signAlgorithm = "AWS4-HMAC-SHA256"
	signService   = "s3"
	signedHeaders = "host;x-amz-content-sha256;x-amz-date"
)

// StoreConfig names a bucket and the credentials used to write to it.
type StoreConfig struct {
	Endpoint        string
	Bucket          string
	Region          string // "auto" when empty
	AccessKeyID     string
	SecretAccessKey string
}

// Store writes objects with SigV4-signed path-style PUTs.
type Store struct {
	endpoint string
	cfg      StoreConfig
	hc       *http.Client
	now      func() time.Time
}

func NewStore(cfg StoreConfig) (*Store, error) {
	cfg.Endpoint = strings.TrimSpace(cfg.Endpoint)
	cfg.Bucket = strings.TrimSpace(cfg.Bucket)
	cfg.Region = strings.TrimSpace(cfg.Region)
	cfg.AccessKeyID = strings.TrimSpace(cfg.AccessKeyID)
	cfg.SecretAccessKey = strings.TrimSpace(cfg.SecretAccessKey)
	if cfg.Endpoint == "" || cfg.Bucket == "" || cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil, fmt.Errorf("savemirror: endpoint, bucket and credentials are required")
	}
	if cfg.Region == "" {
		cfg.Region = "auto"
	}
	ep := cfg.Endpoint
	if !strings.Contains(ep, "://") {
		ep = "https://" + ep
	}
	u, err := url.Parse(ep)
	if err != nil {
		return nil, fmt.Errorf("savemirror: parse endpoint: %w", err)
	}
	if u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("savemirror: invalid endpoint %q", cfg.Endpoint)
	}
	return &Store{
		endpoint: strings.TrimRight(u.String(), "/"),
		cfg:      cfg,
		hc:       &http.Client{Timeout: 2 * time.Minute},
		now:      time.Now,
	}, nil
}

// Put uploads body under key. The key is cleaned; keys escaping the bucket
// root are rejected.
func (s *Store) Put(ctx context.Context, key string, body []byte) error {
	key = cleanKey(key)
	if key == "" {
		return fmt.Errorf("savemirror: empty object key")
	}
	uri := "/" + s.cfg.Bucket + "/" + escapeKey(key)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.endpoint+uri, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.ContentLength = int64(len(body))
	req.Header.Set("Content-Type", "application/json")
	s.sign(req, uri, sha256Hex(body), s.now().UTC())

	resp, err := s.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 == 2 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
	return fmt.Errorf("savemirror: put %s: status %d: %s", key, resp.StatusCode, strings.TrimSpace(string(msg)))
}

func (s *Store) sign(req *http.Request, uri, payloadHash string, now time.Time) {
	amzDate := now.Format("20060102T150405Z")
	day := now.Format("20060102")
	host := req.URL.Host
	req.Header.Set("x-amz-content-sha256", payloadHash)
	req.Header.Set("x-amz-date", amzDate)

	canonical := strings.Join([]string{
		req.Method,
		uri,
		"",
		"host:" + host + "\nx-amz-content-sha256:" + payloadHash + "\nx-amz-date:" + amzDate + "\n",
		signedHeaders,
		payloadHash,
	}, "\n")
	scope := day + "/" + s.cfg.Region + "/" + signService + "/aws4_request"
	toSign := signAlgorithm + "\n" + amzDate + "\n" + scope + "\n" + sha256Hex([]byte(canonical))

	k := hmacSHA256([]byte("AWS4"+s.cfg.SecretAccessKey), []byte(day))
	k = hmacSHA256(k, []byte(s.cfg.Region))
	k = hmacSHA256(k, []byte(signService))
	k = hmacSHA256(k, []byte("aws4_request"))
	sig := hex.EncodeToString(hmacSHA256(k, []byte(toSign)))

	req.Header.Set("Authorization", fmt.Sprintf("%s Credential=%s/%s, SignedHeaders=%s, Signature=%s",
		signAlgorithm, s.cfg.AccessKeyID, scope, signedHeaders, sig))
}

func cleanKey(key string) string {
	key = strings.TrimSpace(strings.ReplaceAll(key, "\\", "/"))
	if key == "" {
		return ""
	}
	c := strings.TrimPrefix(path.Clean("/"+key), "/")
	if c == "" || c == "." {
		return ""
	}
	return c
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func hmacSHA256(key, data []byte) []byte {
	h := hmac.New(sha256.New, key)
	_, _ = h.Write(data)
	return h.Sum(nil)
}

package client

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
)

// DefaultSigningService is the SigV4 service name of Amazon Elasticsearch
// Service and OpenSearch Service domains.
const DefaultSigningService = "es"

// SignedTransport sends store requests to a fixed endpoint, signed with AWS
// SigV4. It implements esapi.Transport. Requests are never retried.
type SignedTransport struct {
	endpoint    *url.URL
	region      string
	service     string
	credentials aws.CredentialsProvider
	signer      *v4.Signer
	httpClient  *http.Client
	now         func() time.Time
}

// TransportOption configures a SignedTransport.
type TransportOption func(*SignedTransport)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) TransportOption {
	return func(t *SignedTransport) { t.httpClient = c }
}

// WithSigningService overrides the SigV4 service name.
func WithSigningService(service string) TransportOption {
	return func(t *SignedTransport) { t.service = service }
}

// WithClock overrides the signing clock.
func WithClock(now func() time.Time) TransportOption {
	return func(t *SignedTransport) { t.now = now }
}

// NewSignedTransport creates a transport for endpoint, a host name with an
// optional scheme (https is assumed). Region and credentials come from cfg.
func NewSignedTransport(endpoint string, cfg aws.Config, opts ...TransportOption) (*SignedTransport, error) {
	if endpoint == "" {
		return nil, errors.New("empty store endpoint")
	}
	if !strings.Contains(endpoint, "://") {
		endpoint = "https://" + endpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid store endpoint: %w", err)
	}
	if cfg.Region == "" {
		return nil, errors.New("no AWS region configured for request signing")
	}
	if cfg.Credentials == nil {
		return nil, errors.New("no AWS credentials configured for request signing")
	}
	t := &SignedTransport{
		endpoint:    u,
		region:      cfg.Region,
		service:     DefaultSigningService,
		credentials: cfg.Credentials,
		signer:      v4.NewSigner(),
		httpClient:  &http.Client{Timeout: 60 * time.Second},
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Perform points req at the endpoint, signs it and sends it.
func (t *SignedTransport) Perform(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	req.URL.Scheme = t.endpoint.Scheme
	req.URL.Host = t.endpoint.Host
	req.Host = t.endpoint.Host
	if prefix := strings.TrimSuffix(t.endpoint.Path, "/"); prefix != "" {
		req.URL.Path = prefix + req.URL.Path
	}

	var body []byte
	if req.Body != nil {
		b, err := io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read request body: %w", err)
		}
		body = b
	}
	if len(body) > 0 {
		req.Body = io.NopCloser(bytes.NewReader(body))
		req.GetBody = func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(body)), nil }
	} else {
		req.Body = http.NoBody
		req.GetBody = nil
	}
	req.ContentLength = int64(len(body))
	if req.Header == nil {
		req.Header = http.Header{}
	}
	if len(body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}

	creds, err := t.credentials.Retrieve(ctx)
	if err != nil {
		return nil, fmt.Errorf("retrieve AWS credentials: %w", err)
	}
	sum := sha256.Sum256(body)
	if err := t.signer.SignHTTP(ctx, creds, req, hex.EncodeToString(sum[:]), t.service, t.region, t.now()); err != nil {
		return nil, fmt.Errorf("sign request: %w", err)
	}
	return t.httpClient.Do(req)
}

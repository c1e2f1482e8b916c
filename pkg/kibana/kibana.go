// Package kibana is a minimal Detection Engine rules client
// Requests go through the elastic transport with retries disabled, every call is attempted once
package kibana

import (
	"bytes"
	"context"
	"crypto/tls"
	"io/ioutil"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/elastic/elastic-transport-go/v8/elastictransport"
	"github.com/pkg/errors"

	sigma "github.com/markuskont/go-sigma-rule-deploy"
)

// RulesPath is the detection engine rules endpoint, relative to kibana base URL
const RulesPath = "/api/detection_engine/rules"

// DefaultTimeout bounds a single request when Config.Timeout is unset
const DefaultTimeout = 30 * time.Second

// Config is used as argument to creating a new Client
type Config struct {
	// base URL of kibana deployment, may include a path prefix
	URL string
	// API key used as-is in ApiKey authorization header
	APIKey string
	// per request timeout
	Timeout time.Duration
	// skip TLS certificate verification, for lab deployments with self-signed certs
	Insecure bool
}

// Validate checks required fields and base URL form
func (c Config) Validate() error {
	if strings.TrimSpace(c.URL) == "" {
		return sigma.ErrMissingConfig{Key: "kibana.url"}
	}
	if strings.TrimSpace(c.APIKey) == "" {
		return sigma.ErrMissingConfig{Key: "kibana.api_key"}
	}
	u, err := url.Parse(c.URL)
	if err != nil {
		return errors.Wrap(err, "invalid kibana url")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.Errorf("kibana url %s must use http or https scheme", c.URL)
	}
	return nil
}

// Client implements sigma.RuleAPIClient against the detection engine REST API
type Client struct {
	transport *elastictransport.Client
	apiKey    string
	timeout   time.Duration
}

var _ sigma.RuleAPIClient = (*Client)(nil)

// NewClient instanciates a Client from validated config
func NewClient(c Config) (*Client, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	u, err := url.Parse(strings.TrimRight(c.URL, "/"))
	if err != nil {
		return nil, err
	}
	rt := http.DefaultTransport.(*http.Transport).Clone()
	if c.Insecure {
		rt.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	tp, err := elastictransport.New(elastictransport.Config{
		URLs:         []*url.URL{u},
		Transport:    rt,
		DisableRetry: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "kibana transport")
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{transport: tp, apiKey: c.APIKey, timeout: timeout}, nil
}

// CreateRule implements sigma.RuleAPIClient
func (c *Client) CreateRule(ctx context.Context, body []byte) (*sigma.Response, error) {
	return c.do(ctx, http.MethodPost, RulesPath, body)
}

// UpdateRule implements sigma.RuleAPIClient
func (c *Client) UpdateRule(ctx context.Context, ruleID string, body []byte) (*sigma.Response, error) {
	q := url.Values{}
	q.Set("rule_id", ruleID)
	return c.do(ctx, http.MethodPut, RulesPath+"?"+q.Encode(), body)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (*sigma.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("kbn-xsrf", "true")
	req.Header.Set("Authorization", "ApiKey "+c.apiKey)

	res, err := c.transport.Perform(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	data, err := ioutil.ReadAll(res.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s %s response", method, path)
	}
	return &sigma.Response{StatusCode: res.StatusCode, Body: data}, nil
}

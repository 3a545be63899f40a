package mailbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/enroll-cli/internal/config"
)

const (
	apiKeyHeader = "X-API-Key"
	// waitSlack is added to the request deadline of a long-poll so the server can
	// answer "nothing yet" before the client gives up.
	waitSlack        = 5 * time.Second
	maxResponseBytes = 4 << 20
	errorExcerptLen  = 200
)

// APIClient talks to a GetTestMail-style REST API. It is both the Provisioner and
// the retrieval Client handed back with every mailbox it creates. Retrieval
// capabilities follow the endpoints present in the configuration.
type APIClient struct {
	httpClient *http.Client
	baseURL    *url.URL
	apiKey     string
	endpoints  config.MailboxEndpoints
	expiresIn  time.Duration
	limiter    *rate.Limiter
	caps       CapabilitySet
	logger     *zap.Logger
	now        func() time.Time
}

// NewAPIClient validates the configuration and builds a client.
func NewAPIClient(cfg config.MailboxConfig, httpClient *http.Client, logger *zap.Logger) (*APIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("mailbox API key is not set (export GETTESTMAIL_API_KEY or ENROLL_MAILBOX_API_KEY)")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid mailbox.base_url %q", cfg.BaseURL)
	}
	if err := cfg.Endpoints.Validate(); err != nil {
		return nil, fmt.Errorf("invalid mailbox endpoints: %w", err)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}

	var caps []Capability
	if cfg.Endpoints.Wait != "" {
		caps = append(caps, CapWaitForMessage)
	}
	if cfg.Endpoints.List != "" {
		caps = append(caps, CapListMessages)
	}
	if cfg.Endpoints.Get != "" {
		caps = append(caps, CapGetMessage)
	}

	return &APIClient{
		httpClient: httpClient,
		baseURL:    base,
		apiKey:     cfg.APIKey,
		endpoints:  cfg.Endpoints,
		expiresIn:  cfg.ExpiresIn,
		limiter:    rate.NewLimiter(limit, 1),
		caps:       NewCapabilitySet(caps...),
		logger:     logger.Named("mailbox"),
		now:        time.Now,
	}, nil
}

// Capabilities implements Client.
func (c *APIClient) Capabilities() CapabilitySet { return c.caps }

// Provision makes exactly one account-creation call. It never retries.
func (c *APIClient) Provision(ctx context.Context) (Provisioned, error) {
	payload := map[string]string{}
	if c.expiresIn > 0 {
		payload["expiresAt"] = c.now().Add(c.expiresIn).UTC().Format(time.RFC3339)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Provisioned{}, fmt.Errorf("%w: encoding request: %v", ErrProvision, err)
	}

	status, msg, err := c.do(ctx, http.MethodPost, c.endpoints.Create, "", "", bytes.NewReader(body))
	if err != nil {
		return Provisioned{}, fmt.Errorf("%w: %v", ErrProvision, err)
	}
	if status < 200 || status > 299 {
		return Provisioned{}, fmt.Errorf("%w: unexpected status %d: %s", ErrProvision, status, excerpt(msg.String(), errorExcerptLen))
	}

	h := Handle{
		Ref:          firstNonEmpty(msg.LookupString("ref"), msg.LookupString("id")),
		ID:           msg.LookupString("id"),
		EmailAddress: msg.LookupString("emailAddress"),
	}
	if h.EmailAddress == "" {
		return Provisioned{}, fmt.Errorf("%w: response carried no emailAddress", ErrProvision)
	}
	if exp := msg.LookupString("expiresAt"); exp != "" {
		if t, err := time.Parse(time.RFC3339, exp); err == nil {
			h.ExpiresAt = t
		}
	}
	if embedded, ok := msg.Lookup("messages"); ok && embedded.Kind == KindSequence {
		h.Messages = embedded.Items
	}

	c.logger.Info("Provisioned mailbox", zap.String("address", h.EmailAddress), zap.String("id", h.ID))
	return Provisioned{Address: h.EmailAddress, Handle: h, Client: c}, nil
}

// WaitForMessage long-polls the wait endpoint. A rejected timeout argument is
// reported as ErrUnsupportedParameter.
func (c *APIClient) WaitForMessage(ctx context.Context, ref string, timeout time.Duration) (Message, error) {
	if !c.caps.Has(CapWaitForMessage) {
		return Message{}, fmt.Errorf("wait endpoint not configured")
	}
	query := ""
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout+waitSlack)
		defer cancel()
		query = "timeout=" + strconv.Itoa(int(timeout.Seconds()))
	}

	status, msg, err := c.do(ctx, http.MethodGet, c.endpoints.Wait, ref, query, nil)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() != nil {
			return Message{}, ErrNoMessage
		}
		return Message{}, err
	}
	switch {
	case (status == http.StatusBadRequest || status == http.StatusUnprocessableEntity) && query != "":
		return Message{}, ErrUnsupportedParameter
	case status == http.StatusNoContent || status == http.StatusNotFound || status == http.StatusRequestTimeout:
		return Message{}, ErrNoMessage
	case status < 200 || status > 299:
		return Message{}, fmt.Errorf("wait: unexpected status %d", status)
	}
	// A mailbox envelope with a null message means nothing has arrived.
	if inner, ok := msg.Lookup("message"); ok && inner.IsNull() {
		return Message{}, ErrNoMessage
	}
	if msg.IsEmpty() {
		return Message{}, ErrNoMessage
	}
	return msg, nil
}

// ListMessages implements Lister. Both a bare array and an envelope with a
// "messages", "items" or "data" array are accepted.
func (c *APIClient) ListMessages(ctx context.Context, id string) ([]Message, error) {
	if !c.caps.Has(CapListMessages) {
		return nil, fmt.Errorf("list endpoint not configured")
	}
	status, msg, err := c.do(ctx, http.MethodGet, c.endpoints.List, id, "", nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound || status == http.StatusNoContent {
		return nil, nil
	}
	if status < 200 || status > 299 {
		return nil, fmt.Errorf("list: unexpected status %d", status)
	}
	if msg.Kind == KindSequence {
		return msg.Items, nil
	}
	for _, key := range []string{"messages", "items", "data"} {
		if v, ok := msg.Lookup(key); ok && v.Kind == KindSequence {
			return v.Items, nil
		}
	}
	return nil, fmt.Errorf("list: response is not a message list")
}

// GetMessage implements Getter.
func (c *APIClient) GetMessage(ctx context.Context, id string) (Message, error) {
	if !c.caps.Has(CapGetMessage) {
		return Message{}, fmt.Errorf("get endpoint not configured")
	}
	status, msg, err := c.do(ctx, http.MethodGet, c.endpoints.Get, id, "", nil)
	if err != nil {
		return Message{}, err
	}
	if status == http.StatusNotFound || status == http.StatusNoContent {
		return Message{}, ErrNoMessage
	}
	if status < 200 || status > 299 {
		return Message{}, fmt.Errorf("get: unexpected status %d", status)
	}
	if msg.IsEmpty() {
		return Message{}, ErrNoMessage
	}
	return msg, nil
}

// do performs one rate-limited request and decodes whatever JSON comes back.
func (c *APIClient) do(ctx context.Context, method, endpoint, id, query string, body io.Reader) (int, Message, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, Message{}, fmt.Errorf("rate limiter: %w", err)
	}

	target := c.resolve(endpoint, id)
	target.RawQuery = query
	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return 0, Message{}, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set(apiKeyHeader, c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, Message{}, fmt.Errorf("%s %s: %w", method, target.Path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, Message{}, fmt.Errorf("reading response: %w", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return resp.StatusCode, Message{}, nil
	}
	msg, err := FromJSON(raw)
	if err != nil {
		// Non-JSON bodies are kept verbatim; the extractor can still read them.
		c.logger.Debug("Non-JSON response body", zap.String("path", target.Path), zap.Error(err))
		msg = Bytes(raw)
	}
	return resp.StatusCode, msg, nil
}

func (c *APIClient) resolve(endpoint, id string) *url.URL {
	escaped := url.PathEscape(id)
	path := strings.NewReplacer("{id}", id, "{ref}", id).Replace(endpoint)
	rawPath := strings.NewReplacer("{id}", escaped, "{ref}", escaped).Replace(endpoint)
	u := *c.baseURL
	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + strings.TrimPrefix(path, "/")
	u.RawPath = strings.TrimSuffix(c.baseURL.EscapedPath(), "/") + "/" + strings.TrimPrefix(rawPath, "/")
	return &u
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func excerpt(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

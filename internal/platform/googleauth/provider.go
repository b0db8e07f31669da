// Package googleauth acquires short-lived OAuth2 bearer credentials for the
// FCM HTTP v1 API by exchanging a signed service-account assertion at
// Google's token endpoint.
package googleauth

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"github.com/jobmate-app/go-push-dispatch/pkg/notify"
)

const (
	messagingScope    = "https://www.googleapis.com/auth/firebase.messaging"
	defaultTokenURI   = "https://oauth2.googleapis.com/token"
	jwtBearerGrant    = "urn:ietf:params:oauth:grant-type:jwt-bearer"
	assertionLifetime = time.Hour

	// expiryLeeway is how long before nominal expiry a cached credential is
	// considered stale, covering clock skew and in-flight request time.
	expiryLeeway = time.Minute
)

// serviceAccount is the subset of the Google service-account JSON we use.
type serviceAccount struct {
	ProjectID   string `json:"project_id"`
	PrivateKey  string `json:"private_key"`
	ClientEmail string `json:"client_email"`
	TokenURI    string `json:"token_uri"`
}

// Provider implements notify.CredentialProvider against a service account.
// It caches the bearer across invocations and refreshes it before expiry.
type Provider struct {
	account    serviceAccount
	key        *rsa.PrivateKey
	httpClient *http.Client
	logger     *slog.Logger
	now        func() time.Time

	mu     sync.Mutex
	cached notify.Bearer
}

// NewProvider parses and validates the configured service-account JSON.
// Malformed key material fails here, at startup, not mid-dispatch.
func NewProvider(serviceAccountJSON []byte, logger *slog.Logger) (*Provider, error) {
	var account serviceAccount
	if err := json.Unmarshal(serviceAccountJSON, &account); err != nil {
		return nil, fmt.Errorf("parse service account JSON: %w", err)
	}
	if account.ClientEmail == "" || account.PrivateKey == "" {
		return nil, fmt.Errorf("service account JSON missing client_email or private_key")
	}
	if account.TokenURI == "" {
		account.TokenURI = defaultTokenURI
	}

	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(account.PrivateKey))
	if err != nil {
		return nil, fmt.Errorf("parse service account private key: %w", err)
	}

	return &Provider{
		account:    account,
		key:        key,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger.With("component", "GoogleAuth"),
		now:        time.Now,
	}, nil
}

// ProjectID returns the project the service account belongs to.
func (p *Provider) ProjectID() string {
	return p.account.ProjectID
}

// Acquire returns a bearer credential valid for at least the leeway window,
// exchanging a fresh assertion only when the cached one has gone stale.
func (p *Provider) Acquire(ctx context.Context) (notify.Bearer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cached.Value != "" && p.cached.ExpiresAt.After(p.now().Add(expiryLeeway)) {
		return p.cached, nil
	}

	assertion, err := p.signAssertion()
	if err != nil {
		return notify.Bearer{}, fmt.Errorf("sign credential assertion: %w", err)
	}

	bearer, err := p.exchange(ctx, assertion)
	if err != nil {
		return notify.Bearer{}, err
	}
	p.cached = bearer
	p.logger.Debug("Acquired push credential", "expires_at", bearer.ExpiresAt)
	return bearer, nil
}

// signAssertion builds the RS256-signed JWT the token endpoint accepts:
// issuer is the service account, audience the endpoint itself, lifetime 1h.
func (p *Provider) signAssertion() (string, error) {
	now := p.now()
	claims := jwt.MapClaims{
		"iss":   p.account.ClientEmail,
		"scope": messagingScope,
		"aud":   p.account.TokenURI,
		"iat":   now.Unix(),
		"exp":   now.Add(assertionLifetime).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(p.key)
}

func (p *Provider) exchange(ctx context.Context, assertion string) (notify.Bearer, error) {
	form := url.Values{
		"grant_type": {jwtBearerGrant},
		"assertion":  {assertion},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.account.TokenURI, strings.NewReader(form.Encode()))
	if err != nil {
		return notify.Bearer{}, fmt.Errorf("build token exchange request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return notify.Bearer{}, fmt.Errorf("token exchange call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return notify.Bearer{}, fmt.Errorf("token exchange rejected: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
		TokenType   string `json:"token_type"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return notify.Bearer{}, fmt.Errorf("decode token exchange response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return notify.Bearer{}, fmt.Errorf("token exchange returned no access token")
	}

	return notify.Bearer{
		Value:     tokenResp.AccessToken,
		ExpiresAt: p.now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second),
	}, nil
}

// TokenSource adapts the provider for clients speaking golang.org/x/oauth2,
// so the messaging SDK sends with the same bearer the engine acquired.
func (p *Provider) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &tokenSource{ctx: ctx, provider: p}
}

type tokenSource struct {
	ctx      context.Context
	provider *Provider
}

func (ts *tokenSource) Token() (*oauth2.Token, error) {
	bearer, err := ts.provider.Acquire(ts.ctx)
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{
		AccessToken: bearer.Value,
		TokenType:   "Bearer",
		Expiry:      bearer.ExpiresAt,
	}, nil
}

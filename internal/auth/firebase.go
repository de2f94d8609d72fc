package auth

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"
)

// GoogleCertsURL serves the x509 certificates Firebase signs ID tokens with.
const GoogleCertsURL = "https://www.googleapis.com/robot/v1/metadata/x509/securetoken@system.gserviceaccount.com"

// defaultCertTTL is used when the certificate response has no max-age.
const defaultCertTTL = time.Hour

// forcedRefreshInterval spaces out refreshes triggered by unknown kids while
// the cache is still fresh.
const forcedRefreshInterval = time.Minute

// FirebaseVerifier checks Firebase ID tokens locally against Google's
// published signing certificates.
//
// Certificates are cached until the Cache-Control max-age of the response
// that delivered them runs out. A token with an unknown kid forces a
// refresh, which covers key rotation inside the cache window. Forced
// refreshes happen at most once per forcedRefreshInterval, and concurrent
// fetches share one request.
type FirebaseVerifier struct {
	projectID string
	certsURL  string
	client    *http.Client
	now       func() time.Time
	fetches   singleflight.Group

	mu         sync.RWMutex
	keys       map[string]*rsa.PublicKey
	expires    time.Time
	lastForced time.Time
}

// FirebaseOption configures a FirebaseVerifier.
type FirebaseOption func(*FirebaseVerifier)

// WithCertsURL points the verifier at a different certificate endpoint.
func WithCertsURL(url string) FirebaseOption {
	return func(v *FirebaseVerifier) { v.certsURL = url }
}

// WithHTTPClient sets the client used to fetch certificates.
func WithHTTPClient(c *http.Client) FirebaseOption {
	return func(v *FirebaseVerifier) { v.client = c }
}

// WithClock replaces time.Now for expiry checks.
func WithClock(now func() time.Time) FirebaseOption {
	return func(v *FirebaseVerifier) { v.now = now }
}

func NewFirebaseVerifier(projectID string, opts ...FirebaseOption) (*FirebaseVerifier, error) {
	if projectID == "" {
		return nil, errors.New("auth: firebase project id is required")
	}
	v := &FirebaseVerifier{
		projectID: projectID,
		certsURL:  GoogleCertsURL,
		client:    &http.Client{Timeout: 10 * time.Second},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

type firebaseClaims struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Picture  string `json:"picture"`
	AuthTime int64  `json:"auth_time"`
	jwt.RegisteredClaims
}

// Verify checks an ID token the way Firebase documents it: RS256 with a
// known kid, issuer and audience tied to the project, not expired, issued in
// the past, a non-empty subject, and auth_time not in the future.
func (v *FirebaseVerifier) Verify(ctx context.Context, raw string) (*Identity, error) {
	keyFunc := func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("missing kid header")
		}
		return v.publicKey(ctx, kid)
	}

	token, err := jwt.ParseWithClaims(
		raw,
		&firebaseClaims{},
		keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer("https://securetoken.google.com/"+v.projectID),
		jwt.WithAudience(v.projectID),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: token expired", ErrInvalidToken)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	c, ok := token.Claims.(*firebaseClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%w: bad claims", ErrInvalidToken)
	}
	if c.Subject == "" || len(c.Subject) > 128 {
		return nil, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}
	if c.AuthTime > v.now().Unix() {
		return nil, fmt.Errorf("%w: auth_time in the future", ErrInvalidToken)
	}

	return &Identity{
		Subject:  c.Subject,
		Email:    c.Email,
		Name:     c.Name,
		Picture:  c.Picture,
		Provider: ProviderFirebase,
	}, nil
}

// publicKey returns the key for kid, refreshing the cache when it has
// expired or does not know kid.
func (v *FirebaseVerifier) publicKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	key, ok, fresh := v.cached(kid)
	if ok && fresh {
		return key, nil
	}
	if fresh && !v.allowForcedRefresh() {
		return nil, fmt.Errorf("unknown kid %q", kid)
	}

	_, err, _ := v.fetches.Do("certs", func() (any, error) {
		// Another caller may have refreshed while this one waited.
		if _, ok, fresh := v.cached(kid); ok && fresh {
			return nil, nil
		}
		return nil, v.refresh(ctx)
	})
	if err != nil {
		return nil, err
	}

	if key, ok, _ := v.cached(kid); ok {
		return key, nil
	}
	return nil, fmt.Errorf("unknown kid %q", kid)
}

func (v *FirebaseVerifier) cached(kid string) (key *rsa.PublicKey, ok, fresh bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	key, ok = v.keys[kid]
	return key, ok, v.now().Before(v.expires)
}

// allowForcedRefresh claims the forced refresh slot if the last one is at
// least forcedRefreshInterval old.
func (v *FirebaseVerifier) allowForcedRefresh() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	now := v.now()
	if !v.lastForced.IsZero() && now.Sub(v.lastForced) < forcedRefreshInterval {
		return false
	}
	v.lastForced = now
	return true
}

func (v *FirebaseVerifier) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.certsURL, nil)
	if err != nil {
		return fmt.Errorf("building cert request: %w", err)
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetching certs: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetching certs: unexpected status %d", resp.StatusCode)
	}

	var pems map[string]string
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&pems); err != nil {
		return fmt.Errorf("decoding certs: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(pems))
	for kid, p := range pems {
		key, err := parseCertKey(p)
		if err != nil {
			return fmt.Errorf("parsing cert %s: %w", kid, err)
		}
		keys[kid] = key
	}

	v.mu.Lock()
	v.keys = keys
	v.expires = v.now().Add(maxAge(resp.Header.Get("Cache-Control")))
	v.mu.Unlock()
	return nil
}

func parseCertKey(p string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(p))
	if block == nil {
		return nil, errors.New("no PEM block")
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, err
	}
	key, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("certificate key is not RSA")
	}
	return key, nil
}

// maxAge reads max-age from a Cache-Control header.
func maxAge(header string) time.Duration {
	for _, directive := range strings.Split(header, ",") {
		name, value, ok := strings.Cut(strings.TrimSpace(directive), "=")
		if !ok || !strings.EqualFold(name, "max-age") {
			continue
		}
		secs, err := strconv.Atoi(value)
		if err != nil || secs <= 0 {
			break
		}
		return time.Duration(secs) * time.Second
	}
	return defaultCertTTL
}

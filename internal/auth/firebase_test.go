package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testProject = "drink-journal-test"

// certServer serves one self-signed certificate under kid and counts hits.
type certServer struct {
	key  *rsa.PrivateKey
	kid  string
	hits atomic.Int32
	srv  *httptest.Server
}

func newCertServer(t *testing.T, maxAge string) *certServer {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "securetoken.system.gserviceaccount.com"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("creating certificate: %v", err)
	}
	certPEM := string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}))

	cs := &certServer{key: key, kid: "kid-1"}
	cs.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cs.hits.Add(1)
		w.Header().Set("Cache-Control", "public, max-age="+maxAge+", must-revalidate")
		_ = json.NewEncoder(w).Encode(map[string]string{cs.kid: certPEM})
	}))
	t.Cleanup(cs.srv.Close)
	return cs
}

func (cs *certServer) sign(t *testing.T, kid string, mutate func(c *firebaseClaims)) string {
	t.Helper()
	now := time.Now()
	c := &firebaseClaims{
		Email:    "ada@example.com",
		Name:     "Ada",
		AuthTime: now.Add(-time.Minute).Unix(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "firebase-uid-1",
			Issuer:    "https://securetoken.google.com/" + testProject,
			Audience:  jwt.ClaimStrings{testProject},
			IssuedAt:  jwt.NewNumericDate(now.Add(-time.Minute)),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
	if mutate != nil {
		mutate(c)
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, c)
	tok.Header["kid"] = kid
	s, err := tok.SignedString(cs.key)
	if err != nil {
		t.Fatalf("signing: %v", err)
	}
	return s
}

func newTestFirebaseVerifier(t *testing.T, cs *certServer) *FirebaseVerifier {
	t.Helper()
	v, err := NewFirebaseVerifier(testProject, WithCertsURL(cs.srv.URL), WithHTTPClient(cs.srv.Client()))
	if err != nil {
		t.Fatalf("NewFirebaseVerifier: %v", err)
	}
	return v
}

func TestFirebaseVerifier_Valid(t *testing.T) {
	cs := newCertServer(t, "3600")
	v := newTestFirebaseVerifier(t, cs)

	id, err := v.Verify(context.Background(), cs.sign(t, cs.kid, nil))
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if id.Subject != "firebase-uid-1" || id.Email != "ada@example.com" || id.Provider != ProviderFirebase {
		t.Errorf("Verify() = %+v", id)
	}
}

func TestFirebaseVerifier_Rejects(t *testing.T) {
	cs := newCertServer(t, "3600")
	v := newTestFirebaseVerifier(t, cs)

	tests := []struct {
		name   string
		kid    string
		mutate func(c *firebaseClaims)
	}{
		{"wrong audience", "kid-1", func(c *firebaseClaims) { c.Audience = jwt.ClaimStrings{"other-project"} }},
		{"wrong issuer", "kid-1", func(c *firebaseClaims) { c.Issuer = "https://accounts.google.com" }},
		{"expired", "kid-1", func(c *firebaseClaims) { c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute)) }},
		{"issued in the future", "kid-1", func(c *firebaseClaims) { c.IssuedAt = jwt.NewNumericDate(time.Now().Add(time.Hour)) }},
		{"empty subject", "kid-1", func(c *firebaseClaims) { c.Subject = "" }},
		{"auth_time in the future", "kid-1", func(c *firebaseClaims) { c.AuthTime = time.Now().Add(time.Hour).Unix() }},
		{"unknown kid", "kid-unknown", nil},
		{"missing kid", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Verify(context.Background(), cs.sign(t, tt.kid, tt.mutate))
			if !errors.Is(err, ErrInvalidToken) {
				t.Errorf("Verify() error = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestFirebaseVerifier_RejectsHS256(t *testing.T) {
	cs := newCertServer(t, "3600")
	v := newTestFirebaseVerifier(t, cs)
	ts := newTestTokenService(t)

	token, _ := ts.Generate(Identity{Subject: "u"})
	if _, err := v.Verify(context.Background(), token); err == nil {
		t.Fatal("Verify() accepted an HS256 token")
	}
	if cs.hits.Load() != 0 {
		t.Errorf("cert endpoint hit %d times for a wrong-alg token, want 0", cs.hits.Load())
	}
}

func TestFirebaseVerifier_CachesCerts(t *testing.T) {
	cs := newCertServer(t, "3600")
	v := newTestFirebaseVerifier(t, cs)
	token := cs.sign(t, cs.kid, nil)

	for i := 0; i < 3; i++ {
		if _, err := v.Verify(context.Background(), token); err != nil {
			t.Fatalf("Verify() #%d error = %v", i, err)
		}
	}
	if got := cs.hits.Load(); got != 1 {
		t.Errorf("cert endpoint hits = %d, want 1", got)
	}
}

func TestFirebaseVerifier_RefreshesAfterMaxAge(t *testing.T) {
	cs := newCertServer(t, "60")
	clock := time.Now()
	v, _ := NewFirebaseVerifier(testProject,
		WithCertsURL(cs.srv.URL),
		WithHTTPClient(cs.srv.Client()),
		WithClock(func() time.Time { return clock }),
	)
	token := cs.sign(t, cs.kid, nil)

	if _, err := v.Verify(context.Background(), token); err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	clock = clock.Add(2 * time.Minute)
	if _, err := v.Verify(context.Background(), token); err != nil {
		t.Fatalf("Verify() after max-age error = %v", err)
	}
	if got := cs.hits.Load(); got != 2 {
		t.Errorf("cert endpoint hits = %d, want 2", got)
	}
}

func TestFirebaseVerifier_BoundsUnknownKidRefreshes(t *testing.T) {
	cs := newCertServer(t, "3600")
	clock := time.Now()
	v, _ := NewFirebaseVerifier(testProject,
		WithCertsURL(cs.srv.URL),
		WithHTTPClient(cs.srv.Client()),
		WithClock(func() time.Time { return clock }),
	)
	ctx := context.Background()

	if _, err := v.Verify(ctx, cs.sign(t, cs.kid, nil)); err != nil {
		t.Fatalf("Verify() error = %v", err)
	}

	for i := 0; i < 50; i++ {
		token := cs.sign(t, fmt.Sprintf("bogus-%d", i), nil)
		if _, err := v.Verify(ctx, token); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("Verify(bogus-%d) error = %v, want ErrInvalidToken", i, err)
		}
	}
	if got := cs.hits.Load(); got != 2 {
		t.Errorf("cert endpoint hits after 50 unknown kids = %d, want 2", got)
	}

	clock = clock.Add(forcedRefreshInterval)
	if _, err := v.Verify(ctx, cs.sign(t, "bogus-late", nil)); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("Verify(bogus-late) error = %v, want ErrInvalidToken", err)
	}
	if got := cs.hits.Load(); got != 3 {
		t.Errorf("cert endpoint hits after the interval = %d, want 3", got)
	}

	// Known keys keep verifying while refreshes are held back.
	if _, err := v.Verify(ctx, cs.sign(t, cs.kid, nil)); err != nil {
		t.Errorf("Verify() with known kid error = %v", err)
	}
}

func TestFirebaseVerifier_ConcurrentColdStartFetchesOnce(t *testing.T) {
	cs := newCertServer(t, "3600")
	v := newTestFirebaseVerifier(t, cs)
	token := cs.sign(t, cs.kid, nil)

	var wg sync.WaitGroup
	errs := make([]error, 20)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = v.Verify(context.Background(), token)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("Verify() #%d error = %v", i, err)
		}
	}
	if got := cs.hits.Load(); got != 1 {
		t.Errorf("cert endpoint hits = %d, want 1", got)
	}
}

func TestNewFirebaseVerifier_RequiresProject(t *testing.T) {
	if _, err := NewFirebaseVerifier(""); err == nil {
		t.Fatal("NewFirebaseVerifier(\"\") should fail")
	}
}

func TestMaxAge(t *testing.T) {
	tests := []struct {
		header string
		want   time.Duration
	}{
		{"public, max-age=19302, must-revalidate, no-transform", 19302 * time.Second},
		{"max-age=60", time.Minute},
		{"no-cache", defaultCertTTL},
		{"max-age=abc", defaultCertTTL},
		{"", defaultCertTTL},
	}
	for _, tt := range tests {
		if got := maxAge(tt.header); got != tt.want {
			t.Errorf("maxAge(%q) = %v, want %v", tt.header, got, tt.want)
		}
	}
}

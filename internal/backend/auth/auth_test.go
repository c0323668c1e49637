package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runIdentity(t *testing.T, cfg Config, setHeaders func(*http.Request)) (string, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	setHeaders(req)
	c := e.NewContext(req, httptest.NewRecorder())

	var seen string
	err := Identity(cfg)(func(c echo.Context) error {
		seen = UserID(c)
		return nil
	})(c)
	return seen, err
}

func TestIdentity_Header(t *testing.T) {
	user, err := runIdentity(t, Config{}, func(r *http.Request) { r.Header.Set("X-User-Id", "alice") })
	require.NoError(t, err)
	assert.Equal(t, "alice", user)

	_, err = runIdentity(t, Config{}, func(r *http.Request) {})
	assert.ErrorIs(t, err, ErrUnauthenticated)

	user, err = runIdentity(t, Config{UserHeader: "X-Owner"}, func(r *http.Request) { r.Header.Set("X-Owner", "bob") })
	require.NoError(t, err)
	assert.Equal(t, "bob", user)
}

func TestIdentity_Bearer(t *testing.T) {
	cfg := Config{JWTSecret: "s3cret"}
	token, err := IssueToken("s3cret", "carol", time.Hour)
	require.NoError(t, err)

	user, err := runIdentity(t, cfg, func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) })
	require.NoError(t, err)
	assert.Equal(t, "carol", user)

	// the header is ignored once JWTs are enabled
	_, err = runIdentity(t, cfg, func(r *http.Request) { r.Header.Set("X-User-Id", "carol") })
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestIdentity_BearerRejects(t *testing.T) {
	cfg := Config{JWTSecret: "s3cret"}
	wrongKey, _ := IssueToken("other", "carol", time.Hour)
	expired, _ := IssueToken("s3cret", "carol", -time.Minute)
	noSub, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()}).SignedString([]byte("s3cret"))
	hs512, _ := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{"sub": "carol"}).SignedString([]byte("s3cret"))

	for name, header := range map[string]string{
		"wrong key":  "Bearer " + wrongKey,
		"expired":    "Bearer " + expired,
		"no subject": "Bearer " + noSub,
		"wrong alg":  "Bearer " + hs512,
		"basic auth": "Basic Zm9vOmJhcg==",
		"garbage":    "Bearer not.a.jwt",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := runIdentity(t, cfg, func(r *http.Request) { r.Header.Set("Authorization", header) })
			assert.ErrorIs(t, err, ErrUnauthenticated)
		})
	}
}

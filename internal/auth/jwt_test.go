package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parking-lpr-service/internal/config"
)

func newTestJWT() *JWTService {
	return NewJWTService(config.AuthConfig{
		JWTSecret:   "test-secret",
		TokenTTLMin: 60,
		Users: []config.UserConfig{
			{Username: "admin", Password: "123456", Role: RoleAdmin},
			{Username: "staff", Password: "123456"}, // role defaults to staff
		},
	})
}

func TestAuthenticate(t *testing.T) {
	j := newTestJWT()

	token, err := j.Authenticate("admin", "123456")
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	claims, err := j.parseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims["sub"])
	assert.Equal(t, RoleAdmin, claims["role"])

	_, err = j.Authenticate("admin", "wrong")
	assert.ErrorIs(t, err, ErrBadCredentials)
	_, err = j.Authenticate("ghost", "123456")
	assert.ErrorIs(t, err, ErrBadCredentials)
}

func TestDefaultRoleIsStaff(t *testing.T) {
	j := newTestJWT()

	token, err := j.Authenticate("staff", "123456")
	require.NoError(t, err)
	claims, err := j.parseToken(token)
	require.NoError(t, err)
	assert.Equal(t, RoleStaff, claims["role"])
}

func protectedRouter(j *JWTService, role string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	group := r.Group("/")
	group.Use(Middleware(j))
	if role != "" {
		group.Use(RequireRole(role))
	}
	group.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r
}

func TestMiddleware(t *testing.T) {
	j := newTestJWT()
	r := protectedRouter(j, "")

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer not.a.token", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/ping", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.want, w.Code)
		})
	}

	token, err := j.Authenticate("staff", "123456")
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRequireRole(t *testing.T) {
	j := newTestJWT()
	r := protectedRouter(j, RoleAdmin)

	staffToken, err := j.Authenticate("staff", "123456")
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Authorization", "Bearer "+staffToken)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	adminToken, err := j.Authenticate("admin", "123456")
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

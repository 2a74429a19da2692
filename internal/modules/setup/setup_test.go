package setup

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/dvinyl/core/internal/database/databasetest"
	"github.com/dvinyl/core/internal/middleware"
	"github.com/dvinyl/core/internal/modules/auth/user"
	"github.com/dvinyl/core/internal/pkg/jwt"
	"github.com/dvinyl/core/internal/pkg/session"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func init() { gin.SetMode(gin.TestMode) }

func newRouter(t *testing.T) (*gin.Engine, *user.Service, *jwt.Service) {
	t.Helper()
	users := user.NewService(databasetest.Open(t), user.WithHashCost(bcrypt.MinCost))
	tokens, err := jwt.New("test-secret")
	require.NoError(t, err)

	r := gin.New()
	r.Use(middleware.Locale(), middleware.Installation(users, nil))
	NewHandler(users, tokens, session.Cookie{MaxAge: jwt.DefaultTTL}).RegisterRoutes(&r.RouterGroup)
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, "home") })
	return r, users, tokens
}

func postSetup(r *gin.Engine, username, email, password string) *httptest.ResponseRecorder {
	form := url.Values{"username": {username}, "email": {email}, "password": {password}}
	req := httptest.NewRequest(http.MethodPost, "/setup", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func get(r *gin.Engine, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestFreshInstallRedirectsToSetup(t *testing.T) {
	r, _, _ := newRouter(t)

	rec := get(r, "/")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/setup", rec.Header().Get("Location"))

	rec = get(r, "/setup")
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]bool
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body["isInit"])
}

func TestSetupCreatesAdminAndSignsIn(t *testing.T) {
	r, users, tokens := newRouter(t)

	rec := postSetup(r, "root", "Root@Example.com", "first-pw")
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))

	u, err := users.FindByEmail(context.Background(), "root@example.com")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.True(t, u.IsAdmin)
	assert.NotEqual(t, "first-pw", u.Password)

	var token string
	for _, c := range rec.Result().Cookies() {
		if c.Name == session.CookieName {
			token = c.Value
		}
	}
	claims, err := tokens.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.UserID)
	assert.False(t, u.IssuedBeforeLastChange(claims.IssuedAtTime()))

	assert.Equal(t, http.StatusOK, get(r, "/").Code)
}

func TestSetupRejectedOnceInstalled(t *testing.T) {
	r, users, _ := newRouter(t)
	require.Equal(t, http.StatusFound, postSetup(r, "root", "root@example.com", "first-pw").Code)

	rec := postSetup(r, "intruder", "intruder@example.com", "second-pw")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, rec.Result().Cookies())

	n, err := users.Count(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	rec = get(r, "/setup")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
}

// countBarrier lets every request pass the handler's install check before
// any of them creates an account.
type countBarrier struct {
	*user.Service
	arrived sync.WaitGroup
}

func (b *countBarrier) Count(ctx context.Context) (int64, error) {
	n, err := b.Service.Count(ctx)
	b.arrived.Done()
	b.arrived.Wait()
	return n, err
}

func TestConcurrentSetupInstallsOneAdmin(t *testing.T) {
	users := user.NewService(databasetest.Open(t), user.WithHashCost(bcrypt.MinCost))
	tokens, err := jwt.New("test-secret")
	require.NoError(t, err)

	gated := &countBarrier{Service: users}
	gated.arrived.Add(2)
	r := gin.New()
	r.Use(middleware.Locale())
	NewHandler(gated, tokens, session.Cookie{MaxAge: jwt.DefaultTTL}).RegisterRoutes(&r.RouterGroup)

	codes := make(chan int, 2)
	for _, name := range []string{"owner", "intruder"} {
		go func(name string) {
			codes <- postSetup(r, name, name+"@example.com", "long-enough-pw").Code
		}(name)
	}
	got := []int{<-codes, <-codes}
	assert.ElementsMatch(t, []int{http.StatusFound, http.StatusForbidden}, got)

	n, err := users.Count(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	admin, err := users.FirstAdmin(context.Background())
	require.NoError(t, err)
	require.NotNil(t, admin)
}

func TestSetupValidatesInput(t *testing.T) {
	r, users, _ := newRouter(t)

	assert.Equal(t, http.StatusBadRequest, postSetup(r, "", "root@example.com", "first-pw").Code)
	assert.Equal(t, http.StatusBadRequest, postSetup(r, "root", "root@example.com", "123").Code)

	n, err := users.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

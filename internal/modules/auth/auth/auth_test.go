package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dvinyl/core/internal/database/databasetest"
	"github.com/dvinyl/core/internal/middleware"
	"github.com/dvinyl/core/internal/models"
	"github.com/dvinyl/core/internal/modules/auth/user"
	"github.com/dvinyl/core/internal/modules/system/loginlog"
	"github.com/dvinyl/core/internal/pkg/geo"
	"github.com/dvinyl/core/internal/pkg/jwt"
	"github.com/dvinyl/core/internal/pkg/session"
	"github.com/dvinyl/core/internal/pkg/throttle"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/language"
	"gorm.io/gorm"
)

func init() { gin.SetMode(gin.TestMode) }

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// countingVerifier records how often the credential store is consulted.
type countingVerifier struct {
	Verifier
	calls int
	err   error
}

func (v *countingVerifier) Verify(ctx context.Context, email, password string) (*models.UserModel, error) {
	v.calls++
	if v.err != nil {
		return nil, v.err
	}
	return v.Verifier.Verify(ctx, email, password)
}

type failingRecorder struct{}

func (failingRecorder) Record(context.Context, loginlog.Entry) error { return errors.New("disk full") }

type fixedLocator struct{}

func (fixedLocator) Lookup(string) geo.Location { return geo.Location{Country: "FR", City: "Lyon"} }

type fixture struct {
	db       *gorm.DB
	users    *user.Service
	verifier *countingVerifier
	tokens   *jwt.Service
	clk      *clock
	router   *gin.Engine
}

func newFixture(t *testing.T, recorder Recorder) *fixture {
	t.Helper()
	db := databasetest.Open(t)
	clk := &clock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	users := user.NewService(db, user.WithHashCost(bcrypt.MinCost), user.WithClock(clk.Now))
	_, err := users.Create(context.Background(), user.CreateInput{Username: "alice", Email: "alice@example.com", Password: "correct-pw"})
	require.NoError(t, err)

	tokens, err := jwt.New("test-secret", jwt.WithClock(clk.Now))
	require.NoError(t, err)
	if recorder == nil {
		recorder = loginlog.NewService(db)
	}

	verifier := &countingVerifier{Verifier: users}
	svc := NewService(verifier, throttle.NewMemory(throttle.WithClock(clk.Now)), tokens, recorder, WithLocator(fixedLocator{}))

	r := gin.New()
	r.Use(middleware.Locale(), middleware.Identify(users, tokens, session.Cookie{MaxAge: jwt.DefaultTTL}, nil))
	NewHandler(svc, session.Cookie{MaxAge: jwt.DefaultTTL}).RegisterRoutes(&r.RouterGroup)

	return &fixture{db: db, users: users, verifier: verifier, tokens: tokens, clk: clk, router: r}
}

func (f *fixture) login(t *testing.T, email, password string) (*httptest.ResponseRecorder, loginErrorResponse) {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"email": email, "password": password})
	req := httptest.NewRequest(http.MethodPost, "/login?lng=en", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "test-agent")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	var errs loginErrorResponse
	if rec.Code != http.StatusOK {
		_ = json.Unmarshal(rec.Body.Bytes(), &errs)
	}
	return rec, errs
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == session.CookieName {
			return c
		}
	}
	return nil
}

func TestLoginSuccess(t *testing.T) {
	f := newFixture(t, nil)

	rec, _ := f.login(t, "Alice@Example.com", "correct-pw")
	require.Equal(t, http.StatusOK, rec.Code)

	var body loginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	u, err := f.users.FindByEmail(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, body.User)

	c := sessionCookie(rec)
	require.NotNil(t, c)
	assert.True(t, c.HttpOnly)
	claims, err := f.tokens.Parse(c.Value)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.UserID)

	var logs []models.LoginLogModel
	require.NoError(t, f.db.Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, models.LoginStatusSuccess, logs[0].Status)
	assert.Equal(t, "alice", logs[0].Username)
	assert.Equal(t, "FR", logs[0].Country)
	assert.Equal(t, "test-agent", logs[0].UserAgent)
}

func TestLoginDoesNotRevealWhichPartFailed(t *testing.T) {
	f := newFixture(t, nil)

	unknown, unknownErrs := f.login(t, "nobody@example.com", "correct-pw")
	wrong, wrongErrs := f.login(t, "alice@example.com", "wrong-pw")

	assert.Equal(t, http.StatusBadRequest, unknown.Code)
	assert.Equal(t, http.StatusBadRequest, wrong.Code)
	assert.Equal(t, "Incorrect email or password", unknownErrs.Errors.Login)
	assert.Equal(t, unknownErrs, wrongErrs)
}

func TestLoginBlocksAfterFourFailures(t *testing.T) {
	f := newFixture(t, nil)

	for i := 0; i < throttle.MaxAttempts-1; i++ {
		rec, _ := f.login(t, "alice@example.com", "wrong-pw")
		require.Equal(t, http.StatusBadRequest, rec.Code)
	}

	rec, errs := f.login(t, "alice@example.com", "wrong-pw")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, 300, errs.RetryAfter)
	assert.Equal(t, "300", rec.Header().Get("Retry-After"))
	assert.Contains(t, errs.Errors.Login, "300")

	calls := f.verifier.calls
	f.clk.Advance(time.Minute)
	rec, errs = f.login(t, "alice@example.com", "correct-pw")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, 240, errs.RetryAfter)
	assert.Equal(t, calls, f.verifier.calls, "blocked attempts must not reach the credential store")
	assert.Nil(t, sessionCookie(rec))

	f.clk.Advance(throttle.BlockWindow)
	rec, _ = f.login(t, "alice@example.com", "correct-pw")
	require.Equal(t, http.StatusOK, rec.Code)

	// the record was cleared: one failure does not block again
	rec, _ = f.login(t, "alice@example.com", "wrong-pw")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginThrottleIsPerIdentifier(t *testing.T) {
	f := newFixture(t, nil)
	for i := 0; i < throttle.MaxAttempts; i++ {
		f.login(t, "mallory@example.com", "guess")
	}
	rec, _ := f.login(t, "alice@example.com", "correct-pw")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLoginLogsFailures(t *testing.T) {
	f := newFixture(t, nil)
	f.login(t, "alice@example.com", "wrong-pw")

	var logs []models.LoginLogModel
	require.NoError(t, f.db.Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, models.LoginStatusFailed, logs[0].Status)
	assert.Nil(t, logs[0].UserID)
	assert.Equal(t, "alice@example.com", logs[0].Email)
}

func TestLoginLogsUnknownCityInRequestLanguage(t *testing.T) {
	f := newFixture(t, nil)
	svc := NewService(f.users, throttle.NewMemory(), f.tokens, loginlog.NewService(f.db), WithLocator(geo.Nop{}))

	_, err := svc.Login(context.Background(), LoginInput{Email: "alice@example.com", Password: "correct-pw", IP: "198.51.100.4", Locale: language.English})
	require.NoError(t, err)
	_, err = svc.Login(context.Background(), LoginInput{Email: "alice@example.com", Password: "wrong-pw", IP: "198.51.100.4", Locale: language.French})
	require.Error(t, err)

	var logs []models.LoginLogModel
	require.NoError(t, f.db.Find(&logs).Error)
	require.Len(t, logs, 2)
	cities := map[string]string{logs[0].Status: logs[0].City, logs[1].Status: logs[1].City}
	assert.Equal(t, "Unknown", cities[models.LoginStatusSuccess])
	assert.Equal(t, "Inconnue", cities[models.LoginStatusFailed])
	assert.Equal(t, geo.UnknownCountry, logs[0].Country)
}

func TestLoginSurvivesLogWriteFailure(t *testing.T) {
	f := newFixture(t, failingRecorder{})
	rec, _ := f.login(t, "alice@example.com", "correct-pw")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLoginStorageFailureIsGeneric(t *testing.T) {
	f := newFixture(t, nil)
	f.verifier.err = errors.New("dial tcp 10.1.1.1:3306: connection refused")

	for i := 0; i < throttle.MaxAttempts; i++ {
		rec, _ := f.login(t, "alice@example.com", "correct-pw")
		require.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "10.1.1.1")
	}

	// storage failures do not count as attempts
	f.verifier.err = nil
	rec, _ := f.login(t, "alice@example.com", "correct-pw")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLoginRequiresFields(t *testing.T) {
	f := newFixture(t, nil)
	rec, _ := f.login(t, "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, f.verifier.calls)
}

func TestTokenRevokedByPasswordChange(t *testing.T) {
	f := newFixture(t, nil)
	rec, _ := f.login(t, "alice@example.com", "correct-pw")
	require.Equal(t, http.StatusOK, rec.Code)
	cookie := sessionCookie(rec)
	require.NotNil(t, cookie)

	whoami := func() map[string]any {
		req := httptest.NewRequest(http.MethodGet, "/login", nil)
		req.AddCookie(&http.Cookie{Name: session.CookieName, Value: cookie.Value})
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)
		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		return body
	}
	assert.Equal(t, true, whoami()["authenticated"])

	u, err := f.users.FindByEmail(context.Background(), "alice@example.com")
	require.NoError(t, err)
	require.NoError(t, f.users.ChangePassword(context.Background(), u.ID, "correct-pw", "another-pw"))

	assert.Equal(t, false, whoami()["authenticated"])
}

func TestLoginInSameSecondAsPasswordChange(t *testing.T) {
	f := newFixture(t, nil)
	u, err := f.users.FindByEmail(context.Background(), "alice@example.com")
	require.NoError(t, err)

	f.clk.Advance(200 * time.Millisecond)
	require.NoError(t, f.users.ChangePassword(context.Background(), u.ID, "correct-pw", "another-pw"))
	f.clk.Advance(300 * time.Millisecond)

	rec, _ := f.login(t, "alice@example.com", "another-pw")
	require.Equal(t, http.StatusOK, rec.Code)
	cookie := sessionCookie(rec)
	require.NotNil(t, cookie)

	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: cookie.Value})
	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["authenticated"])
}

func TestLogoutClearsCookie(t *testing.T) {
	f := newFixture(t, nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/logout", nil))

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
	c := sessionCookie(rec)
	require.NotNil(t, c)
	assert.Less(t, c.MaxAge, 0)
}

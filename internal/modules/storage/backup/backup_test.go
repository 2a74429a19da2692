package backup

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	appcfg "github.com/dvinyl/core/internal/config"
	"github.com/dvinyl/core/internal/database/databasetest"
	"github.com/dvinyl/core/internal/middleware"
	"github.com/dvinyl/core/internal/models"
	"github.com/dvinyl/core/internal/modules/auth/user"
	"github.com/dvinyl/core/internal/modules/system/loginlog"
	"github.com/dvinyl/core/internal/pkg/session"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func init() { gin.SetMode(gin.TestMode) }

var fixedNow = time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC)

func seed(t *testing.T, db *gorm.DB) (*models.UserModel, *models.AlbumModel) {
	t.Helper()
	ctx := context.Background()
	users := user.NewService(db, user.WithHashCost(bcrypt.MinCost))
	admin, err := users.Create(ctx, user.CreateInput{Username: "root", Email: "root@example.com", Password: "secret-pw", IsAdmin: true})
	require.NoError(t, err)
	_, err = users.Create(ctx, user.CreateInput{Username: "bob", Email: "bob@example.com", Password: "other-pw"})
	require.NoError(t, err)

	owner := admin.ID
	album := &models.AlbumModel{
		Title: "Moon Safari", Artist: "Air", Year: "1998", MediaType: models.MediaVinyl,
		Tracklist: []models.Track{{Position: "A1", Title: "La Femme d'Argent", Duration: "7:11"}},
		Location:  "Shelf A", DiscogsID: 1234, AddedAt: fixedNow.Add(-time.Hour), OwnerID: &owner,
	}
	require.NoError(t, db.Create(album).Error)
	require.NoError(t, loginlog.NewService(db).Record(ctx, loginlog.Entry{
		UserID: admin.ID, Username: "root", Email: "root@example.com", IP: "203.0.113.5",
		Country: "FR", UserAgent: "test", Status: models.LoginStatusSuccess,
	}))
	return admin, album
}

func TestExportImportRoundTrip(t *testing.T) {
	src := databasetest.Open(t)
	admin, album := seed(t, src)

	body, err := NewService(src, WithClock(func() time.Time { return fixedNow })).ExportJSON(context.Background())
	require.NoError(t, err)
	assert.Contains(t, string(body), `"version": "1.0.0"`)
	assert.Contains(t, string(body), admin.Password)

	doc, err := Decode(body)
	require.NoError(t, err)

	dst := databasetest.Open(t)
	res, err := NewService(dst).Import(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, ImportResult{Users: 2, Albums: 1, Logs: 1}, *res)

	var gotAdmin models.UserModel
	require.NoError(t, dst.First(&gotAdmin, "id = ?", admin.ID).Error)
	assert.Equal(t, admin.Username, gotAdmin.Username)
	assert.Equal(t, admin.Email, gotAdmin.Email)
	assert.Equal(t, admin.Password, gotAdmin.Password)
	assert.True(t, gotAdmin.IsAdmin)
	assert.False(t, gotAdmin.LastChange.Before(admin.LastChange))

	// the restored hash still verifies
	_, err = user.NewService(dst).Verify(context.Background(), "root@example.com", "secret-pw")
	assert.NoError(t, err)

	var gotAlbum models.AlbumModel
	require.NoError(t, dst.First(&gotAlbum, "id = ?", album.ID).Error)
	assert.Equal(t, album.Title, gotAlbum.Title)
	assert.Equal(t, album.Tracklist, gotAlbum.Tracklist)
	assert.Equal(t, album.DiscogsID, gotAlbum.DiscogsID)
	require.NotNil(t, gotAlbum.OwnerID)
	assert.Equal(t, admin.ID, *gotAlbum.OwnerID)
	assert.True(t, album.AddedAt.Equal(gotAlbum.AddedAt))

	var logs []models.LoginLogModel
	require.NoError(t, dst.Find(&logs).Error)
	require.Len(t, logs, 1)
	require.NotNil(t, logs[0].UserID)
	assert.Equal(t, admin.ID, *logs[0].UserID)
	assert.Equal(t, "203.0.113.5", logs[0].IP)
}

func TestImportReplacesExistingData(t *testing.T) {
	db := databasetest.Open(t)
	seed(t, db)

	doc, err := Decode([]byte(`{"users":[{"id":"u-1","username":"solo","email":"SOLO@example.com","password":"$2a$04$x"}]}`))
	require.NoError(t, err)
	_, err = NewService(db).Import(context.Background(), doc)
	require.NoError(t, err)

	var users []models.UserModel
	require.NoError(t, db.Find(&users).Error)
	require.Len(t, users, 1)
	assert.Equal(t, "solo@example.com", users[0].Email)
	assert.Equal(t, models.DefaultTheme, users[0].Theme)

	var n int64
	require.NoError(t, db.Model(&models.AlbumModel{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestImportSkipsDuplicates(t *testing.T) {
	db := databasetest.Open(t)
	doc, err := Decode([]byte(`{"users":[
		{"id":"u-1","username":"a","email":"a@example.com","password":"h"},
		{"id":"u-2","username":"a","email":"b@example.com","password":"h"}
	]}`))
	require.NoError(t, err)

	res, err := NewService(db).Import(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Users)
	assert.Equal(t, 1, res.Skipped)
}

const legacyDocument = `{
  "users": [{
    "_id": {"$oid": "65a1b2c3d4e5f60718293a4b"},
    "username": "legacy",
    "email": "legacy@example.com",
    "password": "$2b$10$abcdefghijklmnopqrstuv",
    "isAdmin": true,
    "lastChange": {"$date": "2023-11-02T08:30:00.000Z"},
    "__v": 0
  }],
  "albums": [{
    "_id": "65a1b2c3d4e5f60718293a4c",
    "title": "Tago Mago",
    "artist": "Can",
    "media_type": "vinyl",
    "tracklist": [{"_id": {"$oid": "65a1b2c3d4e5f60718293a4d"}, "position": "A1", "title": "Paperhouse"}],
    "discogs_id": 98765,
    "added_at": {"$date": {"$numberLong": "1700000000000"}},
    "owner": {"$oid": "65a1b2c3d4e5f60718293a4b"},
    "__v": 0
  }],
  "logs": [{
    "_id": "65a1b2c3d4e5f60718293a4e",
    "user": "65a1b2c3d4e5f60718293a4b",
    "userAgent": "Mozilla/5.0",
    "status": "failed",
    "timestamp": "2023-11-02T08:31:00.000Z"
  }],
  "metadata": {"version": "1.0.0", "date": "2023-11-03T00:00:00.000Z"}
}`

func TestDecodeLegacyDocument(t *testing.T) {
	doc, err := Decode([]byte(legacyDocument))
	require.NoError(t, err)

	require.Len(t, doc.Users, 1)
	u := doc.Users[0]
	assert.Equal(t, "65a1b2c3d4e5f60718293a4b", u.ID)
	assert.True(t, u.IsAdmin)
	assert.Equal(t, time.Date(2023, 11, 2, 8, 30, 0, 0, time.UTC), u.LastChange.UTC())

	require.Len(t, doc.Albums, 1)
	a := doc.Albums[0]
	require.NotNil(t, a.OwnerID)
	assert.Equal(t, u.ID, *a.OwnerID)
	assert.Equal(t, int64(98765), a.DiscogsID)
	assert.Equal(t, time.UnixMilli(1700000000000).UTC(), a.AddedAt.UTC())
	assert.Equal(t, []models.Track{{Position: "A1", Title: "Paperhouse"}}, a.Tracklist)

	require.Len(t, doc.Logs, 1)
	require.NotNil(t, doc.Logs[0].UserID)
	assert.Equal(t, u.ID, *doc.Logs[0].UserID)
	assert.Equal(t, "Mozilla/5.0", doc.Logs[0].UserAgent)

	_, err = NewService(databasetest.Open(t)).Import(context.Background(), doc)
	assert.NoError(t, err)
}

func TestImportRevokesEarlierSessions(t *testing.T) {
	doc, err := Decode([]byte(legacyDocument))
	require.NoError(t, err)

	db := databasetest.Open(t)
	importedAt := fixedNow.Add(750 * time.Millisecond)
	_, err = NewService(db, WithClock(func() time.Time { return importedAt })).Import(context.Background(), doc)
	require.NoError(t, err)

	var u models.UserModel
	require.NoError(t, db.First(&u, "id = ?", "65a1b2c3d4e5f60718293a4b").Error)
	assert.Equal(t, fixedNow.Unix(), u.LastChange.Unix())

	future := fixedNow.Add(24 * time.Hour)
	assert.Equal(t, future, notBefore(future, importedAt))
}

func TestDecodeRejectsInvalidDocuments(t *testing.T) {
	cases := map[string]string{
		"not json":        `nope`,
		"array":           `[]`,
		"missing users":   `{"albums":[]}`,
		"null users":      `{"users":null}`,
		"users object":    `{"users":{"a":1}}`,
		"bad object id":   `{"users":[{"_id":{"$oid":"zz"}}]}`,
		"bad date":        `{"users":[{"lastChange":"yesterday"}]}`,
		"empty wrapper":   `{"backupData":""}`,
		"wrapped garbage": `{"backupData":"{oops"}`,
	}
	for name, payload := range cases {
		_, err := Decode([]byte(payload))
		assert.ErrorIs(t, err, ErrInvalidDocument, name)
	}
}

func TestDecodeWrappedDocument(t *testing.T) {
	inner := `{"users":[{"id":"u-1","username":"a","email":"a@example.com"}]}`
	quoted, err := json.Marshal(inner)
	require.NoError(t, err)

	for _, payload := range []string{
		`{"backupData":` + string(quoted) + `}`,
		`{"backupData":` + inner + `}`,
	} {
		doc, err := Decode([]byte(payload))
		require.NoError(t, err)
		require.Len(t, doc.Users, 1)
		assert.Equal(t, "u-1", doc.Users[0].ID)
	}
}

type fakeUploader struct {
	key     string
	payload []byte
}

func (f *fakeUploader) Upload(_ context.Context, key string, payload []byte, _ string) error {
	f.key = key
	f.payload = payload
	return nil
}

func newRouter(db *gorm.DB, as *models.UserModel, up Uploader) *gin.Engine {
	users := user.NewService(db)
	svc := NewService(db, WithClock(func() time.Time { return fixedNow }))
	opts := []HandlerOption{}
	if up != nil {
		opts = append(opts, WithUploader(up, "backups/"))
	}
	r := gin.New()
	r.Use(middleware.WithIdentity(middleware.NewIdentity(as)))
	NewHandler(svc, session.Cookie{}, opts...).RegisterRoutes(&r.RouterGroup,
		middleware.RequireAuthenticated(), middleware.RequireAdministrator(),
		middleware.RequireAdministratorOnceInstalled(users, nil))
	return r
}

func postJSON(r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: "old"})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestImportAnonymousOnEmptyStore(t *testing.T) {
	db := databasetest.Open(t)
	rec := postJSON(newRouter(db, nil, nil), "/backup/import", legacyDocument)
	require.Equal(t, http.StatusOK, rec.Code)

	var cleared bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == session.CookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	assert.True(t, cleared)
}

func TestImportRequiresAdminOnceInstalled(t *testing.T) {
	db := databasetest.Open(t)
	admin, _ := seed(t, db)

	rec := postJSON(newRouter(db, nil, nil), "/backup/import", legacyDocument)
	assert.Equal(t, http.StatusFound, rec.Code)

	var n int64
	require.NoError(t, db.Model(&models.UserModel{}).Count(&n).Error)
	assert.EqualValues(t, 2, n)

	rec = postJSON(newRouter(db, admin, nil), "/backup/import", `{"albums":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Invalid backup data"}`, rec.Body.String())

	rec = postJSON(newRouter(db, admin, nil), "/backup/import", legacyDocument)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestExportRoute(t *testing.T) {
	db := databasetest.Open(t)
	admin, _ := seed(t, db)

	rec := httptest.NewRecorder()
	newRouter(db, admin, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/backup/export", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "attachment; filename=dvinyl_backup_2024-03-09.json", rec.Header().Get("Content-Disposition"))

	var doc Document
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Len(t, doc.Users, 2)
}

func TestUploadToS3Route(t *testing.T) {
	db := databasetest.Open(t)
	admin, _ := seed(t, db)

	rec := postJSON(newRouter(db, admin, nil), "/backup/upload-to-s3", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	up := &fakeUploader{}
	rec = postJSON(newRouter(db, admin, up), "/backup/upload-to-s3", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "backups/2024/03/dvinyl_backup_2024-03-09.json", up.key)
	assert.Contains(t, string(up.payload), `"users"`)
}

func TestS3UploaderPutsObject(t *testing.T) {
	var (
		mu     sync.Mutex
		method string
		path   string
		body   string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		method, path, body = r.Method, r.URL.Path, string(b)
		mu.Unlock()
		w.Header().Set("ETag", `"abc"`)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	up, err := NewS3Uploader(appcfg.S3Config{
		Endpoint: srv.URL, Region: "us-east-1", Bucket: "vault",
		AccessKeyID: "AKIDEXAMPLE", SecretAccessKey: "secret",
	})
	require.NoError(t, err)
	require.NoError(t, up.Upload(context.Background(), "backups/x.json", []byte(`{"users":[]}`), "application/json"))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "/vault/backups/x.json", path)
	assert.Contains(t, body, `{"users":[]}`)
}

func TestNewS3UploaderRequiresCredentials(t *testing.T) {
	_, err := NewS3Uploader(appcfg.S3Config{Region: "us-east-1", Bucket: "vault"})
	assert.ErrorIs(t, err, ErrS3Disabled)
}

func TestCamelToSnake(t *testing.T) {
	for in, want := range map[string]string{
		"_id":        "id",
		"isAdmin":    "is_admin",
		"lastChange": "last_change",
		"userAgent":  "user_agent",
		"added_at":   "added_at",
		"createdAt":  "created_at",
	} {
		assert.Equal(t, want, camelToSnake(in), in)
	}
}

package backup

import (
	"io"
	"net/http"
	"strings"

	"github.com/dvinyl/core/internal/middleware"
	"github.com/dvinyl/core/internal/pkg/response"
	"github.com/dvinyl/core/internal/pkg/session"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handler struct {
	svc      *Service
	cookie   session.Cookie
	uploader Uploader
	prefix   string
	logger   *zap.Logger
}

// HandlerOption configures a backup Handler.
type HandlerOption func(*Handler)

// WithHandlerLogger sets the logger for the backup handler.
func WithHandlerLogger(l *zap.Logger) HandlerOption {
	return func(h *Handler) {
		if l != nil {
			h.logger = l.Named("BackupHandler")
		}
	}
}

// WithUploader enables /backup/upload-to-s3. Objects land under prefix.
func WithUploader(u Uploader, prefix string) HandlerOption {
	return func(h *Handler) {
		h.uploader = u
		h.prefix = prefix
	}
}

func NewHandler(svc *Service, cookie session.Cookie, opts ...HandlerOption) *Handler {
	h := &Handler{svc: svc, cookie: cookie, logger: zap.NewNop()}
	for _, o := range opts {
		o(h)
	}
	return h
}

// RegisterRoutes mounts /backup. Export and upload run behind authMW and
// adminMW; import runs behind importMW only.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW, adminMW, importMW gin.HandlerFunc) {
	g := rg.Group("/backup")
	g.GET("/export", authMW, adminMW, h.export)
	g.POST("/upload-to-s3", authMW, adminMW, h.uploadToS3)
	g.POST("/import", importMW, h.importBackup)
}

// GET /backup/export
func (h *Handler) export(c *gin.Context) {
	body, err := h.svc.ExportJSON(c.Request.Context())
	if err != nil {
		h.logger.Error("export failed", zap.Error(err))
		response.InternalError(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename="+Filename(h.svc.now()))
	c.Data(http.StatusOK, "application/json", body)
	h.logger.Info("backup exported", zap.String("by", middleware.CurrentIdentity(c).UserID()), zap.Int("bytes", len(body)))
}

func readImportPayload(c *gin.Context) ([]byte, error) {
	ct := c.ContentType()
	if ct == "application/x-www-form-urlencoded" || strings.HasPrefix(ct, "multipart/") {
		if v := c.PostForm("backupData"); v != "" {
			return []byte(v), nil
		}
		fh, err := c.FormFile("backupFile")
		if err != nil {
			return nil, ErrInvalidDocument
		}
		f, err := fh.Open()
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return io.ReadAll(io.LimitReader(f, maxImportBytes))
	}
	return io.ReadAll(c.Request.Body)
}

// POST /backup/import
func (h *Handler) importBackup(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxImportBytes)
	payload, err := readImportPayload(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid backup data"})
		return
	}
	doc, err := Decode(payload)
	if err != nil {
		h.logger.Warn("rejected backup document", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid backup data"})
		return
	}

	res, err := h.svc.Import(c.Request.Context(), doc)
	if err != nil {
		h.logger.Error("import failed", zap.Error(err))
		_ = c.Error(err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
		return
	}
	// every account was replaced; the caller signs in again
	h.cookie.Clear(c)
	c.JSON(http.StatusOK, gin.H{"success": true, "imported": res})
}

// POST /backup/upload-to-s3
func (h *Handler) uploadToS3(c *gin.Context) {
	if h.uploader == nil {
		response.BadRequest(c, ErrS3Disabled.Error())
		return
	}
	body, err := h.svc.ExportJSON(c.Request.Context())
	if err != nil {
		h.logger.Error("export failed", zap.Error(err))
		response.InternalError(c, err)
		return
	}

	now := h.svc.now()
	key := renderBackupObjectKey(h.prefix+"{Y}/{m}/{filename}", Filename(now), now)
	h.logger.Info("uploading backup to s3", zap.String("key", key))
	if err := h.uploader.Upload(c.Request.Context(), key, body, "application/json"); err != nil {
		h.logger.Warn("s3 upload failed", zap.Error(err))
		response.InternalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "key": key})
}


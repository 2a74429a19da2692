package album

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/dvinyl/core/internal/middleware"
	"github.com/dvinyl/core/internal/pkg/i18n"
	"github.com/dvinyl/core/internal/pkg/response"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const collectionPath = "/collection"

type Handler struct {
	svc *Service
	log *zap.Logger
}

type HandlerOption func(*Handler)

func WithLogger(l *zap.Logger) HandlerOption {
	return func(h *Handler) {
		if l != nil {
			h.log = l.Named("album")
		}
	}
}

func NewHandler(svc *Service, opts ...HandlerOption) *Handler {
	h := &Handler{svc: svc, log: zap.NewNop()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW, adminMW gin.HandlerFunc) {
	g := rg.Group("", authMW)
	g.GET("/", h.dashboard)
	g.GET(collectionPath, h.collection)
	g.GET("/wishlist", h.wishlist)
	g.GET("/album/:id", h.detail)
	g.GET("/api/collection/ids", h.collectionIDs)

	a := g.Group("", adminMW)
	a.POST("/save-vinyl", h.save)
	a.POST("/api/album/:id/move-to-collection", h.moveToCollection)
	a.DELETE("/api/album/:id", h.delete)
}

func (h *Handler) fail(c *gin.Context, op string, err error) {
	h.log.Error(op+" failed", zap.Error(err))
	response.InternalError(c, err)
}

func (h *Handler) dashboard(c *gin.Context) {
	d, err := h.svc.Dashboard(c.Request.Context(), middleware.T(c, i18n.CommonNotAvailable))
	if err != nil {
		h.fail(c, "dashboard", err)
		return
	}
	response.OK(c, d)
}

func (h *Handler) collection(c *gin.Context) {
	var f CollectionFilter
	_ = c.ShouldBindQuery(&f)
	page, err := h.svc.Collection(c.Request.Context(), f)
	if err != nil {
		h.fail(c, "collection", err)
		return
	}
	response.OK(c, page)
}

func (h *Handler) wishlist(c *gin.Context) {
	list, err := h.svc.Wishlist(c.Request.Context())
	if err != nil {
		h.fail(c, "wishlist", err)
		return
	}
	response.OK(c, gin.H{"albums": list})
}

func (h *Handler) detail(c *gin.Context) {
	a, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil || a == nil {
		if err != nil {
			h.log.Warn("load album failed", zap.String("id", c.Param("id")), zap.Error(err))
		}
		response.Redirect(c, collectionPath)
		return
	}
	response.OK(c, gin.H{"album": a})
}

func (h *Handler) collectionIDs(c *gin.Context) {
	refs, err := h.svc.CollectionDiscogsIDs(c.Request.Context())
	if err != nil {
		h.fail(c, "collection ids", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "albums": refs})
}

func (h *Handler) save(c *gin.Context) {
	var dto SaveDTO
	if err := c.ShouldBind(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if dto.Title == "" || dto.Artist == "" {
		response.BadRequest(c, middleware.T(c, i18n.ErrRequiredFields))
		return
	}

	a, created, err := h.svc.Save(c.Request.Context(), dto)
	if err != nil {
		h.fail(c, "save album", err)
		return
	}
	h.log.Info("album saved", zap.String("id", a.ID), zap.Bool("created", created))

	if a.InWishlist {
		response.Redirect(c, "/wishlist")
		return
	}
	response.Redirect(c, collectionPath+"?"+url.Values{"type": {a.MediaType}}.Encode())
}

func (h *Handler) moveToCollection(c *gin.Context) {
	if err := h.svc.MoveToCollection(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFoundMsg(c, err.Error())
			return
		}
		h.fail(c, "move to collection", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) delete(c *gin.Context) {
	mediaType, err := h.svc.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Album not found or you are not the owner."})
			return
		}
		h.fail(c, "delete album", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"redirectUrl": collectionPath + "?" + url.Values{"type": {mediaType}}.Encode(),
	})
}

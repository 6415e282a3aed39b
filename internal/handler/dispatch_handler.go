package handler

import (
	"context"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.uber.org/zap"

	"github.com/noah-isme/dispatch-api/internal/dto"
	"github.com/noah-isme/dispatch-api/internal/middleware"
	"github.com/noah-isme/dispatch-api/internal/service"
	appErrors "github.com/noah-isme/dispatch-api/pkg/errors"
	"github.com/noah-isme/dispatch-api/pkg/logger"
	"github.com/noah-isme/dispatch-api/pkg/response"
)

const maxFormMemory = 8 << 20

type dispatcher interface {
	Dispatch(ctx context.Context, req *service.RequestContext) *service.DispatchResult
}

// DispatchHandler adapts HTTP requests to the dispatch service.
type DispatchHandler struct {
	service dispatcher
	logger  *zap.Logger
}

// NewDispatchHandler builds a new handler.
func NewDispatchHandler(service dispatcher, logger *zap.Logger) *DispatchHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DispatchHandler{service: service, logger: logger}
}

// Handle godoc
// @Summary Read, update or delete records of a model
// @Description GET reads, POST and PATCH update, DELETE soft-deletes. The object is addressed as "<id>-<slug>".
// @Tags Dispatch
// @Accept json
// @Accept x-www-form-urlencoded
// @Produce json
// @Param model path string true "Model name"
// @Param ident path string false "Object identifier"
// @Param field path string false "Field name"
// @Param query query dto.DispatchQuery false "Dispatch parameters"
// @Success 200 {object} dto.DispatchResponse
// @Failure 400 {object} dto.DispatchResponse
// @Failure 403 {object} dto.DispatchResponse
// @Failure 404 {object} dto.DispatchResponse
// @Security BearerAuth
// @Router /dispatch/{model} [get]
// @Router /dispatch/{model}/{ident} [get]
// @Router /dispatch/{model}/{ident}/{field} [get]
// @Router /dispatch/{model}/{ident} [post]
// @Router /dispatch/{model}/{ident}/{field} [post]
// @Router /dispatch/{model}/{ident} [delete]
func (h *DispatchHandler) Handle(c *gin.Context) {
	var query dto.DispatchQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid dispatch parameters"))
		return
	}

	req, err := h.requestContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	result := h.service.Dispatch(c.Request.Context(), req)
	log := logger.WithRequest(h.logger, c)
	log.Debug("dispatch finished",
		zap.String("model", c.Param("model")),
		zap.String("state", result.State.String()),
		zap.Int("status", result.Response.Status),
		zap.Bool("cache_hit", result.CacheHit),
	)

	middleware.SetCacheHit(c, result.CacheHit)
	if result.Attachment != nil {
		response.Binary(c, result.Attachment.ContentType, result.Attachment.Filename, result.Attachment.Data)
		return
	}
	if text, ok := result.Response.Payload.(string); ok {
		result.Response.Payload = stripBlankLines(text)
	}
	response.Dispatch(c, result.Response.Status, result.Response)
}

func (h *DispatchHandler) requestContext(c *gin.Context) (*service.RequestContext, error) {
	req := &service.RequestContext{
		Actor:     actorFromContext(c),
		Method:    c.Request.Method,
		Path:      c.Request.URL.Path,
		Handler:   c.FullPath(),
		RemoteIP:  c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		Kwargs:    pathKwargs(c),
		Query:     c.Request.URL.Query(),
		Headers:   c.Request.Header,
	}

	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return req, nil
	}
	mediaType, _, _ := mime.ParseMediaType(c.GetHeader("Content-Type"))
	switch mediaType {
	case binding.MIMEJSON:
		body := make(map[string]interface{})
		if err := c.ShouldBindJSON(&body); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid json payload")
		}
		req.JSON = body
	case binding.MIMEMultipartPOSTForm:
		if err := c.Request.ParseMultipartForm(maxFormMemory); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid form payload")
		}
		req.Form = url.Values(c.Request.MultipartForm.Value)
	case binding.MIMEPOSTForm:
		if err := c.Request.ParseForm(); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid form payload")
		}
		req.Form = c.Request.PostForm
	}
	return req, nil
}

// pathKwargs maps the route parameters to dispatch parameters. The object
// segment reads "<id>-<slug>"; a bare number is an id and anything else a
// slug.
func pathKwargs(c *gin.Context) map[string]string {
	kwargs := make(map[string]string, 4)
	if model := c.Param("model"); model != "" {
		kwargs[service.ParamModel] = model
	}
	if field := c.Param("field"); field != "" {
		kwargs[service.ParamField] = field
	}

	ident := strings.TrimSpace(c.Param("ident"))
	if ident == "" {
		return kwargs
	}
	head, tail, found := strings.Cut(ident, "-")
	if _, err := strconv.ParseInt(head, 10, 64); err == nil {
		kwargs["object_id"] = head
		if found && tail != "" {
			kwargs["object_slug"] = tail
		}
		return kwargs
	}
	kwargs["object_slug"] = ident
	return kwargs
}

func stripBlankLines(text string) string {
	if !strings.Contains(text, "\n") {
		return text
	}
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

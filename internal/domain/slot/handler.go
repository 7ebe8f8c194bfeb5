package slot

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"httpupload/internal/domain/quota"
	"httpupload/internal/metrics"
	"httpupload/internal/pkg/response"
	"httpupload/internal/storage/blob"
)

// Handler exposes the slot engine over HTTP.
type Handler struct {
	slots    *Service
	exchange *ExchangeService
}

func NewHandler(slots *Service, exchange *ExchangeService) *Handler {
	return &Handler{slots: slots, exchange: exchange}
}

// RequestSlot godoc
// @Summary Request an upload slot
// @Description Reserves a slot and returns the PUT and GET URLs for it.
// @Produce plain,json
// @Param jid query string true "Identity of the uploader"
// @Param name query string true "File name"
// @Param size query int true "File size in bytes"
// @Param type query string false "Content type of the file"
// @Param output query string false "text/plain (default) or application/json"
// @Success 200 {object} URLs
// @Failure 400,402,403,413 {string} string
// @Router /slot [get]
func (h *Handler) RequestSlot(c *gin.Context) {
	format, ok := response.ParseFormat(c.Query("output"))
	if !ok {
		metrics.SlotRequests.WithLabelValues("invalid").Inc()
		h.fail(c, response.FormatText, ErrUnsupportedOutput)
		return
	}

	grant, err := h.slots.RequestSlot(c.Request.Context(), SlotRequest{
		JID:         c.Query("jid"),
		Name:        c.Query("name"),
		Size:        c.Query("size"),
		ContentType: c.Query("type"),
		Origin:      requestOrigin(c),
	})
	if err != nil {
		metrics.SlotRequests.WithLabelValues(resultLabel(err)).Inc()
		h.fail(c, format, err)
		return
	}

	metrics.SlotRequests.WithLabelValues("granted").Inc()
	response.Success(c, http.StatusOK, format, grant.URLs.Put+"\n"+grant.URLs.Get, grant.URLs)
}

// MaxSize godoc
// @Summary Maximum file size for an identity
// @Produce plain,json
// @Param jid query string true "Identity of the uploader"
// @Param output query string false "text/plain (default) or application/json"
// @Success 200 {object} map[string]int64
// @Failure 400,403 {string} string
// @Router /max_size [get]
func (h *Handler) MaxSize(c *gin.Context) {
	format, ok := response.ParseFormat(c.Query("output"))
	if !ok {
		h.fail(c, response.FormatText, ErrUnsupportedOutput)
		return
	}

	size, err := h.slots.MaxSize(c.Query("jid"))
	if err != nil {
		h.fail(c, format, err)
		return
	}
	response.Success(c, http.StatusOK, format, strconv.FormatInt(size, 10), gin.H{"max_size": size})
}

// Upload godoc
// @Summary Upload a file into a reserved slot
// @Accept octet-stream
// @Param token path string true "Slot token"
// @Param filename path string true "File name"
// @Success 201
// @Failure 400,403,500 {string} string
// @Router /share/{token}/{filename} [put]
func (h *Handler) Upload(c *gin.Context) {
	_, err := h.exchange.CompleteUpload(c.Request.Context(), UploadRequest{
		Token:         c.Param("token"),
		Name:          c.Param("filename"),
		ContentLength: c.Request.ContentLength,
		ContentType:   c.GetHeader("Content-Type"),
		Body:          c.Request.Body,
	})
	if err != nil {
		metrics.Uploads.WithLabelValues(resultLabel(err)).Inc()
		h.fail(c, response.FormatText, err)
		return
	}

	metrics.Uploads.WithLabelValues("fulfilled").Inc()
	metrics.UploadedBytes.Add(float64(c.Request.ContentLength))
	c.Status(http.StatusCreated)
}

// Download godoc
// @Summary Download an uploaded file
// @Param token path string true "Slot token"
// @Param filename path string true "File name"
// @Success 200 {file} file
// @Failure 403,404 {string} string
// @Router /share/{token}/{filename} [get]
func (h *Handler) Download(c *gin.Context) {
	d, err := h.exchange.Download(c.Request.Context(), c.Param("token"), c.Param("filename"))
	if err != nil {
		metrics.Downloads.WithLabelValues(resultLabel(err)).Inc()
		h.fail(c, response.FormatText, err)
		return
	}
	defer d.Body.Close()

	length := int64(-1)
	if h.exchange.settings.AddContentLength {
		length = d.Size
	}
	contentType := d.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	metrics.Downloads.WithLabelValues("served").Inc()
	c.DataFromReader(http.StatusOK, length, contentType, d.Body, nil)
}

func (h *Handler) fail(c *gin.Context, format string, err error) {
	var rej *quota.Rejection
	switch {
	case errors.As(err, &rej):
		response.Error(c, rej.Status, format, strings.ToUpper(string(rej.Dimension)), rej.Message)
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, ErrUnsupportedOutput),
		errors.Is(err, ErrSizeMismatch),
		errors.Is(err, ErrTypeMismatch):
		response.Error(c, http.StatusBadRequest, format, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, ErrUnsafeName):
		response.Error(c, http.StatusForbidden, format, "UNSAFE_NAME", err.Error())
	case errors.Is(err, ErrNameTooLong):
		response.Error(c, http.StatusRequestEntityTooLarge, format, "NAME_TOO_LONG", "Filename too long.")
	case errors.Is(err, ErrSlotNotFound), errors.Is(err, ErrDownloadDisabled):
		response.Error(c, http.StatusForbidden, format, "FORBIDDEN", "Forbidden.")
	case errors.Is(err, blob.ErrNotFound):
		response.Error(c, http.StatusNotFound, format, "NOT_FOUND", "File not found.")
	default:
		_ = c.Error(err)
		response.Error(c, http.StatusInternalServerError, format, "INTERNAL_ERROR", "Internal error.")
	}
}

func resultLabel(err error) string {
	var rej *quota.Rejection
	switch {
	case errors.As(err, &rej):
		return string(rej.Dimension)
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, ErrUnsupportedOutput),
		errors.Is(err, ErrUnsafeName), errors.Is(err, ErrNameTooLong),
		errors.Is(err, ErrSizeMismatch), errors.Is(err, ErrTypeMismatch):
		return "invalid"
	case errors.Is(err, ErrSlotNotFound), errors.Is(err, ErrDownloadDisabled):
		return "forbidden"
	}
	return "error"
}

func requestOrigin(c *gin.Context) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if proto := c.GetHeader("X-Forwarded-Proto"); proto == "http" || proto == "https" {
		scheme = proto
	}
	return scheme + "://" + c.Request.Host
}

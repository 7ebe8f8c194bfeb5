package slot

import "github.com/gin-gonic/gin"

// RegisterRoutes registers the XEP-0363 endpoints.
// None of them authenticate: the slot token is the upload capability.
func RegisterRoutes(r gin.IRouter, h *Handler) {
	r.GET("/slot", h.RequestSlot)
	r.POST("/slot", h.RequestSlot)
	r.GET("/max_size", h.MaxSize)

	share := r.Group(SharePath)
	{
		share.PUT("/:token/:filename", h.Upload)
		share.GET("/:token/:filename", h.Download)
	}
}

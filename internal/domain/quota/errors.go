package quota

import (
	"fmt"
	"net/http"
)

// Dimension names the limit that rejected a request.
type Dimension string

const (
	DimensionAccess           Dimension = "access"
	DimensionMaxFileSize      Dimension = "max_file_size"
	DimensionMaxTotalSize     Dimension = "max_total_size"
	DimensionBytesPerWindow   Dimension = "bytes_per_window"
	DimensionUploadsPerWindow Dimension = "uploads_per_window"
)

// Rejection is returned when a slot may not be granted.
type Rejection struct {
	Dimension Dimension
	Status    int
	Message   string
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("%s: %s", r.Dimension, r.Message)
}

func reject(d Dimension, status int, format string, args ...any) *Rejection {
	return &Rejection{Dimension: d, Status: status, Message: fmt.Sprintf(format, args...)}
}

var errDenied = &Rejection{
	Dimension: DimensionAccess,
	Status:    http.StatusForbidden,
	Message:   "You are not allowed to upload files.",
}

// Denied is the rejection for identities without upload permission.
func Denied() *Rejection {
	r := *errDenied
	return &r
}

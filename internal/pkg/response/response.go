package response

import "github.com/gin-gonic/gin"

// Output formats selectable with the "output" query parameter.
const (
	FormatText = "text/plain"
	FormatJSON = "application/json"
)

// ParseFormat returns the output format, text/plain when empty.
func ParseFormat(output string) (string, bool) {
	switch output {
	case "", FormatText:
		return FormatText, true
	case FormatJSON:
		return FormatJSON, true
	}
	return "", false
}

// Success renders text for text/plain and data as JSON otherwise.
func Success(c *gin.Context, statusCode int, format, text string, data any) {
	if format == FormatJSON {
		c.JSON(statusCode, data)
		return
	}
	c.Data(statusCode, FormatText+"; charset=utf-8", []byte(text))
}

// Error renders message in the requested format.
func Error(c *gin.Context, statusCode int, format, code, message string) {
	if format == FormatJSON {
		c.AbortWithStatusJSON(statusCode, gin.H{
			"error": gin.H{
				"code":    code,
				"message": message,
			},
		})
		return
	}
	c.Abort()
	c.Data(statusCode, FormatText+"; charset=utf-8", []byte(message))
}

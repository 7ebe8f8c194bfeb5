package response

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestParseFormat(t *testing.T) {
	f, ok := ParseFormat("")
	assert.True(t, ok)
	assert.Equal(t, FormatText, f)

	f, ok = ParseFormat("application/json")
	assert.True(t, ok)
	assert.Equal(t, FormatJSON, f)

	_, ok = ParseFormat("application/xml")
	assert.False(t, ok)
}

func TestErrorFormats(t *testing.T) {
	gin.SetMode(gin.TestMode)

	rr := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rr)
	Error(c, http.StatusForbidden, FormatText, "FORBIDDEN", "nope")
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "nope", rr.Body.String())

	rr = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(rr)
	Error(c, http.StatusForbidden, FormatJSON, "FORBIDDEN", "nope")
	assert.JSONEq(t, `{"error":{"code":"FORBIDDEN","message":"nope"}}`, rr.Body.String())
}

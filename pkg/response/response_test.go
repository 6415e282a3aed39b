package response

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	appErrors "github.com/noah-isme/dispatch-api/pkg/errors"
)

func newContext() (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)
	return c, recorder
}

func TestJSONEnvelope(t *testing.T) {
	c, recorder := newContext()
	JSON(c, http.StatusOK, map[string]int{"n": 1}, map[string]interface{}{"page": 2})
	assert.JSONEq(t, `{"data":{"n":1},"meta":{"page":2}}`, recorder.Body.String())
	assert.Equal(t, "no-store", recorder.Header().Get("Cache-Control"))
}

func TestDispatchDefaultsStatus(t *testing.T) {
	c, recorder := newContext()
	Dispatch(c, 0, map[string]int{"status": 200})
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.JSONEq(t, `{"status":200}`, recorder.Body.String())
}

func TestErrorUsesErrorStatus(t *testing.T) {
	c, recorder := newContext()
	Error(c, appErrors.Clone(appErrors.ErrForbidden, "no"))
	assert.Equal(t, http.StatusForbidden, recorder.Code)
	assert.JSONEq(t, `{"error":{"code":"FORBIDDEN","message":"no","status":403}}`, recorder.Body.String())

	c, recorder = newContext()
	Error(c, assert.AnError)
	assert.Equal(t, http.StatusInternalServerError, recorder.Code)
}

func TestBinaryAttachment(t *testing.T) {
	c, recorder := newContext()
	Binary(c, "application/pdf", "tags.pdf", []byte("%PDF"))
	assert.Equal(t, `attachment; filename="tags.pdf"`, recorder.Header().Get("Content-Disposition"))
	assert.Equal(t, "application/pdf", recorder.Header().Get("Content-Type"))
	assert.Equal(t, "%PDF", recorder.Body.String())
}

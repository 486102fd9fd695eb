package validator

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/elivate/elivate-backend/internal/model"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bindBody(t *testing.T, body string, dst interface{}) map[string]string {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	return Bind(c, dst)
}

func TestBind(t *testing.T) {
	gin.SetMode(gin.TestMode)
	Setup()

	t.Run("known program", func(t *testing.T) {
		var req model.CreateSessionRequest
		assert.Nil(t, bindBody(t, `{"program":"IOE"}`, &req))
		assert.Equal(t, "IOE", req.Program)
	})

	t.Run("unknown program", func(t *testing.T) {
		var req model.CreateSessionRequest
		fields := bindBody(t, `{"program":"bds"}`, &req)
		require.Contains(t, fields, "program")
		assert.Contains(t, fields["program"], "must be one of")
	})

	t.Run("missing program", func(t *testing.T) {
		var req model.CreateSessionRequest
		fields := bindBody(t, `{}`, &req)
		assert.Contains(t, fields, "program")
	})

	t.Run("option out of range", func(t *testing.T) {
		var req model.SelectAnswerRequest
		fields := bindBody(t, `{"option":4}`, &req)
		assert.Contains(t, fields, "option")
	})

	t.Run("option zero is accepted", func(t *testing.T) {
		var req model.SelectAnswerRequest
		assert.Nil(t, bindBody(t, `{"option":0}`, &req))
		require.NotNil(t, req.Option)
		assert.Equal(t, 0, *req.Option)
	})

	t.Run("malformed json", func(t *testing.T) {
		var req model.NavigateRequest
		fields := bindBody(t, `{"index":`, &req)
		assert.Contains(t, fields, "detail")
	})
}

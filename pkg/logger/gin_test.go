package logger

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestMiddleware_TagsRequestAndTab(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	l := NewWithWriter("production", &buf)

	r := gin.New()
	r.Use(Middleware(l))
	r.GET("/home", func(c *gin.Context) {
		if From(c.Request.Context()) != FromGin(c) {
			t.Errorf("context logger differs from gin logger")
		}
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/home", nil)
	req.Header.Set(HeaderTabID, "tab-7")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Header().Get(headerRequestID) == "" {
		t.Fatalf("expected request id header")
	}
	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if line["tab_id"] != "tab-7" || line["path"] != "/home" || line["request_id"] == "" {
		t.Fatalf("unexpected log line: %v", line)
	}
}

func TestFromGin_DefaultsWithoutMiddleware(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if FromGin(c) == nil {
		t.Fatalf("expected default logger")
	}
}

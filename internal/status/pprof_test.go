package status

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPprofRequiresToken(t *testing.T) {
	r, _ := setup()
	MountPprof(r, "s3cret")

	assert.Equal(t, http.StatusUnauthorized, get(r, "/debug/pprof/cmdline").Code)
	assert.Equal(t, http.StatusUnauthorized, get(r, "/debug/pprof/cmdline?token=nope").Code)
	assert.Equal(t, http.StatusOK, get(r, "/debug/pprof/cmdline?token=s3cret").Code)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/debug/pprof/goroutine?debug=1", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "goroutine")
}

func TestPprofWithoutToken(t *testing.T) {
	r, _ := setup()
	MountPprof(r, "")
	w := get(r, "/debug/pprof/")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "heap")
	assert.Equal(t, http.StatusOK, get(r, "/healthz").Code)
}

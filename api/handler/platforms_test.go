package handler

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netshellpro/netshellpro/internal/config"
)

func TestPlatformsHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{}
	cfg.Executor.Platform = "nxos"
	cfg.Executor.DeviceDefaults = map[string]config.PlatformDefaultsConfig{
		"nxos": {PagingMarker: "<more>", ErrorHints: []string{"ERROR:"}},
	}
	h := NewPlatformsHandler(func() *config.Config { return cfg })
	r := gin.New()
	r.GET("/platforms", h.ListPlatforms)
	r.GET("/platforms/:platform", h.GetPlatform)

	w := doJSON(r, http.MethodGet, "/platforms", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"active":"nxos"`)
	assert.Contains(t, w.Body.String(), `"default"`)

	w = doJSON(r, http.MethodGet, "/platforms/NXOS", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data PlatformInfo `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "nxos", resp.Data.Name)
	assert.Equal(t, "<more>", resp.Data.PagingMarker, "合并配置覆盖")
	assert.Contains(t, resp.Data.ErrorHints, "ERROR:")
	assert.Equal(t, "configure terminal", resp.Data.ConfigEnter)

	w = doJSON(r, http.MethodGet, "/platforms/junos", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPlatformsHandlerWithoutConfig(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewPlatformsHandler(func() *config.Config { return nil })
	r := gin.New()
	r.GET("/platforms", h.ListPlatforms)
	w := doJSON(r, http.MethodGet, "/platforms", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

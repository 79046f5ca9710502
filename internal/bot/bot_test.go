package bot

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guild-warden/internal/handler"
	"guild-warden/internal/models"
)

func TestCommandMenuIsTranslated(t *testing.T) {
	for _, lang := range []string{models.LangEnglish, models.LangSimplifiedChinese, models.LangTraditionalChinese} {
		menu := commandMenu(lang)
		require.Len(t, menu, len(telegramCommands), lang)
		for _, cmd := range menu {
			assert.True(t, handler.IsCommand(cmd.Command), cmd.Command)
			assert.NotEmpty(t, cmd.Description)
			assert.NotEqual(t, "cmd_desc_"+cmd.Command, cmd.Description, "%s has no %s description", cmd.Command, lang)
		}
	}
}

func TestWebhookServerServesMetrics(t *testing.T) {
	ws := NewWebhookServer("", "/metrics", "", "")
	assert.Equal(t, "0.0.0.0:8443", ws.server.Addr)

	ws.HandleFunc("/debug", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	rec := httptest.NewRecorder()
	ws.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "go_goroutines"))

	rec = httptest.NewRecorder()
	ws.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug", nil))
	assert.Equal(t, "ok", rec.Body.String())
}

func TestSetupWebhookValidatesEndpoint(t *testing.T) {
	ws := NewWebhookServer("9000", "", "", "")

	_, err := SetupWebhook(context.Background(), nil, ws, "", "secret")
	assert.ErrorContains(t, err, "webhook endpoint is required")

	_, err = SetupWebhook(context.Background(), nil, ws, "http://warden.example.com/telegram", "secret")
	assert.ErrorContains(t, err, "HTTPS configuration required")
}

package bot

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"guild-warden/internal/logger"
)

// WebhookServer serves metrics, the debug page and the telegram webhook.
type WebhookServer struct {
	server   *http.Server
	mux      *http.ServeMux
	certFile string
	keyFile  string
}

// NewWebhookServer creates the server with the metrics endpoint in place.
func NewWebhookServer(listenPort, metricsPath, certFile, keyFile string) *WebhookServer {
	if listenPort == "" {
		listenPort = "8443"
		logger.Infof("Using default listen port: %s", listenPort)
	}

	mux := http.NewServeMux()
	if metricsPath != "" {
		mux.Handle(metricsPath, promhttp.Handler())
	}

	return &WebhookServer{
		server: &http.Server{
			Addr:    "0.0.0.0:" + listenPort,
			Handler: mux,
		},
		mux:      mux,
		certFile: certFile,
		keyFile:  keyFile,
	}
}

// HandleFunc adds an endpoint to the server.
func (ws *WebhookServer) HandleFunc(pattern string, fn http.HandlerFunc) {
	ws.mux.HandleFunc(pattern, fn)
}

// Start serves until the server is shut down.
func (ws *WebhookServer) Start() error {
	logger.Infof("Starting HTTP server on %s", ws.server.Addr)

	if ws.certFile != "" && ws.keyFile != "" {
		logger.Infof("Using TLS with cert: %s, key: %s", ws.certFile, ws.keyFile)
		return ws.server.ListenAndServeTLS(ws.certFile, ws.keyFile)
	}

	logger.Infof("Running without TLS. Make sure you have a HTTPS proxy in front of this server")
	return ws.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (ws *WebhookServer) Shutdown(ctx context.Context) error {
	return ws.server.Shutdown(ctx)
}

// SetupWebhook points telegram at webhookPoint and routes its updates
// through the server.
func SetupWebhook(ctx context.Context, bot *telego.Bot, ws *WebhookServer, webhookPoint, secretToken string) (*th.BotHandler, error) {
	if webhookPoint == "" {
		return nil, fmt.Errorf("webhook endpoint is required")
	}

	if (ws.certFile == "" || ws.keyFile == "") && !strings.HasPrefix(webhookPoint, "https://") {
		return nil, fmt.Errorf("HTTPS configuration required: set cert_file and key_file in config or use a HTTPS proxy")
	}

	parsedURL, err := url.Parse(webhookPoint)
	if err != nil {
		return nil, fmt.Errorf("invalid webhook endpoint: %w", err)
	}

	webhookPath := parsedURL.Path
	if webhookPath == "" {
		webhookPath = "/webhook"
		logger.Infof("No path specified in webhook endpoint, using default path: %s", webhookPath)
	}

	logger.Infof("Setting webhook to: %s", webhookPoint)
	err = bot.SetWebhook(ctx, &telego.SetWebhookParams{
		URL:            webhookPoint,
		AllowedUpdates: []string{"message", "my_chat_member"},
		SecretToken:    secretToken,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set webhook: %w", err)
	}

	webhookInfo, err := bot.GetWebhookInfo(ctx)
	if err != nil {
		logger.Warningf("Failed to get webhook info: %v", err)
	} else {
		logger.Infof("Webhook info: URL=%s, HasCustomCert=%v, PendingUpdateCount=%d",
			webhookInfo.URL, webhookInfo.HasCustomCertificate, webhookInfo.PendingUpdateCount)
		if webhookInfo.LastErrorDate > 0 {
			logger.Infof("Webhook last error: [%d] %s", webhookInfo.LastErrorDate, webhookInfo.LastErrorMessage)
		}
	}

	updates, err := bot.UpdatesViaWebhook(ctx,
		telego.WebhookHTTPServeMux(ws.mux, webhookPath, secretToken),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get updates channel: %w", err)
	}

	bh, err := th.NewBotHandler(bot, updates)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot handler: %w", err)
	}
	return bh, nil
}

package alerts

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stormon/stormon/internal/config"
	"github.com/stormon/stormon/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureWebhook(t *testing.T, status int) (*httptest.Server, *map[string]interface{}) {
	t.Helper()
	payload := &map[string]interface{}{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, payload))
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, payload
}

func TestSlackProblemNotification(t *testing.T) {
	srv, payload := captureWebhook(t, http.StatusOK)
	n := NewSlackNotifier(config.SlackConfig{Enabled: true, WebhookURL: srv.URL}, "homelab")

	err := n.Send(&models.Notification{
		Kind: models.NotifyProblem,
		Results: []models.CheckResult{
			{CheckName: "lvm_raid", Status: models.SeverityOK, Summary: "healthy"},
			{CheckName: "smart", Identifier: "/dev/sda", Status: models.SeverityCrit, Summary: "Pending sectors: 4"},
			{CheckName: "filesystem", Identifier: "/data", Status: models.SeverityWarn, Summary: "/data: 86.0% used"},
		},
		DashboardURL: "http://localhost:8088",
	})
	require.NoError(t, err)

	text, _ := (*payload)["text"].(string)
	assert.Contains(t, text, "CRIT")
	assert.Contains(t, text, "homelab")
	assert.Contains(t, text, "2 problem(s)")

	attachments, ok := (*payload)["attachments"].([]interface{})
	require.True(t, ok)
	require.Len(t, attachments, 1)
	attachment := attachments[0].(map[string]interface{})
	assert.Equal(t, "#d63031", attachment["color"])
}

func TestSlackRecoveryNotification(t *testing.T) {
	srv, payload := captureWebhook(t, http.StatusOK)
	n := NewSlackNotifier(config.SlackConfig{Enabled: true, WebhookURL: srv.URL}, "homelab")

	err := n.Send(&models.Notification{
		Kind: models.NotifyRecovery,
		Results: []models.CheckResult{
			{CheckName: "filesystem", Identifier: "/data", Status: models.SeverityOK, Summary: "/data: 70.0% used"},
		},
	})
	require.NoError(t, err)

	text, _ := (*payload)["text"].(string)
	assert.Contains(t, text, "Recovered")
	assert.Contains(t, text, "1 issue(s)")
}

func TestSlackWebhookFailure(t *testing.T) {
	srv, _ := captureWebhook(t, http.StatusInternalServerError)
	n := NewSlackNotifier(config.SlackConfig{Enabled: true, WebhookURL: srv.URL}, "homelab")

	err := n.Send(&models.Notification{Kind: models.NotifyTest})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestFromConfigBuildsEnabledBackends(t *testing.T) {
	cfg := config.AlertsConfig{
		Slack: config.SlackConfig{Enabled: true, WebhookURL: "https://hooks.example.com/x"},
		Email: config.EmailConfig{Enabled: false},
	}
	notifiers := FromConfig(cfg, "homelab")
	require.Len(t, notifiers, 1)
	assert.Equal(t, "slack", notifiers[0].Name())

	cfg.Email = config.EmailConfig{Enabled: true, SMTPHost: "mail.example.com", ToAddrs: []string{"ops@example.com"}}
	notifiers = FromConfig(cfg, "homelab")
	require.Len(t, notifiers, 2)
	assert.Equal(t, "email", notifiers[1].Name())
}

package alerts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/stormon/stormon/internal/config"
	"github.com/stormon/stormon/internal/models"
)

// SlackNotifier posts incident summaries to an incoming webhook.
type SlackNotifier struct {
	cfg      config.SlackConfig
	hostname string
	client   *http.Client
}

func NewSlackNotifier(cfg config.SlackConfig, hostname string) *SlackNotifier {
	return &SlackNotifier{
		cfg:      cfg,
		hostname: hostname,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *SlackNotifier) Name() string { return "slack" }

func (s *SlackNotifier) Send(n *models.Notification) error {
	var payload map[string]interface{}
	switch n.Kind {
	case models.NotifyRecovery:
		payload = s.recoveryPayload(n)
	case models.NotifyTest:
		payload = s.testPayload()
	default:
		payload = s.problemPayload(n)
	}
	return s.post(payload)
}

// SendAck posts a short confirmation when an operator acknowledges an
// issue through the dashboard.
func (s *SlackNotifier) SendAck(key, ackedBy string) error {
	return s.post(map[string]interface{}{
		"text": fmt.Sprintf(":ok_hand: `%s` acknowledged by %s on %s, alerts muted until cleared", key, ackedBy, s.hostname),
	})
}

func (s *SlackNotifier) problemPayload(n *models.Notification) map[string]interface{} {
	problems := problemResults(n.Results)
	worst := models.SeverityOK
	for _, r := range n.Results {
		worst = models.Worse(worst, r.Status)
	}

	blocks := []map[string]interface{}{
		{
			"type": "header",
			"text": map[string]interface{}{
				"type": "plain_text",
				"text": fmt.Sprintf("%s Storage alert on %s", titleEmoji(worst), s.hostname),
			},
		},
		{
			"type": "section",
			"text": map[string]interface{}{
				"type": "mrkdwn",
				"text": fmt.Sprintf("*Overall:* %s %s | *Checks:* %d | *Problems:* %d",
					statusEmoji(worst), worst, len(n.Results), len(problems)),
			},
		},
		{"type": "divider"},
	}

	for _, r := range problems {
		text := fmt.Sprintf("%s *%s*", statusEmoji(r.Status), r.CheckName)
		if r.Identifier != "" {
			text += fmt.Sprintf(" `%s`", r.Identifier)
		}
		text += "\n" + r.Summary
		if hint := actionHint(r.CheckName); hint != "" {
			text += "\n_" + hint + "_"
		}
		blocks = append(blocks, map[string]interface{}{
			"type": "section",
			"text": map[string]interface{}{"type": "mrkdwn", "text": text},
		})
	}

	contextText := fmt.Sprintf("stormon | %s", time.Now().Format("2006-01-02 15:04:05 MST"))
	if n.DashboardURL != "" {
		contextText += fmt.Sprintf(" | <%s|dashboard>", n.DashboardURL)
	}
	blocks = append(blocks, map[string]interface{}{
		"type": "context",
		"elements": []map[string]interface{}{
			{"type": "mrkdwn", "text": contextText},
		},
	})

	return map[string]interface{}{
		"text": fmt.Sprintf("[%s] Storage alert on %s: %d problem(s)", worst, s.hostname, len(problems)),
		"attachments": []map[string]interface{}{
			{"color": severityColor(worst), "blocks": blocks},
		},
	}
}

func (s *SlackNotifier) recoveryPayload(n *models.Notification) map[string]interface{} {
	lines := ""
	for _, r := range n.Results {
		if lines != "" {
			lines += "\n"
		}
		lines += fmt.Sprintf(":white_check_mark: *%s*", r.CheckName)
		if r.Identifier != "" {
			lines += fmt.Sprintf(" `%s`", r.Identifier)
		}
		lines += ": " + r.Summary
	}

	return map[string]interface{}{
		"text": fmt.Sprintf("Recovered on %s: %d issue(s) back to OK", s.hostname, len(n.Results)),
		"attachments": []map[string]interface{}{
			{
				"color": "#2eb886",
				"blocks": []map[string]interface{}{
					{
						"type": "section",
						"text": map[string]interface{}{
							"type": "mrkdwn",
							"text": fmt.Sprintf("*Recovered on %s*\n%s", s.hostname, lines),
						},
					},
				},
			},
		},
	}
}

func (s *SlackNotifier) testPayload() map[string]interface{} {
	return map[string]interface{}{
		"text": fmt.Sprintf(":bell: Test alert from stormon on %s. Delivery path is working.", s.hostname),
	}
}

func (s *SlackNotifier) post(payload map[string]interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode slack payload: %w", err)
	}

	resp, err := s.client.Post(s.cfg.WebhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack webhook returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

func titleEmoji(s models.Severity) string {
	if s == models.SeverityCrit {
		return "🚨"
	}
	return "⚠️"
}

func severityColor(s models.Severity) string {
	switch s {
	case models.SeverityCrit:
		return "#d63031"
	case models.SeverityWarn:
		return "#fdcb6e"
	case models.SeverityOK:
		return "#2eb886"
	default:
		return "#b2bec3"
	}
}

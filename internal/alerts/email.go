package alerts

import (
	"crypto/tls"
	"fmt"
	"html"
	"mime/multipart"
	"net"
	"net/smtp"
	"net/textproto"
	"strings"
	"time"

	"github.com/stormon/stormon/internal/config"
	"github.com/stormon/stormon/internal/models"
)

// EmailNotifier sends multipart text+HTML alerts over SMTP, with
// STARTTLS or implicit TLS per config. All network I/O is bounded by
// timeout so a stuck mail server cannot stall the run loop.
type EmailNotifier struct {
	cfg      config.EmailConfig
	hostname string
	timeout  time.Duration
}

func NewEmailNotifier(cfg config.EmailConfig, hostname string) *EmailNotifier {
	return &EmailNotifier{cfg: cfg, hostname: hostname, timeout: 30 * time.Second}
}

func (e *EmailNotifier) Name() string { return "email" }

func (e *EmailNotifier) Send(n *models.Notification) error {
	var subject, text, htmlBody string
	switch n.Kind {
	case models.NotifyRecovery:
		subject, text, htmlBody = e.recoveryMessage(n)
	case models.NotifyTest:
		subject = fmt.Sprintf("[stormon] Test alert from %s", e.hostname)
		text = "This is a test alert. Delivery path is working."
		htmlBody = "<p>This is a test alert. Delivery path is working.</p>"
	default:
		subject, text, htmlBody = e.problemMessage(n)
	}

	msg, err := buildMessage(e.cfg.FromAddr, e.cfg.ToAddrs, subject, text, htmlBody)
	if err != nil {
		return err
	}
	return e.deliver(msg)
}

func (e *EmailNotifier) problemMessage(n *models.Notification) (string, string, string) {
	problems := problemResults(n.Results)
	worst := models.SeverityOK
	for _, r := range n.Results {
		worst = models.Worse(worst, r.Status)
	}

	subject := fmt.Sprintf("[stormon] [%s] %s: %d storage problem(s)", worst, e.hostname, len(problems))

	var text strings.Builder
	fmt.Fprintf(&text, "Storage alert on %s at %s\n", e.hostname, time.Now().Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&text, "Overall: %s (%d checks, %d problems)\n\n", worst, len(n.Results), len(problems))
	for _, r := range problems {
		name := r.CheckName
		if r.Identifier != "" {
			name += " (" + r.Identifier + ")"
		}
		fmt.Fprintf(&text, "[%s] %s\n  %s\n", r.Status, name, r.Summary)
		if hint := actionHint(r.CheckName); hint != "" {
			fmt.Fprintf(&text, "  Action: %s\n", hint)
		}
		text.WriteString("\n")
	}
	if n.DashboardURL != "" {
		fmt.Fprintf(&text, "Dashboard: %s\n", n.DashboardURL)
	}

	var body strings.Builder
	fmt.Fprintf(&body, "<h2>Storage alert on %s</h2>", html.EscapeString(e.hostname))
	fmt.Fprintf(&body, "<p>Overall: <b style=\"color:%s\">%s</b> (%d checks, %d problems)</p>",
		htmlColor(worst), worst, len(n.Results), len(problems))
	body.WriteString("<table border=\"1\" cellpadding=\"6\" cellspacing=\"0\">")
	body.WriteString("<tr><th>Status</th><th>Check</th><th>Summary</th></tr>")
	for _, r := range problems {
		name := r.CheckName
		if r.Identifier != "" {
			name += " (" + r.Identifier + ")"
		}
		fmt.Fprintf(&body, "<tr><td style=\"color:%s\"><b>%s</b></td><td>%s</td><td>%s</td></tr>",
			htmlColor(r.Status), r.Status, html.EscapeString(name), html.EscapeString(r.Summary))
	}
	body.WriteString("</table>")
	if n.DashboardURL != "" {
		fmt.Fprintf(&body, "<p><a href=\"%s\">Open dashboard</a></p>", n.DashboardURL)
	}

	return subject, text.String(), body.String()
}

func (e *EmailNotifier) recoveryMessage(n *models.Notification) (string, string, string) {
	subject := fmt.Sprintf("[stormon] [RECOVERED] %s: %d issue(s) back to OK", e.hostname, len(n.Results))

	var text strings.Builder
	fmt.Fprintf(&text, "Recovered on %s at %s\n\n", e.hostname, time.Now().Format("2006-01-02 15:04:05 MST"))
	var body strings.Builder
	fmt.Fprintf(&body, "<h2>Recovered on %s</h2><ul>", html.EscapeString(e.hostname))
	for _, r := range n.Results {
		name := r.CheckName
		if r.Identifier != "" {
			name += " (" + r.Identifier + ")"
		}
		fmt.Fprintf(&text, "OK: %s\n  %s\n", name, r.Summary)
		fmt.Fprintf(&body, "<li><b>%s</b>: %s</li>", html.EscapeString(name), html.EscapeString(r.Summary))
	}
	body.WriteString("</ul>")

	return subject, text.String(), body.String()
}

func buildMessage(from string, to []string, subject, text, htmlBody string) ([]byte, error) {
	var buf strings.Builder
	alt := multipart.NewWriter(&buf)

	headers := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: multipart/alternative; boundary=%s\r\n\r\n",
		from, strings.Join(to, ", "), subject, alt.Boundary())

	textPart, err := alt.CreatePart(textproto.MIMEHeader{
		"Content-Type": {"text/plain; charset=utf-8"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build email: %w", err)
	}
	fmt.Fprint(textPart, text)

	htmlPart, err := alt.CreatePart(textproto.MIMEHeader{
		"Content-Type": {"text/html; charset=utf-8"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build email: %w", err)
	}
	fmt.Fprint(htmlPart, htmlBody)

	if err := alt.Close(); err != nil {
		return nil, fmt.Errorf("failed to build email: %w", err)
	}

	return []byte(headers + buf.String()), nil
}

func (e *EmailNotifier) deliver(msg []byte) error {
	addr := fmt.Sprintf("%s:%d", e.cfg.SMTPHost, e.cfg.SMTPPort)

	var auth smtp.Auth
	if e.cfg.Username != "" {
		auth = smtp.PlainAuth("", e.cfg.Username, e.cfg.Password, e.cfg.SMTPHost)
	}

	if e.cfg.UseSSL {
		return e.deliverTLS(addr, auth, msg)
	}

	conn, err := net.DialTimeout("tcp", addr, e.timeout)
	if err != nil {
		return fmt.Errorf("smtp dial failed: %w", err)
	}
	// Deadline covers the whole SMTP exchange, not just the dial.
	conn.SetDeadline(time.Now().Add(e.timeout))

	client, err := smtp.NewClient(conn, e.cfg.SMTPHost)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake failed: %w", err)
	}
	defer client.Close()

	if e.cfg.UseStartTLS {
		if err := client.StartTLS(&tls.Config{ServerName: e.cfg.SMTPHost}); err != nil {
			return fmt.Errorf("starttls failed: %w", err)
		}
	}
	return e.submit(client, auth, msg)
}

func (e *EmailNotifier) deliverTLS(addr string, auth smtp.Auth, msg []byte) error {
	dialer := &net.Dialer{Timeout: e.timeout}
	conn, err := tls.DialWithDialer(dialer, "tcp", addr, &tls.Config{ServerName: e.cfg.SMTPHost})
	if err != nil {
		return fmt.Errorf("smtp tls dial failed: %w", err)
	}
	conn.SetDeadline(time.Now().Add(e.timeout))

	client, err := smtp.NewClient(conn, e.cfg.SMTPHost)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake failed: %w", err)
	}
	defer client.Close()
	return e.submit(client, auth, msg)
}

func (e *EmailNotifier) submit(client *smtp.Client, auth smtp.Auth, msg []byte) error {
	if auth != nil {
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth failed: %w", err)
		}
	}
	if err := client.Mail(e.cfg.FromAddr); err != nil {
		return fmt.Errorf("smtp mail failed: %w", err)
	}
	for _, to := range e.cfg.ToAddrs {
		if err := client.Rcpt(to); err != nil {
			return fmt.Errorf("smtp rcpt %s failed: %w", to, err)
		}
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data failed: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		w.Close()
		return fmt.Errorf("smtp write failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp close failed: %w", err)
	}
	return client.Quit()
}

func htmlColor(s models.Severity) string {
	switch s {
	case models.SeverityCrit:
		return "#d63031"
	case models.SeverityWarn:
		return "#e17055"
	case models.SeverityOK:
		return "#00b894"
	default:
		return "#636e72"
	}
}

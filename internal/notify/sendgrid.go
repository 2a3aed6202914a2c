package notify

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"

	"github.com/your-org/facewatch/internal/config"
	"github.com/your-org/facewatch/internal/models"
)

const sendGridURL = "https://api.sendgrid.com/v3/mail/send"

// SendGrid sends HTML email through the SendGrid v3 API.
type SendGrid struct {
	client *http.Client
	url    string
	apiKey string
	from   string
	to     string
}

func NewSendGrid(cfg config.EmailConfig, client *http.Client) (*SendGrid, error) {
	if cfg.SendGridAPIKey == "" || cfg.FromEmail == "" || cfg.ToEmail == "" {
		return nil, fmt.Errorf("email channel needs sendgrid_api_key, from_email and to_email")
	}
	if client == nil {
		client = &http.Client{}
	}
	return &SendGrid{
		client: client,
		url:    sendGridURL,
		apiKey: cfg.SendGridAPIKey,
		from:   cfg.FromEmail,
		to:     cfg.ToEmail,
	}, nil
}

func (s *SendGrid) Name() string { return "email" }

type sgAddress struct {
	Email string `json:"email"`
}

type sgPersonalization struct {
	To      []sgAddress `json:"to"`
	Subject string      `json:"subject"`
}

type sgContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sgAttachment struct {
	Content     string `json:"content"`
	Type        string `json:"type"`
	Filename    string `json:"filename"`
	Disposition string `json:"disposition"`
}

type sgMail struct {
	Personalizations []sgPersonalization `json:"personalizations"`
	From             sgAddress           `json:"from"`
	Content          []sgContent         `json:"content"`
	Attachments      []sgAttachment      `json:"attachments,omitempty"`
}

func emailBody(n *models.Notification) string {
	return fmt.Sprintf(`<html>
<body style="font-family: Arial, sans-serif; padding: 20px;">
  <h2 style="color: #667eea;">%s</h2>
  <p style="font-size: 16px;">%s</p>
  <p style="color: #666; font-size: 14px;">Time: %s</p>
  <hr style="border: 1px solid #eee;">
  <p style="color: #999; font-size: 12px;">facewatch visitor monitor</p>
</body>
</html>`, html.EscapeString(n.Title), html.EscapeString(n.Message), html.EscapeString(n.Timestamp))
}

func (s *SendGrid) Send(ctx context.Context, n *models.Notification, image []byte) error {
	mail := sgMail{
		Personalizations: []sgPersonalization{{
			To:      []sgAddress{{Email: s.to}},
			Subject: n.Title,
		}},
		From:    sgAddress{Email: s.from},
		Content: []sgContent{{Type: "text/html", Value: emailBody(n)}},
	}
	if len(image) > 0 {
		name := n.ImagePath
		if name == "" {
			name = "visitor.jpg"
		}
		mail.Attachments = []sgAttachment{{
			Content:     base64.StdEncoding.EncodeToString(image),
			Type:        "image/jpeg",
			Filename:    name,
			Disposition: "attachment",
		}}
	}

	payload, err := json.Marshal(mail)
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build email request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("sendgrid returned %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	return nil
}

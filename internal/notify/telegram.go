package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"github.com/your-org/facewatch/internal/config"
	"github.com/your-org/facewatch/internal/models"
)

const telegramAPI = "https://api.telegram.org"

// Telegram posts to a chat through the Bot API. A crop, when present, is
// sent as a photo with the text as caption.
type Telegram struct {
	client  *http.Client
	baseURL string
	token   string
	chatID  string
}

func NewTelegram(cfg config.TelegramConfig, client *http.Client) (*Telegram, error) {
	if cfg.BotToken == "" || cfg.ChatID == "" {
		return nil, fmt.Errorf("telegram channel needs bot_token and chat_id")
	}
	if client == nil {
		client = &http.Client{}
	}
	return &Telegram{client: client, baseURL: telegramAPI, token: cfg.BotToken, chatID: cfg.ChatID}, nil
}

func (t *Telegram) Name() string { return "telegram" }

func telegramText(n *models.Notification) string {
	clock := n.Timestamp
	if i := strings.LastIndexByte(clock, ' '); i >= 0 {
		clock = clock[i+1:]
	}
	return fmt.Sprintf("<b>%s</b>\n\n%s\n\n<i>Time: %s</i>",
		html.EscapeString(n.Title), html.EscapeString(n.Message), html.EscapeString(clock))
}

func (t *Telegram) endpoint(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", t.baseURL, t.token, method)
}

func (t *Telegram) Send(ctx context.Context, n *models.Notification, image []byte) error {
	var req *http.Request
	var err error
	if len(image) > 0 {
		req, err = t.photoRequest(ctx, n, image)
	} else {
		form := url.Values{
			"chat_id":    {t.chatID},
			"text":       {telegramText(n)},
			"parse_mode": {"HTML"},
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint("sendMessage"), strings.NewReader(form.Encode()))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	if err != nil {
		return fmt.Errorf("build telegram request: %w", err)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		// the request URL carries the bot token
		var uerr *url.Error
		if errors.As(err, &uerr) {
			return fmt.Errorf("send telegram: %w", uerr.Err)
		}
		return fmt.Errorf("send telegram: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("telegram returned %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	return nil
}

func (t *Telegram) photoRequest(ctx context.Context, n *models.Notification, image []byte) (*http.Request, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fields := [][2]string{
		{"chat_id", t.chatID},
		{"caption", telegramText(n)},
		{"parse_mode", "HTML"},
	}
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return nil, err
		}
	}

	name := n.ImagePath
	if name == "" {
		name = "visitor.jpg"
	}
	part, err := mw.CreateFormFile("photo", name)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(image); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint("sendPhoto"), &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req, nil
}

package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Sender pushes reply chunks through the Telegram Bot API. Messages go out
// with Markdown rendering first; when Telegram rejects the markup (answers
// routinely contain stray underscores and asterisks) the same text is
// retried as plain text so the user still gets the reply.
type Sender struct {
	httpClient *http.Client
	token      string
}

func NewSender(token string) *Sender {
	return &Sender{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		token:      token,
	}
}

func (s *Sender) Send(ctx context.Context, chatID int64, text string) error {
	if err := s.sendMessage(ctx, chatID, text, "Markdown"); err == nil {
		return nil
	}
	return s.sendMessage(ctx, chatID, text, "")
}

func (s *Sender) sendMessage(ctx context.Context, chatID int64, text, parseMode string) error {
	payload := map[string]interface{}{
		"chat_id": chatID,
		"text":    text,
	}
	if parseMode != "" {
		payload["parse_mode"] = parseMode
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload failed: %w", err)
	}

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", s.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build telegram request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("telegram request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("telegram response status %d: %s", resp.StatusCode, string(raw))
	}
	return nil
}

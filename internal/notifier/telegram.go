package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/openshelf-backend/pkg/config"
	apperrors "github.com/angelmondragon/openshelf-backend/pkg/errors"
)

const telegramAPIBase = "https://api.telegram.org"

// TelegramSink posts messages to a Telegram chat through the Bot API.
type TelegramSink struct {
	httpClient *http.Client
	baseURL    string
	botToken   string
	chatID     string
}

// NewTelegramSink builds a sink for the configured bot token and chat.
func NewTelegramSink(cfg config.TelegramConfig) (*TelegramSink, error) {
	if strings.TrimSpace(cfg.BotToken) == "" {
		return nil, fmt.Errorf("telegram bot token is required")
	}
	if strings.TrimSpace(cfg.ChatID) == "" {
		return nil, fmt.Errorf("telegram chat id is required")
	}
	return &TelegramSink{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    telegramAPIBase,
		botToken:   strings.TrimSpace(cfg.BotToken),
		chatID:     strings.TrimSpace(cfg.ChatID),
	}, nil
}

type sendMessageRequest struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Send posts one message to the configured chat.
func (s *TelegramSink) Send(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return apperrors.New(apperrors.CodeValidation, "message text is required")
	}

	body, err := json.Marshal(sendMessageRequest{ChatID: s.chatID, Text: text})
	if err != nil {
		return fmt.Errorf("encoding telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.baseURL, s.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeDependency, err, "sending telegram message")
	}
	defer resp.Body.Close()

	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))

	var parsed sendMessageResponse
	if err := json.Unmarshal(payload, &parsed); err != nil || !parsed.OK {
		description := parsed.Description
		if description == "" {
			description = strings.TrimSpace(string(payload))
		}
		return apperrors.New(apperrors.CodeDependency,
			fmt.Sprintf("telegram api rejected message (status %d): %s", resp.StatusCode, description))
	}
	return nil
}

// Package telegram pushes violation alerts to a Telegram chat. Each
// alert carries the evidence crop when available. Alerts are rate
// limited per violation type so a burst of frames does not flood the
// chat.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Bot sends violation alerts through the Telegram Bot API.
type Bot struct {
	botToken   string
	chatID     string
	httpClient *http.Client

	mu              sync.Mutex
	enabled         bool
	cooldownTracker map[string]time.Time
	cooldownPeriod  time.Duration
}

// Config holds Telegram bot configuration.
type Config struct {
	BotToken        string
	ChatID          string
	Enabled         bool
	CooldownSeconds int
}

type apiResponse struct {
	OK          bool        `json:"ok"`
	Result      interface{} `json:"result,omitempty"`
	ErrorCode   int         `json:"error_code,omitempty"`
	Description string      `json:"description,omitempty"`
}

// ValidateConfig validates the Telegram bot configuration.
func ValidateConfig(config Config) error {
	if config.Enabled {
		if config.BotToken == "" {
			return fmt.Errorf("telegram bot token is required when enabled")
		}
		if config.ChatID == "" {
			return fmt.Errorf("telegram chat ID is required when enabled")
		}
	}
	if config.CooldownSeconds < 0 {
		return fmt.Errorf("cooldown seconds cannot be negative")
	}
	return nil
}

// NewBot creates a new Telegram bot instance.
func NewBot(config Config) *Bot {
	cooldownPeriod := time.Duration(config.CooldownSeconds) * time.Second
	if cooldownPeriod == 0 {
		cooldownPeriod = 30 * time.Second
	}

	return &Bot{
		botToken:        config.BotToken,
		chatID:          config.ChatID,
		enabled:         config.Enabled,
		httpClient:      &http.Client{Timeout: 30 * time.Second},
		cooldownTracker: make(map[string]time.Time),
		cooldownPeriod:  cooldownPeriod,
	}
}

// IsEnabled returns whether the bot is enabled.
func (b *Bot) IsEnabled() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.enabled
}

// SendViolationAlert sends a violation alert, with the evidence crop as
// photo when available. Alerts within the cooldown window for the same
// violation type are dropped without error.
func (b *Bot) SendViolationAlert(ctx context.Context, violationType, source, plateNumber string, ts time.Time, evidence []byte) error {
	b.mu.Lock()
	if !b.enabled {
		b.mu.Unlock()
		return fmt.Errorf("telegram bot is disabled")
	}
	if b.botToken == "" || b.chatID == "" {
		b.mu.Unlock()
		return fmt.Errorf("telegram bot token or chat ID not configured")
	}
	if !b.checkCooldown(violationType) {
		b.mu.Unlock()
		return nil
	}
	b.updateCooldown(violationType)
	b.mu.Unlock()

	zoneName, _ := ts.Zone()
	message := fmt.Sprintf(
		"🚨 <b>Traffic Violation!</b>\n\n"+
			"⚠️ Violation: %s\n"+
			"📹 Source: %s\n"+
			"🕐 Time: %s %s",
		formatViolationType(violationType),
		source,
		ts.Format("2 Jan 2006, 15:04:05"), zoneName,
	)
	if plateNumber != "" {
		message += fmt.Sprintf("\n🔖 Plate: %s", plateNumber)
	}

	if len(evidence) > 0 {
		return b.sendPhoto(ctx, evidence, message)
	}
	return b.sendMessage(ctx, message)
}

// SendTestMessage sends a test message to verify the bot configuration.
func (b *Bot) SendTestMessage(ctx context.Context) error {
	message := fmt.Sprintf(
		"🤖 <b>TrafficWatch Test Message</b>\n\n"+
			"✅ Telegram bot is working correctly!\n"+
			"🕐 Test sent at: %s",
		time.Now().Format("2 Jan 2006, 15:04:05"),
	)
	return b.sendMessage(ctx, message)
}

func formatViolationType(violationType string) string {
	return strings.ReplaceAll(violationType, "_", " ")
}

func (b *Bot) sendMessage(ctx context.Context, message string) error {
	payload := map[string]interface{}{
		"chat_id":    b.chatID,
		"text":       message,
		"parse_mode": "HTML",
	}

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", b.botToken)

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	return b.handleResponse(resp)
}

// sendPhoto sends a photo using multipart form data.
func (b *Bot) sendPhoto(ctx context.Context, photoData []byte, caption string) error {
	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendPhoto", b.botToken)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	if err := writer.WriteField("chat_id", b.chatID); err != nil {
		return fmt.Errorf("failed to write chat_id field: %w", err)
	}
	if caption != "" {
		if err := writer.WriteField("caption", caption); err != nil {
			return fmt.Errorf("failed to write caption field: %w", err)
		}
		if err := writer.WriteField("parse_mode", "HTML"); err != nil {
			return fmt.Errorf("failed to write parse_mode field: %w", err)
		}
	}

	part, err := writer.CreateFormFile("photo", "evidence.jpg")
	if err != nil {
		return fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(photoData); err != nil {
		return fmt.Errorf("failed to write photo data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, &body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send photo: %w", err)
	}
	defer resp.Body.Close()

	return b.handleResponse(resp)
}

func (b *Bot) handleResponse(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	var apiResp apiResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if !apiResp.OK {
		return fmt.Errorf("telegram API error %d: %s", apiResp.ErrorCode, apiResp.Description)
	}
	return nil
}

// checkCooldown reports whether the cooldown period has elapsed for a
// violation type. Caller holds the mutex.
func (b *Bot) checkCooldown(violationType string) bool {
	lastTime, exists := b.cooldownTracker[violationType]
	if !exists {
		return true
	}
	return time.Since(lastTime) >= b.cooldownPeriod
}

func (b *Bot) updateCooldown(violationType string) {
	b.cooldownTracker[violationType] = time.Now()
}

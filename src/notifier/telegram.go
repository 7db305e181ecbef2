package notifier

import (
	"context"
	"fmt"
	"strings"
	"time"

	"signalauditor/src/model"

	"github.com/go-resty/resty/v2"
	"github.com/kelseyhightower/envconfig"
	logger "github.com/sirupsen/logrus"
)

const defaultTelegramBaseURL = "https://api.telegram.org"

type Config struct {
	BotToken string `envconfig:"TELEGRAM_BOT_TOKEN"`
	ChatID   string `envconfig:"TELEGRAM_CHAT_ID"`
	BaseURL  string `envconfig:"TELEGRAM_BASE_URL" default:"https://api.telegram.org"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}

// TelegramNotifier pushes terminal-outcome messages through the Telegram bot
// API.
type TelegramNotifier struct {
	chatID string
	http   *resty.Client
}

func NewTelegramNotifier(config Config) *TelegramNotifier {
	baseURL := strings.TrimRight(config.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultTelegramBaseURL
	}

	httpClient := resty.New().
		SetBaseURL(baseURL + "/bot" + config.BotToken).
		SetTimeout(10 * time.Second).
		SetRetryCount(2)

	return &TelegramNotifier{
		chatID: config.ChatID,
		http:   httpClient,
	}
}

// NewFromEnv returns a Telegram notifier when a bot token is configured and
// a Nop otherwise.
func NewFromEnv() Notifier {
	config := GetConfig()
	if config.BotToken == "" || config.ChatID == "" {
		logger.Info("telegram notifier not configured, notifications disabled")
		return Nop{}
	}
	return NewTelegramNotifier(config)
}

func (t *TelegramNotifier) SignalClosed(ctx context.Context, rec model.SignalRecord) {
	resp, err := t.http.R().
		SetContext(ctx).
		SetBody(map[string]interface{}{
			"chat_id": t.chatID,
			"text":    formatClosed(rec),
		}).
		Post("/sendMessage")
	if err != nil {
		logger.WithError(err).WithField("signal_ref", rec.SignalRef).
			Warn("failed to deliver telegram notification")
		return
	}
	if resp.IsError() {
		logger.WithFields(logger.Fields{
			"signal_ref": rec.SignalRef,
			"status":     resp.StatusCode(),
		}).Warn("telegram rejected notification")
	}
}

func formatClosed(rec model.SignalRecord) string {
	outcome := "?"
	if rec.Outcome != nil {
		outcome = string(*rec.Outcome)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s closed: %s", rec.Symbol, strings.ToUpper(string(rec.Direction)), outcome)
	if rec.PnlR != nil {
		fmt.Fprintf(&b, " (%+.2fR)", *rec.PnlR)
	}
	if rec.Notes != "" {
		fmt.Fprintf(&b, "\n%s", rec.Notes)
	}
	return b.String()
}

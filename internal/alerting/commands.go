package alerting

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Command is one operator instruction received over the chat channel,
// e.g. "/reset BTCUSDT momentum BUY".
type Command struct {
	Name string
	Args []string
}

// CommandSource polls the chat channel for pending operator commands.
// Each Poll drains whatever arrived since the previous call.
type CommandSource interface {
	Poll(ctx context.Context) ([]Command, error)
}

// TelegramCommandSource reads commands via the getUpdates long-poll API,
// keeping an offset cursor so each update is consumed once.
type TelegramCommandSource struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger

	offset int64
}

// NewTelegramCommandSource constructs a command poller bound to one chat.
func NewTelegramCommandSource(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramCommandSource {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramCommandSource{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "command_telegram").Logger(),
	}
}

type telegramUpdate struct {
	UpdateID int64 `json:"update_id"`
	Message  *struct {
		Text string `json:"text"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
	} `json:"message"`
}

// Poll fetches pending updates and returns the slash commands sent to the
// configured chat. Messages from other chats advance the cursor but are
// ignored.
func (s *TelegramCommandSource) Poll(ctx context.Context) ([]Command, error) {
	url := fmt.Sprintf("%s/bot%s/getUpdates?offset=%d", s.baseURL, s.botToken, s.offset)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create getUpdates request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("poll telegram updates: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("telegram responded with status %d", resp.StatusCode)
	}

	var payload struct {
		OK     bool             `json:"ok"`
		Result []telegramUpdate `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode getUpdates response: %w", err)
	}
	if !payload.OK {
		return nil, fmt.Errorf("telegram returned ok=false")
	}

	commands := make([]Command, 0, len(payload.Result))
	for _, upd := range payload.Result {
		if upd.UpdateID >= s.offset {
			s.offset = upd.UpdateID + 1
		}
		if upd.Message == nil || !strings.HasPrefix(upd.Message.Text, "/") {
			continue
		}
		if s.chatID != "" && strconv.FormatInt(upd.Message.Chat.ID, 10) != s.chatID {
			continue
		}
		fields := strings.Fields(upd.Message.Text)
		commands = append(commands, Command{Name: fields[0], Args: fields[1:]})
	}

	if len(commands) > 0 {
		s.logger.Debug().Int("count", len(commands)).Msg("operator commands received")
	}
	return commands, nil
}

var _ CommandSource = (*TelegramCommandSource)(nil)

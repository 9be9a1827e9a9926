package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DefaultSlackURL is the Web API endpoint.
const DefaultSlackURL = "https://slack.com/api"

// blockSeparator splits a rendered message into Slack sections.
const blockSeparator = "\n--\n"

// SlackBlock is a Block Kit block. Only sections and dividers are produced.
type SlackBlock struct {
	Type string     `json:"type"`
	Text *SlackText `json:"text,omitempty"`
}

type SlackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// SlackBlocks splits markdown on "--" lines into sections separated by dividers.
// Slack caps the text of a single section.
func SlackBlocks(markdown string) []SlackBlock {
	parts := strings.Split(markdown, blockSeparator)
	blocks := make([]SlackBlock, 0, 2*len(parts)-1)
	for i, p := range parts {
		if i != 0 {
			blocks = append(blocks, SlackBlock{Type: "divider"})
		}
		blocks = append(blocks, SlackBlock{Type: "section", Text: &SlackText{Type: "mrkdwn", Text: p}})
	}
	return blocks
}

// SlackNotifier posts messages with chat.postMessage.
type SlackNotifier struct {
	Token   string
	BaseURL string
	Client  *http.Client
	Logger  zerolog.Logger
}

func NewSlackNotifier(token, baseURL, proxyURL string, logger zerolog.Logger) *SlackNotifier {
	if baseURL == "" {
		baseURL = DefaultSlackURL
	}
	return &SlackNotifier{
		Token:   token,
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  newHTTPClient(proxyURL, 30*time.Second),
		Logger:  logger.With().Str("component", "slack").Logger(),
	}
}

// Deliver posts markdown to #channel.
func (s *SlackNotifier) Deliver(ctx context.Context, channel, markdown string) error {
	if channel == "" {
		return fmt.Errorf("slack channel is not set")
	}
	if !strings.HasPrefix(channel, "#") {
		channel = "#" + channel
	}
	payload := struct {
		Channel string       `json:"channel"`
		Text    string       `json:"text"`
		Blocks  []SlackBlock `json:"blocks"`
	}{
		Channel: channel,
		Text:    markdown,
		Blocks:  SlackBlocks(markdown),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseURL+"/chat.postMessage", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+s.Token)

	resp, err := s.Client.Do(req)
	if err != nil {
		return fmt.Errorf("post message: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack API error: status %d", resp.StatusCode)
	}

	// The Web API reports failures in the body with a 200 status.
	var result struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decode slack response: %w", err)
	}
	if !result.OK {
		return fmt.Errorf("slack API error: %s", result.Error)
	}
	s.Logger.Debug().Str("channel", channel).Int("blocks", len(payload.Blocks)).Msg("slack message posted")
	return nil
}

// Package onebot delivers notifications through a OneBot v11 HTTP API
// (go-cqhttp, NapCat, LLOneBot), including merged forward messages.
package onebot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bissquit/mediahook/internal/notifications"
	"github.com/goccy/go-json"
)

const (
	defaultPlatform   = "aiocqhttp"
	defaultSenderName = "媒体通知"
	defaultSenderID   = "2659908767"
	defaultTimeout    = 10 * time.Second
	maxResponseBytes  = 1 << 20
)

// Aliases are the platform names served by this adapter besides its own.
var Aliases = []string{"napcat", "llonebot", "onebot", "cqhttp"}

// Config holds OneBot adapter configuration.
type Config struct {
	APIURL      string
	AccessToken string
	GroupID     string
	Platform    string
	SenderName  string // shown on forward nodes
	SenderID    string // uin shown on forward nodes
	Timeout     time.Duration
}

// Adapter implements notifications.Adapter for OneBot v11.
type Adapter struct {
	config     Config
	groupID    int64
	httpClient *http.Client
}

// New creates a OneBot adapter.
func New(config Config) (*Adapter, error) {
	if config.APIURL == "" {
		return nil, errors.New("onebot adapter: api url is required")
	}
	groupID, err := strconv.ParseInt(strings.TrimSpace(config.GroupID), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("onebot adapter: invalid group id %q: %w", config.GroupID, err)
	}
	if config.Platform == "" {
		config.Platform = defaultPlatform
	}
	if config.SenderName == "" {
		config.SenderName = defaultSenderName
	}
	if config.SenderID == "" {
		config.SenderID = defaultSenderID
	}
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}
	config.APIURL = strings.TrimRight(config.APIURL, "/")

	slog.Info("onebot adapter configured",
		"platform", config.Platform,
		"group_id", groupID,
		"auth", config.AccessToken != "",
	)

	return &Adapter{
		config:     config,
		groupID:    groupID,
		httpClient: &http.Client{Timeout: config.Timeout},
	}, nil
}

// Capability implements notifications.Adapter.
func (a *Adapter) Capability() notifications.Capability {
	return notifications.Capability{Platform: a.config.Platform, SupportsMergeForward: true}
}

// segment is a OneBot message segment.
type segment struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

type groupMessage struct {
	GroupID int64     `json:"group_id"`
	Message []segment `json:"message"`
}

type forwardMessage struct {
	GroupID  int64     `json:"group_id"`
	Messages []segment `json:"messages"`
}

type apiResponse struct {
	Status  string `json:"status"`
	RetCode int    `json:"retcode"`
	Message string `json:"message"`
	Wording string `json:"wording"`
}

// SendIndividual posts msg to the group with send_group_msg.
func (a *Adapter) SendIndividual(ctx context.Context, msg notifications.Message) error {
	segments := messageSegments(msg)
	if len(segments) == 0 {
		return notifications.NewPermanentError(notifications.ErrEmptyMessage)
	}
	return a.call(ctx, "send_group_msg", groupMessage{GroupID: a.groupID, Message: segments})
}

// SendForwardBundle posts msgs as one merged forward message, one node per
// message, with send_group_forward_msg.
func (a *Adapter) SendForwardBundle(ctx context.Context, msgs []notifications.Message) error {
	nodes := make([]segment, 0, len(msgs))
	for _, msg := range msgs {
		content := messageSegments(msg)
		if len(content) == 0 {
			continue
		}
		nodes = append(nodes, segment{
			Type: "node",
			Data: map[string]any{
				"name":    a.config.SenderName,
				"uin":     a.config.SenderID,
				"content": content,
			},
		})
	}
	if len(nodes) == 0 {
		return notifications.NewPermanentError(notifications.ErrEmptyMessage)
	}
	return a.call(ctx, "send_group_forward_msg", forwardMessage{GroupID: a.groupID, Messages: nodes})
}

// messageSegments puts the image first, matching how media posts render
// best in QQ clients.
func messageSegments(msg notifications.Message) []segment {
	var segments []segment
	if msg.ImageURL != "" {
		segments = append(segments, segment{Type: "image", Data: map[string]any{"file": msg.ImageURL}})
	}
	if msg.Text != "" {
		text := msg.Text
		if msg.ImageURL != "" {
			text = "\n" + text
		}
		segments = append(segments, segment{Type: "text", Data: map[string]any{"text": text}})
	}
	return segments
}

func (a *Adapter) call(ctx context.Context, action string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", action, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.APIURL+"/"+action, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if a.config.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+a.config.AccessToken)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return notifications.NewRetryableError(fmt.Errorf("onebot %s: %w", action, err))
	}
	defer func() { _ = resp.Body.Close() }()

	return a.handleResponse(action, resp)
}

func (a *Adapter) handleResponse(action string, resp *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return notifications.NewRetryableError(fmt.Errorf("read response: %w", err))
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return notifications.NewPermanentError(fmt.Errorf("onebot %s: access token rejected (status %d)", action, resp.StatusCode))
	case resp.StatusCode >= 500:
		return notifications.NewRetryableError(fmt.Errorf("onebot %s: server error %d: %s", action, resp.StatusCode, string(body)))
	case resp.StatusCode != http.StatusOK:
		return notifications.NewPermanentError(fmt.Errorf("onebot %s: unexpected status %d: %s", action, resp.StatusCode, string(body)))
	}

	var result apiResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return notifications.NewPermanentError(fmt.Errorf("onebot %s: decode response: %w", action, err))
	}
	if result.RetCode != 0 || (result.Status != "" && result.Status != "ok" && result.Status != "async") {
		reason := result.Wording
		if reason == "" {
			reason = result.Message
		}
		return notifications.NewPermanentError(fmt.Errorf("onebot %s failed: retcode %d: %s", action, result.RetCode, reason))
	}

	slog.Debug("onebot message sent", "action", action, "group_id", a.groupID)
	return nil
}

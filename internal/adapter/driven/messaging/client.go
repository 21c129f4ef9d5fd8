// Package messaging implements the outbound WhatsApp gateway over its HTTP/JSON API.
package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ericfisherdev/leadinbox/internal/domain/model"
	"github.com/ericfisherdev/leadinbox/internal/domain/port/driven"
	"github.com/ericfisherdev/leadinbox/internal/observability/metrics"
)

var _ driven.MessagingGateway = (*Client)(nil)

// maxErrorBody bounds how much of an upstream error response is kept.
const maxErrorBody = 4 << 10

// Client calls the gateway instance named by the per-request credentials.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a Client whose calls time out after timeout.
func NewClient(timeout time.Duration) *Client {
	return &Client{httpClient: &http.Client{Timeout: timeout}}
}

// NewClientWithHTTPClient creates a Client on an existing http.Client.
func NewClientWithHTTPClient(hc *http.Client) *Client {
	return &Client{httpClient: hc}
}

type sendTextRequest struct {
	Number string `json:"number"`
	Text   string `json:"text"`
}

type sendMediaRequest struct {
	Number string `json:"number"`
	Type   string `json:"type"`
	File   string `json:"file"`
	Text   string `json:"text,omitempty"`
}

type presenceRequest struct {
	Number   string `json:"number"`
	Presence string `json:"presence"`
}

type reactRequest struct {
	Number string `json:"number"`
	Text   string `json:"text"`
	ID     string `json:"id"`
}

type deleteRequest struct {
	Number string `json:"number,omitempty"`
	ID     string `json:"id"`
}

// sendResponse accepts both id spellings seen from gateway versions.
type sendResponse struct {
	MessageID string `json:"messageid"`
	ID        string `json:"id"`
	Status    string `json:"status"`
}

func (c *Client) SendText(ctx context.Context, creds driven.GatewayCredentials, phone, text string) (*driven.SentMessage, error) {
	var resp sendResponse
	if err := c.post(ctx, "send_text", creds, "/send/text", sendTextRequest{Number: phone, Text: text}, &resp); err != nil {
		return nil, err
	}
	return resp.sent(), nil
}

func (c *Client) SendMedia(ctx context.Context, creds driven.GatewayCredentials, phone string, media model.OutboundMedia) (*driven.SentMessage, error) {
	body := sendMediaRequest{Number: phone, Type: media.Type, File: media.URL, Text: media.Caption}
	var resp sendResponse
	if err := c.post(ctx, "send_media", creds, "/send/media", body, &resp); err != nil {
		return nil, err
	}
	return resp.sent(), nil
}

// SetTyping shows the "composing" indicator to phone.
func (c *Client) SetTyping(ctx context.Context, creds driven.GatewayCredentials, phone string) error {
	return c.post(ctx, "presence", creds, "/message/presence", presenceRequest{Number: phone, Presence: "composing"}, nil)
}

// SendReaction reacts to messageID with emoji. An empty emoji removes the reaction.
func (c *Client) SendReaction(ctx context.Context, creds driven.GatewayCredentials, phone, messageID, emoji string) error {
	return c.post(ctx, "react", creds, "/message/react", reactRequest{Number: phone, Text: emoji, ID: messageID}, nil)
}

func (c *Client) DeleteMessage(ctx context.Context, creds driven.GatewayCredentials, phone, messageID string) error {
	return c.post(ctx, "delete", creds, "/message/delete", deleteRequest{Number: phone, ID: messageID}, nil)
}

func (r sendResponse) sent() *driven.SentMessage {
	id := r.MessageID
	if id == "" {
		id = r.ID
	}
	return &driven.SentMessage{MessageID: id, Status: r.Status}
}

func (c *Client) post(ctx context.Context, op string, creds driven.GatewayCredentials, path string, body, result any) (err error) {
	defer func() { metrics.ObserveGatewayCall(op, err) }()

	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(creds.BaseURL, "/")+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("token", creds.Token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gateway %s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &driven.GatewayError{Op: op, StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if result == nil {
		return nil
	}
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", op, err)
	}
	if len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("decode %s response: %w", op, err)
	}
	return nil
}

package deliver

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/postgram/postgram/internal/feed"
)

const maxRelayResponseBytes = 1 << 20

// Relay sends messages through an intermediary HTTP endpoint that forwards
// them to Telegram. Image bytes travel base64-encoded inside the JSON
// envelope; the relay reconstructs the binary upload on its side.
type Relay struct {
	url       string
	botToken  string
	channelID string
	http      *http.Client
}

// NewRelay creates the relay transport.
func NewRelay(url, botToken, channelID string, httpClient *http.Client) *Relay {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Relay{
		url:       url,
		botToken:  botToken,
		channelID: channelID,
		http:      httpClient,
	}
}

// relayEnvelope is the JSON request body posted to the relay. ImageData
// serializes as null when the message has no attachment.
type relayEnvelope struct {
	BotToken  string      `json:"bot_token"`
	ChannelID string      `json:"channel_id"`
	Message   string      `json:"message"`
	ImageData *relayImage `json:"image_data"`
}

type relayImage struct {
	Data     string `json:"data"`
	MIMEType string `json:"mime_type"`
}

// relayResponse accepts both the relay's native shape
// {success, message?, message_id?, error?} and a raw Telegram passthrough
// {ok, result:{message_id}, description?, error_code?}.
type relayResponse struct {
	Success     *bool       `json:"success"`
	OK          *bool       `json:"ok"`
	MessageID   json.Number `json:"message_id"`
	Error       string      `json:"error"`
	Description string      `json:"description"`
	ErrorCode   int         `json:"error_code"`
	Result      *struct {
		MessageID json.Number `json:"message_id"`
	} `json:"result"`
}

// Send serializes the envelope and posts it to the relay URL.
func (r *Relay) Send(ctx context.Context, msg feed.RenderedMessage) feed.DeliveryResult {
	env := relayEnvelope{
		BotToken:  r.botToken,
		ChannelID: r.channelID,
		Message:   msg.Text,
	}
	if msg.Attachment != nil {
		env.ImageData = &relayImage{
			Data:     base64.StdEncoding.EncodeToString(msg.Attachment.Bytes),
			MIMEType: msg.Attachment.MIMEType,
		}
	}

	payload, err := json.Marshal(env)
	if err != nil {
		return feed.Failure(feed.ErrNetworkError, fmt.Sprintf("marshal relay envelope: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(payload))
	if err != nil {
		return feed.Failure(feed.ErrNetworkError, fmt.Sprintf("create relay request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.http.Do(req)
	if err != nil {
		return feed.Failure(feed.ErrNetworkError, fmt.Sprintf("relay request failed: %v", err))
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRelayResponseBytes))
	if err != nil {
		return feed.Failure(feed.ErrNetworkError, fmt.Sprintf("read relay response: %v", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return feed.Failure(feed.ErrNetworkError, fmt.Sprintf("relay returned status %d", resp.StatusCode))
	}

	return interpretRelayResponse(body)
}

func interpretRelayResponse(body []byte) feed.DeliveryResult {
	var parsed relayResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return feed.Failure(feed.ErrAPIRejected, "invalid relay response: not JSON")
	}

	ok := false
	switch {
	case parsed.Success != nil:
		ok = *parsed.Success
	case parsed.OK != nil:
		ok = *parsed.OK
	default:
		return feed.Failure(feed.ErrAPIRejected, "unrecognized relay response shape")
	}

	if !ok {
		detail := parsed.Error
		if detail == "" {
			detail = parsed.Description
		}
		if detail == "" {
			detail = "unknown relay error"
		}
		if parsed.ErrorCode != 0 {
			detail = fmt.Sprintf("%s (code %d)", detail, parsed.ErrorCode)
		}
		return feed.Failure(feed.ErrAPIRejected, detail)
	}

	id := parsed.MessageID.String()
	if id == "" && parsed.Result != nil {
		id = parsed.Result.MessageID.String()
	}
	return feed.Success(id)
}

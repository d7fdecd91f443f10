// Package feed defines the domain types exchanged between the stages of the
// delivery pipeline: publish events coming in from the content system,
// rendered messages and attachments flowing toward a transport, and the
// delivery result flowing back out.
package feed

import "fmt"

// PostPublishedEvent describes a single "post published" transition reported
// by the host content system. It is consumed read-only by the pipeline.
type PostPublishedEvent struct {
	PostID           string   `json:"post_id"`
	PreviousStatus   string   `json:"previous_status,omitempty"`
	Status           string   `json:"status"`
	Title            string   `json:"title"`
	Excerpt          string   `json:"excerpt,omitempty"`
	Content          string   `json:"content,omitempty"`
	Permalink        string   `json:"permalink"`
	Categories       []string `json:"categories,omitempty"`
	Tags             []string `json:"tags,omitempty"`
	FeaturedImageURL string   `json:"featured_image_url,omitempty"`
}

// StatusPublished is the canonical post status that triggers a delivery.
const StatusPublished = "publish"

// ImageAttachment is a single optional binary image bundled with a message.
type ImageAttachment struct {
	Bytes    []byte
	MIMEType string
	Size     int
}

// RenderedMessage is the composed caption/text plus optional attachment,
// consumed exactly once by a transport.
type RenderedMessage struct {
	Text       string
	Attachment *ImageAttachment
}

// ErrorKind classifies delivery failures.
type ErrorKind string

const (
	// ErrConfigurationInvalid means a required setting (token, channel,
	// relay URL) is missing or malformed. No network call was made.
	ErrConfigurationInvalid ErrorKind = "configuration_invalid"

	// ErrNetworkError is a transport-level failure: connection error,
	// timeout, or a response the HTTP client could not complete.
	ErrNetworkError ErrorKind = "network_error"

	// ErrInvalidCredentials means the bot token was rejected by getMe.
	ErrInvalidCredentials ErrorKind = "invalid_credentials"

	// ErrChannelUnreachable means getChat failed for the configured channel.
	ErrChannelUnreachable ErrorKind = "channel_unreachable"

	// ErrAPIRejected means the remote service returned a structured failure.
	ErrAPIRejected ErrorKind = "api_rejected"

	// ErrImageUnavailable marks a non-fatal image failure. It is never
	// surfaced as a pipeline error; the message degrades to text-only.
	ErrImageUnavailable ErrorKind = "image_unavailable"
)

// Error pairs an ErrorKind with human-readable detail. It is used where a
// caller needs to branch on the classification, e.g. connectivity checks.
type Error struct {
	Kind   ErrorKind
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

// DeliveryResult is the terminal value of one send attempt. Failed sends are
// never retried automatically.
type DeliveryResult struct {
	OK          bool
	MessageID   string
	ErrorKind   ErrorKind
	ErrorDetail string
}

// Failure builds a failed DeliveryResult.
func Failure(kind ErrorKind, detail string) DeliveryResult {
	return DeliveryResult{ErrorKind: kind, ErrorDetail: detail}
}

// Success builds a successful DeliveryResult carrying the remote message ID
// when the remote service reported one.
func Success(messageID string) DeliveryResult {
	return DeliveryResult{OK: true, MessageID: messageID}
}

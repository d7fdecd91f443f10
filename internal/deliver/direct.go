package deliver

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/postgram/postgram/internal/feed"
	"github.com/postgram/postgram/internal/telegram"
)

// Direct sends messages straight to the Telegram Bot API.
type Direct struct {
	client    *telegram.Client
	channelID string
}

// NewDirect creates the direct transport for the given channel.
func NewDirect(client *telegram.Client, channelID string) *Direct {
	return &Direct{client: client, channelID: channelID}
}

// Send issues sendPhoto when an attachment is present, sendMessage
// otherwise, and classifies the outcome.
func (d *Direct) Send(ctx context.Context, msg feed.RenderedMessage) feed.DeliveryResult {
	var (
		sent *telegram.Message
		err  error
	)

	if msg.Attachment != nil {
		sent, err = d.client.SendPhoto(ctx, telegram.SendPhotoRequest{
			ChatID:    d.channelID,
			Photo:     msg.Attachment.Bytes,
			MIMEType:  msg.Attachment.MIMEType,
			Caption:   msg.Text,
			ParseMode: telegram.ParseModeHTML,
		})
	} else {
		sent, err = d.client.SendMessage(ctx, telegram.SendMessageRequest{
			ChatID:    d.channelID,
			Text:      msg.Text,
			ParseMode: telegram.ParseModeHTML,
		})
	}

	if err != nil {
		var apiErr *telegram.APIError
		if errors.As(err, &apiErr) {
			detail := apiErr.Description
			if apiErr.Code != 0 {
				detail = fmt.Sprintf("%s (code %d)", apiErr.Description, apiErr.Code)
			}
			return feed.Failure(feed.ErrAPIRejected, detail)
		}
		return feed.Failure(feed.ErrNetworkError, err.Error())
	}

	return feed.Success(strconv.Itoa(sent.MessageID))
}

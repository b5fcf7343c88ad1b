package lark

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"go.uber.org/zap"

	"github.com/garyjia/purchase-approval/internal/application/port"
	"github.com/garyjia/purchase-approval/internal/domain/entity"
)

// Receive ID types understood by the IM API
const (
	receiveIDTypeOpenID = "open_id"
	receiveIDTypeEmail  = "email"

	msgTypePost = "post"
)

// messageCreator is the slice of the IM API the messenger uses
type messageCreator interface {
	Create(ctx context.Context, req *larkim.CreateMessageReq, options ...larkcore.RequestOptionFunc) (*larkim.CreateMessageResp, error)
}

// Messenger implements port.MessageSender with Lark IM post messages
type Messenger struct {
	messages messageCreator
	logger   *zap.Logger
}

// NewMessenger creates a new Lark message sender
func NewMessenger(sdk *SDKClient, logger *zap.Logger) *Messenger {
	return &Messenger{
		messages: sdk.GetClient().Im.Message,
		logger:   logger,
	}
}

// Name identifies the sender in logs
func (m *Messenger) Name() string {
	return "lark"
}

// Send delivers msg to the recipient's Lark account, falling back to their email
func (m *Messenger) Send(ctx context.Context, recipient *entity.User, msg port.Message) error {
	idType, id := receiverOf(recipient)
	if id == "" {
		return fmt.Errorf("user %d has neither a Lark open ID nor an email", recipient.ID)
	}

	content, err := postContent(msg)
	if err != nil {
		return err
	}

	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(idType).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(id).
			MsgType(msgTypePost).
			Content(content).
			Build()).
		Build()

	resp, err := m.messages.Create(ctx, req)
	if err != nil {
		m.logger.Error("Failed to send message",
			zap.Int64("user_id", recipient.ID),
			zap.String("receive_id_type", idType),
			zap.Error(err))
		return fmt.Errorf("failed to send message: %w", err)
	}

	if !resp.Success() {
		m.logger.Error("API returned failure",
			zap.Int64("user_id", recipient.ID),
			zap.Int("code", resp.Code),
			zap.String("msg", resp.Msg))
		return fmt.Errorf("API error: code=%d, msg=%s", resp.Code, resp.Msg)
	}

	messageID := ""
	if resp.Data != nil && resp.Data.MessageId != nil {
		messageID = *resp.Data.MessageId
	}

	m.logger.Info("Message sent successfully",
		zap.String("message_id", messageID),
		zap.Int64("user_id", recipient.ID))
	return nil
}

func receiverOf(u *entity.User) (string, string) {
	if u.LarkOpenID != "" {
		return receiveIDTypeOpenID, u.LarkOpenID
	}
	return receiveIDTypeEmail, u.Email
}

type postElement struct {
	Tag  string `json:"tag"`
	Text string `json:"text"`
}

type postBody struct {
	Title   string          `json:"title"`
	Content [][]postElement `json:"content"`
}

// postContent renders msg as a rich-text post, one paragraph per line
func postContent(msg port.Message) (string, error) {
	lines := strings.Split(strings.TrimRight(msg.Body, "\n"), "\n")
	paragraphs := make([][]postElement, 0, len(lines))
	for _, line := range lines {
		paragraphs = append(paragraphs, []postElement{{Tag: "text", Text: line}})
	}

	raw, err := json.Marshal(map[string]postBody{
		"en_us": {Title: msg.Title, Content: paragraphs},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal post content: %w", err)
	}
	return string(raw), nil
}

var _ port.MessageSender = (*Messenger)(nil)

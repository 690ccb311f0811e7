package firebase

import (
	"context"
	"fmt"
	"strconv"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"nursinghomes/internal/domain/cms"
	"nursinghomes/internal/shared/messages"
)

// DefaultTopic receives dataset refresh announcements.
const DefaultTopic = "dataset-updates"

// sender is the part of messaging.Client used here.
type sender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// Client implements update.Notifier using Firebase Cloud Messaging topics
type Client struct {
	msgClient sender
	topic     string
	messages  *messages.Messages
	logger    *zap.Logger
}

// NewClient initializes a Firebase app and returns an FCM topic notifier.
// A nil msgs uses the built-in notification texts.
func NewClient(ctx context.Context, credentialsFile, topic string, msgs *messages.Messages, logger *zap.Logger) (*Client, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}

	msgClient, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase messaging client: %w", err)
	}

	return newClient(msgClient, topic, msgs, logger), nil
}

func newClient(s sender, topic string, msgs *messages.Messages, logger *zap.Logger) *Client {
	if topic == "" {
		topic = DefaultTopic
	}
	if msgs == nil {
		msgs = messages.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{msgClient: s, topic: topic, messages: msgs, logger: logger}
}

// NotifyRefresh publishes a summary of a completed refresh to the topic
func (c *Client) NotifyRefresh(ctx context.Context, result *cms.RefreshResult) error {
	msg := buildRefreshMessage(c.topic, c.messages.DatasetRefreshed, result)

	id, err := c.msgClient.Send(ctx, msg)
	if err != nil {
		return fmt.Errorf("failed to send FCM topic message: %w", err)
	}

	c.logger.Info("refresh notification sent", zap.String("topic", c.topic), zap.String("message_id", id))
	return nil
}

func buildRefreshMessage(topic string, text messages.MessageText, result *cms.RefreshResult) *messaging.Message {
	data := map[string]string{"type": "dataset_refreshed"}
	title, body := text.Render(0, 0, 0).Title, "Nursing home data has been refreshed."

	if result != nil {
		data["outcome"] = string(result.Outcome)
		if f := result.Facilities; f != nil {
			data["facilities_processed"] = strconv.Itoa(f.Processed)
			data["facilities_new"] = strconv.Itoa(f.Inserted)
			data["facilities_updated"] = strconv.Itoa(f.Updated)
			rendered := text.Render(f.Processed, f.Inserted, f.Updated)
			title, body = rendered.Title, rendered.Body
		}
		if o := result.Owners; o != nil && o.Reconcile != nil {
			data["owners_processed"] = strconv.Itoa(o.Reconcile.Processed)
		}
	}

	return &messaging.Message{
		Topic: topic,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
	}
}

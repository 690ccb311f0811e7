package firebase

import (
	"context"
	"errors"
	"testing"

	"firebase.google.com/go/v4/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nursinghomes/internal/domain/cms"
	"nursinghomes/internal/domain/owner"
	"nursinghomes/internal/shared/messages"
)

// MockSender implements sender
type MockSender struct {
	SendFunc func(ctx context.Context, message *messaging.Message) (string, error)
	sent     []*messaging.Message
}

func (m *MockSender) Send(ctx context.Context, message *messaging.Message) (string, error) {
	m.sent = append(m.sent, message)
	if m.SendFunc != nil {
		return m.SendFunc(ctx, message)
	}
	return "projects/test/messages/1", nil
}

func TestNotifyRefresh(t *testing.T) {
	s := &MockSender{}
	c := newClient(s, "", nil, nil)

	err := c.NotifyRefresh(context.Background(), &cms.RefreshResult{
		Outcome:    cms.OutcomePartial,
		Owners:     &cms.OwnerSyncResult{Reconcile: &owner.ReconcileResult{Processed: 12}},
		Facilities: &cms.FacilitySyncResult{Processed: 40, Inserted: 3, Updated: 37},
	})
	require.NoError(t, err)
	require.Len(t, s.sent, 1)

	msg := s.sent[0]
	assert.Equal(t, DefaultTopic, msg.Topic)
	assert.Equal(t, "Data updated", msg.Notification.Title)
	assert.Equal(t, "40 facilities processed (3 new, 37 updated).", msg.Notification.Body)
	assert.Equal(t, "partial", msg.Data["outcome"])
	assert.Equal(t, "37", msg.Data["facilities_updated"])
	assert.Equal(t, "12", msg.Data["owners_processed"])
}

func TestNotifyRefreshNilResult(t *testing.T) {
	s := &MockSender{}
	c := newClient(s, "ops", nil, nil)

	require.NoError(t, c.NotifyRefresh(context.Background(), nil))
	assert.Equal(t, "ops", s.sent[0].Topic)
	assert.Equal(t, "dataset_refreshed", s.sent[0].Data["type"])
}

func TestNotifyRefreshSendError(t *testing.T) {
	s := &MockSender{
		SendFunc: func(ctx context.Context, message *messaging.Message) (string, error) {
			return "", errors.New("quota exceeded")
		},
	}
	c := newClient(s, "", nil, nil)

	err := c.NotifyRefresh(context.Background(), &cms.RefreshResult{Outcome: cms.OutcomeSuccess})
	assert.ErrorContains(t, err, "quota exceeded")
}

func TestNotifyRefreshCustomMessages(t *testing.T) {
	s := &MockSender{}
	msgs := &messages.Messages{DatasetRefreshed: messages.MessageText{
		Title: "Refresh: {processed}",
		Body:  "{new} added",
	}}
	c := newClient(s, "", msgs, nil)

	err := c.NotifyRefresh(context.Background(), &cms.RefreshResult{
		Outcome:    cms.OutcomeSuccess,
		Facilities: &cms.FacilitySyncResult{Processed: 5, Inserted: 2, Updated: 3},
	})
	require.NoError(t, err)
	assert.Equal(t, "Refresh: 5", s.sent[0].Notification.Title)
	assert.Equal(t, "2 added", s.sent[0].Notification.Body)
}

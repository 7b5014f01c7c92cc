package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	telebot "gopkg.in/telebot.v3"

	"github.com/marketbet/referral-bot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubSender struct {
	recipients []string
	texts      []string
	failFor    map[string]error
}

func (s *stubSender) Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error) {
	recipient := to.Recipient()
	if err, ok := s.failFor[recipient]; ok {
		return nil, err
	}

	s.recipients = append(s.recipients, recipient)
	if text, ok := what.(string); ok {
		s.texts = append(s.texts, text)
	}
	return &telebot.Message{}, nil
}

type stubLister struct {
	users []*domain.User
	err   error
}

func (s *stubLister) ListBroadcastable(ctx context.Context) ([]*domain.User, error) {
	return s.users, s.err
}

func TestTelegramNotifier_NotifyUser(t *testing.T) {
	sender := &stubSender{}
	notifier := NewTelegramNotifier(sender, "@announcements", testLogger())

	notifier.NotifyUser(context.Background(), "777", "hello")

	require.Len(t, sender.recipients, 1)
	assert.Equal(t, "777", sender.recipients[0])
	assert.Equal(t, "hello", sender.texts[0])
}

func TestTelegramNotifier_MalformedTelegramID(t *testing.T) {
	sender := &stubSender{}
	notifier := NewTelegramNotifier(sender, "", testLogger())

	notifier.NotifyUser(context.Background(), "not-an-id", "hello")

	assert.Empty(t, sender.recipients)
}

func TestTelegramNotifier_ChannelDisabledWhenUnset(t *testing.T) {
	sender := &stubSender{}
	notifier := NewTelegramNotifier(sender, "", testLogger())

	notifier.NotifyChannel(context.Background(), "announcement")

	assert.Empty(t, sender.recipients)
}

func TestTelegramNotifier_SendFailureIsSwallowed(t *testing.T) {
	sender := &stubSender{failFor: map[string]error{"777": errors.New("blocked")}}
	notifier := NewTelegramNotifier(sender, "@announcements", testLogger())

	notifier.NotifyUser(context.Background(), "777", "hello")
	notifier.NotifyChannel(context.Background(), "announcement")

	require.Len(t, sender.recipients, 1)
	assert.Equal(t, "@announcements", sender.recipients[0])
}

func broadcastUsers(ids ...string) []*domain.User {
	users := make([]*domain.User, 0, len(ids))
	for i, id := range ids {
		users = append(users, &domain.User{ID: int64(i + 1), TelegramID: id})
	}
	return users
}

func TestBroadcaster_DeliversToAllRecipients(t *testing.T) {
	sender := &stubSender{}
	lister := &stubLister{users: broadcastUsers("100", "200", "300")}
	b := NewBroadcaster(sender, lister, time.Millisecond, testLogger())

	sent, failed, err := b.Broadcast(context.Background(), "promo")

	require.NoError(t, err)
	assert.Equal(t, 3, sent)
	assert.Zero(t, failed)
	assert.Equal(t, []string{"100", "200", "300"}, sender.recipients)
}

func TestBroadcaster_ContinuesPastFailures(t *testing.T) {
	sender := &stubSender{failFor: map[string]error{"200": errors.New("bot was blocked")}}
	lister := &stubLister{users: broadcastUsers("100", "200", "300")}
	b := NewBroadcaster(sender, lister, time.Millisecond, testLogger())

	sent, failed, err := b.Broadcast(context.Background(), "promo")

	require.NoError(t, err)
	assert.Equal(t, 2, sent)
	assert.Equal(t, 1, failed)
	assert.Equal(t, []string{"100", "300"}, sender.recipients)
}

func TestBroadcaster_CancellationStopsRun(t *testing.T) {
	sender := &stubSender{}
	lister := &stubLister{users: broadcastUsers("100", "200", "300")}
	b := NewBroadcaster(sender, lister, 50*time.Millisecond, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sent, _, err := b.Broadcast(ctx, "promo")

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, sent)
}

func TestBroadcaster_ListFailure(t *testing.T) {
	lister := &stubLister{err: errors.New("db down")}
	b := NewBroadcaster(&stubSender{}, lister, time.Millisecond, testLogger())

	_, _, err := b.Broadcast(context.Background(), "promo")

	assert.Error(t, err)
}

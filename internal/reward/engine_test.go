package reward

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/marketbet/referral-bot/internal/apperr"
	"github.com/marketbet/referral-bot/internal/code"
	"github.com/marketbet/referral-bot/internal/domain"
	"github.com/marketbet/referral-bot/internal/lock"
	"github.com/marketbet/referral-bot/internal/repository"
)

var errStoreFailure = errors.New("store failure")

type mockUserRepo struct {
	mock.Mock
}

func (m *mockUserRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	args := m.Called(ctx, id)
	user, _ := args.Get(0).(*domain.User)
	return user, args.Error(1)
}

func (m *mockUserRepo) GetByTelegramID(ctx context.Context, telegramID string) (*domain.User, error) {
	args := m.Called(ctx, telegramID)
	user, _ := args.Get(0).(*domain.User)
	return user, args.Error(1)
}

func (m *mockUserRepo) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	args := m.Called(ctx, user)
	created, _ := args.Get(0).(*domain.User)
	return created, args.Error(1)
}

func (m *mockUserRepo) ApplyReferralReward(ctx context.Context, referrerID int64, reward domain.Cents) (*domain.User, error) {
	args := m.Called(ctx, referrerID, reward)
	user, _ := args.Get(0).(*domain.User)
	return user, args.Error(1)
}

func (m *mockUserRepo) DebitFullBalance(ctx context.Context, id int64) (domain.Cents, error) {
	args := m.Called(ctx, id)
	debited, _ := args.Get(0).(domain.Cents)
	return debited, args.Error(1)
}

func (m *mockUserRepo) CreditBalance(ctx context.Context, id int64, amount domain.Cents) error {
	args := m.Called(ctx, id, amount)
	return args.Error(0)
}

func (m *mockUserRepo) MarkPlayed(ctx context.Context, id int64) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *mockUserRepo) TouchLastActive(ctx context.Context, telegramID string) error {
	args := m.Called(ctx, telegramID)
	return args.Error(0)
}

func (m *mockUserRepo) ListAll(ctx context.Context) ([]*domain.User, error) {
	args := m.Called(ctx)
	users, _ := args.Get(0).([]*domain.User)
	return users, args.Error(1)
}

func (m *mockUserRepo) ListBroadcastable(ctx context.Context) ([]*domain.User, error) {
	args := m.Called(ctx)
	users, _ := args.Get(0).([]*domain.User)
	return users, args.Error(1)
}

func (m *mockUserRepo) WithTx(tx *sql.Tx) repository.UserRepository { return m }

type mockReferralRepo struct {
	mock.Mock
}

func (m *mockReferralRepo) Create(ctx context.Context, referrerID, referredID int64) (*domain.Referral, error) {
	args := m.Called(ctx, referrerID, referredID)
	ref, _ := args.Get(0).(*domain.Referral)
	return ref, args.Error(1)
}

func (m *mockReferralRepo) Complete(ctx context.Context, referredID int64) (bool, error) {
	args := m.Called(ctx, referredID)
	return args.Bool(0), args.Error(1)
}

func (m *mockReferralRepo) GetByReferredID(ctx context.Context, referredID int64) (*domain.Referral, error) {
	args := m.Called(ctx, referredID)
	ref, _ := args.Get(0).(*domain.Referral)
	return ref, args.Error(1)
}

func (m *mockReferralRepo) ListByReferrer(ctx context.Context, referrerID int64) ([]*domain.ReferralWithUser, error) {
	args := m.Called(ctx, referrerID)
	refs, _ := args.Get(0).([]*domain.ReferralWithUser)
	return refs, args.Error(1)
}

func (m *mockReferralRepo) WithTx(tx *sql.Tx) repository.ReferralRepository { return m }

type mockWithdrawalRepo struct {
	mock.Mock
}

func (m *mockWithdrawalRepo) Create(ctx context.Context, w *domain.Withdrawal) (*domain.Withdrawal, error) {
	args := m.Called(ctx, w)
	created, _ := args.Get(0).(*domain.Withdrawal)
	return created, args.Error(1)
}

func (m *mockWithdrawalRepo) GetByID(ctx context.Context, id int64) (*domain.Withdrawal, error) {
	args := m.Called(ctx, id)
	w, _ := args.Get(0).(*domain.Withdrawal)
	return w, args.Error(1)
}

func (m *mockWithdrawalRepo) Resolve(ctx context.Context, id int64, status domain.WithdrawalStatus, notes string) (bool, error) {
	args := m.Called(ctx, id, status, notes)
	return args.Bool(0), args.Error(1)
}

func (m *mockWithdrawalRepo) ListByUser(ctx context.Context, userID int64) ([]*domain.Withdrawal, error) {
	args := m.Called(ctx, userID)
	ws, _ := args.Get(0).([]*domain.Withdrawal)
	return ws, args.Error(1)
}

func (m *mockWithdrawalRepo) ListAllWithUser(ctx context.Context) ([]*domain.WithdrawalWithUser, error) {
	args := m.Called(ctx)
	ws, _ := args.Get(0).([]*domain.WithdrawalWithUser)
	return ws, args.Error(1)
}

func (m *mockWithdrawalRepo) WithTx(tx *sql.Tx) repository.WithdrawalRepository { return m }

type mockCodeRepo struct {
	mock.Mock
}

func (m *mockCodeRepo) Create(ctx context.Context, userID int64, codeValue string) (*domain.UniqueCode, error) {
	args := m.Called(ctx, userID, codeValue)
	c, _ := args.Get(0).(*domain.UniqueCode)
	return c, args.Error(1)
}

func (m *mockCodeRepo) Exists(ctx context.Context, codeValue string) (bool, error) {
	args := m.Called(ctx, codeValue)
	return args.Bool(0), args.Error(1)
}

func (m *mockCodeRepo) ListByUser(ctx context.Context, userID int64) ([]*domain.UniqueCode, error) {
	args := m.Called(ctx, userID)
	cs, _ := args.Get(0).([]*domain.UniqueCode)
	return cs, args.Error(1)
}

func (m *mockCodeRepo) ListAllWithUser(ctx context.Context) ([]*domain.UniqueCodeWithUser, error) {
	args := m.Called(ctx)
	cs, _ := args.Get(0).([]*domain.UniqueCodeWithUser)
	return cs, args.Error(1)
}

func (m *mockCodeRepo) WithTx(tx *sql.Tx) repository.CodeRepository { return m }

type mockSettingsRepo struct {
	mock.Mock
}

func (m *mockSettingsRepo) GetActive(ctx context.Context) (*domain.BotSettings, error) {
	args := m.Called(ctx)
	settings, _ := args.Get(0).(*domain.BotSettings)
	return settings, args.Error(1)
}

func (m *mockSettingsRepo) Replace(ctx context.Context, settings *domain.BotSettings) (*domain.BotSettings, error) {
	args := m.Called(ctx, settings)
	stored, _ := args.Get(0).(*domain.BotSettings)
	return stored, args.Error(1)
}

type mockActivityRepo struct {
	mock.Mock
}

func (m *mockActivityRepo) Append(ctx context.Context, typ domain.ActivityType, userID *int64, data json.RawMessage) error {
	args := m.Called(ctx, typ, userID, data)
	return args.Error(0)
}

func (m *mockActivityRepo) Recent(ctx context.Context, limit int) ([]*domain.ActivityWithUser, error) {
	args := m.Called(ctx, limit)
	logs, _ := args.Get(0).([]*domain.ActivityWithUser)
	return logs, args.Error(1)
}

func (m *mockActivityRepo) WithTx(tx *sql.Tx) repository.ActivityRepository { return m }

// stubTxRunner executes the callback directly; the mocks ignore the nil
// transaction because WithTx returns the mock itself.
type stubTxRunner struct{}

func (stubTxRunner) InTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return fn(nil)
}

type recordingNotifier struct {
	userMessages    map[string][]string
	channelMessages []string
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{userMessages: make(map[string][]string)}
}

func (n *recordingNotifier) NotifyUser(_ context.Context, telegramID, text string) {
	n.userMessages[telegramID] = append(n.userMessages[telegramID], text)
}

func (n *recordingNotifier) NotifyChannel(_ context.Context, text string) {
	n.channelMessages = append(n.channelMessages, text)
}

type engineFixture struct {
	users       *mockUserRepo
	referrals   *mockReferralRepo
	withdrawals *mockWithdrawalRepo
	codes       *mockCodeRepo
	settings    *mockSettingsRepo
	activity    *mockActivityRepo
	notifier    *recordingNotifier
	engine      *Engine
}

func newEngineFixture(t *testing.T, cfg Config) *engineFixture {
	t.Helper()

	f := &engineFixture{
		users:       &mockUserRepo{},
		referrals:   &mockReferralRepo{},
		withdrawals: &mockWithdrawalRepo{},
		codes:       &mockCodeRepo{},
		settings:    &mockSettingsRepo{},
		activity:    &mockActivityRepo{},
		notifier:    newRecordingNotifier(),
	}

	gen := code.NewGenerator(func(ctx context.Context, candidate string) (bool, error) {
		return false, nil
	})

	f.engine = NewEngine(
		stubTxRunner{},
		Stores{
			Users:       f.users,
			Referrals:   f.referrals,
			Withdrawals: f.withdrawals,
			Codes:       f.codes,
			Settings:    f.settings,
			Activity:    f.activity,
		},
		lock.NewMemoryLocker(),
		gen,
		f.notifier,
		cfg,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)

	return f
}

func (f *engineFixture) assertExpectations(t *testing.T) {
	t.Helper()
	f.users.AssertExpectations(t)
	f.referrals.AssertExpectations(t)
	f.withdrawals.AssertExpectations(t)
	f.codes.AssertExpectations(t)
	f.settings.AssertExpectations(t)
	f.activity.AssertExpectations(t)
}

func activeSettings() *domain.BotSettings {
	return &domain.BotSettings{
		ID:               1,
		NewUserBonus:     100,
		ReferralReward:   10,
		MinWithdrawal:    100,
		ReferralsForCode: 10,
		IsActive:         true,
	}
}

func TestEngine_RegisterUser_New(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t, Config{})

	f.users.On("GetByTelegramID", mock.Anything, "777").
		Return((*domain.User)(nil), sql.ErrNoRows).Once()
	f.settings.On("GetActive", mock.Anything).Return(activeSettings(), nil).Once()
	f.users.On("Create", mock.Anything, mock.MatchedBy(func(u *domain.User) bool {
		return u.TelegramID == "777" && u.Balance == 100 && u.ReferredBy == nil
	})).Return(&domain.User{ID: 5, TelegramID: "777", Username: "alice", Balance: 100}, nil).Once()
	f.activity.On("Append", mock.Anything, domain.ActivityNewUser, mock.Anything, mock.Anything).
		Return(nil).Once()

	user, created, err := f.engine.RegisterUser(ctx, "777", domain.Profile{Username: "alice"}, "")

	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, int64(5), user.ID)
	require.Len(t, f.notifier.channelMessages, 1)
	assert.Contains(t, f.notifier.channelMessages[0], "@alice")
	f.assertExpectations(t)
}

func TestEngine_RegisterUser_IdempotentOnTelegramID(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t, Config{})

	existing := &domain.User{ID: 5, TelegramID: "777", Balance: 100}
	f.users.On("GetByTelegramID", mock.Anything, "777").Return(existing, nil).Twice()

	for range 2 {
		user, created, err := f.engine.RegisterUser(ctx, "777", domain.Profile{}, "")
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, existing, user)
	}

	f.users.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	assert.Empty(t, f.notifier.channelMessages)
	f.assertExpectations(t)
}

func TestEngine_RegisterUser_WithReferrer(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t, Config{})

	referrer := &domain.User{ID: 3, TelegramID: "111", Username: "bob"}
	f.users.On("GetByTelegramID", mock.Anything, "777").
		Return((*domain.User)(nil), sql.ErrNoRows).Once()
	f.settings.On("GetActive", mock.Anything).Return(activeSettings(), nil).Once()
	f.users.On("GetByID", mock.Anything, int64(3)).Return(referrer, nil).Once()
	f.users.On("Create", mock.Anything, mock.MatchedBy(func(u *domain.User) bool {
		return u.ReferredBy != nil && *u.ReferredBy == 3
	})).Return(&domain.User{ID: 6, TelegramID: "777", ReferredBy: &referrer.ID}, nil).Once()
	f.referrals.On("Create", mock.Anything, int64(3), int64(6)).
		Return(&domain.Referral{ID: 1, ReferrerID: 3, ReferredID: 6}, nil).Once()
	f.activity.On("Append", mock.Anything, domain.ActivityNewUser, mock.Anything, mock.Anything).
		Return(nil).Once()

	user, created, err := f.engine.RegisterUser(ctx, "777", domain.Profile{}, "3")

	require.NoError(t, err)
	assert.True(t, created)
	require.NotNil(t, user.ReferredBy)
	assert.Equal(t, int64(3), *user.ReferredBy)
	f.assertExpectations(t)
}

func TestEngine_RegisterUser_BogusTokenDegradesToPlainSignup(t *testing.T) {
	ctx := context.Background()

	for _, token := range []string{"not-a-number", "99999"} {
		t.Run(token, func(t *testing.T) {
			f := newEngineFixture(t, Config{})

			f.users.On("GetByTelegramID", mock.Anything, "777").
				Return((*domain.User)(nil), sql.ErrNoRows).Once()
			f.settings.On("GetActive", mock.Anything).Return(activeSettings(), nil).Once()
			if _, err := strconv.ParseInt(token, 10, 64); err == nil {
				f.users.On("GetByID", mock.Anything, int64(99999)).
					Return((*domain.User)(nil), sql.ErrNoRows).Once()
			}
			f.users.On("Create", mock.Anything, mock.MatchedBy(func(u *domain.User) bool {
				return u.ReferredBy == nil
			})).Return(&domain.User{ID: 7, TelegramID: "777"}, nil).Once()
			f.activity.On("Append", mock.Anything, domain.ActivityNewUser, mock.Anything, mock.Anything).
				Return(nil).Once()

			_, created, err := f.engine.RegisterUser(ctx, "777", domain.Profile{}, token)

			require.NoError(t, err)
			assert.True(t, created)
			f.referrals.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
			f.assertExpectations(t)
		})
	}
}

func TestEngine_CompleteReferral_CreditsReferrer(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t, Config{})

	referrerID := int64(3)
	referred := &domain.User{ID: 6, TelegramID: "777", ReferredBy: &referrerID}
	rewarded := &domain.User{ID: 3, TelegramID: "111", Username: "bob", Balance: 110, TotalReferrals: 4}

	f.users.On("MarkPlayed", mock.Anything, int64(6)).Return(true, nil).Once()
	f.users.On("GetByID", mock.Anything, int64(6)).Return(referred, nil).Once()
	f.settings.On("GetActive", mock.Anything).Return(activeSettings(), nil).Once()
	f.referrals.On("Complete", mock.Anything, int64(6)).Return(true, nil).Once()
	f.users.On("ApplyReferralReward", mock.Anything, int64(3), domain.Cents(10)).
		Return(rewarded, nil).Once()
	f.activity.On("Append", mock.Anything, domain.ActivityReferralComplete, mock.Anything, mock.Anything).
		Return(nil).Once()

	require.NoError(t, f.engine.CompleteReferral(ctx, 6))

	require.Len(t, f.notifier.userMessages["111"], 1)
	assert.Contains(t, f.notifier.userMessages["111"][0], "4/10")
	require.Len(t, f.notifier.channelMessages, 1)
	f.assertExpectations(t)
}

func TestEngine_CompleteReferral_SecondPlayIsNoOp(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t, Config{})

	f.users.On("GetByID", mock.Anything, int64(6)).
		Return(&domain.User{ID: 6, TelegramID: "777", HasPlayedOnce: true}, nil).Once()

	require.NoError(t, f.engine.CompleteReferral(ctx, 6))

	f.users.AssertNotCalled(t, "MarkPlayed", mock.Anything, mock.Anything)
	f.users.AssertNotCalled(t, "ApplyReferralReward", mock.Anything, mock.Anything, mock.Anything)
	f.referrals.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
	assert.Empty(t, f.notifier.channelMessages)
	f.assertExpectations(t)
}

func TestEngine_CompleteReferral_NoReferrer(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t, Config{})

	f.users.On("GetByID", mock.Anything, int64(6)).
		Return(&domain.User{ID: 6, TelegramID: "777"}, nil).Once()
	f.settings.On("GetActive", mock.Anything).Return(activeSettings(), nil).Once()
	f.users.On("MarkPlayed", mock.Anything, int64(6)).Return(true, nil).Once()

	require.NoError(t, f.engine.CompleteReferral(ctx, 6))

	f.users.AssertNotCalled(t, "ApplyReferralReward", mock.Anything, mock.Anything, mock.Anything)
	f.referrals.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
	f.assertExpectations(t)
}

func TestEngine_CompleteReferral_AlreadyCompletedRowSkipsReward(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t, Config{})

	referrerID := int64(3)
	f.users.On("MarkPlayed", mock.Anything, int64(6)).Return(true, nil).Once()
	f.users.On("GetByID", mock.Anything, int64(6)).
		Return(&domain.User{ID: 6, ReferredBy: &referrerID}, nil).Once()
	f.settings.On("GetActive", mock.Anything).Return(activeSettings(), nil).Once()
	f.referrals.On("Complete", mock.Anything, int64(6)).Return(false, nil).Once()

	require.NoError(t, f.engine.CompleteReferral(ctx, 6))

	f.users.AssertNotCalled(t, "ApplyReferralReward", mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, f.notifier.channelMessages)
	f.assertExpectations(t)
}

func TestEngine_CompleteReferral_FailedCommitStaysReplayable(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t, Config{})

	referrerID := int64(3)
	referred := &domain.User{ID: 6, TelegramID: "777", ReferredBy: &referrerID}
	rewarded := &domain.User{ID: 3, TelegramID: "111", Username: "bob", TotalReferrals: 1}

	// The played flag flips in the same transaction as the credit, so a
	// failure rolls both back and the replay starts clean.
	f.users.On("GetByID", mock.Anything, int64(6)).Return(referred, nil).Twice()
	f.settings.On("GetActive", mock.Anything).Return(activeSettings(), nil).Twice()
	f.users.On("MarkPlayed", mock.Anything, int64(6)).Return(true, nil).Twice()
	f.referrals.On("Complete", mock.Anything, int64(6)).
		Return(false, errors.New("deadlock detected")).Once()
	f.referrals.On("Complete", mock.Anything, int64(6)).Return(true, nil).Once()
	f.users.On("ApplyReferralReward", mock.Anything, int64(3), domain.Cents(10)).
		Return(rewarded, nil).Once()
	f.activity.On("Append", mock.Anything, domain.ActivityReferralComplete, mock.Anything, mock.Anything).
		Return(nil).Once()

	err := f.engine.CompleteReferral(ctx, 6)
	require.Error(t, err)
	assert.True(t, apperr.IsRetryable(err))

	require.NoError(t, f.engine.CompleteReferral(ctx, 6))

	require.Len(t, f.notifier.channelMessages, 1)
	f.assertExpectations(t)
}

func TestEngine_CompleteReferral_NearThresholdMessage(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t, Config{})

	referrerID := int64(3)
	rewarded := &domain.User{ID: 3, TelegramID: "111", Username: "bob", TotalReferrals: 10}

	f.users.On("MarkPlayed", mock.Anything, int64(6)).Return(true, nil).Once()
	f.users.On("GetByID", mock.Anything, int64(6)).
		Return(&domain.User{ID: 6, ReferredBy: &referrerID}, nil).Once()
	f.settings.On("GetActive", mock.Anything).Return(activeSettings(), nil).Once()
	f.referrals.On("Complete", mock.Anything, int64(6)).Return(true, nil).Once()
	f.users.On("ApplyReferralReward", mock.Anything, int64(3), domain.Cents(10)).
		Return(rewarded, nil).Once()
	f.activity.On("Append", mock.Anything, domain.ActivityReferralComplete, mock.Anything, mock.Anything).
		Return(nil).Once()

	require.NoError(t, f.engine.CompleteReferral(ctx, 6))

	require.Len(t, f.notifier.userMessages["111"], 1)
	assert.Contains(t, f.notifier.userMessages["111"][0], "completed 10 referrals")
	f.assertExpectations(t)
}

func TestEngine_RequestWithdrawal_DebitsFullBalance(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t, Config{})

	user := &domain.User{ID: 5, TelegramID: "777", Username: "alice", Balance: 250}
	details := json.RawMessage(`{"account":"12345"}`)

	f.users.On("GetByID", mock.Anything, int64(5)).Return(user, nil).Once()
	f.users.On("DebitFullBalance", mock.Anything, int64(5)).Return(domain.Cents(250), nil).Once()
	f.withdrawals.On("Create", mock.Anything, mock.MatchedBy(func(w *domain.Withdrawal) bool {
		return w.UserID == 5 && w.Amount == 250 && w.PaymentMethod == "bank"
	})).Return(&domain.Withdrawal{ID: 9, UserID: 5, Amount: 250, Status: domain.WithdrawalPending}, nil).Once()
	f.codes.On("Create", mock.Anything, int64(5), mock.MatchedBy(func(c string) bool {
		return len(c) == domain.CodeLength
	})).Return(&domain.UniqueCode{ID: 1, UserID: 5}, nil).Once()
	f.activity.On("Append", mock.Anything, domain.ActivityWithdrawalRequest, mock.Anything, mock.Anything).
		Return(nil).Once()
	f.activity.On("Append", mock.Anything, domain.ActivityCodeGenerated, mock.Anything, mock.Anything).
		Return(nil).Once()

	result, err := f.engine.RequestWithdrawal(ctx, 5, 250, "bank", details)

	require.NoError(t, err)
	assert.Equal(t, domain.Cents(250), result.Withdrawal.Amount)
	assert.NotNil(t, result.Code)
	require.Len(t, f.notifier.channelMessages, 1)
	assert.Contains(t, f.notifier.channelMessages[0], "$2.50")
	f.assertExpectations(t)
}

func TestEngine_RequestWithdrawal_RejectsNonPositiveAmount(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t, Config{})

	for _, amount := range []domain.Cents{0, -50} {
		_, err := f.engine.RequestWithdrawal(ctx, 5, amount, "bank", nil)

		var appErr *apperr.Error
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, "E100", appErr.Code)
	}

	f.users.AssertNotCalled(t, "DebitFullBalance", mock.Anything, mock.Anything)
}

func TestEngine_RequestWithdrawal_EmptyBalance(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t, Config{})

	f.users.On("GetByID", mock.Anything, int64(5)).
		Return(&domain.User{ID: 5, TelegramID: "777"}, nil).Once()
	f.users.On("DebitFullBalance", mock.Anything, int64(5)).Return(domain.Cents(0), nil).Once()

	_, err := f.engine.RequestWithdrawal(ctx, 5, 100, "bank", nil)

	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "E120", appErr.Code)
	f.withdrawals.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	f.assertExpectations(t)
}

func TestEngine_RequestWithdrawal_UnknownUser(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t, Config{})

	f.users.On("GetByID", mock.Anything, int64(404)).
		Return((*domain.User)(nil), sql.ErrNoRows).Once()

	_, err := f.engine.RequestWithdrawal(ctx, 404, 100, "bank", nil)

	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "E110", appErr.Code)
	f.assertExpectations(t)
}

func TestEngine_ResolveWithdrawal(t *testing.T) {
	ctx := context.Background()
	pending := &domain.Withdrawal{ID: 9, UserID: 5, Amount: 250, Status: domain.WithdrawalPending}

	testCases := []struct {
		name         string
		cfg          Config
		decision     domain.WithdrawalStatus
		setupMocks   func(f *engineFixture)
		expectedCode string
	}{
		{
			name:     "approve",
			decision: domain.WithdrawalApproved,
			setupMocks: func(f *engineFixture) {
				f.withdrawals.On("GetByID", mock.Anything, int64(9)).Return(pending, nil).Once()
				f.withdrawals.On("Resolve", mock.Anything, int64(9), domain.WithdrawalApproved, "paid out").
					Return(true, nil).Once()
			},
		},
		{
			name:     "reject keeps funds debited by default",
			decision: domain.WithdrawalRejected,
			setupMocks: func(f *engineFixture) {
				f.withdrawals.On("GetByID", mock.Anything, int64(9)).Return(pending, nil).Once()
				f.withdrawals.On("Resolve", mock.Anything, int64(9), domain.WithdrawalRejected, "paid out").
					Return(true, nil).Once()
			},
		},
		{
			name:     "reject recredits when configured",
			cfg:      Config{RecreditOnReject: true},
			decision: domain.WithdrawalRejected,
			setupMocks: func(f *engineFixture) {
				f.withdrawals.On("GetByID", mock.Anything, int64(9)).Return(pending, nil).Once()
				f.withdrawals.On("Resolve", mock.Anything, int64(9), domain.WithdrawalRejected, "paid out").
					Return(true, nil).Once()
				f.users.On("CreditBalance", mock.Anything, int64(5), domain.Cents(250)).
					Return(nil).Once()
			},
		},
		{
			name:     "already resolved",
			decision: domain.WithdrawalApproved,
			setupMocks: func(f *engineFixture) {
				f.withdrawals.On("GetByID", mock.Anything, int64(9)).Return(pending, nil).Once()
				f.withdrawals.On("Resolve", mock.Anything, int64(9), domain.WithdrawalApproved, "paid out").
					Return(false, nil).Once()
			},
			expectedCode: "E120",
		},
		{
			name:     "not found",
			decision: domain.WithdrawalApproved,
			setupMocks: func(f *engineFixture) {
				f.withdrawals.On("GetByID", mock.Anything, int64(9)).
					Return((*domain.Withdrawal)(nil), sql.ErrNoRows).Once()
			},
			expectedCode: "E110",
		},
		{
			name:         "invalid decision",
			decision:     domain.WithdrawalPending,
			setupMocks:   func(f *engineFixture) {},
			expectedCode: "E100",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newEngineFixture(t, tc.cfg)
			tc.setupMocks(f)

			err := f.engine.ResolveWithdrawal(ctx, 9, tc.decision, "paid out")

			if tc.expectedCode == "" {
				require.NoError(t, err)
			} else {
				var appErr *apperr.Error
				require.ErrorAs(t, err, &appErr)
				assert.Equal(t, tc.expectedCode, appErr.Code)
			}
			f.assertExpectations(t)
		})
	}
}

func TestEngine_ResolveWithdrawal_RejectWithoutRecreditSkipsCredit(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t, Config{})

	f.withdrawals.On("GetByID", mock.Anything, int64(9)).
		Return(&domain.Withdrawal{ID: 9, UserID: 5, Amount: 250, Status: domain.WithdrawalPending}, nil).Once()
	f.withdrawals.On("Resolve", mock.Anything, int64(9), domain.WithdrawalRejected, "").
		Return(true, nil).Once()

	require.NoError(t, f.engine.ResolveWithdrawal(ctx, 9, domain.WithdrawalRejected, ""))

	f.users.AssertNotCalled(t, "CreditBalance", mock.Anything, mock.Anything, mock.Anything)
	f.assertExpectations(t)
}

func TestEngine_StoreFailureSurfacesAsRetryable(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t, Config{})

	f.users.On("MarkPlayed", mock.Anything, int64(6)).Return(false, errStoreFailure).Once()

	err := f.engine.CompleteReferral(ctx, 6)

	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "E200", appErr.Code)
	assert.True(t, appErr.Retryable)
	assert.ErrorIs(t, err, errStoreFailure)
	f.assertExpectations(t)
}

func TestEngine_ChannelMessageMentionsCode(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t, Config{})

	var mintedCode string
	f.users.On("GetByID", mock.Anything, int64(5)).
		Return(&domain.User{ID: 5, TelegramID: "777", Username: "alice"}, nil).Once()
	f.users.On("DebitFullBalance", mock.Anything, int64(5)).Return(domain.Cents(100), nil).Once()
	f.withdrawals.On("Create", mock.Anything, mock.Anything).
		Return(&domain.Withdrawal{ID: 9, UserID: 5, Amount: 100}, nil).Once()
	f.codes.On("Create", mock.Anything, int64(5), mock.Anything).
		Run(func(args mock.Arguments) { mintedCode = args.String(2) }).
		Return(&domain.UniqueCode{ID: 1}, nil).Once()
	f.activity.On("Append", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil).Twice()

	_, err := f.engine.RequestWithdrawal(ctx, 5, 100, "crypto", nil)

	require.NoError(t, err)
	require.Len(t, f.notifier.channelMessages, 1)
	assert.True(t, strings.Contains(f.notifier.channelMessages[0], mintedCode))
	f.assertExpectations(t)
}

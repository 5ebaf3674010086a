package service

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"accounthub/backend/internal/domain"
	"accounthub/backend/internal/event"
	"accounthub/backend/internal/notify"
	"accounthub/backend/internal/storage/memory"
)

func newConfirmationService(store *memory.Store, bus *event.Bus) *ConfirmationService {
	log := zap.NewNop()
	if bus == nil {
		bus = event.NewBus(log)
	}
	addresses := NewEmailAddressService(store, store)
	return NewConfirmationService(store, addresses, store, bus, notify.NewLogNotifier(log),
		5*24*time.Hour, "https://example.com/confirm/")
}

func TestConfirmationService_Request(t *testing.T) {
	store := memory.NewStore()
	service := newConfirmationService(store, nil)
	user := createTestUser(t, store, "alice")

	t.Run("创建记录并回填账户邮箱", func(t *testing.T) {
		confirmation, err := service.Request(user.ID, "Alice@Example.com", true, false)
		require.NoError(t, err)
		assert.Equal(t, "alice@example.com", confirmation.Email)
		assert.Len(t, confirmation.Key, 64)
		assert.Nil(t, confirmation.SentAt)

		saved, err := store.GetUserByID(user.ID)
		require.NoError(t, err)
		assert.Equal(t, "alice@example.com", saved.Email)
	})

	t.Run("已有邮箱的账户不回填", func(t *testing.T) {
		_, err := service.Request(user.ID, "second@example.com", false, false)
		require.NoError(t, err)

		saved, err := store.GetUserByID(user.ID)
		require.NoError(t, err)
		assert.Equal(t, "alice@example.com", saved.Email)
	})

	t.Run("非法邮箱被拒绝", func(t *testing.T) {
		_, err := service.Request(user.ID, "not-an-email", false, false)
		assert.ErrorIs(t, err, domain.ErrInvalidEmail)
	})

	t.Run("send为true时顺带投递", func(t *testing.T) {
		confirmation, err := service.Request(user.ID, "third@example.com", false, true)
		require.NoError(t, err)
		assert.NotNil(t, confirmation.SentAt)
	})
}

func TestConfirmationService_Confirm(t *testing.T) {
	store := memory.NewStore()
	bus := event.NewBus(zap.NewNop())
	service := newConfirmationService(store, bus)
	user := createTestUser(t, store, "alice")

	var confirmed []domain.Event
	bus.Subscribe(domain.EventEmailConfirmed, func(e domain.Event) {
		confirmed = append(confirmed, e)
	})

	confirmation, err := service.Request(user.ID, "alice@example.com", true, true)
	require.NoError(t, err)

	address, err := service.Confirm(confirmation.Key, ConfirmInput{VerificationMethod: "email_confirmation"})
	require.NoError(t, err)

	t.Run("邮箱进入归属存储且带验证信息", func(t *testing.T) {
		assert.Equal(t, user.ID, address.UserID)
		assert.Equal(t, "alice@example.com", address.Email)
		assert.True(t, address.IsPrimary)
		require.NotNil(t, address.VerifiedAt)
		assert.Equal(t, "email_confirmation", address.VerificationMethod)
	})

	t.Run("发布确认事件", func(t *testing.T) {
		require.Len(t, confirmed, 1)
	})

	t.Run("同邮箱的确认记录全部清除", func(t *testing.T) {
		_, err := service.Confirm(confirmation.Key, ConfirmInput{})
		assert.ErrorIs(t, err, domain.ErrConfirmationNotFound)
	})
}

func TestConfirmationService_Confirm_NeverSent(t *testing.T) {
	store := memory.NewStore()
	service := newConfirmationService(store, nil)
	user := createTestUser(t, store, "alice")

	// 从未发送的密钥视同过期
	confirmation, err := service.Request(user.ID, "alice@example.com", true, false)
	require.NoError(t, err)

	_, err = service.Confirm(confirmation.Key, ConfirmInput{})
	assert.ErrorIs(t, err, domain.ErrVerificationKeyExpired)
}

func TestConfirmationService_Confirm_Expired(t *testing.T) {
	store := memory.NewStore()
	service := newConfirmationService(store, nil)
	user := createTestUser(t, store, "alice")

	confirmation, err := service.Request(user.ID, "alice@example.com", true, true)
	require.NoError(t, err)

	// 把发送时间拨回有效期之外
	past := time.Now().UTC().Add(-6 * 24 * time.Hour)
	confirmation.SentAt = &past
	require.NoError(t, store.SaveEmailConfirmation(confirmation))

	_, err = service.Confirm(confirmation.Key, ConfirmInput{})
	assert.ErrorIs(t, err, domain.ErrVerificationKeyExpired)

	// 失败的确认不动记录
	saved, err := store.GetEmailConfirmationByKey(confirmation.Key)
	require.NoError(t, err)
	assert.Equal(t, confirmation.ID, saved.ID)
}

func TestConfirmationService_Confirm_AlreadyOwned(t *testing.T) {
	store := memory.NewStore()
	service := newConfirmationService(store, nil)
	alice := createTestUser(t, store, "alice")
	bob := createTestUser(t, store, "bob")

	// alice 先确认拿下邮箱
	ac, err := service.Request(alice.ID, "shared@example.com", true, true)
	require.NoError(t, err)
	_, err = service.Confirm(ac.Key, ConfirmInput{})
	require.NoError(t, err)

	// bob 的确认流程走到 Confirm 时被拒，不论归属账户是谁
	bc, err := service.Request(bob.ID, "shared@example.com", true, true)
	require.NoError(t, err)
	_, err = service.Confirm(bc.Key, ConfirmInput{})
	assert.ErrorIs(t, err, domain.ErrEmailAlreadyVerified)
}

func TestConfirmationService_Confirm_KeepRecords(t *testing.T) {
	store := memory.NewStore()
	service := newConfirmationService(store, nil)
	user := createTestUser(t, store, "alice")

	confirmation, err := service.Request(user.ID, "alice@example.com", true, true)
	require.NoError(t, err)

	_, err = service.Confirm(confirmation.Key, ConfirmInput{KeepRecords: true})
	require.NoError(t, err)

	// 记录保留，密钥仍可查到
	saved, err := store.GetEmailConfirmationByKey(confirmation.Key)
	require.NoError(t, err)
	assert.Equal(t, confirmation.ID, saved.ID)
}

func TestConfirmationService_DeleteExpiredConfirmations(t *testing.T) {
	store := memory.NewStore()
	service := newConfirmationService(store, nil)
	user := createTestUser(t, store, "alice")

	// 三条记录：过期、仍有效、从未发送
	expired, err := service.Request(user.ID, "expired@example.com", false, true)
	require.NoError(t, err)
	past := time.Now().UTC().Add(-6 * 24 * time.Hour)
	expired.SentAt = &past
	require.NoError(t, store.SaveEmailConfirmation(expired))

	fresh, err := service.Request(user.ID, "fresh@example.com", false, true)
	require.NoError(t, err)

	unsent, err := service.Request(user.ID, "unsent@example.com", false, false)
	require.NoError(t, err)

	deleted, err := service.DeleteExpiredConfirmations()
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	_, err = store.GetEmailConfirmationByKey(expired.Key)
	assert.ErrorIs(t, err, domain.ErrConfirmationNotFound)
	_, err = store.GetEmailConfirmationByKey(fresh.Key)
	assert.NoError(t, err)
	_, err = store.GetEmailConfirmationByKey(unsent.Key)
	assert.NoError(t, err)

	// 清理是幂等的
	deleted, err = service.DeleteExpiredConfirmations()
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

// failingPurgeStore 模拟清除阶段的存储故障
type failingPurgeStore struct {
	*memory.Store
}

func (s *failingPurgeStore) DeleteEmailConfirmationsByEmail(email string) error {
	return errors.New("storage unavailable")
}

func TestConfirmationService_Confirm_PurgeFailure(t *testing.T) {
	store := memory.NewStore()
	bus := event.NewBus(zap.NewNop())
	addresses := NewEmailAddressService(store, store)
	service := NewConfirmationService(&failingPurgeStore{Store: store}, addresses, store, bus,
		notify.NewLogNotifier(nil), 5*24*time.Hour, "https://example.com/confirm/")
	user := createTestUser(t, store, "alice")

	confirmation, err := service.Request(user.ID, "alice@example.com", true, true)
	require.NoError(t, err)

	// 归属已落库后，清除失败不能让成功的确认报错
	address, err := service.Confirm(confirmation.Key, ConfirmInput{})
	require.NoError(t, err)
	require.NotNil(t, address)
	assert.NotNil(t, address.VerifiedAt)

	// 残留记录留给过期清理任务兜底
	leftovers, err := store.ListEmailConfirmationsByUserID(user.ID)
	require.NoError(t, err)
	assert.Len(t, leftovers, 1)
}

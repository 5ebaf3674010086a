package service

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"accounthub/backend/internal/domain"
	"accounthub/backend/internal/storage/memory"
)

func createTestUser(t *testing.T, store *memory.Store, username string) *domain.User {
	t.Helper()
	user := &domain.User{
		ID:       uuid.New().String(),
		Username: username,
		IsActive: true,
	}
	require.NoError(t, store.CreateUser(user))
	return user
}

func TestEmailAddressService_AddEmail(t *testing.T) {
	store := memory.NewStore()
	service := NewEmailAddressService(store, store)
	user := createTestUser(t, store, "alice")

	t.Run("第一个邮箱无条件设为主邮箱", func(t *testing.T) {
		address, err := service.AddEmail(user.ID, "Alice@Example.com", false, AddEmailInput{})
		require.NoError(t, err)
		assert.Equal(t, "alice@example.com", address.Email)
		assert.True(t, address.IsPrimary)

		// 账户冗余字段同步
		saved, err := store.GetUserByID(user.ID)
		require.NoError(t, err)
		assert.Equal(t, "alice@example.com", saved.Email)
	})

	t.Run("后续邮箱默认非主", func(t *testing.T) {
		address, err := service.AddEmail(user.ID, "alice.work@example.com", false, AddEmailInput{})
		require.NoError(t, err)
		assert.False(t, address.IsPrimary)
	})

	t.Run("重复添加是幂等upsert", func(t *testing.T) {
		now := time.Now().UTC()
		address, err := service.AddEmail(user.ID, "alice.work@example.com", false, AddEmailInput{
			VerifiedAt:         &now,
			VerificationMethod: "email_confirmation",
		})
		require.NoError(t, err)
		assert.Equal(t, "email_confirmation", address.VerificationMethod)

		all, err := service.GetForUser(user.ID)
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})
}

func TestEmailAddressService_GlobalUniqueness(t *testing.T) {
	store := memory.NewStore()
	service := NewEmailAddressService(store, store)
	alice := createTestUser(t, store, "alice")
	bob := createTestUser(t, store, "bob")

	_, err := service.AddEmail(alice.ID, "shared@example.com", true, AddEmailInput{})
	require.NoError(t, err)

	// 同一个邮箱值不能同时归属两个账户
	_, err = service.AddEmail(bob.ID, "shared@example.com", true, AddEmailInput{})
	assert.ErrorIs(t, err, domain.ErrEmailAlreadyVerified)

	// 大小写和首尾空白在检查前被规范化
	_, err = service.AddEmail(bob.ID, "  SHARED@example.com ", true, AddEmailInput{})
	assert.ErrorIs(t, err, domain.ErrEmailAlreadyVerified)
}

func TestEmailAddressService_SetAsPrimary(t *testing.T) {
	store := memory.NewStore()
	service := NewEmailAddressService(store, store)
	user := createTestUser(t, store, "alice")

	first, err := service.AddEmail(user.ID, "first@example.com", true, AddEmailInput{})
	require.NoError(t, err)
	second, err := service.AddEmail(user.ID, "second@example.com", false, AddEmailInput{})
	require.NoError(t, err)

	require.NoError(t, service.SetAsPrimary(second))

	t.Run("旧主降级新主升级", func(t *testing.T) {
		all, err := service.GetForUser(user.ID)
		require.NoError(t, err)
		for _, a := range all {
			switch a.ID {
			case first.ID:
				assert.False(t, a.IsPrimary)
			case second.ID:
				assert.True(t, a.IsPrimary)
			}
		}

		primary, err := service.GetPrimary(user.ID)
		require.NoError(t, err)
		require.NotNil(t, primary)
		assert.Equal(t, second.ID, primary.ID)
	})

	t.Run("账户冗余字段跟随主邮箱", func(t *testing.T) {
		saved, err := store.GetUserByID(user.ID)
		require.NoError(t, err)
		assert.Equal(t, "second@example.com", saved.Email)
	})
}

func TestEmailAddressService_GetPrimary_None(t *testing.T) {
	store := memory.NewStore()
	service := NewEmailAddressService(store, store)
	user := createTestUser(t, store, "alice")

	// 没有主邮箱返回 nil 而不是错误
	primary, err := service.GetPrimary(user.ID)
	require.NoError(t, err)
	assert.Nil(t, primary)
}

func TestEmailAddressService_GetUserFor(t *testing.T) {
	store := memory.NewStore()
	service := NewEmailAddressService(store, store)
	user := createTestUser(t, store, "alice")

	_, err := service.AddEmail(user.ID, "alice@example.com", true, AddEmailInput{})
	require.NoError(t, err)

	found, err := service.GetUserFor("ALICE@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)

	_, err = service.GetUserFor("nobody@example.com")
	assert.ErrorIs(t, err, domain.ErrEmailAddressNotFound)
}

func TestEmailAddressService_Remove(t *testing.T) {
	store := memory.NewStore()
	service := NewEmailAddressService(store, store)
	user := createTestUser(t, store, "alice")

	address, err := service.AddEmail(user.ID, "alice@example.com", true, AddEmailInput{})
	require.NoError(t, err)

	require.NoError(t, service.Remove(address.ID))

	has, err := service.HasVerifiedEmail(user.ID)
	require.NoError(t, err)
	assert.False(t, has)

	// 释放后邮箱可归属其他账户
	bob := createTestUser(t, store, "bob")
	_, err = service.AddEmail(bob.ID, "alice@example.com", true, AddEmailInput{})
	assert.NoError(t, err)
}

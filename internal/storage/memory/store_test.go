package memory

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"accounthub/backend/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_UserOperations(t *testing.T) {
	store := NewStore()

	user := &domain.User{
		Username: "Alice",
		Email:    "alice@example.com",
		IsActive: true,
	}
	require.NoError(t, store.CreateUser(user))
	require.NotEmpty(t, user.ID)

	// Test GetUserByID
	got, err := store.GetUserByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.Username)

	// Test GetUserByEmail with normalization
	got, err = store.GetUserByEmail("  ALICE@example.com ")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	// Test GetUserByUsername is case-insensitive
	got, err = store.GetUserByUsername("alice")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	// Test UpdateUser reindexes email
	got.Email = "alice.new@example.com"
	require.NoError(t, store.UpdateUser(got))

	_, err = store.GetUserByEmail("alice@example.com")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
	got, err = store.GetUserByEmail("alice.new@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	// Test UpdateUser reindexes username
	got.Username = "Alicia"
	require.NoError(t, store.UpdateUser(got))
	_, err = store.GetUserByUsername("alice")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
	got, err = store.GetUserByUsername("ALICIA")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	// Test UpdateLastLogin
	require.NoError(t, store.UpdateLastLogin(user.ID))
	got, err = store.GetUserByID(user.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.LastLoginAt)
}

func TestMemoryStore_SharedEmailSnapshot(t *testing.T) {
	store := NewStore()

	alice := &domain.User{Username: "alice", Email: "shared@example.com"}
	require.NoError(t, store.CreateUser(alice))

	// A second account may carry the same unverified email snapshot;
	// ownership is decided by the confirmation workflow, not here
	bob := &domain.User{Username: "bob", Email: "shared@example.com"}
	require.NoError(t, store.CreateUser(bob))

	// Lookup by email stays deterministic: first registrant wins
	got, err := store.GetUserByEmail("shared@example.com")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, got.ID)

	// bob moving to another email must not evict alice's index entry
	bob.Email = "bob@example.com"
	require.NoError(t, store.UpdateUser(bob))

	got, err = store.GetUserByEmail("shared@example.com")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, got.ID)
	got, err = store.GetUserByEmail("bob@example.com")
	require.NoError(t, err)
	assert.Equal(t, bob.ID, got.ID)
}

func TestMemoryStore_CopyOnReturn(t *testing.T) {
	store := NewStore()

	user := &domain.User{Username: "alice"}
	require.NoError(t, store.CreateUser(user))

	// Mutating a returned copy must not affect the stored record
	got, err := store.GetUserByID(user.ID)
	require.NoError(t, err)
	got.Username = "mallory"

	again, err := store.GetUserByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", again.Username)
}

func TestMemoryStore_SignupCodeOperations(t *testing.T) {
	store := NewStore()

	code := &domain.SignupCode{
		Code:    "WELCOME",
		Email:   "invitee@example.com",
		MaxUses: 3,
	}
	require.NoError(t, store.SaveSignupCode(code))
	require.NotEmpty(t, code.ID)

	// Test duplicate code value is rejected
	err := store.SaveSignupCode(&domain.SignupCode{Code: "WELCOME"})
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)

	// Test re-saving the same record is allowed
	code.Notes = "updated"
	require.NoError(t, store.SaveSignupCode(code))

	// Test SignupCodeExists matches on code OR email
	exists, err := store.SignupCodeExists("WELCOME", "")
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = store.SignupCodeExists("", "invitee@example.com")
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = store.SignupCodeExists("other", "other@example.com")
	require.NoError(t, err)
	assert.False(t, exists)

	// Test GetSignupCode
	got, err := store.GetSignupCode("WELCOME")
	require.NoError(t, err)
	assert.Equal(t, code.ID, got.ID)

	_, err = store.GetSignupCode("missing")
	assert.ErrorIs(t, err, domain.ErrSignupCodeNotFound)
}

func TestMemoryStore_SignupCodeResults(t *testing.T) {
	store := NewStore()

	code := &domain.SignupCode{Code: "WELCOME", MaxUses: 10}
	require.NoError(t, store.SaveSignupCode(code))

	// UseCount is recounted from the result rows, not incremented
	for i := 1; i <= 3; i++ {
		count, err := store.CreateSignupCodeResult(&domain.SignupCodeResult{
			SignupCodeID: code.ID,
			UserID:       fmt.Sprintf("user-%d", i),
		})
		require.NoError(t, err)
		assert.Equal(t, i, count)
	}

	got, err := store.GetSignupCode("WELCOME")
	require.NoError(t, err)
	assert.Equal(t, 3, got.UseCount)

	results, err := store.ListSignupCodeResults(code.ID)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "user-1", results[0].UserID)

	// Test unknown parent code
	_, err = store.CreateSignupCodeResult(&domain.SignupCodeResult{SignupCodeID: "missing"})
	assert.ErrorIs(t, err, domain.ErrSignupCodeNotFound)
}

func TestMemoryStore_SignupCodeResults_Concurrent(t *testing.T) {
	store := NewStore()

	code := &domain.SignupCode{Code: "RACE"}
	require.NoError(t, store.SaveSignupCode(code))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := store.CreateSignupCodeResult(&domain.SignupCodeResult{
				SignupCodeID: code.ID,
				UserID:       fmt.Sprintf("user-%d", n),
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, err := store.GetSignupCode("RACE")
	require.NoError(t, err)
	assert.Equal(t, 50, got.UseCount)
}

func TestMemoryStore_EmailAddressOperations(t *testing.T) {
	store := NewStore()

	user := &domain.User{Username: "alice"}
	require.NoError(t, store.CreateUser(user))

	address := &domain.EmailAddress{
		UserID: user.ID,
		Email:  "alice@example.com",
	}
	require.NoError(t, store.SaveEmailAddress(address))

	// Test global uniqueness across accounts
	err := store.SaveEmailAddress(&domain.EmailAddress{
		UserID: "someone-else",
		Email:  "alice@example.com",
	})
	assert.ErrorIs(t, err, domain.ErrEmailAlreadyVerified)

	// Test GetEmailAddress with normalization
	got, err := store.GetEmailAddress("ALICE@example.com")
	require.NoError(t, err)
	assert.Equal(t, address.ID, got.ID)

	// Test rewriting an address's email frees the old index entry
	address.Email = "alice.new@example.com"
	require.NoError(t, store.SaveEmailAddress(address))
	_, err = store.GetEmailAddress("alice@example.com")
	assert.ErrorIs(t, err, domain.ErrEmailAddressNotFound)
	got, err = store.GetEmailAddress("alice.new@example.com")
	require.NoError(t, err)
	assert.Equal(t, address.ID, got.ID)
	address.Email = "alice@example.com"
	require.NoError(t, store.SaveEmailAddress(address))

	// Test DeleteEmailAddress frees the email value
	require.NoError(t, store.DeleteEmailAddress(address.ID))
	_, err = store.GetEmailAddress("alice@example.com")
	assert.ErrorIs(t, err, domain.ErrEmailAddressNotFound)
	require.NoError(t, store.SaveEmailAddress(&domain.EmailAddress{
		UserID: "someone-else",
		Email:  "alice@example.com",
	}))
}

func TestMemoryStore_SetPrimaryEmailAddress(t *testing.T) {
	store := NewStore()

	user := &domain.User{Username: "alice", Email: "old@example.com"}
	require.NoError(t, store.CreateUser(user))

	old := &domain.EmailAddress{UserID: user.ID, Email: "old@example.com", IsPrimary: true}
	require.NoError(t, store.SaveEmailAddress(old))
	next := &domain.EmailAddress{UserID: user.ID, Email: "new@example.com"}
	require.NoError(t, store.SaveEmailAddress(next))

	require.NoError(t, store.SetPrimaryEmailAddress(next.ID))

	// Old primary demoted, target promoted, user email synced
	gotOld, err := store.GetEmailAddress("old@example.com")
	require.NoError(t, err)
	assert.False(t, gotOld.IsPrimary)

	gotNext, err := store.GetEmailAddress("new@example.com")
	require.NoError(t, err)
	assert.True(t, gotNext.IsPrimary)

	gotUser, err := store.GetUserByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", gotUser.Email)

	primary, err := store.GetPrimaryEmailAddress(user.ID)
	require.NoError(t, err)
	assert.Equal(t, next.ID, primary.ID)
}

func TestMemoryStore_EmailConfirmationOperations(t *testing.T) {
	store := NewStore()
	ttl := 5 * 24 * time.Hour
	now := time.Now().UTC()

	sent := now.Add(-time.Hour)
	confirmation := &domain.EmailConfirmation{
		UserID: "user-1",
		Email:  "alice@example.com",
		Key:    "key-1",
		SentAt: &sent,
	}
	require.NoError(t, store.SaveEmailConfirmation(confirmation))

	// Test duplicate key is rejected
	err := store.SaveEmailConfirmation(&domain.EmailConfirmation{Key: "key-1"})
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)

	got, err := store.GetEmailConfirmationByKey("key-1")
	require.NoError(t, err)
	assert.Equal(t, confirmation.ID, got.ID)

	// Test DeleteEmailConfirmationsByEmail removes every record for the value
	require.NoError(t, store.SaveEmailConfirmation(&domain.EmailConfirmation{
		UserID: "user-2",
		Email:  "alice@example.com",
		Key:    "key-2",
	}))
	require.NoError(t, store.DeleteEmailConfirmationsByEmail("alice@example.com"))
	_, err = store.GetEmailConfirmationByKey("key-1")
	assert.ErrorIs(t, err, domain.ErrConfirmationNotFound)
	_, err = store.GetEmailConfirmationByKey("key-2")
	assert.ErrorIs(t, err, domain.ErrConfirmationNotFound)

	// Test expiry sweep: expired sent records go, unsent records stay
	expiredAt := now.Add(-ttl - time.Hour)
	require.NoError(t, store.SaveEmailConfirmation(&domain.EmailConfirmation{
		UserID: "user-3", Email: "a@example.com", Key: "expired", SentAt: &expiredAt,
	}))
	require.NoError(t, store.SaveEmailConfirmation(&domain.EmailConfirmation{
		UserID: "user-3", Email: "b@example.com", Key: "fresh", SentAt: &sent,
	}))
	require.NoError(t, store.SaveEmailConfirmation(&domain.EmailConfirmation{
		UserID: "user-3", Email: "c@example.com", Key: "unsent",
	}))

	deleted, err := store.DeleteExpiredEmailConfirmations(ttl, now)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	remaining, err := store.ListEmailConfirmationsByUserID("user-3")
	require.NoError(t, err)
	assert.Len(t, remaining, 2)
}

func TestMemoryStore_UserSettingsOperations(t *testing.T) {
	store := NewStore()

	_, err := store.GetUserSettings("user-1")
	assert.ErrorIs(t, err, domain.ErrUserSettingsNotFound)

	settings := &domain.UserSettings{
		UserID:   "user-1",
		Timezone: "Europe/Berlin",
	}
	require.NoError(t, store.SaveUserSettings(settings))
	require.NotEmpty(t, settings.ID)

	got, err := store.GetUserSettings("user-1")
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", got.Timezone)
	assert.False(t, got.CreatedAt.IsZero())
}

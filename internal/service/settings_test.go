package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"accounthub/backend/internal/geoip"
	"accounthub/backend/internal/storage/memory"
)

// stubResolver 返回固定定位结果
type stubResolver struct {
	loc   *geoip.Location
	calls int
}

func (r *stubResolver) Resolve(_ context.Context, _ string) (*geoip.Location, error) {
	r.calls++
	return r.loc, nil
}

func TestSettingsService_GetOrCreate(t *testing.T) {
	store := memory.NewStore()
	service := NewSettingsService(store, nil, nil)
	user := createTestUser(t, store, "alice")

	settings, err := service.GetOrCreate(user.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, settings.ID)
	assert.Equal(t, user.ID, settings.UserID)

	// 第二次返回同一行
	again, err := service.GetOrCreate(user.ID)
	require.NoError(t, err)
	assert.Equal(t, settings.ID, again.ID)
}

func TestSettingsService_Update(t *testing.T) {
	store := memory.NewStore()
	service := NewSettingsService(store, nil, nil)
	user := createTestUser(t, store, "alice")

	tz := "Europe/Berlin"
	name := "Berlin, Germany"
	lat := 52.52
	settings, err := service.Update(user.ID, UpdateSettingsInput{
		Timezone:         &tz,
		LocationName:     &name,
		LocationLatitude: &lat,
	})
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", settings.Timezone)
	assert.Equal(t, "Berlin, Germany", settings.LocationName)

	t.Run("nil字段保持原值", func(t *testing.T) {
		lang := "de"
		updated, err := service.Update(user.ID, UpdateSettingsInput{PreferredLanguage: &lang})
		require.NoError(t, err)
		assert.Equal(t, "Europe/Berlin", updated.Timezone)
		assert.Equal(t, "de", updated.PreferredLanguage)
	})

	t.Run("非法时区被拒绝", func(t *testing.T) {
		bad := "Mars/Olympus_Mons"
		_, err := service.Update(user.ID, UpdateSettingsInput{Timezone: &bad})
		assert.Error(t, err)
	})
}

func TestSettingsService_SessionDefaults(t *testing.T) {
	store := memory.NewStore()
	resolver := &stubResolver{loc: &geoip.Location{
		TimeZone:   "Asia/Tokyo",
		Latitude:   35.68,
		Longitude:  139.69,
		PrettyName: "Tokyo, Japan",
	}}
	service := NewSettingsService(store, resolver, nil)
	user := createTestUser(t, store, "alice")

	t.Run("账户没存设置时走GeoIP推断", func(t *testing.T) {
		defaults, err := service.SessionDefaults(context.Background(), user.ID, "sess-1", "203.0.113.7")
		require.NoError(t, err)
		require.NotNil(t, defaults)
		assert.Equal(t, "Asia/Tokyo", defaults.Timezone)
		assert.Equal(t, "Tokyo, Japan", defaults.LocationName)
		assert.Equal(t, 1, resolver.calls)
	})

	t.Run("账户已存时区优先于推断", func(t *testing.T) {
		tz := "Europe/Berlin"
		_, err := service.Update(user.ID, UpdateSettingsInput{Timezone: &tz})
		require.NoError(t, err)

		defaults, err := service.SessionDefaults(context.Background(), user.ID, "sess-1", "203.0.113.7")
		require.NoError(t, err)
		require.NotNil(t, defaults)
		assert.Equal(t, "Europe/Berlin", defaults.Timezone)
		assert.Equal(t, 1, resolver.calls) // 没有再查
	})

	t.Run("匿名请求也能推断", func(t *testing.T) {
		defaults, err := service.SessionDefaults(context.Background(), "", "", "203.0.113.8")
		require.NoError(t, err)
		require.NotNil(t, defaults)
		assert.Equal(t, "Asia/Tokyo", defaults.Timezone)
	})

	t.Run("定位查不到时静默返回nil", func(t *testing.T) {
		resolver.loc = nil
		defaults, err := service.SessionDefaults(context.Background(), "", "", "10.0.0.1")
		require.NoError(t, err)
		assert.Nil(t, defaults)
	})
}

package service

import (
	"context"
	"time"

	"accounthub/backend/internal/domain"
	"accounthub/backend/internal/geoip"
	"accounthub/backend/internal/storage"
	"accounthub/backend/internal/storage/redis"
)

// SettingsService 用户偏好与会话默认值
type SettingsService struct {
	repo     storage.UserSettingsRepository
	resolver geoip.Resolver // 可为 nil，表示不做地理推断
	cache    *redis.Cache   // 可为 nil，表示不缓存会话默认值

	sessionTTL time.Duration
}

// NewSettingsService 创建设置服务
func NewSettingsService(repo storage.UserSettingsRepository, resolver geoip.Resolver, cache *redis.Cache) *SettingsService {
	return &SettingsService{
		repo:       repo,
		resolver:   resolver,
		cache:      cache,
		sessionTTL: 24 * time.Hour,
	}
}

// GetOrCreate 取账户的设置行，不存在则创建空行
//
// 每个账户恰好一行，创建是显式的而不是藏在读取路径里的副作用。
func (s *SettingsService) GetOrCreate(userID string) (*domain.UserSettings, error) {
	settings, err := s.repo.GetUserSettings(userID)
	if err == nil {
		return settings, nil
	}
	if err != domain.ErrUserSettingsNotFound {
		return nil, err
	}

	settings = &domain.UserSettings{
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.SaveUserSettings(settings); err != nil {
		return nil, err
	}
	return settings, nil
}

// UpdateSettingsInput 部分更新，nil 字段保持原值
type UpdateSettingsInput struct {
	BirthDate         *time.Time
	Timezone          *string
	LocationName      *string
	LocationLatitude  *float64
	LocationLongitude *float64
	ProfileImage      *string
	PreferredLanguage *string
}

// Update 部分更新账户设置
func (s *SettingsService) Update(userID string, input UpdateSettingsInput) (*domain.UserSettings, error) {
	settings, err := s.GetOrCreate(userID)
	if err != nil {
		return nil, err
	}

	if input.BirthDate != nil {
		settings.BirthDate = input.BirthDate
	}
	if input.Timezone != nil {
		if err := domain.ValidateTimezone(*input.Timezone); err != nil {
			return nil, err
		}
		settings.Timezone = *input.Timezone
	}
	if input.LocationName != nil {
		settings.LocationName = *input.LocationName
	}
	if input.LocationLatitude != nil {
		settings.LocationLatitude = input.LocationLatitude
	}
	if input.LocationLongitude != nil {
		settings.LocationLongitude = input.LocationLongitude
	}
	if input.ProfileImage != nil {
		settings.ProfileImage = *input.ProfileImage
	}
	if input.PreferredLanguage != nil {
		settings.PreferredLanguage = *input.PreferredLanguage
	}
	settings.UpdatedAt = time.Now().UTC()

	if err := s.repo.SaveUserSettings(settings); err != nil {
		return nil, err
	}
	return settings, nil
}

// SessionDefaults 计算一次请求应生效的时区与位置默认值
//
// 优先级：账户已存设置 > 会话缓存 > GeoIP 推断。
// 推断结果只写进会话缓存，绝不回写账户设置。
func (s *SettingsService) SessionDefaults(ctx context.Context, userID, sessionID, clientIP string) (*redis.SessionDefaults, error) {
	if userID != "" {
		settings, err := s.repo.GetUserSettings(userID)
		if err == nil && settings.Timezone != "" {
			return &redis.SessionDefaults{
				Timezone:     settings.Timezone,
				LocationName: settings.LocationName,
				Latitude:     settings.LocationLatitude,
				Longitude:    settings.LocationLongitude,
			}, nil
		}
		if err != nil && err != domain.ErrUserSettingsNotFound {
			return nil, err
		}
	}

	if s.cache != nil && sessionID != "" {
		defaults, err := s.cache.GetSessionDefaults(ctx, sessionID)
		if err == nil {
			return defaults, nil
		}
		if err != redis.ErrNotCached {
			return nil, err
		}
	}

	if s.resolver == nil || clientIP == "" {
		return nil, nil
	}
	loc, err := s.resolver.Resolve(ctx, clientIP)
	if err != nil || loc == nil {
		// 定位失败不影响请求本身
		return nil, nil
	}

	defaults := &redis.SessionDefaults{
		Timezone:     loc.TimeZone,
		LocationName: loc.PrettyName,
		Latitude:     &loc.Latitude,
		Longitude:    &loc.Longitude,
	}
	if s.cache != nil && sessionID != "" {
		_ = s.cache.SetSessionDefaults(ctx, sessionID, defaults, s.sessionTTL)
	}
	return defaults, nil
}

// ActivateTimezone 登录成功后让账户时区立即生效到会话
//
// 账户没存时区时清掉会话缓存，让下一次请求重新走 GeoIP 推断。
func (s *SettingsService) ActivateTimezone(ctx context.Context, userID, sessionID string) error {
	if s.cache == nil || sessionID == "" {
		return nil
	}
	settings, err := s.repo.GetUserSettings(userID)
	if err == domain.ErrUserSettingsNotFound || (err == nil && settings.Timezone == "") {
		return s.cache.DeleteSessionDefaults(ctx, sessionID)
	}
	if err != nil {
		return err
	}
	return s.cache.SetSessionDefaults(ctx, sessionID, &redis.SessionDefaults{
		Timezone:     settings.Timezone,
		LocationName: settings.LocationName,
		Latitude:     settings.LocationLatitude,
		Longitude:    settings.LocationLongitude,
	}, s.sessionTTL)
}

package memory

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"accounthub/backend/internal/domain"
)

// Store 使用内存保存账户相关数据，主要用于开发验证和单元测试。
type Store struct {
	mu sync.RWMutex

	users      map[string]*domain.User // userID -> user
	byEmail    map[string]string       // email -> userID
	byUsername map[string]string       // username(lower) -> userID

	signupCodes map[string]*domain.SignupCode        // codeID -> code
	byCode      map[string]string                    // code 值 -> codeID
	codeResults map[string][]*domain.SignupCodeResult // codeID -> 兑换记录

	emailAddresses map[string]*domain.EmailAddress // addressID -> address
	byAddress      map[string]string               // email -> addressID

	confirmations map[string]*domain.EmailConfirmation // confirmationID -> confirmation
	byKey         map[string]string                    // key -> confirmationID

	settings map[string]*domain.UserSettings // userID -> settings
}

// NewStore 创建一个内存存储实例。
func NewStore() *Store {
	return &Store{
		users:          make(map[string]*domain.User),
		byEmail:        make(map[string]string),
		byUsername:     make(map[string]string),
		signupCodes:    make(map[string]*domain.SignupCode),
		byCode:         make(map[string]string),
		codeResults:    make(map[string][]*domain.SignupCodeResult),
		emailAddresses: make(map[string]*domain.EmailAddress),
		byAddress:      make(map[string]string),
		confirmations:  make(map[string]*domain.EmailConfirmation),
		byKey:          make(map[string]string),
		settings:       make(map[string]*domain.UserSettings),
	}
}

// ========== User Repository ==========

// CreateUser 创建新用户。
//
// 冗余 Email 只是快照，不承载归属：多个账户可以带着同一个
// 待确认邮箱并存，归属在确认流程裁决。邮箱索引先到先得，
// 保证按邮箱查找的结果稳定。
func (s *Store) CreateUser(user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	cp := *user
	s.users[user.ID] = &cp
	if user.Email != "" {
		if _, taken := s.byEmail[user.Email]; !taken {
			s.byEmail[user.Email] = user.ID
		}
	}
	if user.Username != "" {
		s.byUsername[strings.ToLower(user.Username)] = user.ID
	}
	return nil
}

// GetUserByID 根据 ID 获取用户。
func (s *Store) GetUserByID(id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	cp := *user
	return &cp, nil
}

// GetUserByEmail 根据冗余主邮箱获取用户。
func (s *Store) GetUserByEmail(email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[domain.NormalizeEmail(email)]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	cp := *s.users[id]
	return &cp, nil
}

// GetUserByUsername 根据用户名获取用户。
func (s *Store) GetUserByUsername(username string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byUsername[strings.ToLower(username)]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	cp := *s.users[id]
	return &cp, nil
}

// UpdateUser 更新用户信息。
func (s *Store) UpdateUser(user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateUserLocked(user)
}

// updateUserLocked 持锁状态下更新用户及其索引。
//
// 索引项只能由持有者释放或接管，避免踩掉共享同一快照邮箱的
// 其他账户。
func (s *Store) updateUserLocked(user *domain.User) error {
	old, ok := s.users[user.ID]
	if !ok {
		return domain.ErrUserNotFound
	}
	if old.Email != "" && old.Email != user.Email && s.byEmail[old.Email] == user.ID {
		delete(s.byEmail, old.Email)
	}
	if old.Username != "" && !strings.EqualFold(old.Username, user.Username) {
		delete(s.byUsername, strings.ToLower(old.Username))
	}
	user.UpdatedAt = time.Now().UTC()
	cp := *user
	s.users[user.ID] = &cp
	if user.Email != "" {
		if ownerID, taken := s.byEmail[user.Email]; !taken || ownerID == user.ID {
			s.byEmail[user.Email] = user.ID
		}
	}
	if user.Username != "" {
		s.byUsername[strings.ToLower(user.Username)] = user.ID
	}
	return nil
}

// UpdateLastLogin 更新用户最后登录时间。
func (s *Store) UpdateLastLogin(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	now := time.Now().UTC()
	user.LastLoginAt = &now
	user.UpdatedAt = now
	return nil
}

// ========== Signup Code Repository ==========

// SaveSignupCode 保存邀请码。
func (s *Store) SaveSignupCode(code *domain.SignupCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existingID, ok := s.byCode[code.Code]; ok && existingID != code.ID {
		return domain.ErrAlreadyExists
	}
	if code.ID == "" {
		code.ID = uuid.New().String()
	}
	if code.CreatedAt.IsZero() {
		code.CreatedAt = time.Now().UTC()
	}
	cp := *code
	s.signupCodes[code.ID] = &cp
	s.byCode[code.Code] = code.ID
	return nil
}

// GetSignupCode 根据 code 值获取邀请码。
func (s *Store) GetSignupCode(code string) (*domain.SignupCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byCode[code]
	if !ok {
		return nil, domain.ErrSignupCodeNotFound
	}
	cp := *s.signupCodes[id]
	return &cp, nil
}

// SignupCodeExists 按 code 或 email 做 OR 匹配。
func (s *Store) SignupCodeExists(code, email string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if code != "" {
		if _, ok := s.byCode[code]; ok {
			return true, nil
		}
	}
	if email != "" {
		for _, sc := range s.signupCodes {
			if sc.Email == email {
				return true, nil
			}
		}
	}
	return false, nil
}

// CreateSignupCodeResult 插入兑换记录并全量重算父码的 UseCount。
func (s *Store) CreateSignupCodeResult(result *domain.SignupCodeResult) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	code, ok := s.signupCodes[result.SignupCodeID]
	if !ok {
		return 0, domain.ErrSignupCodeNotFound
	}
	if result.ID == "" {
		result.ID = uuid.New().String()
	}
	if result.Timestamp.IsZero() {
		result.Timestamp = time.Now().UTC()
	}
	cp := *result
	s.codeResults[code.ID] = append(s.codeResults[code.ID], &cp)

	// 重算而非自增
	code.UseCount = len(s.codeResults[code.ID])
	return code.UseCount, nil
}

// ListSignupCodeResults 返回某个邀请码的全部兑换记录。
func (s *Store) ListSignupCodeResults(signupCodeID string) ([]domain.SignupCodeResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]domain.SignupCodeResult, 0, len(s.codeResults[signupCodeID]))
	for _, r := range s.codeResults[signupCodeID] {
		results = append(results, *r)
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].Timestamp.Before(results[j].Timestamp)
	})
	return results, nil
}

// ========== Email Address Repository ==========

// SaveEmailAddress 保存邮箱地址记录，强制全局唯一。
func (s *Store) SaveEmailAddress(address *domain.EmailAddress) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existingID, ok := s.byAddress[address.Email]; ok && existingID != address.ID {
		return domain.ErrEmailAlreadyVerified
	}
	if address.ID == "" {
		address.ID = uuid.New().String()
	}
	if old, ok := s.emailAddresses[address.ID]; ok && old.Email != address.Email {
		delete(s.byAddress, old.Email)
	}
	cp := *address
	s.emailAddresses[address.ID] = &cp
	s.byAddress[address.Email] = address.ID
	return nil
}

// GetEmailAddress 根据邮箱值获取记录。
func (s *Store) GetEmailAddress(email string) (*domain.EmailAddress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byAddress[domain.NormalizeEmail(email)]
	if !ok {
		return nil, domain.ErrEmailAddressNotFound
	}
	cp := *s.emailAddresses[id]
	return &cp, nil
}

// GetEmailAddressesByUserID 返回账户名下的全部邮箱。
func (s *Store) GetEmailAddressesByUserID(userID string) ([]domain.EmailAddress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var addresses []domain.EmailAddress
	for _, a := range s.emailAddresses {
		if a.UserID == userID {
			addresses = append(addresses, *a)
		}
	}
	return addresses, nil
}

// GetPrimaryEmailAddress 返回账户的主邮箱，没有则返回 not found。
func (s *Store) GetPrimaryEmailAddress(userID string) (*domain.EmailAddress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.emailAddresses {
		if a.UserID == userID && a.IsPrimary {
			cp := *a
			return &cp, nil
		}
	}
	return nil, domain.ErrEmailAddressNotFound
}

// SetPrimaryEmailAddress 在单个临界区里完成主邮箱切换的三处变更。
func (s *Store) SetPrimaryEmailAddress(addressID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	target, ok := s.emailAddresses[addressID]
	if !ok {
		return domain.ErrEmailAddressNotFound
	}

	// 旧主邮箱降级
	for _, a := range s.emailAddresses {
		if a.UserID == target.UserID && a.IsPrimary && a.ID != target.ID {
			a.IsPrimary = false
		}
	}
	target.IsPrimary = true

	// 同步账户的冗余主邮箱字段
	user, ok := s.users[target.UserID]
	if !ok {
		return domain.ErrUserNotFound
	}
	cp := *user
	cp.Email = target.Email
	return s.updateUserLocked(&cp)
}

// DeleteEmailAddress 删除一条邮箱记录。
func (s *Store) DeleteEmailAddress(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	address, ok := s.emailAddresses[id]
	if !ok {
		return domain.ErrEmailAddressNotFound
	}
	delete(s.byAddress, address.Email)
	delete(s.emailAddresses, id)
	return nil
}

// ========== Email Confirmation Repository ==========

// SaveEmailConfirmation 保存确认记录。
func (s *Store) SaveEmailConfirmation(confirmation *domain.EmailConfirmation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existingID, ok := s.byKey[confirmation.Key]; ok && existingID != confirmation.ID {
		return domain.ErrAlreadyExists
	}
	if confirmation.ID == "" {
		confirmation.ID = uuid.New().String()
	}
	if confirmation.CreatedAt.IsZero() {
		confirmation.CreatedAt = time.Now().UTC()
	}
	cp := *confirmation
	s.confirmations[confirmation.ID] = &cp
	s.byKey[confirmation.Key] = confirmation.ID
	return nil
}

// GetEmailConfirmationByKey 根据确认密钥获取记录。
func (s *Store) GetEmailConfirmationByKey(key string) (*domain.EmailConfirmation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byKey[key]
	if !ok {
		return nil, domain.ErrConfirmationNotFound
	}
	cp := *s.confirmations[id]
	return &cp, nil
}

// ListEmailConfirmationsByUserID 返回账户名下全部确认记录。
func (s *Store) ListEmailConfirmationsByUserID(userID string) ([]domain.EmailConfirmation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var confirmations []domain.EmailConfirmation
	for _, c := range s.confirmations {
		if c.UserID == userID {
			confirmations = append(confirmations, *c)
		}
	}
	return confirmations, nil
}

// DeleteEmailConfirmation 删除一条确认记录。
func (s *Store) DeleteEmailConfirmation(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteConfirmationLocked(id)
}

// deleteConfirmationLocked 持锁删除确认记录并维护索引。
func (s *Store) deleteConfirmationLocked(id string) error {
	confirmation, ok := s.confirmations[id]
	if !ok {
		return domain.ErrConfirmationNotFound
	}
	delete(s.byKey, confirmation.Key)
	delete(s.confirmations, id)
	return nil
}

// DeleteEmailConfirmationsByEmail 删除某邮箱值的全部确认记录。
func (s *Store) DeleteEmailConfirmationsByEmail(email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, c := range s.confirmations {
		if c.Email == email {
			delete(s.byKey, c.Key)
			delete(s.confirmations, id)
		}
	}
	return nil
}

// DeleteExpiredEmailConfirmations 清理已发送且过期的确认记录。
func (s *Store) DeleteExpiredEmailConfirmations(ttl time.Duration, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for id, c := range s.confirmations {
		if c.SentAt == nil {
			continue // 从未发送的记录不参与过期清理
		}
		if c.KeyExpired(ttl, now) {
			delete(s.byKey, c.Key)
			delete(s.confirmations, id)
			deleted++
		}
	}
	return deleted, nil
}

// ========== User Settings Repository ==========

// GetUserSettings 获取账户的偏好设置。
func (s *Store) GetUserSettings(userID string) (*domain.UserSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	settings, ok := s.settings[userID]
	if !ok {
		return nil, domain.ErrUserSettingsNotFound
	}
	cp := *settings
	return &cp, nil
}

// SaveUserSettings 保存账户的偏好设置。
func (s *Store) SaveUserSettings(settings *domain.UserSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if settings.ID == "" {
		settings.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if settings.CreatedAt.IsZero() {
		settings.CreatedAt = now
	}
	settings.UpdatedAt = now
	cp := *settings
	s.settings[settings.UserID] = &cp
	return nil
}

// Close 关闭存储（内存实现为空操作）。
func (s *Store) Close() error {
	return nil
}

// Health 健康检查（内存实现恒为健康）。
func (s *Store) Health() error {
	return nil
}

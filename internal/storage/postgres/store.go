package postgres

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"accounthub/backend/internal/domain"
)

// lockingClause 返回 SELECT ... FOR UPDATE 子句，
// 主邮箱切换用它锁住目标行，串行化并发切换
func lockingClause() clause.Locking {
	return clause.Locking{Strength: "UPDATE"}
}

// Store PostgreSQL 存储实现（通过 dialector 也支持 MySQL）
//
// 跨实体不变量（邮箱全局唯一、单一主邮箱）依赖存储层约束和事务，
// 不只靠应用层检查：多个进程实例可能并发运行。
type Store struct {
	db *gorm.DB
}

// NewStore 创建 PostgreSQL 存储实例
func NewStore(dsn string) (*Store, error) {
	return NewStoreWithDialector(postgres.Open(dsn))
}

// NewMySQLStore 创建 MySQL 存储实例
func NewMySQLStore(dsn string) (*Store, error) {
	return NewStoreWithDialector(mysql.Open(dsn))
}

// NewStoreWithDialector 使用指定的 GORM dialector 创建存储实例
func NewStoreWithDialector(dialector gorm.Dialector) (*Store, error) {
	config := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent), // 静默模式
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	db, err := gorm.Open(dialector, config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// 配置连接池
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	store := &Store{db: db}

	if err := store.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// migrate 自动迁移数据库表结构
func (s *Store) migrate() error {
	return s.db.AutoMigrate(
		&domain.User{},
		&domain.SignupCode{},
		&domain.SignupCodeResult{},
		&domain.EmailAddress{},
		&domain.EmailConfirmation{},
		&domain.UserSettings{},
	)
}

// isUniqueViolation 判断错误是否为唯一约束冲突
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

// ========== User Repository ==========

// CreateUser 创建新用户
func (s *Store) CreateUser(user *domain.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	return s.db.Create(user).Error
}

// GetUserByID 根据 ID 获取用户
func (s *Store) GetUserByID(id string) (*domain.User, error) {
	var user domain.User
	err := s.db.Where("id = ?", id).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// GetUserByEmail 根据冗余主邮箱获取用户
func (s *Store) GetUserByEmail(email string) (*domain.User, error) {
	var user domain.User
	err := s.db.Where("email = ?", domain.NormalizeEmail(email)).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// GetUserByUsername 根据用户名获取用户
func (s *Store) GetUserByUsername(username string) (*domain.User, error) {
	var user domain.User
	err := s.db.Where("lower(username) = ?", strings.ToLower(username)).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// UpdateUser 更新用户信息
func (s *Store) UpdateUser(user *domain.User) error {
	user.UpdatedAt = time.Now().UTC()
	return s.db.Save(user).Error
}

// UpdateLastLogin 更新用户最后登录时间
func (s *Store) UpdateLastLogin(userID string) error {
	now := time.Now().UTC()
	return s.db.Model(&domain.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"last_login_at": now,
			"updated_at":    now,
		}).Error
}

// ========== Signup Code Repository ==========

// SaveSignupCode 保存邀请码
func (s *Store) SaveSignupCode(code *domain.SignupCode) error {
	if code.ID == "" {
		code.ID = uuid.New().String()
	}
	if code.CreatedAt.IsZero() {
		code.CreatedAt = time.Now().UTC()
	}
	err := s.db.Save(code).Error
	if err != nil && isUniqueViolation(err) {
		return domain.ErrAlreadyExists
	}
	return err
}

// GetSignupCode 根据 code 值获取邀请码
func (s *Store) GetSignupCode(code string) (*domain.SignupCode, error) {
	var sc domain.SignupCode
	err := s.db.Where("code = ?", code).First(&sc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrSignupCodeNotFound
		}
		return nil, err
	}
	return &sc, nil
}

// SignupCodeExists 按 code 或 email 做 OR 匹配
func (s *Store) SignupCodeExists(code, email string) (bool, error) {
	query := s.db.Model(&domain.SignupCode{})
	switch {
	case code != "" && email != "":
		query = query.Where("code = ? OR email = ?", code, email)
	case code != "":
		query = query.Where("code = ?", code)
	case email != "":
		query = query.Where("email = ?", email)
	default:
		return false, nil
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// CreateSignupCodeResult 插入兑换记录并全量重算父码的 UseCount
//
// 插入本身依赖存储层原子性；重算是收敛式的，并发兑换各自触发
// 一次重算后最终一致。
func (s *Store) CreateSignupCodeResult(result *domain.SignupCodeResult) (int, error) {
	if result.ID == "" {
		result.ID = uuid.New().String()
	}
	if result.Timestamp.IsZero() {
		result.Timestamp = time.Now().UTC()
	}

	var useCount int64
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var code domain.SignupCode
		if err := tx.Where("id = ?", result.SignupCodeID).First(&code).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrSignupCodeNotFound
			}
			return err
		}
		if err := tx.Create(result).Error; err != nil {
			return err
		}
		// 重算而非自增
		if err := tx.Model(&domain.SignupCodeResult{}).
			Where("signup_code_id = ?", result.SignupCodeID).
			Count(&useCount).Error; err != nil {
			return err
		}
		return tx.Model(&domain.SignupCode{}).
			Where("id = ?", result.SignupCodeID).
			UpdateColumn("use_count", useCount).Error
	})
	return int(useCount), err
}

// ListSignupCodeResults 返回某个邀请码的全部兑换记录
func (s *Store) ListSignupCodeResults(signupCodeID string) ([]domain.SignupCodeResult, error) {
	var results []domain.SignupCodeResult
	err := s.db.Where("signup_code_id = ?", signupCodeID).
		Order("timestamp ASC").
		Find(&results).Error
	return results, err
}

// ========== Email Address Repository ==========

// SaveEmailAddress 保存邮箱地址记录
//
// 全局唯一靠 email 列的唯一索引兜底，检查-再-插入的竞态在这里收口。
func (s *Store) SaveEmailAddress(address *domain.EmailAddress) error {
	if address.ID == "" {
		address.ID = uuid.New().String()
	}
	err := s.db.Save(address).Error
	if err != nil && isUniqueViolation(err) {
		return domain.ErrEmailAlreadyVerified
	}
	return err
}

// GetEmailAddress 根据邮箱值获取记录
func (s *Store) GetEmailAddress(email string) (*domain.EmailAddress, error) {
	var address domain.EmailAddress
	err := s.db.Where("email = ?", domain.NormalizeEmail(email)).First(&address).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrEmailAddressNotFound
		}
		return nil, err
	}
	return &address, nil
}

// GetEmailAddressesByUserID 返回账户名下的全部邮箱
func (s *Store) GetEmailAddressesByUserID(userID string) ([]domain.EmailAddress, error) {
	var addresses []domain.EmailAddress
	err := s.db.Where("user_id = ?", userID).Find(&addresses).Error
	return addresses, err
}

// GetPrimaryEmailAddress 返回账户的主邮箱
func (s *Store) GetPrimaryEmailAddress(userID string) (*domain.EmailAddress, error) {
	var address domain.EmailAddress
	err := s.db.Where("user_id = ? AND is_primary = ?", userID, true).First(&address).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrEmailAddressNotFound
		}
		return nil, err
	}
	return &address, nil
}

// SetPrimaryEmailAddress 主邮箱切换
//
// 三处变更（旧主降级、目标升级、账户冗余字段同步）必须在一个事务里，
// 避免两个并发切换都成功后留下双主。
func (s *Store) SetPrimaryEmailAddress(addressID string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var target domain.EmailAddress
		err := tx.Clauses(lockingClause()).Where("id = ?", addressID).First(&target).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrEmailAddressNotFound
			}
			return err
		}

		// 旧主邮箱降级
		if err := tx.Model(&domain.EmailAddress{}).
			Where("user_id = ? AND is_primary = ? AND id != ?", target.UserID, true, target.ID).
			Update("is_primary", false).Error; err != nil {
			return err
		}

		// 目标升级
		if err := tx.Model(&domain.EmailAddress{}).
			Where("id = ?", target.ID).
			Update("is_primary", true).Error; err != nil {
			return err
		}

		// 同步账户的冗余主邮箱字段
		return tx.Model(&domain.User{}).
			Where("id = ?", target.UserID).
			Updates(map[string]interface{}{
				"email":      target.Email,
				"updated_at": time.Now().UTC(),
			}).Error
	})
}

// DeleteEmailAddress 删除一条邮箱记录
func (s *Store) DeleteEmailAddress(id string) error {
	result := s.db.Where("id = ?", id).Delete(&domain.EmailAddress{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrEmailAddressNotFound
	}
	return nil
}

// ========== Email Confirmation Repository ==========

// SaveEmailConfirmation 保存确认记录
func (s *Store) SaveEmailConfirmation(confirmation *domain.EmailConfirmation) error {
	if confirmation.ID == "" {
		confirmation.ID = uuid.New().String()
	}
	if confirmation.CreatedAt.IsZero() {
		confirmation.CreatedAt = time.Now().UTC()
	}
	err := s.db.Save(confirmation).Error
	if err != nil && isUniqueViolation(err) {
		return domain.ErrAlreadyExists
	}
	return err
}

// GetEmailConfirmationByKey 根据确认密钥获取记录
func (s *Store) GetEmailConfirmationByKey(key string) (*domain.EmailConfirmation, error) {
	var confirmation domain.EmailConfirmation
	err := s.db.Where("confirmation_key = ?", key).First(&confirmation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrConfirmationNotFound
		}
		return nil, err
	}
	return &confirmation, nil
}

// ListEmailConfirmationsByUserID 返回账户名下全部确认记录
func (s *Store) ListEmailConfirmationsByUserID(userID string) ([]domain.EmailConfirmation, error) {
	var confirmations []domain.EmailConfirmation
	err := s.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&confirmations).Error
	return confirmations, err
}

// DeleteEmailConfirmation 删除一条确认记录
func (s *Store) DeleteEmailConfirmation(id string) error {
	result := s.db.Where("id = ?", id).Delete(&domain.EmailConfirmation{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConfirmationNotFound
	}
	return nil
}

// DeleteEmailConfirmationsByEmail 删除某邮箱值的全部确认记录
func (s *Store) DeleteEmailConfirmationsByEmail(email string) error {
	return s.db.Where("email = ?", email).Delete(&domain.EmailConfirmation{}).Error
}

// DeleteExpiredEmailConfirmations 清理已发送且过期的确认记录
//
// 单条 DELETE，天然幂等，可与 confirm 并发执行。
func (s *Store) DeleteExpiredEmailConfirmations(ttl time.Duration, now time.Time) (int, error) {
	cutoff := now.Add(-ttl)
	result := s.db.Where("sent_at IS NOT NULL AND sent_at <= ?", cutoff).
		Delete(&domain.EmailConfirmation{})
	if result.Error != nil {
		return 0, result.Error
	}
	return int(result.RowsAffected), nil
}

// ========== User Settings Repository ==========

// GetUserSettings 获取账户的偏好设置
func (s *Store) GetUserSettings(userID string) (*domain.UserSettings, error) {
	var settings domain.UserSettings
	err := s.db.Where("user_id = ?", userID).First(&settings).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUserSettingsNotFound
		}
		return nil, err
	}
	return &settings, nil
}

// SaveUserSettings 保存账户的偏好设置
func (s *Store) SaveUserSettings(settings *domain.UserSettings) error {
	if settings.ID == "" {
		settings.ID = uuid.New().String()
	}
	return s.db.Save(settings).Error
}

// Close 关闭数据库连接
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Health 检查数据库健康状态
func (s *Store) Health() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

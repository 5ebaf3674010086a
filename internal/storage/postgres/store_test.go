package postgres

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/schema"

	"accounthub/backend/internal/domain"
)

// 确认密钥列不能映射成 key：KEY 是 MySQL 保留字，
// 原生查询里的裸列名会直接解析失败。
func TestEmailConfirmationKeyColumn(t *testing.T) {
	parsed, err := schema.Parse(&domain.EmailConfirmation{}, &sync.Map{}, schema.NamingStrategy{})
	require.NoError(t, err)

	field := parsed.LookUpField("Key")
	require.NotNil(t, field)
	assert.Equal(t, "confirmation_key", field.DBName)
}

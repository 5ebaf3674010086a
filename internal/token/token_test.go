package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerate(t *testing.T) {
	t.Run("令牌长度固定为64个十六进制字符", func(t *testing.T) {
		tok := Generate()
		assert.Len(t, tok, 64)
		assert.Regexp(t, "^[0-9a-f]{64}$", tok)
	})

	t.Run("连续生成的令牌互不相同", func(t *testing.T) {
		seen := make(map[string]struct{})
		for i := 0; i < 1000; i++ {
			tok := Generate()
			_, dup := seen[tok]
			assert.False(t, dup, "duplicate token generated")
			seen[tok] = struct{}{}
		}
	})

	t.Run("相同盐生成的令牌仍然不同", func(t *testing.T) {
		a := Generate("user@example.com")
		b := Generate("user@example.com")
		assert.NotEqual(t, a, b)
	})
}

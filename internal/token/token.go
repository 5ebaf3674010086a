// Package token 生成不可猜测的不透明令牌（邀请码、确认密钥）。
package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// entropyBytes 每个令牌消耗的随机字节数
const entropyBytes = 32

// Generate 生成一个 64 字符的十六进制令牌
//
// 密码学强随机数经 sha256 混合可选的盐（例如目标邮箱），
// 盐降低跨记录的可预测性但不提供任何熵。纯函数，除熵源外无副作用；
// 熵源耗尽视为不可恢复错误，直接 panic。
func Generate(saltParts ...string) string {
	buf := make([]byte, entropyBytes)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("token: entropy source failed: %v", err))
	}

	h := sha256.New()
	h.Write(buf)
	for _, part := range saltParts {
		h.Write([]byte(part))
	}
	return hex.EncodeToString(h.Sum(nil))
}

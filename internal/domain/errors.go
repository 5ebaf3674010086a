package domain

import "errors"

// 业务错误定义
//
// 四个核心错误在违规点抛出，由边界层（HTTP/CLI）翻译成用户可见消息，
// 核心层从不吞掉它们。
var (
	// ErrAlreadyExists 邀请码创建时 code 或 email 与已有记录冲突
	ErrAlreadyExists = errors.New("signup code or email already exists")
	// ErrInvalidCode 保留给调用方标记格式错误或未知的邀请码；
	// 台账的读路径不会抛它，而是返回 false / not found
	ErrInvalidCode = errors.New("invalid signup code")
	// ErrEmailAlreadyVerified 要确认的邮箱已归属于某个账户
	ErrEmailAlreadyVerified = errors.New("email already verified")
	// ErrVerificationKeyExpired 确认密钥已过期（或从未发送）
	ErrVerificationKeyExpired = errors.New("verification key expired")
)

// 存储层未命中错误
var (
	// ErrUserNotFound 用户不存在
	ErrUserNotFound = errors.New("user not found")
	// ErrSignupCodeNotFound 邀请码不存在
	ErrSignupCodeNotFound = errors.New("signup code not found")
	// ErrEmailAddressNotFound 邮箱地址记录不存在
	ErrEmailAddressNotFound = errors.New("email address not found")
	// ErrConfirmationNotFound 确认记录不存在
	ErrConfirmationNotFound = errors.New("email confirmation not found")
	// ErrUserSettingsNotFound 用户设置行不存在
	ErrUserSettingsNotFound = errors.New("user settings not found")
)

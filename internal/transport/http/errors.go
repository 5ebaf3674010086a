package httptransport

import (
	"errors"

	"accounthub/backend/internal/domain"
	"accounthub/backend/internal/service"
)

// 错误消息映射表（业务错误 -> 中文消息）
var errorMessages = []struct {
	err error
	msg string
}{
	{domain.ErrInvalidCode, "邀请码无效或已失效"},
	{domain.ErrAlreadyExists, "邀请码或绑定邮箱已存在"},
	{domain.ErrEmailAlreadyVerified, "该邮箱已被验证"},
	{domain.ErrVerificationKeyExpired, "确认链接已过期，请重新发送"},
	{domain.ErrInvalidEmail, "邮箱格式无效"},
	{domain.ErrEmailTooLong, "邮箱地址过长"},
	{domain.ErrPasswordTooShort, "密码太短，至少8个字符"},
	{domain.ErrPasswordTooLong, "密码太长，最多72个字符"},
	{domain.ErrInvalidTimezone, "时区名称无效"},
	{domain.ErrUserNotFound, "用户不存在"},
	{domain.ErrSignupCodeNotFound, "邀请码不存在"},
	{domain.ErrEmailAddressNotFound, "邮箱地址不存在"},
	{domain.ErrConfirmationNotFound, "确认记录不存在"},
	{service.ErrSignupClosed, "当前未开放注册，需要邀请码"},
	{service.ErrUsernameExists, "用户名已被占用"},
	{service.ErrInvalidCredentials, "用户名或密码错误"},
	{service.ErrUserInactive, "账户已被禁用"},
	{service.ErrResendLimited, "发送太频繁，请稍后再试"},
}

// GetErrorMessage 获取错误的中文消息
//
// 包装过的错误用 errors.Is 逐级匹配。
func GetErrorMessage(err error) string {
	for _, entry := range errorMessages {
		if errors.Is(err, entry.err) {
			return entry.msg
		}
	}
	return err.Error()
}

// 通用错误消息
const (
	MsgInvalidRequest     = "请求参数格式错误"
	MsgAuthRequired       = "需要登录认证"
	MsgInvalidCredentials = "用户名或密码错误"
	MsgInternalError      = "服务器内部错误，请稍后重试"
)

// Package notify 对接出站通知渠道。
//
// 核心层只决定"是否发"和"发什么"；投递失败不被核心捕获，
// 原样向调用方传播。
package notify

import (
	"go.uber.org/zap"

	"accounthub/backend/internal/domain"
)

// Notifier 通知分发器接口
type Notifier interface {
	// SendSignupCode 把邀请码投递到其绑定邮箱（或显式给定的收件人）
	SendSignupCode(code *domain.SignupCode, recipient string) error
	// SendEmailVerification 投递确认密钥邮件
	SendEmailVerification(confirmation *domain.EmailConfirmation, confirmURL string) error
	// SendPasswordChangeNotice 密码变更通知
	SendPasswordChangeNotice(user *domain.User) error
}

// LogNotifier 只记日志不投递，用于开发环境和测试。
type LogNotifier struct {
	log *zap.Logger
}

// NewLogNotifier 创建日志通知器
func NewLogNotifier(log *zap.Logger) *LogNotifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogNotifier{log: log}
}

// SendSignupCode 记录邀请码投递
func (n *LogNotifier) SendSignupCode(code *domain.SignupCode, recipient string) error {
	n.log.Info("signup code delivery (log only)",
		zap.String("code", code.Code),
		zap.String("recipient", recipient),
	)
	return nil
}

// SendEmailVerification 记录确认邮件投递
func (n *LogNotifier) SendEmailVerification(confirmation *domain.EmailConfirmation, confirmURL string) error {
	n.log.Info("email verification delivery (log only)",
		zap.String("email", confirmation.Email),
		zap.String("confirm_url", confirmURL),
	)
	return nil
}

// SendPasswordChangeNotice 记录密码变更通知
func (n *LogNotifier) SendPasswordChangeNotice(user *domain.User) error {
	n.log.Info("password change notice (log only)",
		zap.String("user_id", user.ID),
		zap.String("email", user.Email),
	)
	return nil
}

package notify

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
	"gopkg.in/gomail.v2"

	"accounthub/backend/internal/domain"
)

// SMTPConfig 出站邮件服务器配置
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string // 发件人地址
	// MaxPerSecond 出站速率上限，0 表示不限速
	MaxPerSecond float64
}

// SMTPNotifier 通过 SMTP 投递通知邮件。
type SMTPNotifier struct {
	dialer  *gomail.Dialer
	from    string
	limiter *rate.Limiter
}

// NewSMTPNotifier 创建 SMTP 通知器
func NewSMTPNotifier(cfg SMTPConfig) *SMTPNotifier {
	limit := rate.Inf
	if cfg.MaxPerSecond > 0 {
		limit = rate.Limit(cfg.MaxPerSecond)
	}
	return &SMTPNotifier{
		dialer:  gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:    cfg.From,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// SendSignupCode 投递邀请码邮件
func (n *SMTPNotifier) SendSignupCode(code *domain.SignupCode, recipient string) error {
	if recipient == "" {
		recipient = code.Email
	}
	if recipient == "" {
		return fmt.Errorf("signup code %s has no recipient", code.Code)
	}

	body := fmt.Sprintf("You have been invited to sign up.\n\nYour invite code: %s\n", code.Code)
	if code.ExpiresAt != nil {
		body += fmt.Sprintf("The code expires at %s.\n", code.ExpiresAt.Format(time.RFC1123))
	}
	return n.send(recipient, "Your invite code", body)
}

// SendEmailVerification 投递确认密钥邮件
func (n *SMTPNotifier) SendEmailVerification(confirmation *domain.EmailConfirmation, confirmURL string) error {
	body := fmt.Sprintf(
		"Please confirm your email address.\n\nConfirmation link: %s\n\nIf you did not request this, ignore this message.\n",
		confirmURL,
	)
	return n.send(confirmation.Email, "Confirm your email address", body)
}

// SendPasswordChangeNotice 投递密码变更通知
func (n *SMTPNotifier) SendPasswordChangeNotice(user *domain.User) error {
	if user.Email == "" {
		return nil // 没有主邮箱就没处可通知
	}
	body := "Your account password was changed. If this was not you, contact support immediately.\n"
	return n.send(user.Email, "Your password was changed", body)
}

// send 组装并投递一封纯文本邮件（受出站速率限制）
func (n *SMTPNotifier) send(to, subject, body string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := n.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("outbound rate limit: %w", err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	if err := n.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send mail to %s: %w", to, err)
	}
	return nil
}

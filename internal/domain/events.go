package domain

import "time"

// EventType 领域事件类型
type EventType string

const (
	EventSignupCodeSent        EventType = "signup_code_sent"
	EventSignupCodeUsed        EventType = "signup_code_used"
	EventEmailConfirmationSent EventType = "email_confirmation_sent"
	EventEmailConfirmed        EventType = "email_confirmed"
	EventUserSignedUp          EventType = "user_signed_up"
	EventUserLoggedIn          EventType = "user_logged_in"
	EventPasswordChanged       EventType = "password_changed"
)

// Event 领域事件，在成功的状态迁移之后发布
//
// 只带受影响的实体，不带请求上下文。Payload 的具体类型按 Type 区分：
// signup_code_* 携带 *SignupCode / *SignupCodeResult，
// email_* 携带 *EmailConfirmation / *EmailAddress，
// user_* / password_changed 携带 *User。
type Event struct {
	Type       EventType   `json:"type"`
	OccurredAt time.Time   `json:"occurredAt"`
	Payload    interface{} `json:"payload"`
}

// NewEvent 创建事件
func NewEvent(t EventType, payload interface{}) Event {
	return Event{
		Type:       t,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
}

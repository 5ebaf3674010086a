package event

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"accounthub/backend/internal/domain"
)

func TestBus(t *testing.T) {
	t.Run("按类型分发事件", func(t *testing.T) {
		bus := NewBus(nil)

		var got []domain.EventType
		bus.Subscribe(domain.EventEmailConfirmed, func(e domain.Event) {
			got = append(got, e.Type)
		})
		bus.Subscribe(domain.EventSignupCodeUsed, func(e domain.Event) {
			got = append(got, e.Type)
		})

		bus.Publish(domain.NewEvent(domain.EventEmailConfirmed, nil))

		assert.Equal(t, []domain.EventType{domain.EventEmailConfirmed}, got)
	})

	t.Run("SubscribeAll接收所有类型", func(t *testing.T) {
		bus := NewBus(nil)

		count := 0
		bus.SubscribeAll(func(e domain.Event) { count++ })

		bus.Publish(domain.NewEvent(domain.EventSignupCodeSent, nil))
		bus.Publish(domain.NewEvent(domain.EventPasswordChanged, nil))

		assert.Equal(t, 2, count)
	})

	t.Run("处理函数panic不影响后续订阅者", func(t *testing.T) {
		bus := NewBus(nil)

		called := false
		bus.Subscribe(domain.EventUserSignedUp, func(e domain.Event) {
			panic("boom")
		})
		bus.Subscribe(domain.EventUserSignedUp, func(e domain.Event) {
			called = true
		})

		assert.NotPanics(t, func() {
			bus.Publish(domain.NewEvent(domain.EventUserSignedUp, nil))
		})
		assert.True(t, called)
	})

	t.Run("事件携带载荷", func(t *testing.T) {
		bus := NewBus(nil)

		var payload interface{}
		bus.Subscribe(domain.EventEmailConfirmed, func(e domain.Event) {
			payload = e.Payload
		})

		addr := &domain.EmailAddress{Email: "a@b.com"}
		bus.Publish(domain.NewEvent(domain.EventEmailConfirmed, addr))

		assert.Same(t, addr, payload)
	})
}

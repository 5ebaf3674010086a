// Package event 提供进程内领域事件总线。
//
// 订阅关系在进程启动时显式装配，不做任何包加载期的全局注册。
package event

import (
	"sync"

	"go.uber.org/zap"

	"accounthub/backend/internal/domain"
)

// Handler 事件处理函数
//
// 在发布方的调用栈上同步执行；处理函数不得再次发布同类型事件，
// 否则会递归。
type Handler func(domain.Event)

// Bus 同步的进程内事件总线
type Bus struct {
	mu       sync.RWMutex
	handlers map[domain.EventType][]Handler
	all      []Handler // 订阅全部事件类型的处理函数
	log      *zap.Logger
}

// NewBus 创建事件总线
func NewBus(log *zap.Logger) *Bus {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bus{
		handlers: make(map[domain.EventType][]Handler),
		log:      log,
	}
}

// Subscribe 订阅指定类型的事件
func (b *Bus) Subscribe(t domain.EventType, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[t] = append(b.handlers[t], h)
}

// SubscribeAll 订阅所有事件
func (b *Bus) SubscribeAll(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.all = append(b.all, h)
}

// Publish 同步分发事件给所有订阅者
//
// 处理函数的 panic 被捕获并记录，不会中断发布方的状态迁移。
func (b *Bus) Publish(e domain.Event) {
	b.mu.RLock()
	typed := b.handlers[e.Type]
	all := b.all
	b.mu.RUnlock()

	for _, h := range typed {
		b.dispatch(h, e)
	}
	for _, h := range all {
		b.dispatch(h, e)
	}
}

// dispatch 执行单个处理函数（捕获 panic）
func (b *Bus) dispatch(h Handler, e domain.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("event handler panicked",
				zap.String("event_type", string(e.Type)),
				zap.Any("panic", r),
			)
		}
	}()
	h(e)
}

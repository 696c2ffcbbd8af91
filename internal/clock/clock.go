package clock

import (
	"sync"
	"time"
)

// Clock 注入当前时间，优惠券过期判断等逻辑都通过它取时间。
type Clock interface {
	Now() time.Time
}

type system struct{}

// NewSystem 返回基于 time.Now 的 UTC 时钟。
func NewSystem() Clock { return system{} }

func (system) Now() time.Time { return time.Now().UTC() }

// Manual 测试用时钟，可手动推进。
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

func NewManual(t time.Time) *Manual { return &Manual{now: t.UTC()} }

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}

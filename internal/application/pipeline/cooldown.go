// Package pipeline 提供检测事件的端到端处理流水线
package pipeline

import (
	"sync"
	"time"
)

// CooldownTracker 同机位同类型事件的去重冷却。
// 只在内存中维护上次放行时间，条目数受摄像头与类型组合数约束。
type CooldownTracker struct {
	mu   sync.Mutex
	last map[string]time.Time
	now  func() time.Time
}

// NewCooldownTracker 创建冷却追踪器
func NewCooldownTracker() *CooldownTracker {
	return &CooldownTracker{
		last: make(map[string]time.Time),
		now:  time.Now,
	}
}

// Allow 判断事件是否放行，放行时刷新冷却计时。
// cooldown 为零表示不做冷却。
func (t *CooldownTracker) Allow(cameraID, detectionType string, cooldown time.Duration) bool {
	if cooldown <= 0 {
		return true
	}

	key := cameraID + "/" + detectionType
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	if lastSeen, ok := t.last[key]; ok && now.Sub(lastSeen) < cooldown {
		return false
	}
	t.last[key] = now
	return true
}

// Forget 撤销放行时记录的冷却标记。
// 放行后建档失败时调用，保证消息重投不被自己的冷却拦住。
func (t *CooldownTracker) Forget(cameraID, detectionType string) {
	key := cameraID + "/" + detectionType

	t.mu.Lock()
	delete(t.last, key)
	t.mu.Unlock()
}

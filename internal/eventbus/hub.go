package eventbus

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// TypeTenantChanged 某 guild 的账本/目标/资源发生变更
	TypeTenantChanged = "tenant.changed"
	// TypeSyncCompleted 一次批量看板同步结束
	TypeSyncCompleted = "sync.completed"
)

type Event struct {
	Type      string         `json:"type"`
	Timestamp int64          `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// TenantChanged 构造 tenant.changed 事件
func TenantChanged(tenantID, reason string) Event {
	return Event{
		Type: TypeTenantChanged,
		Data: map[string]any{"tenant_id": tenantID, "reason": reason},
	}
}

// TenantID 读取事件携带的 guild ID，没有时返回空串
func (e Event) TenantID() string {
	v, _ := e.Data["tenant_id"].(string)
	return v
}

// Hub 进程内事件总线。Publish 从不阻塞：订阅者通道已满时丢弃该事件并计数。
// Handle 注册的回调在 Publish 内同步执行，不会丢事件。
type Hub struct {
	mu       sync.RWMutex
	subs     map[chan Event]map[string]struct{} // 值为订阅的事件类型，空表示全部
	handlers map[*handler]struct{}
	onDrop   func(Event)
	dropped  atomic.Int64
}

type handler struct {
	fn    func(Event)
	types map[string]struct{}
}

func NewHub() *Hub {
	return &Hub{
		subs:     make(map[chan Event]map[string]struct{}),
		handlers: make(map[*handler]struct{}),
	}
}

// SetDropHook 设置丢弃回调（指标、告警）
func (h *Hub) SetDropHook(fn func(Event)) {
	h.mu.Lock()
	h.onDrop = fn
	h.mu.Unlock()
}

func (h *Hub) Publish(evt Event) {
	if h == nil {
		return
	}
	if evt.Timestamp == 0 {
		evt.Timestamp = time.Now().UnixMilli()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for hd := range h.handlers {
		if accepts(hd.types, evt.Type) {
			hd.fn(evt)
		}
	}
	for ch, types := range h.subs {
		if !accepts(types, evt.Type) {
			continue
		}
		select {
		case ch <- evt:
		default:
			// 慢消费者直接丢弃，避免阻塞写路径
			h.dropped.Add(1)
			if h.onDrop != nil {
				h.onDrop(evt)
			}
		}
	}
}

// Subscribe 订阅事件直到 ctx 取消；types 为空时接收全部类型
func (h *Hub) Subscribe(ctx context.Context, buffer int, types ...string) <-chan Event {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)

	h.mu.Lock()
	h.subs[ch] = typeFilter(types)
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.subs, ch)
		h.mu.Unlock()
		close(ch)
	}()

	return ch
}

// Handle 注册同步回调直到 ctx 取消。fn 在 Publish 的调用方协程里执行，
// 必须很快返回且不能再调用 Publish。
func (h *Hub) Handle(ctx context.Context, fn func(Event), types ...string) {
	hd := &handler{fn: fn, types: typeFilter(types)}

	h.mu.Lock()
	h.handlers[hd] = struct{}{}
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.handlers, hd)
		h.mu.Unlock()
	}()
}

// Subscribers 当前订阅者数量（通道与回调）
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs) + len(h.handlers)
}

// Dropped 因订阅者积压而丢弃的事件总数
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

func typeFilter(types []string) map[string]struct{} {
	if len(types) == 0 {
		return nil
	}
	filter := make(map[string]struct{}, len(types))
	for _, t := range types {
		filter[t] = struct{}{}
	}
	return filter
}

func accepts(filter map[string]struct{}, eventType string) bool {
	if len(filter) == 0 {
		return true
	}
	_, ok := filter[eventType]
	return ok
}

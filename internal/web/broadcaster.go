package web

import (
	"sync"
	"time"

	"pocketwatch/internal/dial"
)

// LiveFrame is one rendered dial state for the websocket stream.
type LiveFrame struct {
	Mode   string                `json:"mode"`
	Hands  dial.Hands            `json:"hands"`
	LEDs   [dial.LEDCount]string `json:"leds"`
	AtUTC  string                `json:"at_utc"`
	Number uint64                `json:"n"`
}

func NewLiveFrame(s dial.Snapshot, h dial.Hands, f dial.Frame) LiveFrame {
	lf := LiveFrame{Mode: s.Mode.String(), Hands: h}
	for i, c := range f {
		lf.LEDs[i] = hexColor(c)
	}
	return lf
}

func hexColor(c dial.Color) string {
	const digits = "0123456789abcdef"
	b := []byte{'#', 0, 0, 0, 0, 0, 0}
	for i := 0; i < 6; i++ {
		b[6-i] = digits[(uint32(c)>>(4*i))&0xF]
	}
	return string(b)
}

// HandsBroadcaster fans rendered frames out to any listeners. It keeps the
// most recent frame so new subscribers get an immediate sample. Slow
// subscribers drop frames rather than block the publisher.
type HandsBroadcaster struct {
	mu       sync.RWMutex
	subs     map[int]chan LiveFrame
	nextID   int
	last     LiveFrame
	haveLast bool
	count    uint64
}

func NewHandsBroadcaster() *HandsBroadcaster {
	return &HandsBroadcaster{
		subs: make(map[int]chan LiveFrame),
	}
}

func (b *HandsBroadcaster) Subscribe(buffer int) (int, <-chan LiveFrame) {
	if b == nil {
		return 0, nil
	}
	if buffer <= 0 {
		buffer = 2
	}
	ch := make(chan LiveFrame, buffer)
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	last := b.last
	have := b.haveLast
	b.mu.Unlock()
	if have {
		select {
		case ch <- last:
		default:
		}
	}
	return id, ch
}

func (b *HandsBroadcaster) Unsubscribe(id int) {
	if b == nil {
		return
	}
	b.mu.Lock()
	ch, ok := b.subs[id]
	if ok {
		delete(b.subs, id)
		close(ch)
	}
	b.mu.Unlock()
}

func (b *HandsBroadcaster) Subscribers() int {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Publish has the dial.Engine.OnHands signature.
func (b *HandsBroadcaster) Publish(s dial.Snapshot, h dial.Hands, f dial.Frame) {
	if b == nil {
		return
	}
	lf := NewLiveFrame(s, h, f)
	lf.AtUTC = time.Now().UTC().Format(time.RFC3339Nano)

	b.mu.Lock()
	b.count++
	lf.Number = b.count
	b.last = lf
	b.haveLast = true
	subs := make([]chan LiveFrame, 0, len(b.subs))
	for _, ch := range b.subs {
		subs = append(subs, ch)
	}
	// Sends happen under the lock so Unsubscribe cannot close a channel
	// mid-send; none of them block.
	for _, ch := range subs {
		select {
		case ch <- lf:
		default:
		}
	}
	b.mu.Unlock()
}

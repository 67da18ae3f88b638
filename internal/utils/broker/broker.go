package broker

import (
	"sync"
)

// Broker is a minimal in-process pub/sub used to push usage updates to
// connected websocket clients.
type Broker struct {
	subscribers map[string][]chan interface{}
	mu          sync.RWMutex
}

func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[string][]chan interface{}),
	}
}

// UsageTopic names the per-user usage update topic.
func UsageTopic(userID string) string {
	return "usage_update_" + userID
}

func (b *Broker) Subscribe(topic string) <-chan interface{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan interface{}, 1)
	b.subscribers[topic] = append(b.subscribers[topic], ch)
	return ch
}

func (b *Broker) Unsubscribe(topic string, ch <-chan interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if chans, ok := b.subscribers[topic]; ok {
		for i, c := range chans {
			if c == ch {
				b.subscribers[topic] = append(chans[:i], chans[i+1:]...)
				close(c)
				break
			}
		}
	}
}

// Publish delivers msg to every subscriber of topic. Slow subscribers drop
// the update rather than blocking the publisher; a fresher snapshot always
// follows.
func (b *Broker) Publish(topic string, msg interface{}) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subscribers[topic] {
		select {
		case ch <- msg:
		default:
		}
	}
}

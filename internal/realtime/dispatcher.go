package realtime

import (
	"context"
	"strings"
	"sync"
	"time"
)

const (
	EventActivityAdded = "activity-added"
	EventMemberStatus  = "member-status"
	EventNoteChanged   = "note-change"
	EventHeartbeat     = "heartbeat"

	// TopicTeam carries workspace-wide changes: activities and presence.
	TopicTeam = "team"

	customerTopicPrefix = "customer:"
	defaultBufferSize   = 16
)

// CustomerTopic returns the topic carrying note changes of one customer.
func CustomerTopic(customerEmail string) string {
	return customerTopicPrefix + strings.ToLower(strings.TrimSpace(customerEmail))
}

// Message is a change notification delivered to stream subscribers.
type Message struct {
	Topic         string    `json:"topic"`
	EventType     string    `json:"event"`
	CustomerEmail string    `json:"customerEmail,omitempty"`
	NoteIDs       []string  `json:"noteIds,omitempty"`
	NoteEvent     string    `json:"noteEvent,omitempty"`
	ActivityID    string    `json:"activityId,omitempty"`
	MemberID      string    `json:"memberId,omitempty"`
	Status        string    `json:"status,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
	Origin        string    `json:"origin,omitempty"`
}

// Broker publishes messages and hands out per-topic subscriptions.
type Broker interface {
	Publish(message Message)
	Subscribe(ctx context.Context, topic string) (<-chan Message, func())
}

// Dispatcher fans messages out to in-process subscribers. Slow subscribers
// miss messages instead of blocking publishers.
type Dispatcher struct {
	mu          sync.RWMutex
	subscribers map[string]map[int64]*subscriber
	nextID      int64
	bufferSize  int
}

type subscriber struct {
	id     int64
	stream chan Message
}

// NewDispatcher constructs an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		subscribers: make(map[string]map[int64]*subscriber),
		bufferSize:  defaultBufferSize,
	}
}

// Subscribe registers a stream for topic until ctx ends or cleanup runs.
func (d *Dispatcher) Subscribe(ctx context.Context, topic string) (<-chan Message, func()) {
	if topic == "" {
		ch := make(chan Message)
		close(ch)
		return ch, func() {}
	}
	sub := &subscriber{
		id:     d.nextSequence(),
		stream: make(chan Message, d.bufferSize),
	}
	d.register(topic, sub)
	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			d.unregister(topic, sub.id)
		})
	}
	go func() {
		<-ctx.Done()
		cleanup()
	}()
	return sub.stream, cleanup
}

// Publish delivers the message to every subscriber of its topic.
func (d *Dispatcher) Publish(message Message) {
	if message.Topic == "" || message.EventType == "" {
		return
	}
	d.mu.RLock()
	subscribers := d.subscribers[message.Topic]
	if len(subscribers) == 0 {
		d.mu.RUnlock()
		return
	}
	copies := make([]*subscriber, 0, len(subscribers))
	for _, sub := range subscribers {
		copies = append(copies, sub)
	}
	d.mu.RUnlock()
	for _, sub := range copies {
		select {
		case sub.stream <- message:
		default:
		}
	}
}

// SubscriberCount reports the open subscriptions across all topics.
func (d *Dispatcher) SubscriberCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	total := 0
	for _, subscribers := range d.subscribers {
		total += len(subscribers)
	}
	return total
}

func (d *Dispatcher) nextSequence() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	return d.nextID
}

func (d *Dispatcher) register(topic string, sub *subscriber) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.subscribers[topic]; !ok {
		d.subscribers[topic] = make(map[int64]*subscriber)
	}
	d.subscribers[topic][sub.id] = sub
}

func (d *Dispatcher) unregister(topic string, subscriberID int64) {
	d.mu.Lock()
	subscribers := d.subscribers[topic]
	if subscribers != nil {
		delete(subscribers, subscriberID)
		if len(subscribers) == 0 {
			delete(d.subscribers, topic)
		}
	}
	d.mu.Unlock()
}

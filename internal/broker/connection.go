package broker

import (
	"fmt"
	"log"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	dialAttempts = 5
	dialDelay    = 2 * time.Second
)

// ChannelSource hands out a live Channel. The AMQP Manager and the in-memory
// bus both implement it, so publishers and consumers are wired the same way
// in production and in tests.
type ChannelSource interface {
	GetChannel() (Channel, error)
}

// Manager owns the process-wide AMQP connection and its single channel.
// Connection establishment is lazy and single-flight: the first operation
// after a drop redials, concurrent callers wait on the same attempt instead
// of opening duplicate connections. There is no background reconnect loop;
// recovery is reactive.
type Manager struct {
	url string

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewManager creates a Manager for the given AMQP endpoint. No connection is
// opened until the first GetChannel call.
func NewManager(url string) *Manager {
	return &Manager{url: url}
}

// MustConnect creates a Manager and establishes the initial connection,
// retrying a few times to ride out broker startup. The service is useless
// without messaging, so an unreachable broker is fatal.
func MustConnect(url string) *Manager {
	m := NewManager(url)

	err := retryDial(dialAttempts, time.Sleep, func() error {
		_, err := m.GetChannel()
		return err
	})
	if err != nil {
		log.Fatalf("broker: unreachable at %s: %v", url, err)
	}
	return m
}

// retryDial runs dial up to attempts times, sleeping between attempts but
// not after the last failure.
func retryDial(attempts int, sleep func(time.Duration), dial func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = dial(); err == nil {
			return nil
		}
		log.Printf("broker: connect attempt %d/%d failed: %v", i+1, attempts, err)
		if i < attempts-1 {
			sleep(dialDelay)
		}
	}
	return err
}

// GetChannel returns the live channel, dialing the broker first if the cached
// connection is absent or has been closed.
func (m *Manager) GetChannel() (Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ch != nil && m.conn != nil && !m.conn.IsClosed() {
		return m.ch, nil
	}

	conn, err := amqp.Dial(m.url)
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	m.conn = conn
	m.ch = ch
	go m.watchClose(conn)

	log.Printf("broker: connected to %s", m.url)
	return ch, nil
}

// watchClose drops the cached connection when the broker closes it, so the
// next GetChannel redials.
func (m *Manager) watchClose(conn *amqp.Connection) {
	err := <-conn.NotifyClose(make(chan *amqp.Error, 1))
	if err != nil {
		log.Printf("broker: connection closed: %v", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn == conn {
		m.conn = nil
		m.ch = nil
	}
}

// Close shuts the channel and connection down. Registered as a shutdown hook
// by each service main.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ch != nil {
		m.ch.Close()
		m.ch = nil
	}
	if m.conn != nil {
		m.conn.Close()
		m.conn = nil
	}
}

package acquisition

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/gridiron-edge/internal/metrics"
	"github.com/yourusername/gridiron-edge/internal/models"
)

// Stream operations
const (
	OpSubscribe   = "subscribe"
	OpUnsubscribe = "unsubscribe"
	OpLine        = "line"
	OpHeartbeat   = "heartbeat"
)

// subscriberBuffer is the per-subscriber channel capacity. Lines that do not
// fit are dropped.
const subscriberBuffer = 256

// StreamMessage is the envelope exchanged with the odds stream
type StreamMessage struct {
	Op      string             `json:"op"`
	GameIDs []string           `json:"game_ids,omitempty"`
	Line    *models.MarketLine `json:"line,omitempty"`
}

// ReconnectConfig controls reconnection behavior
type ReconnectConfig struct {
	MaxRetries        int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
}

// DefaultReconnectConfig returns default reconnection configuration
func DefaultReconnectConfig() ReconnectConfig {
	return ReconnectConfig{
		MaxRetries:        10,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 1.5,
	}
}

// LineSource delivers live line observations for a game. The returned cancel
// func releases the subscription; the channel is closed when the source stops.
type LineSource interface {
	Lines(gameID string) (<-chan *models.MarketLine, func())
}

type subscriber struct {
	gameID string
	ch     chan *models.MarketLine
}

// StreamClient consumes a websocket odds stream and fans lines out to subscribers
type StreamClient struct {
	url             string
	apiKey          string
	reconnectConfig ReconnectConfig
	validate        *validator.Validate
	logger          *logrus.Logger

	mu              sync.RWMutex
	conn            *websocket.Conn
	isConnected     bool
	lastMessageTime time.Time
	subscribers     map[int]*subscriber
	nextID          int
	stopped         bool

	writeMu sync.Mutex
}

// NewStreamClient creates a new stream client
func NewStreamClient(streamURL, apiKey string, logger *logrus.Logger) *StreamClient {
	return &StreamClient{
		url:             streamURL,
		apiKey:          apiKey,
		reconnectConfig: DefaultReconnectConfig(),
		validate:        validator.New(),
		logger:          logger,
		subscribers:     make(map[int]*subscriber),
	}
}

// SetReconnectConfig replaces the reconnection policy
func (s *StreamClient) SetReconnectConfig(cfg ReconnectConfig) {
	s.reconnectConfig = cfg
}

// Connect establishes the websocket connection and re-sends subscriptions
func (s *StreamClient) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.isConnected {
		s.mu.Unlock()
		return fmt.Errorf("already connected")
	}
	s.mu.Unlock()

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	header := http.Header{}
	if s.apiKey != "" {
		header.Set("X-API-Key", s.apiKey)
	}

	s.logger.WithField("url", s.url).Info("Connecting to odds stream")
	conn, _, err := dialer.DialContext(ctx, s.url, header)
	if err != nil {
		return fmt.Errorf("failed to connect to stream: %w", err)
	}

	s.mu.Lock()
	s.conn = conn
	s.isConnected = true
	s.lastMessageTime = time.Now()
	games := s.gameIDsLocked()
	s.mu.Unlock()

	if len(games) > 0 {
		if err := s.sendMessage(StreamMessage{Op: OpSubscribe, GameIDs: games}); err != nil {
			return err
		}
	}
	return nil
}

// Run connects and reads until ctx is done or reconnection gives up. All
// subscriber channels are closed when Run returns.
func (s *StreamClient) Run(ctx context.Context) error {
	defer s.stop()

	backoff := s.reconnectConfig.InitialBackoff
	attempts := 0
	for {
		err := s.Connect(ctx)
		if err == nil {
			attempts = 0
			backoff = s.reconnectConfig.InitialBackoff

			done := make(chan struct{})
			go func() {
				select {
				case <-ctx.Done():
					s.Close()
				case <-done:
				}
			}()
			err = s.readMessages()
			close(done)
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		attempts++
		if attempts > s.reconnectConfig.MaxRetries {
			return fmt.Errorf("odds stream gave up after %d attempts: %w", attempts-1, err)
		}
		s.logger.WithError(err).WithFields(logrus.Fields{
			"attempt": attempts,
			"backoff": backoff,
		}).Warn("Odds stream disconnected, reconnecting")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff = time.Duration(float64(backoff) * s.reconnectConfig.BackoffMultiplier)
		if backoff > s.reconnectConfig.MaxBackoff {
			backoff = s.reconnectConfig.MaxBackoff
		}
	}
}

// readMessages reads until the connection fails
func (s *StreamClient) readMessages() error {
	defer s.Close()

	s.mu.RLock()
	conn := s.conn
	s.mu.RUnlock()
	if conn == nil {
		return fmt.Errorf("not connected")
	}

	for {
		var msg StreamMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if _, ok := err.(*json.UnmarshalTypeError); ok {
				metrics.RecordStreamMessage("invalid")
				continue
			}
			return err
		}

		s.mu.Lock()
		s.lastMessageTime = time.Now()
		s.mu.Unlock()

		if msg.Op != OpLine {
			continue
		}
		if msg.Line == nil || s.validate.Struct(msg.Line) != nil {
			metrics.RecordStreamMessage("invalid")
			continue
		}
		s.dispatch(msg.Line)
	}
}

func (s *StreamClient) dispatch(line *models.MarketLine) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sub := range s.subscribers {
		if sub.gameID != line.GameID {
			continue
		}
		select {
		case sub.ch <- line:
			metrics.RecordStreamMessage("accepted")
		default:
			metrics.RecordStreamMessage("dropped")
		}
	}
}

// Lines implements LineSource
func (s *StreamClient) Lines(gameID string) (<-chan *models.MarketLine, func()) {
	ch := make(chan *models.MarketLine, subscriberBuffer)

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := s.nextID
	s.nextID++
	first := !s.hasGameLocked(gameID)
	s.subscribers[id] = &subscriber{gameID: gameID, ch: ch}
	connected := s.isConnected
	s.mu.Unlock()

	if first && connected {
		if err := s.sendMessage(StreamMessage{Op: OpSubscribe, GameIDs: []string{gameID}}); err != nil {
			s.logger.WithError(err).WithField("game_id", gameID).Warn("Failed to subscribe")
		}
	}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			sub, ok := s.subscribers[id]
			if ok {
				delete(s.subscribers, id)
				close(sub.ch)
			}
			last := ok && !s.hasGameLocked(gameID)
			connected := s.isConnected
			s.mu.Unlock()

			if last && connected {
				_ = s.sendMessage(StreamMessage{Op: OpUnsubscribe, GameIDs: []string{gameID}})
			}
		})
	}
}

func (s *StreamClient) hasGameLocked(gameID string) bool {
	for _, sub := range s.subscribers {
		if sub.gameID == gameID {
			return true
		}
	}
	return false
}

func (s *StreamClient) gameIDsLocked() []string {
	seen := make(map[string]bool)
	var out []string
	for _, sub := range s.subscribers {
		if !seen[sub.gameID] {
			seen[sub.gameID] = true
			out = append(out, sub.gameID)
		}
	}
	return out
}

// sendMessage sends a JSON message to the stream
func (s *StreamClient) sendMessage(msg interface{}) error {
	s.mu.RLock()
	if !s.isConnected || s.conn == nil {
		s.mu.RUnlock()
		return fmt.Errorf("not connected")
	}
	conn := s.conn
	s.mu.RUnlock()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return conn.WriteJSON(msg)
}

// IsConnected returns whether the stream is connected
func (s *StreamClient) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isConnected
}

// LastMessageTime returns the time of the last received message
func (s *StreamClient) LastMessageTime() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastMessageTime
}

// Close closes the current connection. Subscriptions survive for the next Connect.
func (s *StreamClient) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil
	}
	s.isConnected = false
	err := s.conn.Close()
	s.conn = nil
	return err
}

// stop closes every subscriber channel
func (s *StreamClient) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for id, sub := range s.subscribers {
		close(sub.ch)
		delete(s.subscribers, id)
	}
}

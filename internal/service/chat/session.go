// Package chat provides the streaming chat session: it keeps one socket to the
// chat backend open, turns inbound events into transcript entries, and sends
// user messages.
package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"genai-chat-client/internal/models"
	"genai-chat-client/internal/observability/logging"
	"genai-chat-client/internal/observability/metrics"
	"genai-chat-client/internal/schema"
	"genai-chat-client/internal/service/transcript"
)

const (
	DefaultReconnectDelay = 5 * time.Second
	DefaultDialTimeout    = 10 * time.Second
	DefaultWriteTimeout   = 10 * time.Second
)

// EntryPublisher receives every completed transcript entry.
type EntryPublisher interface {
	PublishEntry(ctx context.Context, key string, event any) error
}

// Options configures a Session. Zero values fall back to defaults.
type Options struct {
	URL            string
	ReconnectDelay time.Duration
	DialTimeout    time.Duration
	WriteTimeout   time.Duration
	PingInterval   time.Duration // 0 disables keepalive pings

	Dialer    *websocket.Dialer
	Metrics   *metrics.Metrics
	Publisher EntryPublisher

	// Callbacks run on the goroutine that caused the change.
	OnChange  transcript.Observer
	OnStatus  func(Status)
	OnSources func(SourceContext)
}

// Session owns a single socket handle for its lifetime. The handle is replaced
// wholesale on reconnect and is never shared between attempts.
//
// Inbound frames are handled on one goroutine in arrival order. Send may be
// called from any goroutine.
type Session struct {
	id           string
	url          string
	dialTimeout  time.Duration
	writeTimeout time.Duration
	pingInterval time.Duration

	dialer     *websocket.Dialer
	retry      backoff.BackOff
	transcript *transcript.Transcript
	validator  *schema.Validator
	metrics    *metrics.Metrics
	publisher  EntryPublisher
	logger     zerolog.Logger

	onChange  transcript.Observer
	onStatus  func(Status)
	onSources func(SourceContext)

	mu      sync.RWMutex
	conn    *websocket.Conn
	status  Status
	sources SourceContext
	running bool
	runCtx  context.Context // nil outside Run

	// serializes frame dispatch with the send echo
	dispatchMu sync.Mutex

	// gorilla allows one concurrent writer
	writeMu sync.Mutex
}

// NewSession creates a session. It does not connect until Run is called.
func NewSession(opts Options) *Session {
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = DefaultReconnectDelay
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = DefaultDialTimeout
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = DefaultWriteTimeout
	}
	if opts.Dialer == nil {
		opts.Dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: opts.DialTimeout,
		}
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.DefaultMetrics
	}

	id := uuid.NewString()
	s := &Session{
		id:           id,
		url:          opts.URL,
		dialTimeout:  opts.DialTimeout,
		writeTimeout: opts.WriteTimeout,
		pingInterval: opts.PingInterval,
		dialer:       opts.Dialer,
		retry:        backoff.NewConstantBackOff(opts.ReconnectDelay),
		validator:    schema.New(),
		metrics:      opts.Metrics,
		publisher:    opts.Publisher,
		logger: logging.WithSession(id, opts.URL).With().
			Str("component", "chat").
			Logger(),
		onChange:  opts.OnChange,
		onStatus:  opts.OnStatus,
		onSources: opts.OnSources,
		status:    StatusConnecting,
	}
	s.transcript = transcript.New(s.observe)
	return s
}

// ID returns the session identifier used for logs and published events.
func (s *Session) ID() string {
	return s.id
}

// URL returns the socket URL the session dials.
func (s *Session) URL() string {
	return s.url
}

// Transcript returns the session's transcript.
func (s *Session) Transcript() *transcript.Transcript {
	return s.transcript
}

// Status returns the current connection status.
func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Sources returns a copy of the current source context.
func (s *Session) Sources() SourceContext {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sourcesLocked()
}

// ToggleSources opens or collapses the source panel and returns the new state.
func (s *Session) ToggleSources() SourceContext {
	s.mu.Lock()
	s.sources.Open = !s.sources.Open
	snapshot := s.sourcesLocked()
	s.mu.Unlock()
	return snapshot
}

// Run connects and keeps the session connected until ctx is cancelled.
//
// Every close, whatever the cause, schedules exactly one reconnect after the
// fixed delay; there is no growth and no retry cap. Cancelling ctx closes the
// live socket and cancels a pending reconnect. Run returns nil on cancellation.
func (s *Session) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrSessionRunning
	}
	s.running = true
	s.runCtx = ctx
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.runCtx = nil
		s.mu.Unlock()
	}()

	s.retry.Reset()
	for {
		s.setStatus(StatusConnecting)
		err := s.connectAndServe(ctx)
		if ctx.Err() != nil {
			s.setStatus(StatusDisconnected)
			s.logger.Info().Msg("Session stopped")
			return nil
		}
		if err != nil {
			s.setStatus(StatusError)
			s.logger.Error().Err(err).Msg("WebSocket error")
		}

		s.setStatus(StatusDisconnected)
		delay := s.retry.NextBackOff()
		s.logger.Info().Dur("retryIn", delay).Msg("WebSocket closed, retrying")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info().Msg("Session stopped, pending reconnect cancelled")
			return nil
		case <-timer.C:
		}
		s.metrics.RecordReconnect()
	}
}

// connectAndServe dials once and reads until the socket closes.
// A normal or going-away close returns nil.
func (s *Session) connectAndServe(ctx context.Context) error {
	s.metrics.RecordConnectAttempt()

	dialCtx, cancel := context.WithTimeout(ctx, s.dialTimeout)
	conn, _, err := s.dialer.DialContext(dialCtx, s.url, nil)
	cancel()
	if err != nil {
		s.metrics.RecordConnectFailure()
		return fmt.Errorf("dial %s: %w", s.url, err)
	}

	connectedAt := time.Now()
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	s.setStatus(StatusConnected)
	s.metrics.RecordConnected()
	s.logger.Info().Msg("WebSocket connected")

	stop := context.AfterFunc(ctx, func() {
		s.closeConn(conn, websocket.CloseNormalClosure, "client shutdown")
	})

	done := make(chan struct{})
	var wg sync.WaitGroup
	if s.pingInterval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.keepalive(conn, done)
		}()
	}

	err = s.readLoop(conn)

	close(done)
	stop()
	wg.Wait()

	s.mu.Lock()
	if s.conn == conn {
		s.conn = nil
	}
	s.mu.Unlock()
	_ = conn.Close()
	s.metrics.RecordDisconnected(time.Since(connectedAt).Seconds())

	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return nil
	}
	return err
}

func (s *Session) readLoop(conn *websocket.Conn) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		s.HandleFrame(data)
	}
}

func (s *Session) keepalive(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.writeTimeout)); err != nil {
				s.logger.Debug().Err(err).Msg("Keepalive ping failed")
				return
			}
		}
	}
}

func (s *Session) closeConn(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(s.writeTimeout)); err != nil {
		s.logger.Debug().Err(err).Msg("Close frame not sent")
	}
	_ = conn.Close()
}

// HandleFrame parses one inbound frame and applies it to the session state.
// Malformed, invalid and unknown frames are logged and dropped without
// touching the transcript. Frames must be handled from a single goroutine.
func (s *Session) HandleFrame(data []byte) {
	var ev models.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		s.logger.Warn().Err(err).Str("frame", truncate(string(data), 200)).Msg("Malformed frame dropped")
		s.metrics.RecordFrameDropped("malformed")
		return
	}
	if err := s.validator.Validate(ev); err != nil {
		s.logger.Warn().Err(err).Str("type", ev.Type).Msg("Invalid frame dropped")
		s.metrics.RecordFrameDropped("invalid")
		return
	}

	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()
	s.dispatch(ev)
}

func (s *Session) dispatch(ev models.Event) {
	switch ev.Type {
	case models.EventContentBlockStart:
		s.transcript.StartBlock(ev.Index)

	case models.EventContentBlockDelta:
		if ev.Delta.Type != models.DeltaTypeText {
			s.logger.Debug().Str("deltaType", ev.Delta.Type).Msg("Non-text delta ignored")
			break
		}
		if s.transcript.AppendDelta(ev.Index, ev.Delta.Text) {
			s.logger.Warn().Int("index", ev.Index).Msg("Delta without content_block_start, entry synthesized")
		}
		s.metrics.RecordDelta(len(ev.Delta.Text))

	case models.EventContentBlockStop:
		// end-of-block marker; the stream stays bound until message_stop

	case models.EventMessageStop:
		s.transcript.EndMessage()
		if ev.Metrics == nil {
			s.logger.Debug().Msg("Message stop without invocation metrics")
			break
		}
		s.transcript.AppendVerbose(ev.Metrics.Format())

	case models.EventErrorMessage, models.EventFilterInfo, models.EventFullResponse:
		text, _ := ev.TextString()
		s.transcript.AppendAI(text)

	case models.EventVerboseInfo:
		text, _ := ev.TextString()
		s.transcript.AppendVerbose(text)

	case models.EventSourceText:
		texts, _ := ev.TextList()
		s.mu.Lock()
		s.sources = SourceContext{Texts: normalizeSources(texts), Open: false}
		snapshot := s.sourcesLocked()
		s.mu.Unlock()
		s.logger.Debug().Int("count", len(texts)).Msg("Source text received")
		if s.onSources != nil {
			s.onSources(snapshot)
		}

	default:
		s.logger.Info().Str("type", ev.Type).Msg("Unhandled event type dropped")
		s.metrics.RecordFrameDropped("unknown_type")
		return
	}
	s.metrics.RecordFrame(ev.Type)
}

// Send transmits text as a chat message and echoes it into the transcript.
// Blank input returns ErrBlankMessage. Without an open socket the message is
// dropped and ErrNotConnected is returned; nothing is queued or retried. The
// echo is only appended after the write succeeds, and before any frame read
// after the write is applied.
func (s *Session) Send(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrBlankMessage
	}

	s.mu.RLock()
	conn := s.conn
	status := s.status
	s.mu.RUnlock()

	if conn == nil || !status.IsOpen() {
		s.logger.Error().Str("status", status.String()).Msg("WebSocket is not open, message dropped")
		s.metrics.RecordSendError("not_connected")
		return ErrNotConnected
	}

	payload, err := json.Marshal(models.ChatRequest{Message: text})
	if err != nil {
		s.metrics.RecordSendError("encode")
		return fmt.Errorf("encode message: %w", err)
	}

	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	s.logger.Debug().Str("message", truncate(text, 200)).Msg("Sending message")
	if err := s.write(conn, payload); err != nil {
		s.logger.Error().Err(err).Msg("Failed to send message")
		s.metrics.RecordSendError("write")
		return fmt.Errorf("send message: %w", err)
	}

	s.metrics.RecordSend()
	s.transcript.AppendUser(text)
	return nil
}

func (s *Session) write(conn *websocket.Conn, payload []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, payload)
}

func (s *Session) setStatus(st Status) {
	s.mu.Lock()
	prev := s.status
	s.status = st
	s.mu.Unlock()

	if prev != st {
		s.logger.Debug().Str("from", prev.String()).Str("to", st.String()).Msg("Connection status changed")
	}
	if s.onStatus != nil {
		s.onStatus(st)
	}
}

func (s *Session) sourcesLocked() SourceContext {
	texts := make([]string, len(s.sources.Texts))
	copy(texts, s.sources.Texts)
	return SourceContext{Texts: texts, Open: s.sources.Open}
}

// observe fans transcript changes out to metrics, the publisher and the caller.
func (s *Session) observe(c transcript.Change) {
	switch c.Kind {
	case transcript.Added:
		s.metrics.RecordEntry(string(c.Entry.From))
	case transcript.Completed:
		s.publishEntry(c)
	}
	if s.onChange != nil {
		s.onChange(c)
	}
}

func (s *Session) publishEntry(c transcript.Change) {
	if s.publisher == nil {
		return
	}
	ev := models.TranscriptEntryEvent{
		EventType: models.EventTypeTranscriptEntry,
		SessionID: s.id,
		Sequence:  c.Index,
		From:      string(c.Entry.From),
		Verbose:   c.Entry.Verbose,
		Text:      c.Entry.Text,
		Timestamp: time.Now().UnixMilli(),
	}
	if err := s.publisher.PublishEntry(s.publishContext(), s.id, ev); err != nil {
		s.logger.Error().Err(err).Int("sequence", c.Index).Msg("Failed to publish transcript entry")
	}
}

// publishContext is cancelled with Run, so a stuck sink cannot outlive the session.
func (s *Session) publishContext() context.Context {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.runCtx != nil {
		return s.runCtx
	}
	return context.Background()
}

// truncate cuts s to at most maxLen bytes without splitting a rune.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

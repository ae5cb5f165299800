// Package chat runs the per-session conversation state machine: welcome,
// streamed assistant replies, inactivity nudges, forced termination and
// WhatsApp hand-off.
package chat

import (
	"context"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"belgaum-backend/internal/models"
	"belgaum-backend/internal/provider"
	"belgaum-backend/internal/store"
)

type State int

const (
	StateIdle State = iota
	StateWelcoming
	StateAwaitingInput
	StateStreaming
	StateNudging
	StateTerminating
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWelcoming:
		return "welcoming"
	case StateAwaitingInput:
		return "awaiting_input"
	case StateStreaming:
		return "streaming"
	case StateNudging:
		return "nudging"
	case StateTerminating:
		return "terminating"
	}
	return "unknown"
}

// Provider produces assistant replies and hand-off summaries.
type Provider interface {
	StreamReply(ctx context.Context, req provider.Request, emit func(string)) error
	Summarize(ctx context.Context, req provider.Request) (string, error)
}

// AuditSink records completed request/response pairs. Implementations should
// return quickly; errors are logged and dropped.
type AuditSink interface {
	Record(ctx context.Context, sessionID, userRequest, botResponse string) error
}

// Renderer receives events for the widget. Render is called with the
// orchestrator lock held and must not call back into the orchestrator.
type Renderer interface {
	Render(ev models.ChatEvent)
}

// Orchestrator owns one session's transcript and timers. All state changes
// happen under mu. Stream and timer callbacks carry the generation they were
// created under and do nothing once it has moved on.
type Orchestrator struct {
	settings Settings
	provider Provider
	audit    AuditSink
	clock    Clock
	logger   *zap.Logger
	renderer Renderer

	mu              sync.Mutex
	state           State
	gen             uint64
	session         models.Session
	transcript      []models.ChatMessage
	openIdx         int
	store           store.MessageStore
	degraded        bool
	timer           Timer
	cancelStream    context.CancelFunc
	lastUserRequest string
	lastTimestamp   int64
	closed          bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Open moves an idle session to AwaitingInput: expired history is evicted,
// the rest is loaded and the welcome message is added to an empty transcript.
func (o *Orchestrator) Open(ctx context.Context) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed || o.state != StateIdle {
		return
	}
	o.setState(StateWelcoming)

	if n, err := o.store.EvictOlderThan(ctx, o.settings.HistoryRetention); err != nil {
		o.degrade("evict", err)
	} else if n > 0 {
		o.logger.Debug("evicted expired messages", zap.Int64("count", n))
	}

	msgs, err := o.store.GetAll(ctx)
	if err != nil {
		o.degrade("load", err)
		msgs, _ = o.store.GetAll(ctx)
	}
	o.transcript = msgs
	o.openIdx = -1
	if n := len(msgs); n > 0 && msgs[n-1].Timestamp > o.lastTimestamp {
		o.lastTimestamp = msgs[n-1].Timestamp
	}

	if len(o.transcript) == 0 {
		welcome := o.persist(ctx, o.newMessage(models.RoleAssistant, o.settings.WelcomeMessage))
		o.transcript = append(o.transcript, welcome)
	}

	o.renderTranscript()
	o.enterAwaitingInput()
}

// Send submits user input. It reports false, leaving the session untouched,
// when the input is blank or too long or a reply is still streaming.
func (o *Orchestrator) Send(ctx context.Context, input string) bool {
	text := strings.TrimSpace(input)
	if text == "" || utf8.RuneCountInString(input) > o.settings.MaxInputLength {
		return false
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed || o.state != StateAwaitingInput {
		return false
	}

	o.stopTimer()
	o.session.NudgeCount = 0
	o.session.LastUserMessageAt = o.clock.Now()

	msg := o.persist(ctx, o.newMessage(models.RoleUser, text))
	o.transcript = append(o.transcript, msg)
	o.renderMessage(msg)
	o.lastUserRequest = text

	o.startStream()
	return true
}

func (o *Orchestrator) startStream() {
	o.gen++
	gen := o.gen
	o.openIdx = -1
	o.setState(StateStreaming)

	req := provider.Request{
		Transcript:   o.snapshot(),
		SystemPrompt: o.settings.SystemPrompt,
		Temperature:  o.settings.Temperature,
		MaxTokens:    o.settings.MaxResponseTokens,
	}

	streamCtx, cancel := context.WithCancel(o.ctx)
	o.cancelStream = cancel

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer cancel()

		if err := o.provider.StreamReply(streamCtx, req, func(frag string) {
			o.applyFragment(gen, frag)
		}); err != nil && streamCtx.Err() == nil {
			o.logger.Debug("stream ended with error", zap.Error(err))
		}
		o.finishStream(gen)
	}()
}

func (o *Orchestrator) applyFragment(gen uint64, frag string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if gen != o.gen || o.state != StateStreaming || frag == "" {
		return
	}

	if o.openIdx < 0 {
		o.transcript = append(o.transcript, o.newMessage(models.RoleAssistant, ""))
		o.openIdx = len(o.transcript) - 1
	}
	o.transcript[o.openIdx].Content += frag

	o.emit(models.ChatEvent{Type: models.EventFragment, Fragment: frag})
}

func (o *Orchestrator) finishStream(gen uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if gen != o.gen || o.state != StateStreaming {
		return
	}
	o.cancelStream = nil

	if o.openIdx >= 0 {
		idx := o.openIdx
		o.openIdx = -1

		stored := o.persist(o.ctx, o.transcript[idx])
		o.transcript[idx] = stored
		o.renderMessage(stored)
		o.notifyAudit(o.lastUserRequest, stored.Content)
	}

	o.enterAwaitingInput()
}

func (o *Orchestrator) notifyAudit(userRequest, botResponse string) {
	if o.audit == nil {
		return
	}
	sessionID := o.session.ID

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(o.ctx), o.settings.AuditTimeout)
		defer cancel()

		if err := o.audit.Record(ctx, sessionID, userRequest, botResponse); err != nil {
			o.logger.Warn("audit record failed", zap.String("session_id", sessionID), zap.Error(err))
		}
	}()
}

func (o *Orchestrator) enterAwaitingInput() {
	o.gen++
	o.setState(StateAwaitingInput)
	o.scheduleNudge()
}

func (o *Orchestrator) scheduleNudge() {
	gen := o.gen
	o.stopTimer()
	o.timer = o.clock.AfterFunc(o.settings.InactivityNudge, func() {
		o.onInactivity(gen)
	})
}

func (o *Orchestrator) onInactivity(gen uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if gen != o.gen || o.state != StateAwaitingInput {
		return
	}
	o.timer = nil

	if o.userMessageCount() < o.settings.MinUserMessagesForNudge {
		return
	}

	o.setState(StateNudging)
	if o.session.NudgeCount >= o.settings.MaxNudges-1 {
		o.terminate()
		return
	}

	nudge := o.persist(o.ctx, o.newMessage(models.RoleAssistant, o.settings.NudgeMessage))
	o.transcript = append(o.transcript, nudge)
	o.renderMessage(nudge)
	o.session.NudgeCount++

	o.enterAwaitingInput()
}

// terminate shows the disconnect notice, which is never persisted, and clears
// the session once the grace period ends.
func (o *Orchestrator) terminate() {
	o.gen++
	gen := o.gen
	o.setState(StateTerminating)

	notice := o.newMessage(models.RoleAssistant, o.settings.DisconnectMessage)
	o.transcript = append(o.transcript, notice)
	o.renderMessage(notice)

	o.stopTimer()
	o.timer = o.clock.AfterFunc(o.settings.DisconnectGrace, func() {
		o.onGraceElapsed(gen)
	})
}

func (o *Orchestrator) onGraceElapsed(gen uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if gen != o.gen || o.state != StateTerminating {
		return
	}
	o.timer = nil
	o.clearSession(o.ctx)
}

func (o *Orchestrator) clearSession(ctx context.Context) {
	o.transcript = nil
	o.openIdx = -1
	o.lastUserRequest = ""

	if err := o.store.Clear(ctx); err != nil {
		o.degrade("clear", err)
	}

	previous := o.session.ID
	o.session = models.Session{
		ID:        uuid.NewString(),
		ClientID:  o.session.ClientID,
		CreatedAt: o.clock.Now(),
	}
	o.logger.Info("chat session reset",
		zap.String("previous_session_id", previous),
		zap.String("session_id", o.session.ID),
	)

	o.gen++
	o.setState(StateIdle)
	o.emit(models.ChatEvent{Type: models.EventClosed})
}

// Close handles the widget being closed. Pending timers and any in-flight
// stream are cancelled; an interrupted termination clears immediately.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closeLocked()
}

func (o *Orchestrator) closeLocked() {
	if o.state == StateIdle {
		return
	}
	wasTerminating := o.state == StateTerminating

	o.stopTimer()
	if o.cancelStream != nil {
		o.cancelStream()
		o.cancelStream = nil
	}
	if o.openIdx >= 0 {
		o.transcript = o.transcript[:o.openIdx]
		o.openIdx = -1
	}

	if wasTerminating {
		o.clearSession(context.WithoutCancel(o.ctx))
		return
	}

	o.gen++
	o.setState(StateIdle)
}

// Shutdown closes the session for good and waits for background work.
func (o *Orchestrator) Shutdown() {
	o.mu.Lock()
	o.closeLocked()
	o.closed = true
	o.mu.Unlock()

	o.cancel()
	o.wg.Wait()
}

// Wait blocks until in-flight streams, audits and hand-offs have finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// HandOff summarizes the conversation and builds the WhatsApp links. A failed
// summarization falls back to DefaultSummary.
func (o *Orchestrator) HandOff(ctx context.Context) models.HandOff {
	o.mu.Lock()
	transcript := o.snapshot()
	o.mu.Unlock()

	raw, err := o.provider.Summarize(ctx, provider.Request{
		Transcript:   transcript,
		SystemPrompt: o.settings.SummarizationPrompt,
		Temperature:  o.settings.Temperature,
		MaxTokens:    o.settings.SummaryMaxTokens,
	})
	if err != nil {
		o.logger.Warn("hand-off summarization failed", zap.Error(err))
		raw = ""
	}

	summary := SanitizeSummary(raw)
	mobile, desktop := HandOffLinks(o.settings.HandOffPhone, summary)
	return models.HandOff{Summary: summary, MobileURL: mobile, DesktopURL: desktop}
}

// RequestHandOff runs HandOff in the background and renders the result.
func (o *Orchestrator) RequestHandOff() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.wg.Add(1)
	o.mu.Unlock()

	go func() {
		defer o.wg.Done()

		ctx, cancel := context.WithTimeout(o.ctx, o.settings.HandOffTimeout)
		defer cancel()
		h := o.HandOff(ctx)

		o.mu.Lock()
		defer o.mu.Unlock()
		if !o.closed {
			o.emit(models.ChatEvent{Type: models.EventHandOff, HandOff: &h})
		}
	}()
}

func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) Session() models.Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.session
}

// Transcript returns a copy of the in-memory transcript.
func (o *Orchestrator) Transcript() []models.ChatMessage {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshot()
}

func (o *Orchestrator) snapshot() []models.ChatMessage {
	out := make([]models.ChatMessage, len(o.transcript))
	copy(out, o.transcript)
	return out
}

// newMessage stamps a message so timestamps never decrease within the transcript.
func (o *Orchestrator) newMessage(role models.Role, content string) models.ChatMessage {
	ts := o.clock.Now().UnixMilli()
	if ts < o.lastTimestamp {
		ts = o.lastTimestamp
	}
	o.lastTimestamp = ts
	return models.ChatMessage{Role: role, Content: content, Timestamp: ts}
}

func (o *Orchestrator) persist(ctx context.Context, msg models.ChatMessage) models.ChatMessage {
	stored, err := o.store.Save(ctx, msg)
	if err == nil {
		return stored
	}
	o.degrade("save", err)
	stored, _ = o.store.Save(ctx, msg)
	return stored
}

// degrade swaps the store for an in-memory one seeded with the transcript.
// The session carries on without durable history.
func (o *Orchestrator) degrade(op string, err error) {
	o.logger.Warn("message store failed, continuing in memory",
		zap.String("op", op),
		zap.String("session_id", o.session.ID),
		zap.Error(err),
	)
	if o.degraded {
		return
	}
	o.degraded = true

	mem := store.NewMemoryStore(store.WithClock(o.clock.Now))
	for _, m := range o.transcript {
		if m.ID != 0 {
			mem.Save(context.Background(), m)
		}
	}
	o.store = mem
}

func (o *Orchestrator) userMessageCount() int {
	n := 0
	for _, m := range o.transcript {
		if m.Role == models.RoleUser {
			n++
		}
	}
	return n
}

func (o *Orchestrator) stopTimer() {
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
}

func (o *Orchestrator) setState(s State) {
	o.state = s
	o.emit(models.ChatEvent{Type: models.EventState, State: s.String()})
}

func (o *Orchestrator) renderMessage(msg models.ChatMessage) {
	content, offer := stripMarker(msg.Content)
	msg.Content = content
	o.emit(models.ChatEvent{Type: models.EventMessage, Message: &msg, OfferHandOff: offer})
}

func (o *Orchestrator) renderTranscript() {
	msgs := make([]models.ChatMessage, len(o.transcript))
	offer := false
	for i, m := range o.transcript {
		m.Content, offer = stripMarker(m.Content)
		msgs[i] = m
	}
	o.emit(models.ChatEvent{Type: models.EventTranscript, Messages: msgs, OfferHandOff: offer})
}

func (o *Orchestrator) emit(ev models.ChatEvent) {
	if o.renderer == nil {
		return
	}
	ev.SessionID = o.session.ID
	o.renderer.Render(ev)
}

// Factory builds orchestrators sharing one policy, provider and audit sink.
type Factory struct {
	settings Settings
	provider Provider
	audit    AuditSink
	opener   store.Opener
	clock    Clock
	logger   *zap.Logger
}

type FactoryOption func(*Factory)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c Clock) FactoryOption {
	return func(f *Factory) {
		f.clock = c
	}
}

func NewFactory(settings Settings, p Provider, audit AuditSink, opener store.Opener, logger *zap.Logger, opts ...FactoryOption) *Factory {
	f := &Factory{
		settings: settings,
		provider: p,
		audit:    audit,
		opener:   opener,
		clock:    realClock{},
		logger:   logger,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// New returns an idle orchestrator for session. Its message store is scoped
// to the session's client id.
func (f *Factory) New(session models.Session, r Renderer) *Orchestrator {
	ctx, cancel := context.WithCancel(context.Background())
	if session.CreatedAt.IsZero() {
		session.CreatedAt = f.clock.Now()
	}

	o := &Orchestrator{
		settings: f.settings,
		provider: f.provider,
		audit:    f.audit,
		clock:    f.clock,
		logger:   f.logger.With(zap.String("client_id", session.ClientID)),
		renderer: r,
		state:    StateIdle,
		session:  session,
		openIdx:  -1,
		ctx:      ctx,
		cancel:   cancel,
	}

	ms, err := f.opener.Open(session.ClientID)
	if err != nil {
		o.store = store.NewMemoryStore(store.WithClock(f.clock.Now))
		o.degraded = true
		o.logger.Warn("message store unavailable, continuing in memory", zap.Error(err))
	} else {
		o.store = ms
	}
	return o
}

// Package engine implements the triage dialogue controller: the per-session
// state machine, the session resolver, and the turn processing loop that ties
// context assembly, model streaming, and response framing together.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oncoline/chemochat-go/internal/framer"
	"github.com/oncoline/chemochat-go/internal/metrics"
	"github.com/oncoline/chemochat-go/internal/models"
	"github.com/oncoline/chemochat-go/internal/store"
)

// ContextAssembler builds the (system, user) prompt pair for a model turn.
type ContextAssembler interface {
	BuildPrompt(ctx context.Context, history []models.Message, latestInput string, symptoms []string) (systemPrompt, userPrompt string)
}

// Generator produces a model response as an ordered stream of fragments.
type Generator interface {
	Stream(ctx context.Context, systemPrompt, userPrompt string, fn func(ctx context.Context, chunk []byte) error) error
}

// Engine is the conversation engine. One Engine serves all sessions; turns
// for the same session are serialized, turns for different sessions run
// independently.
type Engine struct {
	store     store.Store
	assembler ContextAssembler
	generator Generator
	logger    *slog.Logger
	stats     *metrics.Collector

	defaultTZ string
	now       func() time.Time

	mu    sync.Mutex
	locks map[uuid.UUID]*sessionLock
}

// sessionLock is a per-session mutex with a waiter count so idle entries can
// be pruned from the lock map.
type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithDefaultTimezone sets the fallback timezone for session resolution.
func WithDefaultTimezone(tz string) Option {
	return func(e *Engine) { e.defaultTZ = tz }
}

// New creates an engine over the given collaborators.
func New(st store.Store, assembler ContextAssembler, generator Generator, logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		store:     st,
		assembler: assembler,
		generator: generator,
		logger:    logger,
		stats:     metrics.NewCollector(),
		defaultTZ: "America/Los_Angeles",
		now:       time.Now,
		locks:     make(map[uuid.UUID]*sessionLock),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Stats returns the engine's runtime statistics collector.
func (e *Engine) Stats() *metrics.Collector {
	return e.stats
}

// lockSession serializes turns per session. A second inbound message for the
// same session blocks until the prior turn has committed or failed. The map
// entry lives only while a turn holds or waits on it.
func (e *Engine) lockSession(id uuid.UUID) func() {
	e.mu.Lock()
	l, ok := e.locks[id]
	if !ok {
		l = &sessionLock{}
		e.locks[id] = l
	}
	l.refs++
	e.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		e.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(e.locks, id)
		}
		e.mu.Unlock()
	}
}

// Inbound is one message received from the client.
type Inbound struct {
	MessageType    string         `json:"message_type"`
	Content        string         `json:"content"`
	StructuredData map[string]any `json:"structured_data,omitempty"`
}

// HandleInbound processes one turn for the session and returns the ordered
// outbound events. All session mutations are committed at the end of the
// turn: a canceled or failed turn leaves the session exactly as it was.
func (e *Engine) HandleInbound(ctx context.Context, sessionID uuid.UUID, in Inbound) ([]Event, error) {
	unlock := e.lockSession(sessionID)
	defer unlock()

	start := time.Now()
	defer func() { e.stats.RecordTiming(metrics.OpTurn, time.Since(start)) }()

	sess, err := e.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	userMsg := &models.Message{
		SessionID:      sessionID,
		Sender:         models.SenderUser,
		Type:           models.NormalizeMessageType(in.MessageType),
		Content:        in.Content,
		StructuredData: in.StructuredData,
		CreatedAt:      e.now().UTC(),
	}

	if sess.State.Terminal() {
		return e.handleEnded(ctx, userMsg)
	}

	switch sess.State {
	case models.StateChemoCheckSent:
		return e.handleChemoCheck(ctx, sess, userMsg)
	case models.StateSymptomSelectionSent, models.StateFollowupQuestions:
		return e.handleModelTurn(ctx, sess, userMsg, in)
	default:
		return nil, fmt.Errorf("session %s in unknown state %q", sessionID, sess.State)
	}
}

// handleEnded answers messages arriving after the conversation reached a
// terminal state. The exchange is logged but the session is not touched.
func (e *Engine) handleEnded(ctx context.Context, userMsg *models.Message) ([]Event, error) {
	reply := &models.Message{
		SessionID: userMsg.SessionID,
		Sender:    models.SenderAssistant,
		Type:      models.TypeText,
		Content:   endedMessage,
		CreatedAt: e.now().UTC(),
	}
	if err := e.appendAll(ctx, userMsg, reply); err != nil {
		return nil, err
	}
	return []Event{UserMessageSaved{Message: *userMsg}, FullMessage{Message: *reply}}, nil
}

// handleChemoCheck resolves the opening yes/no question without a model call.
func (e *Engine) handleChemoCheck(ctx context.Context, sess *models.Session, userMsg *models.Message) ([]Event, error) {
	next := sess.Clone()
	reply := &models.Message{
		SessionID: sess.ID,
		Sender:    models.SenderAssistant,
		CreatedAt: e.now().UTC(),
	}

	if isDenial(userMsg.Content) {
		next.State = models.StateCompleted
		reply.Type = models.TypeText
		reply.Content = declinedClosing
	} else {
		next.State = models.StateSymptomSelectionSent
		reply.Type = models.TypeMultiSelect
		reply.Content = symptomPrompt
		reply.StructuredData = optionsData(SymptomVocabulary)
	}

	if err := e.commit(ctx, next, userMsg, reply); err != nil {
		return nil, err
	}
	e.logger.Info("chemo check resolved", "session", sess.ID, "state", next.State)
	return []Event{UserMessageSaved{Message: *userMsg}, FullMessage{Message: *reply}}, nil
}

// handleModelTurn runs the retrieval-augmented model sub-protocol shared by
// the symptom-selection transition and the follow-up loop.
func (e *Engine) handleModelTurn(ctx context.Context, sess *models.Session, userMsg *models.Message, in Inbound) ([]Event, error) {
	next := sess.Clone()

	if sess.State == models.StateSymptomSelectionSent {
		added := next.AddSymptoms(strings.Split(in.Content, ","))
		next.State = models.StateFollowupQuestions
		e.logger.Info("symptoms selected", "session", sess.ID, "added", added, "total", len(next.SymptomList))
	}

	if userMsg.Type == models.TypeFeelingResponse {
		feeling := models.Feeling(strings.TrimSpace(in.Content))
		if !feeling.Valid() {
			e.logger.Warn("unknown feeling value", "session", sess.ID, "value", in.Content)
		}
		next.OverallFeeling = feeling
	}

	history, err := e.store.ListMessages(ctx, sess.ID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	history = append(history, *userMsg)

	systemPrompt, userPrompt := e.assembler.BuildPrompt(ctx, history, in.Content, next.SymptomList)

	fr := framer.New()
	streamStart := time.Now()
	streamErr := e.generator.Stream(ctx, systemPrompt, userPrompt, func(_ context.Context, chunk []byte) error {
		fr.Write(string(chunk))
		return nil
	})
	e.stats.RecordTiming(metrics.OpLLMStream, time.Since(streamStart))

	// A canceled turn commits nothing: no messages, no state change.
	if ctx.Err() != nil {
		return nil, fmt.Errorf("turn aborted: %w", ctx.Err())
	}

	var env *framer.Envelope
	var raw string
	if streamErr != nil {
		// An abnormally closed stream is handled like unparseable output.
		e.logger.Warn("model stream failed", "session", sess.ID, "error", streamErr)
	} else {
		var parseErr error
		env, raw, parseErr = fr.Finish()
		if parseErr != nil {
			e.logger.Warn("could not parse model envelope", "session", sess.ID,
				"error", parseErr, "output", truncate(raw, 200))
		}
	}

	if env == nil {
		return e.handleParseFailure(ctx, userMsg)
	}

	reply := e.applyEnvelope(next, env)
	reply.SessionID = sess.ID
	reply.CreatedAt = e.now().UTC()

	if err := e.commit(ctx, next, userMsg, reply); err != nil {
		return nil, err
	}
	e.logger.Info("turn committed", "session", sess.ID,
		"response_type", env.ResponseType, "state", next.State)
	return []Event{UserMessageSaved{Message: *userMsg}, FullMessage{Message: *reply}}, nil
}

// handleParseFailure persists the user message and a fixed apology; the
// session keeps its prior state so the user can retry the turn.
func (e *Engine) handleParseFailure(ctx context.Context, userMsg *models.Message) ([]Event, error) {
	e.stats.RecordParseFailure()
	apology := &models.Message{
		SessionID: userMsg.SessionID,
		Sender:    models.SenderAssistant,
		Type:      models.TypeText,
		Content:   apologyMessage,
		CreatedAt: e.now().UTC(),
	}
	if err := e.appendAll(ctx, userMsg, apology); err != nil {
		return nil, err
	}
	return []Event{
		UserMessageSaved{Message: *userMsg},
		MessageChunk{MessageID: -1, Content: apologyMessage},
		MessageEnd{MessageID: -1},
	}, nil
}

// applyEnvelope folds the model's structured output into the pending session
// copy and shapes the assistant reply.
func (e *Engine) applyEnvelope(next *models.Session, env *framer.Envelope) *models.Message {
	content := env.Content
	if content == "" {
		content = "I'm not sure how to respond."
	}

	if len(env.NewSymptoms) > 0 {
		next.AddSymptoms(env.NewSymptoms)
	}

	msgType := models.MessageType(env.ResponseType)
	switch env.ResponseType {
	case framer.ResponseSummary:
		content = fmt.Sprintf(summaryMessageFormat, env.SummaryData.FormatSummaryBullets())
		e.copySummary(next, env.SummaryData)
		next.State = models.StateCompleted
		msgType = models.TypeText
	case framer.ResponseEnd:
		e.copySummary(next, env.SummaryData)
		next.State = models.StateEmergency
		msgType = models.TypeText
	default:
		if !msgType.Known() {
			e.logger.Warn("unknown response type, storing as text", "response_type", env.ResponseType)
			msgType = models.TypeText
		}
	}

	return &models.Message{
		Sender:         models.SenderAssistant,
		Type:           msgType,
		Content:        content,
		StructuredData: optionsData(env.Options),
	}
}

// copySummary overwrites session summary fields with whatever the envelope
// carries; absent fields keep their prior values.
func (e *Engine) copySummary(next *models.Session, sd *framer.SummaryData) {
	if sd == nil {
		return
	}
	if len(sd.SymptomList) > 0 {
		next.SymptomList = append([]string(nil), sd.SymptomList...)
	}
	if len(sd.SeverityList) > 0 {
		next.SeverityList = make(map[string]int, len(sd.SeverityList))
		for symptom, severity := range sd.SeverityList {
			if severity < 0 || severity > 10 {
				e.logger.Warn("severity outside 0-10 range", "symptom", symptom, "severity", severity)
			}
			next.SeverityList[symptom] = severity
		}
	}
	if len(sd.MedicationList) > 0 {
		next.MedicationList = append([]models.Medication(nil), sd.MedicationList...)
	}
	if sd.LongerSummary != "" {
		next.LongerSummary = sd.LongerSummary
	}
	if len(sd.BulletedSummary) > 0 {
		next.BulletedSummary = strings.Join(sd.BulletedSummary, "\n")
	}
	if sd.OverallFeeling != "" {
		feeling := models.Feeling(sd.OverallFeeling)
		if !feeling.Valid() {
			e.logger.Warn("unknown feeling in summary", "value", sd.OverallFeeling)
		}
		next.OverallFeeling = feeling
	}
}

// commit persists the turn: messages first, then the session. If the session
// save fails the state transition is not applied; the engine never saves a
// session ahead of its messages.
func (e *Engine) commit(ctx context.Context, next *models.Session, msgs ...*models.Message) error {
	if err := e.appendAll(ctx, msgs...); err != nil {
		return err
	}
	next.UpdatedAt = e.now().UTC()
	if err := e.store.SaveSession(ctx, next); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (e *Engine) appendAll(ctx context.Context, msgs ...*models.Message) error {
	for _, m := range msgs {
		if err := e.store.AppendMessage(ctx, m); err != nil {
			return fmt.Errorf("append message: %w", err)
		}
	}
	return nil
}

func isDenial(content string) bool {
	return strings.EqualFold(strings.TrimSpace(content), "no")
}

func optionsData(options []string) map[string]any {
	if len(options) == 0 {
		return nil
	}
	return map[string]any{"options": options}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

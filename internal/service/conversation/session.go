package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"orientachat/internal/logger"
	"orientachat/internal/models"
	"orientachat/internal/service/ai"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// TempResponseID marks the MODEL message that is still receiving chunks.
	TempResponseID = "temp-response"
	WelcomeID      = "welcome"

	WelcomeText = "Ciao! 👋 Sono il tuo assistente virtuale per l'ISIS G.D. Romagnosi. \n\nPosso aiutarti a scoprire i nostri indirizzi, i laboratori e le attività extrascolastiche. Di cosa vuoi parlare?"
	ResetText   = "Chat resettata! 👋 \nCome posso aiutarti ora?"
	ErrorText   = "Mi dispiace, si è verificato un errore. Riprova più tardi."
)

var (
	ErrEmptySend = errors.New("message text or file required")
	ErrBusy      = errors.New("a reply is still being generated")
)

// FileOnlyText is the transcript text of a turn that only carries a file.
func FileOnlyText(name string) string {
	return "Inviato file: " + name
}

type EventType string

const (
	EventChunk EventType = "stream"
	EventDone  EventType = "done"
	EventError EventType = "error"
)

// Event is one step of a send. Chunk events carry the in-flight message with
// the text accumulated so far; Done carries the finalized message (zero when
// the collaborator produced no text); Error carries the flagged apology.
type Event struct {
	Type    EventType
	Message models.Message
}

type Option func(*Session)

// WithFinalizeHook runs after a MODEL message gets its permanent id.
func WithFinalizeHook(fn func(models.Message)) Option {
	return func(s *Session) { s.onFinalize = fn }
}

// WithSettleHook runs after every send ends, whatever the outcome.
func WithSettleHook(fn func()) Option {
	return func(s *Session) { s.onSettle = fn }
}

// WithStreamTimeout bounds a single collaborator call. Zero means no bound.
func WithStreamTimeout(d time.Duration) Option {
	return func(s *Session) { s.streamTimeout = d }
}

func WithIDGenerator(fn func() string) Option {
	return func(s *Session) { s.newID = fn }
}

// Session owns one visitor's transcript and collaborator chat. At most one
// send is in flight; chunks are applied only while the chat generation that
// issued them is still current.
type Session struct {
	factory       ai.ChatFactory
	onFinalize    func(models.Message)
	onSettle      func()
	streamTimeout time.Duration
	newID         func() string

	mu         sync.Mutex
	messages   []models.Message
	chat       ai.Chat
	generation uint64
	genCtx     context.Context
	genCancel  context.CancelFunc
	inFlight   bool
}

func New(ctx context.Context, factory ai.ChatFactory, opts ...Option) (*Session, error) {
	if factory == nil {
		return nil, errors.New("chat factory required")
	}
	s := &Session{
		factory: factory,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	chat, err := factory.NewChat(ctx)
	if err != nil {
		return nil, fmt.Errorf("start chat: %w", err)
	}
	s.chat = chat
	s.genCtx, s.genCancel = context.WithCancel(context.Background())
	s.messages = []models.Message{models.NewMessage(WelcomeID, models.RoleModel, WelcomeText)}
	return s, nil
}

// Send appends the USER message and starts streaming the reply.
// The caller must drain the returned channel or cancel ctx; cancelling ctx
// only stops event delivery, the reply still lands in the transcript.
func (s *Session) Send(ctx context.Context, text string, file *models.Attachment) (models.Message, <-chan Event, error) {
	text = strings.TrimSpace(text)
	if text == "" && file.Empty() {
		return models.Message{}, nil, ErrEmptySend
	}
	userText := text
	if userText == "" {
		userText = FileOnlyText(file.Name)
	}
	turn := ai.Turn{Text: text}
	if !file.Empty() {
		turn.Attachment = file
	}

	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		return models.Message{}, nil, ErrBusy
	}
	userMsg := models.NewMessage(s.newID(), models.RoleUser, userText)
	s.messages = append(s.messages, userMsg)
	s.inFlight = true
	gen, chat, genCtx := s.generation, s.chat, s.genCtx
	s.mu.Unlock()

	events := make(chan Event)
	go s.run(ctx, genCtx, gen, chat, turn, events)
	return userMsg, events, nil
}

func (s *Session) run(consumer, genCtx context.Context, gen uint64, chat ai.Chat, turn ai.Turn, events chan<- Event) {
	defer close(events)

	callCtx, cancel := genCtx, context.CancelFunc(func() {})
	if s.streamTimeout > 0 {
		callCtx, cancel = context.WithTimeout(genCtx, s.streamTimeout)
	}
	defer cancel()

	var acc strings.Builder
	for chunk := range chat.Stream(callCtx, turn) {
		if chunk.Err != nil {
			s.fail(consumer, gen, chunk.Err, events)
			return
		}
		if chunk.Text == "" {
			continue
		}
		acc.WriteString(chunk.Text)
		msg, ok := s.applyChunk(gen, acc.String())
		if !ok {
			return
		}
		deliver(consumer, events, Event{Type: EventChunk, Message: msg})
	}
	if err := callCtx.Err(); err != nil {
		s.fail(consumer, gen, err, events)
		return
	}
	s.finalize(consumer, gen, events)
}

// applyChunk replaces the in-flight MODEL message text, creating it on the first chunk.
func (s *Session) applyChunk(gen uint64, text string) (models.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return models.Message{}, false
	}
	last := len(s.messages) - 1
	if s.messages[last].ID == TempResponseID {
		s.messages[last].Text = text
		return s.messages[last], true
	}
	msg := models.NewMessage(TempResponseID, models.RoleModel, text)
	s.messages = append(s.messages, msg)
	return msg, true
}

func (s *Session) finalize(consumer context.Context, gen uint64, events chan<- Event) {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return
	}
	var final models.Message
	last := len(s.messages) - 1
	if s.messages[last].ID == TempResponseID {
		s.messages[last].ID = s.newID()
		final = s.messages[last]
	}
	s.inFlight = false
	s.mu.Unlock()

	deliver(consumer, events, Event{Type: EventDone, Message: final})
	if final.ID != "" && s.onFinalize != nil {
		s.onFinalize(final)
	}
	s.settle()
}

// fail drops any partial reply and appends the flagged apology.
func (s *Session) fail(consumer context.Context, gen uint64, cause error, events chan<- Event) {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return
	}
	if last := len(s.messages) - 1; s.messages[last].ID == TempResponseID {
		s.messages = s.messages[:last]
	}
	msg := models.NewMessage(s.newID(), models.RoleModel, ErrorText)
	msg.IsError = true
	s.messages = append(s.messages, msg)
	s.inFlight = false
	s.mu.Unlock()

	logger.Get().Error("chat stream failed", zap.Error(cause))
	deliver(consumer, events, Event{Type: EventError, Message: msg})
	s.settle()
}

func (s *Session) settle() {
	if s.onSettle != nil {
		s.onSettle()
	}
}

func deliver(consumer context.Context, events chan<- Event, ev Event) {
	if consumer.Err() != nil {
		return
	}
	select {
	case events <- ev:
	case <-consumer.Done():
	}
}

// Clear resets the transcript to the canned welcome and replaces the
// collaborator chat. Any in-flight send is cancelled and can no longer
// touch the transcript.
func (s *Session) Clear(ctx context.Context) error {
	chat, err := s.factory.NewChat(ctx)
	if err != nil {
		return fmt.Errorf("start chat: %w", err)
	}
	genCtx, genCancel := context.WithCancel(context.Background())

	s.mu.Lock()
	s.genCancel()
	s.generation++
	s.genCtx, s.genCancel = genCtx, genCancel
	s.chat = chat
	s.inFlight = false
	s.messages = []models.Message{models.NewMessage(WelcomeID, models.RoleModel, ResetText)}
	s.mu.Unlock()
	return nil
}

// Close cancels any in-flight send. The session must not be used afterwards.
func (s *Session) Close() {
	s.mu.Lock()
	s.genCancel()
	s.generation++
	s.inFlight = false
	s.mu.Unlock()
}

func (s *Session) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Message looks up a finalized message by id.
func (s *Session) Message(id string) (models.Message, bool) {
	if id == TempResponseID {
		return models.Message{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, msg := range s.messages {
		if msg.ID == id {
			return msg, true
		}
	}
	return models.Message{}, false
}

func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight
}

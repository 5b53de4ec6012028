package shell

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"orientachat/internal/logger"
	"orientachat/internal/models"
	"orientachat/internal/quiz"
	"orientachat/internal/service/ai"
	"orientachat/internal/service/conversation"
	"orientachat/internal/service/speech"

	"go.uber.org/zap"
)

var (
	ErrQuizClosed      = errors.New("quiz is not open")
	ErrEmptyFeedback   = errors.New("feedback text is required")
	ErrNotPDF          = errors.New("attachment is not a pdf")
	ErrUnknownFAQ      = errors.New("unknown prompt")
	ErrMessageNotFound = errors.New("message not found")
)

const DefaultFeedbackReset = time.Second

type View string

const (
	ViewLanding View = "landing"
	ViewChat    View = "chat"
)

// Config wires a Shell to its collaborators.
type Config struct {
	VisitorID        string
	Chats            ai.ChatFactory
	Synthesizer      speech.Synthesizer
	Sink             speech.Sink
	Store            KVStore
	Feedback         FeedbackStore
	Questions        []quiz.Question
	StreamTimeout    time.Duration
	AutoPlayDelay    time.Duration
	SynthesisTimeout time.Duration
	FeedbackReset    time.Duration
}

// FeedbackState mirrors the feedback modal.
type FeedbackState struct {
	Open bool   `json:"open"`
	Text string `json:"text"`
	Sent bool   `json:"sent"`
}

// State is the snapshot the browser renders from.
type State struct {
	View           View          `json:"view"`
	SidebarOpen    bool          `json:"sidebar_open"`
	Quiz           *quiz.View    `json:"quiz,omitempty"`
	Feedback       FeedbackState `json:"feedback"`
	ConsentVisible bool          `json:"consent_visible"`
	Busy           bool          `json:"busy"`
	Pending        string        `json:"pending,omitempty"`
	Speech         speech.State  `json:"speech"`
}

// Dispatch is the outcome of asking a canned question. A queued question is
// sent by the shell itself once the running reply settles.
type Dispatch struct {
	Queued bool
	User   models.Message
	Events <-chan conversation.Event
}

// Shell is everything one visitor sees: the landing/chat switch, the sidebar,
// the quiz and feedback modals and the consent banner, over one conversation
// and one speech player.
type Shell struct {
	visitorID     string
	session       *conversation.Session
	player        *speech.Player
	store         KVStore
	feedback      FeedbackStore
	questions     []quiz.Question
	feedbackReset time.Duration

	mu             sync.Mutex
	view           View
	sidebarOpen    bool
	quiz           *quiz.Quiz
	fb             FeedbackState
	fbTimer        *time.Timer
	consentVisible bool
	pending        string
	closed         bool
}

// New builds a visitor's shell. The consent flag is read once here.
func New(ctx context.Context, cfg Config) (*Shell, error) {
	if cfg.Chats == nil {
		return nil, errors.New("chat factory required")
	}
	if cfg.Synthesizer == nil {
		return nil, errors.New("speech synthesizer required")
	}
	store := cfg.Store
	if store == nil {
		store = NewMemoryStore()
	}
	questions := cfg.Questions
	if questions == nil {
		questions = quiz.DefaultQuestions()
	}
	reset := cfg.FeedbackReset
	if reset <= 0 {
		reset = DefaultFeedbackReset
	}

	var playerOpts []speech.Option
	if cfg.AutoPlayDelay > 0 {
		playerOpts = append(playerOpts, speech.WithAutoPlayDelay(cfg.AutoPlayDelay))
	}
	if cfg.SynthesisTimeout > 0 {
		playerOpts = append(playerOpts, speech.WithSynthesisTimeout(cfg.SynthesisTimeout))
	}

	s := &Shell{
		visitorID:     cfg.VisitorID,
		player:        speech.NewPlayer(cfg.Synthesizer, cfg.Sink, playerOpts...),
		store:         store,
		feedback:      cfg.Feedback,
		questions:     questions,
		feedbackReset: reset,
		view:          ViewLanding,
	}

	session, err := conversation.New(ctx, cfg.Chats,
		conversation.WithStreamTimeout(cfg.StreamTimeout),
		conversation.WithFinalizeHook(func(msg models.Message) {
			if _, ok := s.session.Message(msg.ID); ok {
				s.player.ScheduleAutoPlay(msg.ID, msg.Text)
			}
		}),
		conversation.WithSettleHook(s.dispatchPending),
	)
	if err != nil {
		return nil, err
	}
	s.session = session

	consent, ok, err := store.Get(ctx, ConsentKey)
	if err != nil {
		logger.Get().Warn("read consent flag", zap.String("visitor_id", s.visitorID), zap.Error(err))
	}
	s.consentVisible = !ok || consent == ""
	return s, nil
}

func (s *Shell) Start() {
	s.mu.Lock()
	s.view = ViewChat
	s.mu.Unlock()
}

// Home returns to the landing view. The chat history is kept.
func (s *Shell) Home() {
	s.mu.Lock()
	s.view = ViewLanding
	s.sidebarOpen = false
	s.mu.Unlock()
}

func (s *Shell) OpenSidebar() {
	s.mu.Lock()
	s.sidebarOpen = true
	s.mu.Unlock()
}

func (s *Shell) CloseSidebar() {
	s.mu.Lock()
	s.sidebarOpen = false
	s.mu.Unlock()
}

func (s *Shell) Messages() []models.Message {
	return s.session.Messages()
}

// Send forwards a visitor turn to the conversation.
func (s *Shell) Send(ctx context.Context, text string, file *models.Attachment) (models.Message, <-chan conversation.Event, error) {
	s.Start()
	return s.session.Send(ctx, text, file)
}

// ClearChat starts over with a fresh collaborator chat. Cached audio and any
// queued question belong to the old chat and are dropped with it.
func (s *Shell) ClearChat(ctx context.Context) error {
	if err := s.session.Clear(ctx); err != nil {
		return err
	}
	s.player.CancelAutoPlay()
	s.player.Stop()
	s.player.ClearCache()
	s.mu.Lock()
	s.pending = ""
	s.mu.Unlock()
	return nil
}

// AskFAQ sends the FAQ item at index and closes the sidebar.
func (s *Shell) AskFAQ(ctx context.Context, index int) (Dispatch, error) {
	p, err := lookup(faqItems, index)
	if err != nil {
		return Dispatch{}, err
	}
	return s.Ask(ctx, p.Text)
}

func (s *Shell) AskQuick(ctx context.Context, index int) (Dispatch, error) {
	p, err := lookup(quickActions, index)
	if err != nil {
		return Dispatch{}, err
	}
	return s.Ask(ctx, p.Text)
}

// Ask sends a question on the visitor's behalf. While a reply is still
// streaming the question is held instead; only the latest held question is
// kept.
func (s *Shell) Ask(ctx context.Context, question string) (Dispatch, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Dispatch{}, conversation.ErrEmptySend
	}
	s.mu.Lock()
	s.view = ViewChat
	s.sidebarOpen = false
	s.mu.Unlock()

	user, events, err := s.session.Send(ctx, question, nil)
	if err == nil {
		return Dispatch{User: user, Events: events}, nil
	}
	if !errors.Is(err, conversation.ErrBusy) {
		return Dispatch{}, err
	}

	s.mu.Lock()
	s.pending = question
	s.mu.Unlock()
	// The running reply may have settled before the question was parked.
	if !s.session.Busy() {
		s.dispatchPending()
	}
	return Dispatch{Queued: true}, nil
}

// dispatchPending sends the held question, if any. Nobody is listening for
// its events, so they are drained here; the transcript still records them.
func (s *Shell) dispatchPending() {
	s.mu.Lock()
	question := s.pending
	s.pending = ""
	closed := s.closed
	s.mu.Unlock()
	if question == "" || closed {
		return
	}

	_, events, err := s.session.Send(context.Background(), question, nil)
	if err != nil {
		if errors.Is(err, conversation.ErrBusy) {
			s.mu.Lock()
			if s.pending == "" {
				s.pending = question
			}
			s.mu.Unlock()
			return
		}
		logger.Get().Error("send queued question", zap.String("visitor_id", s.visitorID), zap.Error(err))
		return
	}
	go func() {
		for range events {
		}
	}()
}

// Play toggles read-aloud of a finalized message.
func (s *Shell) Play(ctx context.Context, messageID string) (speech.State, error) {
	msg, ok := s.session.Message(messageID)
	if !ok {
		return speech.State{}, ErrMessageNotFound
	}
	return s.player.Play(ctx, msg.ID, msg.Text), nil
}

// Audio returns the cached audio of a message, if it has been synthesized.
func (s *Shell) Audio(messageID string) (*speech.Buffer, bool) {
	return s.player.Cached(messageID)
}

func (s *Shell) SetAutoPlay(enabled bool) {
	s.player.SetAutoPlay(enabled)
}

// OpenQuiz shows the quiz modal with a fresh quiz.
func (s *Shell) OpenQuiz() quiz.View {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quiz = quiz.New(s.questions)
	return s.quiz.View()
}

func (s *Shell) QuizView() (quiz.View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.quiz == nil {
		return quiz.View{}, ErrQuizClosed
	}
	return s.quiz.View(), nil
}

func (s *Shell) AnswerQuiz(option int) (quiz.View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.quiz == nil {
		return quiz.View{}, ErrQuizClosed
	}
	if err := s.quiz.Answer(option); err != nil {
		return s.quiz.View(), err
	}
	return s.quiz.View(), nil
}

// RetakeQuiz throws the current quiz away and starts from the first question.
func (s *Shell) RetakeQuiz() (quiz.View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.quiz == nil {
		return quiz.View{}, ErrQuizClosed
	}
	s.quiz = quiz.New(s.questions)
	return s.quiz.View(), nil
}

func (s *Shell) CloseQuiz() {
	s.mu.Lock()
	s.quiz = nil
	s.mu.Unlock()
}

// CompleteQuiz closes the modal and asks the assistant about the
// recommended track.
func (s *Shell) CompleteQuiz(ctx context.Context) (Dispatch, error) {
	s.mu.Lock()
	if s.quiz == nil {
		s.mu.Unlock()
		return Dispatch{}, ErrQuizClosed
	}
	result, err := s.quiz.Result()
	if err != nil {
		s.mu.Unlock()
		return Dispatch{}, err
	}
	s.quiz = nil
	s.mu.Unlock()

	return s.Ask(ctx, quiz.CompletionQuestion(quiz.Recommendation(result)))
}

func (s *Shell) OpenFeedback() {
	s.mu.Lock()
	s.fb.Open = true
	s.mu.Unlock()
}

func (s *Shell) CloseFeedback() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fbTimer != nil {
		s.fbTimer.Stop()
		s.fbTimer = nil
	}
	s.fb.Open = false
	s.fb.Sent = false
}

// SubmitFeedback stores the text and shows the thank-you state until the
// modal closes itself.
func (s *Shell) SubmitFeedback(ctx context.Context, text string) (FeedbackState, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return s.feedbackState(), ErrEmptyFeedback
	}
	if s.feedback != nil {
		if _, err := s.feedback.Save(ctx, s.visitorID, text); err != nil {
			return s.feedbackState(), fmt.Errorf("save feedback: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.fb = FeedbackState{Open: true, Text: text, Sent: true}
	if s.fbTimer != nil {
		s.fbTimer.Stop()
	}
	var timer *time.Timer
	timer = time.AfterFunc(s.feedbackReset, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.fbTimer != timer {
			return
		}
		s.fbTimer = nil
		s.fb = FeedbackState{}
	})
	s.fbTimer = timer
	return s.fb, nil
}

func (s *Shell) feedbackState() FeedbackState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fb
}

// AcceptConsent remembers the acceptance and hides the banner.
func (s *Shell) AcceptConsent(ctx context.Context) error {
	s.mu.Lock()
	visible := s.consentVisible
	s.mu.Unlock()
	if visible {
		if err := s.store.Set(ctx, ConsentKey, "true"); err != nil {
			return fmt.Errorf("store consent: %w", err)
		}
	}
	s.mu.Lock()
	s.consentVisible = false
	s.mu.Unlock()
	return nil
}

// DismissConsent hides the banner for now without remembering anything.
func (s *Shell) DismissConsent() {
	s.mu.Lock()
	s.consentVisible = false
	s.mu.Unlock()
}

func (s *Shell) State() State {
	s.mu.Lock()
	st := State{
		View:           s.view,
		SidebarOpen:    s.sidebarOpen,
		Feedback:       s.fb,
		ConsentVisible: s.consentVisible,
		Pending:        s.pending,
	}
	if s.quiz != nil {
		v := s.quiz.View()
		st.Quiz = &v
	}
	s.mu.Unlock()
	st.Busy = s.session.Busy()
	st.Speech = s.player.State()
	return st
}

// Close stops the conversation, playback and timers.
func (s *Shell) Close() {
	s.mu.Lock()
	s.closed = true
	s.pending = ""
	if s.fbTimer != nil {
		s.fbTimer.Stop()
		s.fbTimer = nil
	}
	s.mu.Unlock()
	s.session.Close()
	s.player.Close()
}

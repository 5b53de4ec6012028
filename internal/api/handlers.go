package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"orientachat/internal/auth"
	"orientachat/internal/logger"
	"orientachat/internal/models"
	"orientachat/internal/quiz"
	"orientachat/internal/service/conversation"
	"orientachat/internal/service/shell"
	"orientachat/internal/worker"
)

// maxUploadBytes matches the inline-data limit of the chat provider.
const maxUploadBytes = 20 << 20

var errBadRequest = errors.New("invalid request")

// VisitorRegistry hands out the per-visitor shells.
type VisitorRegistry interface {
	Ensure(ctx context.Context, visitorID string) (*shell.Shell, error)
	Reset(ctx context.Context, visitorID string) error
}

// HealthCheck reports whether a backing store is reachable.
type HealthCheck func(ctx context.Context) error

// Handler wires HTTP routes to the visitor shells.
type Handler struct {
	auth     *auth.Service
	visitors VisitorRegistry
	checks   map[string]HealthCheck
}

// NewHandler constructs a Handler instance.
func NewHandler(authService *auth.Service, visitors VisitorRegistry, checks map[string]HealthCheck) *Handler {
	return &Handler{auth: authService, visitors: visitors, checks: checks}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/healthz", h.health)

	api := router.Group("/api")
	api.Use(h.auth.VisitorMiddleware(), h.auth.CSRFMiddleware())
	api.GET("/state", h.getState)
	api.POST("/start", h.start)
	api.POST("/home", h.home)
	api.POST("/sidebar/open", h.openSidebar)
	api.POST("/sidebar/close", h.closeSidebar)

	api.GET("/messages", h.listMessages)
	api.POST("/messages", h.sendMessage)
	api.DELETE("/messages", h.clearMessages)
	api.POST("/messages/:id/speech", h.toggleSpeech)
	api.GET("/messages/:id/audio", h.getAudio)
	api.PUT("/autoplay", h.setAutoPlay)

	api.GET("/faq", h.listPrompts)
	api.POST("/faq/:index", h.askFAQ)
	api.POST("/quick/:index", h.askQuick)

	api.POST("/quiz", h.openQuiz)
	api.GET("/quiz", h.getQuiz)
	api.DELETE("/quiz", h.closeQuiz)
	api.POST("/quiz/answers", h.answerQuiz)
	api.POST("/quiz/retake", h.retakeQuiz)
	api.POST("/quiz/complete", h.completeQuiz)

	api.POST("/feedback/open", h.openFeedback)
	api.DELETE("/feedback", h.closeFeedback)
	api.POST("/feedback", h.submitFeedback)

	api.POST("/consent/accept", h.acceptConsent)
	api.POST("/consent/dismiss", h.dismissConsent)

	api.DELETE("/visitor", h.resetVisitor)
}

func (h *Handler) health(c *gin.Context) {
	status := gin.H{}
	healthy := true
	for name, check := range h.checks {
		if err := check(c.Request.Context()); err != nil {
			status[name] = err.Error()
			healthy = false
			continue
		}
		status[name] = "ok"
	}
	if !healthy {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "checks": status})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "checks": status})
}

// visitor resolves the caller's shell, writing the error response itself.
func (h *Handler) visitor(c *gin.Context) (*shell.Shell, bool) {
	visitorID, ok := auth.VisitorIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "visitor required"})
		return nil, false
	}
	sh, err := h.visitors.Ensure(c.Request.Context(), visitorID)
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	return sh, true
}

// writeError maps domain errors onto status codes.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, shell.ErrNotPDF):
		c.JSON(http.StatusBadRequest, gin.H{"error": shell.NotPDFText})
	case errors.Is(err, errBadRequest),
		errors.Is(err, conversation.ErrEmptySend),
		errors.Is(err, shell.ErrEmptyFeedback),
		errors.Is(err, shell.ErrUnknownFAQ),
		errors.Is(err, shell.ErrQuizClosed),
		errors.Is(err, quiz.ErrOptionOutOfRange),
		errors.Is(err, quiz.ErrQuizFinished),
		errors.Is(err, quiz.ErrQuizNotFinished):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, conversation.ErrBusy):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, worker.ErrVisitorNotFound), errors.Is(err, shell.ErrMessageNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		logger.Get().Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func (h *Handler) getState(c *gin.Context) {
	sh, ok := h.visitor(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, sh.State())
}

func (h *Handler) start(c *gin.Context) {
	sh, ok := h.visitor(c)
	if !ok {
		return
	}
	sh.Start()
	c.JSON(http.StatusOK, sh.State())
}

func (h *Handler) home(c *gin.Context) {
	sh, ok := h.visitor(c)
	if !ok {
		return
	}
	sh.Home()
	c.JSON(http.StatusOK, sh.State())
}

func (h *Handler) openSidebar(c *gin.Context) {
	sh, ok := h.visitor(c)
	if !ok {
		return
	}
	sh.OpenSidebar()
	c.JSON(http.StatusOK, sh.State())
}

func (h *Handler) closeSidebar(c *gin.Context) {
	sh, ok := h.visitor(c)
	if !ok {
		return
	}
	sh.CloseSidebar()
	c.JSON(http.StatusOK, sh.State())
}

func (h *Handler) listMessages(c *gin.Context) {
	sh, ok := h.visitor(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": sh.Messages()})
}

type sendRequest struct {
	Text string `json:"text"`
}

func (h *Handler) sendMessage(c *gin.Context) {
	sh, ok := h.visitor(c)
	if !ok {
		return
	}
	text, file, err := readSendRequest(c)
	if err != nil {
		writeError(c, err)
		return
	}
	user, events, err := sh.Send(c.Request.Context(), text, file)
	if err != nil {
		writeError(c, err)
		return
	}
	streamReply(c, user, events)
}

// readSendRequest accepts either a JSON body or a multipart form carrying
// text and an optional PDF.
func readSendRequest(c *gin.Context) (string, *models.Attachment, error) {
	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		var req sendRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			return "", nil, fmt.Errorf("%w: body must be json with a text field", errBadRequest)
		}
		return req.Text, nil, nil
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes+1<<20)
	if err := c.Request.ParseMultipartForm(maxUploadBytes); err != nil {
		return "", nil, fmt.Errorf("%w: invalid multipart form", errBadRequest)
	}
	text := c.PostForm("text")
	header, err := c.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return text, nil, nil
	}
	if err != nil {
		return "", nil, fmt.Errorf("read upload: %w", err)
	}
	if header.Size > maxUploadBytes {
		return "", nil, fmt.Errorf("%w: file too large", errBadRequest)
	}
	f, err := header.Open()
	if err != nil {
		return "", nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes))
	if err != nil {
		return "", nil, fmt.Errorf("read upload: %w", err)
	}
	file, err := shell.ValidateAttachment(filepath.Base(header.Filename), header.Header.Get("Content-Type"), data)
	if err != nil {
		return "", nil, err
	}
	return text, file, nil
}

// streamReply writes ack, then stream* and a final done or error event.
func streamReply(c *gin.Context, user models.Message, events <-chan conversation.Event) {
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		// The reply still lands in the transcript; nobody reads the events.
		go func() {
			for range events {
			}
		}()
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming not supported"})
		return
	}
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	sendEvent := func(event string, payload interface{}) error {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", event, data); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	_ = sendEvent("ack", gin.H{"message": user})
	for ev := range events {
		if err := sendEvent(string(ev.Type), gin.H{"message": ev.Message}); err != nil {
			logger.Get().Debug("sse write failed", zap.Error(err))
		}
	}
}

func (h *Handler) clearMessages(c *gin.Context) {
	sh, ok := h.visitor(c)
	if !ok {
		return
	}
	if err := sh.ClearChat(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": sh.Messages()})
}

func (h *Handler) toggleSpeech(c *gin.Context) {
	sh, ok := h.visitor(c)
	if !ok {
		return
	}
	state, err := sh.Play(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (h *Handler) getAudio(c *gin.Context) {
	sh, ok := h.visitor(c)
	if !ok {
		return
	}
	buf, ok := sh.Audio(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "audio not available"})
		return
	}
	c.Header("Content-Type", "audio/wav")
	c.Header("Content-Length", strconv.Itoa(buf.WAVSize()))
	c.Status(http.StatusOK)
	if err := buf.WriteWAV(c.Writer); err != nil {
		logger.Get().Debug("write wav failed", zap.Error(err))
	}
}

type autoPlayRequest struct {
	Enabled *bool `json:"enabled"`
}

func (h *Handler) setAutoPlay(c *gin.Context) {
	sh, ok := h.visitor(c)
	if !ok {
		return
	}
	var req autoPlayRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Enabled == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "enabled is required"})
		return
	}
	sh.SetAutoPlay(*req.Enabled)
	c.JSON(http.StatusOK, sh.State().Speech)
}

func (h *Handler) listPrompts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"faq": shell.FAQ(), "quick_actions": shell.QuickActions()})
}

func (h *Handler) askFAQ(c *gin.Context) {
	h.askPrompt(c, (*shell.Shell).AskFAQ)
}

func (h *Handler) askQuick(c *gin.Context) {
	h.askPrompt(c, (*shell.Shell).AskQuick)
}

func (h *Handler) askPrompt(c *gin.Context, ask func(*shell.Shell, context.Context, int) (shell.Dispatch, error)) {
	sh, ok := h.visitor(c)
	if !ok {
		return
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		writeError(c, shell.ErrUnknownFAQ)
		return
	}
	d, err := ask(sh, c.Request.Context(), index)
	if err != nil {
		writeError(c, err)
		return
	}
	writeDispatch(c, d)
}

func writeDispatch(c *gin.Context, d shell.Dispatch) {
	if d.Queued {
		c.JSON(http.StatusAccepted, gin.H{"queued": true})
		return
	}
	streamReply(c, d.User, d.Events)
}

func (h *Handler) openQuiz(c *gin.Context) {
	sh, ok := h.visitor(c)
	if !ok {
		return
	}
	c.JSON(http.StatusCreated, sh.OpenQuiz())
}

func (h *Handler) getQuiz(c *gin.Context) {
	sh, ok := h.visitor(c)
	if !ok {
		return
	}
	view, err := sh.QuizView()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) closeQuiz(c *gin.Context) {
	sh, ok := h.visitor(c)
	if !ok {
		return
	}
	sh.CloseQuiz()
	c.Status(http.StatusNoContent)
}

type answerRequest struct {
	Option *int `json:"option"`
}

func (h *Handler) answerQuiz(c *gin.Context) {
	sh, ok := h.visitor(c)
	if !ok {
		return
	}
	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Option == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "option is required"})
		return
	}
	view, err := sh.AnswerQuiz(*req.Option)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) retakeQuiz(c *gin.Context) {
	sh, ok := h.visitor(c)
	if !ok {
		return
	}
	view, err := sh.RetakeQuiz()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) completeQuiz(c *gin.Context) {
	sh, ok := h.visitor(c)
	if !ok {
		return
	}
	d, err := sh.CompleteQuiz(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	writeDispatch(c, d)
}

func (h *Handler) openFeedback(c *gin.Context) {
	sh, ok := h.visitor(c)
	if !ok {
		return
	}
	sh.OpenFeedback()
	c.JSON(http.StatusOK, sh.State().Feedback)
}

func (h *Handler) closeFeedback(c *gin.Context) {
	sh, ok := h.visitor(c)
	if !ok {
		return
	}
	sh.CloseFeedback()
	c.Status(http.StatusNoContent)
}

type feedbackRequest struct {
	Text string `json:"text"`
}

func (h *Handler) submitFeedback(c *gin.Context) {
	sh, ok := h.visitor(c)
	if !ok {
		return
	}
	var req feedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	state, err := sh.SubmitFeedback(c.Request.Context(), req.Text)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, state)
}

func (h *Handler) acceptConsent(c *gin.Context) {
	sh, ok := h.visitor(c)
	if !ok {
		return
	}
	if err := sh.AcceptConsent(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) dismissConsent(c *gin.Context) {
	sh, ok := h.visitor(c)
	if !ok {
		return
	}
	sh.DismissConsent()
	c.Status(http.StatusNoContent)
}

func (h *Handler) resetVisitor(c *gin.Context) {
	visitorID, ok := auth.VisitorIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "visitor required"})
		return
	}
	if err := h.visitors.Reset(c.Request.Context(), visitorID); err != nil && !errors.Is(err, worker.ErrVisitorNotFound) {
		writeError(c, err)
		return
	}
	h.auth.ForgetVisitor(c)
	c.Status(http.StatusNoContent)
}

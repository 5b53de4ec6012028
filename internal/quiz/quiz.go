package quiz

import (
	"errors"
	"fmt"
)

var (
	ErrOptionOutOfRange = errors.New("option out of range")
	ErrQuizFinished     = errors.New("quiz already finished")
	ErrQuizNotFinished  = errors.New("quiz not finished")
)

type Phase string

const (
	PhaseAwaitingAnswer Phase = "awaiting_answer"
	PhaseResult         Phase = "result"
)

// Quiz is one run through a question bank. It only moves forward:
// AWAITING_ANSWER(i) advances to i+1 or, after the last question, to RESULT.
// A retake is a new Quiz. Not safe for concurrent use.
type Quiz struct {
	questions []Question
	index     int
	tally     Tally
	result    Category
	done      bool
}

func New(questions []Question) *Quiz {
	q := &Quiz{questions: questions}
	if len(questions) == 0 {
		q.finish()
	}
	return q
}

// NewDefault starts a quiz over the orientation questionnaire.
func NewDefault() *Quiz {
	return New(DefaultQuestions())
}

func (q *Quiz) Phase() Phase {
	if q.done {
		return PhaseResult
	}
	return PhaseAwaitingAnswer
}

// Current returns the question awaiting an answer.
func (q *Quiz) Current() (Question, bool) {
	if q.done {
		return Question{}, false
	}
	return q.questions[q.index], true
}

// Answer applies the option at optionIndex of the current question.
func (q *Quiz) Answer(optionIndex int) error {
	if q.done {
		return ErrQuizFinished
	}
	current := q.questions[q.index]
	if optionIndex < 0 || optionIndex >= len(current.Options) {
		return fmt.Errorf("question %d option %d: %w", current.ID, optionIndex, ErrOptionOutOfRange)
	}
	q.tally = SubmitAnswer(q.tally, current.Options[optionIndex])
	if q.index < len(q.questions)-1 {
		q.index++
		return nil
	}
	q.finish()
	return nil
}

func (q *Quiz) finish() {
	q.result = Resolve(q.tally)
	q.done = true
}

// Result returns the winning category once every question is answered.
func (q *Quiz) Result() (Category, error) {
	if !q.done {
		return 0, ErrQuizNotFinished
	}
	return q.result, nil
}

func (q *Quiz) Tally() Tally {
	return q.tally
}

// View is a read-only snapshot of the quiz suitable for rendering.
type View struct {
	Phase          Phase     `json:"phase"`
	QuestionIndex  int       `json:"question_index"`
	TotalQuestions int       `json:"total_questions"`
	Question       *Question `json:"question,omitempty"`
	Result         *Category `json:"result,omitempty"`
	Recommendation string    `json:"recommendation,omitempty"`
}

func (q *Quiz) View() View {
	v := View{
		Phase:          q.Phase(),
		QuestionIndex:  q.index,
		TotalQuestions: len(q.questions),
	}
	if q.done {
		result := q.result
		v.Result = &result
		v.Recommendation = Recommendation(result)
		return v
	}
	current := q.questions[q.index]
	v.Question = &current
	return v
}

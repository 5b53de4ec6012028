package quiz

import "fmt"

// Option is one selectable answer and the points it awards.
type Option struct {
	Text   string `json:"text"`
	Points Points `json:"-"`
}

// Question is static configuration, never mutated at runtime.
type Question struct {
	ID      int      `json:"id"`
	Prompt  string   `json:"prompt"`
	Options []Option `json:"options"`
}

var defaultQuestions = []Question{
	{
		ID:     1,
		Prompt: "Quali materie ti piacciono di più a scuola?",
		Options: []Option{
			{Text: "Matematica, Informatica e numeri", Points: Points{Economico: 3, Elettronica: 2}},
			{Text: "Lingue straniere e Geografia", Points: Points{Turismo: 3, Economico: 1}},
			{Text: "Tecnologia, Disegno tecnico", Points: Points{Costruzioni: 3, Elettronica: 1}},
			{Text: "Scienze, Biologia, Natura", Points: Points{Agraria: 3, Professionale: 1}},
			{Text: "Preferisco le attività pratiche e laboratoriali", Points: Points{Professionale: 3, Agraria: 1}},
		},
	},
	{
		ID:     2,
		Prompt: "Cosa ti piacerebbe fare 'da grande'?",
		Options: []Option{
			{Text: "Lavorare in ufficio, gestire aziende o programmare", Points: Points{Economico: 3, Turismo: 1}},
			{Text: "Viaggiare, lavorare in hotel o aeroporti", Points: Points{Turismo: 3, Economico: 1}},
			{Text: "Progettare case, edifici o lavorare in cantiere", Points: Points{Costruzioni: 3}},
			{Text: "Costruire circuiti, robotica o impianti elettrici", Points: Points{Elettronica: 3}},
			{Text: "Cucinare o aiutare le persone (Sanità)", Points: Points{Professionale: 3}},
		},
	},
	{
		ID:     3,
		Prompt: "Come ti piace passare il tuo tempo libero?",
		Options: []Option{
			{Text: "Al computer, videogiochi o social media", Points: Points{Economico: 2, Elettronica: 2}},
			{Text: "Guardare serie TV in lingua o scoprire posti nuovi", Points: Points{Turismo: 3}},
			{Text: "Stare all'aria aperta, natura o animali", Points: Points{Agraria: 3}},
			{Text: "Smontare oggetti, capire come funzionano le cose", Points: Points{Elettronica: 3, Costruzioni: 2}},
			{Text: "Stare con gli amici, cucinare o fare volontariato", Points: Points{Professionale: 3}},
		},
	},
	{
		ID:     4,
		Prompt: "Scegli la parola che ti rappresenta di più:",
		Options: []Option{
			{Text: "Organizzazione e Logica", Points: Points{Economico: 3}},
			{Text: "Comunicazione e Apertura", Points: Points{Turismo: 3}},
			{Text: "Precisione e Progettazione", Points: Points{Costruzioni: 3, Elettronica: 2}},
			{Text: "Natura e Ambiente", Points: Points{Agraria: 3}},
			{Text: "Creatività e Servizio", Points: Points{Professionale: 3}},
		},
	},
	{
		ID:     5,
		Prompt: "In quale ambiente ti vedresti meglio a lavorare?",
		Options: []Option{
			{Text: "Un ufficio moderno e tecnologico", Points: Points{Economico: 3, Elettronica: 2}},
			{Text: "In giro per il mondo o a contatto con turisti", Points: Points{Turismo: 3}},
			{Text: "Uno studio di architettura o all'esterno", Points: Points{Costruzioni: 3, Agraria: 2}},
			{Text: "Un laboratorio tecnico o scientifico", Points: Points{Elettronica: 2, Agraria: 2}},
			{Text: "Un ristorante, un ospedale o a contatto con la gente", Points: Points{Professionale: 3}},
		},
	},
}

var recommendations = [NumCategories]string{
	Economico:     "Istituto Tecnico Economico (AFM / Sistemi Informativi Aziendali)",
	Turismo:       "Istituto Tecnico Economico - Indirizzo Turismo",
	Costruzioni:   "Istituto Tecnico Tecnologico - Costruzioni, Ambiente e Territorio (CAT)",
	Agraria:       "Istituto Tecnico Tecnologico - Agraria e Agroalimentare",
	Elettronica:   "Istituto Tecnico Tecnologico - Elettronica ed Automazione",
	Professionale: "Istituto Professionale (Enogastronomia o Sanità/Assistenza)",
}

// DefaultQuestions returns the orientation questionnaire. Callers get their own slice header.
func DefaultQuestions() []Question {
	out := make([]Question, len(defaultQuestions))
	copy(out, defaultQuestions)
	return out
}

// Recommendation is the school track shown for a winning category.
func Recommendation(c Category) string {
	if !c.Valid() {
		return ""
	}
	return recommendations[c]
}

// CompletionQuestion is the chat turn posted on the visitor's behalf when a quiz is finished.
func CompletionQuestion(recommendation string) string {
	return fmt.Sprintf("Ho completato il quiz di orientamento e il risultato è: \"%s\". Puoi darmi maggiori dettagli su questo indirizzo di studio e dirmi perché potrebbe essere adatto a me?", recommendation)
}

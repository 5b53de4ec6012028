package shell

// Prompt is a canned question offered by the sidebar or the empty chat.
type Prompt struct {
	Icon  string `json:"icon"`
	Label string `json:"label"`
	Text  string `json:"text"`
}

var faqItems = []Prompt{
	{Icon: "🏫", Label: "Quali indirizzi offre la scuola?", Text: "Quali indirizzi offre la scuola?"},
	{Icon: "💼", Label: "Sbocchi lavorativi post-diploma", Text: "Sbocchi lavorativi post-diploma"},
	{Icon: "🧪", Label: "Come sono i laboratori?", Text: "Come sono i laboratori?"},
	{Icon: "🌍", Label: "Progetti Erasmus e viaggi", Text: "Progetti Erasmus e viaggi"},
	{Icon: "🚌", Label: "Dove si trova la sede?", Text: "Dove si trova la sede?"},
}

var quickActions = []Prompt{
	{Icon: "graduation-cap", Label: "Indirizzi", Text: "Quali indirizzi di studio ci sono?"},
	{Icon: "beaker", Label: "Laboratori", Text: "Come sono i laboratori della scuola?"},
	{Icon: "map-pin", Label: "Sedi", Text: "Dove si trovano le sedi della scuola?"},
	{Icon: "sparkles", Label: "Progetti", Text: "Quali progetti extrascolastici fate?"},
}

func FAQ() []Prompt {
	return append([]Prompt(nil), faqItems...)
}

func QuickActions() []Prompt {
	return append([]Prompt(nil), quickActions...)
}

func lookup(list []Prompt, index int) (Prompt, error) {
	if index < 0 || index >= len(list) {
		return Prompt{}, ErrUnknownFAQ
	}
	return list[index], nil
}

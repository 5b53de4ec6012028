package quiz

import "fmt"

// Category is one of the six school tracks the quiz can recommend.
type Category int

// Declaration order is the canonical order used for tie-breaks.
const (
	Economico Category = iota
	Turismo
	Costruzioni
	Agraria
	Elettronica
	Professionale

	NumCategories = int(Professionale) + 1
)

var categoryNames = [NumCategories]string{
	"ECONOMICO",
	"TURISMO",
	"COSTRUZIONI",
	"AGRARIA",
	"ELETTRONICA",
	"PROFESSIONALE",
}

// Categories lists every category in canonical order.
func Categories() []Category {
	out := make([]Category, NumCategories)
	for i := range out {
		out[i] = Category(i)
	}
	return out
}

func (c Category) Valid() bool {
	return c >= 0 && int(c) < NumCategories
}

func (c Category) String() string {
	if !c.Valid() {
		return fmt.Sprintf("Category(%d)", int(c))
	}
	return categoryNames[c]
}

func (c Category) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("invalid category %d", int(c))
	}
	return []byte(categoryNames[c]), nil
}

func (c *Category) UnmarshalText(text []byte) error {
	parsed, err := ParseCategory(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseCategory maps a category name back to its value.
func ParseCategory(name string) (Category, error) {
	for i, n := range categoryNames {
		if n == name {
			return Category(i), nil
		}
	}
	return 0, fmt.Errorf("unknown category %q", name)
}

// Points holds one integer per category, indexed by Category.
type Points [NumCategories]int

// Tally is the running score of one quiz instance.
type Tally = Points

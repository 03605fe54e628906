package grid

import "strings"

// Candidate is one entity offered by a Picker.
type Candidate struct {
	ID   int
	Name string
}

// BlurResult is what a Picker decided when its input lost focus.
type BlurResult int

const (
	BlurNone    BlurResult = iota // nothing to do
	BlurMatched                   // the text named exactly one candidate, now selected
	BlurCreate                    // no candidate matched: offer to create one
)

// Picker is the state of an autocomplete reference field.
type Picker struct {
	Text       string
	SelectedID int
	Open       bool

	// Set when a suggestion was chosen; the blur that follows the click
	// must not re-resolve the text.
	suppressNextBlur bool
}

// Type records typed text. Any previous selection is dropped.
func (p *Picker) Type(text string) {
	if text == p.Text && p.SelectedID != 0 {
		return
	}
	p.Text = text
	p.SelectedID = 0
	p.Open = strings.TrimSpace(text) != ""
}

// Choose selects a suggestion.
func (p *Picker) Choose(id int, name string) {
	p.Text = name
	p.SelectedID = id
	p.Open = false
	p.suppressNextBlur = true
}

// Resolve selects id without affecting the next blur.
func (p *Picker) Resolve(id int, name string) {
	p.Text = name
	p.SelectedID = id
	p.Open = false
}

// SuppressingBlur reports whether the next Blur will be ignored.
func (p Picker) SuppressingBlur() bool {
	return p.suppressNextBlur
}

// Blur resolves the typed text against candidates by exact case-insensitive
// name.
func (p *Picker) Blur(candidates []Candidate) BlurResult {
	p.Open = false
	if p.suppressNextBlur {
		p.suppressNextBlur = false
		return BlurNone
	}
	if strings.TrimSpace(p.Text) == "" {
		p.SelectedID = 0
		return BlurNone
	}
	if c, ok := ExactMatch(candidates, p.Text); ok {
		p.Resolve(c.ID, c.Name)
		return BlurMatched
	}
	p.SelectedID = 0
	return BlurCreate
}

// Suggestions returns up to limit candidates whose name contains the typed
// text. A limit of zero returns all matches.
func (p Picker) Suggestions(candidates []Candidate, limit int) []Candidate {
	needle := Fold(p.Text)
	if needle == "" {
		return nil
	}
	var out []Candidate
	for _, c := range candidates {
		if containsFolded(c.Name, needle) {
			out = append(out, c)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out
}

// ExactMatch finds the first candidate whose name equals name ignoring case.
func ExactMatch(candidates []Candidate, name string) (Candidate, bool) {
	for _, c := range candidates {
		if EqualFold(c.Name, name) {
			return c, true
		}
	}
	return Candidate{}, false
}

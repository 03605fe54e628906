package domain

// FieldType is the semantic type of an entity field.
type FieldType string

const (
	FieldText   FieldType = "text"
	FieldChoice FieldType = "choice"
	FieldNumber FieldType = "number"
	FieldDate   FieldType = "date"
)

// Choice is one allowed value of an enumerated field.
type Choice struct {
	Value string
	Label string
}

// FieldDef describes one column of a resource. The position of a FieldDef
// in its resource's list is the column index used by filters.
type FieldDef struct {
	Name     string    // Gateway payload name (e.g. "nome")
	Label    string    // Column header
	Type     FieldType // Semantic type
	Choices  []Choice  // Allowed values when Type is FieldChoice
	Required bool      // Must be non-empty before saving
	ReadOnly bool      // Displayed but not editable inline
}

// Allows reports whether v is one of the field's choices. Fields without
// choices accept any value.
func (f FieldDef) Allows(v string) bool {
	if len(f.Choices) == 0 {
		return true
	}
	for _, c := range f.Choices {
		if c.Value == v {
			return true
		}
	}
	return false
}

// ChoiceLabel returns the label for v, or v itself when unknown.
func (f FieldDef) ChoiceLabel(v string) string {
	for _, c := range f.Choices {
		if c.Value == v {
			return c.Label
		}
	}
	return v
}

// Editable reports whether the field may be changed inline.
func (f FieldDef) Editable() bool {
	return !f.ReadOnly
}

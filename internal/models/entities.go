package models

// Medication is a single prescription line recognised in free text.
type Medication struct {
	Name         string `json:"name"`
	Dose         string `json:"dose"`
	Freq         string `json:"freq"`
	FreqExpanded string `json:"freq_expanded"`
	Route        string `json:"route"`
	Raw          string `json:"raw"`
}

type Entities struct {
	Medications []Medication `json:"medications"`
	Symptoms    []string     `json:"symptoms"`
	Diet        []string     `json:"diet"`
}

// NewEntities returns Entities with empty, non-nil lists.
func NewEntities() Entities {
	return Entities{
		Medications: []Medication{},
		Symptoms:    []string{},
		Diet:        []string{},
	}
}

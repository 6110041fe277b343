package models

import (
	"fmt"
)

// NotePayload is the full structured body of a tasting note. It is
// serialized as JSON into the note_json column; the search triggers read
// nose_notes, palate_notes, and conclusion from it by JSON path, so
// those keys must stay stable.
type NotePayload struct {
	Wine        WineIdentity `json:"wine"`
	Scores      Scores       `json:"scores"`
	Descriptors Descriptors  `json:"descriptors"`
	Readiness   Readiness    `json:"readiness"`

	AppearanceNotes string `json:"appearance_notes,omitempty"`
	NoseNotes       string `json:"nose_notes,omitempty"`
	PalateNotes     string `json:"palate_notes,omitempty"`
	StructureNotes  string `json:"structure_notes,omitempty"`
	FinishNotes     string `json:"finish_notes,omitempty"`
	OverallNotes    string `json:"overall_notes,omitempty"`
	Conclusion      string `json:"conclusion,omitempty"`
}

// WineIdentity identifies the wine itself.
type WineIdentity struct {
	Producer       string     `json:"producer"`
	Cuvee          string     `json:"cuvee"`
	Vintage        *int       `json:"vintage,omitempty"`
	Country        string     `json:"country"`
	Region         string     `json:"region"`
	Subregion      string     `json:"subregion,omitempty"`
	Appellation    string     `json:"appellation,omitempty"`
	Vineyard       string     `json:"vineyard,omitempty"`
	Grapes         StringList `json:"grapes"`
	Color          *WineColor `json:"color,omitempty"`
	AlcoholPercent *float64   `json:"alcohol_percent,omitempty"`
	BottleSizeML   int        `json:"bottle_size_ml,omitempty"`
}

// SubScores are the individual scoring components of the 100-point
// system. Each component has a fixed maximum; the maxima sum to 100.
type SubScores struct {
	Appearance         int `json:"appearance"`          // 0-2
	Nose               int `json:"nose"`                // 0-12
	Palate             int `json:"palate"`              // 0-20
	StructureBalance   int `json:"structure_balance"`   // 0-20
	Finish             int `json:"finish"`              // 0-10
	TypicityComplexity int `json:"typicity_complexity"` // 0-16
	OverallJudgment    int `json:"overall_judgment"`    // 0-20
}

// Scores holds the complete scoring information for a note.
type Scores struct {
	System            string       `json:"system"`
	SubScores         SubScores    `json:"subscores"`
	Total             int          `json:"total"`
	QualityBand       *QualityBand `json:"quality_band,omitempty"`
	PersonalEnjoyment *int         `json:"personal_enjoyment,omitempty"` // 0-10
	ValueForMoney     *int         `json:"value_for_money,omitempty"`    // 0-10
}

// Descriptors collect aroma and flavor descriptors by category.
type Descriptors struct {
	PrimaryFruit StringList `json:"primary_fruit"`
	Secondary    StringList `json:"secondary"`
	Tertiary     StringList `json:"tertiary"`
	NonFruit     StringList `json:"non_fruit"`
	Texture      StringList `json:"texture"`
}

// DrinkOrHold is the drink/hold recommendation.
type DrinkOrHold string

const (
	DrinkOrHoldDrink  DrinkOrHold = "drink"
	DrinkOrHoldHold   DrinkOrHold = "hold"
	DrinkOrHoldUnsure DrinkOrHold = "unsure"
)

// Readiness is the drinking window recommendation.
type Readiness struct {
	DrinkOrHold     DrinkOrHold `json:"drink_or_hold"`
	WindowStartYear *int        `json:"window_start_year,omitempty"`
	WindowEndYear   *int        `json:"window_end_year,omitempty"`
	Notes           string      `json:"notes,omitempty"`
}

// ScoringSystem names the scoring system used for new notes.
const ScoringSystem = "cellarlog-100"

// MaxTotalScore caps the computed total.
const MaxTotalScore = 100

// subscoreRange defines the allowed bounds for one scoring component.
type subscoreRange struct {
	Name string
	Min  int
	Max  int
}

// subscoreRanges lists every component with its bounds, in display order.
var subscoreRanges = []subscoreRange{
	{"appearance", 0, 2},
	{"nose", 0, 12},
	{"palate", 0, 20},
	{"structure_balance", 0, 20},
	{"finish", 0, 10},
	{"typicity_complexity", 0, 16},
	{"overall_judgment", 0, 20},
}

// components returns the subscores in the same order as subscoreRanges.
func (s SubScores) components() []int {
	return []int{
		s.Appearance,
		s.Nose,
		s.Palate,
		s.StructureBalance,
		s.Finish,
		s.TypicityComplexity,
		s.OverallJudgment,
	}
}

// Total sums the components, capped at MaxTotalScore.
func (s SubScores) Total() int {
	total := 0
	for _, v := range s.components() {
		total += v
	}
	if total > MaxTotalScore {
		return MaxTotalScore
	}
	return total
}

// Validate returns one message per out-of-range component.
func (s SubScores) Validate() []string {
	var errs []string
	for i, v := range s.components() {
		r := subscoreRanges[i]
		if v < r.Min || v > r.Max {
			errs = append(errs, fmt.Sprintf("subscore '%s' must be between %d and %d, got %d", r.Name, r.Min, r.Max, v))
		}
	}
	return errs
}

// DetermineQualityBand maps a total score to its band.
func DetermineQualityBand(total int) QualityBand {
	switch {
	case total < 70:
		return QualityBandPoor
	case total < 80:
		return QualityBandAcceptable
	case total < 90:
		return QualityBandGood
	case total < 95:
		return QualityBandVeryGood
	default:
		return QualityBandOutstanding
	}
}

// Recalculate recomputes the total and quality band from the subscores.
func (s *Scores) Recalculate() {
	s.Total = s.SubScores.Total()
	band := DetermineQualityBand(s.Total)
	s.QualityBand = &band
}

// DefaultScoreLevels are the reference score levels shown on the
// calibration page when the user has not defined their own notes.
var DefaultScoreLevels = []int{50, 60, 70, 80, 85, 90, 95}

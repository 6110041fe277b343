package service

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/cellarlog/cellarlog/internal/constants"
	"github.com/cellarlog/cellarlog/internal/models"
)

// Rule-based parser that turns captured free text into a note payload.
// It understands two shapes of input, usually mixed:
//
//   - "key: value" lines (producer, cuvee, vintage, country, region,
//     grapes, score, nose, palate, finish, conclusion, ...)
//   - loose prose, from which it pulls a vintage year, a score written
//     as "92/100" or "92 pts", and a wine color word
//
// Anything it can't place lands in the overall notes, so no captured
// text is lost.
const (
	parserName    = "rule"
	parserVersion = "1.2"
)

var (
	vintageRe = regexp.MustCompile(`\b(19[0-9]{2}|20[0-9]{2})\b`)
	scoreRe   = regexp.MustCompile(`\b([0-9]{2,3})\s*(?:/\s*100|pts?\b|points\b)`)
)

// wineColorWords maps prose words to wine colors. Checked in order so
// "sparkling rose" reads as sparkling.
var wineColorWords = []struct {
	word  string
	color models.WineColor
}{
	{"sparkling", models.WineColorSparkling},
	{"champagne", models.WineColorSparkling},
	{"fortified", models.WineColorFortified},
	{"orange wine", models.WineColorOrange},
	{"rose", models.WineColorRose},
	{"rosé", models.WineColorRose},
	{"white", models.WineColorWhite},
	{"red", models.WineColorRed},
}

// parseError marks a parse failure with its retry category.
type parseError struct {
	category constants.ErrorCategory
	msg      string
}

func (e *parseError) Error() string { return e.msg }

// parseRawNote converts raw captured text into a note payload. strict
// requires the text to identify a wine (producer or vintage); relaxed
// passes accept anything non-empty and leave identity blank.
func parseRawNote(rawText string, strict bool) (*models.NotePayload, error) {
	text := strings.TrimSpace(rawText)
	if text == "" {
		return nil, &parseError{category: constants.ErrorCategoryEmptyInput, msg: "no usable text"}
	}

	payload := &models.NotePayload{}
	var leftover []string

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		key, value, ok := splitKeyValue(line)
		if !ok || !applyField(payload, key, value) {
			leftover = append(leftover, line)
		}
	}

	prose := strings.Join(leftover, "\n")

	// Pull a score out of the prose if no subscores were given
	if payload.Scores.SubScores == (models.SubScores{}) {
		if m := scoreRe.FindStringSubmatch(prose); m != nil {
			if total, err := strconv.Atoi(m[1]); err == nil && total <= models.MaxTotalScore {
				payload.Scores.SubScores = distributeScore(total)
			}
		}
	}

	// Pull a vintage out of the prose if none was declared
	if payload.Wine.Vintage == nil {
		if m := vintageRe.FindString(prose); m != "" {
			year, _ := strconv.Atoi(m)
			payload.Wine.Vintage = &year
		}
	}

	// Pull a color word out of the prose
	if payload.Wine.Color == nil {
		lower := strings.ToLower(prose)
		for _, cw := range wineColorWords {
			if strings.Contains(lower, cw.word) {
				color := cw.color
				payload.Wine.Color = &color
				break
			}
		}
	}

	if payload.OverallNotes == "" && prose != "" {
		payload.OverallNotes = prose
	}

	if strict && payload.Wine.Producer == "" && payload.Wine.Vintage == nil {
		return nil, &parseError{
			category: constants.ErrorCategoryParseFailed,
			msg:      "could not identify a wine: no producer or vintage found",
		}
	}

	return payload, nil
}

// splitKeyValue splits a "key: value" line. Lines whose "key" part
// looks like prose (too long, or containing sentence punctuation) are
// not treated as fields.
func splitKeyValue(line string) (string, string, bool) {
	idx := strings.Index(line, ":")
	if idx <= 0 {
		return "", "", false
	}
	key := strings.ToLower(strings.TrimSpace(line[:idx]))
	value := strings.TrimSpace(line[idx+1:])
	if value == "" || len(key) > 24 || strings.ContainsAny(key, ".,;!?") {
		return "", "", false
	}
	key = strings.ReplaceAll(key, " ", "_")
	return key, value, true
}

// applyField routes a parsed key/value onto the payload. Unknown keys
// return false so the line is kept as prose.
func applyField(p *models.NotePayload, key, value string) bool {
	switch key {
	case "producer", "winery", "domaine":
		p.Wine.Producer = value
	case "cuvee", "cuvée", "wine", "name":
		p.Wine.Cuvee = value
	case "vintage", "year":
		year, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || year < 1900 || year > 2100 {
			return false
		}
		p.Wine.Vintage = &year
	case "country":
		p.Wine.Country = value
	case "region":
		p.Wine.Region = value
	case "subregion":
		p.Wine.Subregion = value
	case "appellation", "aoc", "ava", "doc", "docg":
		p.Wine.Appellation = value
	case "vineyard":
		p.Wine.Vineyard = value
	case "grapes", "grape", "varieties", "variety", "blend":
		p.Wine.Grapes = splitList(value)
	case "color", "colour":
		if color, ok := parseWineColor(value); ok {
			p.Wine.Color = &color
		} else {
			return false
		}
	case "abv", "alcohol":
		v := strings.TrimSuffix(strings.TrimSpace(value), "%")
		if pct, err := strconv.ParseFloat(v, 64); err == nil && pct > 0 && pct < 30 {
			p.Wine.AlcoholPercent = &pct
		} else {
			return false
		}
	case "score", "rating", "points":
		m := scoreRe.FindStringSubmatch(value)
		raw := value
		if m != nil {
			raw = m[1]
		}
		total, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || total < 0 || total > models.MaxTotalScore {
			return false
		}
		p.Scores.SubScores = distributeScore(total)
	case "appearance":
		p.AppearanceNotes = value
	case "nose", "aroma", "aromas":
		p.NoseNotes = value
	case "palate", "taste":
		p.PalateNotes = value
	case "structure", "balance":
		p.StructureNotes = value
	case "finish":
		p.FinishNotes = value
	case "conclusion", "verdict", "overall":
		p.Conclusion = value
	case "drink", "drink_or_hold":
		switch strings.ToLower(value) {
		case "drink", "now":
			p.Readiness.DrinkOrHold = models.DrinkOrHoldDrink
		case "hold", "wait", "cellar":
			p.Readiness.DrinkOrHold = models.DrinkOrHoldHold
		default:
			p.Readiness.DrinkOrHold = models.DrinkOrHoldUnsure
		}
	default:
		return false
	}
	return true
}

func parseWineColor(value string) (models.WineColor, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "red":
		return models.WineColorRed, true
	case "white":
		return models.WineColorWhite, true
	case "rose", "rosé":
		return models.WineColorRose, true
	case "orange":
		return models.WineColorOrange, true
	case "sparkling":
		return models.WineColorSparkling, true
	case "fortified":
		return models.WineColorFortified, true
	default:
		return "", false
	}
}

func splitList(value string) models.StringList {
	parts := strings.FieldsFunc(value, func(r rune) bool {
		return r == ',' || r == ';' || r == '/'
	})
	var out models.StringList
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// distributeScore spreads a 100-point total across the subscore
// components proportionally to their maxima, adjusting the overall
// judgment component so the components sum back to the total.
func distributeScore(total int) models.SubScores {
	maxima := models.SubScores{
		Appearance:         2,
		Nose:               12,
		Palate:             20,
		StructureBalance:   20,
		Finish:             10,
		TypicityComplexity: 16,
		OverallJudgment:    20,
	}
	s := models.SubScores{
		Appearance:         total * maxima.Appearance / 100,
		Nose:               total * maxima.Nose / 100,
		Palate:             total * maxima.Palate / 100,
		StructureBalance:   total * maxima.StructureBalance / 100,
		Finish:             total * maxima.Finish / 100,
		TypicityComplexity: total * maxima.TypicityComplexity / 100,
	}
	rest := total - s.Appearance - s.Nose - s.Palate - s.StructureBalance - s.Finish - s.TypicityComplexity
	if rest > maxima.OverallJudgment {
		// Push the remainder into components with headroom, largest first
		overflow := rest - maxima.OverallJudgment
		s.OverallJudgment = maxima.OverallJudgment
		for overflow > 0 {
			switch {
			case s.Palate < maxima.Palate:
				s.Palate++
			case s.StructureBalance < maxima.StructureBalance:
				s.StructureBalance++
			case s.TypicityComplexity < maxima.TypicityComplexity:
				s.TypicityComplexity++
			case s.Nose < maxima.Nose:
				s.Nose++
			case s.Finish < maxima.Finish:
				s.Finish++
			case s.Appearance < maxima.Appearance:
				s.Appearance++
			default:
				return s
			}
			overflow--
		}
	} else {
		s.OverallJudgment = rest
	}
	return s
}

// describeSubScores is used in conversion run details.
func describeSubScores(s models.SubScores) string {
	return fmt.Sprintf("appearance=%d nose=%d palate=%d structure=%d finish=%d typicity=%d overall=%d",
		s.Appearance, s.Nose, s.Palate, s.StructureBalance, s.Finish, s.TypicityComplexity, s.OverallJudgment)
}

// Package importer parses CSV and JSON deck text into normalized cards.
package importer

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/dkempf/kartei/internal/domain"
)

// Format identifies the deck text format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// ErrEmptyDeck is returned when parsing yields no cards at all.
var ErrEmptyDeck = errors.New("deck contains no cards")

// fallbackSubject is used for rows that carry no subject field.
const fallbackSubject = "SG?"

var validate = validator.New()

// DetectFormat guesses the deck format from a file name. Anything that is not
// JSON is treated as CSV.
func DetectFormat(name string) Format {
	if strings.HasSuffix(strings.ToLower(name), ".json") {
		return FormatJSON
	}
	return FormatCSV
}

// Parse reads deck text and returns normalized, validated cards. A single
// invalid card fails the whole import so the store is never partially updated.
func Parse(r io.Reader, format Format) ([]domain.Card, error) {
	var (
		cards []domain.Card
		err   error
	)
	switch format {
	case FormatJSON:
		cards, err = parseJSON(r)
	case FormatCSV:
		cards, err = parseCSV(r)
	default:
		return nil, fmt.Errorf("unknown deck format %q", format)
	}
	if err != nil {
		return nil, err
	}
	if len(cards) == 0 {
		return nil, ErrEmptyDeck
	}
	for i, c := range cards {
		if err := validateCard(c); err != nil {
			return nil, fmt.Errorf("card %d (%q): %w", i+1, c.Question, err)
		}
	}
	return cards, nil
}

// rawCard is the permissive import shape: options are either a structured
// list or a pipe-separated string, correct either a list or a string.
type rawCard struct {
	ID          int64           `json:"id"`
	Subject     string          `json:"subject"`
	Question    string          `json:"question"`
	Options     json.RawMessage `json:"options"`
	Correct     json.RawMessage `json:"correct"`
	Explanation string          `json:"explanation"`
}

func parseJSON(r io.Reader) ([]domain.Card, error) {
	var raws []rawCard
	dec := json.NewDecoder(r)
	if err := dec.Decode(&raws); err != nil {
		return nil, fmt.Errorf("invalid deck JSON: %w", err)
	}

	var cards []domain.Card
	for _, raw := range raws {
		c, err := normalize(raw)
		if err != nil {
			return nil, err
		}
		if c.Question == "" {
			continue
		}
		cards = append(cards, c)
	}
	return cards, nil
}

func parseCSV(r io.Reader) ([]domain.Card, error) {
	text, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read deck: %w", err)
	}

	reader := csv.NewReader(strings.NewReader(string(text)))
	reader.Comma = detectDelimiter(string(text))
	reader.FieldsPerRecord = -1 // Rows may omit trailing columns.
	reader.LazyQuotes = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("invalid deck CSV: %w", err)
	}

	var cards []domain.Card
	for i, row := range rows {
		if i == 0 && isHeaderRow(row) {
			continue
		}
		raw := rawCard{}
		if len(row) > 0 {
			raw.Subject = row[0]
		}
		if len(row) > 1 {
			raw.Question = row[1]
		}
		if len(row) > 2 {
			raw.Options, _ = json.Marshal(row[2])
		}
		if len(row) > 3 {
			raw.Correct, _ = json.Marshal(row[3])
		}
		if len(row) > 4 {
			raw.Explanation = row[4]
		}
		c, err := normalize(raw)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		if c.Question == "" {
			continue
		}
		cards = append(cards, c)
	}
	return cards, nil
}

// detectDelimiter picks ';' or ',' by which occurs more often in the first
// three lines.
func detectDelimiter(text string) rune {
	lines := strings.SplitN(text, "\n", 4)
	if len(lines) > 3 {
		lines = lines[:3]
	}
	sample := strings.Join(lines, "\n")
	if strings.Count(sample, ";") >= strings.Count(sample, ",") {
		return ';'
	}
	return ','
}

func isHeaderRow(row []string) bool {
	for _, cell := range row {
		c := strings.ToLower(strings.TrimSpace(cell))
		if c == "subject" || c == "question" {
			return true
		}
	}
	return false
}

// optionPattern matches "a) some text" option entries.
var optionPattern = regexp.MustCompile(`(?i)^([a-z])\)\s*(.*)$`)

// normalize turns a permissive raw card into the canonical shape: trimmed
// fields, lowercase keys, and a stable content-derived id.
func normalize(raw rawCard) (domain.Card, error) {
	c := domain.Card{
		Subject:     strings.TrimSpace(raw.Subject),
		Question:    strings.TrimSpace(raw.Question),
		Explanation: strings.TrimSpace(raw.Explanation),
	}
	if c.Subject == "" {
		c.Subject = fallbackSubject
	}

	options, err := decodeOptions(raw.Options)
	if err != nil {
		return domain.Card{}, err
	}
	c.Options = options

	correct, err := decodeCorrect(raw.Correct)
	if err != nil {
		return domain.Card{}, err
	}
	c.Correct = correct

	if raw.ID != 0 {
		c.ID = raw.ID
	} else {
		c.ID = StableID(c.Subject, c.Question)
	}
	return c, nil
}

func decodeOptions(raw json.RawMessage) ([]domain.Option, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var structured []domain.Option
	if err := json.Unmarshal(raw, &structured); err == nil {
		for i := range structured {
			structured[i].Key = strings.ToLower(strings.TrimSpace(structured[i].Key))
			structured[i].Text = strings.TrimSpace(structured[i].Text)
		}
		return structured, nil
	}

	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return nil, fmt.Errorf("options must be a list or a pipe-separated string: %s", raw)
	}

	var options []domain.Option
	for _, part := range strings.Split(text, "|") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if m := optionPattern.FindStringSubmatch(part); m != nil {
			options = append(options, domain.Option{Key: strings.ToLower(m[1]), Text: strings.TrimSpace(m[2])})
		} else {
			options = append(options, domain.Option{Key: "?", Text: part})
		}
	}
	return options, nil
}

var correctSplitter = regexp.MustCompile(`[\s,]+`)

func decodeCorrect(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		var keys []string
		for _, k := range list {
			k = strings.ToLower(strings.TrimSpace(k))
			if k != "" {
				keys = append(keys, k)
			}
		}
		return keys, nil
	}

	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return nil, fmt.Errorf("correct must be a list or a string: %s", raw)
	}
	var keys []string
	for _, k := range correctSplitter.Split(text, -1) {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

// StableID derives a deterministic card id from subject and question with
// FNV-1a, so importing the same question twice overwrites instead of
// duplicating. The 32-bit hash is taken as signed and its absolute value
// returned, keeping ids positive and within int32 range.
func StableID(subject, question string) int64 {
	h := fnv.New32a()
	h.Write([]byte(subject))
	h.Write([]byte("||"))
	h.Write([]byte(question))
	id := int64(int32(h.Sum32()))
	if id < 0 {
		id = -id
	}
	return id
}

// validateCard enforces the card contract beyond struct tags: option keys are
// unique within the card and every correct key references an option.
func validateCard(c domain.Card) error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid card: %w", err)
	}
	seen := make(map[string]bool, len(c.Options))
	for _, o := range c.Options {
		if o.Key == "" {
			return fmt.Errorf("option with empty key")
		}
		if seen[o.Key] {
			return fmt.Errorf("duplicate option key %q", o.Key)
		}
		seen[o.Key] = true
	}
	for _, k := range c.Correct {
		if !seen[k] {
			return fmt.Errorf("correct key %q has no matching option", k)
		}
	}
	return nil
}

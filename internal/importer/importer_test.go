package importer

import (
	"errors"
	"math"
	"strings"
	"testing"
)

func TestParseCSVSemicolon(t *testing.T) {
	input := `subject;question;options;correct;explanation
SG4;Which statement is true?;"a) First | b) Second | c) Third";b;"a short mnemonic"
SG1;Pick two.;"a) One | b) Two | c) Three";"a,c";`

	cards, err := Parse(strings.NewReader(input), FormatCSV)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(cards) != 2 {
		t.Fatalf("got %d cards, want 2", len(cards))
	}

	c := cards[0]
	if c.Subject != "SG4" {
		t.Errorf("subject = %q, want SG4", c.Subject)
	}
	if len(c.Options) != 3 {
		t.Fatalf("got %d options, want 3", len(c.Options))
	}
	if c.Options[1].Key != "b" || c.Options[1].Text != "Second" {
		t.Errorf("option 1 = %+v, want {b Second}", c.Options[1])
	}
	if len(c.Correct) != 1 || c.Correct[0] != "b" {
		t.Errorf("correct = %v, want [b]", c.Correct)
	}
	if c.Explanation != "a short mnemonic" {
		t.Errorf("explanation = %q", c.Explanation)
	}

	multi := cards[1]
	if len(multi.Correct) != 2 || multi.Correct[0] != "a" || multi.Correct[1] != "c" {
		t.Errorf("multi correct = %v, want [a c]", multi.Correct)
	}
}

func TestParseCSVCommaWithoutHeader(t *testing.T) {
	input := `SG1,What is it?,"a) This | b) That",a,`

	cards, err := Parse(strings.NewReader(input), FormatCSV)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(cards) != 1 {
		t.Fatalf("got %d cards, want 1", len(cards))
	}
	if cards[0].Question != "What is it?" {
		t.Errorf("question = %q", cards[0].Question)
	}
}

func TestParseCSVSkipsRowsWithoutQuestion(t *testing.T) {
	input := `subject;question;options;correct
SG1;;a) X;a
SG1;Real question;"a) X | b) Y";a`

	cards, err := Parse(strings.NewReader(input), FormatCSV)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(cards) != 1 {
		t.Fatalf("got %d cards, want 1", len(cards))
	}
}

func TestParseJSONStructured(t *testing.T) {
	input := `[
	  {
	    "subject": "SG4",
	    "question": "Which key?",
	    "options": [{"k":"A","t":" Alpha "},{"k":"b","t":"Beta"}],
	    "correct": ["B"],
	    "explanation": " optional "
	  }
	]`

	cards, err := Parse(strings.NewReader(input), FormatJSON)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(cards) != 1 {
		t.Fatalf("got %d cards, want 1", len(cards))
	}
	c := cards[0]
	if c.Options[0].Key != "a" || c.Options[0].Text != "Alpha" {
		t.Errorf("option 0 = %+v, want lowercase trimmed {a Alpha}", c.Options[0])
	}
	if c.Correct[0] != "b" {
		t.Errorf("correct = %v, want [b]", c.Correct)
	}
	if c.Explanation != "optional" {
		t.Errorf("explanation = %q, want trimmed", c.Explanation)
	}
}

func TestParseJSONPipeOptions(t *testing.T) {
	input := `[{"subject":"SG1","question":"Q?","options":"a) One | b) Two","correct":"b"}]`

	cards, err := Parse(strings.NewReader(input), FormatJSON)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(cards[0].Options) != 2 {
		t.Fatalf("got %d options, want 2", len(cards[0].Options))
	}
	if cards[0].Correct[0] != "b" {
		t.Errorf("correct = %v", cards[0].Correct)
	}
}

func TestStableIDDeterministic(t *testing.T) {
	a := StableID("SG1", "Same question")
	b := StableID("SG1", "Same question")
	if a != b {
		t.Errorf("StableID not deterministic: %d vs %d", a, b)
	}
	if a == StableID("SG2", "Same question") {
		t.Error("StableID ignores subject")
	}
	if a == StableID("SG1", "Other question") {
		t.Error("StableID ignores question")
	}
}

func TestStableIDPositiveInt32(t *testing.T) {
	// "SG1||high bit" style inputs can set the top hash bit; the id must
	// still come out positive and within int32 range.
	inputs := []struct{ subject, question string }{
		{"SG1", "Question"},
		{"SG2", "a"},
		{"SG?", ""},
		{"SG3", "Ein längerer Fragetext mit Umlauten äöü"},
	}
	for _, in := range inputs {
		id := StableID(in.subject, in.question)
		if id < 0 || id > math.MaxInt32 {
			t.Errorf("StableID(%q, %q) = %d, want 0 <= id <= MaxInt32", in.subject, in.question, id)
		}
	}
}

func TestReimportKeepsID(t *testing.T) {
	input := `SG1;Repeatable question;"a) X | b) Y";a`

	first, err := Parse(strings.NewReader(input), FormatCSV)
	if err != nil {
		t.Fatal(err)
	}
	second, err := Parse(strings.NewReader(input), FormatCSV)
	if err != nil {
		t.Fatal(err)
	}
	if first[0].ID != second[0].ID {
		t.Errorf("re-import changed id: %d vs %d", first[0].ID, second[0].ID)
	}
}

func TestParseRejectsUnknownCorrectKey(t *testing.T) {
	input := `SG1;Broken card;"a) X | b) Y";z`

	if _, err := Parse(strings.NewReader(input), FormatCSV); err == nil {
		t.Fatal("expected error for correct key without matching option")
	}
}

func TestParseRejectsDuplicateOptionKeys(t *testing.T) {
	input := `[{"subject":"SG1","question":"Q?","options":[{"k":"a","t":"One"},{"k":"a","t":"Two"}],"correct":["a"]}]`

	if _, err := Parse(strings.NewReader(input), FormatJSON); err == nil {
		t.Fatal("expected error for duplicate option keys")
	}
}

func TestParseEmptyDeck(t *testing.T) {
	if _, err := Parse(strings.NewReader("[]"), FormatJSON); !errors.Is(err, ErrEmptyDeck) {
		t.Fatalf("err = %v, want ErrEmptyDeck", err)
	}
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name string
		want Format
	}{
		{"deck.json", FormatJSON},
		{"DECK.JSON", FormatJSON},
		{"deck.csv", FormatCSV},
		{"deck.txt", FormatCSV},
	}
	for _, tt := range tests {
		if got := DetectFormat(tt.name); got != tt.want {
			t.Errorf("DetectFormat(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestSampleDeckIsValid(t *testing.T) {
	cards := Sample()
	if len(cards) == 0 {
		t.Fatal("sample deck is empty")
	}
	for _, c := range cards {
		if err := validateCard(c); err != nil {
			t.Errorf("sample card %q: %v", c.Question, err)
		}
		if c.ID == 0 {
			t.Errorf("sample card %q has no id", c.Question)
		}
	}
}

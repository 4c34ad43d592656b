package importer

import "github.com/dkempf/kartei/internal/domain"

// Sample returns a small starter deck so the study flow can be tried before
// any real deck is imported.
func Sample() []domain.Card {
	raw := []rawCard{
		{
			Subject:  "SG1",
			Question: "Which rating makes a card due again after about 10 minutes?",
			Options:  mustJSON("a) Again | b) Hard | c) Easy"),
			Correct:  mustJSON("a"),
			Explanation: "Again is a lapse: the streak resets and the card " +
				"comes back almost immediately.",
		},
		{
			Subject:     "SG1",
			Question:    "What happens to the ease factor after a perfect recall?",
			Options:     mustJSON("a) It drops to 1.3 | b) It rises by 0.1 | c) It stays fixed"),
			Correct:     mustJSON("b"),
			Explanation: "Every review moves the ease; quality 5 earns the full bonus.",
		},
		{
			Subject:     "SG2",
			Question:    "In which order do cards fill a session by default?",
			Options:     mustJSON("a) Alphabetical | b) Random | c) By id"),
			Correct:     mustJSON("b"),
			Explanation: "Random, so no fixed ordering gets memorized.",
		},
		{
			Subject:     "SG2",
			Question:    "What share of a session is reserved for due reviews at most?",
			Options:     mustJSON("a) Half | b) 70 percent | c) All of it"),
			Correct:     mustJSON("b"),
			Explanation: "Due reviews fill first but are capped so fresh cards still appear.",
		},
		{
			Subject:     "SG3",
			Question:    "Which formats can decks be imported from?",
			Options:     mustJSON("a) CSV | b) JSON | c) Both"),
			Correct:     mustJSON("a, b, c"),
			Explanation: "Both formats normalize to the same card shape.",
		},
	}

	cards := make([]domain.Card, 0, len(raw))
	for _, r := range raw {
		c, err := normalize(r)
		if err != nil {
			panic(err) // The sample deck is static and always valid.
		}
		cards = append(cards, c)
	}
	return cards
}

func mustJSON(s string) []byte {
	return []byte(`"` + s + `"`)
}

package tokenizer

import "testing"

func TestTokenizeLowercasesAndSplits(t *testing.T) {
	tokens := Tokenize("Search Engines, and Indexing!", BodyColumn)
	var terms []string
	for _, tok := range tokens {
		terms = append(terms, tok.Term)
		if tok.Column != BodyColumn {
			t.Errorf("token %q has column %d, want %d", tok.Term, tok.Column, BodyColumn)
		}
	}
	want := []string{"search", "engin", "index"}
	if len(terms) != len(want) {
		t.Fatalf("terms = %v, want %v", terms, want)
	}
	for i, term := range want {
		if terms[i] != term {
			t.Errorf("terms[%d] = %q, want %q", i, terms[i], term)
		}
	}
}

func TestTokenizeDropsStopWordsAndShortWords(t *testing.T) {
	tokens := Tokenize("the a it of search", TitleColumn)
	if len(tokens) != 1 || tokens[0].Term != "search" {
		t.Fatalf("tokens = %v, want only [search]", tokens)
	}
}

func TestTokenizePositionsRestartPerCall(t *testing.T) {
	tokens := Tokenize("search engine search platform", BodyColumn)
	var positions []int32
	for _, tok := range tokens {
		positions = append(positions, tok.Position)
	}
	for i, pos := range positions {
		if pos != int32(i) {
			t.Errorf("positions[%d] = %d, want %d", i, pos, i)
		}
	}
}

func TestTokenizeEmptyInput(t *testing.T) {
	if tokens := Tokenize("", BodyColumn); len(tokens) != 0 {
		t.Fatalf("Tokenize(\"\") = %v, want empty", tokens)
	}
	if tokens := Tokenize("   ...   ", BodyColumn); len(tokens) != 0 {
		t.Fatalf("Tokenize(punctuation only) = %v, want empty", tokens)
	}
}

func TestStemCommonSuffixes(t *testing.T) {
	cases := map[string]string{
		"running":    "runn",
		"indexing":   "index",
		"searches":   "search",
		"documents":  "document",
		"organizing": "organize",
	}
	for word, want := range cases {
		if got := stem(word); got != want {
			t.Errorf("stem(%q) = %q, want %q", word, got, want)
		}
	}
}

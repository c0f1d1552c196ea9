package biblio

import (
	"errors"
	"testing"
)

func TestNormalizeStripsAccentsAndPunctuation(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Projeções da Consciência", "projecoes da consciencia"},
		{"  Vieira, Waldo;  ", "vieira waldo"},
		{"Léxico de Ortopensatas (2a ed.)", "lexico de ortopensatas 2a ed"},
		{"", ""},
		{"---", ""},
	}
	for _, c := range cases {
		if got := Normalize(c.in); got != c.want {
			t.Errorf("Normalize(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestTokenize(t *testing.T) {
	got := Tokenize("Homo sapiens reurbanisatus!")
	want := []string{"homo", "sapiens", "reurbanisatus"}
	if len(got) != len(want) {
		t.Fatalf("Tokenize = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Tokenize = %v, want %v", got, want)
		}
	}
}

func TestSeqRatio(t *testing.T) {
	if r := SeqRatio("conscienciograma", "conscienciograma"); r != 1.0 {
		t.Errorf("identical strings ratio = %v, want 1.0", r)
	}
	if r := SeqRatio("", "anything"); r != 0 {
		t.Errorf("empty ratio = %v, want 0", r)
	}
	high := SeqRatio("manual da proexis", "manual da proéxis")
	low := SeqRatio("manual da proexis", "temas da conscienciologia")
	if high <= low {
		t.Errorf("accent-variant ratio %v should exceed unrelated ratio %v", high, low)
	}
}

func TestWholeWordOverlap(t *testing.T) {
	if s := WholeWordOverlap("dupla evolutiva", "Manual da Dupla Evolutiva"); s != 1.0 {
		t.Errorf("full overlap = %v, want 1.0", s)
	}
	if s := WholeWordOverlap("dupla sonora", "Manual da Dupla Evolutiva"); s != 0.5 {
		t.Errorf("half overlap = %v, want 0.5", s)
	}
}

func TestYearScore(t *testing.T) {
	cases := []struct {
		query string
		year  int
		want  float64
	}{
		{"1994", 1994, 1.0},
		{"1994", 1995, 0.6},
		{"1994", 1997, 0.3},
		{"1994", 2010, 0},
		{"", 1994, 0},
		{"n/a", 1994, 0},
	}
	for _, c := range cases {
		if got := YearScore(c.query, c.year); got != c.want {
			t.Errorf("YearScore(%q, %d) = %v, want %v", c.query, c.year, got, c.want)
		}
	}
}

func testEntries() []Entry {
	return []Entry{
		{Author: "Vieira, Waldo", Title: "Projeções da Consciência", Kind: "livro", Year: 2002,
			Ref: "**Vieira**, Waldo; ***Projeções da Consciência***; 2002."},
		{Author: "Vieira, Waldo", Title: "Homo sapiens reurbanisatus", Kind: "livro", Year: 2003,
			Ref: "**Vieira**, Waldo; ***Homo sapiens reurbanisatus***; 2003."},
		{Author: "Silva, Maria", Title: "Estudos de caso em projeciologia", Kind: "artigo", Year: 2015,
			Ref: "**Silva**, Maria; ***Estudos de caso em projeciologia***; 2015."},
	}
}

func TestMatcherRanksByRelevance(t *testing.T) {
	m := NewMatcher(testEntries())

	got, err := m.Search(Query{Author: "vieira", Title: "projecoes da consciencia"}, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) == 0 {
		t.Fatal("no matches")
	}
	if got[0].Ref != "**Vieira**, Waldo; ***Projeções da Consciência***; 2002." {
		t.Fatalf("top match = %q", got[0].Ref)
	}
	if !got[0].IsBook {
		t.Error("top match should be flagged as book")
	}
	for i := 1; i < len(got); i++ {
		if got[i].Score > got[i-1].Score {
			t.Fatalf("results not sorted: %v", got)
		}
	}
}

func TestMatcherEmptyQuery(t *testing.T) {
	m := NewMatcher(testEntries())
	if _, err := m.Search(Query{}, 10); !errors.Is(err, ErrEmptyQuery) {
		t.Fatalf("err = %v, want ErrEmptyQuery", err)
	}
}

func TestMatcherYearPenalty(t *testing.T) {
	m := NewMatcher(testEntries())

	withYear, err := m.Search(Query{Title: "Homo sapiens reurbanisatus", Year: "1950"}, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	withoutYear, err := m.Search(Query{Title: "Homo sapiens reurbanisatus"}, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(withYear) > 0 && len(withoutYear) > 0 &&
		withYear[0].Score >= withoutYear[0].Score {
		t.Errorf("mismatched year should lower the score: %v >= %v",
			withYear[0].Score, withoutYear[0].Score)
	}
}

func TestMatcherTopK(t *testing.T) {
	m := NewMatcher(testEntries())
	got, err := m.Search(Query{Author: "vieira"}, 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
}

func TestReferenceFormat(t *testing.T) {
	ref := Reference{
		Authors:   []Author{{Surname: "Vieira", Given: "Waldo"}},
		Title:     "Projeciologia",
		Pages:     "1248 p.",
		Publisher: "Instituto Internacional de Projeciologia",
		Place:     "Rio de Janeiro, RJ",
		Year:      "1992",
		Kind:      "livro",
	}
	got := ref.Format()
	want := "**Vieira**, Waldo; ***Projeciologia***; 1248 p.; Instituto Internacional de Projeciologia; Rio de Janeiro, RJ; 1992."
	if got != want {
		t.Fatalf("Format() = %q, want %q", got, want)
	}
}

func TestReferenceFormatArticle(t *testing.T) {
	ref := Reference{
		Authors: []Author{{Surname: "Silva", Given: "Maria"}, {Surname: "Souza", Given: "Ana"}},
		Title:   "Estudos de caso",
		Journal: "Revista Conscientia",
		Year:    "2015",
		Kind:    "artigo",
	}
	got := ref.Format()
	want := "**Silva**, Maria; **Souza**, Ana; ***Estudos de caso***; Revista Conscientia; 2015."
	if got != want {
		t.Fatalf("Format() = %q, want %q", got, want)
	}
}

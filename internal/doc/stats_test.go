package doc

import "testing"

func TestComputeStatsEmpty(t *testing.T) {
	stats := ComputeStats("")
	if stats.Pages != 0 || stats.Paragraphs != 0 || stats.Words != 0 || stats.Symbols != 0 || stats.SymbolsWithSpaces != 0 {
		t.Errorf("empty document should be all zeros, got %+v", stats)
	}
}

func TestComputeStatsBasic(t *testing.T) {
	stats := ComputeStats("Hello world\n\nSecond paragraph here")
	if stats.Paragraphs != 2 {
		t.Errorf("paragraphs = %d, want 2", stats.Paragraphs)
	}
	if stats.Words != 5 {
		t.Errorf("words = %d, want 5", stats.Words)
	}
	if stats.Pages != 1 {
		t.Errorf("pages = %d, want 1", stats.Pages)
	}
	if stats.SymbolsWithSpaces < stats.Symbols {
		t.Errorf("symbolsWithSpaces %d < symbols %d", stats.SymbolsWithSpaces, stats.Symbols)
	}
}

func TestComputeStatsNeverNegative(t *testing.T) {
	inputs := []string{"", " ", "\n\n\n", "a", "word word word", "ação é útil"}
	for _, input := range inputs {
		stats := ComputeStats(input)
		if stats.Pages < 0 || stats.Paragraphs < 0 || stats.Words < 0 || stats.Symbols < 0 || stats.SymbolsWithSpaces < 0 {
			t.Errorf("negative stats for %q: %+v", input, stats)
		}
		if stats.SymbolsWithSpaces < stats.Symbols {
			t.Errorf("symbolsWithSpaces < symbols for %q: %+v", input, stats)
		}
		if stats.SymbolsWithSpaces > 0 && stats.Pages < 1 {
			t.Errorf("non-empty document with zero pages for %q", input)
		}
	}
}

func TestComputeStatsPageEstimate(t *testing.T) {
	long := make([]byte, 6500)
	for i := range long {
		long[i] = 'a'
	}
	stats := ComputeStats(string(long))
	if stats.Pages != 3 {
		t.Errorf("pages = %d, want 3 for 6500 characters", stats.Pages)
	}
}

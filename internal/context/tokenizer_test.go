package context

import "testing"

func TestTokenizer_Count(t *testing.T) {
	tok, err := NewTokenizer()
	if err != nil {
		t.Fatalf("NewTokenizer: %v", err)
	}

	if count := tok.Count("Hello, world!"); count <= 0 {
		t.Errorf("expected positive token count, got %d", count)
	}
	if count := tok.Count(""); count != 0 {
		t.Errorf("expected 0 tokens for empty string, got %d", count)
	}
}

func TestTokenizer_Truncate(t *testing.T) {
	tok, err := NewTokenizer()
	if err != nil {
		t.Fatalf("NewTokenizer: %v", err)
	}

	long := "Caching embeddings by content hash keeps repeated thoughts from reaching the model twice."
	truncated := tok.Truncate(long, 5)
	if len(truncated) >= len(long) {
		t.Error("truncated string should be shorter than original")
	}
	if n := tok.Count(truncated); n > 5 {
		t.Errorf("truncated to 5 tokens but Count says %d", n)
	}

	if got := tok.Truncate("Hi", 100); got != "Hi" {
		t.Errorf("short string should not be truncated: got %q", got)
	}
}

func TestTokenizer_NilFallback(t *testing.T) {
	var tok *Tokenizer
	if got := tok.Count("abcdefgh"); got != 2 {
		t.Errorf("nil tokenizer Count = %d, want 2", got)
	}
	if got := tok.Truncate("abcdefghij", 2); got != "abcdefgh" {
		t.Errorf("nil tokenizer Truncate = %q", got)
	}
}

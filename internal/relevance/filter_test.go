package relevance

import "testing"

func TestFilterCheck(t *testing.T) {
	filter := NewFilter(true)

	tests := []struct {
		name      string
		text      string
		wantValid bool
	}{
		{name: "arabic programming question", text: "ما هي البرمجة الكائنية؟", wantValid: true},
		{name: "arabic algorithm question", text: "اشرح لي الخوارزميات", wantValid: true},
		{name: "english database question", text: "How do I design a database schema?", wantValid: true},
		{name: "mixed case english", text: "Explain the SQL JOIN clause", wantValid: true},
		{name: "off topic cooking", text: "كيف أطبخ المحشي؟", wantValid: false},
		{name: "off topic weather", text: "What is the weather today?", wantValid: false},
		{name: "empty", text: "", wantValid: false},
		{name: "whitespace only", text: "   ", wantValid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := filter.Check(tt.text)
			if result.Valid != tt.wantValid {
				t.Errorf("Check(%q).Valid = %v, want %v", tt.text, result.Valid, tt.wantValid)
			}
			if !result.Valid && result.Reason == "" {
				t.Error("rejected turn should carry a reason")
			}
			if result.Valid && result.Text == "" {
				t.Error("accepted turn should carry the trimmed text")
			}
		})
	}
}

func TestFilterDisabled(t *testing.T) {
	filter := NewFilter(false)

	if result := filter.Check("كيف أطبخ المحشي؟"); !result.Valid {
		t.Error("disabled filter should accept off-topic text")
	}
	if result := filter.Check("  padded  "); result.Text != "padded" {
		t.Errorf("Text = %q, want trimmed text", result.Text)
	}
	if result := filter.Check(""); result.Valid {
		t.Error("disabled filter should still reject empty text")
	}
}

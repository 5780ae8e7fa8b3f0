// Package relevance gates user text turns to the assistant's domain. The
// assistant tutors computer science; clearly off-topic turns are rejected
// before they reach the model.
package relevance

import "strings"

// Result is the outcome of checking one user turn.
type Result struct {
	Valid  bool
	Text   string // trimmed text, when valid
	Reason string // Arabic rejection reason, when invalid
}

// Filter checks user text turns. A disabled filter accepts everything
// non-empty.
type Filter struct {
	enabled bool
}

// NewFilter creates a filter. When enabled is false only empty-text
// rejection applies.
func NewFilter(enabled bool) *Filter {
	return &Filter{enabled: enabled}
}

// Arabic and English markers of computer-science topics. A single hit
// accepts the turn; the system instruction handles finer-grained steering.
var domainKeywords = []string{
	// Arabic
	"برمج", "خوارزم", "حاسوب", "حاسب", "كمبيوتر", "شبك", "بيانات",
	"قاعدة", "ذكاء", "اصطناعي", "تشفير", "نظام", "تشغيل", "معالج",
	"ذاكرة", "متغير", "دالة", "مصفوفة", "كود", "سيرفر", "خادم",
	"انترنت", "إنترنت", "موقع", "تطبيق", "لغة",
	// English
	"program", "algorithm", "computer", "network", "database", "data",
	"code", "software", "hardware", "compiler", "server", "web",
	"python", "java", "linux", "sql", "api", "cpu", "memory",
	"function", "variable", "array", "encrypt", "machine learning",
	"operating system", "javascript", "golang",
}

const rejectionReason = "السؤال خارج نطاق علوم الحاسب وهندسة المعلوماتية"

// Check validates one user turn.
func (f *Filter) Check(text string) Result {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Result{Valid: false, Reason: "النص فارغ"}
	}
	if !f.enabled {
		return Result{Valid: true, Text: trimmed}
	}

	lower := strings.ToLower(trimmed)
	for _, kw := range domainKeywords {
		if strings.Contains(lower, kw) {
			return Result{Valid: true, Text: trimmed}
		}
	}
	return Result{Valid: false, Reason: rejectionReason}
}

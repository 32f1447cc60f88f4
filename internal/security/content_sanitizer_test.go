package security

import (
	"strings"
	"testing"
)

func TestSanitize_KeepsAllowedFormatting(t *testing.T) {
	s := NewContentSanitizer()

	in := "<h3>المواصفات</h3><p>اسمنت <strong>مقاوم</strong> للأملاح</p><ul><li>50 كجم</li></ul>"
	if got := s.Sanitize(in); got != in {
		t.Errorf("Sanitize(%q) = %q", in, got)
	}
}

func TestSanitize_RemovesDangerousContent(t *testing.T) {
	tests := []struct {
		name      string
		in        string
		forbidden []string
	}{
		{"script", `<p>ok</p><script>alert(1)</script>`, []string{"<script", "alert"}},
		{"iframe", `<iframe src="https://evil.example"></iframe>`, []string{"<iframe"}},
		{"style", `<style>body{display:none}</style><p>x</p>`, []string{"<style", "display"}},
		{"event handler", `<p onclick="steal()">x</p>`, []string{"onclick", "steal"}},
		{"javascript link", `<a href="javascript:alert(1)">x</a>`, []string{"javascript:"}},
		{"image", `<img src="https://example.com/a.png" onerror="x()">`, []string{"<img", "onerror"}},
	}

	s := NewContentSanitizer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Sanitize(tt.in)
			for _, f := range tt.forbidden {
				if strings.Contains(got, f) {
					t.Errorf("Sanitize(%q) = %q, should not contain %q", tt.in, got, f)
				}
			}
		})
	}
}

func TestSanitize_LinksGetSafeAttributes(t *testing.T) {
	got := NewContentSanitizer().Sanitize(`<a href="https://binna.sa/catalog">الكتالوج</a>`)

	for _, want := range []string{`href="https://binna.sa/catalog"`, `target="_blank"`, `noopener`, `noreferrer`} {
		if !strings.Contains(got, want) {
			t.Errorf("Sanitize output %q should contain %q", got, want)
		}
	}
}

func TestSanitize_Idempotent(t *testing.T) {
	s := NewContentSanitizer()
	in := `<p>حديد <em>تسليح</em></p><a href="https://binna.sa">x</a><script>x</script>`
	once := s.Sanitize(in)
	if twice := s.Sanitize(once); twice != once {
		t.Errorf("not idempotent: %q vs %q", once, twice)
	}
}

func TestPlainText_StripsAllTags(t *testing.T) {
	s := NewContentSanitizer()
	if got := s.PlainText("  <b>بلوك</b> <script>x()</script>20 سم "); got != "بلوك 20 سم" {
		t.Errorf("PlainText = %q", got)
	}
	if got := s.PlainText(""); got != "" {
		t.Errorf("PlainText(\"\") = %q", got)
	}
}

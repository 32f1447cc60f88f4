package security

import (
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizer は店舗商品・プロジェクトの説明文など利用者が入力したHTMLをサニタイズする。
// bluemondayの許可リストに含まれないタグと全てのon*イベント属性は除去される。
type ContentSanitizer struct {
	rich  *bluemonday.Policy
	plain *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerを生成する。
//   - 許可タグ: p, br, ul, ol, li, strong, em, b, i, h3, h4, a
//   - aタグはhttpsの絶対URLのみ、target="_blank" と rel="noopener noreferrer" を自動付与
func NewContentSanitizer() *ContentSanitizer {
	p := bluemonday.NewPolicy()
	p.AllowElements(
		"p", "br", "ul", "ol", "li",
		"strong", "em", "b", "i", "h3", "h4",
	)

	p.AllowAttrs("href").OnElements("a")
	p.AllowRelativeURLs(false)
	p.AllowURLSchemeWithCustomPolicy("https", func(u *url.URL) bool {
		return true
	})
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)

	return &ContentSanitizer{
		rich:  p,
		plain: bluemonday.StrictPolicy(),
	}
}

// Sanitize は説明文のHTMLを安全なHTMLに変換する。同一入力に対して常に同一出力を返す。
func (s *ContentSanitizer) Sanitize(rawHTML string) string {
	return strings.TrimSpace(s.rich.Sanitize(rawHTML))
}

// PlainText は全てのタグを除去する。商品名や備考など、HTMLを許可しない項目に使う。
func (s *ContentSanitizer) PlainText(raw string) string {
	return strings.TrimSpace(s.plain.Sanitize(raw))
}

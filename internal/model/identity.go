package model

// IdentityKind はリクエストに付随する本人確認の強さを表す。
type IdentityKind int

const (
	// IdentityNone は認証情報がない状態。
	IdentityNone IdentityKind = iota
	// IdentityWeak はクライアントが読み書きできるフォールバックCookieのみで識別された状態。
	// 画面の振り分けにだけ使い、データの読み書きには使わない。
	IdentityWeak
	// IdentityVerified はサーバー側でトークンとセッションを検証済みの状態。
	IdentityVerified
)

// String はログ出力用の名前を返す。
func (k IdentityKind) String() string {
	switch k {
	case IdentityWeak:
		return "weak"
	case IdentityVerified:
		return "verified"
	default:
		return "none"
	}
}

// Identity はリクエストの主体を表す。
type Identity struct {
	Kind        IdentityKind
	UserID      string
	Email       string
	AccountType AccountType
	Name        string
	SessionID   string
}

// Authenticated は何らかの識別情報があるかを返す。
func (i Identity) Authenticated() bool {
	return i.Kind != IdentityNone
}

// Verified はサーバー側で検証済みかを返す。
func (i Identity) Verified() bool {
	return i.Kind == IdentityVerified
}

// FallbackUser はtemp_auth_user Cookieに保存するJSONペイロード。
type FallbackUser struct {
	ID          string      `json:"id"`
	Email       string      `json:"email"`
	AccountType AccountType `json:"account_type"`
	Name        string      `json:"name"`
}

// FallbackUserFrom はプロフィールからフォールバックCookie用の値を作る。
func FallbackUserFrom(u *User) FallbackUser {
	return FallbackUser{
		ID:          u.ID,
		Email:       u.Email,
		AccountType: u.AccountType,
		Name:        u.Name,
	}
}

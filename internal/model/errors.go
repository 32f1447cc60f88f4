package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// 利用者向けのMessageとActionはアラビア語で統一する。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, not_found, conflict, payment, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidCredentials  = "INVALID_CREDENTIALS"
	ErrCodeUnauthorized        = "UNAUTHORIZED"
	ErrCodeForbidden           = "FORBIDDEN"
	ErrCodeInvalidRequest      = "INVALID_REQUEST"
	ErrCodeValidationFailed    = "VALIDATION_FAILED"
	ErrCodeEmailExists         = "EMAIL_EXISTS"
	ErrCodeUserNotFound        = "USER_NOT_FOUND"
	ErrCodeStoreNotFound       = "STORE_NOT_FOUND"
	ErrCodeProductNotFound     = "PRODUCT_NOT_FOUND"
	ErrCodeOrderNotFound       = "ORDER_NOT_FOUND"
	ErrCodeInvoiceNotFound     = "INVOICE_NOT_FOUND"
	ErrCodeProjectNotFound     = "PROJECT_NOT_FOUND"
	ErrCodeWarrantyNotFound    = "WARRANTY_NOT_FOUND"
	ErrCodeCustomerNotFound    = "CUSTOMER_NOT_FOUND"
	ErrCodeInvoiceAlreadyPaid  = "INVOICE_ALREADY_PAID"
	ErrCodePaymentGateway      = "PAYMENT_GATEWAY_ERROR"
	ErrCodeInvalidSignature    = "INVALID_SIGNATURE"
	ErrCodeServiceUnavailable  = "SERVICE_UNAVAILABLE"
	ErrCodeOAuthFailed         = "OAUTH_FAILED"
)

// NewInvalidCredentialsError はログイン失敗エラーを生成する。
// アカウントの有無とパスワード誤りを区別しない。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "البريد الإلكتروني أو كلمة المرور غير صحيحة",
		Category: "auth",
		Action:   "تحقق من بياناتك وحاول مرة أخرى.",
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "يجب تسجيل الدخول للمتابعة",
		Category: "auth",
		Action:   "سجّل الدخول ثم أعد المحاولة.",
	}
}

// NewForbiddenError は権限不足エラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "ليس لديك صلاحية للوصول إلى هذا المورد",
		Category: "auth",
		Action:   "استخدم حساباً يملك الصلاحية المطلوبة.",
	}
}

// NewInvalidRequestError はリクエスト形式の誤りを表すエラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("طلب غير صالح: %s", reason),
		Category: "validation",
		Action:   "تحقق من البيانات المرسلة.",
	}
}

// NewValidationError は入力値検証エラーを生成する。
func NewValidationError(field, reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  fmt.Sprintf("قيمة غير صالحة للحقل %s: %s", field, reason),
		Category: "validation",
		Action:   "صحّح الحقل المذكور وأعد الإرسال.",
	}
}

// NewEmailExistsError はメールアドレス重複エラーを生成する。
func NewEmailExistsError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailExists,
		Message:  "البريد الإلكتروني مسجل مسبقاً",
		Category: "conflict",
		Action:   "سجّل الدخول أو استخدم بريداً آخر.",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "المستخدم غير موجود",
		Category: "auth",
		Action:   "سجّل الدخول مرة أخرى.",
	}
}

// NewNotFoundError はリソース未検出エラーを生成する。
func NewNotFoundError(code, resource string) *APIError {
	return &APIError{
		Code:     code,
		Message:  fmt.Sprintf("%s غير موجود", resource),
		Category: "not_found",
		Action:   "تحقق من المعرّف المطلوب.",
	}
}

// NewOrderNotFoundError は注文未検出エラーを生成する。
func NewOrderNotFoundError() *APIError {
	return NewNotFoundError(ErrCodeOrderNotFound, "الطلب")
}

// NewStoreNotFoundError は店舗未検出エラーを生成する。
func NewStoreNotFoundError() *APIError {
	return NewNotFoundError(ErrCodeStoreNotFound, "المتجر")
}

// NewProductNotFoundError は商品未検出エラーを生成する。
func NewProductNotFoundError() *APIError {
	return NewNotFoundError(ErrCodeProductNotFound, "المنتج")
}

// NewInvoiceNotFoundError は請求書未検出エラーを生成する。
func NewInvoiceNotFoundError() *APIError {
	return NewNotFoundError(ErrCodeInvoiceNotFound, "الفاتورة")
}

// NewProjectNotFoundError はプロジェクト未検出エラーを生成する。
func NewProjectNotFoundError() *APIError {
	return NewNotFoundError(ErrCodeProjectNotFound, "المشروع")
}

// NewWarrantyNotFoundError は保証未検出エラーを生成する。
func NewWarrantyNotFoundError() *APIError {
	return NewNotFoundError(ErrCodeWarrantyNotFound, "الضمان")
}

// NewCustomerNotFoundError は顧客未検出エラーを生成する。
func NewCustomerNotFoundError() *APIError {
	return NewNotFoundError(ErrCodeCustomerNotFound, "العميل")
}

// NewInvoiceAlreadyPaidError は支払済み請求書への操作エラーを生成する。
func NewInvoiceAlreadyPaidError() *APIError {
	return &APIError{
		Code:     ErrCodeInvoiceAlreadyPaid,
		Message:  "تم دفع هذه الفاتورة مسبقاً",
		Category: "conflict",
		Action:   "لا حاجة لإعادة الدفع.",
	}
}

// NewPaymentGatewayError は決済ゲートウェイ通信エラーを生成する。
func NewPaymentGatewayError() *APIError {
	return &APIError{
		Code:     ErrCodePaymentGateway,
		Message:  "تعذر التحقق من حالة الدفع",
		Category: "payment",
		Action:   "حاول مرة أخرى بعد قليل.",
	}
}

// NewInvalidSignatureError はWebhook署名不一致エラーを生成する。
func NewInvalidSignatureError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidSignature,
		Message:  "توقيع غير صالح",
		Category: "auth",
		Action:   "تحقق من مفتاح التوقيع.",
	}
}

// NewServiceUnavailableError は依存サービス未構成エラーを生成する。
func NewServiceUnavailableError(service string) *APIError {
	return &APIError{
		Code:     ErrCodeServiceUnavailable,
		Message:  fmt.Sprintf("الخدمة غير متاحة حالياً: %s", service),
		Category: "system",
		Action:   "حاول لاحقاً.",
	}
}

// NewOAuthFailedError はOAuthログイン失敗エラーを生成する。
func NewOAuthFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeOAuthFailed,
		Message:  "فشل تسجيل الدخول عبر Google",
		Category: "auth",
		Action:   "حاول تسجيل الدخول مرة أخرى.",
	}
}

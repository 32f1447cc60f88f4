// Package warranty は購入品の保証管理を提供する。
package warranty

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/binaahub/binna/internal/model"
	"github.com/binaahub/binna/internal/repository"
)

// dateLayout は保証の開始日・終了日の入力形式。
const dateLayout = "2006-01-02"

// TextSanitizer は利用者入力からHTMLを取り除く。
type TextSanitizer interface {
	PlainText(raw string) string
}

// CreateInput は保証登録の入力値。日付はYYYY-MM-DD。
type CreateInput struct {
	OrderID      string
	ProductName  string
	SerialNumber string
	Provider     string
	StartDate    string
	EndDate      string
}

// View は状態を導出済みの保証。
type View struct {
	*model.Warranty
	Status        model.WarrantyStatus
	DaysRemaining int
}

// Service は保証のサービス層。
type Service struct {
	warranties repository.WarrantyRepository
	sanitizer  TextSanitizer
	now        func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(warranties repository.WarrantyRepository, sanitizer TextSanitizer) *Service {
	return &Service{warranties: warranties, sanitizer: sanitizer, now: time.Now}
}

func (s *Service) view(w *model.Warranty) View {
	now := s.now()
	days := 0
	if w.EndDate.After(now) {
		days = int(w.EndDate.Sub(now).Hours() / 24)
	}
	return View{Warranty: w, Status: w.StatusAt(now), DaysRemaining: days}
}

// List は利用者の保証を終了日の近い順に返す。
func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]View, error) {
	rows, err := s.warranties.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("保証一覧の取得に失敗しました: %w", err)
	}
	views := make([]View, len(rows))
	for i, w := range rows {
		views[i] = s.view(w)
	}
	return views, nil
}

// Get は利用者本人の保証を返す。
func (s *Service) Get(ctx context.Context, userID, warrantyID string) (*View, error) {
	if _, err := uuid.Parse(warrantyID); err != nil {
		return nil, model.NewWarrantyNotFoundError()
	}
	w, err := s.warranties.FindByID(ctx, warrantyID)
	if err != nil {
		return nil, fmt.Errorf("保証の取得に失敗しました: %w", err)
	}
	if w == nil || w.UserID != userID {
		return nil, model.NewWarrantyNotFoundError()
	}
	v := s.view(w)
	return &v, nil
}

// Create は保証を登録する。終了日は開始日より後でなければならない。
func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (*View, error) {
	start, err := time.Parse(dateLayout, in.StartDate)
	if err != nil {
		return nil, model.NewValidationError("start_date", "صيغة التاريخ YYYY-MM-DD")
	}
	end, err := time.Parse(dateLayout, in.EndDate)
	if err != nil {
		return nil, model.NewValidationError("end_date", "صيغة التاريخ YYYY-MM-DD")
	}
	if !end.After(start) {
		return nil, model.NewValidationError("end_date", "يجب أن يكون بعد تاريخ البداية")
	}
	if in.OrderID != "" {
		if _, err := uuid.Parse(in.OrderID); err != nil {
			return nil, model.NewValidationError("order_id", "معرّف غير صالح")
		}
	}

	w := &model.Warranty{
		ID:           uuid.New().String(),
		UserID:       userID,
		OrderID:      in.OrderID,
		ProductName:  s.sanitizer.PlainText(in.ProductName),
		SerialNumber: s.sanitizer.PlainText(in.SerialNumber),
		Provider:     s.sanitizer.PlainText(in.Provider),
		StartDate:    start,
		EndDate:      end,
		CreatedAt:    s.now(),
	}
	if w.ProductName == "" {
		return nil, model.NewValidationError("product_name", "مطلوب")
	}

	if err := s.warranties.Create(ctx, w); err != nil {
		return nil, fmt.Errorf("保証の登録に失敗しました: %w", err)
	}
	v := s.view(w)
	return &v, nil
}

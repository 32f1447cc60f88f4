package model

import "time"

// ProjectStatus は建設プロジェクトの進行状態を表す。
type ProjectStatus string

const (
	ProjectStatusPlanning   ProjectStatus = "planning"
	ProjectStatusInProgress ProjectStatus = "in_progress"
	ProjectStatusOnHold     ProjectStatus = "on_hold"
	ProjectStatusCompleted  ProjectStatus = "completed"
)

// Valid は定義済みの状態かどうかを返す。
func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectStatusPlanning, ProjectStatusInProgress, ProjectStatusOnHold, ProjectStatusCompleted:
		return true
	}
	return false
}

// Project は建設プロジェクトを表す。
// AssigneeIDはエンジニアまたはコンサルタントのユーザーID（任意）。
type Project struct {
	ID          string
	OwnerID     string
	AssigneeID  string
	Name        string
	Description string
	Location    string
	Budget      int64
	Status      ProjectStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// WarrantyStatus は保証の有効状態を表す。保存せず終了日から導出する。
type WarrantyStatus string

const (
	WarrantyStatusActive   WarrantyStatus = "active"
	WarrantyStatusExpiring WarrantyStatus = "expiring"
	WarrantyStatusExpired  WarrantyStatus = "expired"
)

// WarrantyExpiringWindow は終了日までの残りがこの期間以内なら expiring とする。
const WarrantyExpiringWindow = 30 * 24 * time.Hour

// Warranty は購入品の保証を表す。
type Warranty struct {
	ID           string
	UserID       string
	OrderID      string
	ProductName  string
	SerialNumber string
	Provider     string
	StartDate    time.Time
	EndDate      time.Time
	CreatedAt    time.Time
}

// StatusAt は指定時刻における保証状態を返す。
func (w *Warranty) StatusAt(now time.Time) WarrantyStatus {
	if !now.Before(w.EndDate) {
		return WarrantyStatusExpired
	}
	if w.EndDate.Sub(now) <= WarrantyExpiringWindow {
		return WarrantyStatusExpiring
	}
	return WarrantyStatusActive
}

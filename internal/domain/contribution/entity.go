// Package contribution содержит доменную модель взноса партнёра
// и его жизненный цикл: pending → approved | rejected.
package contribution

import (
	"strings"
	"time"

	"github.com/impact-hub/partner-portal/internal/domain/shared"
	"github.com/impact-hub/partner-portal/pkg/timeutil"
	"github.com/shopspring/decimal"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENUMS
// ══════════════════════════════════════════════════════════════════════════════

// Status - состояние взноса.
type Status string

const (
	// StatusPending - начальное состояние, ждёт проверки администратором.
	StatusPending Status = "pending"

	// StatusApproved - терминальное состояние, взнос зачислен партнёру.
	StatusApproved Status = "approved"

	// StatusRejected - терминальное состояние, взнос отклонён.
	StatusRejected Status = "rejected"
)

// IsValid проверяет, что статус известен.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	default:
		return false
	}
}

// IsTerminal возвращает true для approved и rejected.
func (s Status) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// String возвращает строковое представление.
func (s Status) String() string {
	return string(s)
}

// ParseStatus разбирает статус из строки запроса.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", shared.Validation("contribution", "ParseStatus", "status must be pending, approved or rejected")
	}
	return st, nil
}

// PaymentMethod - способ оплаты (опционально).
type PaymentMethod string

const (
	PaymentBankTransfer PaymentMethod = "bank_transfer"
	PaymentCreditCard   PaymentMethod = "credit_card"
	PaymentPayPal       PaymentMethod = "paypal"
	PaymentCrypto       PaymentMethod = "crypto"
	PaymentOther        PaymentMethod = "other"
)

// IsValid проверяет способ оплаты. Пустое значение допустимо.
func (m PaymentMethod) IsValid() bool {
	switch m {
	case "", PaymentBankTransfer, PaymentCreditCard, PaymentPayPal, PaymentCrypto, PaymentOther:
		return true
	default:
		return false
	}
}

// DefaultRejectionReason подставляется, если администратор не указал причину.
const DefaultRejectionReason = "No reason provided"

// MaxNotesLength - ограничение на длину заметок.
const MaxNotesLength = 2000

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: CONTRIBUTION
// ══════════════════════════════════════════════════════════════════════════════

// Contribution - заявленный партнёром платёж.
// Создаётся партнёром, меняется только администратором, никогда не удаляется.
type Contribution struct {
	// ID - уникальный идентификатор (UUID).
	ID string `json:"id"`

	// PartnerID - владелец взноса.
	PartnerID string `json:"partner_id"`

	// Amount - сумма, строго больше нуля.
	Amount decimal.Decimal `json:"amount"`

	// ContributionDate - дата платежа (UTC, без времени).
	ContributionDate time.Time `json:"contribution_date"`

	// PaymentMethod - способ оплаты.
	PaymentMethod PaymentMethod `json:"payment_method,omitempty"`

	// ProofKey - ключ файла подтверждения в объектном хранилище.
	ProofKey string `json:"-"`

	// Status - текущее состояние.
	Status Status `json:"status"`

	// RejectionReason заполняется при отклонении.
	RejectionReason string `json:"rejection_reason,omitempty"`

	// ReviewedBy - администратор, принявший решение.
	ReviewedBy string `json:"reviewed_by,omitempty"`

	// ReviewedAt - время решения.
	ReviewedAt *time.Time `json:"reviewed_at,omitempty"`

	// Notes - свободный комментарий партнёра.
	Notes string `json:"notes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasProof сообщает, приложен ли файл подтверждения.
func (c *Contribution) HasProof() bool {
	return c.ProofKey != ""
}

// IsPending возвращает true, пока взнос не рассмотрен.
func (c *Contribution) IsPending() bool {
	return c.Status == StatusPending
}

// Draft - входные данные для создания взноса.
type Draft struct {
	ID               string
	PartnerID        string
	Amount           decimal.Decimal
	ContributionDate time.Time
	PaymentMethod    PaymentMethod
	ProofKey         string
	Notes            string
}

// New проверяет черновик и создаёт взнос в состоянии pending.
// Дата сравнивается по календарному дню в UTC: сегодняшняя дата допустима.
func New(d Draft, now time.Time) (*Contribution, error) {
	if !d.Amount.IsPositive() {
		return nil, shared.ErrInvalidAmount
	}
	if d.ContributionDate.IsZero() {
		return nil, shared.Validation("contribution", "Validate", "contribution date is required")
	}
	if timeutil.IsFutureDate(d.ContributionDate, now) {
		return nil, shared.ErrContributionDateInFuture
	}
	if !d.PaymentMethod.IsValid() {
		return nil, shared.ErrInvalidPaymentMethod
	}
	notes := strings.TrimSpace(d.Notes)
	if len(notes) > MaxNotesLength {
		return nil, shared.Validation("contribution", "Validate", "notes are too long")
	}
	if strings.TrimSpace(d.PartnerID) == "" {
		return nil, shared.Validation("contribution", "Validate", "partner is required")
	}

	return &Contribution{
		ID:               d.ID,
		PartnerID:        d.PartnerID,
		Amount:           d.Amount,
		ContributionDate: TruncateDate(d.ContributionDate),
		PaymentMethod:    d.PaymentMethod,
		ProofKey:         d.ProofKey,
		Status:           StatusPending,
		Notes:            notes,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// STATE TRANSITIONS
// ══════════════════════════════════════════════════════════════════════════════

// Review - решение администратора по взносу.
type Review struct {
	ContributionID string
	Status         Status
	ReviewerID     string
	Reason         string
	ReviewedAt     time.Time
}

// Approve переводит pending → approved.
// amount должен совпадать с заявленной суммой.
func (c *Contribution) Approve(reviewerID string, amount decimal.Decimal, now time.Time) (Review, error) {
	if !c.IsPending() {
		return Review{}, shared.ErrContributionNotPending
	}
	if !amount.Equal(c.Amount) {
		return Review{}, shared.ErrAmountMismatch
	}
	c.apply(StatusApproved, reviewerID, "", now)
	return c.review(), nil
}

// Reject переводит pending → rejected. Пустая причина заменяется на DefaultRejectionReason.
func (c *Contribution) Reject(reviewerID, reason string, now time.Time) (Review, error) {
	if !c.IsPending() {
		return Review{}, shared.ErrContributionNotPending
	}
	c.apply(StatusRejected, reviewerID, NormalizeReason(reason), now)
	return c.review(), nil
}

func (c *Contribution) apply(status Status, reviewerID, reason string, now time.Time) {
	reviewedAt := now
	c.Status = status
	c.ReviewedBy = reviewerID
	c.ReviewedAt = &reviewedAt
	c.RejectionReason = reason
	c.UpdatedAt = now
}

func (c *Contribution) review() Review {
	return Review{
		ContributionID: c.ID,
		Status:         c.Status,
		ReviewerID:     c.ReviewedBy,
		Reason:         c.RejectionReason,
		ReviewedAt:     *c.ReviewedAt,
	}
}

// NormalizeReason возвращает причину отказа или значение по умолчанию.
func NormalizeReason(reason string) string {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return DefaultRejectionReason
	}
	return reason
}

// TruncateDate отбрасывает время и переводит дату в UTC.
func TruncateDate(t time.Time) time.Time {
	return timeutil.StartOfDay(t)
}

// ══════════════════════════════════════════════════════════════════════════════
// QUERIES
// ══════════════════════════════════════════════════════════════════════════════

// SortField - поле сортировки списка.
type SortField string

const (
	SortByDate   SortField = "date"
	SortByAmount SortField = "amount"
)

// ListFilter - фильтр для списка взносов.
type ListFilter struct {
	// PartnerID ограничивает список одним партнёром (пусто = все).
	PartnerID string

	// Status ограничивает список одним статусом (пусто = все).
	Status Status

	// Sort - поле сортировки, по умолчанию дата.
	Sort SortField

	// Ascending меняет порядок на возрастающий.
	Ascending bool

	Page shared.Pagination
}

// Normalize подставляет значения по умолчанию и проверяет фильтр.
func (f ListFilter) Normalize() (ListFilter, error) {
	if f.Status != "" && !f.Status.IsValid() {
		return f, shared.Validation("contribution", "List", "unknown status filter")
	}
	switch f.Sort {
	case "":
		f.Sort = SortByDate
	case SortByDate, SortByAmount:
	default:
		return f, shared.Validation("contribution", "List", "sort must be date or amount")
	}
	f.Page = shared.NewPagination(f.Page.Limit, f.Page.Offset)
	return f, nil
}

// Stats - агрегаты по взносам партнёра.
type Stats struct {
	Total         int             `json:"total"`
	Approved      int             `json:"approved"`
	Pending       int             `json:"pending"`
	Rejected      int             `json:"rejected"`
	ApprovedSum   decimal.Decimal `json:"approved_sum"`
	LastSubmitted *time.Time      `json:"last_submitted,omitempty"`
}

// Add учитывает взнос в статистике.
func (s *Stats) Add(c *Contribution) {
	s.Total++
	switch c.Status {
	case StatusApproved:
		s.Approved++
		s.ApprovedSum = s.ApprovedSum.Add(c.Amount)
	case StatusPending:
		s.Pending++
	case StatusRejected:
		s.Rejected++
	}
	if s.LastSubmitted == nil || c.CreatedAt.After(*s.LastSubmitted) {
		created := c.CreatedAt
		s.LastSubmitted = &created
	}
}

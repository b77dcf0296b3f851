// Package shared holds the types every domain package builds on: the error
// taxonomy, domain events and small value objects.
package shared

import "time"

// EventType names a domain event. Values are stable: they travel over Redis
// Pub/Sub between replicas.
type EventType string

// Events are published after the unit of work commits.
const (
	EventContributionSubmitted EventType = "contribution.submitted"
	EventContributionApproved  EventType = "contribution.approved"
	EventContributionRejected  EventType = "contribution.rejected"

	EventPartnerRegistered EventType = "partner.registered"
	EventRankUpgraded      EventType = "partner.rank_upgraded"

	EventLeaderboardInvalidated EventType = "leaderboard.invalidated"

	EventRecognitionAwarded EventType = "recognition.awarded"
)

// Event is what the bus carries. Payload must be JSON-encodable.
type Event interface {
	EventType() EventType
	OccurredAt() time.Time
	AggregateID() string
	Payload() map[string]any
}

// BaseEvent is embedded by every concrete event.
type BaseEvent struct {
	Type      EventType `json:"type"`
	At        time.Time `json:"occurred_at"`
	Aggregate string    `json:"aggregate_id"`
}

func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{Type: eventType, At: time.Now().UTC(), Aggregate: aggregateID}
}

func (e BaseEvent) EventType() EventType  { return e.Type }
func (e BaseEvent) OccurredAt() time.Time { return e.At }
func (e BaseEvent) AggregateID() string   { return e.Aggregate }

// ═══════════════════════════════════════════════════════════════════════════
// Contribution Events
// ═══════════════════════════════════════════════════════════════════════════

// ContributionSubmittedEvent is emitted when a partner submits a contribution.
type ContributionSubmittedEvent struct {
	BaseEvent
	PartnerID string `json:"partner_id"`
	Amount    string `json:"amount"`
	HasProof  bool   `json:"has_proof"`
}

func (e ContributionSubmittedEvent) Payload() map[string]any {
	return map[string]any{
		"partner_id": e.PartnerID,
		"amount":     e.Amount,
		"has_proof":  e.HasProof,
	}
}

// NewContributionSubmittedEvent creates a new ContributionSubmittedEvent.
func NewContributionSubmittedEvent(contributionID, partnerID, amount string, hasProof bool) ContributionSubmittedEvent {
	return ContributionSubmittedEvent{
		BaseEvent: NewBaseEvent(EventContributionSubmitted, contributionID),
		PartnerID: partnerID,
		Amount:    amount,
		HasProof:  hasProof,
	}
}

// ContributionApprovedEvent is emitted after an approval has been committed.
type ContributionApprovedEvent struct {
	BaseEvent
	PartnerID       string `json:"partner_id"`
	ReviewerID      string `json:"reviewer_id"`
	Amount          string `json:"amount"`
	PointsAwarded   int64  `json:"points_awarded"`
	NewImpactScore  int64  `json:"new_impact_score"`
	NewTotal        string `json:"new_total"`
	ContributedDate string `json:"contribution_date"`
}

func (e ContributionApprovedEvent) Payload() map[string]any {
	return map[string]any{
		"partner_id":        e.PartnerID,
		"reviewer_id":       e.ReviewerID,
		"amount":            e.Amount,
		"points_awarded":    e.PointsAwarded,
		"new_impact_score":  e.NewImpactScore,
		"new_total":         e.NewTotal,
		"contribution_date": e.ContributedDate,
	}
}

// ContributionRejectedEvent is emitted after a rejection has been committed.
type ContributionRejectedEvent struct {
	BaseEvent
	PartnerID  string `json:"partner_id"`
	ReviewerID string `json:"reviewer_id"`
	Reason     string `json:"reason"`
}

func (e ContributionRejectedEvent) Payload() map[string]any {
	return map[string]any{
		"partner_id":  e.PartnerID,
		"reviewer_id": e.ReviewerID,
		"reason":      e.Reason,
	}
}

// NewContributionRejectedEvent creates a new ContributionRejectedEvent.
func NewContributionRejectedEvent(contributionID, partnerID, reviewerID, reason string) ContributionRejectedEvent {
	return ContributionRejectedEvent{
		BaseEvent:  NewBaseEvent(EventContributionRejected, contributionID),
		PartnerID:  partnerID,
		ReviewerID: reviewerID,
		Reason:     reason,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Partner Events
// ═══════════════════════════════════════════════════════════════════════════

// PartnerRegisteredEvent is emitted when a new partner signs up.
type PartnerRegisteredEvent struct {
	BaseEvent
	Email    string `json:"email"`
	FullName string `json:"full_name"`
}

func (e PartnerRegisteredEvent) Payload() map[string]any {
	return map[string]any{
		"email":     e.Email,
		"full_name": e.FullName,
	}
}

// NewPartnerRegisteredEvent creates a new PartnerRegisteredEvent.
func NewPartnerRegisteredEvent(partnerID, email, fullName string) PartnerRegisteredEvent {
	return PartnerRegisteredEvent{
		BaseEvent: NewBaseEvent(EventPartnerRegistered, partnerID),
		Email:     email,
		FullName:  fullName,
	}
}

// RankUpgradedEvent is emitted when an approval moves a partner into a higher tier.
type RankUpgradedEvent struct {
	BaseEvent
	OldRank     string `json:"old_rank"`
	NewRank     string `json:"new_rank"`
	ImpactScore int64  `json:"impact_score"`
}

func (e RankUpgradedEvent) Payload() map[string]any {
	return map[string]any{
		"old_rank":     e.OldRank,
		"new_rank":     e.NewRank,
		"impact_score": e.ImpactScore,
	}
}

// NewRankUpgradedEvent creates a new RankUpgradedEvent.
func NewRankUpgradedEvent(partnerID, oldRank, newRank string, score int64) RankUpgradedEvent {
	return RankUpgradedEvent{
		BaseEvent:   NewBaseEvent(EventRankUpgraded, partnerID),
		OldRank:     oldRank,
		NewRank:     newRank,
		ImpactScore: score,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Leaderboard & Recognition Events
// ═══════════════════════════════════════════════════════════════════════════

// LeaderboardInvalidatedEvent is emitted after cached rankings were dropped.
type LeaderboardInvalidatedEvent struct {
	BaseEvent
	Reason string `json:"reason"`
}

func (e LeaderboardInvalidatedEvent) Payload() map[string]any {
	return map[string]any{
		"reason": e.Reason,
	}
}

// NewLeaderboardInvalidatedEvent creates a new LeaderboardInvalidatedEvent.
func NewLeaderboardInvalidatedEvent(reason string) LeaderboardInvalidatedEvent {
	return LeaderboardInvalidatedEvent{
		BaseEvent: NewBaseEvent(EventLeaderboardInvalidated, "leaderboard"),
		Reason:    reason,
	}
}

// RecognitionAwardedEvent is emitted when the monthly recognition job awards a partner.
type RecognitionAwardedEvent struct {
	BaseEvent
	PartnerID       string `json:"partner_id"`
	RecognitionType string `json:"recognition_type"`
	Month           string `json:"month"`
}

func (e RecognitionAwardedEvent) Payload() map[string]any {
	return map[string]any{
		"partner_id":       e.PartnerID,
		"recognition_type": e.RecognitionType,
		"month":            e.Month,
	}
}

// NewRecognitionAwardedEvent creates a new RecognitionAwardedEvent.
func NewRecognitionAwardedEvent(recognitionID, partnerID, recognitionType, month string) RecognitionAwardedEvent {
	return RecognitionAwardedEvent{
		BaseEvent:       NewBaseEvent(EventRecognitionAwarded, recognitionID),
		PartnerID:       partnerID,
		RecognitionType: recognitionType,
		Month:           month,
	}
}

// EventHandler reacts to one event. A returned error is logged by the bus;
// the publisher never sees it.
type EventHandler func(event Event) error

type EventPublisher interface {
	Publish(event Event) error
}

type EventSubscriber interface {
	Subscribe(eventType EventType, handler EventHandler) error
	SubscribeAll(handler EventHandler) error
}

type EventBus interface {
	EventPublisher
	EventSubscriber
}

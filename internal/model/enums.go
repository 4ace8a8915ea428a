package model

type SessionKind string

const (
	SessionKindIndividual   SessionKind = "individual"
	SessionKindGroup        SessionKind = "group"
	SessionKindIntroduction SessionKind = "introduction"
)

type SessionStatus string

const (
	SessionStatusWaiting SessionStatus = "waiting"
	SessionStatusActive  SessionStatus = "active"
	SessionStatusPaused  SessionStatus = "paused"
	SessionStatusEnded   SessionStatus = "ended"
)

type MemberRole string

const (
	MemberRoleOwner       MemberRole = "owner"
	MemberRoleParticipant MemberRole = "participant"
)

type PresenceStatus string

const (
	PresenceOnline  PresenceStatus = "online"
	PresenceAway    PresenceStatus = "away"
	PresenceOffline PresenceStatus = "offline"
)

type SubscriptionTier string

const (
	TierFree    SubscriptionTier = "free"
	TierPremium SubscriptionTier = "premium"
)

type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
	MessageRoleSystem    MessageRole = "system"
)

type IntakeCategory string

const (
	IntakeCategoryRelationship IntakeCategory = "relationship"
	IntakeCategoryFamily       IntakeCategory = "family"
	IntakeCategoryGeneral      IntakeCategory = "general"
)

package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// IntakeForm is the per-category profile a participant fills in before or
// while joining a group session. The category-specific fields live in
// Details as a closed variant set; adding a category means extending the
// switch in ParseIntakeDetails, which the compiler and tests keep honest.
type IntakeForm struct {
	SessionID  string          `db:"session_id" json:"sessionId"`
	UserID     string          `db:"user_id" json:"userId"`
	Category   IntakeCategory  `db:"category" json:"category"`
	RawDetails json.RawMessage `db:"details" json:"-"`
	CreatedAt  time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time       `db:"updated_at" json:"updatedAt"`

	// Details is decoded from RawDetails by the repository on read.
	Details IntakeDetails `db:"-" json:"details"`
}

type UpsertIntakeParams struct {
	SessionID string
	UserID    string
	Category  IntakeCategory
	Details   IntakeDetails
}

// IntakeDetails is a sealed interface; exactly one implementation exists per
// IntakeCategory.
type IntakeDetails interface {
	IntakeCategory() IntakeCategory
}

type RelationshipIntake struct {
	PartnerName        string `json:"partnerName"`
	RelationshipLength string `json:"relationshipLength"`
	CurrentChallenge   string `json:"currentChallenge"`
	HopedOutcome       string `json:"hopedOutcome"`
}

func (RelationshipIntake) IntakeCategory() IntakeCategory { return IntakeCategoryRelationship }

type FamilyIntake struct {
	FamilyMembers    string `json:"familyMembers"`
	FamilyDynamic    string `json:"familyDynamic"`
	CurrentChallenge string `json:"currentChallenge"`
	HopedOutcome     string `json:"hopedOutcome"`
}

func (FamilyIntake) IntakeCategory() IntakeCategory { return IntakeCategoryFamily }

type GeneralIntake struct {
	FocusArea        string `json:"focusArea"`
	CurrentChallenge string `json:"currentChallenge"`
	HopedOutcome     string `json:"hopedOutcome"`
}

func (GeneralIntake) IntakeCategory() IntakeCategory { return IntakeCategoryGeneral }

// ParseIntakeDetails decodes raw JSON into the variant matching category.
func ParseIntakeDetails(category IntakeCategory, raw json.RawMessage) (IntakeDetails, error) {
	switch category {
	case IntakeCategoryRelationship:
		var d RelationshipIntake
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("parse relationship intake: %w", err)
		}
		return d, nil
	case IntakeCategoryFamily:
		var d FamilyIntake
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("parse family intake: %w", err)
		}
		return d, nil
	case IntakeCategoryGeneral:
		var d GeneralIntake
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("parse general intake: %w", err)
		}
		return d, nil
	default:
		return nil, fmt.Errorf("unknown intake category %q", category)
	}
}

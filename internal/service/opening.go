package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog/log"

	apperrors "github.com/havenmind/coach-server-go/internal/errors"
	"github.com/havenmind/coach-server-go/internal/model"
)

// OpeningFallback is stored verbatim whenever the text-generation
// collaborator is unavailable or fails. Generation is best-effort enrichment;
// it never fails the parent operation.
const OpeningFallback = "Welcome. This is a space to slow down and talk things through. Whenever you feel ready, share what's on your mind."

const coachSystemPrompt = "You are a warm, grounded wellness coach. " +
	"Write a short opening message (2-3 sentences) for a coaching conversation. " +
	"Be welcoming and specific to the participants' situation when details are provided. " +
	"Never give medical advice."

// TextGenerator is the external text-generation collaborator. The service
// treats it as opaque: any failure is an Upstream error the caller recovers
// from with a fallback.
type TextGenerator interface {
	Opening(ctx context.Context, session *model.Session, intakes []model.IntakeForm) (string, error)
	Reply(ctx context.Context, session *model.Session, history []model.Message) (string, error)
}

type OpeningService struct {
	client  openai.Client
	model   string
	enabled bool
}

func NewOpeningService(apiKey, modelName string) *OpeningService {
	s := &OpeningService{model: modelName}
	if apiKey != "" {
		s.client = openai.NewClient(option.WithAPIKey(apiKey))
		s.enabled = true
	}
	return s
}

func (s *OpeningService) Opening(ctx context.Context, session *model.Session, intakes []model.IntakeForm) (string, error) {
	prompt := fmt.Sprintf("Session title: %q. Session kind: %s.", session.Title, session.Kind)
	if len(intakes) > 0 {
		prompt += " Participant intake notes: " + summarizeIntakes(intakes)
	}
	return s.complete(ctx, prompt)
}

func (s *OpeningService) Reply(ctx context.Context, session *model.Session, history []model.Message) (string, error) {
	if !s.enabled {
		return "", apperrors.Upstream("text generation", fmt.Errorf("no API key configured"))
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+1)
	messages = append(messages, openai.SystemMessage(coachSystemPrompt))
	for _, m := range history {
		switch m.Role {
		case model.MessageRoleAssistant:
			messages = append(messages, openai.AssistantMessage(m.Content))
		default:
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}

	resp, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(s.model),
		Messages: messages,
	})
	if err != nil {
		return "", apperrors.Upstream("text generation", err)
	}
	if len(resp.Choices) == 0 {
		return "", apperrors.Upstream("text generation", fmt.Errorf("empty completion"))
	}
	return resp.Choices[0].Message.Content, nil
}

func (s *OpeningService) complete(ctx context.Context, prompt string) (string, error) {
	if !s.enabled {
		return "", apperrors.Upstream("text generation", fmt.Errorf("no API key configured"))
	}

	resp, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(s.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(coachSystemPrompt),
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		log.Warn().Err(err).Msg("opening message generation failed")
		return "", apperrors.Upstream("text generation", err)
	}
	if len(resp.Choices) == 0 {
		return "", apperrors.Upstream("text generation", fmt.Errorf("empty completion"))
	}
	return resp.Choices[0].Message.Content, nil
}

func summarizeIntakes(intakes []model.IntakeForm) string {
	parts := make([]string, 0, len(intakes))
	for _, form := range intakes {
		switch d := form.Details.(type) {
		case model.RelationshipIntake:
			parts = append(parts, fmt.Sprintf("relationship (%s): challenge %q, hoping for %q",
				d.RelationshipLength, d.CurrentChallenge, d.HopedOutcome))
		case model.FamilyIntake:
			parts = append(parts, fmt.Sprintf("family (%s): challenge %q, hoping for %q",
				d.FamilyMembers, d.CurrentChallenge, d.HopedOutcome))
		case model.GeneralIntake:
			parts = append(parts, fmt.Sprintf("general (%s): challenge %q, hoping for %q",
				d.FocusArea, d.CurrentChallenge, d.HopedOutcome))
		}
	}
	return strings.Join(parts, "; ")
}

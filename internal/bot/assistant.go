package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"crm-gin/internal/cache"
	"crm-gin/internal/dateparse"
	apperrors "crm-gin/internal/errors"
	"crm-gin/internal/llm"
	"crm-gin/internal/models"
	"crm-gin/internal/services"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// ===========================================================================
// Assistant
// One conversational turn: resolve media to text, ask the model with the
// tool catalogue, run the requested tools, ask once more for the final
// answer, then remember the exchange.
// ===========================================================================

// Media is a voice note or an image received from the chat
type Media struct {
	Filename string
	Data     []byte
}

// Message is an incoming chat message
type Message struct {
	TenantID uuid.UUID
	ChatID   int64
	Text     string
	Voice    *Media
	Image    *Media
}

// Reply is what the assistant answers
type Reply struct {
	Text string
	// Input is the text the model saw, transcription included
	Input string
	// Tools lists the tool calls that ran, in order
	Tools []string
}

type Assistant interface {
	Reply(ctx context.Context, msg Message) (*Reply, error)
	// Reset forgets the conversation of a chat
	Reset(ctx context.Context, chatID int64) error
}

const imagePrompt = "Décris précisément cette image en français. " +
	"S'il s'agit d'un document (facture, devis, reçu, carte de visite), retranscris toutes les informations utiles."

const noAnswer = "Je n'ai pas pu formuler de réponse, pouvez-vous reformuler ?"

type assistant struct {
	settings   services.SettingsService
	provider   llm.Provider
	dispatcher *Dispatcher
	memory     *ConversationMemory
	clock      cache.Clock
	loc        *time.Location
	logger     *zap.Logger
}

func NewAssistant(
	settings services.SettingsService,
	provider llm.Provider,
	dispatcher *Dispatcher,
	memory *ConversationMemory,
	clock cache.Clock,
	loc *time.Location,
	logger *zap.Logger,
) Assistant {
	if clock == nil {
		clock = cache.SystemClock
	}
	if loc == nil {
		loc = time.UTC
	}
	return &assistant{
		settings:   settings,
		provider:   provider,
		dispatcher: dispatcher,
		memory:     memory,
		clock:      clock,
		loc:        loc,
		logger:     logger,
	}
}

func (a *assistant) Reset(ctx context.Context, chatID int64) error {
	return a.memory.Reset(ctx, chatID)
}

func (a *assistant) Reply(ctx context.Context, msg Message) (*Reply, error) {
	settings, err := a.settings.Get(ctx, msg.TenantID)
	if err != nil {
		return nil, err
	}
	client, err := a.provider.ForTenant(settings.OpenAI)
	if err != nil {
		return nil, err
	}

	input, err := a.resolveInput(ctx, client, msg)
	if err != nil {
		return nil, err
	}
	if input == "" {
		return nil, apperrors.Invalid("Message vide")
	}

	history, err := a.memory.History(ctx, msg.TenantID, msg.ChatID)
	if err != nil {
		return nil, err
	}

	now := a.clock.Now().In(a.loc)
	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: systemPrompt(now),
	})
	for _, turn := range history {
		messages = append(messages, openai.ChatCompletionMessage{Role: turn.Role, Content: turn.Content})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: input})

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:      client.Model(),
		Messages:   messages,
		Tools:      a.dispatcher.Definitions(),
		ToolChoice: "auto",
	})
	if err != nil {
		return nil, apperrors.External("OpenAI", err)
	}
	if len(resp.Choices) == 0 {
		return nil, apperrors.External("OpenAI", fmt.Errorf("empty completion"))
	}

	reply := &Reply{Input: input}
	first := resp.Choices[0].Message

	if len(first.ToolCalls) == 0 {
		reply.Text = first.Content
	} else {
		tc := &ToolContext{
			TenantID: msg.TenantID,
			ChatID:   msg.ChatID,
			Dates:    dateparse.New(a.clock.Now, a.loc),
		}
		messages = append(messages, first)
		for _, call := range first.ToolCalls {
			result := a.dispatcher.Execute(ctx, tc, call.Function.Name, call.Function.Arguments)
			a.logger.Debug("Tool executed",
				zap.String("tool", call.Function.Name),
				zap.Int64("chat_id", msg.ChatID),
			)
			reply.Tools = append(reply.Tools, call.Function.Name)
			messages = append(messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    result,
				ToolCallID: call.ID,
			})
		}

		final, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:    client.Model(),
			Messages: messages,
		})
		if err != nil {
			return nil, apperrors.External("OpenAI", err)
		}
		if len(final.Choices) > 0 {
			reply.Text = final.Choices[0].Message.Content
		}
	}

	reply.Text = strings.TrimSpace(reply.Text)
	if reply.Text == "" {
		reply.Text = noAnswer
	}

	if err := a.memory.Append(ctx, msg.TenantID, msg.ChatID,
		models.ChatTurn{Role: openai.ChatMessageRoleUser, Content: input},
		models.ChatTurn{Role: openai.ChatMessageRoleAssistant, Content: reply.Text},
	); err != nil {
		// the answer is still worth sending
		a.logger.Warn("Failed to save conversation", zap.Int64("chat_id", msg.ChatID), zap.Error(err))
	}

	a.logger.Info("Assistant replied",
		zap.String("tenant_id", msg.TenantID.String()),
		zap.Int64("chat_id", msg.ChatID),
		zap.Strings("tools", reply.Tools),
	)
	return reply, nil
}

// resolveInput turns voice notes and images into text for the model
func (a *assistant) resolveInput(ctx context.Context, client llm.Client, msg Message) (string, error) {
	text := strings.TrimSpace(msg.Text)

	switch {
	case msg.Voice != nil:
		transcript, err := client.Transcribe(ctx, msg.Voice.Filename, msg.Voice.Data)
		if err != nil {
			return "", apperrors.External("Whisper", err)
		}
		transcript = strings.TrimSpace(transcript)
		if text == "" {
			return transcript, nil
		}
		return text + "\n\n" + transcript, nil

	case msg.Image != nil:
		description, err := client.DescribeImage(ctx, imagePrompt, msg.Image.Data)
		if err != nil {
			return "", apperrors.External("Vision", err)
		}
		out := "[Image reçue] " + strings.TrimSpace(description)
		if text != "" {
			out += "\n\nMessage de l'utilisateur: " + text
		}
		return out, nil
	}
	return text, nil
}

var (
	frenchWeekdays = [...]string{"dimanche", "lundi", "mardi", "mercredi", "jeudi", "vendredi", "samedi"}
	frenchMonths   = [...]string{"janvier", "février", "mars", "avril", "mai", "juin", "juillet", "août", "septembre", "octobre", "novembre", "décembre"}
)

// FrenchDate renders t as "mardi 10 mars 2026"
func FrenchDate(t time.Time) string {
	return fmt.Sprintf("%s %d %s %d", frenchWeekdays[t.Weekday()], t.Day(), frenchMonths[t.Month()-1], t.Year())
}

func systemPrompt(now time.Time) string {
	return fmt.Sprintf(`Tu es l'assistant CRM de l'entreprise. Nous sommes le %s, il est %s (%s).
Tu aides à gérer les clients, les notes, les tâches, les devis, les factures, la trésorerie, les abonnements, les domaines, les tickets, les contrats, les projets et l'agenda.
Règles:
- Utilise les outils pour lire ou modifier les données, n'invente jamais de chiffres.
- Pour désigner un client, passe clientName (ou clientId si tu le connais).
- Les dates peuvent être exprimées naturellement ("demain 15h", "lundi", "12/03/2026 à 10h").
- Les montants sont en euros; précise HT ou TTC.
- Si un outil renvoie une erreur, explique-la simplement.
- Réponds en français de façon concise, en texte simple adapté à Telegram.`,
		FrenchDate(now), now.Format("15:04"), now.Location().String())
}

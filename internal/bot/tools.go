package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"crm-gin/internal/dateparse"
	apperrors "crm-gin/internal/errors"

	"github.com/google/uuid"
	"github.com/invopop/jsonschema"
	openai "github.com/sashabaranov/go-openai"
)

// ===========================================================================
// Tool
// A named operation the model may call. Arguments are a typed struct whose
// JSON schema is reflected once when the catalogue is built.
// ===========================================================================

// ToolContext carries what a tool needs to know about the caller
type ToolContext struct {
	TenantID uuid.UUID
	ChatID   int64
	Dates    *dateparse.Parser
}

type toolFunc func(ctx context.Context, d *Dispatcher, tc *ToolContext, raw json.RawMessage) (any, error)

// Tool pairs the function definition sent to the model with its handler
type Tool struct {
	Definition openai.FunctionDefinition
	run        toolFunc
}

var reflector = &jsonschema.Reflector{
	DoNotReference:             true,
	ExpandedStruct:             true,
	RequiredFromJSONSchemaTags: true,
	AllowAdditionalProperties:  false,
}

// define builds a Tool whose arguments decode into A
func define[A any](name, description string, fn func(ctx context.Context, d *Dispatcher, tc *ToolContext, args A) (any, error)) Tool {
	var zero A
	schema := reflector.Reflect(&zero)
	schema.Version = ""
	schema.ID = ""

	params, err := json.Marshal(schema)
	if err != nil {
		panic(fmt.Sprintf("tool %s: marshal schema: %v", name, err))
	}

	return Tool{
		Definition: openai.FunctionDefinition{
			Name:        name,
			Description: description,
			Parameters:  json.RawMessage(params),
		},
		run: func(ctx context.Context, d *Dispatcher, tc *ToolContext, raw json.RawMessage) (any, error) {
			var args A
			if len(raw) > 0 && string(raw) != "null" {
				if err := json.Unmarshal(raw, &args); err != nil {
					return nil, apperrors.Invalid("Arguments invalides: " + err.Error())
				}
			}
			return fn(ctx, d, tc, args)
		},
	}
}

// NoArgs is the argument type of tools that take none
type NoArgs struct{}

// ===========================================================================
// Argument helpers
// ===========================================================================

// ClientRef identifies a client by id or, failing that, by name
type ClientRef struct {
	ClientID   string `json:"clientId,omitempty" jsonschema_description:"Identifiant du client"`
	ClientName string `json:"clientName,omitempty" jsonschema_description:"Nom (ou partie du nom) du client"`
}

func (r ClientRef) empty() bool {
	return strings.TrimSpace(r.ClientID) == "" && strings.TrimSpace(r.ClientName) == ""
}

// LineArg is one quote or invoice line as the model sends it
type LineArg struct {
	Description string   `json:"description" jsonschema:"required"`
	Quantity    float64  `json:"quantity" jsonschema:"required"`
	UnitPrice   float64  `json:"unitPrice" jsonschema:"required" jsonschema_description:"Prix unitaire HT"`
	VATRate     *float64 `json:"vatRate,omitempty" jsonschema_description:"Taux de TVA en pourcentage, 20 par défaut"`
}

func parseID(value, label string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(value))
	if err != nil {
		return uuid.Nil, apperrors.Invalid("Identifiant invalide pour " + label)
	}
	return id, nil
}

func parseOptionalID(value, label string) (*uuid.UUID, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	id, err := parseID(value, label)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// parseDate resolves a natural-language date; empty input yields nil
func (tc *ToolContext) parseDate(value, label string) (*time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	t, err := tc.Dates.Parse(value)
	if err != nil {
		return nil, apperrors.Invalid(fmt.Sprintf("Date non reconnue pour %s: %q", label, value))
	}
	return &t, nil
}

func limitOr(v, def, max int) int {
	if v <= 0 {
		return def
	}
	if v > max {
		return max
	}
	return v
}

// listResult is the envelope of every list tool
type listResult[T any] struct {
	Count int   `json:"count"`
	Total int64 `json:"total,omitempty"`
	Items []T   `json:"items"`
}

func list[T any](items []T, total int64) listResult[T] {
	if items == nil {
		items = []T{}
	}
	return listResult[T]{Count: len(items), Total: total, Items: items}
}

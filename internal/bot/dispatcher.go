package bot

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"crm-gin/internal/cache"
	apperrors "crm-gin/internal/errors"
	"crm-gin/internal/repositories"
	"crm-gin/internal/services"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// ===========================================================================
// Dispatcher
// Routes a tool call of the model to the matching CRM operation and
// serialises the outcome as JSON for the follow-up completion.
// ===========================================================================

// Deps are the services the tools act through
type Deps struct {
	Store     *repositories.Store
	Clients   services.ClientService
	Invoices  services.InvoiceService
	Quotes    services.QuoteService
	Treasury  services.TreasuryService
	Work      services.WorkService
	Analytics services.AnalyticsService
	Contracts services.ContractService
	Calendar  services.CalendarService
	Clock     cache.Clock

	// DefaultEventDuration applies to calendar events without an end
	DefaultEventDuration time.Duration
}

// ToolObserver is told about every executed tool call
type ToolObserver interface {
	ObserveTool(name string, err error, elapsed time.Duration)
}

type Dispatcher struct {
	deps     Deps
	tools    map[string]Tool
	defs     []openai.Tool
	observer ToolObserver
	logger   *zap.Logger
}

// NewDispatcher builds the full tool catalogue. observer may be nil.
func NewDispatcher(deps Deps, observer ToolObserver, logger *zap.Logger) *Dispatcher {
	if deps.Clock == nil {
		deps.Clock = cache.SystemClock
	}
	if deps.DefaultEventDuration <= 0 {
		deps.DefaultEventDuration = time.Hour
	}

	d := &Dispatcher{
		deps:     deps,
		tools:    make(map[string]Tool),
		observer: observer,
		logger:   logger,
	}

	var catalogue []Tool
	catalogue = append(catalogue, clientTools()...)
	catalogue = append(catalogue, noteTools()...)
	catalogue = append(catalogue, taskTools()...)
	catalogue = append(catalogue, billingTools()...)
	catalogue = append(catalogue, treasuryTools()...)
	catalogue = append(catalogue, catalogTools()...)
	catalogue = append(catalogue, supportTools()...)
	catalogue = append(catalogue, analyticsTools()...)
	catalogue = append(catalogue, calendarTools()...)

	for _, t := range catalogue {
		if _, dup := d.tools[t.Definition.Name]; dup {
			panic("duplicate tool " + t.Definition.Name)
		}
		d.tools[t.Definition.Name] = t
		def := t.Definition
		d.defs = append(d.defs, openai.Tool{Type: openai.ToolTypeFunction, Function: &def})
	}
	return d
}

// Definitions are passed as the tools of a chat completion request
func (d *Dispatcher) Definitions() []openai.Tool {
	return d.defs
}

// Names lists the catalogue, sorted
func (d *Dispatcher) Names() []string {
	names := make([]string, 0, len(d.tools))
	for name := range d.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Execute runs one tool call and always returns a JSON document. Failures
// are reported as {"error": message} so the model can relay them.
func (d *Dispatcher) Execute(ctx context.Context, tc *ToolContext, name, arguments string) string {
	start := time.Now()

	tool, ok := d.tools[name]
	if !ok {
		d.observe(name, apperrors.ErrNotFound, start)
		return errorJSON("Outil inconnu: " + name)
	}

	result, err := tool.run(ctx, d, tc, json.RawMessage(arguments))
	d.observe(name, err, start)
	if err != nil {
		var appErr *apperrors.AppError
		if !errors.As(err, &appErr) {
			d.logger.Error("Tool failed",
				zap.String("tool", name),
				zap.String("tenant_id", tc.TenantID.String()),
				zap.Error(err),
			)
		}
		return errorJSON(apperrors.Message(err, "Une erreur interne est survenue"))
	}

	out, err := json.Marshal(result)
	if err != nil {
		d.logger.Error("Failed to encode tool result", zap.String("tool", name), zap.Error(err))
		return errorJSON("Résultat illisible")
	}
	return string(out)
}

func (d *Dispatcher) observe(name string, err error, start time.Time) {
	if d.observer != nil {
		d.observer.ObserveTool(name, err, time.Since(start))
	}
}

func errorJSON(message string) string {
	out, _ := json.Marshal(map[string]string{"error": message})
	return string(out)
}

// client resolves a required client reference
func (d *Dispatcher) client(ctx context.Context, tc *ToolContext, ref ClientRef) (*clientHandle, error) {
	id, err := parseOptionalID(ref.ClientID, "clientId")
	if err != nil {
		return nil, err
	}
	c, err := d.deps.Clients.Resolve(ctx, tc.TenantID, id, ref.ClientName)
	if err != nil {
		return nil, err
	}
	return &clientHandle{ID: c.ID, Name: c.DisplayName()}, nil
}

// optionalClient resolves ref when it names a client, nil otherwise
func (d *Dispatcher) optionalClient(ctx context.Context, tc *ToolContext, ref ClientRef) (*clientHandle, error) {
	if ref.empty() {
		return nil, nil
	}
	return d.client(ctx, tc, ref)
}

func (d *Dispatcher) now() time.Time {
	return d.deps.Clock.Now()
}

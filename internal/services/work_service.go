package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"crm-gin/internal/billing"
	"crm-gin/internal/cache"
	apperrors "crm-gin/internal/errors"
	"crm-gin/internal/models"
	"crm-gin/internal/repositories"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ===========================================================================
// Work Service
// Notes, todos and reminders, tasks, support tickets and projects
// ===========================================================================

// EntityRef points a note at a CRM entity
type EntityRef struct {
	Type string
	ID   uuid.UUID
}

type NoteInput struct {
	Content    string
	Type       models.NoteType
	ReminderAt *time.Time
	Links      []EntityRef
	CreatedBy  *uuid.UUID
}

type TaskInput struct {
	Title       string
	Description string
	Priority    models.Priority
	DueDate     *time.Time
	ClientID    *uuid.UUID
	ProjectID   *uuid.UUID
}

type TicketInput struct {
	ClientID uuid.UUID
	Subject  string
	Message  string
	Priority models.Priority
	Author   models.AuthorType
}

type ProjectInput struct {
	Name        string
	Description string
	ClientID    *uuid.UUID
	Budget      float64
	StartDate   *time.Time
	EndDate     *time.Time
}

type WorkService interface {
	AddNote(ctx context.Context, tenantID uuid.UUID, in NoteInput) (*models.Note, error)
	ListNotes(ctx context.Context, tenantID uuid.UUID, filter repositories.NoteFilter, opts repositories.FindOptions) ([]models.Note, int64, error)
	// CompleteTodo ticks a todo off; notes of type note are rejected
	CompleteTodo(ctx context.Context, tenantID, noteID uuid.UUID) (*models.Note, error)
	// UpcomingReminders lists reminders due within the window from now
	UpcomingReminders(ctx context.Context, tenantID uuid.UUID, window time.Duration) ([]models.Note, error)

	CreateTask(ctx context.Context, tenantID uuid.UUID, in TaskInput) (*models.Task, error)
	ListTasks(ctx context.Context, tenantID uuid.UUID, filter repositories.TaskFilter, opts repositories.FindOptions) ([]models.Task, int64, error)
	UpdateTaskStatus(ctx context.Context, tenantID, taskID uuid.UUID, status models.TaskStatus) (*models.Task, error)

	// CreateTicket numbers the ticket and stores its first message atomically
	CreateTicket(ctx context.Context, tenantID uuid.UUID, in TicketInput) (*models.Ticket, error)
	ListTickets(ctx context.Context, tenantID uuid.UUID, filter repositories.TicketFilter, opts repositories.FindOptions) ([]models.Ticket, int64, error)
	AddTicketMessage(ctx context.Context, tenantID, ticketID uuid.UUID, author models.AuthorType, content string) (*models.TicketMessage, error)
	UpdateTicketStatus(ctx context.Context, tenantID, ticketID uuid.UUID, status models.TicketStatus) (*models.Ticket, error)

	CreateProject(ctx context.Context, tenantID uuid.UUID, in ProjectInput) (*models.Project, error)
	ListProjects(ctx context.Context, tenantID uuid.UUID, filter repositories.ProjectFilter, opts repositories.FindOptions) ([]models.Project, int64, error)
}

type workService struct {
	store  *repositories.Store
	clock  cache.Clock
	logger *zap.Logger
}

func NewWorkService(store *repositories.Store, clock cache.Clock, logger *zap.Logger) WorkService {
	return &workService{store: store, clock: clock, logger: logger}
}

var noteEntityTypes = map[string]bool{
	models.EntityClient:   true,
	models.EntityInvoice:  true,
	models.EntityQuote:    true,
	models.EntityProject:  true,
	models.EntityTicket:   true,
	models.EntityContract: true,
}

// Notes ----------------------------------------------------------------------

func (s *workService) AddNote(ctx context.Context, tenantID uuid.UUID, in NoteInput) (*models.Note, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, apperrors.Invalid("Le contenu de la note est requis")
	}
	noteType := in.Type
	if noteType == "" {
		noteType = models.NoteTypeNote
	}
	if noteType != models.NoteTypeNote && noteType != models.NoteTypeTodo {
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, "Type de note invalide: %s", noteType)
	}

	note := &models.Note{
		Content:    content,
		Type:       noteType,
		ReminderAt: in.ReminderAt,
		CreatedBy:  in.CreatedBy,
	}
	note.TenantID = tenantID
	for _, l := range in.Links {
		if !noteEntityTypes[l.Type] {
			return nil, apperrors.Newf(apperrors.ErrInvalidInput, "Type d'entité invalide: %s", l.Type)
		}
		note.Links = append(note.Links, models.NoteLink{EntityType: l.Type, EntityID: l.ID})
	}

	if err := s.store.Notes.CreateWithLinks(ctx, note); err != nil {
		return nil, fmt.Errorf("create note: %w", err)
	}
	return note, nil
}

func (s *workService) ListNotes(ctx context.Context, tenantID uuid.UUID, filter repositories.NoteFilter, opts repositories.FindOptions) ([]models.Note, int64, error) {
	return s.store.Notes.List(ctx, tenantID, filter, opts)
}

func (s *workService) CompleteTodo(ctx context.Context, tenantID, noteID uuid.UUID) (*models.Note, error) {
	note, err := s.store.Notes.FindByID(ctx, tenantID, noteID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, apperrors.NotFound("Tâche")
		}
		return nil, fmt.Errorf("find note: %w", err)
	}
	if note.Type != models.NoteTypeTodo {
		return nil, apperrors.Invalid("Cette note n'est pas une tâche à faire")
	}
	note.IsDone = true
	if err := s.store.Notes.Update(ctx, note); err != nil {
		return nil, fmt.Errorf("update note: %w", err)
	}
	return note, nil
}

func (s *workService) UpcomingReminders(ctx context.Context, tenantID uuid.UUID, window time.Duration) ([]models.Note, error) {
	now := s.clock.Now()
	to := now.Add(window)
	notDone := false
	notes, _, err := s.store.Notes.List(ctx, tenantID, repositories.NoteFilter{
		WithReminder: true,
		ReminderFrom: &now,
		ReminderTo:   &to,
		Done:         &notDone,
	}, repositories.FindOptions{Limit: 50, OrderBy: "reminder_at", OrderDir: "asc"})
	return notes, err
}

// Tasks ----------------------------------------------------------------------

func (s *workService) CreateTask(ctx context.Context, tenantID uuid.UUID, in TaskInput) (*models.Task, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, apperrors.Invalid("Le titre de la tâche est requis")
	}
	priority := in.Priority
	if priority == "" {
		priority = models.PriorityNormal
	}
	if !models.IsValidPriority(string(priority)) {
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, "Priorité invalide: %s", priority)
	}

	task := &models.Task{
		Title:       title,
		Description: in.Description,
		Status:      models.TaskTodo,
		Priority:    priority,
		DueDate:     in.DueDate,
		ClientID:    in.ClientID,
		ProjectID:   in.ProjectID,
	}
	task.TenantID = tenantID
	if err := s.store.Tasks.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return task, nil
}

func (s *workService) ListTasks(ctx context.Context, tenantID uuid.UUID, filter repositories.TaskFilter, opts repositories.FindOptions) ([]models.Task, int64, error) {
	return s.store.Tasks.List(ctx, tenantID, filter, opts)
}

func (s *workService) UpdateTaskStatus(ctx context.Context, tenantID, taskID uuid.UUID, status models.TaskStatus) (*models.Task, error) {
	if !models.IsValidTaskStatus(string(status)) {
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, "Statut de tâche invalide: %s", status)
	}
	task, err := s.store.Tasks.FindByID(ctx, tenantID, taskID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, apperrors.NotFound("Tâche")
		}
		return nil, fmt.Errorf("find task: %w", err)
	}
	task.Status = status
	if status == models.TaskDone {
		now := s.clock.Now()
		task.CompletedAt = &now
	} else {
		task.CompletedAt = nil
	}
	if err := s.store.Tasks.Update(ctx, task); err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	return task, nil
}

// Tickets --------------------------------------------------------------------

func (s *workService) CreateTicket(ctx context.Context, tenantID uuid.UUID, in TicketInput) (*models.Ticket, error) {
	subject := strings.TrimSpace(in.Subject)
	if subject == "" {
		return nil, apperrors.Invalid("Le sujet du ticket est requis")
	}
	priority := in.Priority
	if priority == "" {
		priority = models.PriorityNormal
	}
	if !models.IsValidPriority(string(priority)) {
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, "Priorité invalide: %s", priority)
	}
	author := in.Author
	if author == "" {
		author = models.AuthorStaff
	}

	var ticket *models.Ticket
	err := s.store.Transaction(ctx, func(tx *repositories.Store) error {
		now := s.clock.Now()
		seq, err := tx.Tickets.NextSequence(ctx, tenantID, now)
		if err != nil {
			return fmt.Errorf("next ticket number: %w", err)
		}
		ticket = &models.Ticket{
			ClientID: in.ClientID,
			Number:   billing.FormatNumber(billing.PrefixTicket, now, seq),
			Subject:  subject,
			Status:   models.TicketOpen,
			Priority: priority,
		}
		ticket.TenantID = tenantID
		if err := tx.Tickets.Create(ctx, ticket); err != nil {
			return fmt.Errorf("create ticket: %w", err)
		}
		if msg := strings.TrimSpace(in.Message); msg != "" {
			m := models.TicketMessage{TicketID: ticket.ID, AuthorType: author, Content: msg}
			if err := tx.Tickets.AddMessage(ctx, &m); err != nil {
				return fmt.Errorf("add ticket message: %w", err)
			}
			ticket.Messages = append(ticket.Messages, m)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("ticket created",
		zap.String("tenant_id", tenantID.String()),
		zap.String("number", ticket.Number),
	)
	return ticket, nil
}

func (s *workService) ListTickets(ctx context.Context, tenantID uuid.UUID, filter repositories.TicketFilter, opts repositories.FindOptions) ([]models.Ticket, int64, error) {
	return s.store.Tickets.List(ctx, tenantID, filter, opts)
}

func (s *workService) findTicket(ctx context.Context, tenantID, ticketID uuid.UUID) (*models.Ticket, error) {
	t, err := s.store.Tickets.FindByID(ctx, tenantID, ticketID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, apperrors.NotFound("Ticket")
		}
		return nil, fmt.Errorf("find ticket: %w", err)
	}
	return t, nil
}

func (s *workService) AddTicketMessage(ctx context.Context, tenantID, ticketID uuid.UUID, author models.AuthorType, content string) (*models.TicketMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperrors.Invalid("Le message est vide")
	}
	ticket, err := s.findTicket(ctx, tenantID, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.Status == models.TicketClosed {
		return nil, apperrors.Invalid("Ce ticket est fermé")
	}
	msg := &models.TicketMessage{TicketID: ticket.ID, AuthorType: author, Content: content}
	if err := s.store.Tickets.AddMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("add ticket message: %w", err)
	}
	return msg, nil
}

func (s *workService) UpdateTicketStatus(ctx context.Context, tenantID, ticketID uuid.UUID, status models.TicketStatus) (*models.Ticket, error) {
	if !models.IsValidTicketStatus(string(status)) {
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, "Statut de ticket invalide: %s", status)
	}
	ticket, err := s.findTicket(ctx, tenantID, ticketID)
	if err != nil {
		return nil, err
	}
	ticket.Status = status
	if err := s.store.Tickets.Update(ctx, ticket); err != nil {
		return nil, fmt.Errorf("update ticket: %w", err)
	}
	return ticket, nil
}

// Projects -------------------------------------------------------------------

func (s *workService) CreateProject(ctx context.Context, tenantID uuid.UUID, in ProjectInput) (*models.Project, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperrors.Invalid("Le nom du projet est requis")
	}
	if in.StartDate != nil && in.EndDate != nil && in.EndDate.Before(*in.StartDate) {
		return nil, apperrors.Invalid("La date de fin précède la date de début")
	}
	p := &models.Project{
		Name:        name,
		Description: in.Description,
		ClientID:    in.ClientID,
		Status:      models.ProjectPlanned,
		Budget:      billing.Round2(in.Budget),
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
	}
	p.TenantID = tenantID
	if err := s.store.Projects.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	return p, nil
}

func (s *workService) ListProjects(ctx context.Context, tenantID uuid.UUID, filter repositories.ProjectFilter, opts repositories.FindOptions) ([]models.Project, int64, error) {
	return s.store.Projects.List(ctx, tenantID, filter, opts)
}

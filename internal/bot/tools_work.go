package bot

import (
	"context"
	"time"

	apperrors "crm-gin/internal/errors"
	"crm-gin/internal/models"
	"crm-gin/internal/repositories"
	"crm-gin/internal/services"
)

// ===========================================================================
// Notes, todos, reminders, tasks and projects
// ===========================================================================

type addNoteArgs struct {
	Content string `json:"content" jsonschema:"required"`
	ClientRef
	EntityType string `json:"entityType,omitempty" jsonschema:"enum=client,enum=invoice,enum=quote,enum=project,enum=ticket,enum=contract" jsonschema_description:"Autre entité à laquelle rattacher la note"`
	EntityID   string `json:"entityId,omitempty"`
}

type listNotesArgs struct {
	ClientRef
	Search string `json:"search,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

type createTodoArgs struct {
	Content string `json:"content" jsonschema:"required"`
	DueDate string `json:"dueDate,omitempty" jsonschema_description:"Échéance, par exemple 'demain 15h' ou '12/03/2026'"`
	ClientRef
}

type listTodosArgs struct {
	IncludeDone bool `json:"includeDone,omitempty"`
	Limit       int  `json:"limit,omitempty"`
}

type completeTodoArgs struct {
	TodoID string `json:"todoId" jsonschema:"required"`
}

type createReminderArgs struct {
	Content  string `json:"content" jsonschema:"required"`
	RemindAt string `json:"remindAt" jsonschema:"required" jsonschema_description:"Date et heure du rappel, par exemple 'lundi 10h'"`
	ClientRef
}

type listRemindersArgs struct {
	Days int `json:"days,omitempty" jsonschema_description:"Fenêtre en jours, 7 par défaut"`
}

type createTaskArgs struct {
	Title       string `json:"title" jsonschema:"required"`
	Description string `json:"description,omitempty"`
	Priority    string `json:"priority,omitempty" jsonschema:"enum=low,enum=normal,enum=high,enum=urgent"`
	DueDate     string `json:"dueDate,omitempty"`
	ProjectID   string `json:"projectId,omitempty"`
	ClientRef
}

type listTasksArgs struct {
	Status string `json:"status,omitempty" jsonschema:"enum=todo,enum=in_progress,enum=done"`
	ClientRef
	Limit int `json:"limit,omitempty"`
}

type updateTaskStatusArgs struct {
	TaskID string `json:"taskId" jsonschema:"required"`
	Status string `json:"status" jsonschema:"required,enum=todo,enum=in_progress,enum=done"`
}

type createProjectArgs struct {
	Name        string  `json:"name" jsonschema:"required"`
	Description string  `json:"description,omitempty"`
	Budget      float64 `json:"budget,omitempty"`
	StartDate   string  `json:"startDate,omitempty"`
	EndDate     string  `json:"endDate,omitempty"`
	ClientRef
}

type listProjectsArgs struct {
	Status string `json:"status,omitempty" jsonschema:"enum=planned,enum=active,enum=on_hold,enum=completed"`
	ClientRef
}

func clientLinks(c *clientHandle) []services.EntityRef {
	if c == nil {
		return nil
	}
	return []services.EntityRef{{Type: models.EntityClient, ID: c.ID}}
}

func noteTools() []Tool {
	return []Tool{
		define("add_note", "Ajouter une note sur un client ou une autre entité",
			func(ctx context.Context, d *Dispatcher, tc *ToolContext, a addNoteArgs) (any, error) {
				c, err := d.optionalClient(ctx, tc, a.ClientRef)
				if err != nil {
					return nil, err
				}
				links := clientLinks(c)
				if a.EntityType != "" {
					id, err := parseID(a.EntityID, "entityId")
					if err != nil {
						return nil, err
					}
					links = append(links, services.EntityRef{Type: a.EntityType, ID: id})
				}
				return d.deps.Work.AddNote(ctx, tc.TenantID, services.NoteInput{
					Content: a.Content,
					Type:    models.NoteTypeNote,
					Links:   links,
				})
			}),

		define("list_notes", "Lister les notes, éventuellement celles d'un client",
			func(ctx context.Context, d *Dispatcher, tc *ToolContext, a listNotesArgs) (any, error) {
				filter := repositories.NoteFilter{Type: models.NoteTypeNote, Search: a.Search}
				c, err := d.optionalClient(ctx, tc, a.ClientRef)
				if err != nil {
					return nil, err
				}
				if c != nil {
					filter.EntityType = models.EntityClient
					filter.EntityID = c.idPtr()
				}
				notes, total, err := d.deps.Work.ListNotes(ctx, tc.TenantID, filter,
					repositories.FindOptions{Limit: limitOr(a.Limit, 10, 50)})
				if err != nil {
					return nil, err
				}
				return list(notes, total), nil
			}),

		define("create_todo", "Créer une chose à faire, avec une échéance facultative",
			func(ctx context.Context, d *Dispatcher, tc *ToolContext, a createTodoArgs) (any, error) {
				due, err := tc.parseDate(a.DueDate, "dueDate")
				if err != nil {
					return nil, err
				}
				c, err := d.optionalClient(ctx, tc, a.ClientRef)
				if err != nil {
					return nil, err
				}
				return d.deps.Work.AddNote(ctx, tc.TenantID, services.NoteInput{
					Content:    a.Content,
					Type:       models.NoteTypeTodo,
					ReminderAt: due,
					Links:      clientLinks(c),
				})
			}),

		define("list_todos", "Lister les choses à faire",
			func(ctx context.Context, d *Dispatcher, tc *ToolContext, a listTodosArgs) (any, error) {
				filter := repositories.NoteFilter{Type: models.NoteTypeTodo}
				if !a.IncludeDone {
					done := false
					filter.Done = &done
				}
				notes, total, err := d.deps.Work.ListNotes(ctx, tc.TenantID, filter,
					repositories.FindOptions{Limit: limitOr(a.Limit, 20, 100)})
				if err != nil {
					return nil, err
				}
				return list(notes, total), nil
			}),

		define("complete_todo", "Marquer une chose à faire comme terminée",
			func(ctx context.Context, d *Dispatcher, tc *ToolContext, a completeTodoArgs) (any, error) {
				id, err := parseID(a.TodoID, "todoId")
				if err != nil {
					return nil, err
				}
				return d.deps.Work.CompleteTodo(ctx, tc.TenantID, id)
			}),

		define("create_reminder", "Programmer un rappel à une date donnée",
			func(ctx context.Context, d *Dispatcher, tc *ToolContext, a createReminderArgs) (any, error) {
				at, err := tc.parseDate(a.RemindAt, "remindAt")
				if err != nil {
					return nil, err
				}
				if at == nil {
					return nil, apperrors.Invalid("La date du rappel est requise")
				}
				c, err := d.optionalClient(ctx, tc, a.ClientRef)
				if err != nil {
					return nil, err
				}
				return d.deps.Work.AddNote(ctx, tc.TenantID, services.NoteInput{
					Content:    a.Content,
					Type:       models.NoteTypeTodo,
					ReminderAt: at,
					Links:      clientLinks(c),
				})
			}),

		define("list_reminders", "Lister les rappels des prochains jours",
			func(ctx context.Context, d *Dispatcher, tc *ToolContext, a listRemindersArgs) (any, error) {
				days := limitOr(a.Days, 7, 365)
				notes, err := d.deps.Work.UpcomingReminders(ctx, tc.TenantID, time.Duration(days)*24*time.Hour)
				if err != nil {
					return nil, err
				}
				return list(notes, 0), nil
			}),
	}
}

func taskTools() []Tool {
	return []Tool{
		define("create_task", "Créer une tâche, éventuellement liée à un client ou un projet",
			func(ctx context.Context, d *Dispatcher, tc *ToolContext, a createTaskArgs) (any, error) {
				due, err := tc.parseDate(a.DueDate, "dueDate")
				if err != nil {
					return nil, err
				}
				projectID, err := parseOptionalID(a.ProjectID, "projectId")
				if err != nil {
					return nil, err
				}
				c, err := d.optionalClient(ctx, tc, a.ClientRef)
				if err != nil {
					return nil, err
				}
				return d.deps.Work.CreateTask(ctx, tc.TenantID, services.TaskInput{
					Title:       a.Title,
					Description: a.Description,
					Priority:    models.Priority(a.Priority),
					DueDate:     due,
					ClientID:    c.idPtr(),
					ProjectID:   projectID,
				})
			}),

		define("list_tasks", "Lister les tâches par statut ou par client",
			func(ctx context.Context, d *Dispatcher, tc *ToolContext, a listTasksArgs) (any, error) {
				var filter repositories.TaskFilter
				if a.Status != "" {
					if !models.IsValidTaskStatus(a.Status) {
						return nil, apperrors.Invalid("Statut de tâche invalide")
					}
					filter.Statuses = []models.TaskStatus{models.TaskStatus(a.Status)}
				}
				c, err := d.optionalClient(ctx, tc, a.ClientRef)
				if err != nil {
					return nil, err
				}
				filter.ClientID = c.idPtr()
				tasks, total, err := d.deps.Work.ListTasks(ctx, tc.TenantID, filter,
					repositories.FindOptions{Limit: limitOr(a.Limit, 20, 100), OrderBy: "due_date", OrderDir: "asc"})
				if err != nil {
					return nil, err
				}
				return list(tasks, total), nil
			}),

		define("update_task_status", "Changer le statut d'une tâche",
			func(ctx context.Context, d *Dispatcher, tc *ToolContext, a updateTaskStatusArgs) (any, error) {
				id, err := parseID(a.TaskID, "taskId")
				if err != nil {
					return nil, err
				}
				return d.deps.Work.UpdateTaskStatus(ctx, tc.TenantID, id, models.TaskStatus(a.Status))
			}),

		define("create_project", "Créer un projet",
			func(ctx context.Context, d *Dispatcher, tc *ToolContext, a createProjectArgs) (any, error) {
				start, err := tc.parseDate(a.StartDate, "startDate")
				if err != nil {
					return nil, err
				}
				end, err := tc.parseDate(a.EndDate, "endDate")
				if err != nil {
					return nil, err
				}
				c, err := d.optionalClient(ctx, tc, a.ClientRef)
				if err != nil {
					return nil, err
				}
				return d.deps.Work.CreateProject(ctx, tc.TenantID, services.ProjectInput{
					Name:        a.Name,
					Description: a.Description,
					ClientID:    c.idPtr(),
					Budget:      a.Budget,
					StartDate:   start,
					EndDate:     end,
				})
			}),

		define("list_projects", "Lister les projets",
			func(ctx context.Context, d *Dispatcher, tc *ToolContext, a listProjectsArgs) (any, error) {
				c, err := d.optionalClient(ctx, tc, a.ClientRef)
				if err != nil {
					return nil, err
				}
				projects, total, err := d.deps.Work.ListProjects(ctx, tc.TenantID,
					repositories.ProjectFilter{ClientID: c.idPtr(), Status: models.ProjectStatus(a.Status)},
					repositories.FindOptions{Limit: 50})
				if err != nil {
					return nil, err
				}
				return list(projects, total), nil
			}),
	}
}

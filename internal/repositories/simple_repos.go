package repositories

import (
	"context"
	"strings"

	"crm-gin/internal/models"

	"gorm.io/gorm"
)

// ===========================================================================
// Aggregates that only need the generic tenant scoped CRUD and listing
// ===========================================================================

type taskRepo struct {
	*crudRepo[models.Task, TaskFilter]
}

func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &taskRepo{crudRepo: newCrudRepo[models.Task, TaskFilter](db)}
}

type projectRepo struct {
	*crudRepo[models.Project, ProjectFilter]
}

func NewProjectRepository(db *gorm.DB) ProjectRepository {
	return &projectRepo{crudRepo: newCrudRepo[models.Project, ProjectFilter](db, "Client")}
}

type subscriptionRepo struct {
	*crudRepo[models.Subscription, SubscriptionFilter]
}

func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &subscriptionRepo{crudRepo: newCrudRepo[models.Subscription, SubscriptionFilter](db, "Client")}
}

type contractRepo struct {
	*crudRepo[models.Contract, ContractFilter]
}

func NewContractRepository(db *gorm.DB) ContractRepository {
	return &contractRepo{crudRepo: newCrudRepo[models.Contract, ContractFilter](db, "Client")}
}

type serviceRepo struct {
	*crudRepo[models.Service, ServiceFilter]
}

func NewServiceRepository(db *gorm.DB) ServiceRepository {
	return &serviceRepo{crudRepo: newCrudRepo[models.Service, ServiceFilter](db)}
}

type domainRepo struct {
	*crudRepo[models.Domain, DomainFilter]
}

func NewDomainRepository(db *gorm.DB) DomainRepository {
	return &domainRepo{crudRepo: newCrudRepo[models.Domain, DomainFilter](db, "Client")}
}

func (r *domainRepo) UpsertByName(ctx context.Context, domain *models.Domain) (bool, error) {
	domain.Name = strings.ToLower(strings.TrimSpace(domain.Name))

	var existing models.Domain
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND name = ?", domain.TenantID, domain.Name).
		First(&existing).Error
	switch {
	case IsNotFound(err):
		return true, r.db.WithContext(ctx).Create(domain).Error
	case err != nil:
		return false, err
	}

	existing.Registrar = domain.Registrar
	existing.ExpiresAt = domain.ExpiresAt
	existing.AutoRenew = domain.AutoRenew
	if domain.ClientID != nil {
		existing.ClientID = domain.ClientID
	}
	*domain = existing
	return false, r.db.WithContext(ctx).Omit("Client").Save(&existing).Error
}

package repositories

import (
	"context"

	"gorm.io/gorm"
)

// Store bundles every repository over the same connection so services can
// run multi-aggregate writes in one transaction.
type Store struct {
	db *gorm.DB

	Tenants       TenantRepository
	Users         UserRepository
	Clients       ClientRepository
	Invoices      InvoiceRepository
	Quotes        QuoteRepository
	Notes         NoteRepository
	Tasks         TaskRepository
	Projects      ProjectRepository
	Tickets       TicketRepository
	Subscriptions SubscriptionRepository
	Domains       DomainRepository
	Contracts     ContractRepository
	Services      ServiceRepository
	BankAccounts  BankAccountRepository
	Transactions  BankTransactionRepository
	Conversations TelegramConversationRepository
}

func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:            db,
		Tenants:       NewTenantRepository(db),
		Users:         NewUserRepository(db),
		Clients:       NewClientRepository(db),
		Invoices:      NewInvoiceRepository(db),
		Quotes:        NewQuoteRepository(db),
		Notes:         NewNoteRepository(db),
		Tasks:         NewTaskRepository(db),
		Projects:      NewProjectRepository(db),
		Tickets:       NewTicketRepository(db),
		Subscriptions: NewSubscriptionRepository(db),
		Domains:       NewDomainRepository(db),
		Contracts:     NewContractRepository(db),
		Services:      NewServiceRepository(db),
		BankAccounts:  NewBankAccountRepository(db),
		Transactions:  NewBankTransactionRepository(db),
		Conversations: NewTelegramConversationRepository(db),
	}
}

// DB exposes the underlying connection (health checks, migrations)
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Transaction runs fn with a Store bound to a single database transaction.
// Any error returned by fn rolls everything back.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	})
}

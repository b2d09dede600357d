package models

// AllModels lists every model for database.AutoMigrate
func AllModels() []interface{} {
	return []interface{}{
		&Tenant{},
		&User{},
		&Client{},
		&Invoice{},
		&InvoiceItem{},
		&Quote{},
		&QuoteItem{},
		&Note{},
		&NoteLink{},
		&Task{},
		&Project{},
		&Ticket{},
		&TicketMessage{},
		&Service{},
		&Subscription{},
		&Domain{},
		&Contract{},
		&BankAccount{},
		&BankTransaction{},
		&TelegramConversation{},
		&DocumentSequence{},
	}
}

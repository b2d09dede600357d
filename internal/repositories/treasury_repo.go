package repositories

import (
	"context"

	"crm-gin/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type bankAccountRepo struct {
	*crudRepo[models.BankAccount, NoFilter]
}

func NewBankAccountRepository(db *gorm.DB) BankAccountRepository {
	return &bankAccountRepo{crudRepo: newCrudRepo[models.BankAccount, NoFilter](db)}
}

func (r *bankAccountRepo) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]models.BankAccount, error) {
	var accounts []models.BankAccount
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("name ASC").
		Find(&accounts).Error
	return accounts, err
}

func (r *bankAccountRepo) FindByRequisitionID(ctx context.Context, tenantID uuid.UUID, requisitionID string) ([]models.BankAccount, error) {
	var accounts []models.BankAccount
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND gocardless_requisition_id = ?", tenantID, requisitionID).
		Find(&accounts).Error
	return accounts, err
}

func (r *bankAccountRepo) FindByExternalAccountID(ctx context.Context, tenantID uuid.UUID, externalID string) (*models.BankAccount, error) {
	var account models.BankAccount
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND gocardless_account_id = ?", tenantID, externalID).
		First(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

type bankTransactionRepo struct {
	*crudRepo[models.BankTransaction, TransactionFilter]
}

func NewBankTransactionRepository(db *gorm.DB) BankTransactionRepository {
	return &bankTransactionRepo{crudRepo: newCrudRepo[models.BankTransaction, TransactionFilter](db)}
}

// InsertNew relies on the (bank_account_id, external_id) unique index
func (r *bankTransactionRepo) InsertNew(ctx context.Context, txs []models.BankTransaction) (int64, error) {
	if len(txs) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Omit("BankAccount").
		CreateInBatches(&txs, 100)
	return res.RowsAffected, res.Error
}

func (r *bankTransactionRepo) Flows(ctx context.Context, tenantID uuid.UUID, filter TransactionFilter) (CashFlow, error) {
	var flow CashFlow
	err := filter.Apply(r.db.WithContext(ctx).Model(&models.BankTransaction{}).Where("tenant_id = ?", tenantID)).
		Select("COALESCE(SUM(CASE WHEN amount > 0 THEN amount ELSE 0 END), 0) AS credits, " +
			"COALESCE(SUM(CASE WHEN amount < 0 THEN amount ELSE 0 END), 0) AS debits, COUNT(*) AS count").
		Scan(&flow).Error
	return flow, err
}

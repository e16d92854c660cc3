// Package mongo provides the MongoDB implementation of the cash ledger. The
// ledger is append-only: entries are inserted and read, never updated.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/scrapyard-ledger/internal/domain/ledger"
)

const (
	// LedgerCollectionName is the name of the ledger collection in MongoDB
	LedgerCollectionName = "ledger_entries"
)

// LedgerRepository implements the ledger.Repository interface for MongoDB
type LedgerRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

// NewLedgerRepository creates a new MongoDB ledger repository
func NewLedgerRepository(logger *slog.Logger, db *mongo.Database) ledger.Repository {
	return &LedgerRepository{
		db:     db,
		logger: logger,
	}
}

// Append stores a new ledger entry. For transaction-completion entries it
// first checks the transaction id: a replayed completion returns
// ErrDuplicateEntry and writes nothing, which is what makes the
// completion-to-ledger bridge at-most-once. A unique index on
// (tenant_id, transaction_id) backs this check against racing writers.
func (r *LedgerRepository) Append(ctx context.Context, entry *ledger.Entry) error {
	collection := r.db.Collection(LedgerCollectionName)

	if entry.Type == ledger.EntryTypeTransaction && entry.TransactionID != nil {
		existing, err := r.GetByTransactionID(ctx, entry.TenantID, *entry.TransactionID)
		if err != nil && !errors.Is(err, ledger.ErrEntryNotFound{}) {
			r.logger.Error("Failed to check for existing ledger entry",
				"transaction_id", entry.TransactionID.String(),
				"error", err)
			return fmt.Errorf("failed to check for existing ledger entry: %w", err)
		}
		if existing != nil {
			return ledger.ErrDuplicateEntry{TransactionID: *entry.TransactionID}
		}
	}

	_, err := collection.InsertOne(ctx, entry)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) && entry.TransactionID != nil {
			return ledger.ErrDuplicateEntry{TransactionID: *entry.TransactionID}
		}
		r.logger.Error("Failed to append ledger entry",
			"entry_id", entry.ID.String(),
			"error", err)
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}

	return nil
}

// GetByID retrieves one entry within the tenant scope.
// Returns ErrEntryNotFound if no entry exists for the tenant.
func (r *LedgerRepository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*ledger.Entry, error) {
	collection := r.db.Collection(LedgerCollectionName)

	filter := bson.M{"id": id, "tenant_id": tenantID}
	var entry ledger.Entry
	err := collection.FindOne(ctx, filter).Decode(&entry)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ledger.ErrEntryNotFound{EntryID: id}
		}
		r.logger.Error("Failed to get ledger entry",
			"entry_id", id.String(),
			"error", err)
		return nil, fmt.Errorf("failed to get ledger entry: %w", err)
	}

	return &entry, nil
}

// GetByTransactionID finds the completion entry for a transaction, if any.
// Returns ErrEntryNotFound if the transaction has not reached the ledger.
func (r *LedgerRepository) GetByTransactionID(ctx context.Context, tenantID, transactionID uuid.UUID) (*ledger.Entry, error) {
	collection := r.db.Collection(LedgerCollectionName)

	filter := bson.M{"tenant_id": tenantID, "transaction_id": transactionID}
	var entry ledger.Entry
	err := collection.FindOne(ctx, filter).Decode(&entry)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ledger.ErrEntryNotFound{}
		}
		r.logger.Error("Failed to get ledger entry by transaction id",
			"transaction_id", transactionID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to get ledger entry by transaction id: %w", err)
	}

	return &entry, nil
}

// ListByTenant retrieves paginated ledger entries for a tenant.
// Results are sorted by timestamp in descending order (newest first).
func (r *LedgerRepository) ListByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*ledger.Entry, error) {
	collection := r.db.Collection(LedgerCollectionName)

	filter := bson.M{"tenant_id": tenantID}
	opts := options.Find().
		SetSort(bson.M{"timestamp": -1}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		r.logger.Error("Failed to list ledger entries",
			"tenant_id", tenantID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []*ledger.Entry
	if err := cursor.All(ctx, &entries); err != nil {
		r.logger.Error("Failed to decode ledger entries",
			"tenant_id", tenantID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to decode ledger entries: %w", err)
	}

	return entries, nil
}

// CountByTenant counts the total number of ledger entries for a tenant
func (r *LedgerRepository) CountByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	collection := r.db.Collection(LedgerCollectionName)

	filter := bson.M{"tenant_id": tenantID}
	count, err := collection.CountDocuments(ctx, filter)
	if err != nil {
		r.logger.Error("Failed to count ledger entries",
			"tenant_id", tenantID.String(),
			"error", err)
		return 0, fmt.Errorf("failed to count ledger entries: %w", err)
	}

	return count, nil
}

// SumByTenant computes the tenant's cash balance as of the given time by
// summing all signed amounts. The ledger is the only source of this number;
// nothing caches it.
func (r *LedgerRepository) SumByTenant(ctx context.Context, tenantID uuid.UUID, asOf time.Time) (int64, error) {
	collection := r.db.Collection(LedgerCollectionName)

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"tenant_id": tenantID,
			"timestamp": bson.M{"$lte": asOf},
		}}},
		{{Key: "$group", Value: bson.M{
			"_id":   nil,
			"total": bson.M{"$sum": "$amount"},
		}}},
	}

	cursor, err := collection.Aggregate(ctx, pipeline)
	if err != nil {
		r.logger.Error("Failed to sum ledger entries",
			"tenant_id", tenantID.String(),
			"error", err)
		return 0, fmt.Errorf("failed to sum ledger entries: %w", err)
	}
	defer cursor.Close(ctx)

	var results []struct {
		Total int64 `bson:"total"`
	}
	if err := cursor.All(ctx, &results); err != nil {
		return 0, fmt.Errorf("failed to decode ledger sum: %w", err)
	}

	// No entries yet means a zero balance.
	if len(results) == 0 {
		return 0, nil
	}

	return results[0].Total, nil
}

// EnsureLedgerIndexes creates the indexes the ledger relies on: a unique
// entry id so replayed appends cannot double-write, and a unique, partial
// (tenant_id, transaction_id) pair backing the at-most-once completion
// append. Safe to call on every startup.
func EnsureLedgerIndexes(ctx context.Context, db *mongo.Database) error {
	collection := db.Collection(LedgerCollectionName)

	_, err := collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "transaction_id", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"transaction_id": bson.M{"$exists": true}}),
		},
		{
			Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "timestamp", Value: -1}},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create ledger indexes: %w", err)
	}
	return nil
}

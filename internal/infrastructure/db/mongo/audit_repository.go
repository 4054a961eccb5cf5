package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/libretyverse/marketplace-api/internal/core/domain"
)

const auditCollection = "role_audits"

// MongoRoleAuditRepository is the append-only audit sink. Entries are never
// updated or deleted.
type MongoRoleAuditRepository struct {
	coll *mongo.Collection
}

func NewRoleAuditRepository(db *mongo.Database) *MongoRoleAuditRepository {
	return &MongoRoleAuditRepository{coll: db.Collection(auditCollection)}
}

type mongoRoleAudit struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	AdminWallet  string             `bson:"admin_wallet"`
	Action       string             `bson:"action"`
	Role         string             `bson:"role,omitempty"`
	TargetWallet string             `bson:"target_wallet"`
	Outcome      string             `bson:"outcome"`
	Error        string             `bson:"error,omitempty"`
	TxHash       string             `bson:"tx_hash,omitempty"`
	Timestamp    int64              `bson:"timestamp"`
}

func (r *MongoRoleAuditRepository) Record(ctx context.Context, entry *domain.RoleAudit) error {
	doc := mongoRoleAudit{
		AdminWallet:  entry.AdminWallet,
		Action:       entry.Action,
		Role:         string(entry.Role),
		TargetWallet: entry.TargetWallet,
		Outcome:      entry.Outcome,
		Error:        entry.Error,
		TxHash:       entry.TxHash,
		Timestamp:    entry.Timestamp.Unix(),
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (r *MongoRoleAuditRepository) ListByTarget(ctx context.Context, wallet string, limit int64) ([]*domain.RoleAudit, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}})
	if limit > 0 {
		opts = opts.SetLimit(limit)
	}

	filter := bson.M{"target_wallet": domain.CanonicalWallet(wallet)}
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer cur.Close(ctx)

	var entries []*domain.RoleAudit
	for cur.Next(ctx) {
		var ma mongoRoleAudit
		if err := cur.Decode(&ma); err != nil {
			return nil, fmt.Errorf("decode audit entry: %w", err)
		}
		entries = append(entries, &domain.RoleAudit{
			ID:           ma.ID.Hex(),
			AdminWallet:  ma.AdminWallet,
			Action:       ma.Action,
			Role:         domain.Role(ma.Role),
			TargetWallet: ma.TargetWallet,
			Outcome:      ma.Outcome,
			Error:        ma.Error,
			TxHash:       ma.TxHash,
			Timestamp:    time.Unix(ma.Timestamp, 0).UTC(),
		})
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return entries, nil
}

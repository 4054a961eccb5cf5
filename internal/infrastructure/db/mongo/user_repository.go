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

const userCollection = "users"

type MongoUserRepository struct {
	coll *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *MongoUserRepository {
	return &MongoUserRepository{coll: db.Collection(userCollection)}
}

// EnsureIndexes creates the unique indexes on email and canonical wallet
// address. Uniqueness on the canonical form closes the duplicate-record bug
// class from mixed-case addresses.
func (r *MongoUserRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "wallet_address", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	})
	if err != nil {
		return fmt.Errorf("create user indexes: %w", err)
	}
	return nil
}

type mongoUser struct {
	ID            primitive.ObjectID `bson:"_id,omitempty"`
	Email         string             `bson:"email"`
	PasswordHash  string             `bson:"password_hash,omitempty"`
	WalletAddress string             `bson:"wallet_address"`
	Role          string             `bson:"role"`
	CreatedAt     int64              `bson:"created_at"`
	UpdatedAt     int64              `bson:"updated_at"`
}

func (r *MongoUserRepository) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	doc := mongoUser{
		Email:         user.Email,
		PasswordHash:  user.PasswordHash,
		WalletAddress: domain.CanonicalWallet(user.WalletAddress),
		Role:          string(user.Role),
		CreatedAt:     user.CreatedAt.Unix(),
		UpdatedAt:     user.UpdatedAt.Unix(),
	}

	res, err := r.coll.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrUserExists
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	created := *user
	created.WalletAddress = doc.WalletAddress
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		created.ID = oid.Hex()
	}
	return &created, nil
}

func (r *MongoUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *MongoUserRepository) FindByWallet(ctx context.Context, wallet string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"wallet_address": domain.CanonicalWallet(wallet)})
}

func (r *MongoUserRepository) findOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	var mu mongoUser
	if err := r.coll.FindOne(ctx, filter).Decode(&mu); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return toDomainUser(&mu), nil
}

// UpdateRole applies the role change only when the stored role still equals
// expected, pushing the compare-and-swap down to a single filtered update so
// concurrent writers cannot both apply.
func (r *MongoUserRepository) UpdateRole(ctx context.Context, wallet string, role, expected domain.Role) error {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{
			"wallet_address": domain.CanonicalWallet(wallet),
			"role":           string(expected),
		},
		bson.M{"$set": bson.M{
			"role":       string(role),
			"updated_at": time.Now().UTC().Unix(),
		}},
	)
	if err != nil {
		return fmt.Errorf("update role: %w", err)
	}
	if res.MatchedCount == 0 {
		// Distinguish a missing user from a lost race on the expected role.
		if _, err := r.FindByWallet(ctx, wallet); err != nil {
			return err
		}
		return domain.ErrRoleMismatch
	}
	return nil
}

func (r *MongoUserRepository) ListByRoles(ctx context.Context, roles []domain.Role) ([]*domain.User, error) {
	values := make([]string, 0, len(roles))
	for _, role := range roles {
		values = append(values, string(role))
	}

	cur, err := r.coll.Find(ctx, bson.M{"role": bson.M{"$in": values}})
	if err != nil {
		return nil, fmt.Errorf("list users by role: %w", err)
	}
	defer cur.Close(ctx)

	var users []*domain.User
	for cur.Next(ctx) {
		var mu mongoUser
		if err := cur.Decode(&mu); err != nil {
			return nil, fmt.Errorf("decode user: %w", err)
		}
		users = append(users, toDomainUser(&mu))
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

func toDomainUser(mu *mongoUser) *domain.User {
	return &domain.User{
		ID:            mu.ID.Hex(),
		Email:         mu.Email,
		PasswordHash:  mu.PasswordHash,
		WalletAddress: mu.WalletAddress,
		Role:          domain.Role(mu.Role),
		CreatedAt:     unixToTime(mu.CreatedAt),
		UpdatedAt:     unixToTime(mu.UpdatedAt),
	}
}

func unixToTime(ts int64) time.Time {
	if ts == 0 {
		return time.Time{}
	}
	return time.Unix(ts, 0).UTC()
}

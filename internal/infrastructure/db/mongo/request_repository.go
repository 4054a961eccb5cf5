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

const requestCollection = "author_requests"

type MongoAuthorRequestRepository struct {
	coll *mongo.Collection
}

func NewAuthorRequestRepository(db *mongo.Database) *MongoAuthorRequestRepository {
	return &MongoAuthorRequestRepository{coll: db.Collection(requestCollection)}
}

// EnsureIndexes enforces at most one outstanding request per canonical wallet.
func (r *MongoAuthorRequestRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "wallet_address", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create author request index: %w", err)
	}
	return nil
}

type mongoAuthorRequest struct {
	ID            primitive.ObjectID `bson:"_id,omitempty"`
	WalletAddress string             `bson:"wallet_address"`
	Status        string             `bson:"status"`
	RequestedAt   int64              `bson:"requested_at"`
}

func (r *MongoAuthorRequestRepository) Create(ctx context.Context, req *domain.AuthorRequest) (*domain.AuthorRequest, error) {
	doc := mongoAuthorRequest{
		WalletAddress: domain.CanonicalWallet(req.WalletAddress),
		Status:        string(req.Status),
		RequestedAt:   req.RequestedAt.Unix(),
	}

	res, err := r.coll.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrDuplicateRequest
		}
		return nil, fmt.Errorf("insert author request: %w", err)
	}

	created := *req
	created.WalletAddress = doc.WalletAddress
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		created.ID = oid.Hex()
	}
	return &created, nil
}

func (r *MongoAuthorRequestRepository) FindByWallet(ctx context.Context, wallet string) (*domain.AuthorRequest, error) {
	var mr mongoAuthorRequest
	filter := bson.M{"wallet_address": domain.CanonicalWallet(wallet)}
	if err := r.coll.FindOne(ctx, filter).Decode(&mr); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, domain.ErrNoRequestFound
		}
		return nil, fmt.Errorf("find author request: %w", err)
	}
	return toDomainRequest(&mr), nil
}

func (r *MongoAuthorRequestRepository) Delete(ctx context.Context, wallet string) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"wallet_address": domain.CanonicalWallet(wallet)})
	if err != nil {
		return fmt.Errorf("delete author request: %w", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrNoRequestFound
	}
	return nil
}

func (r *MongoAuthorRequestRepository) List(ctx context.Context) ([]*domain.AuthorRequest, error) {
	cur, err := r.coll.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("list author requests: %w", err)
	}
	defer cur.Close(ctx)

	var reqs []*domain.AuthorRequest
	for cur.Next(ctx) {
		var mr mongoAuthorRequest
		if err := cur.Decode(&mr); err != nil {
			return nil, fmt.Errorf("decode author request: %w", err)
		}
		reqs = append(reqs, toDomainRequest(&mr))
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("iterate author requests: %w", err)
	}
	return reqs, nil
}

func toDomainRequest(mr *mongoAuthorRequest) *domain.AuthorRequest {
	return &domain.AuthorRequest{
		ID:            mr.ID.Hex(),
		WalletAddress: mr.WalletAddress,
		Status:        domain.RequestStatus(mr.Status),
		RequestedAt:   time.Unix(mr.RequestedAt, 0).UTC(),
	}
}

package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const customersCollection = "Customers"

type MongoCustomerRepository struct {
	collection *mongo.Collection
}

func NewCustomerRepository(db *mongo.Database) *MongoCustomerRepository {
	return &MongoCustomerRepository{
		collection: db.Collection(customersCollection),
	}
}

func (m *MongoCustomerRepository) FindByID(ctx context.Context, id int64) (*domain.Customer, error) {
	return m.findOne(ctx, bson.M{"id": id})
}

func (m *MongoCustomerRepository) FindByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	return m.findOne(ctx, bson.M{"email": email})
}

func (m *MongoCustomerRepository) findOne(ctx context.Context, filter bson.M) (*domain.Customer, error) {
	var customer domain.Customer

	err := m.collection.FindOne(ctx, filter).Decode(&customer)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCustomerNotFound
		}
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}

	return &customer, nil
}

// SaveBaskets writes only the baskets array, guarded by the version read
// with the customer. Documents created before versioning have no version
// field and are treated as version 0.
func (m *MongoCustomerRepository) SaveBaskets(ctx context.Context, customer *domain.Customer) error {
	filter := bson.M{"id": customer.ID, "version": customer.Version}
	if customer.Version == 0 {
		filter = bson.M{
			"id": customer.ID,
			"$or": bson.A{
				bson.M{"version": 0},
				bson.M{"version": bson.M{"$exists": false}},
			},
		}
	}

	baskets := customer.Baskets
	if baskets == nil {
		baskets = []domain.Basket{}
	}
	update := bson.M{
		"$set": bson.M{"baskets": baskets},
		"$inc": bson.M{"version": 1},
	}

	result, err := m.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to save baskets: %w", err)
	}

	if result.MatchedCount == 0 {
		// Distinguish a stale version from a customer that no longer exists.
		n, err := m.collection.CountDocuments(ctx, bson.M{"id": customer.ID}, options.Count().SetLimit(1))
		if err != nil {
			return fmt.Errorf("failed to check customer: %w", err)
		}
		if n == 0 {
			return ErrCustomerNotFound
		}
		return ErrVersionConflict
	}

	customer.Version++
	return nil
}

func (m *MongoCustomerRepository) SetPasswordHash(ctx context.Context, email, hash string) error {
	update := bson.M{
		"$set":   bson.M{"password_hash": hash},
		"$unset": bson.M{"encrypted_password": ""},
	}

	result, err := m.collection.UpdateOne(ctx, bson.M{"email": email}, update)
	if err != nil {
		return fmt.Errorf("failed to set password hash: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrCustomerNotFound
	}
	return nil
}

func (m *MongoCustomerRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "email", Value: 1}},
		},
	}

	_, err := m.collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create customer indexes: %w", err)
	}

	return nil
}

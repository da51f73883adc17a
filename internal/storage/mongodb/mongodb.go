package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"authsvc/internal/domain/models"
	"authsvc/internal/storage"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type Storage struct {
	client *mongo.Client
	users  *mongo.Collection
	tokens *mongo.Collection
}

// userDoc and refreshTokenDoc are both keyed by username, so a user can own
// at most one refresh token document.
type userDoc struct {
	Username  string    `bson:"_id"`
	PassHash  []byte    `bson:"pass_hash"`
	Role      string    `bson:"role"`
	CreatedAt time.Time `bson:"created_at"`
}

type refreshTokenDoc struct {
	Username  string    `bson:"_id"`
	Token     string    `bson:"token"`
	ExpiresAt time.Time `bson:"expiry_date"`
}

// New creates a new MongoDB storage instance and sets up indexes.
func New(ctx context.Context, uri, database string) (*Storage, error) {
	const op = "storage.mongodb.New"

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("%s: connect: %w", op, err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("%s: ping: %w", op, err)
	}

	db := client.Database(database)
	s := &Storage{
		client: client,
		users:  db.Collection("users"),
		tokens: db.Collection("refresh_tokens"),
	}

	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("%s: indexes: %w", op, err)
	}

	return s, nil
}

func (s *Storage) ensureIndexes(ctx context.Context) error {
	// refresh_tokens.token unique; lookups during refresh go by value.
	// No TTL index: an expired row has to stay visible so refresh can report
	// it as expired and delete it.
	_, err := s.tokens.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "token", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("refresh_tokens.token index: %w", err)
	}

	return nil
}

// Close disconnects from MongoDB.
func (s *Storage) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// SaveUser inserts a new user document.
func (s *Storage) SaveUser(ctx context.Context, user models.User) error {
	const op = "storage.mongodb.SaveUser"

	doc := userDoc{
		Username:  user.Username,
		PassHash:  user.PassHash,
		Role:      user.Role,
		CreatedAt: time.Now().UTC(),
	}

	if _, err := s.users.InsertOne(ctx, doc); err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("%s: %w", op, storage.ErrUserExists)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// User retrieves a user by username.
func (s *Storage) User(ctx context.Context, username string) (*models.User, error) {
	const op = "storage.mongodb.User"

	var doc userDoc
	err := s.users.FindOne(ctx, bson.D{{Key: "_id", Value: username}}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &models.User{
		Username: doc.Username,
		PassHash: doc.PassHash,
		Role:     doc.Role,
	}, nil
}

func (s *Storage) UserExists(ctx context.Context, username string) (bool, error) {
	const op = "storage.mongodb.UserExists"

	n, err := s.users.CountDocuments(ctx, bson.D{{Key: "_id", Value: username}}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return n > 0, nil
}

// SaveRefreshToken replaces the refresh token document of the user, creating
// it when missing.
func (s *Storage) SaveRefreshToken(ctx context.Context, token models.RefreshToken) error {
	const op = "storage.mongodb.SaveRefreshToken"

	doc := refreshTokenDoc{
		Username:  token.Username,
		Token:     token.Token,
		ExpiresAt: token.ExpiresAt.UTC(),
	}

	_, err := s.tokens.ReplaceOne(ctx,
		bson.D{{Key: "_id", Value: token.Username}},
		doc,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// RefreshToken retrieves a refresh token by its value.
func (s *Storage) RefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	const op = "storage.mongodb.RefreshToken"

	var doc refreshTokenDoc
	err := s.tokens.FindOne(ctx, bson.D{{Key: "token", Value: token}}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrTokenNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &models.RefreshToken{
		Username:  doc.Username,
		Token:     doc.Token,
		ExpiresAt: doc.ExpiresAt.UTC(),
	}, nil
}

func (s *Storage) DeleteRefreshToken(ctx context.Context, username string) error {
	const op = "storage.mongodb.DeleteRefreshToken"

	if _, err := s.tokens.DeleteOne(ctx, bson.D{{Key: "_id", Value: username}}); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// isDuplicateKeyError checks if the error is a MongoDB duplicate key error (code 11000).
func isDuplicateKeyError(err error) bool {
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == 11000 {
				return true
			}
		}
	}
	return false
}

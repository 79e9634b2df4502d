package mongo

import (
	"context"
	"errors"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	interfaces "github.com/sheikh-saqib/p2p-balance-ledger/internal/interfaces"
	"github.com/sheikh-saqib/p2p-balance-ledger/internal/models"
)

type userDoc struct {
	ID        string    `bson:"_id"`
	Username  string    `bson:"username"`
	Password  string    `bson:"password"`
	FirstName string    `bson:"firstname"`
	LastName  string    `bson:"lastname"`
	CreatedAt time.Time `bson:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

func (d userDoc) toModel() models.User {
	return models.User{
		ID:           d.ID,
		Username:     d.Username,
		PasswordHash: d.Password,
		FirstName:    d.FirstName,
		LastName:     d.LastName,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

type MongoUserStore struct {
	users *mongo.Collection
	now   func() time.Time
}

func NewMongoUserStore(db *mongo.Database) *MongoUserStore {
	return &MongoUserStore{users: db.Collection(usersCollection), now: time.Now}
}

func (s *MongoUserStore) CreateUser(ctx context.Context, user models.User) error {
	now := s.now().UTC()
	doc := userDoc{
		ID:        user.ID,
		Username:  user.Username,
		Password:  user.PasswordHash,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = now
	}

	_, err := s.users.InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return models.ErrUserExists
	}
	return mapError(err)
}

func (s *MongoUserStore) findOne(ctx context.Context, filter bson.M) (models.User, error) {
	var doc userDoc
	err := s.users.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.User{}, models.ErrUserNotFound
	}
	if err != nil {
		return models.User{}, mapError(err)
	}
	return doc.toModel(), nil
}

func (s *MongoUserStore) GetUser(ctx context.Context, id string) (models.User, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *MongoUserStore) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	return s.findOne(ctx, bson.M{"username": username})
}

func (s *MongoUserStore) UpdateUser(ctx context.Context, id string, update models.UserUpdate) error {
	set := bson.M{"updatedAt": s.now().UTC()}
	if update.PasswordHash != nil {
		set["password"] = *update.PasswordHash
	}
	if update.FirstName != nil {
		set["firstname"] = *update.FirstName
	}
	if update.LastName != nil {
		set["lastname"] = *update.LastName
	}

	res, err := s.users.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return mapError(err)
	}
	if res.MatchedCount == 0 {
		return models.ErrUserNotFound
	}
	return nil
}

func (s *MongoUserStore) DeleteUser(ctx context.Context, id string) error {
	res, err := s.users.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return mapError(err)
	}
	if res.DeletedCount == 0 {
		return models.ErrUserNotFound
	}
	return nil
}

func (s *MongoUserStore) SearchUsers(ctx context.Context, filter string) ([]models.User, error) {
	pattern := primitive.Regex{Pattern: regexp.QuoteMeta(filter), Options: "i"}
	query := bson.M{"$or": bson.A{
		bson.M{"firstname": pattern},
		bson.M{"lastname": pattern},
	}}

	cur, err := s.users.Find(ctx, query, options.Find().SetSort(bson.D{{Key: "username", Value: 1}}))
	if err != nil {
		return nil, mapError(err)
	}
	defer cur.Close(ctx)

	users := make([]models.User, 0)
	for cur.Next(ctx) {
		var doc userDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, mapError(err)
		}
		users = append(users, doc.toModel())
	}
	if err := cur.Err(); err != nil {
		return nil, mapError(err)
	}
	return users, nil
}

var _ interfaces.UserStore = (*MongoUserStore)(nil)

package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/finlix/backend/internal/models"
	"github.com/finlix/backend/internal/repositories"
	"github.com/finlix/backend/internal/utils"
)

// userDoc mirrors documents in the users collection.
type userDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Email     string             `bson:"email"`
	Name      string             `bson:"name"`
	PhotoURL  string             `bson:"photoURL"`
	Role      string             `bson:"role"`
	Status    string             `bson:"status"`
	CreatedAt time.Time          `bson:"createdAt"`
}

func (d userDoc) model() *models.User {
	return &models.User{
		ID:        d.ID.Hex(),
		Email:     d.Email,
		Name:      d.Name,
		PhotoURL:  d.PhotoURL,
		Role:      models.Role(d.Role),
		Status:    models.UserStatus(d.Status),
		CreatedAt: d.CreatedAt,
	}
}

type userRepo struct {
	col *mongo.Collection
}

func NewUserRepo(db *mongo.Database) repositories.UserRepository {
	return &userRepo{col: db.Collection("users")}
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var d userDoc
	err := r.col.FindOne(ctx, bson.M{"email": email}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return d.model(), nil
}

func (r *userRepo) List(ctx context.Context) ([]models.User, error) {
	cur, err := r.col.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var docs []userDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]models.User, 0, len(docs))
	for _, d := range docs {
		out = append(out, *d.model())
	}
	return out, nil
}

func (r *userRepo) Upsert(ctx context.Context, u *models.User) (bool, error) {
	update := bson.M{"$set": bson.M{
		"name":      u.Name,
		"photoURL":  u.PhotoURL,
		"role":      string(u.Role),
		"status":    string(u.Status),
		"createdAt": u.CreatedAt.UTC(),
	}}
	res, err := r.upsertOne(ctx, u.Email, update)
	if err != nil {
		return false, err
	}
	if oid, ok := res.UpsertedID.(primitive.ObjectID); ok {
		u.ID = oid.Hex()
	}
	return res.UpsertedCount > 0, nil
}

func (r *userRepo) CreateIfAbsent(ctx context.Context, u *models.User) (*models.User, bool, error) {
	update := bson.M{"$setOnInsert": bson.M{
		"name":      u.Name,
		"photoURL":  u.PhotoURL,
		"role":      string(u.Role),
		"status":    string(u.Status),
		"createdAt": u.CreatedAt.UTC(),
	}}
	res, err := r.upsertOne(ctx, u.Email, update)
	if err != nil {
		return nil, false, err
	}
	stored, err := r.GetByEmail(ctx, u.Email)
	if err != nil {
		return nil, false, err
	}
	return stored, res.UpsertedCount > 0, nil
}

// upsertOne retries once when a concurrent insert of the same email wins the
// race against the unique index.
func (r *userRepo) upsertOne(ctx context.Context, email string, update bson.M) (*mongo.UpdateResult, error) {
	opts := options.Update().SetUpsert(true)
	res, err := r.col.UpdateOne(ctx, bson.M{"email": email}, update, opts)
	if mongo.IsDuplicateKeyError(err) {
		res, err = r.col.UpdateOne(ctx, bson.M{"email": email}, update, opts)
	}
	return res, err
}

func (r *userRepo) UpdateProfile(ctx context.Context, email string, p models.ProfileFields) (*models.User, error) {
	return r.findAndSet(ctx, bson.M{"email": email}, bson.M{
		"name":     p.Name,
		"photoURL": p.PhotoURL,
	})
}

func (r *userRepo) SetRole(ctx context.Context, id string, role models.Role) (*models.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, utils.ErrNotFound
	}
	return r.findAndSet(ctx, bson.M{"_id": oid}, bson.M{"role": string(role)})
}

func (r *userRepo) SetStatus(ctx context.Context, id string, status models.UserStatus) (*models.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, utils.ErrNotFound
	}
	return r.findAndSet(ctx, bson.M{"_id": oid}, bson.M{"status": string(status)})
}

func (r *userRepo) findAndSet(ctx context.Context, filter, set bson.M) (*models.User, error) {
	var d userDoc
	err := r.col.FindOneAndUpdate(ctx, filter, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return d.model(), nil
}

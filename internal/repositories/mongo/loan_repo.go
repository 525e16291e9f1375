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

type loanRepo struct {
	col *mongo.Collection
}

func NewLoanRepo(db *mongo.Database) repositories.LoanRepository {
	return &loanRepo{col: db.Collection("loans")}
}

func (r *loanRepo) Create(ctx context.Context, l *models.Loan) error {
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}

	doc := bson.M{}
	for k, v := range l.Fields {
		doc[k] = v
	}
	doc[models.FieldEmail] = l.Email
	doc[models.FieldStatus] = string(l.Status)
	doc[models.FieldCreatedAt] = l.CreatedAt
	doc[models.FieldShowOnHome] = l.ShowOnHome
	if l.CreatedBy != "" {
		doc[models.FieldCreatedBy] = l.CreatedBy
	}
	delete(doc, models.FieldID)

	res, err := r.col.InsertOne(ctx, doc)
	if err != nil {
		return err
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		l.ID = oid.Hex()
	}
	return nil
}

func (r *loanRepo) GetByID(ctx context.Context, id string) (*models.Loan, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, utils.ErrNotFound
	}

	var doc bson.M
	err = r.col.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	l := loanFromBSON(doc)
	return &l, nil
}

func (r *loanRepo) List(ctx context.Context, f models.LoanFilter) ([]models.Loan, error) {
	filter := bson.M{}
	if f.Email != "" {
		filter[models.FieldEmail] = f.Email
	}
	if len(f.Statuses) > 0 {
		in := make(bson.A, 0, len(f.Statuses))
		for _, s := range f.Statuses {
			in = append(in, string(s))
		}
		filter[models.FieldStatus] = bson.M{"$in": in}
	}

	cur, err := r.col.Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: models.FieldCreatedAt, Value: -1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var docs []bson.M
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]models.Loan, 0, len(docs))
	for _, d := range docs {
		out = append(out, loanFromBSON(d))
	}
	return out, nil
}

func (r *loanRepo) UpdateIfStatus(ctx context.Context, id, owner string, expected models.LoanStatus, patch models.LoanPatch) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return utils.ErrNotMatched
	}
	filter := bson.M{"_id": oid, models.FieldEmail: owner, models.FieldStatus: string(expected)}
	res, err := r.updateOne(ctx, filter, patch)
	if err != nil {
		return err
	}
	if res == 0 {
		return utils.ErrNotMatched
	}
	return nil
}

func (r *loanRepo) Update(ctx context.Context, id string, patch models.LoanPatch) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return utils.ErrNotFound
	}
	res, err := r.updateOne(ctx, bson.M{"_id": oid}, patch)
	if err != nil {
		return err
	}
	if res == 0 {
		return utils.ErrNotFound
	}
	return nil
}

// updateOne returns the matched count. An empty patch only checks existence,
// since the server rejects an empty $set.
func (r *loanRepo) updateOne(ctx context.Context, filter bson.M, patch models.LoanPatch) (int64, error) {
	if len(patch) == 0 {
		return r.col.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	}
	set := bson.M{}
	for k, v := range patch {
		set[k] = v
	}
	res, err := r.col.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return 0, err
	}
	return res.MatchedCount, nil
}

func (r *loanRepo) DeleteIfStatus(ctx context.Context, id, owner string, expected models.LoanStatus) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return utils.ErrNotMatched
	}
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": oid, models.FieldEmail: owner, models.FieldStatus: string(expected)})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return utils.ErrNotMatched
	}
	return nil
}

func (r *loanRepo) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return utils.ErrNotFound
	}
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return utils.ErrNotFound
	}
	return nil
}

func loanFromBSON(doc bson.M) models.Loan {
	if oid, ok := doc[models.FieldID].(primitive.ObjectID); ok {
		doc[models.FieldID] = oid.Hex()
	}
	if dt, ok := doc[models.FieldCreatedAt].(primitive.DateTime); ok {
		doc[models.FieldCreatedAt] = dt.Time().UTC()
	}
	return models.LoanFromDocument(doc)
}

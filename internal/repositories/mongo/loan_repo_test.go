package mongo

import (
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/finlix/backend/internal/models"
)

func TestLoanFromBSONConvertsDriverTypes(t *testing.T) {
	oid := primitive.NewObjectID()
	created := time.Date(2025, 5, 4, 3, 2, 1, 0, time.UTC)

	l := loanFromBSON(bson.M{
		"_id":        oid,
		"email":      "a@x.com",
		"status":     "Reviewing",
		"createdAt":  primitive.NewDateTimeFromTime(created),
		"createdBy":  "m@x.com",
		"showOnHome": true,
		"amount":     int32(5000),
	})

	if l.ID != oid.Hex() {
		t.Fatalf("id = %q, want %q", l.ID, oid.Hex())
	}
	if !l.CreatedAt.Equal(created) {
		t.Fatalf("createdAt = %v, want %v", l.CreatedAt, created)
	}
	if l.Status != models.LoanReviewing || l.CreatedBy != "m@x.com" || !l.ShowOnHome {
		t.Fatalf("typed fields lost: %+v", l)
	}
	if l.Fields["amount"] != int32(5000) {
		t.Fatalf("extra fields lost: %+v", l.Fields)
	}
}

package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/personalfinance/finance/backend/go-scheduler/internal/obligation"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoRepo is the remote tier. Records are keyed by the string "id" field
// and scoped by "ownerId"; amounts are stored as Decimal128.
type MongoRepo struct {
	obligations *mongo.Collection
	occurrences *mongo.Collection
}

func NewMongoRepo(db *mongo.Database) *MongoRepo {
	return &MongoRepo{
		obligations: db.Collection("obligations"),
		occurrences: db.Collection("occurrences"),
	}
}

// EnsureIndexes creates the lookup indexes (idempotent).
func (m *MongoRepo) EnsureIndexes(ctx context.Context) error {
	_, err := m.obligations.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "ownerId", Value: 1}, {Key: "createdAt", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("obligation indexes: %w", err)
	}
	_, err = m.occurrences.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "ownerId", Value: 1}, {Key: "executedAt", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("occurrence indexes: %w", err)
	}
	return nil
}

type obligationDoc struct {
	ID          string               `bson:"id"`
	OwnerID     string               `bson:"ownerId"`
	Name        string               `bson:"name"`
	Amount      primitive.Decimal128 `bson:"amount"`
	Category    string               `bson:"category"`
	Frequency   string               `bson:"frequency"`
	NextDueDate time.Time            `bson:"nextDueDate"`
	IsActive    bool                 `bson:"isActive"`
	CreatedAt   time.Time            `bson:"createdAt"`
	UpdatedAt   time.Time            `bson:"updatedAt"`
}

type occurrenceDoc struct {
	ID            string               `bson:"id"`
	ObligationID  string               `bson:"obligationId"`
	OwnerID       string               `bson:"ownerId"`
	Name          string               `bson:"name"`
	Amount        primitive.Decimal128 `bson:"amount"`
	Category      string               `bson:"category"`
	ExecutedAt    time.Time            `bson:"executedAt"`
	ScheduledDate time.Time            `bson:"scheduledDate"`
}

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.Decimal128{}, fmt.Errorf("amount %s: %w", d, err)
	}
	return v, nil
}

func fromDecimal128(v primitive.Decimal128) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("amount %s: %w", v, err)
	}
	return d, nil
}

func toObligationDoc(ob obligation.Obligation) (obligationDoc, error) {
	amt, err := toDecimal128(ob.Amount)
	if err != nil {
		return obligationDoc{}, err
	}
	return obligationDoc{
		ID:          ob.ID,
		OwnerID:     ob.OwnerID,
		Name:        ob.Name,
		Amount:      amt,
		Category:    string(ob.Category),
		Frequency:   string(ob.Frequency),
		NextDueDate: ob.NextDueDate.Time(),
		IsActive:    ob.IsActive,
		CreatedAt:   ob.CreatedAt.UTC(),
		UpdatedAt:   ob.UpdatedAt.UTC(),
	}, nil
}

func (d obligationDoc) toObligation() (obligation.Obligation, error) {
	amt, err := fromDecimal128(d.Amount)
	if err != nil {
		return obligation.Obligation{}, err
	}
	freq, err := obligation.ParseFrequency(d.Frequency)
	if err != nil {
		return obligation.Obligation{}, fmt.Errorf("obligation %s: %w", d.ID, err)
	}
	return obligation.Obligation{
		ID:          d.ID,
		OwnerID:     d.OwnerID,
		Name:        d.Name,
		Amount:      amt,
		Category:    obligation.Category(d.Category),
		Frequency:   freq,
		NextDueDate: obligation.DateOf(d.NextDueDate.UTC()),
		IsActive:    d.IsActive,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}, nil
}

func toOccurrenceDoc(o obligation.Occurrence) (occurrenceDoc, error) {
	amt, err := toDecimal128(o.Amount)
	if err != nil {
		return occurrenceDoc{}, err
	}
	return occurrenceDoc{
		ID:            o.ID,
		ObligationID:  o.ObligationID,
		OwnerID:       o.OwnerID,
		Name:          o.Name,
		Amount:        amt,
		Category:      string(o.Category),
		ExecutedAt:    o.ExecutedAt.UTC(),
		ScheduledDate: o.ScheduledDate.Time(),
	}, nil
}

func (d occurrenceDoc) toOccurrence() (obligation.Occurrence, error) {
	amt, err := fromDecimal128(d.Amount)
	if err != nil {
		return obligation.Occurrence{}, err
	}
	return obligation.Occurrence{
		ID:            d.ID,
		ObligationID:  d.ObligationID,
		OwnerID:       d.OwnerID,
		Name:          d.Name,
		Amount:        amt,
		Category:      obligation.Category(d.Category),
		ExecutedAt:    d.ExecutedAt,
		ScheduledDate: obligation.DateOf(d.ScheduledDate.UTC()),
	}, nil
}

func byOwnerAndID(ownerID, id string) bson.M {
	return bson.M{"id": id, "ownerId": ownerID}
}

func (m *MongoRepo) List(ctx context.Context, ownerID string) ([]obligation.Obligation, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := m.obligations.Find(ctx, bson.M{"ownerId": ownerID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []obligation.Obligation{}
	for cur.Next(ctx) {
		var d obligationDoc
		if err := cur.Decode(&d); err != nil {
			return nil, err
		}
		ob, err := d.toObligation()
		if err != nil {
			return nil, err
		}
		out = append(out, ob)
	}
	return out, cur.Err()
}

func (m *MongoRepo) Get(ctx context.Context, ownerID, id string) (*obligation.Obligation, error) {
	var d obligationDoc
	if err := m.obligations.FindOne(ctx, byOwnerAndID(ownerID, id)).Decode(&d); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, obligation.ErrNotFound
		}
		return nil, err
	}
	ob, err := d.toObligation()
	if err != nil {
		return nil, err
	}
	return &ob, nil
}

func (m *MongoRepo) Create(ctx context.Context, ob obligation.Obligation) error {
	d, err := toObligationDoc(ob)
	if err != nil {
		return err
	}
	_, err = m.obligations.InsertOne(ctx, d)
	return err
}

// replace writes next over the stored record, guarded by filter.
func (m *MongoRepo) replace(ctx context.Context, filter bson.M, next obligation.Obligation) (int64, error) {
	d, err := toObligationDoc(next)
	if err != nil {
		return 0, err
	}
	res, err := m.obligations.UpdateOne(ctx, filter, bson.M{"$set": bson.M{
		"name":        d.Name,
		"amount":      d.Amount,
		"category":    d.Category,
		"frequency":   d.Frequency,
		"nextDueDate": d.NextDueDate,
		"isActive":    d.IsActive,
		"updatedAt":   d.UpdatedAt,
	}})
	if err != nil {
		return 0, err
	}
	return res.MatchedCount, nil
}

func (m *MongoRepo) Mutate(ctx context.Context, ownerID, id string, fn MutateFunc) (*obligation.Obligation, error) {
	cur, err := m.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	next, err := fn(*cur)
	if err != nil {
		return nil, err
	}
	matched, err := m.replace(ctx, byOwnerAndID(ownerID, id), next)
	if err != nil {
		return nil, err
	}
	if matched == 0 {
		return nil, obligation.ErrNotFound
	}
	return &next, nil
}

func (m *MongoRepo) Delete(ctx context.Context, ownerID, id string) error {
	res, err := m.obligations.DeleteOne(ctx, byOwnerAndID(ownerID, id))
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return obligation.ErrNotFound
	}
	return nil
}

// Execute inserts the occurrence, then advances the obligation only if its
// due date is still the one that was read. A lost race removes the
// occurrence again and reports ErrStaleCycle.
func (m *MongoRepo) Execute(ctx context.Context, ownerID, id string, fn ExecuteFunc) (*obligation.Obligation, *obligation.Occurrence, error) {
	cur, err := m.Get(ctx, ownerID, id)
	if err != nil {
		return nil, nil, err
	}
	next, occ, err := fn(*cur)
	if err != nil {
		return nil, nil, err
	}
	od, err := toOccurrenceDoc(occ)
	if err != nil {
		return nil, nil, err
	}
	if _, err := m.occurrences.InsertOne(ctx, od); err != nil {
		return nil, nil, fmt.Errorf("append occurrence: %w", err)
	}
	filter := byOwnerAndID(ownerID, id)
	filter["nextDueDate"] = cur.NextDueDate.Time()
	matched, err := m.replace(ctx, filter, next)
	if err == nil && matched == 0 {
		err = obligation.ErrStaleCycle
	}
	if err != nil {
		_, _ = m.occurrences.DeleteOne(ctx, bson.M{"id": occ.ID})
		return nil, nil, err
	}
	return &next, &occ, nil
}

func (m *MongoRepo) ListOccurrences(ctx context.Context, ownerID string) ([]obligation.Occurrence, error) {
	opts := options.Find().SetSort(bson.D{{Key: "executedAt", Value: -1}})
	cur, err := m.occurrences.Find(ctx, bson.M{"ownerId": ownerID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []obligation.Occurrence{}
	for cur.Next(ctx) {
		var d occurrenceDoc
		if err := cur.Decode(&d); err != nil {
			return nil, err
		}
		o, err := d.toOccurrence()
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, cur.Err()
}

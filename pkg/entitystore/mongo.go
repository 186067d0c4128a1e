package entitystore

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	entitiesCollection = "entities"
	edgesCollection    = "edges"
)

// MongoStore implements Store on MongoDB. Entities live in one collection
// keyed by id; collection membership is stored as edge documents
// (owner, collection, member) ordered by member id, which gives stable
// cursor-based paging.
type MongoStore struct {
	entities *mongo.Collection
	edges    *mongo.Collection
}

// NewMongoStore creates a store bound to a database.
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		entities: db.Collection(entitiesCollection),
		edges:    db.Collection(edgesCollection),
	}
}

// EnsureIndexes creates the indexes paging and membership lookups rely on.
// Call it once at startup; it is idempotent.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.edges.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "owner_id", Value: 1}, {Key: "collection", Value: 1}, {Key: "member_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create edge index: %w", err)
	}
	return nil
}

type entityDoc struct {
	ID         string         `bson:"_id"`
	Type       string         `bson:"type"`
	Name       string         `bson:"name,omitempty"`
	Properties map[string]any `bson:"properties,omitempty"`
}

type edgeDoc struct {
	OwnerID    string `bson:"owner_id"`
	Collection string `bson:"collection"`
	MemberID   string `bson:"member_id"`
	MemberType string `bson:"member_type"`
}

func toDoc(e *Entity) entityDoc {
	return entityDoc{
		ID:         e.ID.String(),
		Type:       e.Type,
		Name:       e.Name,
		Properties: e.Properties,
	}
}

func fromDoc(doc entityDoc) (*Entity, error) {
	id, err := uuid.Parse(doc.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to parse entity id %q: %w", doc.ID, err)
	}
	return &Entity{
		Ref:        Ref{Type: doc.Type, ID: id},
		Name:       doc.Name,
		Properties: doc.Properties,
	}, nil
}

// Get implements Store.
func (s *MongoStore) Get(ctx context.Context, ref Ref) (*Entity, error) {
	var doc entityDoc
	err := s.entities.FindOne(ctx, bson.M{"_id": ref.ID.String()}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entity %s: %w", ref.ID, err)
	}
	return fromDoc(doc)
}

// Create implements Store.
func (s *MongoStore) Create(ctx context.Context, entity *Entity) error {
	if entity == nil {
		return ErrEntityNil
	}
	if _, err := s.entities.InsertOne(ctx, toDoc(entity)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("failed to create entity %s: %w", entity.ID, err)
	}
	return nil
}

// Update implements Store.
func (s *MongoStore) Update(ctx context.Context, entity *Entity) error {
	if entity == nil {
		return ErrEntityNil
	}
	res, err := s.entities.ReplaceOne(ctx, bson.M{"_id": entity.ID.String()}, toDoc(entity))
	if err != nil {
		return fmt.Errorf("failed to update entity %s: %w", entity.ID, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// AddToCollection implements Store.
func (s *MongoStore) AddToCollection(ctx context.Context, owner Ref, collection string, member Ref) error {
	filter := bson.M{
		"owner_id":   owner.ID.String(),
		"collection": collection,
		"member_id":  member.ID.String(),
	}
	update := bson.M{"$setOnInsert": edgeDoc{
		OwnerID:    owner.ID.String(),
		Collection: collection,
		MemberID:   member.ID.String(),
		MemberType: member.Type,
	}}
	_, err := s.edges.UpdateOne(ctx, filter, update, options.UpdateOne().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to add %s to %s/%s: %w", member.ID, owner.ID, collection, err)
	}
	return nil
}

// QueryCollection implements Store. The cursor is the member id of the last
// entity on the previous page. Property filters are applied after the page
// is loaded; pages may therefore come back short but the cursor still
// advances, so callers drain pages until HasMore is false.
func (s *MongoStore) QueryCollection(ctx context.Context, owner Ref, collection string, q Query) (Page, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}

	filter := bson.M{
		"owner_id":   owner.ID.String(),
		"collection": collection,
	}
	if q.Cursor != "" {
		filter["member_id"] = bson.M{"$gt": q.Cursor}
	}

	// Fetch one extra edge to learn whether another page exists.
	findOpts := options.Find().
		SetSort(bson.D{{Key: "member_id", Value: 1}}).
		SetLimit(int64(limit + 1))

	cur, err := s.edges.Find(ctx, filter, findOpts)
	if err != nil {
		return Page{}, fmt.Errorf("failed to query collection %s/%s: %w", owner.ID, collection, err)
	}
	var edges []edgeDoc
	if err := cur.All(ctx, &edges); err != nil {
		return Page{}, fmt.Errorf("failed to decode edges for %s/%s: %w", owner.ID, collection, err)
	}

	var page Page
	if len(edges) > limit {
		edges = edges[:limit]
		page.Cursor = edges[len(edges)-1].MemberID
	}
	if len(edges) == 0 {
		return page, nil
	}

	ids := make([]string, 0, len(edges))
	for _, edge := range edges {
		ids = append(ids, edge.MemberID)
	}
	entCur, err := s.entities.Find(ctx, bson.M{"_id": bson.M{"$in": ids}},
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return Page{}, fmt.Errorf("failed to load collection members: %w", err)
	}
	var docs []entityDoc
	if err := entCur.All(ctx, &docs); err != nil {
		return Page{}, fmt.Errorf("failed to decode collection members: %w", err)
	}

	for _, doc := range docs {
		entity, err := fromDoc(doc)
		if err != nil {
			return Page{}, err
		}
		if !matchesFilter(entity, q.Filter) {
			continue
		}
		page.Entities = append(page.Entities, entity)
	}
	return page, nil
}

// GetProperty implements Store.
func (s *MongoStore) GetProperty(ctx context.Context, ref Ref, name string) (any, error) {
	entity, err := s.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	return entity.Property(name), nil
}

// UpdateProperties implements Store.
func (s *MongoStore) UpdateProperties(ctx context.Context, ref Ref, props map[string]any) error {
	set := bson.M{}
	for name, value := range props {
		set["properties."+name] = value
	}
	res, err := s.entities.UpdateOne(ctx, bson.M{"_id": ref.ID.String()}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to update properties of %s: %w", ref.ID, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

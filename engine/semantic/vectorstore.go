package semantic

import (
	"context"
	"fmt"

	"github.com/WessleyAI/partselect-assistant/engine/domain"
	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// pointNamespace seeds deterministic point IDs so re-indexing a part
// overwrites its previous point.
var pointNamespace = uuid.MustParse("6f1c4a52-3c1e-4d39-9a53-5f1e2b7d8a10")

// PointID is the Qdrant point ID for a part.
func PointID(partID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(partID)).String()
}

type pointsAPI interface {
	Upsert(ctx context.Context, in *pb.UpsertPoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Search(ctx context.Context, in *pb.SearchPoints, opts ...grpc.CallOption) (*pb.SearchResponse, error)
	Count(ctx context.Context, in *pb.CountPoints, opts ...grpc.CallOption) (*pb.CountResponse, error)
}

type collectionsAPI interface {
	List(ctx context.Context, in *pb.ListCollectionsRequest, opts ...grpc.CallOption) (*pb.ListCollectionsResponse, error)
	Create(ctx context.Context, in *pb.CreateCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
	Delete(ctx context.Context, in *pb.DeleteCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
	UpdateAliases(ctx context.Context, in *pb.ChangeAliases, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
	ListAliases(ctx context.Context, in *pb.ListAliasesRequest, opts ...grpc.CallOption) (*pb.ListAliasesResponse, error)
}

// VectorStore owns all Qdrant operations on one collection of part
// documents. The name may be a collection or an alias for one.
type VectorStore struct {
	conn        *grpc.ClientConn
	points      pointsAPI
	collections collectionsAPI
	collection  string
}

// NewVectorStore connects to Qdrant at the given gRPC address.
func NewVectorStore(addr, collection string) (*VectorStore, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("semantic: dial qdrant %s: %w", addr, err)
	}
	return &VectorStore{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  collection,
	}, nil
}

// NewWithClients builds a VectorStore on existing clients.
func NewWithClients(points pointsAPI, collections collectionsAPI, collection string) *VectorStore {
	return &VectorStore{points: points, collections: collections, collection: collection}
}

// Close closes the underlying gRPC connection, if any.
func (v *VectorStore) Close() error {
	if v.conn == nil {
		return nil
	}
	return v.conn.Close()
}

// Collection is the collection or alias name the store operates on.
func (v *VectorStore) Collection() string { return v.collection }

// WithCollection returns a store on the same connection for another
// collection. Closing it does not close the connection.
func (v *VectorStore) WithCollection(name string) *VectorStore {
	return &VectorStore{points: v.points, collections: v.collections, collection: name}
}

// EnsureCollection creates the collection if the name resolves to neither a
// collection nor an alias.
func (v *VectorStore) EnsureCollection(ctx context.Context, dims int) error {
	exists, err := v.hasCollection(ctx)
	if err != nil {
		return err
	}
	if !exists {
		target, err := v.AliasTarget(ctx)
		if err != nil {
			return err
		}
		exists = target != ""
	}
	if exists {
		return nil
	}

	_, err = v.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: v.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(dims),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("semantic: create collection %s: %w", v.collection, err)
	}
	return nil
}

func (v *VectorStore) hasCollection(ctx context.Context) (bool, error) {
	list, err := v.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return false, fmt.Errorf("semantic: list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == v.collection {
			return true, nil
		}
	}
	return false, nil
}

// AliasTarget returns the collection the store's name is an alias for, or
// "" when no such alias exists.
func (v *VectorStore) AliasTarget(ctx context.Context) (string, error) {
	resp, err := v.collections.ListAliases(ctx, &pb.ListAliasesRequest{})
	if err != nil {
		return "", fmt.Errorf("semantic: list aliases: %w", err)
	}
	for _, a := range resp.GetAliases() {
		if a.GetAliasName() == v.collection {
			return a.GetCollectionName(), nil
		}
	}
	return "", nil
}

// PointAlias makes the store's name an alias for target. With replace set
// the existing alias is dropped in the same request, so searches switch
// over in one step.
func (v *VectorStore) PointAlias(ctx context.Context, target string, replace bool) error {
	var actions []*pb.AliasOperations
	if replace {
		actions = append(actions, &pb.AliasOperations{Action: &pb.AliasOperations_DeleteAlias{
			DeleteAlias: &pb.DeleteAlias{AliasName: v.collection},
		}})
	}
	actions = append(actions, &pb.AliasOperations{Action: &pb.AliasOperations_CreateAlias{
		CreateAlias: &pb.CreateAlias{CollectionName: target, AliasName: v.collection},
	}})
	if _, err := v.collections.UpdateAliases(ctx, &pb.ChangeAliases{Actions: actions}); err != nil {
		return fmt.Errorf("semantic: alias %s -> %s: %w", v.collection, target, err)
	}
	return nil
}

// DeleteCollection drops the collection.
func (v *VectorStore) DeleteCollection(ctx context.Context) error {
	_, err := v.collections.Delete(ctx, &pb.DeleteCollection{CollectionName: v.collection})
	if err != nil {
		return fmt.Errorf("semantic: delete collection %s: %w", v.collection, err)
	}
	return nil
}

// Upsert stores embedded documents, one point per part.
func (v *VectorStore) Upsert(ctx context.Context, docs []domain.Document) error {
	if len(docs) == 0 {
		return nil
	}
	points := make([]*pb.PointStruct, len(docs))
	for i, d := range docs {
		points[i] = &pb.PointStruct{
			Id: &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: PointID(d.PartID)}},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: d.Vector}},
			},
			Payload: map[string]*pb.Value{
				"part_id": stringValue(d.PartID),
				"content": stringValue(d.Text),
				"ordinal": {Kind: &pb.Value_IntegerValue{IntegerValue: int64(i)}},
			},
		}
	}

	wait := true
	_, err := v.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: v.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("semantic: upsert %d points: %w", len(docs), err)
	}
	return nil
}

// Count returns the number of points in the collection.
func (v *VectorStore) Count(ctx context.Context) (int, error) {
	exact := true
	resp, err := v.points.Count(ctx, &pb.CountPoints{CollectionName: v.collection, Exact: &exact})
	if err != nil {
		return 0, fmt.Errorf("semantic: count: %w", err)
	}
	return int(resp.GetResult().GetCount()), nil
}

// Search performs k-NN similarity search, best first.
func (v *VectorStore) Search(ctx context.Context, embedding []float32, topK int) ([]domain.Hit, error) {
	resp, err := v.points.Search(ctx, &pb.SearchPoints{
		CollectionName: v.collection,
		Vector:         embedding,
		Limit:          uint64(topK),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("semantic: search: %w", err)
	}

	hits := make([]domain.Hit, len(resp.GetResult()))
	for i, r := range resp.GetResult() {
		p := r.GetPayload()
		hits[i] = domain.Hit{
			Score: float64(r.GetScore()),
			Document: domain.Document{
				PartID: p["part_id"].GetStringValue(),
				Text:   p["content"].GetStringValue(),
			},
		}
	}
	return hits, nil
}

func stringValue(s string) *pb.Value {
	return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}}
}

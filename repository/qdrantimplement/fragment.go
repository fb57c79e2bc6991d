package qdrantimplement

import (
	"context"
	"fmt"
	"time"

	"github.com/parththirwani/ChatterStack-sub001/entity"
	"github.com/parththirwani/ChatterStack-sub001/repository"

	"github.com/pkg/errors"
	"github.com/qdrant/go-client/qdrant"
	log "github.com/sirupsen/logrus"
)

const (
	VectorNameDense  = "dense"
	VectorNameSparse = "sparse"
)

// pointsAPI qdrant.Client 中用到的方法
type pointsAPI interface {
	CollectionExists(ctx context.Context, collectionName string) (bool, error)
	CreateCollection(ctx context.Context, request *qdrant.CreateCollection) error
	CreateFieldIndex(ctx context.Context, request *qdrant.CreateFieldIndexCollection) (*qdrant.UpdateResult, error)
	Upsert(ctx context.Context, request *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Query(ctx context.Context, request *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
	Scroll(ctx context.Context, request *qdrant.ScrollPoints) ([]*qdrant.RetrievedPoint, error)
	Delete(ctx context.Context, request *qdrant.DeletePoints) (*qdrant.UpdateResult, error)
}

type FragmentRepository struct {
	client     pointsAPI
	collection string
}

func NewFragmentRepository(client pointsAPI, collection string) repository.FragmentVectorRepository {
	return &FragmentRepository{client: client, collection: collection}
}

func (r *FragmentRepository) EnsureCollection(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("dense vector dimension must be positive, got %d", dimension)
	}

	exists, err := r.client.CollectionExists(ctx, r.collection)
	if err != nil {
		return errors.Wrapf(err, "check collection %s", r.collection)
	}
	if !exists {
		err = r.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: r.collection,
			VectorsConfig: qdrant.NewVectorsConfigMap(map[string]*qdrant.VectorParams{
				VectorNameDense: {
					Size:     uint64(dimension),
					Distance: qdrant.Distance_Cosine,
				},
			}),
			SparseVectorsConfig: qdrant.NewSparseVectorsConfig(map[string]*qdrant.SparseVectorParams{
				VectorNameSparse: {},
			}),
		})
		if err != nil {
			return errors.Wrapf(err, "create collection %s", r.collection)
		}
		log.Infof("qdrant collection %s created (dim=%d)", r.collection, dimension)
	}

	// 索引创建是幂等的，已存在时 qdrant 直接返回成功
	indexes := []struct {
		field     string
		fieldType qdrant.FieldType
	}{
		{entity.FragmentPayloadUserID, qdrant.FieldType_FieldTypeKeyword},
		{entity.FragmentPayloadConversationID, qdrant.FieldType_FieldTypeKeyword},
		{entity.FragmentPayloadMessageID, qdrant.FieldType_FieldTypeKeyword},
		{entity.FragmentPayloadIndex, qdrant.FieldType_FieldTypeInteger},
		{entity.FragmentPayloadCreatedAt, qdrant.FieldType_FieldTypeInteger},
	}
	for _, index := range indexes {
		_, err = r.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: r.collection,
			Wait:           qdrant.PtrOf(true),
			FieldName:      index.field,
			FieldType:      qdrant.PtrOf(index.fieldType),
		})
		if err != nil {
			return errors.Wrapf(err, "create payload index %s", index.field)
		}
	}
	return nil
}

func (r *FragmentRepository) Upsert(ctx context.Context, points []*entity.IndexedPoint) error {
	if len(points) == 0 {
		return nil
	}

	structs := make([]*qdrant.PointStruct, 0, len(points))
	for _, p := range points {
		payload, err := qdrant.TryValueMap(toPayload(p))
		if err != nil {
			return errors.Wrapf(err, "build payload for point %s", p.ID)
		}

		vectors := map[string]*qdrant.Vector{
			VectorNameDense: qdrant.NewVectorDense(p.Dense),
		}
		// 空稀疏向量 qdrant 会拒绝，直接不写
		if len(p.SparseIndices) > 0 {
			vectors[VectorNameSparse] = qdrant.NewVectorSparse(p.SparseIndices, p.SparseValues)
		}

		structs = append(structs, &qdrant.PointStruct{
			Id:      qdrant.NewID(p.ID),
			Vectors: qdrant.NewVectorsMap(vectors),
			Payload: payload,
		})
	}

	_, err := r.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: r.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         structs,
	})
	return errors.Wrapf(err, "upsert %d points", len(points))
}

func (r *FragmentRepository) SearchDense(ctx context.Context, vector []float32, condition *repository.FragmentSearchCondition) ([]*entity.ScoredFragment, error) {
	return r.query(ctx, qdrant.NewQueryDense(vector), VectorNameDense, condition)
}

func (r *FragmentRepository) SearchSparse(ctx context.Context, indices []uint32, values []float32, condition *repository.FragmentSearchCondition) ([]*entity.ScoredFragment, error) {
	if len(indices) == 0 {
		return nil, nil
	}
	return r.query(ctx, qdrant.NewQuerySparse(indices, values), VectorNameSparse, condition)
}

func (r *FragmentRepository) query(ctx context.Context, query *qdrant.Query, using string, condition *repository.FragmentSearchCondition) ([]*entity.ScoredFragment, error) {
	if condition == nil || condition.UserID == "" {
		return nil, fmt.Errorf("user_id is required for fragment search")
	}
	limit := condition.Limit
	if limit <= 0 {
		limit = 10
	}

	points, err := r.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: r.collection,
		Query:          query,
		Using:          qdrant.PtrOf(using),
		Filter:         buildFilter(condition),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "%s query", using)
	}

	result := make([]*entity.ScoredFragment, 0, len(points))
	for _, p := range points {
		fragment := fromPayload(p.GetId(), p.GetPayload())
		fragment.Score = float64(p.GetScore())
		result = append(result, fragment)
	}
	return result, nil
}

func (r *FragmentRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*entity.ScoredFragment, error) {
	if userID == "" {
		return nil, fmt.Errorf("user_id is required")
	}
	if limit <= 0 {
		limit = 500
	}

	points, err := r.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: r.collection,
		Filter:         buildFilter(&repository.FragmentSearchCondition{UserID: userID}),
		Limit:          qdrant.PtrOf(uint32(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
		OrderBy: &qdrant.OrderBy{
			Key:       entity.FragmentPayloadCreatedAt,
			Direction: qdrant.PtrOf(qdrant.Direction_Desc),
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "scroll user fragments")
	}

	result := make([]*entity.ScoredFragment, 0, len(points))
	for _, p := range points {
		result = append(result, fromPayload(p.GetId(), p.GetPayload()))
	}
	return result, nil
}

func (r *FragmentRepository) DeleteByConversation(ctx context.Context, conversationID string) error {
	if conversationID == "" {
		return fmt.Errorf("conversation_id is required")
	}

	_, err := r.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: r.collection,
		Wait:           qdrant.PtrOf(true),
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch(entity.FragmentPayloadConversationID, conversationID),
			},
		}),
	})
	return errors.Wrapf(err, "delete points of conversation %s", conversationID)
}

// TrimMessages 一次请求删掉所有消息多出来的旧片段
func (r *FragmentRepository) TrimMessages(ctx context.Context, fragmentCounts map[string]int) error {
	if len(fragmentCounts) == 0 {
		return nil
	}

	should := make([]*qdrant.Condition, 0, len(fragmentCounts))
	for messageID, count := range fragmentCounts {
		stale := &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch(entity.FragmentPayloadMessageID, messageID),
				qdrant.NewRange(entity.FragmentPayloadIndex, &qdrant.Range{
					Gte: qdrant.PtrOf(float64(count)),
				}),
			},
		}
		should = append(should, &qdrant.Condition{ConditionOneOf: &qdrant.Condition_Filter{Filter: stale}})
	}

	_, err := r.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: r.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         qdrant.NewPointsSelectorFilter(&qdrant.Filter{Should: should}),
	})
	return errors.Wrapf(err, "trim fragments of %d messages", len(fragmentCounts))
}

func buildFilter(condition *repository.FragmentSearchCondition) *qdrant.Filter {
	must := []*qdrant.Condition{
		qdrant.NewMatch(entity.FragmentPayloadUserID, condition.UserID),
	}
	if condition.Since != nil {
		must = append(must, qdrant.NewRange(entity.FragmentPayloadCreatedAt, &qdrant.Range{
			Gte: qdrant.PtrOf(float64(condition.Since.Unix())),
		}))
	}
	return &qdrant.Filter{Must: must}
}

func toPayload(p *entity.IndexedPoint) map[string]any {
	tags := make([]any, 0, len(p.ProfileTags))
	for _, tag := range p.ProfileTags {
		tags = append(tags, tag)
	}
	return map[string]any{
		entity.FragmentPayloadUserID:         p.UserID,
		entity.FragmentPayloadConversationID: p.ConversationID,
		entity.FragmentPayloadMessageID:      p.MessageID,
		entity.FragmentPayloadIndex:          int64(p.Index),
		entity.FragmentPayloadContent:        p.Content,
		entity.FragmentPayloadIsCode:         p.IsCode,
		entity.FragmentPayloadStartToken:     int64(p.StartToken),
		entity.FragmentPayloadEndToken:       int64(p.EndToken),
		entity.FragmentPayloadCreatedAt:      p.CreatedAt.Unix(),
		entity.FragmentPayloadModelUsed:      p.ModelUsed,
		entity.FragmentPayloadRole:           p.Role,
		entity.FragmentPayloadProfileTags:    tags,
	}
}

func fromPayload(id *qdrant.PointId, payload map[string]*qdrant.Value) *entity.ScoredFragment {
	return &entity.ScoredFragment{
		ID:             id.GetUuid(),
		UserID:         payload[entity.FragmentPayloadUserID].GetStringValue(),
		ConversationID: payload[entity.FragmentPayloadConversationID].GetStringValue(),
		MessageID:      payload[entity.FragmentPayloadMessageID].GetStringValue(),
		Index:          int(payload[entity.FragmentPayloadIndex].GetIntegerValue()),
		Content:        payload[entity.FragmentPayloadContent].GetStringValue(),
		IsCode:         payload[entity.FragmentPayloadIsCode].GetBoolValue(),
		CreatedAt:      time.Unix(payload[entity.FragmentPayloadCreatedAt].GetIntegerValue(), 0),
	}
}

package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/ashwinyue/next-kb/internal/config"
	"github.com/ashwinyue/next-kb/internal/kberrors"
)

// ES8Index 基于 Elasticsearch 8 dense_vector 的向量索引实现
// 每个知识库对应一个独立索引，维度在创建时固定
type ES8Index struct {
	client *elasticsearch.Client
}

// NewES8Client 创建 ES8 客户端
func NewES8Client(cfg *config.Config) (*elasticsearch.Client, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.Elastic.Host},
		Username:  cfg.Elastic.Username,
		Password:  cfg.Elastic.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ES client: %w", err)
	}
	return client, nil
}

// NewES8Index 创建 ES8 向量索引
func NewES8Index(client *elasticsearch.Client) *ES8Index {
	return &ES8Index{client: client}
}

// CreateIndex 创建向量索引
// 索引已存在时校验维度：一致则幂等成功，不一致报错
func (s *ES8Index) CreateIndex(ctx context.Context, name string, dimension int) error {
	if dimension <= 0 {
		return kberrors.New(kberrors.KindVectorStorage, "invalid dimension %d for index %s", dimension, name)
	}

	exists, err := s.Exists(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		existing, err := s.indexDimension(ctx, name)
		if err != nil {
			return err
		}
		if existing != dimension {
			return kberrors.New(kberrors.KindVectorStorage,
				"index %s exists with dimension %d, requested %d", name, existing, dimension)
		}
		return nil
	}

	mapping := map[string]interface{}{
		"mappings": map[string]interface{}{
			"properties": map[string]interface{}{
				"vector": map[string]interface{}{
					"type":       "dense_vector",
					"dims":       dimension,
					"index":      true,
					"similarity": "cosine",
				},
				"kb_id":       map[string]interface{}{"type": "long"},
				"file_id":     map[string]interface{}{"type": "long"},
				"filename":    map[string]interface{}{"type": "keyword"},
				"chunk_index": map[string]interface{}{"type": "integer"},
				"text":        map[string]interface{}{"type": "text"},
				"mime_type":   map[string]interface{}{"type": "keyword"},
				"created_at":  map[string]interface{}{"type": "date"},
			},
		},
		"settings": map[string]interface{}{
			"number_of_shards":   1,
			"number_of_replicas": 0,
		},
	}

	body, err := json.Marshal(mapping)
	if err != nil {
		return fmt.Errorf("failed to marshal index mapping: %w", err)
	}

	req := esapi.IndicesCreateRequest{
		Index: name,
		Body:  bytes.NewReader(body),
	}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		return kberrors.Wrap(kberrors.KindVectorStorage, fmt.Errorf("failed to create index %s: %w", name, err))
	}
	defer res.Body.Close()

	if res.IsError() {
		return kberrors.New(kberrors.KindVectorStorage, "failed to create index %s: %s", name, res.String())
	}

	log.Printf("Vector index %s created with %d dimensions", name, dimension)
	return nil
}

// Exists 检查索引是否存在
func (s *ES8Index) Exists(ctx context.Context, name string) (bool, error) {
	res, err := s.client.Indices.Exists([]string{name}, s.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return false, kberrors.Wrap(kberrors.KindVectorStorage, fmt.Errorf("failed to check index %s: %w", name, err))
	}
	defer res.Body.Close()
	return res.StatusCode == 200, nil
}

// indexDimension 读取索引中 vector 字段的维度
func (s *ES8Index) indexDimension(ctx context.Context, name string) (int, error) {
	res, err := s.client.Indices.GetMapping(
		s.client.Indices.GetMapping.WithContext(ctx),
		s.client.Indices.GetMapping.WithIndex(name),
	)
	if err != nil {
		return 0, kberrors.Wrap(kberrors.KindVectorStorage, fmt.Errorf("failed to get mapping for %s: %w", name, err))
	}
	defer res.Body.Close()

	if res.IsError() {
		return 0, kberrors.New(kberrors.KindVectorStorage, "failed to get mapping for %s: %s", name, res.String())
	}

	var mapping map[string]struct {
		Mappings struct {
			Properties map[string]struct {
				Type string `json:"type"`
				Dims int    `json:"dims"`
			} `json:"properties"`
		} `json:"mappings"`
	}
	if err := json.NewDecoder(res.Body).Decode(&mapping); err != nil {
		return 0, kberrors.Wrap(kberrors.KindVectorStorage, fmt.Errorf("failed to decode mapping for %s: %w", name, err))
	}

	for _, idx := range mapping {
		if field, ok := idx.Mappings.Properties["vector"]; ok && field.Type == "dense_vector" {
			return field.Dims, nil
		}
	}
	return 0, kberrors.New(kberrors.KindVectorStorage, "index %s has no dense_vector field", name)
}

// Upsert 批量写入向量点，文档 _id 取向量点 ID，相同则覆盖
func (s *ES8Index) Upsert(ctx context.Context, name string, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	var buf bytes.Buffer
	for _, p := range points {
		meta := map[string]interface{}{
			"index": map[string]interface{}{"_id": p.ID},
		}
		metaLine, err := json.Marshal(meta)
		if err != nil {
			return fmt.Errorf("failed to marshal bulk action: %w", err)
		}

		doc := map[string]interface{}{
			"vector":      p.Vector,
			"kb_id":       p.Payload.KBID,
			"file_id":     p.Payload.FileID,
			"filename":    p.Payload.Filename,
			"chunk_index": p.Payload.ChunkIndex,
			"text":        p.Payload.Text,
			"mime_type":   p.Payload.MimeType,
			"created_at":  p.Payload.CreatedAt,
		}
		docLine, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("failed to marshal bulk document: %w", err)
		}

		buf.Write(metaLine)
		buf.WriteByte('\n')
		buf.Write(docLine)
		buf.WriteByte('\n')
	}

	res, err := s.client.Bulk(bytes.NewReader(buf.Bytes()),
		s.client.Bulk.WithContext(ctx),
		s.client.Bulk.WithIndex(name),
		s.client.Bulk.WithRefresh("true"),
	)
	if err != nil {
		return kberrors.Wrap(kberrors.KindVectorStorage, fmt.Errorf("failed to bulk index into %s: %w", name, err))
	}
	defer res.Body.Close()

	if res.IsError() {
		return kberrors.New(kberrors.KindVectorStorage, "bulk index into %s failed: %s", name, res.String())
	}

	var bulkResp struct {
		Errors bool `json:"errors"`
		Items  []map[string]struct {
			Error *struct {
				Reason string `json:"reason"`
			} `json:"error"`
		} `json:"items"`
	}
	if err := json.NewDecoder(res.Body).Decode(&bulkResp); err != nil {
		return kberrors.Wrap(kberrors.KindVectorStorage, fmt.Errorf("failed to decode bulk response: %w", err))
	}
	if bulkResp.Errors {
		for _, item := range bulkResp.Items {
			for _, op := range item {
				if op.Error != nil {
					return kberrors.New(kberrors.KindVectorStorage, "bulk index into %s failed: %s", name, op.Error.Reason)
				}
			}
		}
		return kberrors.New(kberrors.KindVectorStorage, "bulk index into %s reported item errors", name)
	}
	return nil
}

// Query 余弦相似度检索
// 使用 script_score 的 cosineSimilarity，+1.0 保证分数非负
func (s *ES8Index) Query(ctx context.Context, name string, vector []float64, topK int) ([]ScoredPoint, error) {
	if topK <= 0 {
		topK = 10
	}

	query := map[string]interface{}{
		"size": topK,
		"query": map[string]interface{}{
			"script_score": map[string]interface{}{
				"query": map[string]interface{}{"match_all": map[string]interface{}{}},
				"script": map[string]interface{}{
					"source": "cosineSimilarity(params.query_vector, 'vector') + 1.0",
					"params": map[string]interface{}{"query_vector": vector},
				},
			},
		},
	}

	hits, err := s.search(ctx, name, query)
	if err != nil {
		return nil, err
	}

	points := make([]ScoredPoint, 0, len(hits))
	for _, h := range hits {
		points = append(points, ScoredPoint{
			ID:      h.ID,
			Score:   h.Score - 1.0,
			Payload: h.Source.payload(),
		})
	}
	return points, nil
}

// FetchByRefs 按 (file, chunkIndex) 复合键批量点查
// 缺失的键静默跳过，返回顺序与请求顺序一致
func (s *ES8Index) FetchByRefs(ctx context.Context, name string, refs []ChunkRef) ([]Point, error) {
	if len(refs) == 0 {
		return nil, nil
	}

	should := make([]map[string]interface{}, 0, len(refs))
	for _, ref := range refs {
		should = append(should, map[string]interface{}{
			"bool": map[string]interface{}{
				"must": []map[string]interface{}{
					{"term": map[string]interface{}{"file_id": ref.FileID}},
					{"term": map[string]interface{}{"chunk_index": ref.ChunkIndex}},
				},
			},
		})
	}

	query := map[string]interface{}{
		"size": len(refs),
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"should":               should,
				"minimum_should_match": 1,
			},
		},
	}

	hits, err := s.search(ctx, name, query)
	if err != nil {
		return nil, err
	}

	byRef := make(map[ChunkRef]Point, len(hits))
	for _, h := range hits {
		payload := h.Source.payload()
		byRef[ChunkRef{FileID: payload.FileID, ChunkIndex: payload.ChunkIndex}] = Point{
			ID:      h.ID,
			Payload: payload,
		}
	}

	out := make([]Point, 0, len(refs))
	for _, ref := range refs {
		if p, ok := byRef[ref]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// DeleteByFile 删除某文件的全部向量
func (s *ES8Index) DeleteByFile(ctx context.Context, name string, fileID int64) error {
	query := map[string]interface{}{
		"query": map[string]interface{}{
			"term": map[string]interface{}{"file_id": fileID},
		},
	}
	body, err := json.Marshal(query)
	if err != nil {
		return fmt.Errorf("failed to marshal delete query: %w", err)
	}

	res, err := s.client.DeleteByQuery([]string{name}, bytes.NewReader(body),
		s.client.DeleteByQuery.WithContext(ctx),
		s.client.DeleteByQuery.WithIgnoreUnavailable(true),
		s.client.DeleteByQuery.WithRefresh(true),
	)
	if err != nil {
		return kberrors.Wrap(kberrors.KindVectorStorage, fmt.Errorf("failed to delete vectors of file %d: %w", fileID, err))
	}
	defer res.Body.Close()

	if res.IsError() {
		return kberrors.New(kberrors.KindVectorStorage, "delete by query on %s failed: %s", name, res.String())
	}
	return nil
}

// DeleteIndex 删除整个索引，索引不存在时幂等成功
func (s *ES8Index) DeleteIndex(ctx context.Context, name string) error {
	res, err := s.client.Indices.Delete([]string{name},
		s.client.Indices.Delete.WithContext(ctx),
		s.client.Indices.Delete.WithIgnoreUnavailable(true),
	)
	if err != nil {
		return kberrors.Wrap(kberrors.KindVectorStorage, fmt.Errorf("failed to delete index %s: %w", name, err))
	}
	defer res.Body.Close()

	if res.IsError() {
		return kberrors.New(kberrors.KindVectorStorage, "delete index %s failed: %s", name, res.String())
	}
	return nil
}

// ========== 搜索辅助 ==========

type esHit struct {
	ID     string   `json:"_id"`
	Score  float64  `json:"_score"`
	Source esSource `json:"_source"`
}

type esSource struct {
	KBID       int64  `json:"kb_id"`
	FileID     int64  `json:"file_id"`
	Filename   string `json:"filename"`
	ChunkIndex int    `json:"chunk_index"`
	Text       string `json:"text"`
	MimeType   string `json:"mime_type"`
	CreatedAt  string `json:"created_at"`
}

func (s esSource) payload() Payload {
	p := Payload{
		KBID:       s.KBID,
		FileID:     s.FileID,
		Filename:   s.Filename,
		ChunkIndex: s.ChunkIndex,
		Text:       s.Text,
		MimeType:   s.MimeType,
	}
	// created_at 解析失败时保留零值
	if t, err := time.Parse(time.RFC3339Nano, s.CreatedAt); err == nil {
		p.CreatedAt = t
	}
	return p
}

func (s *ES8Index) search(ctx context.Context, name string, query map[string]interface{}) ([]esHit, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search query: %w", err)
	}

	res, err := s.client.Search(
		s.client.Search.WithContext(ctx),
		s.client.Search.WithIndex(name),
		s.client.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, kberrors.Wrap(kberrors.KindVectorStorage, fmt.Errorf("search on %s failed: %w", name, err))
	}
	defer res.Body.Close()

	if res.IsError() {
		raw, _ := io.ReadAll(res.Body)
		return nil, kberrors.New(kberrors.KindVectorStorage, "search on %s failed: %s", name, string(raw))
	}

	var searchResp struct {
		Hits struct {
			Hits []esHit `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&searchResp); err != nil {
		return nil, kberrors.Wrap(kberrors.KindVectorStorage, fmt.Errorf("failed to decode search response: %w", err))
	}
	return searchResp.Hits.Hits, nil
}

var _ Index = (*ES8Index)(nil)

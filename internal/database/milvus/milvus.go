package milvus

import (
	"context"
	"fmt"
	"log"
	"sync"

	"mnemo/internal/config"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

var (
	instance *MilvusClient
	once     sync.Once
	initErr  error
)

// MilvusClient 包含了 Milvus 客户端实例和相关配置。
type MilvusClient struct {
	Client client.Client
	Config *config.MilvusConfig
}

// GetClient 使用单例模式创建并返回一个 Milvus 客户端实例。
func GetClient(ctx context.Context, cfg *config.MilvusConfig) (*MilvusClient, error) {
	once.Do(func() {
		c, err := client.NewClient(ctx, client.Config{Address: cfg.Address})
		if err != nil {
			initErr = fmt.Errorf("无法连接到 Milvus: %w", err)
			return
		}
		log.Println("✅ 成功连接到 Milvus!")
		instance = &MilvusClient{Client: c, Config: cfg}
	})
	return instance, initErr
}

// Close 安全地关闭与 Milvus 的连接。
func (c *MilvusClient) Close() {
	if c.Client != nil {
		c.Client.Close()
		log.Println("ℹ️ 已安全关闭 Milvus 连接。")
	}
}

// HealthCheck 检查 Milvus 连接的健康状况。
func (c *MilvusClient) HealthCheck(ctx context.Context) error {
	if c.Client == nil {
		return fmt.Errorf("Milvus client is nil")
	}
	if _, err := c.Client.ListCollections(ctx); err != nil {
		return fmt.Errorf("Milvus health check failed: %w", err)
	}
	return nil
}

// EnsureCollection 根据配置的 Schema 创建集合和索引（如果尚不存在）。
func (c *MilvusClient) EnsureCollection(ctx context.Context) error {
	schema := c.Config.Schema
	has, err := c.Client.HasCollection(ctx, schema.CollectionName)
	if err != nil {
		return fmt.Errorf("检查集合 '%s' 失败: %w", schema.CollectionName, err)
	}
	if has {
		return nil
	}

	fields := make([]*entity.Field, 0, len(schema.Fields))
	for _, fc := range schema.Fields {
		field := &entity.Field{
			Name:       fc.Name,
			PrimaryKey: fc.IsPrimaryKey,
			AutoID:     fc.IsAutoID,
			TypeParams: map[string]string{},
		}
		switch fc.DataType {
		case "Int64":
			field.DataType = entity.FieldTypeInt64
		case "Float":
			field.DataType = entity.FieldTypeFloat
		case "Double":
			field.DataType = entity.FieldTypeDouble
		case "VarChar":
			field.DataType = entity.FieldTypeVarChar
			field.TypeParams[entity.TypeParamMaxLength] = fmt.Sprintf("%d", fc.MaxLength)
		case "FloatVector":
			field.DataType = entity.FieldTypeFloatVector
			field.TypeParams[entity.TypeParamDim] = fmt.Sprintf("%d", fc.Dim)
		default:
			return fmt.Errorf("不支持的字段类型: %s", fc.DataType)
		}
		fields = append(fields, field)
	}

	collSchema := &entity.Schema{
		CollectionName: schema.CollectionName,
		Description:    schema.Description,
		Fields:         fields,
	}
	if err := c.Client.CreateCollection(ctx, collSchema, 1); err != nil {
		return fmt.Errorf("创建集合 '%s' 失败: %w", schema.CollectionName, err)
	}

	index, err := entity.NewIndexIvfFlat(entity.COSINE, 128)
	if err != nil {
		return fmt.Errorf("构建索引失败: %w", err)
	}
	if err := c.Client.CreateIndex(ctx, schema.CollectionName, schema.VectorField, index, false); err != nil {
		return fmt.Errorf("创建索引失败: %w", err)
	}

	log.Printf("✅ 已创建集合 '%s'。", schema.CollectionName)
	return nil
}

// Insert 向集合插入一批列数据。
func (c *MilvusClient) Insert(ctx context.Context, columns ...entity.Column) error {
	_, err := c.Client.Insert(ctx, c.Config.Schema.CollectionName, "", columns...)
	if err != nil {
		return fmt.Errorf("向 Milvus 插入数据失败: %w", err)
	}
	return nil
}

// Search 在集合中执行向量相似度搜索，返回指定输出字段。
func (c *MilvusClient) Search(ctx context.Context, expr string, outputFields []string, vector []float32, topK int) ([]client.SearchResult, error) {
	collName := c.Config.Schema.CollectionName

	if err := c.Client.LoadCollection(ctx, collName, false); err != nil {
		return nil, fmt.Errorf("加载集合 '%s' 失败: %w", collName, err)
	}

	sp, _ := entity.NewIndexIvfFlatSearchParam(10)
	searchVectors := []entity.Vector{entity.FloatVector(vector)}

	results, err := c.Client.Search(
		ctx,
		collName,
		nil,
		expr,
		outputFields,
		searchVectors,
		c.Config.Schema.VectorField,
		entity.COSINE,
		topK,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("Milvus 搜索失败: %w", err)
	}
	return results, nil
}

// Delete 按表达式删除集合中的数据。
func (c *MilvusClient) Delete(ctx context.Context, expr string) error {
	if err := c.Client.Delete(ctx, c.Config.Schema.CollectionName, "", expr); err != nil {
		return fmt.Errorf("从 Milvus 删除数据失败: %w", err)
	}
	return nil
}

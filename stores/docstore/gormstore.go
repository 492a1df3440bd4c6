package docstore

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DocumentTableName 文档表名
func DocumentTableName() string {
	return "ob_documents"
}

// documentRecord 文档表的一行
type documentRecord struct {
	DocKey     string `gorm:"column:doc_key;primaryKey;type:varchar(255)"`
	Payload    string `gorm:"column:payload;type:json"`
	CreateTime int64  `gorm:"column:create_time"`
	UpdateTime int64  `gorm:"column:update_time"`
}

func (documentRecord) TableName() string {
	return DocumentTableName()
}

// GormStore 基于 MySQL 的文档存储, 每个文档一行, Commit 使用事务保证原子性
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Migrate 创建文档表
func (s *GormStore) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&documentRecord{}); err != nil {
		return errors.Wrap(err, "failed on migrate document table")
	}
	return nil
}

func (s *GormStore) Get(ctx context.Context, key string) ([]byte, error) {
	var rec documentRecord
	if err := s.db.WithContext(ctx).Table(DocumentTableName()).
		Where("doc_key = ?", key).
		Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrapf(err, "failed on get document %s", key)
	}
	return []byte(rec.Payload), nil
}

func (s *GormStore) Set(ctx context.Context, key string, payload []byte, opts SetOptions) error {
	return s.Commit(ctx, []Write{SetWrite(key, payload, opts)})
}

func (s *GormStore) Delete(ctx context.Context, key string) error {
	return s.Commit(ctx, []Write{DeleteWrite(key)})
}

// Commit 在单个事务中执行全部写入
func (s *GormStore) Commit(ctx context.Context, writes []Write) error {
	if err := validate(writes); err != nil {
		return err
	}
	if len(writes) == 0 {
		return nil
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UnixMilli()
		for _, w := range writes {
			if w.Delete {
				if err := tx.Table(DocumentTableName()).
					Where("doc_key = ?", w.Key).
					Delete(&documentRecord{}).Error; err != nil {
					return errors.Wrapf(err, "failed on delete document %s", w.Key)
				}
				continue
			}

			payload := w.Payload
			if w.Merge {
				// 加行锁读取旧文档, 避免并发合并丢字段
				var existing documentRecord
				err := tx.Table(DocumentTableName()).
					Clauses(clause.Locking{Strength: "UPDATE"}).
					Where("doc_key = ?", w.Key).
					Take(&existing).Error
				if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
					return errors.Wrapf(err, "failed on read document %s", w.Key)
				}
				if payload, err = MergePayload([]byte(existing.Payload), w.Payload); err != nil {
					return err
				}
			}

			rec := documentRecord{
				DocKey:     w.Key,
				Payload:    string(payload),
				CreateTime: now,
				UpdateTime: now,
			}
			if err := tx.Table(DocumentTableName()).Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "doc_key"}},
				DoUpdates: clause.AssignmentColumns([]string{"payload", "update_time"}),
			}).Create(&rec).Error; err != nil {
				return errors.Wrapf(err, "failed on upsert document %s", w.Key)
			}
		}
		return nil
	})
}

// List 按 key 前缀查询, 结果按 key 升序
func (s *GormStore) List(ctx context.Context, prefix string) ([]Document, error) {
	var recs []documentRecord
	if err := s.db.WithContext(ctx).Table(DocumentTableName()).
		Where("doc_key LIKE ?", escapeLike(prefix)+"%").
		Order("doc_key asc").
		Find(&recs).Error; err != nil {
		return nil, errors.Wrapf(err, "failed on list documents %s", prefix)
	}

	docs := make([]Document, 0, len(recs))
	for _, rec := range recs {
		docs = append(docs, Document{Key: rec.DocKey, Payload: []byte(rec.Payload)})
	}
	return docs, nil
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return errors.Wrap(err, "failed on get sql db")
	}
	return sqlDB.Close()
}

var likeReplacer = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeReplacer.Replace(s)
}

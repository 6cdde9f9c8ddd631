package models

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"gorm.io/gorm"
)

// 项目列表整体序列化后存在这一个 key 下，读取在启动后按需进行，
// 每次变更整体覆盖写回（read-modify-write，并发写最后一个生效，不加锁）
const ProjectListKey = "inflow_projects"

// Document 键值文档行，一个 key 对应一份 JSON
type Document struct {
	Key       string    `gorm:"primaryKey;column:doc_key;type:varchar(64)" json:"key"`
	Body      string    `gorm:"type:longtext" json:"body"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Document) TableName() string {
	return "document"
}

// ProjectStore 项目列表的持久化边界，运行时用 MySQL 文档实现，
// 测试用内存实现
type ProjectStore interface {
	Load() ([]Project, error)
	Save(list []Project) error
}

// DBProjectStore 把项目列表存成 document 表中的一行 JSON
type DBProjectStore struct {
	DB *gorm.DB
}

func NewDBProjectStore(db *gorm.DB) *DBProjectStore {
	return &DBProjectStore{DB: db}
}

func (s *DBProjectStore) Load() ([]Project, error) {
	var doc Document
	err := s.DB.First(&doc, "doc_key = ?", ProjectListKey).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return []Project{}, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeProjectList([]byte(doc.Body))
}

func (s *DBProjectStore) Save(list []Project) error {
	body, err := encodeProjectList(list)
	if err != nil {
		return err
	}
	doc := Document{
		Key:       ProjectListKey,
		Body:      string(body),
		UpdatedAt: time.Now(),
	}
	// Save 按主键 upsert，整份文档覆盖写
	return s.DB.Save(&doc).Error
}

// MemoryProjectStore 走同一条序列化路径的内存实现，
// Load 返回的是深拷贝，模拟从磁盘读回
type MemoryProjectStore struct {
	mu   sync.Mutex
	body []byte
}

func NewMemoryProjectStore() *MemoryProjectStore {
	return &MemoryProjectStore{}
}

func (s *MemoryProjectStore) Load() ([]Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.body) == 0 {
		return []Project{}, nil
	}
	return decodeProjectList(s.body)
}

func (s *MemoryProjectStore) Save(list []Project) error {
	body, err := encodeProjectList(list)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.body = body
	return nil
}

func encodeProjectList(list []Project) ([]byte, error) {
	if list == nil {
		list = []Project{}
	}
	return json.Marshal(list)
}

func decodeProjectList(body []byte) ([]Project, error) {
	var list []Project
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, err
	}
	if list == nil {
		list = []Project{}
	}
	return list, nil
}

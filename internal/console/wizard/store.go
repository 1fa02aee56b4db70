package wizard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/railworks/railconsole/internal/backend"
	"github.com/redis/go-redis/v9"
)

// Snapshot is the serializable form of a draft, persisted between requests.
type Snapshot struct {
	BranchCode   string            `json:"branchCode"`
	Quantity     int               `json:"quantity"`
	Source       BomSource         `json:"source"`
	BranchTypeID int64             `json:"branchTypeId"`
	BomLines     []backend.BomLine `json:"bomLines,omitempty"`
	ImageURL     string            `json:"imageUrl,omitempty"`
	Submitted    bool              `json:"submitted"`
}

// Snapshot captures the draft for persistence.
func (w *Wizard) Snapshot() Snapshot {
	return Snapshot{
		BranchCode:   w.branchCode,
		Quantity:     w.quantity,
		Source:       w.source,
		BranchTypeID: w.branchTypeID,
		BomLines:     w.bomLines,
		ImageURL:     w.imageURL,
		Submitted:    w.submitted,
	}
}

// Restore rebuilds a draft from a snapshot.
func Restore(versionInfoID int64, collab Collaborators, snap Snapshot) *Wizard {
	return &Wizard{
		versionInfoID: versionInfoID,
		collab:        collab,
		branchCode:    snap.BranchCode,
		quantity:      snap.Quantity,
		source:        snap.Source,
		branchTypeID:  snap.BranchTypeID,
		bomLines:      snap.BomLines,
		imageURL:      snap.ImageURL,
		submitted:     snap.Submitted,
	}
}

// DraftStore persists wizard drafts between console requests.
type DraftStore interface {
	Load(ctx context.Context, key string) (*Snapshot, error)
	Save(ctx context.Context, key string, snap Snapshot) error
	Delete(ctx context.Context, key string) error
}

// RedisDraftStore keeps drafts in redis with a TTL.
type RedisDraftStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisDraftStore(client *redis.Client, ttl time.Duration) *RedisDraftStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisDraftStore{client: client, ttl: ttl}
}

func draftKey(key string) string {
	return "railconsole:branchdraft:" + key
}

func (s *RedisDraftStore) Load(ctx context.Context, key string) (*Snapshot, error) {
	raw, err := s.client.Get(ctx, draftKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load draft: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("decode draft: %w", err)
	}
	return &snap, nil
}

func (s *RedisDraftStore) Save(ctx context.Context, key string, snap Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}
	if err := s.client.Set(ctx, draftKey(key), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("save draft: %w", err)
	}
	return nil
}

func (s *RedisDraftStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, draftKey(key)).Err(); err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	return nil
}

// MemoryDraftStore is an in-process DraftStore for tests.
type MemoryDraftStore struct {
	drafts map[string]Snapshot
}

func NewMemoryDraftStore() *MemoryDraftStore {
	return &MemoryDraftStore{drafts: make(map[string]Snapshot)}
}

func (s *MemoryDraftStore) Load(_ context.Context, key string) (*Snapshot, error) {
	if snap, ok := s.drafts[key]; ok {
		copied := snap
		return &copied, nil
	}
	return nil, nil
}

func (s *MemoryDraftStore) Save(_ context.Context, key string, snap Snapshot) error {
	s.drafts[key] = snap
	return nil
}

func (s *MemoryDraftStore) Delete(_ context.Context, key string) error {
	delete(s.drafts, key)
	return nil
}

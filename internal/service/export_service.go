package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"user-api/internal/repository"
	"user-api/internal/storage"
)

// ExportService writes snapshots of the user table to object storage.
type ExportService interface {
	ExportUsers(ctx context.Context) (Export, error)
	ListExports(ctx context.Context) ([]storage.ObjectInfo, error)
}

// Export describes a snapshot that was written.
type Export struct {
	Location   string
	Key        string
	Count      int
	ExportedAt time.Time
}

// snapshot never carries password hashes.
type snapshot struct {
	ExportedAt time.Time      `json:"exported_at"`
	Users      []snapshotUser `json:"users"`
}

type snapshotUser struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type exportService struct {
	users     repository.UserRepository
	store     storage.Service
	bucket    string
	keyPrefix string
	now       func() time.Time
}

func NewExportService(users repository.UserRepository, store storage.Service, bucket, keyPrefix string) ExportService {
	return &exportService{
		users:     users,
		store:     store,
		bucket:    bucket,
		keyPrefix: strings.Trim(keyPrefix, "/"),
		now:       time.Now,
	}
}

func (s *exportService) ExportUsers(ctx context.Context) (Export, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return Export{}, err
	}

	exportedAt := s.now().UTC()
	snap := snapshot{
		ExportedAt: exportedAt,
		Users:      make([]snapshotUser, len(users)),
	}
	for i, u := range users {
		snap.Users[i] = snapshotUser{
			ID:        u.ID,
			Username:  u.Username,
			CreatedAt: u.CreatedAt,
			UpdatedAt: u.UpdatedAt,
		}
	}

	body, err := json.Marshal(snap)
	if err != nil {
		return Export{}, fmt.Errorf("encode snapshot: %w", err)
	}

	key := path.Join(s.keyPrefix, fmt.Sprintf("users-%s-%s.json", exportedAt.Format("20060102T150405Z"), uuid.NewString()))
	location, err := s.store.PutObject(ctx, s.bucket, key, bytes.NewReader(body), "application/json")
	if err != nil {
		return Export{}, err
	}

	return Export{
		Location:   location,
		Key:        key,
		Count:      len(users),
		ExportedAt: exportedAt,
	}, nil
}

func (s *exportService) ListExports(ctx context.Context) ([]storage.ObjectInfo, error) {
	prefix := s.keyPrefix
	if prefix != "" {
		prefix += "/"
	}
	return s.store.ListObjects(ctx, s.bucket, prefix)
}

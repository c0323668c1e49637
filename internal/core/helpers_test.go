package core

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jo-hoe/designcase/internal/backend/database"
	"github.com/jo-hoe/designcase/internal/backend/storage"
)

const (
	ownerID    = "user-owner"
	strangerID = "user-stranger"
)

// memoryStorage keeps objects in a map and records every mutating call
type memoryStorage struct {
	mu       sync.Mutex
	objects  map[string][]byte
	types    map[string]string
	modified map[string]time.Time
	puts     []string
	deletes  []string
	failPut  func(key string) error
	failDel  error
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{
		objects:  map[string][]byte{},
		types:    map[string]string{},
		modified: map[string]time.Time{},
	}
}

func (s *memoryStorage) Put(_ context.Context, key string, data []byte, contentType string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.puts = append(s.puts, key)
	if s.failPut != nil {
		if err := s.failPut(key); err != nil {
			return "", err
		}
	}
	if _, ok := s.objects[key]; ok {
		return "", storage.ErrObjectExists
	}
	s.objects[key] = append([]byte(nil), data...)
	s.types[key] = contentType
	s.modified[key] = time.Now().Add(-24 * time.Hour)
	return key, nil
}

func (s *memoryStorage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes = append(s.deletes, key)
	if s.failDel != nil {
		return s.failDel
	}
	delete(s.objects, key)
	return nil
}

func (s *memoryStorage) PublicURL(key string) string {
	return "https://cdn.test/" + key
}

func (s *memoryStorage) SignedURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[key]; !ok {
		return "", storage.ErrObjectNotFound
	}
	return fmt.Sprintf("https://cdn.test/%s?expires=%d&n=%d", key, int(ttl.Seconds()), len(s.puts)), nil
}

func (s *memoryStorage) List(_ context.Context, prefix string) ([]storage.ObjectInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var infos []storage.ObjectInfo
	for key, data := range s.objects {
		if strings.HasPrefix(key, prefix) {
			infos = append(infos, storage.ObjectInfo{Key: key, Size: int64(len(data)), LastModified: s.modified[key]})
		}
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}

func (s *memoryStorage) mutations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.puts) + len(s.deletes)
}

func (s *memoryStorage) object(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	return data, ok
}

// failingDesignFiles breaks the persistence step of an upload
type failingDesignFiles struct {
	database.DatabaseService
}

func (failingDesignFiles) CreateDesignFile(context.Context, *database.DesignFile, database.ProjectUpdate) error {
	return errors.New("connection reset")
}

type testEnv struct {
	service *CoreService
	db      database.DatabaseService
	store   *memoryStorage
	project *database.Project
}

func newTestEnv(t *testing.T, configure func(deps *Dependencies)) *testEnv {
	t.Helper()
	ctx := context.Background()

	db, err := database.NewDatabase(ctx, "sqlite", ":memory:")
	if err != nil {
		t.Fatalf("NewDatabase error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	project := &database.Project{
		UserID: ownerID,
		Name:   "Checkout redesign",
		Slug:   "checkout-redesign",
		Status: database.ProjectStatusPending,
	}
	if err := db.CreateProject(ctx, project); err != nil {
		t.Fatalf("CreateProject error: %v", err)
	}

	store := newMemoryStorage()
	deps := Dependencies{Database: db, Storage: store}
	if configure != nil {
		configure(&deps)
	}
	config, err := ParseConfig([]byte("{}"))
	if err != nil {
		t.Fatalf("ParseConfig error: %v", err)
	}
	return &testEnv{
		service: NewCoreService(config, deps),
		db:      db,
		store:   store,
		project: project,
	}
}

func gradientPNG(t testing.TB, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8(x * 255 / max(1, width-1)),
				G: uint8(y * 255 / max(1, height-1)),
				B: 96,
				A: 255,
			})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode PNG: %v", err)
	}
	return buf.Bytes()
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	if got := CodeOf(err); got != code {
		t.Fatalf("expected code %s, got %q (%v)", code, got, err)
	}
}

// oversizedPNG is a PNG whose IHDR declares width x height 8-bit grayscale pixels
// without carrying any pixel data
func oversizedPNG(width, height uint32) []byte {
	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	chunk := func(typ string, data []byte) {
		_ = binary.Write(&buf, binary.BigEndian, uint32(len(data)))
		body := append([]byte(typ), data...)
		buf.Write(body)
		_ = binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(body))
	}
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:], width)
	binary.BigEndian.PutUint32(ihdr[4:], height)
	ihdr[8] = 8
	chunk("IHDR", ihdr)
	chunk("IEND", nil)
	return buf.Bytes()
}

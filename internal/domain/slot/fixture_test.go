package slot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"httpupload/internal/database"
	"httpupload/internal/domain/policy"
	"httpupload/internal/storage/blob"
)

const (
	testRoot = "/srv/upload"
	alice    = "alice@example.com"
)

// clock is a settable time source shared by the services under test.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	db       *gorm.DB
	fs       afero.Fs
	repo     Repository
	store    *blob.Store
	clock    *clock
	settings Settings

	slots    *Service
	exchange *ExchangeService
	cleanup  *CleanupService
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:slots_%s?mode=memory&cache=shared", strings.ReplaceAll(uuid.NewString(), "-", ""))
	db, err := database.ConnectWithLogger(dsn, logger.Default.LogMode(logger.Silent))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := database.Migrate(db, &Slot{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func newFixture(t *testing.T, settings Settings, rules ...policy.Rule) *fixture {
	t.Helper()
	if len(rules) == 0 {
		rules = []policy.Rule{policy.MustRule(&policy.Limits{}, `@example\.com$`)}
	}
	resolver, err := policy.NewResolver(rules, 16)
	if err != nil {
		t.Fatalf("resolver: %v", err)
	}

	fs := afero.NewMemMapFs()
	store, err := blob.New(fs, testRoot, 0)
	if err != nil {
		t.Fatalf("blob store: %v", err)
	}

	db := newTestDB(t)
	repo := NewRepository(db)
	clk := &clock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}

	return &fixture{
		db:       db,
		fs:       fs,
		repo:     repo,
		store:    store,
		clock:    clk,
		settings: settings.withDefaults(),
		slots:    NewService(repo, resolver, store, settings).WithClock(clk.Now),
		exchange: NewExchangeService(repo, store, settings).WithClock(clk.Now),
		cleanup:  NewCleanupService(repo, store, settings).WithClock(clk.Now),
	}
}

// reserve grants a slot for alice or fails the test.
func (f *fixture) reserve(t *testing.T, name string, size int64, contentType string) *Slot {
	t.Helper()
	grant, err := f.slots.RequestSlot(context.Background(), SlotRequest{
		JID:         alice,
		Name:        name,
		Size:        fmt.Sprint(size),
		ContentType: contentType,
		Origin:      "https://upload.example.com",
	})
	if err != nil {
		t.Fatalf("reserve %s: %v", name, err)
	}
	return grant.Slot
}

// upload fulfills s with body, using s's declared type when it has one.
func (f *fixture) upload(t *testing.T, s *Slot, body string) *Slot {
	t.Helper()
	got, err := f.exchange.CompleteUpload(context.Background(), UploadRequest{
		Token:         s.Token,
		Name:          s.Name,
		ContentLength: int64(len(body)),
		ContentType:   s.ContentType(),
		Body:          strings.NewReader(body),
	})
	if err != nil {
		t.Fatalf("upload %s: %v", s.Name, err)
	}
	return got
}

func (f *fixture) count(t *testing.T) int64 {
	t.Helper()
	var n int64
	if err := f.db.Model(&Slot{}).Count(&n).Error; err != nil {
		t.Fatalf("count slots: %v", err)
	}
	return n
}

func (f *fixture) load(t *testing.T, id string) *Slot {
	t.Helper()
	var s Slot
	if err := f.db.Where("id = ?", id).First(&s).Error; err != nil {
		t.Fatalf("load slot %s: %v", id, err)
	}
	return &s
}

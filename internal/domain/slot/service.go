package slot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"httpupload/internal/domain/policy"
	"httpupload/internal/domain/quota"
	"httpupload/internal/storage/blob"
)

const maxTokenAttempts = 5

// Resolver maps an identity to its access outcome.
type Resolver interface {
	Resolve(identity string) policy.Outcome
}

// SlotRequest carries the raw parameters of a slot request.
type SlotRequest struct {
	JID         string
	Name        string
	Size        string
	ContentType string
	// Origin is the scheme and host the request arrived on.
	Origin string
}

// Grant is a successfully reserved slot and its URLs.
type Grant struct {
	Slot *Slot
	URLs URLs
}

// Service grants upload slots.
type Service struct {
	repo     Repository
	resolver Resolver
	store    *blob.Store
	settings Settings
	now      func() time.Time
}

func NewService(repo Repository, resolver Resolver, store *blob.Store, settings Settings) *Service {
	return &Service{
		repo:     repo,
		resolver: resolver,
		store:    store,
		settings: settings.withDefaults(),
		now:      utcNow,
	}
}

// WithClock replaces the time source, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Settings returns the effective settings.
func (s *Service) Settings() Settings {
	return s.settings
}

// RequestSlot validates the request, checks policy and quota and persists a
// reserved slot. Nothing is stored when any check fails.
func (s *Service) RequestSlot(ctx context.Context, req SlotRequest) (*Grant, error) {
	jid := strings.TrimSpace(req.JID)
	if jid == "" || req.Name == "" || req.Size == "" {
		return nil, fmt.Errorf("%w: jid, name and size are required", ErrInvalidRequest)
	}
	size, err := strconv.ParseInt(strings.TrimSpace(req.Size), 10, 64)
	if err != nil || size <= 0 {
		return nil, fmt.Errorf("%w: size must be a positive integer", ErrInvalidRequest)
	}

	name, err := SanitizeName(req.Name)
	if err != nil {
		return nil, err
	}

	now := s.now()
	outcome := s.resolver.Resolve(jid)
	if err := quota.Admit(ctx, outcome, s.repo, jid, size, now); err != nil {
		var rej *quota.Rejection
		if errors.As(err, &rej) {
			log.Info().Str("jid", jid).Int64("size", size).Str("dimension", string(rej.Dimension)).Msg("slot rejected")
		}
		return nil, err
	}

	var contentType *string
	if req.ContentType != "" {
		ct := req.ContentType
		contentType = &ct
	}

	for attempt := 0; attempt < maxTokenAttempts; attempt++ {
		token, err := NewToken()
		if err != nil {
			return nil, err
		}
		if err := s.store.CheckPath(token, name); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNameTooLong, err)
		}

		slot := &Slot{
			ID:        uuid.NewString(),
			Token:     token,
			JID:       jid,
			Name:      name,
			Size:      size,
			Type:      contentType,
			CreatedAt: now,
			UpdatedAt: now,
		}
		err = s.repo.Create(ctx, slot)
		if errors.Is(err, ErrDuplicateToken) {
			log.Warn().Int("attempt", attempt+1).Msg("slot token collision, drawing again")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("save slot: %w", err)
		}

		log.Info().Str("jid", jid).Str("token", token).Str("name", name).Int64("size", size).Msg("slot granted")
		return &Grant{Slot: slot, URLs: s.settings.BuildURLs(req.Origin, token, name)}, nil
	}
	return nil, ErrTokenExhausted
}

// MaxSize returns the per-file size cap for jid, 0 when none is configured.
func (s *Service) MaxSize(jid string) (int64, error) {
	jid = strings.TrimSpace(jid)
	if jid == "" {
		return 0, fmt.Errorf("%w: jid is required", ErrInvalidRequest)
	}
	outcome := s.resolver.Resolve(jid)
	if outcome.Denied() {
		return 0, quota.Denied()
	}
	return outcome.MaxFileSize(), nil
}

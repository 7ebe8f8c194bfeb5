package slot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"

	"httpupload/internal/storage/blob"
)

// UploadRequest is a PUT to a slot's upload URL.
type UploadRequest struct {
	Token         string
	Name          string
	ContentLength int64
	ContentType   string
	Body          io.Reader
}

// Download is an open blob ready to be streamed. The caller closes Body.
type Download struct {
	Slot        *Slot
	Body        io.ReadCloser
	Size        int64
	ContentType string
}

// ExchangeService accepts uploads into reserved slots and serves them back.
type ExchangeService struct {
	repo     Repository
	store    *blob.Store
	settings Settings
	now      func() time.Time
}

func NewExchangeService(repo Repository, store *blob.Store, settings Settings) *ExchangeService {
	return &ExchangeService{
		repo:     repo,
		store:    store,
		settings: settings.withDefaults(),
		now:      utcNow,
	}
}

// WithClock replaces the time source, for tests.
func (s *ExchangeService) WithClock(now func() time.Time) *ExchangeService {
	s.now = now
	return s
}

// CompleteUpload stores the body of a PUT and moves the slot from reserved to
// fulfilled. Of two concurrent uploads to one slot exactly one succeeds; the
// other gets ErrSlotNotFound.
func (s *ExchangeService) CompleteUpload(ctx context.Context, req UploadRequest) (*Slot, error) {
	if !ValidToken(req.Token) {
		return nil, ErrSlotNotFound
	}
	now := s.now()
	slot, err := s.repo.FindReserved(ctx, req.Token, req.Name, now.Add(-s.settings.PutTimeout))
	if err != nil {
		return nil, err
	}

	if req.ContentLength != slot.Size {
		return nil, fmt.Errorf("%w: file size (%d) does not match requested size (%d)",
			ErrSizeMismatch, req.ContentLength, slot.Size)
	}
	if slot.Type != nil && req.ContentType != *slot.Type {
		return nil, fmt.Errorf("%w: content type (%s) does not match requested type (%s)",
			ErrTypeMismatch, req.ContentType, *slot.Type)
	}

	body := req.Body
	contentType := req.ContentType
	if contentType == "" {
		var head bytes.Buffer
		mtype, err := mimetype.DetectReader(io.TeeReader(body, &head))
		if err != nil {
			return nil, fmt.Errorf("read upload: %w", err)
		}
		contentType = mtype.String()
		body = io.MultiReader(&head, body)
	}

	staged, err := s.store.Stage(slot.Token, body, slot.Size)
	if err != nil {
		return nil, fmt.Errorf("stage upload: %w", err)
	}
	if staged.Written != slot.Size {
		s.store.Discard(staged)
		return nil, fmt.Errorf("%w: received %d bytes, expected %d", ErrSizeMismatch, staged.Written, slot.Size)
	}

	rel := blob.RelPath(slot.Token, slot.Name)
	committed := false
	err = s.repo.Fulfill(ctx, slot.ID, rel, contentType, now, func() error {
		if err := s.store.Commit(staged, rel); err != nil {
			return err
		}
		committed = true
		return nil
	})
	if err != nil {
		if committed {
			// the record rolled back, so the blob must not outlive it
			_ = s.store.Delete(rel)
		} else {
			s.store.Discard(staged)
		}
		if errors.Is(err, ErrSlotNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("fulfill slot: %w", err)
	}

	slot.File = rel
	slot.Type = &contentType
	slot.UploadedAt = &now
	slot.UpdatedAt = now
	log.Info().Str("jid", slot.JID).Str("token", slot.Token).Str("name", slot.Name).Int64("size", slot.Size).Msg("upload stored")
	return slot, nil
}

// Download opens the blob of a fulfilled slot.
func (s *ExchangeService) Download(ctx context.Context, token, name string) (*Download, error) {
	if s.settings.WebserverDownload {
		return nil, ErrDownloadDisabled
	}
	if !ValidToken(token) {
		return nil, ErrSlotNotFound
	}
	slot, err := s.repo.FindFulfilled(ctx, token, name)
	if err != nil {
		return nil, err
	}
	f, size, err := s.store.Open(slot.File)
	if err != nil {
		return nil, err
	}
	return &Download{Slot: slot, Body: f, Size: size, ContentType: slot.ContentType()}, nil
}

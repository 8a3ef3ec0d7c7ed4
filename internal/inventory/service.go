// Package inventory implements the user-facing operations: creating and
// adjusting items, managing zones, and the staged-image pipeline that runs
// size gate, crop and upload before anything touches the store.
package inventory

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"log/slog"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/xuanvinh/partsbin/internal/assethost"
	"github.com/xuanvinh/partsbin/internal/crop"
	"github.com/xuanvinh/partsbin/internal/domain"
	"github.com/xuanvinh/partsbin/internal/livesync"
)

// itemStore is the subset of the document store the service writes items
// through.
type itemStore interface {
	CreateItem(ctx context.Context, item domain.Item) (*domain.Item, error)
	GetItem(ctx context.Context, id string) (*domain.Item, error)
	UpdateItem(ctx context.Context, id, name, description, imageURL string, zoneID *string) (*domain.Item, error)
	SetQuantity(ctx context.Context, id string, quantity int64) error
	DeleteItem(ctx context.Context, id string) error
}

// zoneStore is the subset of the document store the service manages zones
// through.
type zoneStore interface {
	CreateZone(ctx context.Context, name, location string) (*domain.Zone, error)
	ListZones(ctx context.Context) ([]domain.Zone, error)
	DeleteZone(ctx context.Context, id string) error
}

// snapshotter provides the current live snapshot; the duplicate-name check
// and search run against it, not against the store. The check is inherently
// racy against concurrent clients, same as the source behavior.
type snapshotter interface {
	Current() livesync.Snapshot
}

type Config struct {
	// PlaceholderImageURL is stored for items created without an image.
	PlaceholderImageURL string
	// MaxImageBytes gates source files before crop or upload is attempted.
	MaxImageBytes int64
}

type Service struct {
	items    itemStore
	zones    zoneStore
	live     snapshotter
	uploader assethost.Uploader
	userID   string
	cfg      Config
	logger   *slog.Logger
}

func NewService(
	items itemStore,
	zones zoneStore,
	live snapshotter,
	uploader assethost.Uploader,
	userID string,
	cfg Config,
	logger *slog.Logger,
) *Service {
	return &Service{
		items:    items,
		zones:    zones,
		live:     live,
		uploader: uploader,
		userID:   userID,
		cfg:      cfg,
		logger:   logger,
	}
}

// StagedImage is a source image plus the crop selection made against its
// displayed rendition. A nil StagedImage means "no image"; an empty Region
// means "use the whole source image".
type StagedImage struct {
	Data      []byte
	MimeType  string
	Displayed crop.Dimensions
	Region    crop.Region
}

// CreateItemInput carries everything needed to create an item.
type CreateItemInput struct {
	Name        string
	Quantity    int64
	Description string
	ZoneID      *string
	Image       *StagedImage
}

// CreateItem validates, resolves the image (placeholder, or crop-and-upload)
// and writes the new record. Any failure before the write leaves the store
// untouched: an upload error aborts creation with no partial record.
func (s *Service) CreateItem(ctx context.Context, in CreateItemInput) (*domain.Item, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, &domain.ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if in.Quantity < 0 {
		return nil, &domain.ValidationError{Field: "quantity", Reason: "must not be negative"}
	}
	if err := s.checkNameAvailable(name); err != nil {
		return nil, err
	}

	imageURL := s.cfg.PlaceholderImageURL
	if in.Image != nil {
		url, err := s.resolveImage(ctx, in.Image)
		if err != nil {
			return nil, err
		}
		imageURL = url
	}

	item, err := s.items.CreateItem(ctx, domain.Item{
		Name:        name,
		Quantity:    in.Quantity,
		ImageURL:    imageURL,
		Description: in.Description,
		ZoneID:      in.ZoneID,
		CreatedBy:   s.userID,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("item created", "item_id", item.ID, "name", item.Name, "quantity", item.Quantity)
	return item, nil
}

// checkNameAvailable enforces case-insensitive name uniqueness against the
// in-memory snapshot. There is a time-of-check gap before the write lands;
// the store is last-write-wins and does not enforce this server-side.
func (s *Service) checkNameAvailable(name string) error {
	for _, existing := range s.live.Current().Items {
		if strings.EqualFold(existing.Name, name) {
			return &domain.ValidationError{
				Field:  "name",
				Reason: fmt.Sprintf("%q already exists", existing.Name),
			}
		}
	}
	return nil
}

// resolveImage runs the staged-image pipeline: size gate, optional crop,
// then upload. The size gate applies to the source file before any work.
func (s *Service) resolveImage(ctx context.Context, staged *StagedImage) (string, error) {
	if int64(len(staged.Data)) > s.cfg.MaxImageBytes {
		return "", &domain.ValidationError{
			Field:  "image",
			Reason: fmt.Sprintf("exceeds the %d byte limit", s.cfg.MaxImageBytes),
		}
	}

	encoded := staged.Data
	mimeType := staged.MimeType

	// A zero-area region means the user never dragged a selection; the
	// unmodified source image is used instead of failing.
	if !staged.Region.Empty() {
		src, _, err := image.Decode(bytes.NewReader(staged.Data))
		if err != nil {
			return "", &domain.ValidationError{Field: "image", Reason: fmt.Sprintf("cannot decode: %v", err)}
		}
		encoded, err = crop.Extract(src, staged.Displayed, staged.Region)
		if err != nil {
			return "", fmt.Errorf("failed to crop image: %w", err)
		}
		mimeType = "image/jpeg"
	}

	url, err := s.uploader.Upload(ctx, encoded, mimeType)
	if err != nil {
		return "", err
	}
	s.logger.Debug("image uploaded", "url", url, "bytes", len(encoded))
	return url, nil
}

// AdjustQuantity applies a signed delta. An adjustment that would take the
// stored quantity negative is rejected before any write is issued.
func (s *Service) AdjustQuantity(ctx context.Context, id string, delta int64) (*domain.Item, error) {
	item, err := s.items.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, &domain.WriteError{Op: "adjust quantity", Err: domain.ErrNotFound}
	}

	next := item.Quantity + delta
	if next < 0 {
		return nil, &domain.ValidationError{Field: "quantity", Reason: "cannot go below zero"}
	}

	if err := s.items.SetQuantity(ctx, id, next); err != nil {
		return nil, err
	}

	item.Quantity = next
	return item, nil
}

// UpdateItem is the merged-write path used by edit sessions.
func (s *Service) UpdateItem(ctx context.Context, id, name, description, imageURL string, zoneID *string) (*domain.Item, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &domain.ValidationError{Field: "name", Reason: "must not be empty"}
	}
	return s.items.UpdateItem(ctx, id, name, description, imageURL, zoneID)
}

// StageImageUpload runs the image pipeline for an existing item and returns
// the hosted URL, ready to be staged on an edit session.
func (s *Service) StageImageUpload(ctx context.Context, staged *StagedImage) (string, error) {
	return s.resolveImage(ctx, staged)
}

func (s *Service) DeleteItem(ctx context.Context, id string) error {
	return s.items.DeleteItem(ctx, id)
}

func (s *Service) CreateZone(ctx context.Context, name, location string) (*domain.Zone, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &domain.ValidationError{Field: "name", Reason: "must not be empty"}
	}
	return s.zones.CreateZone(ctx, name, location)
}

func (s *Service) ListZones(ctx context.Context) ([]domain.Zone, error) {
	return s.zones.ListZones(ctx)
}

// DeleteZone removes the zone only; items referencing it show up as
// uncategorized in the next snapshot without any write of their own.
func (s *Service) DeleteZone(ctx context.Context, id string) error {
	return s.zones.DeleteZone(ctx, id)
}

// Search filters the live snapshot by name, case-insensitively.
func (s *Service) Search(term string) []domain.Item {
	return s.live.Current().Filter(term)
}

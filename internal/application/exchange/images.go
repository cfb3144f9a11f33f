package exchange

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/shop/backend/internal/domain/catalog"
	"github.com/shop/backend/internal/infrastructure/commerceml"
)

const (
	importFilesDir = "import_files"
	imageKeyPrefix = "images/"
)

// ObjectStorage stores image files and export archives.
type ObjectStorage interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	ObjectExists(ctx context.Context, key string) (bool, error)
}

// NormalizeImagePath strips exactly one leading "import_files/" component.
// "import_files" alone is kept; "import_files/" becomes "".
func NormalizeImagePath(p string) string {
	if rest, ok := strings.CutPrefix(p, importFilesDir+"/"); ok {
		return rest
	}
	return p
}

// imageKey is the storage key of a normalized image path.
func imageKey(normalized string) string {
	return imageKeyPrefix + normalized
}

// imageHandler uploads referenced image files and records them per product.
type imageHandler struct {
	resolvers *Resolvers
	storage   ObjectStorage
	root      string

	// goodsDir serves catalog product images; offersDir serves offer images
	// and falls back to goodsDir when offers/import_files is absent.
	goodsDir     string
	offersDir    string
	fallbackNote string
	note         func(string)
}

func (h *imageHandler) Pass() Pass         { return PassImages }
func (h *imageHandler) Kind() string       { return "image" }
func (h *imageHandler) Feeds() []FeedDir   { return []FeedDir{FeedDirGoods, FeedDirOffers} }
func (h *imageHandler) ParallelSafe() bool { return false }
func (h *imageHandler) Accepts(t commerceml.RecordType) bool {
	return t == commerceml.RecordProduct || t == commerceml.RecordOffer
}

// Begin resolves the image directories of this run.
func (h *imageHandler) Begin(_ context.Context, note func(string)) error {
	h.goodsDir = filepath.Join(h.root, string(FeedDirGoods), importFilesDir)
	h.offersDir = filepath.Join(h.root, string(FeedDirOffers), importFilesDir)
	h.note = note
	h.fallbackNote = ""
	if !isDir(h.offersDir) {
		h.fallbackNote = fmt.Sprintf("image directory %s not found, using %s",
			relTo(h.root, h.offersDir), relTo(h.root, h.goodsDir))
		h.offersDir = h.goodsDir
	}
	return nil
}

// offerImageDir returns the directory of offer images, reporting the goods
// fallback once per run.
func (h *imageHandler) offerImageDir() string {
	if h.fallbackNote != "" && h.note != nil {
		h.note(h.fallbackNote)
		h.fallbackNote = ""
	}
	return h.offersDir
}

func (h *imageHandler) Process(ctx context.Context, repos TransactionalRepositories, rec commerceml.Record) (Outcome, error) {
	var (
		productID uuid.UUID
		variantID *uuid.UUID
		paths     []string
		dir       string
	)
	switch r := rec.(type) {
	case commerceml.ProductRecord:
		if len(r.Images) == 0 {
			return OutcomeSkipped, nil
		}
		p, err := lookupRef(ctx, repos, h.resolvers.Product, r.ExternalID, r.ExternalID)
		if err != nil {
			return "", err
		}
		productID, paths, dir = p.ID, r.Images, h.goodsDir
	case commerceml.OfferRecord:
		if len(r.Images) == 0 {
			return OutcomeSkipped, nil
		}
		v, err := lookupRef(ctx, repos, h.resolvers.Variant, r.ExternalID, r.ExternalID)
		if err != nil {
			return "", err
		}
		id := v.ID
		productID, variantID, paths, dir = v.ProductID, &id, r.Images, h.offerImageDir()
	default:
		return "", unexpectedRecord(h.Pass(), rec)
	}

	outcome := OutcomeUnchanged
	for i, raw := range paths {
		normalized := NormalizeImagePath(strings.TrimSpace(raw))
		if normalized == "" {
			continue
		}
		if !filepath.IsLocal(filepath.FromSlash(normalized)) {
			return "", newRecordError(CodeImageNotFound, rec.Pos().ExternalID, "image path %q leaves the exchange directory", raw)
		}
		key := imageKey(normalized)
		if err := h.upload(ctx, dir, key, normalized); err != nil {
			return "", err
		}

		img, err := catalog.NewProductImage(productID, variantID, normalized, i)
		if err != nil {
			return "", err
		}
		img.StorageKey = key
		created, err := repos.ImageRepo().Upsert(ctx, img)
		if err != nil {
			return "", err
		}
		if created {
			outcome = outcome.merge(OutcomeCreated)
		}
	}
	return outcome, nil
}

func (h *imageHandler) upload(ctx context.Context, dir, key, normalized string) error {
	file := filepath.Join(dir, filepath.FromSlash(normalized))
	data, err := os.ReadFile(file)
	if errors.Is(err, os.ErrNotExist) {
		return newRecordError(CodeImageNotFound, "", "image file %s not found", normalized)
	}
	if err != nil {
		return fmt.Errorf("read image %s: %w", normalized, err)
	}
	exists, err := h.storage.ObjectExists(ctx, key)
	if err != nil {
		return fmt.Errorf("check image %s: %w", key, err)
	}
	if exists {
		return nil
	}
	if err := h.storage.Upload(ctx, key, data, contentType(normalized, data)); err != nil {
		return fmt.Errorf("upload image %s: %w", key, err)
	}
	return nil
}

func contentType(name string, data []byte) string {
	if ct := mime.TypeByExtension(strings.ToLower(path.Ext(name))); ct != "" {
		return ct
	}
	return http.DetectContentType(data)
}

func isDir(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}

func relTo(root, p string) string {
	if rel, err := filepath.Rel(root, p); err == nil {
		return filepath.ToSlash(rel)
	}
	return p
}

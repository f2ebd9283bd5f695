package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/adraryacine/adel-computer-sub000/internal/domain"
	pfirestore "github.com/adraryacine/adel-computer-sub000/internal/platform/firestore"
	"github.com/adraryacine/adel-computer-sub000/internal/repositories"
)

const promotionsCollection = "promotions"

// PromotionRepository maintains promotion definitions and usage counters.
type PromotionRepository struct {
	base     *pfirestore.BaseRepository[promotionDocument]
	provider *pfirestore.Provider
}

// NewPromotionRepository constructs a Firestore-backed promotion repository.
func NewPromotionRepository(provider *pfirestore.Provider) (*PromotionRepository, error) {
	if provider == nil {
		return nil, errors.New("promotion repository: firestore provider is required")
	}
	base := pfirestore.NewBaseRepository[promotionDocument](provider, promotionsCollection, nil, nil)
	return &PromotionRepository{base: base, provider: provider}, nil
}

// FindByCode resolves a promotion by its redemption code.
func (r *PromotionRepository) FindByCode(ctx context.Context, code string) (domain.Promotion, error) {
	if r == nil || r.base == nil {
		return domain.Promotion{}, errors.New("promotion repository not initialised")
	}
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return domain.Promotion{}, errors.New("promotion repository: code is required")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("code", "==", code).Limit(1)
	})
	if err != nil {
		return domain.Promotion{}, err
	}
	if len(docs) == 0 {
		return domain.Promotion{}, pfirestore.WrapError("promotions.find_by_code", status.Error(codes.NotFound, "promotion not found"))
	}
	return decodePromotionDocument(docs[0].ID, docs[0].Data), nil
}

// ListActive returns promotions whose validity window covers the given
// instant. Firestore cannot combine range filters on two fields, so the start
// bound is applied server-side and the end bound in memory.
func (r *PromotionRepository) ListActive(ctx context.Context, now time.Time) ([]domain.Promotion, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("promotion repository not initialised")
	}
	now = now.UTC()

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("active", "==", true).
			Where("validFrom", "<=", now).
			OrderBy("validFrom", firestore.Asc)
	})
	if err != nil {
		return nil, err
	}

	promotions := make([]domain.Promotion, 0, len(docs))
	for _, doc := range docs {
		promotion := decodePromotionDocument(doc.ID, doc.Data)
		if domain.PromotionUsable(promotion, now) {
			promotions = append(promotions, promotion)
		}
	}
	return promotions, nil
}

// IncrementUsage atomically bumps the redemption counter, refusing once the
// usage limit is reached.
func (r *PromotionRepository) IncrementUsage(ctx context.Context, promotionID string, now time.Time) (domain.Promotion, error) {
	if r == nil || r.provider == nil {
		return domain.Promotion{}, errors.New("promotion repository not initialised")
	}
	promotionID = strings.TrimSpace(promotionID)
	if promotionID == "" {
		return domain.Promotion{}, errors.New("promotion repository: promotion id is required")
	}
	now = now.UTC()

	var updated domain.Promotion
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.base.DocumentRef(ctx, promotionID)
		if err != nil {
			return err
		}
		snapshot, err := tx.Get(ref)
		if err != nil {
			return err
		}
		var doc promotionDocument
		if err := snapshot.DataTo(&doc); err != nil {
			return fmt.Errorf("firestore promotions decode %s: %w", promotionID, err)
		}

		if doc.UsageLimit > 0 && doc.UsedCount >= doc.UsageLimit {
			return status.Error(codes.FailedPrecondition, "promotion usage limit reached")
		}

		doc.UsedCount++
		doc.UpdatedAt = now
		if err := tx.Set(ref, doc); err != nil {
			return err
		}
		updated = decodePromotionDocument(promotionID, doc)
		return nil
	})
	if err != nil {
		return domain.Promotion{}, pfirestore.WrapError("promotions.increment_usage", err)
	}
	return updated, nil
}

type promotionDocument struct {
	Code       string    `firestore:"code"`
	Name       string    `firestore:"name"`
	Type       string    `firestore:"type"`
	Value      int64     `firestore:"value"`
	MaxCap     int64     `firestore:"maxCap"`
	Active     bool      `firestore:"active"`
	ValidFrom  time.Time `firestore:"validFrom"`
	ValidUntil time.Time `firestore:"validUntil"`
	UsageLimit int       `firestore:"usageLimit"`
	UsedCount  int       `firestore:"usedCount"`
	CreatedAt  time.Time `firestore:"createdAt"`
	UpdatedAt  time.Time `firestore:"updatedAt"`
}

func decodePromotionDocument(promotionID string, doc promotionDocument) domain.Promotion {
	return domain.Promotion{
		ID:         promotionID,
		Code:       strings.ToUpper(strings.TrimSpace(doc.Code)),
		Name:       doc.Name,
		Type:       domain.PromotionType(doc.Type),
		Value:      doc.Value,
		MaxCap:     doc.MaxCap,
		Active:     doc.Active,
		ValidFrom:  doc.ValidFrom,
		ValidUntil: doc.ValidUntil,
		UsageLimit: doc.UsageLimit,
		UsedCount:  doc.UsedCount,
		CreatedAt:  doc.CreatedAt,
		UpdatedAt:  doc.UpdatedAt,
	}
}

var _ repositories.PromotionRepository = (*PromotionRepository)(nil)

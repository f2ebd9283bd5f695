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

const otpChallengesCollection = "otp_challenges"

// OTPChallengeRepository stores verification code challenges in Firestore.
// Challenge documents only ever carry the SHA-256 digest of the code.
type OTPChallengeRepository struct {
	base     *pfirestore.BaseRepository[otpChallengeDocument]
	provider *pfirestore.Provider
}

// NewOTPChallengeRepository constructs a Firestore-backed challenge repository.
func NewOTPChallengeRepository(provider *pfirestore.Provider) (*OTPChallengeRepository, error) {
	if provider == nil {
		return nil, errors.New("otp challenge repository: firestore provider is required")
	}
	base := pfirestore.NewBaseRepository[otpChallengeDocument](provider, otpChallengesCollection, nil, nil)
	return &OTPChallengeRepository{base: base, provider: provider}, nil
}

// Create stores a new challenge and invalidates every live challenge for the
// same session in the same transaction, so at most one challenge per session
// stays redeemable.
func (r *OTPChallengeRepository) Create(ctx context.Context, challenge domain.OTPChallenge) (domain.OTPChallenge, error) {
	if r == nil || r.provider == nil {
		return domain.OTPChallenge{}, errors.New("otp challenge repository not initialised")
	}
	challengeID := strings.TrimSpace(challenge.ID)
	if challengeID == "" {
		return domain.OTPChallenge{}, errors.New("otp challenge repository: challenge id is required")
	}
	sessionID := strings.TrimSpace(challenge.SessionID)
	if sessionID == "" {
		return domain.OTPChallenge{}, errors.New("otp challenge repository: session id is required")
	}

	doc := encodeOTPChallengeDocument(challenge)
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		coll, err := r.collectionRef(ctx)
		if err != nil {
			return err
		}

		live := coll.Query.
			Where("sessionId", "==", sessionID).
			Where("invalidated", "==", false)
		snapshots, err := tx.Documents(live).GetAll()
		if err != nil {
			return err
		}
		for _, snapshot := range snapshots {
			if err := tx.Update(snapshot.Ref, []firestore.Update{
				{Path: "invalidated", Value: true},
			}); err != nil {
				return err
			}
		}

		return tx.Create(coll.Doc(challengeID), doc)
	})
	if err != nil {
		return domain.OTPChallenge{}, pfirestore.WrapError("otp_challenges.create", err)
	}
	return decodeOTPChallengeDocument(challengeID, doc), nil
}

// FindLive returns the single redeemable challenge for a session.
func (r *OTPChallengeRepository) FindLive(ctx context.Context, sessionID string) (domain.OTPChallenge, error) {
	if r == nil || r.base == nil {
		return domain.OTPChallenge{}, errors.New("otp challenge repository not initialised")
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return domain.OTPChallenge{}, errors.New("otp challenge repository: session id is required")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("sessionId", "==", sessionID).
			Where("invalidated", "==", false).
			OrderBy("createdAt", firestore.Desc).
			Limit(1)
	})
	if err != nil {
		return domain.OTPChallenge{}, err
	}
	if len(docs) == 0 {
		return domain.OTPChallenge{}, pfirestore.WrapError("otp_challenges.find_live", status.Error(codes.NotFound, "no live challenge"))
	}
	return decodeOTPChallengeDocument(docs[0].ID, docs[0].Data), nil
}

// RecordAttempt bumps the attempt counter and returns the updated challenge.
func (r *OTPChallengeRepository) RecordAttempt(ctx context.Context, challengeID string, now time.Time) (domain.OTPChallenge, error) {
	if r == nil || r.provider == nil {
		return domain.OTPChallenge{}, errors.New("otp challenge repository not initialised")
	}
	challengeID = strings.TrimSpace(challengeID)
	if challengeID == "" {
		return domain.OTPChallenge{}, errors.New("otp challenge repository: challenge id is required")
	}

	var updated domain.OTPChallenge
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.base.DocumentRef(ctx, challengeID)
		if err != nil {
			return err
		}
		snapshot, err := tx.Get(ref)
		if err != nil {
			return err
		}
		var doc otpChallengeDocument
		if err := snapshot.DataTo(&doc); err != nil {
			return fmt.Errorf("firestore otp challenges decode %s: %w", challengeID, err)
		}

		doc.Attempts++
		if err := tx.Update(ref, []firestore.Update{
			{Path: "attempts", Value: doc.Attempts},
		}); err != nil {
			return err
		}
		updated = decodeOTPChallengeDocument(challengeID, doc)
		return nil
	})
	if err != nil {
		return domain.OTPChallenge{}, pfirestore.WrapError("otp_challenges.record_attempt", err)
	}
	return updated, nil
}

// Consume marks the challenge as spent after a successful verification.
func (r *OTPChallengeRepository) Consume(ctx context.Context, challengeID string, now time.Time) error {
	if r == nil || r.base == nil {
		return errors.New("otp challenge repository not initialised")
	}
	challengeID = strings.TrimSpace(challengeID)
	if challengeID == "" {
		return errors.New("otp challenge repository: challenge id is required")
	}

	ref, err := r.base.DocumentRef(ctx, challengeID)
	if err != nil {
		return err
	}
	if _, err := ref.Update(ctx, []firestore.Update{
		{Path: "invalidated", Value: true},
		{Path: "consumedAt", Value: now.UTC()},
	}); err != nil {
		return pfirestore.WrapError("otp_challenges.consume", err)
	}
	return nil
}

// InvalidateForSession revokes every live challenge for the session.
func (r *OTPChallengeRepository) InvalidateForSession(ctx context.Context, sessionID string, now time.Time) error {
	if r == nil || r.provider == nil {
		return errors.New("otp challenge repository not initialised")
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return errors.New("otp challenge repository: session id is required")
	}

	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		coll, err := r.collectionRef(ctx)
		if err != nil {
			return err
		}
		live := coll.Query.
			Where("sessionId", "==", sessionID).
			Where("invalidated", "==", false)
		snapshots, err := tx.Documents(live).GetAll()
		if err != nil {
			return err
		}
		for _, snapshot := range snapshots {
			if err := tx.Update(snapshot.Ref, []firestore.Update{
				{Path: "invalidated", Value: true},
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return pfirestore.WrapError("otp_challenges.invalidate_for_session", err)
	}
	return nil
}

func (r *OTPChallengeRepository) collectionRef(ctx context.Context) (*firestore.CollectionRef, error) {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(otpChallengesCollection), nil
}

type otpChallengeDocument struct {
	SessionID   string     `firestore:"sessionId"`
	Destination string     `firestore:"destination"`
	CodeDigest  string     `firestore:"codeDigest"`
	ExpiresAt   time.Time  `firestore:"expiresAt"`
	Attempts    int        `firestore:"attempts"`
	MaxAttempts int        `firestore:"maxAttempts"`
	Invalidated bool       `firestore:"invalidated"`
	CreatedAt   time.Time  `firestore:"createdAt"`
	ConsumedAt  *time.Time `firestore:"consumedAt,omitempty"`
}

func encodeOTPChallengeDocument(challenge domain.OTPChallenge) otpChallengeDocument {
	return otpChallengeDocument{
		SessionID:   strings.TrimSpace(challenge.SessionID),
		Destination: strings.TrimSpace(challenge.Destination),
		CodeDigest:  strings.TrimSpace(challenge.CodeDigest),
		ExpiresAt:   challenge.ExpiresAt.UTC(),
		Attempts:    challenge.Attempts,
		MaxAttempts: challenge.MaxAttempts,
		Invalidated: challenge.Invalidated,
		CreatedAt:   challenge.CreatedAt.UTC(),
	}
}

func decodeOTPChallengeDocument(challengeID string, doc otpChallengeDocument) domain.OTPChallenge {
	return domain.OTPChallenge{
		ID:          challengeID,
		SessionID:   doc.SessionID,
		Destination: doc.Destination,
		CodeDigest:  doc.CodeDigest,
		ExpiresAt:   doc.ExpiresAt,
		Attempts:    doc.Attempts,
		MaxAttempts: doc.MaxAttempts,
		Invalidated: doc.Invalidated,
		CreatedAt:   doc.CreatedAt,
	}
}

var _ repositories.OTPChallengeRepository = (*OTPChallengeRepository)(nil)

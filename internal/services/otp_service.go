package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/adraryacine/adel-computer-sub000/internal/domain"
	"github.com/adraryacine/adel-computer-sub000/internal/repositories"
)

var (
	errOTPRepositoryRequired = errors.New("otp service: challenge repository is required")
	errOTPPublisherRequired  = errors.New("otp service: notification publisher is required")
	errOTPClockRequired      = errors.New("otp service: clock is required")
)

// ErrOTPInvalidInput indicates the caller supplied invalid input.
var ErrOTPInvalidInput = errors.New("otp service: invalid input")

// ErrOTPCodeInvalid indicates the submitted code does not match the live challenge.
var ErrOTPCodeInvalid = errors.New("otp service: code invalid")

// ErrOTPCodeExpired indicates the live challenge has passed its expiry.
var ErrOTPCodeExpired = errors.New("otp service: code expired")

// ErrOTPIssueFailed indicates a new code could not be issued or dispatched.
var ErrOTPIssueFailed = errors.New("otp service: issue failed")

// ErrOTPUnavailable indicates the verification backend cannot be reached.
var ErrOTPUnavailable = errors.New("otp service: unavailable")

const (
	defaultOTPTTL         = 5 * time.Minute
	defaultOTPMaxAttempts = 5
	otpCodeLength         = 6
)

// OTPServiceDeps wires persistence, dispatch, and ambient dependencies.
type OTPServiceDeps struct {
	Repository  repositories.OTPChallengeRepository
	Publisher   NotificationPublisher
	Clock       func() time.Time
	TTL         time.Duration
	MaxAttempts int
	// Pepper is mixed into code digests so stored digests cannot be brute
	// forced offline from the database alone. Optional.
	Pepper      string
	Logger      func(context.Context, string, map[string]any)
	IDGenerator func() string
	// CodeGenerator overrides code generation, primarily for tests.
	CodeGenerator func() (string, error)
}

type otpService struct {
	repo        repositories.OTPChallengeRepository
	publisher   NotificationPublisher
	now         func() time.Time
	ttl         time.Duration
	maxAttempts int
	pepper      string
	logger      func(context.Context, string, map[string]any)
	newID       func() string
	newCode     func() (string, error)
}

// NewOTPService constructs the first-party code issuer/verifier.
func NewOTPService(deps OTPServiceDeps) (OTPService, error) {
	if deps.Repository == nil {
		return nil, errOTPRepositoryRequired
	}
	if deps.Publisher == nil {
		return nil, errOTPPublisherRequired
	}
	if deps.Clock == nil {
		return nil, errOTPClockRequired
	}

	ttl := deps.TTL
	if ttl <= 0 {
		ttl = defaultOTPTTL
	}
	maxAttempts := deps.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultOTPMaxAttempts
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	codeGen := deps.CodeGenerator
	if codeGen == nil {
		codeGen = randomNumericCode
	}

	return &otpService{
		repo:        deps.Repository,
		publisher:   deps.Publisher,
		now:         func() time.Time { return deps.Clock().UTC() },
		ttl:         ttl,
		maxAttempts: maxAttempts,
		pepper:      deps.Pepper,
		logger:      logger,
		newID:       idGen,
		newCode:     codeGen,
	}, nil
}

// IssueCode mints a fresh challenge for the session and dispatches the code to
// the destination. Creating the challenge invalidates every earlier challenge
// for the session, so re-issuing always leaves exactly one redeemable code.
func (s *otpService) IssueCode(ctx context.Context, cmd IssueCodeCommand) (OTPChallenge, error) {
	sessionID := strings.TrimSpace(cmd.SessionID)
	destination := strings.TrimSpace(cmd.Destination)
	if sessionID == "" || destination == "" {
		return OTPChallenge{}, ErrOTPInvalidInput
	}

	code, err := s.newCode()
	if err != nil {
		return OTPChallenge{}, fmt.Errorf("%w: generate code: %v", ErrOTPIssueFailed, err)
	}

	now := s.now()
	challenge := domain.OTPChallenge{
		ID:          s.newID(),
		SessionID:   sessionID,
		Destination: destination,
		CodeDigest:  digestOTPCode(s.pepper, sessionID, code),
		ExpiresAt:   now.Add(s.ttl),
		MaxAttempts: s.maxAttempts,
		CreatedAt:   now,
	}

	created, err := s.repo.Create(ctx, challenge)
	if err != nil {
		return OTPChallenge{}, fmt.Errorf("%w: persist challenge: %v", ErrOTPIssueFailed, err)
	}

	if err := s.publisher.PublishOTPIssued(ctx, OTPIssuedMessage{
		ChallengeID: created.ID,
		SessionID:   sessionID,
		Destination: destination,
		Code:        code,
		ExpiresAt:   created.ExpiresAt,
	}); err != nil {
		// Undo so a code the shopper will never receive cannot linger.
		if invalidateErr := s.repo.InvalidateForSession(ctx, sessionID, s.now()); invalidateErr != nil {
			s.logger(ctx, "otp.invalidate_after_dispatch_failure_failed", map[string]any{
				"sessionId": sessionID,
				"error":     invalidateErr.Error(),
			})
		}
		return OTPChallenge{}, fmt.Errorf("%w: dispatch: %v", ErrOTPIssueFailed, err)
	}

	s.logger(ctx, "otp.code_issued", map[string]any{
		"sessionId":   sessionID,
		"challengeId": created.ID,
		"expiresAt":   created.ExpiresAt,
	})
	return created, nil
}

// VerifyCode checks the submitted code against the live challenge for the
// session. The challenge is consumed on success and after too many failures.
func (s *otpService) VerifyCode(ctx context.Context, sessionID string, code string) error {
	sessionID = strings.TrimSpace(sessionID)
	code = strings.TrimSpace(code)
	if sessionID == "" || len(code) != otpCodeLength {
		return ErrOTPCodeInvalid
	}

	challenge, err := s.repo.FindLive(ctx, sessionID)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return ErrOTPCodeInvalid
		}
		return fmt.Errorf("%w: %v", ErrOTPUnavailable, err)
	}

	now := s.now()
	if !challenge.ExpiresAt.After(now) {
		return ErrOTPCodeExpired
	}

	updated, err := s.repo.RecordAttempt(ctx, challenge.ID, now)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrOTPUnavailable, err)
	}

	if digestOTPCode(s.pepper, sessionID, code) != challenge.CodeDigest {
		if updated.MaxAttempts > 0 && updated.Attempts >= updated.MaxAttempts {
			if err := s.repo.InvalidateForSession(ctx, sessionID, now); err != nil {
				s.logger(ctx, "otp.invalidate_after_attempts_failed", map[string]any{
					"sessionId": sessionID,
					"error":     err.Error(),
				})
			}
		}
		return ErrOTPCodeInvalid
	}

	if err := s.repo.Consume(ctx, challenge.ID, now); err != nil {
		return fmt.Errorf("%w: %v", ErrOTPUnavailable, err)
	}
	return nil
}

func digestOTPCode(pepper, sessionID, code string) string {
	sum := sha256.Sum256([]byte(pepper + ":" + sessionID + ":" + code))
	return hex.EncodeToString(sum[:])
}

// randomNumericCode draws a uniformly distributed six digit code.
func randomNumericCode() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < otpCodeLength; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", otpCodeLength, n), nil
}

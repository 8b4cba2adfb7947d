package services

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goredis "github.com/redis/go-redis/v9"

	"github.com/moshaveran/moshaver-backend/internal/logger"
	"github.com/moshaveran/moshaver-backend/internal/platform/apierr"
	"github.com/moshaveran/moshaver-backend/internal/platform/sendgrid"
	"github.com/moshaveran/moshaver-backend/internal/repos"
)

// VerificationService issues short-lived email codes and exchanges a valid
// code for a session token. Codes live in Redis with a per-entry TTL, not
// in process memory.
type VerificationService interface {
	RequestCode(ctx context.Context, email string) error
	VerifyCode(ctx context.Context, email, code string) (string, error)
}

type verificationService struct {
	log       *logger.Logger
	rdb       *goredis.Client
	mail      sendgrid.Client
	userRepo  repos.UserRepo
	jwtSecret []byte
	codeTTL   time.Duration
	tokenTTL  time.Duration
}

func NewVerificationService(log *logger.Logger, rdb *goredis.Client, mail sendgrid.Client, userRepo repos.UserRepo, jwtSecret string, codeTTL, tokenTTL time.Duration) VerificationService {
	if codeTTL <= 0 {
		codeTTL = 10 * time.Minute
	}
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &verificationService{
		log:       log.With("service", "VerificationService"),
		rdb:       rdb,
		mail:      mail,
		userRepo:  userRepo,
		jwtSecret: []byte(jwtSecret),
		codeTTL:   codeTTL,
		tokenTTL:  tokenTTL,
	}
}

func codeKey(email string) string {
	return "verify:" + strings.ToLower(strings.TrimSpace(email))
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// Errors carry their HTTP status/code so handlers can hand them straight to
// RespondRepoError.
func (vs *verificationService) RequestCode(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return apierr.New(http.StatusBadRequest, "invalid_email", fmt.Errorf("invalid email address"))
	}
	if vs.rdb == nil {
		return apierr.New(http.StatusServiceUnavailable, "verification_unavailable", fmt.Errorf("verification store unavailable"))
	}

	code, err := generateCode()
	if err != nil {
		return err
	}
	if err := vs.rdb.Set(ctx, codeKey(email), code, vs.codeTTL).Err(); err != nil {
		return apierr.New(http.StatusServiceUnavailable, "verification_unavailable", fmt.Errorf("failed to store verification code: %w", err))
	}

	if vs.mail == nil {
		vs.log.Warn("Mail client not configured, verification code not delivered", "email", email)
		return nil
	}
	_, err = vs.mail.Send(ctx, sendgrid.SendEmailRequest{
		To:      []sendgrid.EmailAddress{{Email: email}},
		Subject: "کد ورود به مشاور",
		Text:    fmt.Sprintf("کد تایید شما: %s\nاین کد تا %d دقیقه معتبر است.", code, int(vs.codeTTL.Minutes())),
	})
	if err != nil {
		return apierr.New(http.StatusBadGateway, "code_delivery_failed", fmt.Errorf("failed to send verification email: %w", err))
	}
	vs.log.Info("Verification code sent", "email", email)
	return nil
}

// VerifyCode checks the stored code, consumes it on success and returns a
// signed session token. The user row is created on first login.
func (vs *verificationService) VerifyCode(ctx context.Context, email, code string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	code = strings.TrimSpace(code)
	if vs.rdb == nil {
		return "", apierr.New(http.StatusServiceUnavailable, "verification_unavailable", fmt.Errorf("verification store unavailable"))
	}

	stored, err := vs.rdb.Get(ctx, codeKey(email)).Result()
	if err == goredis.Nil {
		return "", apierr.New(http.StatusUnauthorized, "verification_failed", fmt.Errorf("verification code expired or never requested"))
	}
	if err != nil {
		return "", apierr.New(http.StatusServiceUnavailable, "verification_unavailable", fmt.Errorf("failed to read verification code: %w", err))
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(code)) != 1 {
		return "", apierr.New(http.StatusUnauthorized, "verification_failed", fmt.Errorf("verification code does not match"))
	}
	_ = vs.rdb.Del(ctx, codeKey(email)).Err()

	if vs.userRepo != nil {
		if _, err := vs.userRepo.GetOrCreateByEmail(ctx, nil, email); err != nil {
			vs.log.Warn("Failed to upsert user after verification", "email", email, "error", err)
		} else if err := vs.userRepo.MarkVerified(ctx, nil, email); err != nil {
			vs.log.Warn("Failed to mark user verified", "email", email, "error", err)
		}
	}

	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"sub": email,
		"iat": now.Unix(),
		"exp": now.Add(vs.tokenTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(vs.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

package account

import (
	"context"
	"database/sql"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// VerificationRecord is the application-level verification document, keyed
// by principal id. IsVerified is write-once-true: once set it never reverts.
type VerificationRecord struct {
	bun.BaseModel `bun:"table:verification_records,alias:vrec"`
	PrincipalID   string     `bun:"principal_id,pk" json:"principal_id"`
	IsVerified    bool       `bun:"is_verified,notnull,default:false" json:"is_verified"`
	VerifiedAt    *time.Time `bun:"verified_at,nullzero" json:"verified_at,omitempty"`
	LastLogin     *time.Time `bun:"last_login,nullzero" json:"last_login,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// VerificationRecords stores the secondary verification state consulted by
// IsVerified alongside the backend's native flag.
type VerificationRecords interface {
	Get(ctx context.Context, principalID string) (*VerificationRecord, error)
	MarkVerified(ctx context.Context, principalID string, at time.Time) error
	TouchLastLogin(ctx context.Context, principalID string, at time.Time) error
}

// MarkVerifiedSQL preserves an earlier verified_at on replay so the record
// stays write-once.
var MarkVerifiedSQL = `INSERT INTO "verification_records" AS "vrec"
	("principal_id", "is_verified", "verified_at", "updated_at")
VALUES (?, TRUE, ?, CURRENT_TIMESTAMP)
ON CONFLICT ("principal_id") DO UPDATE SET
	"is_verified" = TRUE,
	"verified_at" = COALESCE("vrec"."verified_at", EXCLUDED."verified_at"),
	"updated_at" = CURRENT_TIMESTAMP;`

var TouchLastLoginSQL = `INSERT INTO "verification_records" AS "vrec"
	("principal_id", "last_login", "updated_at")
VALUES (?, ?, CURRENT_TIMESTAMP)
ON CONFLICT ("principal_id") DO UPDATE SET
	"last_login" = EXCLUDED."last_login",
	"updated_at" = CURRENT_TIMESTAMP;`

type verificationRecords struct {
	db *bun.DB
}

var _ VerificationRecords = (*verificationRecords)(nil)

// NewVerificationRecords returns a bun-backed VerificationRecords store.
func NewVerificationRecords(db *bun.DB) VerificationRecords {
	return &verificationRecords{db: db}
}

func (r *verificationRecords) Get(ctx context.Context, principalID string) (*VerificationRecord, error) {
	record := &VerificationRecord{}

	err := r.db.NewSelect().
		Model(record).
		Where("?TableAlias.principal_id = ?", principalID).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.New("verification record not found", errors.CategoryNotFound).
				WithMetadata(map[string]any{"principal_id": principalID})
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to retrieve verification record")
	}

	return record, nil
}

func (r *verificationRecords) MarkVerified(ctx context.Context, principalID string, at time.Time) error {
	_, err := r.db.NewRaw(MarkVerifiedSQL, principalID, at).Exec(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to persist verification record")
	}
	return nil
}

func (r *verificationRecords) TouchLastLogin(ctx context.Context, principalID string, at time.Time) error {
	_, err := r.db.NewRaw(TouchLastLoginSQL, principalID, at).Exec(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to record last login")
	}
	return nil
}

// IsRecordNotFound checks for the not-found failure returned by Get.
func IsRecordNotFound(err error) bool {
	return errors.IsNotFound(err)
}

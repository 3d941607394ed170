// Package tenant reads tenant records, per-tenant settings and
// schedule configurations from PostgreSQL.
package tenant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/partnergate/partnergate/internal/schedule"
)

// Tenant is one onboarded organization with its bot credential and
// back office integration token.
type Tenant struct {
	ID               int64
	Name             string
	TelegramToken    string
	IntegrationToken string
	IsActive         bool
	CreatedAt        time.Time
}

// Settings is the per-tenant conversation behavior.
type Settings struct {
	AllowSelfRegistration bool
	PartnerGroupID        int64
	Language              string
}

// Store is the read surface over tenant storage.
type Store struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		log:  slog.With(slog.String("service", "tenant")),
		pool: pool,
	}
}

// ListActive returns every active tenant, for startup reconciliation.
func (s *Store) ListActive(ctx context.Context) ([]Tenant, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, telegram_token, integration_token, is_active, created_at
		FROM tenants
		WHERE is_active
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query active tenants: %w", err)
	}
	defer rows.Close()

	var tenants []Tenant
	for rows.Next() {
		var t Tenant
		if err := rows.Scan(&t.ID, &t.Name, &t.TelegramToken, &t.IntegrationToken, &t.IsActive, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan tenant: %w", err)
		}
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}

// Get returns one tenant by id. found is false when the tenant does
// not exist.
func (s *Store) Get(ctx context.Context, id int64) (Tenant, bool, error) {
	var t Tenant
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, telegram_token, integration_token, is_active, created_at
		FROM tenants
		WHERE id = $1`, id).
		Scan(&t.ID, &t.Name, &t.TelegramToken, &t.IntegrationToken, &t.IsActive, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Tenant{}, false, nil
	}
	if err != nil {
		return Tenant{}, false, fmt.Errorf("query tenant %d: %w", id, err)
	}
	return t, true, nil
}

// GetSettings returns the tenant's settings, falling back to defaults
// when no settings row exists.
func (s *Store) GetSettings(ctx context.Context, tenantID int64) (Settings, error) {
	var st Settings
	err := s.pool.QueryRow(ctx, `
		SELECT allow_self_registration, partner_group_id, language
		FROM tenant_settings
		WHERE tenant_id = $1`, tenantID).
		Scan(&st.AllowSelfRegistration, &st.PartnerGroupID, &st.Language)
	if errors.Is(err, pgx.ErrNoRows) {
		return Settings{Language: "ru"}, nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("query settings for tenant %d: %w", tenantID, err)
	}
	if st.Language == "" {
		st.Language = "ru"
	}
	return st, nil
}

// ListScheduleConfigs returns every enabled schedule configuration with
// its recurrence already validated. Malformed rows are logged and
// skipped so one bad row does not take the whole schedule down.
func (s *Store) ListScheduleConfigs(ctx context.Context) ([]schedule.Config, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, tenant_id, task_kind, time_of_day, recurrence, day_set, enabled
		FROM schedule_configs
		WHERE enabled
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query schedule configs: %w", err)
	}
	defer rows.Close()

	var configs []schedule.Config
	for rows.Next() {
		cfg, err := scanScheduleConfig(rows)
		if err != nil {
			s.log.Warn("invalid schedule config skipped", slog.String("error", err.Error()))
			continue
		}
		configs = append(configs, cfg)
	}
	return configs, rows.Err()
}

// GetScheduleConfig returns one schedule configuration by id. found is
// false when the row no longer exists.
func (s *Store) GetScheduleConfig(ctx context.Context, id int64) (schedule.Config, bool, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, tenant_id, task_kind, time_of_day, recurrence, day_set, enabled
		FROM schedule_configs
		WHERE id = $1`, id)
	cfg, err := scanScheduleConfig(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return schedule.Config{}, false, nil
	}
	if err != nil {
		return schedule.Config{}, false, err
	}
	return cfg, true, nil
}

func scanScheduleConfig(row pgx.Row) (schedule.Config, error) {
	var (
		cfg       schedule.Config
		timeOfDay string
		mode      string
		daySet    []byte
	)
	if err := row.Scan(&cfg.ID, &cfg.TenantID, &cfg.TaskKind, &timeOfDay, &mode, &daySet, &cfg.Enabled); err != nil {
		return schedule.Config{}, err
	}

	var days []int
	if len(daySet) > 0 {
		if err := json.Unmarshal(daySet, &days); err != nil {
			return schedule.Config{}, fmt.Errorf("schedule config %d: decode day set: %w", cfg.ID, err)
		}
	}
	spec, err := schedule.ParseSpec(timeOfDay, mode, days)
	if err != nil {
		return schedule.Config{}, fmt.Errorf("schedule config %d: %w", cfg.ID, err)
	}
	cfg.Spec = spec
	return cfg, nil
}

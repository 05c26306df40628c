package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/somosuni/lms-backend/internal/model"
	"github.com/somosuni/lms-backend/internal/repository"
)

// ErrInvalidSetting is returned when a setting value fails validation.
var ErrInvalidSetting = errors.New("invalid setting value")

// thresholdMemo bounds how long a resolved pass threshold is reused.
const thresholdMemo = 15 * time.Second

// SettingService reads and writes app_settings and resolves the pass threshold.
type SettingService struct {
	settingRepo *repository.SettingRepository
	cache       ProgressCache
	fallback    float64
	log         zerolog.Logger

	mu          sync.Mutex
	threshold   float64
	thresholdAt time.Time
}

// NewSettingService creates a SettingService. fallback is PASS_THRESHOLD.
func NewSettingService(settingRepo *repository.SettingRepository, cache ProgressCache, fallback float64, log zerolog.Logger) *SettingService {
	return &SettingService{
		settingRepo: settingRepo,
		cache:       cache,
		fallback:    fallback,
		log:         log.With().Str("component", "setting_service").Logger(),
	}
}

// GetAllSettings returns every setting as a map.
func (s *SettingService) GetAllSettings(ctx context.Context) (map[string]string, error) {
	settingsList, err := s.settingRepo.GetAll(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to get all settings")
		return nil, err
	}

	settingsMap := make(map[string]string, len(settingsList))
	for _, setting := range settingsList {
		settingsMap[setting.Key] = setting.Value
	}
	return settingsMap, nil
}

// GetPublicSettings returns only the settings safe to show unauthenticated clients.
// The effective pass threshold is always present.
func (s *SettingService) GetPublicSettings(ctx context.Context) (map[string]string, error) {
	all, err := s.GetAllSettings(ctx)
	if err != nil {
		return nil, err
	}
	public := make(map[string]string, len(model.PublicSettingKeys))
	for _, key := range model.PublicSettingKeys {
		if v, ok := all[key]; ok {
			public[key] = v
		}
	}
	public[model.SettingPassThreshold] = strconv.FormatFloat(s.PassThreshold(ctx), 'f', -1, 64)
	return public, nil
}

// UpdateSettings validates and writes the given pairs. A changed pass
// threshold invalidates every cached progress view.
func (s *SettingService) UpdateSettings(ctx context.Context, settingsMap map[string]string) error {
	v, thresholdChanged := settingsMap[model.SettingPassThreshold]
	if thresholdChanged {
		if _, err := ParsePassThreshold(v); err != nil {
			return err
		}
	}

	if err := s.settingRepo.UpsertMany(ctx, settingsMap); err != nil {
		s.log.Error().Err(err).Msg("failed to update settings")
		return err
	}

	if thresholdChanged {
		s.mu.Lock()
		s.thresholdAt = time.Time{}
		s.mu.Unlock()
		if err := s.cache.InvalidateAll(ctx); err != nil {
			s.log.Warn().Err(err).Msg("failed to invalidate progress cache after threshold change")
		}
	}
	return nil
}

// PassThreshold returns the app setting when present and valid, else the configured default.
func (s *SettingService) PassThreshold(ctx context.Context) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.thresholdAt.IsZero() && time.Since(s.thresholdAt) < thresholdMemo {
		return s.threshold
	}

	s.threshold = s.fallback
	setting, err := s.settingRepo.GetByKey(ctx, model.SettingPassThreshold)
	switch {
	case err == nil:
		if t, perr := ParsePassThreshold(setting.Value); perr == nil {
			s.threshold = t
		} else {
			s.log.Warn().Str("value", setting.Value).Msg("ignoring invalid pass_threshold setting")
		}
	case errors.Is(err, pgx.ErrNoRows):
	default:
		s.log.Warn().Err(err).Msg("failed to read pass_threshold setting, using default")
		return s.threshold
	}
	s.thresholdAt = time.Now()
	return s.threshold
}

// ParsePassThreshold parses a percentage in [0, 100].
func ParsePassThreshold(v string) (float64, error) {
	t, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(t) || t < 0 || t > 100 {
		return 0, fmt.Errorf("%w: %s must be a number within 0..100", ErrInvalidSetting, model.SettingPassThreshold)
	}
	return t, nil
}

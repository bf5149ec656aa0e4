package service

import (
	"context"
	"strconv"
	"strings"

	"github.com/nefziamine/skill-evaluator/internal/model"
	"github.com/nefziamine/skill-evaluator/internal/repository"
	"github.com/rs/zerolog"
)

// publicSettings are readable without authentication.
var publicSettings = map[string]bool{
	model.SettingPassingPercentage: true,
}

type SettingService struct {
	settingRepo *repository.SettingRepository
	log         zerolog.Logger
}

func NewSettingService(settingRepo *repository.SettingRepository, log zerolog.Logger) *SettingService {
	return &SettingService{
		settingRepo: settingRepo,
		log:         log.With().Str("component", "setting_service").Logger(),
	}
}

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

// GetPublicSettings returns the subset of settings safe to expose to anyone.
func (s *SettingService) GetPublicSettings(ctx context.Context) (map[string]string, error) {
	all, err := s.GetAllSettings(ctx)
	if err != nil {
		return nil, err
	}
	public := make(map[string]string, len(publicSettings))
	for k, v := range all {
		if publicSettings[k] {
			public[k] = v
		}
	}
	return public, nil
}

func (s *SettingService) UpdateSettings(ctx context.Context, settingsMap map[string]string) error {
	if err := s.settingRepo.UpsertMany(ctx, settingsMap); err != nil {
		s.log.Error().Err(err).Int("count", len(settingsMap)).Msg("failed to update settings")
		return err
	}
	return nil
}

// PassingPercentage is the minimum percentage counted as a pass.
func (s *SettingService) PassingPercentage(ctx context.Context) float64 {
	setting, err := s.settingRepo.GetByKey(ctx, model.SettingPassingPercentage)
	if err != nil {
		return model.DefaultPassingPercentage
	}
	return ParsePassingPercentage(setting.Value)
}

// AllowRetakes reports whether a candidate may start a test they already completed.
func (s *SettingService) AllowRetakes(ctx context.Context) bool {
	setting, err := s.settingRepo.GetByKey(ctx, model.SettingAllowRetakes)
	if err != nil {
		return false
	}
	allow, err := strconv.ParseBool(strings.TrimSpace(setting.Value))
	return err == nil && allow
}

// ParsePassingPercentage reads a percentage setting, falling back to the
// default when it is malformed or outside [0, 100].
func ParsePassingPercentage(raw string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || v < 0 || v > 100 {
		return model.DefaultPassingPercentage
	}
	return v
}

// ValidateSettings checks the values of known keys. It returns field errors
// keyed by setting name, or nil when every value is acceptable.
func ValidateSettings(settings map[string]string) map[string]string {
	fields := make(map[string]string)
	for key, value := range settings {
		switch key {
		case model.SettingPassingPercentage:
			v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
			if err != nil || v < 0 || v > 100 {
				fields[key] = "must be a number between 0 and 100"
			}
		case model.SettingAllowRetakes:
			if _, err := strconv.ParseBool(strings.TrimSpace(value)); err != nil {
				fields[key] = "must be true or false"
			}
		}
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}

package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"

	"example.com/aura/internal/ledger"
	"example.com/aura/internal/scoring"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func configValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterStructValidation(validateScoring, scoring.Rules{})
		validate.RegisterStructValidation(validateLedger, ledger.Rules{})
		validate.RegisterValidation("location", func(fl validator.FieldLevel) bool {
			_, err := time.LoadLocation(fl.Field().String())
			return err == nil
		})
	})
	return validate
}

func validateScoring(sl validator.StructLevel) {
	r := sl.Current().Interface().(scoring.Rules)
	if r.XPPerKM <= 0 {
		sl.ReportError(r.XPPerKM, "XPPerKM", "XPPerKM", "gt", "0")
	}
	if r.XPFloor < 0 {
		sl.ReportError(r.XPFloor, "XPFloor", "XPFloor", "gte", "0")
	}
	if r.EarlyBirdFromHour < 0 || r.EarlyBirdUntilHour > 24 || r.EarlyBirdFromHour >= r.EarlyBirdUntilHour {
		sl.ReportError(r.EarlyBirdUntilHour, "EarlyBirdUntilHour", "EarlyBirdUntilHour", "hour_window", "")
	}
}

func validateLedger(sl validator.StructLevel) {
	r := sl.Current().Interface().(ledger.Rules)
	if r.BaseLevelXP <= 0 {
		sl.ReportError(r.BaseLevelXP, "BaseLevelXP", "BaseLevelXP", "gt", "0")
	}
	if r.CoinRate <= 0 {
		sl.ReportError(r.CoinRate, "CoinRate", "CoinRate", "gt", "0")
	}
	if r.CrystalsPerLevel < 0 {
		sl.ReportError(r.CrystalsPerLevel, "CrystalsPerLevel", "CrystalsPerLevel", "gte", "0")
	}
}

// Validate checks field constraints and the economy rules.
func (c Config) Validate() error {
	err := configValidator().Struct(c)
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		msgs = append(msgs, fmt.Sprintf("%s fails %s", strings.TrimPrefix(fe.Namespace(), "Config."), rule))
	}
	return errors.New(strings.Join(msgs, "; "))
}

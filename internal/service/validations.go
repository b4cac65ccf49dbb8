package service

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	errorvalues "github.com/limbo/campusflow/internal/error_values"
	"github.com/limbo/campusflow/pkg/entity"
)

// Package for custom validations
var (
	validate *validator.Validate
	once     sync.Once
)

func InitValidator() {
	once.Do(func() {
		validate = validator.New()
		validate.RegisterValidation("occupancy_level", func(fl validator.FieldLevel) bool {
			return entity.OccupancyLabel(fl.Field().String()).Valid()
		})
	})
}

func validateStruct(s any) error {
	InitValidator()
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		fields := make([]string, 0, len(validationErrors))
		for _, fieldErr := range validationErrors {
			if fieldErr.Tag() == "occupancy_level" {
				return fmt.Errorf("%w: %w", errorvalues.ErrValidation, errorvalues.ErrInvalidLabel)
			}
			fields = append(fields, fieldErr.Field())
		}
		return fmt.Errorf("%w: invalid %s", errorvalues.ErrValidation, strings.Join(fields, ", "))
	}
	return errors.New("validation unexpected error: " + err.Error())
}

package validator

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

const (
	dateLayout  = "2006-01-02"
	clockLayout = "15:04"
)

// Register adds the scheduling tags to v:
//
//	date   calendar date, YYYY-MM-DD
//	clock  wall-clock time, HH:MM (HH:MM:SS is tolerated)
func Register(v *validator.Validate) error {
	if err := v.RegisterValidation("date", isDate); err != nil {
		return fmt.Errorf("failed to register date validation: %w", err)
	}
	if err := v.RegisterValidation("clock", isClock); err != nil {
		return fmt.Errorf("failed to register clock validation: %w", err)
	}
	return nil
}

// Setup registers the scheduling tags on gin's binding engine.
func Setup() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("gin binding engine is not validator/v10")
	}
	return Register(v)
}

// New returns a standalone validator with the scheduling tags registered.
func New() *validator.Validate {
	v := validator.New()
	if err := Register(v); err != nil {
		panic(err)
	}
	return v
}

func isDate(fl validator.FieldLevel) bool {
	_, err := time.Parse(dateLayout, fl.Field().String())
	return err == nil
}

func isClock(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	for _, layout := range []string{clockLayout, "15:04:05"} {
		if _, err := time.Parse(layout, value); err == nil {
			return true
		}
	}
	return false
}

// Describe turns validation errors into one readable line.
func Describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", fe.Field()))
		case "date":
			msgs = append(msgs, fmt.Sprintf("%s must be a date (YYYY-MM-DD)", fe.Field()))
		case "clock":
			msgs = append(msgs, fmt.Sprintf("%s must be a time (HH:MM)", fe.Field()))
		case "uuid":
			msgs = append(msgs, fmt.Sprintf("%s must be a valid id", fe.Field()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}

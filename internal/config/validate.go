package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// validateStruct checks the validate tags and reports every failing key
func validateStruct(c *Config) error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrors validator.ValidationErrors
	if !errors.As(err, &verrors) {
		return err
	}

	parts := make([]string, 0, len(verrors))
	for _, verror := range verrors {
		parts = append(parts, fmt.Sprintf("%s: %s", keyOf(verror), messageFor(verror)))
	}
	return errors.New(strings.Join(parts, "; "))
}

// keyOf turns "Config.http.max_bytes_per_second" into "http.max_bytes_per_second"
func keyOf(verror validator.FieldError) string {
	ns := verror.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func messageFor(verror validator.FieldError) string {
	switch verror.Tag() {
	case "required":
		return "is required"
	case "url":
		return "must be a valid URL"
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", verror.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", verror.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", verror.Param())
	default:
		return fmt.Sprintf("failed %s validation", verror.Tag())
	}
}

package service

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/mediagrab/api/internal/model"
)

// NewValidator returns a validator with the download request tags registered.
func NewValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("source_url", func(fl validator.FieldLevel) bool {
		return isWellFormedURL(fl.Field().String())
	})
	return v
}

// isWellFormedURL accepts http(s) URLs and bare host/path URLs such as
// "youtu.be/abc". The host is not checked against the supported platforms.
func isWellFormedURL(raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.ContainsAny(raw, " \t\n") {
		return false
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return u.Host != ""
}

// validationMessage turns validator errors into a single client message.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}

	e := verrs[0]
	switch {
	case e.Field() == "URL" && e.Tag() == "required":
		return "URL is required"
	case e.Field() == "URL":
		return "URL is malformed"
	case e.Tag() == "required":
		return fmt.Sprintf("%s is required", e.Field())
	case e.Field() == "Format":
		return fmt.Sprintf("unsupported format %q, expected one of %v", e.Value(), model.ValidFormats)
	}
	return fmt.Sprintf("%s failed %s validation", e.Field(), e.Tag())
}

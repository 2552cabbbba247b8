// Package validate turns raw request fields into typed values before they reach the engine.
package validate

import (
	"errors"
	"strings"
	"time"

	goerrors "github.com/TudorHulban/go-errors"
	"github.com/asaskevich/govalidator"
	"github.com/md-rashed-zaman/timely/libs/interval"
)

// Struct runs the `valid:"..."` tags of v.
func Struct(service, caller string, v any) error {
	if _, err := govalidator.ValidateStruct(v); err != nil {
		return goerrors.ErrServiceValidation{
			ServiceName: service,
			Caller:      caller,
			Issue:       err,
		}
	}
	return nil
}

// Email normalizes and checks a single address.
func Email(caller, field, raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", goerrors.ErrValidation{
			Caller: caller,
			Issue:  goerrors.ErrNilInput{InputName: field},
		}
	}
	if !govalidator.IsEmail(email) {
		return "", goerrors.ErrInvalidInput{
			Caller:     caller,
			InputName:  field,
			InputValue: raw,
			Issue:      errors.New("not an email address"),
		}
	}
	return email, nil
}

// Time parses an RFC3339 timestamp (fractional seconds allowed) and returns it in UTC.
func Time(caller, field, raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, goerrors.ErrValidation{
			Caller: caller,
			Issue:  goerrors.ErrNilInput{InputName: field},
		}
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, goerrors.ErrInvalidInput{
			Caller:     caller,
			InputName:  field,
			InputValue: raw,
			Issue:      err,
		}
	}
	return t.UTC(), nil
}

// Interval parses start/end and enforces start < end. An inverted or empty range returns
// interval.ErrInvalidRange unchanged so callers can match it with errors.Is.
func Interval(caller, startRaw, endRaw string) (interval.Interval, error) {
	start, err := Time(caller, "start_time", startRaw)
	if err != nil {
		return interval.Interval{}, err
	}
	end, err := Time(caller, "end_time", endRaw)
	if err != nil {
		return interval.Interval{}, err
	}
	return interval.New(start, end)
}

// IsInputError reports whether err came from one of the checks above and should be
// answered with 400.
func IsInputError(err error) bool {
	var (
		validation goerrors.ErrValidation
		invalid    goerrors.ErrInvalidInput
		service    goerrors.ErrServiceValidation
	)
	return errors.As(err, &validation) || errors.As(err, &invalid) || errors.As(err, &service) ||
		errors.Is(err, interval.ErrInvalidRange)
}

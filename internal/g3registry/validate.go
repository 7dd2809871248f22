package g3registry

import (
	"fmt"
	"sync"

	libval "github.com/go-playground/validator/v10"
)

// validatorOnce builds a single, process-wide validator instance the way
// the teacher's ftpclient.Config.Validate does with libval.New(), since
// constructing a validator.Validate is not free and every config section
// shares the same tag set (required, hostname_rfc1123, etc.).
var (
	validatorOnce sync.Once
	validatorInst *libval.Validate
)

func validatorInstance() *libval.Validate {
	validatorOnce.Do(func() { validatorInst = libval.New() })
	return validatorInst
}

// Validate runs struct-tag validation on cfg, the §9 config-reload path's
// gate before a node ever reaches SpawnNew/Reload: a node whose config
// fails here never gets Store'd into a Registry, so a registry never
// observes a half-valid node. Returns a single joined error, not
// libval.ValidationErrors, so callers don't need to import the validator
// package just to log a reload rejection.
func Validate(cfg any) error {
	if err := validatorInstance().Struct(cfg); err != nil {
		if _, ok := err.(*libval.InvalidValidationError); ok {
			return err
		}
		verrs, ok := err.(libval.ValidationErrors)
		if !ok {
			return err
		}
		msg := ""
		for i, fe := range verrs {
			if i > 0 {
				msg += "; "
			}
			msg += fmt.Sprintf("field %q fails constraint %q", fe.Namespace(), fe.ActualTag())
		}
		return fmt.Errorf("g3registry: config validation failed: %s", msg)
	}
	return nil
}

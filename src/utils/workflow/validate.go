package workflow

import (
	"errors"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/warp-contracts/shadowlink/src/utils/model"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Checks `validate` tags of a request
func Validate(req interface{}) error {
	validateOnce.Do(func() {
		validate = validator.New()
	})

	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return Wrap(ErrValidation, "%v", err)
	}

	msgs := make([]string, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		msgs = append(msgs, fe.Field()+" failed on "+fe.Tag())
	}
	return Wrap(ErrValidation, "%s", strings.Join(msgs, ", "))
}

// Settlement type from a request, external when empty
func SettlementType(v string) (model.SettlementType, error) {
	if v == "" {
		return model.SettlementTypeExternal, nil
	}
	t, err := model.ParseSettlementType(v)
	if err != nil {
		return "", Wrap(ErrValidation, "settlement type %q", v)
	}
	return t, nil
}

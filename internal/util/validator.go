package util

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/gestaozabele/frequencia/internal/apperr"
)

var hhmmPattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// Validator aplica as tags `validate` dos DTOs e traduz falhas para
// apperr.ErrValidation com detalhes por campo.
type Validator struct {
	v       *validator.Validate
	dominio string
}

// NewValidator registra as regras próprias: institucional (e-mail no domínio
// da instituição) e hhmm (horário HH:MM).
func NewValidator(dominio string) *Validator {
	dominio = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(dominio), "@"))
	val := &Validator{v: validator.New(validator.WithRequiredStructEnabled()), dominio: dominio}

	val.v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	_ = val.v.RegisterValidation("institucional", func(fl validator.FieldLevel) bool {
		return val.EmailInstitucional(fl.Field().String())
	})
	_ = val.v.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
		return hhmmPattern.MatchString(fl.Field().String())
	})
	return val
}

// EmailInstitucional confere formato e domínio do e-mail.
func (val *Validator) EmailInstitucional(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := val.v.Var(email, "email"); err != nil {
		return false
	}
	return strings.HasSuffix(email, "@"+val.dominio)
}

// Struct valida s e devolve *apperr.Error com os campos inválidos.
func (val *Validator) Struct(s any) error {
	err := val.v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Validation("dados inválidos")
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = val.message(fe)
	}
	return apperr.ValidationFields("dados inválidos", fields)
}

// ValidHHMM indica se value está no formato HH:MM.
func ValidHHMM(value string) bool {
	return hhmmPattern.MatchString(value)
}

func (val *Validator) message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if":
		return "obrigatório"
	case "email":
		return "e-mail inválido"
	case "institucional":
		return "use o e-mail institucional @" + val.dominio
	case "hhmm":
		return "horário deve estar no formato HH:MM"
	case "oneof":
		return "valor deve ser um de: " + fe.Param()
	case "min":
		return "mínimo " + fe.Param()
	case "max":
		return "máximo " + fe.Param()
	case "datetime":
		return "data deve estar no formato AAAA-MM-DD"
	case "gt", "gte":
		return "deve ser maior que " + fe.Param()
	default:
		return "inválido"
	}
}

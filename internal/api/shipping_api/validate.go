package shipping_api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

type requestValidator struct {
	validate *validator.Validate
}

func newRequestValidator() *requestValidator {
	v := validator.New()
	// поля в ошибках называем так же, как в JSON
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &requestValidator{validate: v}
}

func (v *requestValidator) Struct(i any) []FieldError {
	err := v.validate.Struct(i)
	if err == nil {
		return nil
	}
	ves, ok := err.(validator.ValidationErrors)
	if !ok {
		return []FieldError{{Field: "_global", Message: err.Error()}}
	}
	out := make([]FieldError, 0, len(ves))
	for _, e := range ves {
		out = append(out, FieldError{Field: fieldPath(e), Message: fieldMessage(e)})
	}
	return out
}

// fieldPath drops the root struct name: "createShipmentRequest.declared_value.currency" -> "declared_value.currency".
func fieldPath(e validator.FieldError) string {
	ns := e.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return e.Field()
}

func fieldMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "required"
	case "len":
		return fmt.Sprintf("must be exactly %s characters", e.Param())
	case "oneof":
		return "must be one of: " + e.Param()
	case "gt":
		return "must be greater than " + e.Param()
	case "gte":
		return "must be at least " + e.Param()
	case "lte":
		return "must be at most " + e.Param()
	case "min":
		return "must have at least " + e.Param() + " item(s)"
	case "url":
		return "must be a valid URL"
	case "uuid":
		return "must be a valid UUID"
	}
	return "failed validation on " + e.Tag()
}

// decodeAndValidate writes the error response itself and reports whether the handler may continue.
func (a *ShippingAPI) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		respondBadRequest(w, "invalid JSON body: "+err.Error())
		return false
	}
	fields := a.validator.Struct(dst)
	if c, ok := dst.(interface{ check() []FieldError }); ok {
		fields = append(fields, c.check()...)
	}
	if len(fields) > 0 {
		respondValidation(w, fields)
		return false
	}
	return true
}

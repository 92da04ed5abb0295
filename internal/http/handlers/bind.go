package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// FieldError describes one rejected field of a request body, named the way
// the client spelled it in JSON.
type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Param   string `json:"param,omitempty"`
	Message string `json:"message,omitempty"`
}

// BindJSON decodes the body into out and answers the request itself when it
// cannot: 413 for an oversized body, 400 with per-field details otherwise.
// Business rules (title length, email syntax) are checked by the services.
func BindJSON(ctx *gin.Context, out any) bool {
	err := ctx.ShouldBindJSON(out)
	if err == nil {
		return true
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		RespondError(ctx, http.StatusRequestEntityTooLarge, "payload_too_large", "Request body is too large", nil)
		return false
	}

	RespondBadRequest(ctx, "Request body could not be read", bindErrorDetails(err, out))
	return false
}

func bindErrorDetails(err error, out any) gin.H {
	var (
		missing    validator.ValidationErrors
		syntaxErr  *json.SyntaxError
		typeErr    *json.UnmarshalTypeError
		structType = requestType(out)
	)

	switch {
	case errors.As(err, &missing):
		fields := make([]FieldError, 0, len(missing))
		for _, fe := range missing {
			fields = append(fields, FieldError{
				Field:   jsonFieldName(structType, fe.StructField()),
				Rule:    fe.Tag(),
				Param:   fe.Param(),
				Message: ruleMessage(fe.Tag(), fe.Param()),
			})
		}
		return gin.H{"fields": fields}

	case errors.As(err, &syntaxErr):
		return gin.H{"json": "invalid_json_syntax"}

	case errors.As(err, &typeErr):
		// typeErr.Field is already the JSON key path for flat request bodies
		field := typeErr.Field
		if field == "" {
			field = typeErr.Value
		}
		return gin.H{
			"json":  "invalid_json_type",
			"field": field,
			"fields": []FieldError{{
				Field:   field,
				Rule:    "type",
				Message: "must be a " + jsonTypeName(typeErr.Type),
			}},
		}

	case errors.Is(err, io.EOF):
		return gin.H{"json": "empty_body"}
	}

	return gin.H{"reason": err.Error()}
}

func requestType(v any) reflect.Type {
	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil
	}
	return t
}

func jsonFieldName(t reflect.Type, structField string) string {
	if t == nil {
		return structField
	}
	sf, ok := t.FieldByName(structField)
	if !ok {
		return structField
	}
	name, _, _ := strings.Cut(sf.Tag.Get("json"), ",")
	if name == "" || name == "-" {
		return structField
	}
	return name
}

func jsonTypeName(t reflect.Type) string {
	if t == nil {
		return "value of another type"
	}
	switch t.Kind() {
	case reflect.Bool:
		return "boolean"
	case reflect.String:
		return "string"
	case reflect.Int, reflect.Int32, reflect.Int64, reflect.Float64:
		return "number"
	}
	return t.String()
}

func ruleMessage(rule, param string) string {
	switch rule {
	case "required":
		return "is required"
	case "max":
		return "must be at most " + param + " characters"
	}
	if param != "" {
		return "failed " + rule + "=" + param
	}
	return "failed " + rule
}

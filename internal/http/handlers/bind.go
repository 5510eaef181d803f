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

type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Param   string `json:"param,omitempty"`
	Message string `json:"message,omitempty"`
}

// BindJSON decodes the body into out. On failure it writes a 422 whose
// detail names the first offending field, e.g. "'email' Field required".
func BindJSON(ctx *gin.Context, out interface{}) bool {
	err := ctx.ShouldBindJSON(out)

	if err == nil {
		return true
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		RespondError(ctx, http.StatusRequestEntityTooLarge, "payload_too_large", "Request body too large", nil)
		return false
	}

	fields := parseBindError(err, out)
	detail := "Invalid request body"

	if len(fields) > 0 {
		detail = "'" + fields[0].Field + "' " + fields[0].Message
	}

	RespondError(ctx, http.StatusUnprocessableEntity, "validation_error", detail, fields)

	return false
}

func parseBindError(err error, out interface{}) []FieldError {
	rootType := baseStructType(out)

	var validatorError validator.ValidationErrors

	if errors.As(err, &validatorError) {
		fields := make([]FieldError, 0, len(validatorError))

		for _, fieldError := range validatorError {
			rule := fieldError.Tag()
			param := fieldError.Param()

			fields = append(fields, FieldError{
				Field:   jsonPathFromValidatorError(rootType, fieldError),
				Rule:    rule,
				Param:   param,
				Message: validationMessage(rule, param),
			})
		}
		return fields
	}

	// empty body
	if errors.Is(err, io.EOF) {
		return []FieldError{{Field: "body", Rule: "required", Message: "Field required"}}
	}

	var syntaxError *json.SyntaxError

	if errors.As(err, &syntaxError) || errors.Is(err, io.ErrUnexpectedEOF) {
		return []FieldError{{Field: "body", Rule: "json", Message: "JSON decode error"}}
	}

	var unmatchedTypeError *json.UnmarshalTypeError

	if errors.As(err, &unmatchedTypeError) {
		field := jsonPathFromDotPath(rootType, unmatchedTypeError.Field)

		if field == "" {
			field = strings.TrimSpace(unmatchedTypeError.Field)
		}

		return []FieldError{{
			Field:   field,
			Rule:    "type",
			Message: typeMessage(unmatchedTypeError.Type),
		}}
	}

	return nil
}

func typeMessage(t reflect.Type) string {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	if t == nil {
		return "Input has the wrong type"
	}

	switch t.Kind() {
	case reflect.String:
		return "Input should be a valid string"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return "Input should be a valid integer"
	case reflect.Bool:
		return "Input should be a valid boolean"
	default:
		return "Input should be a valid " + t.Kind().String()
	}
}

func baseStructType(v interface{}) reflect.Type {
	t := reflect.TypeOf(v)

	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	if t != nil && t.Kind() == reflect.Struct {
		return t
	}

	return nil
}

func jsonPathFromValidatorError(rootType reflect.Type, fieldError validator.FieldError) string {
	// "<StructName>.<Field>[.<NestedField>...]"
	namespace := fieldError.StructNamespace()
	if namespace == "" {
		return fieldError.Field()
	}

	parts := strings.Split(namespace, ".")

	if rootType != nil && rootType.Name() != "" && parts[0] == rootType.Name() {
		parts = parts[1:]
	}

	if path := mapStructPathToJSONPath(rootType, parts); path != "" {
		return path
	}

	return fieldError.Field()
}

func jsonPathFromDotPath(rootType reflect.Type, dotPath string) string {
	dotPath = strings.TrimSpace(dotPath)
	if dotPath == "" {
		return ""
	}

	return mapStructPathToJSONPath(rootType, strings.Split(dotPath, "."))
}

func mapStructPathToJSONPath(rootType reflect.Type, parts []string) string {
	current := rootType
	out := make([]string, 0, len(parts))

	for _, part := range parts {
		if part == "" {
			continue
		}

		jsonName := part
		var next reflect.Type

		for current != nil && current.Kind() == reflect.Pointer {
			current = current.Elem()
		}

		if current != nil && current.Kind() == reflect.Struct {
			if sf, ok := current.FieldByName(part); ok {
				jsonName = jsonNameFromStructField(sf)
				next = sf.Type
			}
		}

		out = append(out, jsonName)
		current = next
	}

	return strings.Join(out, ".")
}

func jsonNameFromStructField(sf reflect.StructField) string {
	tag := sf.Tag.Get("json")
	if tag == "" {
		return sf.Name
	}

	name, _, _ := strings.Cut(tag, ",")
	if name == "" || name == "-" {
		return sf.Name
	}

	return name
}

func validationMessage(rule, param string) string {
	switch rule {
	case "required":
		return "Field required"
	case "email":
		return "value is not a valid email address"
	case "min":
		return "should have at least " + param + " characters"
	case "max":
		return "should have at most " + param + " characters"
	default:
		if param != "" {
			return "failed " + rule + " validation (" + param + ")"
		}
		return "failed " + rule + " validation"
	}
}

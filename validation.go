package quickauth

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"
	"sort"
	"strings"

	schemareflect "github.com/invopop/jsonschema"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/santhosh-tekuri/jsonschema/v6/kind"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	MsgMissingField = "There's a missing field in your input"

	maxBodyBytes = 1 << 20
)

// Request bodies. Fields without omitempty are required.

type RegisterRequest struct {
	Username  string `json:"username" jsonschema:"minLength=1,maxLength=64"`
	Password  string `json:"password" jsonschema:"minLength=1,maxLength=128"`
	Email     string `json:"email,omitempty" jsonschema:"format=email"`
	Name      string `json:"name,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

type LoginRequest struct {
	Username string `json:"username" jsonschema:"minLength=1"`
	Password string `json:"password" jsonschema:"minLength=1"`
}

type PasswordResetRequest struct {
	Email string `json:"email" jsonschema:"minLength=1,format=email"`
}

type TokenExchangeRequest struct {
	AccessToken string `json:"accessToken" jsonschema:"minLength=1"`
}

// RequestValidator checks request bodies against JSON schemas reflected
// from the request types above.
type RequestValidator struct {
	schemas map[string]*jsonschema.Schema
	printer *message.Printer
}

var requestTypes = map[string]any{
	"register":       &RegisterRequest{},
	"login":          &LoginRequest{},
	"password_reset": &PasswordResetRequest{},
	"token_exchange": &TokenExchangeRequest{},
}

func NewRequestValidator() (*RequestValidator, error) {
	r := &schemareflect.Reflector{
		Anonymous:                 true,
		DoNotReference:            true,
		AllowAdditionalProperties: true,
	}
	c := jsonschema.NewCompiler()
	c.AssertFormat()

	v := &RequestValidator{
		schemas: make(map[string]*jsonschema.Schema, len(requestTypes)),
		printer: message.NewPrinter(language.English),
	}
	for name, typ := range requestTypes {
		raw, err := json.Marshal(r.Reflect(typ))
		if err != nil {
			return nil, fmt.Errorf("reflecting %s schema: %w", name, err)
		}
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("decoding %s schema: %w", name, err)
		}
		url := "mem://quickauth/" + name + ".json"
		if err := c.AddResource(url, doc); err != nil {
			return nil, fmt.Errorf("adding %s schema: %w", name, err)
		}
		sch, err := c.Compile(url)
		if err != nil {
			return nil, fmt.Errorf("compiling %s schema: %w", name, err)
		}
		v.schemas[name] = sch
	}
	return v, nil
}

func schemaNameFor(dst any) (string, bool) {
	switch dst.(type) {
	case *RegisterRequest:
		return "register", true
	case *LoginRequest:
		return "login", true
	case *PasswordResetRequest:
		return "password_reset", true
	case *TokenExchangeRequest:
		return "token_exchange", true
	}
	return "", false
}

// Decode validates body against the schema for dst and then unmarshals it
// into dst. Shape failures come back as a validation AuthError.
func (v *RequestValidator) Decode(body []byte, dst any) error {
	name, ok := schemaNameFor(dst)
	if !ok {
		return fmt.Errorf("no schema registered for %T", dst)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		e := NewAuthError(KindValidation, ErrCodeInvalidPayload, MsgMissingField, "")
		e.Details = []FieldError{{Message: "request body is not valid JSON"}}
		return e
	}
	sch := v.schemas[name]
	dropEmptyOptional(sch, inst)
	if err := sch.Validate(inst); err != nil {
		ve, ok := err.(*jsonschema.ValidationError)
		if !ok {
			return err
		}
		return validationError(v.fieldErrors(ve))
	}
	if err := json.Unmarshal(body, dst); err != nil {
		e := NewAuthError(KindValidation, ErrCodeInvalidPayload, MsgMissingField, "")
		e.Err = err
		return e
	}
	return nil
}

// dropEmptyOptional removes optional string fields sent as "" so that an
// empty form field counts as absent rather than failing its format.
func dropEmptyOptional(sch *jsonschema.Schema, inst any) {
	obj, ok := inst.(map[string]any)
	if !ok {
		return
	}
	for field, value := range obj {
		if value == "" && !slices.Contains(sch.Required, field) {
			delete(obj, field)
		}
	}
}

// DecodeRequest reads at most 1MiB of the request body and calls Decode.
func (v *RequestValidator) DecodeRequest(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		e := NewAuthError(KindValidation, ErrCodeInvalidPayload, MsgMissingField, "")
		e.Err = err
		return e
	}
	return v.Decode(body, dst)
}

func (v *RequestValidator) fieldErrors(ve *jsonschema.ValidationError) []FieldError {
	var out []FieldError
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) > 0 {
			for _, c := range e.Causes {
				walk(c)
			}
			return
		}
		if req, ok := e.ErrorKind.(*kind.Required); ok {
			for _, f := range req.Missing {
				out = append(out, FieldError{Field: f, Message: f + " is required"})
			}
			return
		}
		out = append(out, FieldError{
			Field:   strings.Join(e.InstanceLocation, "."),
			Message: e.ErrorKind.LocalizedString(v.printer),
		})
	}
	walk(ve)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Field < out[j].Field })
	return out
}

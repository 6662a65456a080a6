package base

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/BaSui01/mediagen/media"
	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
)

// Validator checks and normalizes a request before it reaches the provider.
type Validator interface {
	Validate(req *media.UnifiedGenerationRequest) (*media.UnifiedGenerationRequest, error)
}

// SchemaDescriber is implemented by validators that can describe their
// parameters as JSON Schema.
type SchemaDescriber interface {
	JSONSchema() *jsonschema.Schema
}

var validate = newValidate()

func newValidate() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonFieldName)
	return v
}

func jsonFieldName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return f.Name
	}
	return name
}

// PromptRequired is the minimal check used when an adapter has no schema.
type PromptRequired struct{}

// Validate rejects blank prompts.
func (PromptRequired) Validate(req *media.UnifiedGenerationRequest) (*media.UnifiedGenerationRequest, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, media.NewInvalidRequestError("prompt is required")
	}
	out := req.Clone()
	out.Prompt = strings.TrimSpace(out.Prompt)
	return out, nil
}

// SchemaOption tunes a ParamSchema.
type SchemaOption func(*schemaConfig)

type schemaConfig struct {
	allowEmptyPrompt bool
	maxOutputs       int
}

// AllowEmptyPrompt lets image-only requests through.
func AllowEmptyPrompt() SchemaOption {
	return func(c *schemaConfig) { c.allowEmptyPrompt = true }
}

// MaxOutputs caps numberOfOutputs.
func MaxOutputs(n int) SchemaOption {
	return func(c *schemaConfig) { c.maxOutputs = n }
}

type paramSchema[T any] struct {
	defaults func() T
	cfg      schemaConfig
}

// ParamSchema binds request parameters to T. defaults supplies the values
// for absent keys; `validate` tags on T are enforced. Keys unknown to T are
// passed through untouched.
func ParamSchema[T any](defaults func() T, opts ...SchemaOption) Validator {
	s := &paramSchema[T]{defaults: defaults}
	for _, opt := range opts {
		opt(&s.cfg)
	}
	return s
}

func (s *paramSchema[T]) Validate(req *media.UnifiedGenerationRequest) (*media.UnifiedGenerationRequest, error) {
	var violations []string

	out := req.Clone()
	out.Prompt = strings.TrimSpace(out.Prompt)
	if out.Prompt == "" && !s.cfg.allowEmptyPrompt {
		violations = append(violations, "prompt: is required")
	}
	if out.NumberOfOutputs < 0 {
		violations = append(violations, "numberOfOutputs: must be >= 0")
	}
	if s.cfg.maxOutputs > 0 && out.NumberOfOutputs > s.cfg.maxOutputs {
		violations = append(violations, fmt.Sprintf("numberOfOutputs: must be <= %d", s.cfg.maxOutputs))
	}

	params := s.defaults()
	decoded := true
	if len(out.Parameters) > 0 {
		raw, err := json.Marshal(out.Parameters)
		if err != nil {
			return nil, media.NewInvalidParametersError([]string{"parameters: " + err.Error()})
		}
		if err := json.Unmarshal(raw, &params); err != nil {
			violations = append(violations, decodeViolation(err))
			decoded = false
		}
	}
	// 类型不匹配时字段值不可信，跳过标签校验
	if decoded {
		violations = append(violations, structViolations(params)...)
	}
	if len(violations) > 0 {
		return nil, media.NewInvalidParametersError(violations)
	}

	normalized, err := toMap(params)
	if err != nil {
		return nil, err
	}
	if out.Parameters == nil {
		out.Parameters = make(map[string]any, len(normalized))
	}
	for k, v := range normalized {
		out.Parameters[k] = v
	}
	return out, nil
}

// JSONSchema describes T.
func (s *paramSchema[T]) JSONSchema() *jsonschema.Schema {
	r := &jsonschema.Reflector{
		DoNotReference:            true,
		ExpandedStruct:            true,
		AllowAdditionalProperties: true,
	}
	return r.Reflect(s.defaults())
}

func decodeViolation(err error) string {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		field := typeErr.Field
		if field == "" {
			field = "parameters"
		}
		return fmt.Sprintf("%s: must be %s", field, typeErr.Type.String())
	}
	return "parameters: " + err.Error()
}

func structViolations(v any) []string {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, fe.Field()+": "+describeTag(fe))
	}
	return out
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of [" + strings.ReplaceAll(fe.Param(), " ", ", ") + "]"
	case "min", "gte":
		return "must be >= " + fe.Param()
	case "max", "lte":
		return "must be <= " + fe.Param()
	case "gt":
		return "must be > " + fe.Param()
	case "lt":
		return "must be < " + fe.Param()
	case "url", "http_url":
		return "must be a valid URL"
	default:
		return "failed " + fe.Tag() + " validation"
	}
}

func toMap(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// DecodeParams reads the normalized parameters of a validated request into T.
func DecodeParams[T any](req *media.UnifiedGenerationRequest) (T, error) {
	var out T
	if len(req.Parameters) == 0 {
		return out, nil
	}
	raw, err := json.Marshal(req.Parameters)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, media.NewInvalidParametersError([]string{decodeViolation(err)})
	}
	return out, nil
}

// SchemaOf returns the adapter's parameter schema, or nil.
func (b *Base) SchemaOf() *jsonschema.Schema {
	if d, ok := b.validator.(SchemaDescriber); ok {
		return d.JSONSchema()
	}
	return nil
}

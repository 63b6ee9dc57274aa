// Package content builds marketing-copy prompts and runs them through a
// product.ContentGenerator.
package content

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/JakeFAU/product-copy/internal/metrics"
	"github.com/JakeFAU/product-copy/internal/product"
)

// SystemPrompt frames the model as a copywriter.
const SystemPrompt = "You are a professional content creator and copywriter."

// DefaultTimeout bounds one generation call.
const DefaultTimeout = 90 * time.Second

// Request describes the product and audience to write for.
type Request struct {
	ImageURL           string `json:"image_url,omitempty" validate:"omitempty,url"`
	ProductDescription string `json:"product_description" validate:"notblank"`
	Gender             string `json:"gender" validate:"notblank"`
	AgeGroup           string `json:"age_group" validate:"notblank"`
	Platform           string `json:"platform" validate:"notblank"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		return name
	})
	// "required" accepts whitespace; form fields arrive untrimmed.
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

// Validate checks that all required fields are present and that the image
// link, when given, is a URL.
func (r Request) Validate() error {
	err := validate.Struct(r)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate request: %w", err)
	}
	var missing, invalid []string
	for _, fe := range fieldErrs {
		if fe.Tag() == "notblank" {
			missing = append(missing, fe.Field())
		} else {
			invalid = append(invalid, fe.Field())
		}
	}
	var parts []string
	if len(missing) > 0 {
		parts = append(parts, "missing required fields: "+strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		parts = append(parts, "invalid fields: "+strings.Join(invalid, ", "))
	}
	return errors.New(strings.Join(parts, "; "))
}

// BuildPrompt renders the user prompt for r.
func BuildPrompt(r Request) string {
	var b strings.Builder
	b.WriteString("Create engaging content for a product with the following details:\n\n")
	fmt.Fprintf(&b, "Product Description: %s\n", r.ProductDescription)
	fmt.Fprintf(&b, "Target Audience: %s, Age Group: %s\n", r.Gender, r.AgeGroup)
	fmt.Fprintf(&b, "Platform: %s\n", r.Platform)
	if r.ImageURL != "" {
		fmt.Fprintf(&b, "Product Image: %s\n", r.ImageURL)
	}
	b.WriteString("\nPlease create content that:\n")
	fmt.Fprintf(&b, "1. Is optimized for %s\n", r.Platform)
	fmt.Fprintf(&b, "2. Appeals to %ss in the %s age group\n", r.Gender, r.AgeGroup)
	b.WriteString("3. Highlights key product features and benefits\n")
	b.WriteString("4. Uses appropriate tone and style for the platform\n")
	b.WriteString("5. Includes relevant hashtags if applicable\n")
	return b.String()
}

// Result is the outward shape of a generation attempt. Contents carries the
// same text as a list for clients that render several variants.
type Result struct {
	Status   product.Status `json:"status"`
	Content  string         `json:"content,omitempty"`
	Contents []string       `json:"contents,omitempty"`
	Message  string         `json:"message,omitempty"`
}

// Service generates copy for validated requests.
type Service struct {
	gen     product.ContentGenerator
	timeout time.Duration
	logger  *zap.Logger
}

// NewService wraps gen. A zero timeout selects DefaultTimeout.
func NewService(gen product.ContentGenerator, timeout time.Duration, logger *zap.Logger) *Service {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{gen: gen, timeout: timeout, logger: logger}
}

// Generate validates r, calls the generator and folds any failure into Result.
func (s *Service) Generate(ctx context.Context, r Request) Result {
	if err := r.Validate(); err != nil {
		metrics.ObserveGeneration("invalid")
		return Result{Status: product.StatusError, Message: err.Error()}
	}
	if s.gen == nil {
		metrics.ObserveGeneration("error")
		return Result{Status: product.StatusError, Message: "content generation is not configured"}
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	text, err := s.gen.Generate(ctx, BuildPrompt(r), SystemPrompt)
	if err != nil {
		metrics.ObserveGeneration("error")
		s.logger.Warn("content generation failed", zap.String("platform", r.Platform), zap.Error(err))
		return Result{Status: product.StatusError, Message: err.Error()}
	}
	metrics.ObserveGeneration("success")
	return Result{Status: product.StatusSuccess, Content: text, Contents: []string{text}}
}

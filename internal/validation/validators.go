package validation

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/benvon/taskboard/internal/models"
	"github.com/go-playground/validator/v10"
)

var (
	// Validate is a shared validator instance
	Validate *validator.Validate

	// ErrEmptyContent is returned when comment content is blank after trimming
	ErrEmptyContent = errors.New("content cannot be empty")
	// ErrEmptyTitle is returned when a task title is blank after trimming
	ErrEmptyTitle = errors.New("title cannot be empty")
)

func init() {
	Validate = validator.New()

	if err := Validate.RegisterValidation("task_status", validateTaskStatus); err != nil {
		panic(fmt.Sprintf("failed to register task_status validator: %v", err))
	}
	if err := Validate.RegisterValidation("task_priority", validateTaskPriority); err != nil {
		panic(fmt.Sprintf("failed to register task_priority validator: %v", err))
	}
	if err := Validate.RegisterValidation("party", validateParty); err != nil {
		panic(fmt.Sprintf("failed to register party validator: %v", err))
	}
}

func validateTaskStatus(fl validator.FieldLevel) bool {
	return models.TaskStatus(fl.Field().String()).Valid()
}

func validateTaskPriority(fl validator.FieldLevel) bool {
	return models.TaskPriority(fl.Field().String()).Valid()
}

func validateParty(fl validator.FieldLevel) bool {
	return models.Party(fl.Field().String()).Valid()
}

// SanitizeText trims whitespace and removes control characters except newline and tab
func SanitizeText(text string) string {
	text = strings.TrimSpace(text)

	var sanitized strings.Builder
	for _, r := range text {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		sanitized.WriteRune(r)
	}

	return sanitized.String()
}

// CommentContent applies the comment rule shared by the board and the bot endpoint:
// content is sanitized and must not be empty afterwards.
func CommentContent(content string) (string, error) {
	sanitized := SanitizeText(content)
	if sanitized == "" {
		return "", ErrEmptyContent
	}
	return sanitized, nil
}

// TaskTitle sanitizes a task title and rejects blank titles
func TaskTitle(title string) (string, error) {
	sanitized := SanitizeText(title)
	if sanitized == "" {
		return "", ErrEmptyTitle
	}
	return sanitized, nil
}

// ValidateTaskStatus validates a TaskStatus string value
func ValidateTaskStatus(value string) error {
	if err := Validate.Var(value, "required,task_status"); err != nil {
		return fmt.Errorf("invalid status: %s (must be 'todo', 'in-progress', 'review', or 'completed')", value)
	}
	return nil
}

// ValidateTaskPriority validates a TaskPriority string value
func ValidateTaskPriority(value string) error {
	if err := Validate.Var(value, "required,task_priority"); err != nil {
		return fmt.Errorf("invalid priority: %s (must be 'low', 'medium', or 'high')", value)
	}
	return nil
}

// ValidateParty validates a Party string value
func ValidateParty(value string) error {
	if err := Validate.Var(value, "required,party"); err != nil {
		return fmt.Errorf("invalid party: %s (must be 'human' or 'agent')", value)
	}
	return nil
}

// ValidateTaskPatch checks every enum field present in the patch and sanitizes title and description
func ValidateTaskPatch(p *models.TaskPatch) error {
	if p.Title != nil {
		title, err := TaskTitle(*p.Title)
		if err != nil {
			return err
		}
		p.Title = &title
	}
	if p.Description != nil {
		description := SanitizeText(*p.Description)
		p.Description = &description
	}
	if p.Status != nil {
		if err := ValidateTaskStatus(string(*p.Status)); err != nil {
			return err
		}
	}
	if p.Priority != nil {
		if err := ValidateTaskPriority(string(*p.Priority)); err != nil {
			return err
		}
	}
	if p.Assignee != nil {
		if err := ValidateParty(string(*p.Assignee)); err != nil {
			return err
		}
	}
	return nil
}

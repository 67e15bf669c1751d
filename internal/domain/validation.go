package domain

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/tiendc/go-deepcopy"
)

var quizValidator = newQuizValidator()

func newQuizValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("one_correct", validateOneCorrect); err != nil {
		panic(err)
	}
	return v
}

// validateOneCorrect requires exactly one option of a question to be flagged correct.
func validateOneCorrect(fl validator.FieldLevel) bool {
	field := fl.Field()
	if field.Kind() != reflect.Slice {
		return false
	}
	correct := 0
	for i := 0; i < field.Len(); i++ {
		if opt, ok := field.Index(i).Interface().(Option); ok && opt.IsCorrect {
			correct++
		}
	}
	return correct == 1
}

// Validate checks a quiz against the session-start rules: a title, at least one question,
// time limits within 5..120 seconds, 2 to 4 options and exactly one correct option each.
func Validate(q Quiz) error {
	err := quizValidator.Struct(q)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		if fe.Tag() == "one_correct" {
			return fmt.Errorf("%w: %s must have exactly one correct option", ErrInvalidQuiz, fe.Namespace())
		}
		return fmt.Errorf("%w: %s failed %q (%s)", ErrInvalidQuiz, fe.Namespace(), fe.Tag(), fe.Param())
	}
	return fmt.Errorf("%w: %v", ErrInvalidQuiz, err)
}

// Normalize returns a copy of q with missing ids generated, the default time limit applied
// and question order matching position.
func Normalize(q Quiz) (Quiz, error) {
	out, err := Snapshot(q)
	if err != nil {
		return Quiz{}, err
	}
	if out.ID == "" {
		out.ID = "quiz_" + uuid.NewString()
	}
	for i := range out.Questions {
		question := &out.Questions[i]
		if question.ID == "" {
			question.ID = "q_" + uuid.NewString()
		}
		if question.TimeLimit == 0 {
			question.TimeLimit = DefaultTimeLimit
		}
		question.Order = i
		for j := range question.Options {
			if question.Options[j].ID == "" {
				question.Options[j].ID = "opt_" + uuid.NewString()
			}
		}
	}
	return out, nil
}

// Snapshot deep-copies a quiz so that later edits to either side are not shared.
func Snapshot(q Quiz) (Quiz, error) {
	var out Quiz
	if err := deepcopy.Copy(&out, q); err != nil {
		return Quiz{}, fmt.Errorf("snapshot quiz %s: %w", q.ID, err)
	}
	return out, nil
}

// ValidateCollection validates every quiz and rejects duplicate ids.
func ValidateCollection(quizzes []Quiz) error {
	seen := make(map[string]struct{}, len(quizzes))
	for _, q := range quizzes {
		if err := Validate(q); err != nil {
			return fmt.Errorf("quiz %q: %w", q.ID, err)
		}
		if _, dup := seen[q.ID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateQuiz, q.ID)
		}
		seen[q.ID] = struct{}{}
	}
	return nil
}

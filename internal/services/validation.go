package services

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/JoelGresham/teamPoll/internal/domain/poll"
	poll_errors "github.com/JoelGresham/teamPoll/pkg/errors"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// normalizeSession trims input, checks it and converts it to storable question inputs.
func normalizeSession(spec poll.SessionSpec) (string, []poll.QuestionInput, error) {
	spec.Name = strings.TrimSpace(spec.Name)
	if spec.Questions != nil {
		questions := make([]poll.QuestionSpec, len(spec.Questions))
		for i, q := range spec.Questions {
			q.Text = strings.TrimSpace(q.Text)
			q.Type = strings.TrimSpace(q.Type)
			if q.Options != nil {
				options := make([]string, len(q.Options))
				for j, opt := range q.Options {
					options[j] = strings.TrimSpace(opt)
				}
				q.Options = options
			}
			questions[i] = q
		}
		spec.Questions = questions
	}

	if err := validate.Struct(spec); err != nil {
		return "", nil, validationError(err)
	}

	inputs := make([]poll.QuestionInput, 0, len(spec.Questions))
	for i, q := range spec.Questions {
		in, err := questionInput(q)
		if err != nil {
			return "", nil, fmt.Errorf("%w: question %d: %s", poll_errors.ErrValidation, i+1, err)
		}
		inputs = append(inputs, in)
	}
	return spec.Name, inputs, nil
}

func questionInput(q poll.QuestionSpec) (poll.QuestionInput, error) {
	qType, ok := poll.ParseQuestionType(q.Type)
	if !ok {
		return poll.QuestionInput{}, fmt.Errorf("unknown question type %q", q.Type)
	}

	in := poll.QuestionInput{Text: q.Text, Type: qType}
	switch qType {
	case poll.TypeMultipleChoice:
		if len(q.Options) < 2 {
			return poll.QuestionInput{}, errors.New("multiple_choice needs at least 2 options")
		}
		in.Options = append([]string(nil), q.Options...)
	case poll.TypeRating:
		if q.ScaleMin == nil || q.ScaleMax == nil {
			return poll.QuestionInput{}, errors.New("rating needs scale_min and scale_max")
		}
		if *q.ScaleMin >= *q.ScaleMax {
			return poll.QuestionInput{}, errors.New("scale_min must be less than scale_max")
		}
		lo, hi := *q.ScaleMin, *q.ScaleMax
		in.ScaleMin, in.ScaleMax = &lo, &hi
	}
	return in, nil
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("%w: %s", poll_errors.ErrValidation, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed on %s", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", poll_errors.ErrValidation, strings.Join(msgs, "; "))
}

// checkAnswer validates an answer against its question and returns the stored form.
func checkAnswer(q poll.Question, answer string) (string, error) {
	switch q.Type {
	case poll.TypeMultipleChoice:
		for _, opt := range q.Options {
			if answer == opt {
				return answer, nil
			}
		}
		return "", fmt.Errorf("%w: %q is not an option", poll_errors.ErrValidation, answer)
	case poll.TypeYesNo:
		for _, opt := range poll.YesNoOptions {
			if answer == opt {
				return answer, nil
			}
		}
		return "", fmt.Errorf("%w: answer must be Yes or No", poll_errors.ErrValidation)
	case poll.TypeRating:
		v, err := strconv.Atoi(strings.TrimSpace(answer))
		if err != nil {
			return "", fmt.Errorf("%w: rating must be an integer", poll_errors.ErrValidation)
		}
		if q.ScaleMin == nil || q.ScaleMax == nil || v < *q.ScaleMin || v > *q.ScaleMax {
			return "", fmt.Errorf("%w: rating out of range", poll_errors.ErrValidation)
		}
		return strconv.Itoa(v), nil
	case poll.TypeFreeText:
		trimmed := strings.TrimSpace(answer)
		if trimmed == "" {
			return "", fmt.Errorf("%w: answer must not be empty", poll_errors.ErrValidation)
		}
		return trimmed, nil
	}
	return "", fmt.Errorf("%w: unknown question type %q", poll_errors.ErrValidation, q.Type)
}

package seed

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strconv"

	"github.com/JoelGresham/teamPoll/internal/domain/poll"
	"github.com/JoelGresham/teamPoll/internal/services"
	"github.com/JoelGresham/teamPoll/pkg/logger"
)

// Config controls what Run writes.
type Config struct {
	PollName string
	// Participants simulated on the completed demo poll. Zero skips it.
	Participants int
	Rand         *rand.Rand
}

func DefaultConfig() *Config {
	return &Config{
		PollName:     "Team check-in",
		Participants: 8,
	}
}

type Result struct {
	Pending   poll.Session
	Completed *poll.Session
	Responses int
}

// DemoQuestions covers every question type.
func DemoQuestions() []poll.QuestionSpec {
	lo, hi := 1, 5
	return []poll.QuestionSpec{
		{Text: "Which area should we focus on next sprint?", Type: string(poll.TypeMultipleChoice), Options: []string{"Performance", "Reliability", "Features", "Tech debt"}},
		{Text: "Did the last release go smoothly?", Type: string(poll.TypeYesNo)},
		{Text: "How would you rate team communication?", Type: string(poll.TypeRating), ScaleMin: &lo, ScaleMax: &hi},
		{Text: "Anything else on your mind?", Type: string(poll.TypeFreeText)},
	}
}

// Run creates a pending demo poll and, when cfg.Participants > 0, a completed rerun
// of it answered by simulated participants.
func Run(ctx context.Context, svc *services.PollService, cfg *Config, l *logger.Logger) (*Result, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if l == nil {
		l = logger.NewNop()
	}
	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	spec := poll.SessionSpec{Name: cfg.PollName, Questions: DemoQuestions()}
	pending, _, err := svc.CreateSession(ctx, spec, "")
	if err != nil {
		return nil, fmt.Errorf("failed to seed demo poll: %w", err)
	}
	l.Infof("seeded pending poll %s", pending.ID)
	result := &Result{Pending: pending}
	if cfg.Participants <= 0 {
		return result, nil
	}

	completed, _, err := svc.RerunSession(ctx, pending.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to seed completed poll: %w", err)
	}
	if _, _, err := svc.StartSession(ctx, completed.ID, ""); err != nil {
		return nil, err
	}
	detail, err := svc.GetSessionDetail(ctx, completed.ID)
	if err != nil {
		return nil, err
	}
	for _, q := range detail.Questions {
		if _, _, err := svc.RevealQuestion(ctx, completed.ID, q.Index, ""); err != nil {
			return nil, err
		}
		for i := 0; i < cfg.Participants; i++ {
			participant := "seed-" + strconv.Itoa(i)
			_, _, err := svc.SubmitResponse(ctx, services.Submission{
				SessionID:    completed.ID,
				QuestionID:   q.ID,
				Answer:       randomAnswer(rng, q.Question),
				ConnectionID: participant,
				Origin:       participant,
			})
			if err != nil {
				return nil, fmt.Errorf("failed to seed response: %w", err)
			}
			result.Responses++
		}
	}
	ended, _, err := svc.EndSession(ctx, completed.ID, "")
	if err != nil {
		return nil, err
	}
	result.Completed = &ended
	l.Infof("seeded completed poll %s with %d responses", ended.ID, result.Responses)
	return result, nil
}

var freeTextAnswers = []string{
	"More pairing sessions please",
	"Standups are running long",
	"Happy with the pace",
	"Need clearer priorities",
}

func randomAnswer(rng *rand.Rand, q poll.Question) string {
	switch q.Type {
	case poll.TypeMultipleChoice:
		return q.Options[rng.IntN(len(q.Options))]
	case poll.TypeYesNo:
		return poll.YesNoOptions[rng.IntN(len(poll.YesNoOptions))]
	case poll.TypeRating:
		return strconv.Itoa(*q.ScaleMin + rng.IntN(*q.ScaleMax-*q.ScaleMin+1))
	default:
		return freeTextAnswers[rng.IntN(len(freeTextAnswers))]
	}
}

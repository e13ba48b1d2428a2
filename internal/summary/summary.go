// Package summary derives one-line mood and goal summaries from a user's records.
package summary

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/futureecho/futureecho/internal/goals"
)

const (
	moodWindow   = 20
	recentWindow = 5
	// trendMargin is how far the recent average must move from the overall one to count as a trend.
	trendMargin = 0.5
)

const (
	NoMoodData = "No mood data yet."
	NoGoals    = "No goals set yet."
)

// MoodSource returns up to limit mood scores, newest first.
type MoodSource interface {
	RecentMoods(ctx context.Context, ownerID uuid.UUID, limit int) ([]int, error)
}

type GoalSource interface {
	List(ctx context.Context, ownerID uuid.UUID) ([]goals.Goal, error)
}

type Service struct {
	moods MoodSource
	goals GoalSource
}

func NewService(moods MoodSource, goals GoalSource) *Service {
	return &Service{moods: moods, goals: goals}
}

// MoodTrend compares the last five moods against the last twenty.
func (s *Service) MoodTrend(ctx context.Context, ownerID uuid.UUID) (string, error) {
	moods, err := s.moods.RecentMoods(ctx, ownerID, moodWindow)
	if err != nil {
		return "", fmt.Errorf("loading moods: %w", err)
	}
	if len(moods) == 0 {
		return NoMoodData, nil
	}
	if len(moods) > moodWindow {
		moods = moods[:moodWindow]
	}

	overall := average(moods)
	recent := average(moods[:min(recentWindow, len(moods))])

	trend := "stable"
	switch {
	case recent > overall+trendMargin:
		trend = "improving"
	case recent < overall-trendMargin:
		trend = "declining"
	}

	return fmt.Sprintf("Overall average mood: %s/10. Recent trend: %s. Recent average: %s/10.",
		oneDecimal(overall), trend, oneDecimal(recent)), nil
}

// GoalsSummary counts goals by status and names the ones in progress.
func (s *Service) GoalsSummary(ctx context.Context, ownerID uuid.UUID) (string, error) {
	list, err := s.goals.List(ctx, ownerID)
	if err != nil {
		return "", fmt.Errorf("loading goals: %w", err)
	}
	if len(list) == 0 {
		return NoGoals, nil
	}

	var completed int
	var active []string
	for _, g := range list {
		switch g.Status {
		case goals.StatusCompleted:
			completed++
		case goals.StatusInProgress:
			active = append(active, g.Title)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Goals: %d total, %d completed, %d in progress.", len(list), completed, len(active))
	if len(active) > 0 {
		fmt.Fprintf(&b, " Active goals: %s.", strings.Join(active, ", "))
	}
	return b.String(), nil
}

func average(xs []int) float64 {
	var sum int
	for _, x := range xs {
		sum += x
	}
	return float64(sum) / float64(len(xs))
}

// oneDecimal rounds half away from zero, so 6.25 renders as 6.3.
func oneDecimal(x float64) string {
	return fmt.Sprintf("%.1f", math.Round(x*10)/10)
}

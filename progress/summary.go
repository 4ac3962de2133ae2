package progress

import (
	"sort"
	"time"
)

// weekdayLabels follow time.Weekday order, starting on Sunday
var weekdayLabels = [7]string{"Dom", "Seg", "Ter", "Qua", "Qui", "Sex", "Sáb"}

// DayMinutes is the practice time of one day of the current week
type DayMinutes struct {
	Day     string `json:"day"`
	Minutes int    `json:"minutes"`
}

// Summary is the progress overview shown to a user
type Summary struct {
	TotalDays          int          `json:"totalDays"`
	TotalMinutes       int          `json:"totalMinutes"`
	ExercisesCompleted int          `json:"exercisesCompleted"`
	CurrentStreak      int          `json:"currentStreak"`
	LongestStreak      int          `json:"longestStreak"`
	WeeklyProgress     []DayMinutes `json:"weeklyProgress"`
}

func utcDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Summarize computes the progress overview of completions as of now. Days are
// UTC calendar days. The current streak still counts when today has no
// completion yet but yesterday has.
func Summarize(completions []Completion, now time.Time) Summary {
	secondsByDay := make(map[time.Time]int)
	totalSeconds := 0
	for _, c := range completions {
		day := utcDay(c.CompletedAt)
		secondsByDay[day] += c.DurationCompleted
		totalSeconds += c.DurationCompleted
	}

	days := make([]time.Time, 0, len(secondsByDay))
	for day := range secondsByDay {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool {
		return days[i].Before(days[j])
	})

	longest, run := 0, 0
	for i, day := range days {
		if i > 0 && day.Sub(days[i-1]) == 24*time.Hour {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
	}

	today := utcDay(now)
	cursor := today
	if _, ok := secondsByDay[cursor]; !ok {
		cursor = cursor.AddDate(0, 0, -1)
	}
	current := 0
	for {
		if _, ok := secondsByDay[cursor]; !ok {
			break
		}
		current++
		cursor = cursor.AddDate(0, 0, -1)
	}

	weekStart := today.AddDate(0, 0, -int(today.Weekday()))
	weekly := make([]DayMinutes, 7)
	for i := range weekly {
		day := weekStart.AddDate(0, 0, i)
		weekly[i] = DayMinutes{
			Day:     weekdayLabels[day.Weekday()],
			Minutes: secondsByDay[day] / 60,
		}
	}

	return Summary{
		TotalDays:          len(days),
		TotalMinutes:       totalSeconds / 60,
		ExercisesCompleted: len(completions),
		CurrentStreak:      current,
		LongestStreak:      longest,
		WeeklyProgress:     weekly,
	}
}

package leaderboard

import (
	"fmt"
	"time"

	ws "github.com/zart/quizzer/pkg/http/ws"
)

// periodKey names the sorted set holding window's current period.
func periodKey(window string, at time.Time) string {
	switch window {
	case WindowWeekly:
		year, week := at.ISOWeek()
		return fmt.Sprintf("%s:%d-W%02d", window, year, week)
	case WindowMonthly:
		return fmt.Sprintf("%s:%s", window, at.Format("2006-01"))
	default:
		return window
	}
}

// Topic is the hub topic carrying updates for window.
func Topic(window string) string {
	return "leaderboard:" + window
}

func toWSEntries(entries []Entry) []ws.LeaderboardEntry {
	result := make([]ws.LeaderboardEntry, len(entries))
	for i, e := range entries {
		result[i] = ws.LeaderboardEntry{
			Rank:     i + 1,
			UserID:   e.UserID,
			Username: e.Username,
			Points:   e.Points,
		}
	}
	return result
}

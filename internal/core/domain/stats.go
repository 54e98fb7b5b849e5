package domain

type PeriodStats struct {
	UserID         int64       `json:"user_id"`
	StartDate      Date        `json:"start_date"`
	EndDate        Date        `json:"end_date"`
	TotalCompleted int         `json:"total_completed"`
	HabitStats     []HabitStat `json:"habits"`
	BestDay        *DayCount   `json:"best_day,omitempty"`
}

type HabitStat struct {
	HabitID       string `json:"habit_id"`
	HabitName     string `json:"habit_name"`
	Emoji         string `json:"emoji"`
	Completed     int    `json:"completed"`
	DueDays       int    `json:"due_days"`
	CurrentStreak int    `json:"current_streak"`
	BestStreak    int    `json:"best_streak"`
}

type DayCount struct {
	Date  Date `json:"date"`
	Count int  `json:"count"`
}

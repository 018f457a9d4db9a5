package model

import "time"

type Lecturer struct {
	ID                 int64    `json:"id"`
	FullName           string   `json:"full_name"`
	Faculty            Category `json:"faculty"`
	MaxSessionsPerWeek int      `json:"max_sessions_per_week"`
	SpecializationIDs  []int64  `json:"specialization_ids"` // subjects the lecturer may teach
}

type Location struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Capacity    int     `json:"capacity"`
	AffinityIDs []int64 `json:"affinity_ids"` // subjects the location may host
}

// Holiday is a date with no teaching at all.
type Holiday struct {
	ID   int64     `json:"id"`
	Date time.Time `json:"date"`
	Name string    `json:"name"`
}

package models

import "time"

// SchoolCounts holds headcounts of active records.
type SchoolCounts struct {
	Students  int `db:"students" json:"students"`
	Teachers  int `db:"teachers" json:"teachers"`
	Classes   int `db:"classes" json:"classes"`
	Guardians int `db:"guardians" json:"guardians"`
}

// AnalyticsAttendanceFilter scopes attendance analytics queries.
type AnalyticsAttendanceFilter struct {
	ClassID  string
	DateFrom *time.Time
	DateTo   *time.Time
}

// ClassAttendanceRate aggregates student attendance per class.
type ClassAttendanceRate struct {
	ClassID   string  `db:"class_id" json:"class_id"`
	ClassName string  `db:"class_name" json:"class_name"`
	Present   int     `db:"present" json:"present"`
	Late      int     `db:"late" json:"late"`
	Total     int     `db:"total" json:"total"`
	Rate      float64 `db:"-" json:"rate"`
}

// MonthlyCollection is the fee collection total of one calendar month.
type MonthlyCollection struct {
	Month    string  `db:"month" json:"month"`
	Payments int     `db:"payments" json:"payments"`
	Amount   float64 `db:"amount" json:"amount"`
}

// ExamPerformance summarises the results of one subject in an exam.
type ExamPerformance struct {
	SubjectID   string  `db:"subject_id" json:"subject_id"`
	SubjectName string  `db:"subject_name" json:"subject_name"`
	Entries     int     `db:"entries" json:"entries"`
	Passed      int     `db:"passed" json:"passed"`
	Average     float64 `db:"average" json:"average"`
	Highest     float64 `db:"highest" json:"highest"`
	Lowest      float64 `db:"lowest" json:"lowest"`
	PassRate    float64 `db:"-" json:"pass_rate"`
}

// SystemMetrics summarises runtime characteristics for administrators.
type SystemMetrics struct {
	CacheHitRatio            float64           `json:"cache_hit_ratio"`
	CacheHits                uint64            `json:"cache_hits"`
	CacheMisses              uint64            `json:"cache_misses"`
	RequestsTotal            uint64            `json:"requests_total"`
	AverageRequestDurationMs float64           `json:"average_request_duration_ms"`
	DBQueryCount             uint64            `json:"db_query_count"`
	AverageDBQueryDurationMs float64           `json:"average_db_query_duration_ms"`
	ExportsGenerated         uint64            `json:"exports_generated"`
	DomainEvents             map[string]uint64 `json:"domain_events"`
	FeesCollectedSinceStart  float64           `json:"fees_collected_since_start"`
	Goroutines               int               `json:"goroutines"`
	GeneratedAt              time.Time         `json:"generated_at"`
}

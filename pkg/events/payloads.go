package events

// ResultsPublished is emitted when an exam's results become visible.
type ResultsPublished struct {
	ExamID      string `json:"exam_id"`
	ExamName    string `json:"exam_name"`
	ClassID     string `json:"class_id"`
	PublishedBy string `json:"published_by"`
}

// NoticePublished is emitted when a notice is created.
type NoticePublished struct {
	NoticeID string `json:"notice_id"`
	Title    string `json:"title"`
	Audience string `json:"audience"`
	ClassID  string `json:"class_id,omitempty"`
}

// FeePaymentRecorded is emitted after a payment is committed.
type FeePaymentRecorded struct {
	FeeID     string  `json:"fee_id"`
	PaymentID string  `json:"payment_id"`
	StudentID string  `json:"student_id"`
	Amount    float64 `json:"amount"`
	Pending   float64 `json:"pending"`
	Method    string  `json:"method"`
}

// WaiverDecided is emitted when a waiver is approved or rejected.
type WaiverDecided struct {
	WaiverID    string  `json:"waiver_id"`
	FeeID       string  `json:"fee_id"`
	StudentID   string  `json:"student_id"`
	Status      string  `json:"status"`
	Amount      float64 `json:"amount"`
	RequestedBy string  `json:"requested_by,omitempty"`
}

// LessonPlanReviewed is emitted when an approver decides a lesson plan.
type LessonPlanReviewed struct {
	LessonPlanID string `json:"lesson_plan_id"`
	TeacherID    string `json:"teacher_id"`
	Title        string `json:"title"`
	Status       string `json:"status"`
}

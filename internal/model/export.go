package model

import "time"

// QuizRecord is a generated quiz as kept by the store.
type QuizRecord struct {
	ID        string        `json:"id"`
	TeacherID string        `json:"teacherId,omitempty"`
	Title     string        `json:"title"`
	Quiz      QuizGenResult `json:"quiz"`
	CreatedAt time.Time     `json:"createdAt"`
}

// GradingRecord is a grading result as kept by the store.
type GradingRecord struct {
	ID           string        `json:"id"`
	AssignmentID string        `json:"assignmentId,omitempty"`
	QuestionID   string        `json:"questionId,omitempty"`
	GradeLevel   GradeLevel    `json:"gradeLevel"`
	Subject      string        `json:"subject"`
	Result       GradingResult `json:"result"`
	CreatedAt    time.Time     `json:"createdAt"`
}

// QuizExport is the top-level JSON structure for exporting stored quizzes.
type QuizExport struct {
	ExportedAt time.Time       `json:"exportedAt"`
	NumQuizzes int             `json:"numQuizzes"`
	Quizzes    []QuizRecord    `json:"quizzes"`
	Gradings   []GradingRecord `json:"gradings,omitempty"`
}

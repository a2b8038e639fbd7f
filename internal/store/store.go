// Package store keeps generated quizzes and grading results in SQLite.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/k5assist/internal/model"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS quizzes (
		id TEXT PRIMARY KEY,
		teacher_id TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL,
		grade_level TEXT NOT NULL,
		subject TEXT NOT NULL,
		difficulty TEXT NOT NULL,
		num_questions INTEGER NOT NULL,
		quiz TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_quizzes_teacher ON quizzes(teacher_id);

	CREATE TABLE IF NOT EXISTS gradings (
		id TEXT PRIMARY KEY,
		assignment_id TEXT NOT NULL DEFAULT '',
		question_id TEXT NOT NULL DEFAULT '',
		grade_level TEXT NOT NULL,
		subject TEXT NOT NULL,
		score REAL NOT NULL,
		max_score REAL NOT NULL,
		result TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_gradings_assignment ON gradings(assignment_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveQuiz stores a generated quiz. An empty ID and zero CreatedAt are
// filled in on rec.
func (s *Store) SaveQuiz(rec *model.QuizRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	body, err := json.Marshal(rec.Quiz)
	if err != nil {
		return fmt.Errorf("marshal quiz: %w", err)
	}
	meta := rec.Quiz.Metadata
	_, err = s.db.Exec(
		`INSERT INTO quizzes (id, teacher_id, title, grade_level, subject, difficulty, num_questions, quiz, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.TeacherID, rec.Title, meta.GradeLevel, meta.Subject, meta.Difficulty,
		len(rec.Quiz.Questions), string(body), rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert quiz: %w", err)
	}
	return nil
}

// GetQuiz returns a quiz by ID, or nil if there is none.
func (s *Store) GetQuiz(id string) (*model.QuizRecord, error) {
	row := s.db.QueryRow(
		`SELECT id, teacher_id, title, quiz, created_at FROM quizzes WHERE id = ?`, id)
	rec, err := scanQuiz(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return rec, err
}

// ListQuizzes returns stored quizzes, newest first. A non-empty teacherID
// limits the list to that teacher.
func (s *Store) ListQuizzes(teacherID string) ([]model.QuizRecord, error) {
	query := `SELECT id, teacher_id, title, quiz, created_at FROM quizzes`
	var args []any
	if teacherID != "" {
		query += ` WHERE teacher_id = ?`
		args = append(args, teacherID)
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var quizzes []model.QuizRecord
	for rows.Next() {
		rec, err := scanQuiz(rows)
		if err != nil {
			return nil, err
		}
		quizzes = append(quizzes, *rec)
	}
	return quizzes, rows.Err()
}

// QuizCount returns the number of stored quizzes.
func (s *Store) QuizCount() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM quizzes`).Scan(&n)
	return n, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanQuiz(sc scanner) (*model.QuizRecord, error) {
	var (
		rec  model.QuizRecord
		body string
	)
	if err := sc.Scan(&rec.ID, &rec.TeacherID, &rec.Title, &body, &rec.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(body), &rec.Quiz); err != nil {
		return nil, fmt.Errorf("decode quiz %s: %w", rec.ID, err)
	}
	return &rec, nil
}

// SaveGrading stores a grading result. An empty ID and zero CreatedAt are
// filled in on rec.
func (s *Store) SaveGrading(rec *model.GradingRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	body, err := json.Marshal(rec.Result)
	if err != nil {
		return fmt.Errorf("marshal grading result: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO gradings (id, assignment_id, question_id, grade_level, subject, score, max_score, result, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.AssignmentID, rec.QuestionID, rec.GradeLevel, rec.Subject,
		rec.Result.Score, rec.Result.MaxScore, string(body), rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert grading: %w", err)
	}
	return nil
}

// ListGradings returns stored grading results, oldest first. A non-empty
// assignmentID limits the list to that assignment.
func (s *Store) ListGradings(assignmentID string) ([]model.GradingRecord, error) {
	query := `SELECT id, assignment_id, question_id, grade_level, subject, result, created_at FROM gradings`
	var args []any
	if assignmentID != "" {
		query += ` WHERE assignment_id = ?`
		args = append(args, assignmentID)
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var gradings []model.GradingRecord
	for rows.Next() {
		var (
			rec  model.GradingRecord
			body string
		)
		if err := rows.Scan(&rec.ID, &rec.AssignmentID, &rec.QuestionID, &rec.GradeLevel, &rec.Subject, &body, &rec.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(body), &rec.Result); err != nil {
			return nil, fmt.Errorf("decode grading %s: %w", rec.ID, err)
		}
		gradings = append(gradings, rec)
	}
	return gradings, rows.Err()
}

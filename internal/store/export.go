package store

import (
	"fmt"
	"time"

	"github.com/pavelanni/k5assist/internal/model"
)

// ExportAll builds an export of every stored quiz. Grading results are
// included when withGradings is set.
func (s *Store) ExportAll(withGradings bool) (*model.QuizExport, error) {
	quizzes, err := s.ListQuizzes("")
	if err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	if quizzes == nil {
		quizzes = []model.QuizRecord{}
	}

	export := &model.QuizExport{
		ExportedAt: time.Now().UTC(),
		NumQuizzes: len(quizzes),
		Quizzes:    quizzes,
	}
	if withGradings {
		gradings, err := s.ListGradings("")
		if err != nil {
			return nil, fmt.Errorf("list gradings: %w", err)
		}
		export.Gradings = gradings
	}
	return export, nil
}

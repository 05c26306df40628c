package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/somosuni/lms-backend/internal/model"
	"github.com/somosuni/lms-backend/internal/repository"
	"github.com/somosuni/lms-backend/internal/response"
)

// ErrStudentNotFound is returned when no student matches.
var ErrStudentNotFound = errors.New("student not found")

// StudentService handles student business logic.
type StudentService struct {
	studentRepo *repository.StudentRepository
	auth        *AuthService
}

// NewStudentService creates a new StudentService.
func NewStudentService(studentRepo *repository.StudentRepository, auth *AuthService) *StudentService {
	return &StudentService{studentRepo: studentRepo, auth: auth}
}

// Login checks the credentials and claims the single-device session.
func (s *StudentService) Login(ctx context.Context, studentNumber, password string) (*model.StudentLoginResponse, error) {
	student, err := s.studentRepo.GetByStudentNumber(ctx, studentNumber)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get student: %w", err)
	}
	if err := s.auth.CheckPassword(student.PasswordHash, password); err != nil {
		return nil, err
	}

	token, err := s.auth.GenerateStudentToken(ctx, student.ID)
	if err != nil {
		return nil, err
	}
	return &model.StudentLoginResponse{Token: token, Student: *student}, nil
}

// GetByID retrieves a student by ID.
func (s *StudentService) GetByID(ctx context.Context, id int) (*model.Student, error) {
	student, err := s.studentRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStudentNotFound
		}
		return nil, fmt.Errorf("get student: %w", err)
	}
	return student, nil
}

// ListStudents retrieves students with pagination.
func (s *StudentService) ListStudents(ctx context.Context, page, perPage int) ([]model.Student, *response.Pagination, error) {
	if perPage > 100 {
		perPage = 100
	}
	p := response.NewPagination(page, perPage, 0)

	students, total, err := s.studentRepo.ListPaginated(ctx, p.PerPage, (p.Page-1)*p.PerPage)
	if err != nil {
		return nil, nil, fmt.Errorf("list students: %w", err)
	}
	return students, response.NewPagination(p.Page, p.PerPage, total), nil
}

// Create inserts a new student, hashing the plaintext password held in PasswordHash.
func (s *StudentService) Create(ctx context.Context, student *model.Student) error {
	hash, err := s.auth.HashPassword(student.PasswordHash)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	student.PasswordHash = hash
	return s.studentRepo.Create(ctx, student)
}

// NamesByID maps student ids to display names.
func (s *StudentService) NamesByID(ctx context.Context, ids []int) (map[int]string, error) {
	return s.studentRepo.NamesByID(ctx, ids)
}

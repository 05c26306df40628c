package main

import (
	"errors"
	"fmt"

	"github.com/somosuni/lms-backend/internal/model"
	"github.com/somosuni/lms-backend/internal/repository"
	"github.com/somosuni/lms-backend/internal/service"
	"github.com/spf13/cobra"
)

// demoCourse is the outline created by seed-catalog: module title to test titles.
var demoCourse = struct {
	Title       string
	Description string
	Modules     []demoModule
}{
	Title:       "Introduction to Algebra",
	Description: "Demo course created by lmsctl seed-catalog.",
	Modules: []demoModule{
		{"Numbers and Operations", []string{"Integers quiz", "Fractions quiz"}},
		{"Expressions", []string{"Simplifying expressions", "Evaluating expressions", "Module checkpoint"}},
		{"Linear Equations", []string{"One-step equations", "Two-step equations"}},
		{"Review", nil},
	},
}

type demoModule struct {
	Title string
	Tests []string
}

var seedCatalogCmd = &cobra.Command{
	Use:   "seed-catalog",
	Short: "Create a demo course with modules and tests",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		e, err := connect(ctx, true)
		if err != nil {
			return err
		}
		defer e.Close()

		cache := repository.NewProgressCacheRepository(e.rdb, e.cfg.ProgressCacheTTL)
		catalog := service.NewCatalogService(repository.NewCourseRepository(e.pool), cache, e.log)

		course, err := catalog.CreateCourse(ctx, model.CreateCourseRequest{
			Title:       demoCourse.Title,
			Description: demoCourse.Description,
		})
		if err != nil {
			return fmt.Errorf("create course: %w", err)
		}
		cmd.Printf("Created course %d %q\n", course.ID, course.Title)

		tests := 0
		for _, dm := range demoCourse.Modules {
			module, err := catalog.CreateModule(ctx, course.ID, model.CreateModuleRequest{Title: dm.Title})
			if err != nil {
				return fmt.Errorf("create module %q: %w", dm.Title, err)
			}
			for _, title := range dm.Tests {
				if _, err := catalog.CreateTest(ctx, module.ID, model.CreateTestRequest{Title: title}); err != nil {
					return fmt.Errorf("create test %q: %w", title, err)
				}
				tests++
			}
		}

		cmd.Printf("Seed completed: %d modules, %d tests\n", len(demoCourse.Modules), tests)
		return nil
	},
}

var (
	seedStudentCount    int
	seedStudentPassword string
)

var seedStudentsCmd = &cobra.Command{
	Use:   "seed-students",
	Short: "Create numbered demo students",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if seedStudentCount < 1 {
			return errors.New("--count must be at least 1")
		}
		ctx := cmd.Context()
		e, err := connect(ctx, false)
		if err != nil {
			return err
		}
		defer e.Close()

		authService := service.NewAuthService(e.cfg, nil)
		studentService := service.NewStudentService(repository.NewStudentRepository(e.pool), authService)

		cmd.Printf("=== Seeding %d Students ===\n", seedStudentCount)

		created := 0
		for i := 1; i <= seedStudentCount; i++ {
			student := &model.Student{
				StudentNumber: fmt.Sprintf("S%05d", i),
				Name:          fmt.Sprintf("Demo Student %d", i),
				PasswordHash:  seedStudentPassword,
			}
			if err := studentService.Create(ctx, student); err != nil {
				if errors.Is(err, repository.ErrDuplicateStudentNumber) {
					continue
				}
				cmd.PrintErrf("Error creating student %s: %v\n", student.StudentNumber, err)
				continue
			}
			created++
			if created%10 == 0 {
				cmd.Printf("Created %d students...\n", created)
			}
		}

		cmd.Printf("\nSeed completed! Successfully added %d/%d students.\n", created, seedStudentCount)
		return nil
	},
}

func init() {
	seedStudentsCmd.Flags().IntVar(&seedStudentCount, "count", 20, "Number of students to create")
	seedStudentsCmd.Flags().StringVar(&seedStudentPassword, "password", "student123", "Password for every seeded student")
}

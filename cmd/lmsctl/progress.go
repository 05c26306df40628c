package main

import (
	"encoding/json"
	"errors"

	"github.com/somosuni/lms-backend/internal/repository"
	"github.com/somosuni/lms-backend/internal/service"
	"github.com/spf13/cobra"
)

var (
	progressStudentID int
	progressCourseID  int
	progressReport    bool
)

var progressCmd = &cobra.Command{
	Use:   "progress",
	Short: "Print course progress as JSON, computed straight from Postgres",
	Example: "  lmsctl progress --student 12 --course 3\n" +
		"  lmsctl progress --course 3 --report",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if progressCourseID < 1 {
			return errors.New("--course is required")
		}
		if !progressReport && progressStudentID < 1 {
			return errors.New("--student is required unless --report is set")
		}

		ctx := cmd.Context()
		e, err := connect(ctx, false)
		if err != nil {
			return err
		}
		defer e.Close()

		// A zero TTL never touches Redis, so the output always reflects the database.
		noCache := repository.NewProgressCacheRepository(nil, 0)
		studentRepo := repository.NewStudentRepository(e.pool)
		settings := service.NewSettingService(repository.NewSettingRepository(e.pool), noCache, e.cfg.PassThreshold, e.log)
		progress := service.NewProgressService(
			repository.NewCourseRepository(e.pool),
			repository.NewTestResultRepository(e.pool),
			noCache,
			settings,
			studentRepo,
			e.log,
		)

		var out interface{}
		if progressReport {
			out, err = progress.CourseReport(ctx, progressCourseID)
		} else {
			out, err = progress.CourseProgress(ctx, progressStudentID, progressCourseID)
		}
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	progressCmd.Flags().IntVar(&progressStudentID, "student", 0, "Student ID")
	progressCmd.Flags().IntVar(&progressCourseID, "course", 0, "Course ID")
	progressCmd.Flags().BoolVar(&progressReport, "report", false, "Print every student's progress in the course")
}

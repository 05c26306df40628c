package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// StudentSessionKey returns the cache key for a student's login session
func (r *CacheKeyStruct) StudentSessionKey(studentID int) string {
	return fmt.Sprintf("login:%d", studentID)
}

// CourseProgressKey returns the cache key for a student's progress in a course
func (r *CacheKeyStruct) CourseProgressKey(studentID, courseID int) string {
	return fmt.Sprintf("student:%d:course:%d:progress", studentID, courseID)
}

// ModuleProgressKey returns the cache key for a student's progress in a module
func (r *CacheKeyStruct) ModuleProgressKey(studentID, moduleID int) string {
	return fmt.Sprintf("student:%d:module:%d:progress", studentID, moduleID)
}

// ProgressOverviewKey returns the cache key for a student's progress across all courses
func (r *CacheKeyStruct) ProgressOverviewKey(studentID int) string {
	return fmt.Sprintf("student:%d:progress_overview", studentID)
}

// ProgressIndexKey returns the set holding every progress key cached for a student
func (r *CacheKeyStruct) ProgressIndexKey(studentID int) string {
	return fmt.Sprintf("student:%d:progress_keys", studentID)
}

// ProgressIndexPattern matches every student's progress index set
func (r *CacheKeyStruct) ProgressIndexPattern() string {
	return "student:*:progress_keys"
}

// ProgressGenerationKey returns the counter bumped whenever a student's progress changes
func (r *CacheKeyStruct) ProgressGenerationKey(studentID int) string {
	return fmt.Sprintf("student:%d:progress_gen", studentID)
}

// GlobalProgressGenerationKey returns the counter bumped whenever every student's progress changes
func (r *CacheKeyStruct) GlobalProgressGenerationKey() string {
	return "progress:gen"
}

// StudentProgressChannel returns the Redis PubSub channel for a student's progress events
func (r *CacheKeyStruct) StudentProgressChannel(studentID int) string {
	return fmt.Sprintf("student:%d:progress", studentID)
}

var CacheKey = NewCacheKeyStruct()

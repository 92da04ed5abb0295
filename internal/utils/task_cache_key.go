package utils

import (
	"strconv"
	"time"

	"github.com/geocoder89/taskhub/internal/domain/task"
)

func BuildTaskListCacheKey(ownerID string, generation int64, f task.ListTasksFilter) string {
	completed := ""
	if f.Completed != nil {
		completed = strconv.FormatBool(*f.Completed)
	}

	before := ""
	if !f.BeforeCreatedAt.IsZero() {
		before = f.BeforeCreatedAt.UTC().Format(time.RFC3339Nano) + "/" + f.BeforeID
	}

	return "tasks:list:v1:owner=" + ownerID +
		":gen=" + strconv.FormatInt(generation, 10) +
		":limit=" + strconv.Itoa(f.Limit) +
		":completed=" + completed +
		":before=" + before
}

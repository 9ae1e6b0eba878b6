package session

import "strings"

// Key names match the records the browser front end kept in local storage.
const (
	keySelectedFiles     = "selectedFiles"
	keyProcessingOptions = "processingOptions"
	keyCurrentJobID      = "currentJobId"
	jobKeyPrefix         = "jobData_"
)

func jobKey(id string) string { return jobKeyPrefix + id }

// clearedKeys are removed by Clear; job records survive.
var clearedKeys = []string{keySelectedFiles, keyProcessingOptions, keyCurrentJobID}

func isJobKey(key string) bool { return strings.HasPrefix(key, jobKeyPrefix) }

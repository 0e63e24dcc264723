package domain

import "strings"

// Backlink labels written into the other system's description.
const (
	IssueBacklinkLabel = "🔗 GitLab Issue: "
	TaskBacklinkLabel  = "🔗 Lark Task: "
)

// AppendIssueBacklink appends a reference to the tracker issue to a task
// description. Applying it twice leaves the description unchanged.
func AppendIssueBacklink(description, issueURL string) string {
	return appendBacklink(description, IssueBacklinkLabel, issueURL)
}

// AppendTaskBacklink appends a reference to the task to an issue description.
func AppendTaskBacklink(description, taskURL string) string {
	return appendBacklink(description, TaskBacklinkLabel, taskURL)
}

func appendBacklink(description, label, url string) string {
	if url == "" {
		return description
	}

	line := label + url
	if hasLine(description, line) {
		return description
	}
	if strings.TrimSpace(description) == "" {
		return line
	}

	return description + "\n\n" + line
}

// hasLine reports whether line appears on a line of its own in text.
func hasLine(text, line string) bool {
	for _, l := range strings.Split(text, "\n") {
		if strings.TrimSpace(l) == line {
			return true
		}
	}
	return false
}

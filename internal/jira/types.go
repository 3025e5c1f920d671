package jira

// Normalized, client-facing shapes. The raw Jira payloads (see wire.go)
// are flattened into these before anything leaves the backend.

// CreatedIssue is the minimal result of a successful creation.
type CreatedIssue struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Self string `json:"self"`
}

// Ticket is a flattened Jira issue. Optional nested fields are replaced by
// fixed fallback literals during normalization.
type Ticket struct {
	Key         string       `json:"key"`
	ID          string       `json:"id"`
	Summary     string       `json:"summary"`
	Description string       `json:"description"`
	Status      string       `json:"status"`
	Priority    string       `json:"priority"`
	IssueType   string       `json:"issueType"`
	Assignee    string       `json:"assignee"`
	Reporter    string       `json:"reporter"`
	Created     string       `json:"created"`
	Updated     string       `json:"updated"`
	URL         string       `json:"url,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
	Comments    []Comment    `json:"comments,omitempty"`
	Votes       int          `json:"votes"`
	HasVoted    bool         `json:"hasVoted"`
}

// Attachment is immutable once uploaded; Thumbnail is set only for image
// MIME types.
type Attachment struct {
	ID        string `json:"id"`
	Filename  string `json:"filename"`
	Size      int64  `json:"size"`
	MimeType  string `json:"mimeType"`
	Created   string `json:"created"`
	Author    string `json:"author"`
	Content   string `json:"content"`
	Thumbnail string `json:"thumbnail,omitempty"`
}

type Comment struct {
	ID          string `json:"id"`
	Author      string `json:"author"`
	AuthorEmail string `json:"authorEmail,omitempty"`
	Body        string `json:"body"`
	Created     string `json:"created"`
	Updated     string `json:"updated"`
}

type Votes struct {
	Votes    int  `json:"votes"`
	HasVoted bool `json:"hasVoted"`
}

// SearchResult is one offset-paginated window of a JQL search.
type SearchResult struct {
	StartAt    int      `json:"startAt"`
	MaxResults int      `json:"maxResults"`
	Total      int      `json:"total"`
	Issues     []Ticket `json:"issues"`
}

// CreateOptions carries the optional creation parameters. Zero values fall
// back to the client's configured defaults.
type CreateOptions struct {
	ProjectKey        string
	IssueType         string
	AssigneeAccountID string
	// ExtraFields are merged into the request's fields object. Built-in
	// fields (project, summary, description, issuetype, priority) win on
	// key conflict.
	ExtraFields map[string]any
}

// ListOptions selects a search window. JQL, when set, takes precedence
// over ProjectKey.
type ListOptions struct {
	ProjectKey string
	JQL        string
	MaxResults int
	StartAt    int
}

package jira

// Raw Jira REST v3 response shapes, decoded then normalized. Only the
// fields this backend consumes are declared.

type issueResponse struct {
	ID     string      `json:"id"`
	Key    string      `json:"key"`
	Self   string      `json:"self"`
	Fields issueFields `json:"fields"`
}

type issueFields struct {
	Summary     string          `json:"summary"`
	Description *Doc            `json:"description"`
	Status      *namedField     `json:"status"`
	Priority    *namedField     `json:"priority"`
	IssueType   *namedField     `json:"issuetype"`
	Assignee    *userField      `json:"assignee"`
	Reporter    *userField      `json:"reporter"`
	Created     string          `json:"created"`
	Updated     string          `json:"updated"`
	Attachment  []wireAttach    `json:"attachment"`
	Comment     *wireCommentBox `json:"comment"`
	Votes       *wireVotes      `json:"votes"`
}

type namedField struct {
	Name string `json:"name"`
}

type userField struct {
	AccountID    string `json:"accountId"`
	DisplayName  string `json:"displayName"`
	EmailAddress string `json:"emailAddress"`
}

type wireAttach struct {
	ID        string     `json:"id"`
	Filename  string     `json:"filename"`
	Size      int64      `json:"size"`
	MimeType  string     `json:"mimeType"`
	Created   string     `json:"created"`
	Author    *userField `json:"author"`
	Content   string     `json:"content"`
	Thumbnail string     `json:"thumbnail"`
}

type wireCommentBox struct {
	Comments []wireComment `json:"comments"`
}

type wireComment struct {
	ID      string     `json:"id"`
	Author  *userField `json:"author"`
	Body    *Doc       `json:"body"`
	Created string     `json:"created"`
	Updated string     `json:"updated"`
}

type wireVotes struct {
	Votes    int  `json:"votes"`
	HasVoted bool `json:"hasVoted"`
}

type searchResponse struct {
	StartAt    int             `json:"startAt"`
	MaxResults int             `json:"maxResults"`
	Total      int             `json:"total"`
	Issues     []issueResponse `json:"issues"`
}

package jira

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/devyljin/jintranet-back/internal/config"
	"github.com/devyljin/jintranet-back/internal/repository"
)

const apiBase = "/rest/api/3"

// Client is the sole authority for talking to the Jira instance. It holds
// fixed connection parameters (base URL, service-account credentials,
// default project/issue type) and the cross repository used to audit who
// created which issue. Each call is a single synchronous request, or a
// short fixed sequence of them; there is no retry and no session state.
type Client struct {
	cfg        config.JiraConfig
	httpClient *http.Client
	crosses    repository.CrossRepository
	log        zerolog.Logger
}

func NewClient(cfg config.JiraConfig, crosses repository.CrossRepository, log zerolog.Logger) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		crosses:    crosses,
		log:        log.With().Str("component", "jira").Logger(),
	}
}

// Upload is a validated file ready to be attached to an issue.
type Upload struct {
	Filename    string
	Size        int64
	ContentType string
	Reader      io.Reader
}

// CreateIssue creates an issue and, on success, writes exactly one cross
// record binding userID to the returned key. The caller is responsible for
// validating summary/description lengths before calling.
//
// Field precedence: caller extras are applied first and the built-in
// fields (project, summary, description, issuetype, priority) are written
// over them, so an extra field of the same name never overrides a
// built-in.
func (c *Client) CreateIssue(ctx context.Context, userID, summary, description string, opts CreateOptions) (*CreatedIssue, error) {
	projectKey := opts.ProjectKey
	if projectKey == "" {
		projectKey = c.cfg.ProjectKey
	}
	issueType := opts.IssueType
	if issueType == "" {
		issueType = c.cfg.IssueType
	}

	fields := make(map[string]any, len(opts.ExtraFields)+6)
	for k, v := range opts.ExtraFields {
		fields[k] = v
	}
	fields["project"] = map[string]string{"key": projectKey}
	fields["summary"] = summary
	fields["description"] = TextDoc(description)
	fields["issuetype"] = map[string]string{"name": issueType}
	fields["priority"] = map[string]string{"name": "Medium"}
	if opts.AssigneeAccountID != "" {
		fields["assignee"] = map[string]string{"accountId": opts.AssigneeAccountID}
	}

	c.log.Info().Str("project", projectKey).Str("summary", summary).Str("issueType", issueType).Msg("creating jira issue")

	var created CreatedIssue
	err := c.doJSON(ctx, "create issue", http.MethodPost, "/issue", nil,
		map[string]any{"fields": fields}, http.StatusCreated, &created)
	if err != nil {
		c.log.Error().Err(err).Str("project", projectKey).Str("summary", summary).Msg("issue creation failed")
		return nil, err
	}

	c.log.Info().Str("key", created.Key).Str("id", created.ID).Msg("jira issue created")

	if _, err := c.crosses.Create(ctx, userID, created.Key); err != nil {
		c.log.Error().Err(err).Str("key", created.Key).Msg("cross record write failed")
		return nil, fmt.Errorf("issue %s created but audit record not written: %w", created.Key, err)
	}
	return &created, nil
}

// AddAttachment uploads one file to an existing issue. Jira answers with a
// list of attachment descriptors (normally one element). A failure here
// never unwinds the issue the file was meant for.
func (c *Client) AddAttachment(ctx context.Context, issueKey string, file Upload) ([]Attachment, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", file.Filename)
	if err != nil {
		return nil, &AttachmentError{IssueKey: issueKey, Filename: file.Filename, Err: err}
	}
	if _, err := io.Copy(part, file.Reader); err != nil {
		return nil, &AttachmentError{IssueKey: issueKey, Filename: file.Filename, Err: err}
	}
	if err := mw.Close(); err != nil {
		return nil, &AttachmentError{IssueKey: issueKey, Filename: file.Filename, Err: err}
	}

	u := c.cfg.BaseURL + apiBase + "/issue/" + url.PathEscape(issueKey) + "/attachments"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, &buf)
	if err != nil {
		return nil, &AttachmentError{IssueKey: issueKey, Filename: file.Filename, Err: err}
	}
	req.SetBasicAuth(c.cfg.Email, c.cfg.APIToken)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", mw.FormDataContentType())
	// Jira refuses uploads without this CSRF bypass header.
	req.Header.Set("X-Atlassian-Token", "no-check")

	c.log.Info().Str("key", issueKey).Str("filename", file.Filename).Int64("size", file.Size).Msg("uploading attachment")

	res, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Error().Err(err).Str("key", issueKey).Str("filename", file.Filename).Msg("attachment upload failed")
		return nil, &AttachmentError{IssueKey: issueKey, Filename: file.Filename, Err: err}
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, &AttachmentError{IssueKey: issueKey, Filename: file.Filename, Err: err}
	}
	if res.StatusCode != http.StatusOK {
		reqErr := &RequestError{Op: "add attachment", StatusCode: res.StatusCode, Body: string(data)}
		c.log.Error().Err(reqErr).Str("key", issueKey).Str("filename", file.Filename).Msg("attachment upload rejected")
		return nil, &AttachmentError{IssueKey: issueKey, Filename: file.Filename, Err: reqErr}
	}

	var raw []wireAttach
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &AttachmentError{IssueKey: issueKey, Filename: file.Filename, Err: err}
	}
	out := make([]Attachment, 0, len(raw))
	for _, a := range raw {
		out = append(out, normalizeAttachment(a))
	}
	return out, nil
}

// CreateIssueWithAttachment composes CreateIssue and AddAttachment. The
// two steps are not transactional: when the upload fails the issue stays
// created and the attachment error is returned alongside it, so the caller
// can report partial success.
func (c *Client) CreateIssueWithAttachment(ctx context.Context, userID, summary, description string, file Upload, opts CreateOptions) (*CreatedIssue, []Attachment, error) {
	created, err := c.CreateIssue(ctx, userID, summary, description, opts)
	if err != nil {
		return nil, nil, err
	}
	attachments, err := c.AddAttachment(ctx, created.Key, file)
	if err != nil {
		return created, nil, err
	}
	return created, attachments, nil
}

// GetIssue fetches one issue and flattens it. Unknown keys map to
// ErrNotFound.
func (c *Client) GetIssue(ctx context.Context, issueKey string) (*Ticket, error) {
	var raw issueResponse
	err := c.doJSON(ctx, "get issue", http.MethodGet, "/issue/"+url.PathEscape(issueKey), nil, nil, http.StatusOK, &raw)
	if err != nil {
		c.log.Error().Err(err).Str("key", issueKey).Msg("issue fetch failed")
		return nil, err
	}
	t := c.normalizeIssue(raw)
	return &t, nil
}

// ListIssues runs one offset-paginated search window. An explicit JQL
// query wins over project filtering; the default lists the configured
// project newest-first.
func (c *Client) ListIssues(ctx context.Context, opts ListOptions) (*SearchResult, error) {
	jql := opts.JQL
	if jql == "" {
		projectKey := opts.ProjectKey
		if projectKey == "" {
			projectKey = c.cfg.ProjectKey
		}
		jql = fmt.Sprintf("project = %s ORDER BY created DESC", projectKey)
	}
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = 50
	}
	startAt := opts.StartAt
	if startAt < 0 {
		startAt = 0
	}

	q := url.Values{}
	q.Set("jql", jql)
	q.Set("maxResults", strconv.Itoa(maxResults))
	q.Set("startAt", strconv.Itoa(startAt))
	q.Set("fields", "*navigable")

	var raw searchResponse
	if err := c.doJSON(ctx, "search", http.MethodGet, "/search", q, nil, http.StatusOK, &raw); err != nil {
		c.log.Error().Err(err).Str("jql", jql).Msg("issue search failed")
		return nil, err
	}

	res := &SearchResult{
		StartAt:    raw.StartAt,
		MaxResults: raw.MaxResults,
		Total:      raw.Total,
		Issues:     make([]Ticket, 0, len(raw.Issues)),
	}
	for _, ir := range raw.Issues {
		res.Issues = append(res.Issues, c.normalizeIssue(ir))
	}
	return res, nil
}

// AddComment appends a plain-text comment to an issue. Comments can only
// be listed and appended through this client, never edited or removed.
func (c *Client) AddComment(ctx context.Context, issueKey, body string) (*Comment, error) {
	var raw wireComment
	err := c.doJSON(ctx, "add comment", http.MethodPost, "/issue/"+url.PathEscape(issueKey)+"/comment", nil,
		map[string]any{"body": TextDoc(body)}, http.StatusCreated, &raw)
	if err != nil {
		c.log.Error().Err(err).Str("key", issueKey).Msg("comment creation failed")
		return nil, err
	}
	comment := normalizeComment(raw)
	return &comment, nil
}

func (c *Client) AddVote(ctx context.Context, issueKey string) error {
	return c.doJSON(ctx, "add vote", http.MethodPost, "/issue/"+url.PathEscape(issueKey)+"/votes", nil, nil, http.StatusNoContent, nil)
}

func (c *Client) RemoveVote(ctx context.Context, issueKey string) error {
	return c.doJSON(ctx, "remove vote", http.MethodDelete, "/issue/"+url.PathEscape(issueKey)+"/votes", nil, nil, http.StatusNoContent, nil)
}

func (c *Client) GetVotes(ctx context.Context, issueKey string) (*Votes, error) {
	var raw wireVotes
	if err := c.doJSON(ctx, "get votes", http.MethodGet, "/issue/"+url.PathEscape(issueKey)+"/votes", nil, nil, http.StatusOK, &raw); err != nil {
		return nil, err
	}
	return &Votes{Votes: raw.Votes, HasVoted: raw.HasVoted}, nil
}

// TestConnection probes /myself with the configured credentials. Any
// failure collapses to false; health checks never need the error detail.
func (c *Client) TestConnection(ctx context.Context) bool {
	err := c.doJSON(ctx, "test connection", http.MethodGet, "/myself", nil, nil, http.StatusOK, nil)
	if err != nil {
		c.log.Warn().Err(err).Msg("jira connection test failed")
		return false
	}
	return true
}

// GetCreateMeta returns the field-requirement schema for a project as-is;
// the shape is tracker-defined and consumed raw by the frontend.
func (c *Client) GetCreateMeta(ctx context.Context, projectKey string) (json.RawMessage, error) {
	q := url.Values{}
	q.Set("projectKeys", projectKey)
	q.Set("expand", "projects.issuetypes.fields")

	var raw json.RawMessage
	if err := c.doJSON(ctx, "create meta", http.MethodGet, "/issue/createmeta", q, nil, http.StatusOK, &raw); err != nil {
		c.log.Error().Err(err).Str("project", projectKey).Msg("createmeta fetch failed")
		return nil, err
	}
	return raw, nil
}

// BrowseURL is the human-facing issue URL on the Jira instance.
func (c *Client) BrowseURL(issueKey string) string {
	return c.cfg.BaseURL + "/browse/" + issueKey
}

// doJSON executes one authenticated JSON request against the REST API and
// decodes the response into target when the expected status is returned.
// 404 maps to ErrNotFound; any other unexpected status becomes a
// RequestError carrying the raw body.
func (c *Client) doJSON(ctx context.Context, op, method, path string, query url.Values, body any, expect int, target any) error {
	u := c.cfg.BaseURL + apiBase + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encoding request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("%s: building request: %w", op, err)
	}
	req.SetBasicAuth(c.cfg.Email, c.cfg.APIToken)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: sending request: %w", op, err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("%s: reading response: %w", op, err)
	}

	if res.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if res.StatusCode != expect {
		return &RequestError{Op: op, StatusCode: res.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	if target != nil && len(data) > 0 {
		if err := json.Unmarshal(data, target); err != nil {
			return fmt.Errorf("%s: decoding response: %w", op, err)
		}
	}
	return nil
}

func (c *Client) normalizeIssue(raw issueResponse) Ticket {
	f := raw.Fields
	t := Ticket{
		Key:         raw.Key,
		ID:          raw.ID,
		Summary:     f.Summary,
		Description: f.Description.PlainText(),
		Status:      nameOr(f.Status, "Unknown"),
		Priority:    nameOr(f.Priority, "Unknown"),
		IssueType:   nameOr(f.IssueType, "Unknown"),
		Assignee:    displayNameOr(f.Assignee, "Unassigned"),
		Reporter:    displayNameOr(f.Reporter, "Unknown"),
		Created:     f.Created,
		Updated:     f.Updated,
		URL:         c.BrowseURL(raw.Key),
	}
	for _, a := range f.Attachment {
		t.Attachments = append(t.Attachments, normalizeAttachment(a))
	}
	if f.Comment != nil {
		for _, cm := range f.Comment.Comments {
			t.Comments = append(t.Comments, normalizeComment(cm))
		}
	}
	if f.Votes != nil {
		t.Votes = f.Votes.Votes
		t.HasVoted = f.Votes.HasVoted
	}
	return t
}

func normalizeAttachment(a wireAttach) Attachment {
	out := Attachment{
		ID:       a.ID,
		Filename: a.Filename,
		Size:     a.Size,
		MimeType: a.MimeType,
		Created:  a.Created,
		Author:   displayNameOr(a.Author, "Unknown"),
		Content:  a.Content,
	}
	// Thumbnails only make sense for images; Jira occasionally reports
	// one for other types, drop those.
	if strings.HasPrefix(a.MimeType, "image/") {
		out.Thumbnail = a.Thumbnail
	}
	return out
}

func normalizeComment(cm wireComment) Comment {
	return Comment{
		ID:          cm.ID,
		Author:      displayNameOr(cm.Author, "Unknown"),
		AuthorEmail: emailOr(cm.Author),
		Body:        cm.Body.PlainText(),
		Created:     cm.Created,
		Updated:     cm.Updated,
	}
}

func nameOr(f *namedField, fallback string) string {
	if f == nil || f.Name == "" {
		return fallback
	}
	return f.Name
}

func displayNameOr(u *userField, fallback string) string {
	if u == nil || u.DisplayName == "" {
		return fallback
	}
	return u.DisplayName
}

func emailOr(u *userField) string {
	if u == nil {
		return ""
	}
	return u.EmailAddress
}

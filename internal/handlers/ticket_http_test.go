package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/devyljin/jintranet-back/internal/jira"
	"github.com/devyljin/jintranet-back/internal/middleware"
	"github.com/devyljin/jintranet-back/internal/models"
)

// fakeTracker counts calls and lets tests script failures per filename.
type fakeTracker struct {
	createCalls   int
	composedCalls int
	attachCalls   int
	failAttach    map[string]bool
	issues        map[string]*jira.Ticket
	listResult    *jira.SearchResult
}

func newFakeTracker() *fakeTracker {
	return &fakeTracker{
		failAttach: map[string]bool{},
		issues:     map[string]*jira.Ticket{},
	}
}

func (f *fakeTracker) CreateIssue(_ context.Context, _, _, _ string, _ jira.CreateOptions) (*jira.CreatedIssue, error) {
	f.createCalls++
	return &jira.CreatedIssue{ID: "1", Key: "WEB-1"}, nil
}

func (f *fakeTracker) AddAttachment(_ context.Context, issueKey string, file jira.Upload) ([]jira.Attachment, error) {
	f.attachCalls++
	if f.failAttach[file.Filename] {
		return nil, &jira.AttachmentError{IssueKey: issueKey, Filename: file.Filename, Err: fmt.Errorf("upload rejected")}
	}
	return []jira.Attachment{{ID: "a", Filename: file.Filename}}, nil
}

func (f *fakeTracker) CreateIssueWithAttachment(ctx context.Context, userID, summary, description string, file jira.Upload, opts jira.CreateOptions) (*jira.CreatedIssue, []jira.Attachment, error) {
	f.composedCalls++
	created, err := f.CreateIssue(ctx, userID, summary, description, opts)
	if err != nil {
		return nil, nil, err
	}
	atts, err := f.AddAttachment(ctx, created.Key, file)
	if err != nil {
		return created, nil, err
	}
	return created, atts, nil
}

func (f *fakeTracker) GetIssue(_ context.Context, issueKey string) (*jira.Ticket, error) {
	if t, ok := f.issues[issueKey]; ok {
		return t, nil
	}
	return nil, jira.ErrNotFound
}

func (f *fakeTracker) ListIssues(_ context.Context, opts jira.ListOptions) (*jira.SearchResult, error) {
	res := *f.listResult
	res.StartAt = opts.StartAt
	res.MaxResults = opts.MaxResults
	return &res, nil
}

func (f *fakeTracker) AddComment(_ context.Context, issueKey, body string) (*jira.Comment, error) {
	if _, ok := f.issues[issueKey]; !ok {
		return nil, jira.ErrNotFound
	}
	return &jira.Comment{ID: "c1", Body: body}, nil
}

func (f *fakeTracker) AddVote(_ context.Context, issueKey string) error {
	if _, ok := f.issues[issueKey]; !ok {
		return jira.ErrNotFound
	}
	return nil
}

func (f *fakeTracker) RemoveVote(_ context.Context, issueKey string) error {
	return f.AddVote(nil, issueKey)
}

func (f *fakeTracker) GetVotes(_ context.Context, _ string) (*jira.Votes, error) {
	return &jira.Votes{Votes: 1, HasVoted: true}, nil
}

func (f *fakeTracker) TestConnection(_ context.Context) bool { return true }

func (f *fakeTracker) GetCreateMeta(_ context.Context, _ string) (json.RawMessage, error) {
	return json.RawMessage(`{}`), nil
}

func (f *fakeTracker) BrowseURL(issueKey string) string {
	return "https://example.atlassian.net/browse/" + issueKey
}

type fakeCrossRepo struct {
	codes map[string][]string
}

func (f *fakeCrossRepo) Create(_ context.Context, userID, code string) (*models.Cross, error) {
	f.codes[userID] = append(f.codes[userID], code)
	return &models.Cross{UserID: userID, Code: code}, nil
}

func (f *fakeCrossRepo) ListCodesByUser(_ context.Context, userID string) ([]string, error) {
	return f.codes[userID], nil
}

type fileSpec struct {
	field   string
	name    string
	content string
}

func multipartRequest(t *testing.T, target string, fields map[string]string, files []fileSpec) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("writing field %s: %v", k, err)
		}
	}
	for _, f := range files {
		part, err := mw.CreateFormFile(f.field, f.name)
		if err != nil {
			t.Fatalf("creating file part: %v", err)
		}
		if _, err := io.Copy(part, strings.NewReader(f.content)); err != nil {
			t.Fatalf("writing file part: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("closing writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	ctx := context.WithValue(req.Context(), middleware.CtxUserID, "user-1")
	ctx = context.WithValue(ctx, middleware.CtxRole, "end_user")
	return req.WithContext(ctx)
}

func newTicketHTTP(ft *fakeTracker) *TicketHTTP {
	return NewTicketHTTP(ft, &fakeCrossRepo{codes: map[string][]string{}}, nil, zerolog.Nop())
}

func decodeBody(t *testing.T, res *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(res.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding response %q: %v", res.Body.String(), err)
	}
	return body
}

func TestCreateRejectsInvalidInputBeforeAnyTrackerCall(t *testing.T) {
	cases := []struct {
		name        string
		summary     string
		description string
	}{
		{"summary too short", "abcd", "a valid description"},
		{"summary too long", strings.Repeat("a", 201), "a valid description"},
		{"summary missing", "", "a valid description"},
		{"description too short", "A valid summary", "too short"},
		{"description missing", "A valid summary", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ft := newFakeTracker()
			h := newTicketHTTP(ft)

			req := multipartRequest(t, "/api/v1/jira/tickets", map[string]string{
				"summary":     tc.summary,
				"description": tc.description,
			}, nil)
			res := httptest.NewRecorder()
			h.Create().ServeHTTP(res, req)

			if res.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", res.Code)
			}
			if ft.createCalls != 0 || ft.attachCalls != 0 {
				t.Errorf("tracker calls = %d/%d, want none before validation passes", ft.createCalls, ft.attachCalls)
			}
		})
	}
}

func TestCreateBoundaryLengthsAccepted(t *testing.T) {
	for _, summary := range []string{strings.Repeat("a", 5), strings.Repeat("a", 200)} {
		ft := newFakeTracker()
		h := newTicketHTTP(ft)

		req := multipartRequest(t, "/api/v1/jira/tickets", map[string]string{
			"summary":     summary,
			"description": strings.Repeat("d", 10),
		}, nil)
		res := httptest.NewRecorder()
		h.Create().ServeHTTP(res, req)

		if res.Code != http.StatusCreated {
			t.Errorf("summary length %d: status = %d, want 201", len(summary), res.Code)
		}
		if ft.createCalls != 1 {
			t.Errorf("create calls = %d, want 1", ft.createCalls)
		}
	}
}

func TestCreateRejectsElevenFiles(t *testing.T) {
	ft := newFakeTracker()
	h := newTicketHTTP(ft)

	var files []fileSpec
	for i := 0; i < 11; i++ {
		files = append(files, fileSpec{"attachments[]", fmt.Sprintf("f%d.txt", i), "content"})
	}
	req := multipartRequest(t, "/api/v1/jira/tickets", map[string]string{
		"summary":     "A valid summary",
		"description": "a long enough description",
	}, files)
	res := httptest.NewRecorder()
	h.Create().ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", res.Code)
	}
	if ft.createCalls != 0 || ft.attachCalls != 0 {
		t.Errorf("tracker calls = %d/%d, want zero for an oversized batch", ft.createCalls, ft.attachCalls)
	}
}

func TestCreateAcceptsExactlyTenFiles(t *testing.T) {
	ft := newFakeTracker()
	h := newTicketHTTP(ft)

	var files []fileSpec
	for i := 0; i < 10; i++ {
		files = append(files, fileSpec{"attachments[]", fmt.Sprintf("f%d.txt", i), "content"})
	}
	req := multipartRequest(t, "/api/v1/jira/tickets", map[string]string{
		"summary":     "A valid summary",
		"description": "a long enough description",
	}, files)
	res := httptest.NewRecorder()
	h.Create().ServeHTTP(res, req)

	if res.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", res.Code, res.Body.String())
	}
	if ft.createCalls != 1 || ft.attachCalls != 10 {
		t.Errorf("tracker calls = %d create / %d attach, want 1/10", ft.createCalls, ft.attachCalls)
	}
}

func TestCreateBatchReportsPerFileCounts(t *testing.T) {
	ft := newFakeTracker()
	h := newTicketHTTP(ft)

	// File #2 is empty and fails local validation; the others upload.
	files := []fileSpec{
		{"attachments[]", "one.txt", "data one"},
		{"attachments[]", "two.txt", ""},
		{"attachments[]", "three.txt", "data three"},
	}
	req := multipartRequest(t, "/api/v1/jira/tickets", map[string]string{
		"summary":     "A valid summary",
		"description": "a long enough description",
	}, files)
	res := httptest.NewRecorder()
	h.Create().ServeHTTP(res, req)

	if res.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: the ticket exists regardless of file validity", res.Code)
	}
	body := decodeBody(t, res)
	ticket := body["ticket"].(map[string]any)
	if got := ticket["attachments_count"].(float64); got != 2 {
		t.Errorf("attachments_count = %v, want 2", got)
	}
	if got := ticket["attachments_failed"].(float64); got != 1 {
		t.Errorf("attachments_failed = %v, want 1", got)
	}
	if ft.createCalls != 1 {
		t.Errorf("create calls = %d, want exactly 1", ft.createCalls)
	}
}

func TestCreateBatchContinuesPastUploadFailure(t *testing.T) {
	ft := newFakeTracker()
	ft.failAttach["two.txt"] = true
	h := newTicketHTTP(ft)

	files := []fileSpec{
		{"attachments[]", "one.txt", "data"},
		{"attachments[]", "two.txt", "data"},
		{"attachments[]", "three.txt", "data"},
	}
	req := multipartRequest(t, "/api/v1/jira/tickets", map[string]string{
		"summary":     "A valid summary",
		"description": "a long enough description",
	}, files)
	res := httptest.NewRecorder()
	h.Create().ServeHTTP(res, req)

	body := decodeBody(t, res)
	ticket := body["ticket"].(map[string]any)
	if got := ticket["attachments_count"].(float64); got != 2 {
		t.Errorf("attachments_count = %v, want 2", got)
	}
	if ft.attachCalls != 3 {
		t.Errorf("attach calls = %d, want all 3 attempted", ft.attachCalls)
	}
}

func TestCreateSingleFileUsesComposedPath(t *testing.T) {
	ft := newFakeTracker()
	h := newTicketHTTP(ft)

	req := multipartRequest(t, "/api/v1/jira/tickets", map[string]string{
		"summary":     "A valid summary",
		"description": "a long enough description",
	}, []fileSpec{{"attachment", "only.txt", "data"}})
	res := httptest.NewRecorder()
	h.Create().ServeHTTP(res, req)

	if res.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", res.Code)
	}
	if ft.composedCalls != 1 {
		t.Errorf("composed calls = %d, want the single-attachment path", ft.composedCalls)
	}
}

func TestCreateSingleFilePartialSuccess(t *testing.T) {
	ft := newFakeTracker()
	ft.failAttach["only.txt"] = true
	h := newTicketHTTP(ft)

	req := multipartRequest(t, "/api/v1/jira/tickets", map[string]string{
		"summary":     "A valid summary",
		"description": "a long enough description",
	}, []fileSpec{{"attachment", "only.txt", "data"}})
	res := httptest.NewRecorder()
	h.Create().ServeHTTP(res, req)

	// Ticket created, upload failed: partial success, not an error status.
	if res.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", res.Code)
	}
	body := decodeBody(t, res)
	ticket := body["ticket"].(map[string]any)
	if got := ticket["attachments_failed"].(float64); got != 1 {
		t.Errorf("attachments_failed = %v, want 1", got)
	}
}

func TestListPaginationMath(t *testing.T) {
	ft := newFakeTracker()
	ft.listResult = &jira.SearchResult{Total: 45, Issues: make([]jira.Ticket, 5)}
	h := newTicketHTTP(ft)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jira/tickets?page=3&per_page=20", nil)
	res := httptest.NewRecorder()
	h.List().ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("status = %d", res.Code)
	}
	body := decodeBody(t, res)
	pagination := body["data"].(map[string]any)["pagination"].(map[string]any)
	if got := pagination["total_pages"].(float64); got != 3 {
		t.Errorf("total_pages = %v, want ceil(45/20) = 3", got)
	}
	if got := pagination["start_at"].(float64); got != 40 {
		t.Errorf("start_at = %v, want (3-1)*20 = 40", got)
	}
}

func TestGetTicketNotFound(t *testing.T) {
	ft := newFakeTracker()
	h := newTicketHTTP(ft)

	r := chi.NewRouter()
	r.Get("/tickets/{key}", h.Get())

	req := httptest.NewRequest(http.MethodGet, "/tickets/WEB-404", nil)
	res := httptest.NewRecorder()
	r.ServeHTTP(res, req)

	if res.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", res.Code)
	}
}

func TestMyTicketsReportsPerKeyErrors(t *testing.T) {
	ft := newFakeTracker()
	ft.issues["WEB-1"] = &jira.Ticket{Key: "WEB-1", Summary: "first"}
	// WEB-2 exists only in the audit log; the tracker fetch will fail.
	crosses := &fakeCrossRepo{codes: map[string][]string{"user-1": {"WEB-1", "WEB-2"}}}
	h := NewTicketHTTP(ft, crosses, nil, zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jira/my-tickets", nil)
	req = req.WithContext(context.WithValue(req.Context(), middleware.CtxUserID, "user-1"))
	res := httptest.NewRecorder()
	h.MyTickets().ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 despite a failed key", res.Code)
	}
	data := decodeBody(t, res)["data"].(map[string]any)
	if got := data["total"].(float64); got != 1 {
		t.Errorf("total = %v, want 1", got)
	}
	if errs := data["errors"].([]any); len(errs) != 1 {
		t.Errorf("errors = %v, want one entry for WEB-2", errs)
	}
}

func TestAddCommentValidation(t *testing.T) {
	ft := newFakeTracker()
	ft.issues["WEB-1"] = &jira.Ticket{Key: "WEB-1"}
	h := newTicketHTTP(ft)

	r := chi.NewRouter()
	r.Post("/tickets/{key}/comment", h.AddComment())

	req := httptest.NewRequest(http.MethodPost, "/tickets/WEB-1/comment", strings.NewReader(`{"comment":"   "}`))
	res := httptest.NewRecorder()
	r.ServeHTTP(res, req)
	if res.Code != http.StatusBadRequest {
		t.Errorf("blank comment: status = %d, want 400", res.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/tickets/WEB-1/comment", strings.NewReader(`{"comment":"looks good"}`))
	res = httptest.NewRecorder()
	r.ServeHTTP(res, req)
	if res.Code != http.StatusCreated {
		t.Errorf("valid comment: status = %d, want 201", res.Code)
	}
}

func TestVoteEndpoints(t *testing.T) {
	ft := newFakeTracker()
	ft.issues["WEB-1"] = &jira.Ticket{Key: "WEB-1"}
	h := newTicketHTTP(ft)

	r := chi.NewRouter()
	r.Post("/tickets/{key}/vote", h.AddVote())
	r.Delete("/tickets/{key}/vote", h.RemoveVote())

	req := httptest.NewRequest(http.MethodPost, "/tickets/WEB-1/vote", nil)
	res := httptest.NewRecorder()
	r.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("add vote: status = %d", res.Code)
	}
	body := decodeBody(t, res)
	if body["hasVoted"] != true {
		t.Errorf("hasVoted = %v, want true", body["hasVoted"])
	}

	req = httptest.NewRequest(http.MethodPost, "/tickets/WEB-404/vote", nil)
	res = httptest.NewRecorder()
	r.ServeHTTP(res, req)
	if res.Code != http.StatusNotFound {
		t.Errorf("vote on unknown ticket: status = %d, want 404", res.Code)
	}
}

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/devyljin/jintranet-back/internal/jira"
	"github.com/devyljin/jintranet-back/internal/middleware"
	"github.com/devyljin/jintranet-back/internal/repository"
	"github.com/devyljin/jintranet-back/internal/utils"
)

// Validation bounds enforced before any tracker call is made.
const (
	summaryMinLen  = 5
	summaryMaxLen  = 200
	descriptionMin = 10
	maxAttachments = 10
)

// TrackerClient is the slice of the Jira client the ticket endpoints use.
type TrackerClient interface {
	CreateIssue(ctx context.Context, userID, summary, description string, opts jira.CreateOptions) (*jira.CreatedIssue, error)
	AddAttachment(ctx context.Context, issueKey string, file jira.Upload) ([]jira.Attachment, error)
	CreateIssueWithAttachment(ctx context.Context, userID, summary, description string, file jira.Upload, opts jira.CreateOptions) (*jira.CreatedIssue, []jira.Attachment, error)
	GetIssue(ctx context.Context, issueKey string) (*jira.Ticket, error)
	ListIssues(ctx context.Context, opts jira.ListOptions) (*jira.SearchResult, error)
	AddComment(ctx context.Context, issueKey, body string) (*jira.Comment, error)
	AddVote(ctx context.Context, issueKey string) error
	RemoveVote(ctx context.Context, issueKey string) error
	GetVotes(ctx context.Context, issueKey string) (*jira.Votes, error)
	TestConnection(ctx context.Context) bool
	GetCreateMeta(ctx context.Context, projectKey string) (json.RawMessage, error)
	BrowseURL(issueKey string) string
}

// TicketHTTP proxies ticket operations to the external tracker.
type TicketHTTP struct {
	tracker TrackerClient
	crosses repository.CrossRepository
	users   repository.UserRepository
	log     zerolog.Logger
}

func NewTicketHTTP(tracker TrackerClient, crosses repository.CrossRepository, users repository.UserRepository, log zerolog.Logger) *TicketHTTP {
	return &TicketHTTP{tracker: tracker, crosses: crosses, users: users, log: log}
}

func validateTicketInput(summary, description string) []string {
	var errs []string
	if strings.TrimSpace(summary) == "" {
		errs = append(errs, "summary is required")
	} else if n := utf8.RuneCountInString(summary); n < summaryMinLen || n > summaryMaxLen {
		errs = append(errs, fmt.Sprintf("summary must be between %d and %d characters", summaryMinLen, summaryMaxLen))
	}
	if strings.TrimSpace(description) == "" {
		errs = append(errs, "description is required")
	} else if utf8.RuneCountInString(description) < descriptionMin {
		errs = append(errs, fmt.Sprintf("description must be at least %d characters", descriptionMin))
	}
	return errs
}

// openUpload turns one multipart file header into a tracker upload. Empty
// files are rejected here, before any network call.
func openUpload(fh *multipart.FileHeader) (jira.Upload, func(), error) {
	if fh.Size == 0 {
		return jira.Upload{}, nil, fmt.Errorf("file %q is empty", fh.Filename)
	}
	f, err := fh.Open()
	if err != nil {
		return jira.Upload{}, nil, fmt.Errorf("file %q is unreadable: %w", fh.Filename, err)
	}
	return jira.Upload{
		Filename:    fh.Filename,
		Size:        fh.Size,
		ContentType: fh.Header.Get("Content-Type"),
		Reader:      f,
	}, func() { _ = f.Close() }, nil
}

// -----------------------------------------------------------------------------
// POST /api/v1/jira/tickets  (multipart: summary, description, project_key?,
// issue_type?, attachment? | attachments[]?)
// -----------------------------------------------------------------------------
func (h *TicketHTTP) Create() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			utils.Error(w, http.StatusBadRequest, "invalid multipart form")
			return
		}

		summary := r.FormValue("summary")
		description := r.FormValue("description")
		projectKey := r.FormValue("project_key")
		issueType := r.FormValue("issue_type")

		if errs := validateTicketInput(summary, description); len(errs) > 0 {
			utils.JSON(w, http.StatusBadRequest, map[string]any{"success": false, "errors": errs})
			return
		}

		uid, _ := utils.GetString(r.Context(), middleware.CtxUserID)
		if uid == "" {
			utils.Error(w, http.StatusUnauthorized, "not authenticated")
			return
		}

		files := r.MultipartForm.File["attachments[]"]
		if len(files) == 0 {
			files = r.MultipartForm.File["attachments"]
		}
		// A lone "attachment" field is normalized into the list.
		if single := r.MultipartForm.File["attachment"]; len(files) == 0 && len(single) > 0 {
			files = single
		}

		// Hard cap, rejected before any tracker call.
		if len(files) > maxAttachments {
			utils.Error(w, http.StatusBadRequest, fmt.Sprintf("too many attachments (maximum %d)", maxAttachments))
			return
		}

		opts := jira.CreateOptions{
			ProjectKey: projectKey,
			IssueType:  issueType,
			// The tracker's reporter field reflects the service account,
			// not the actual creator; this custom field keeps the real one.
			ExtraFields: map[string]any{"customfield_10114": h.callerIdentity(r.Context(), uid)},
		}

		switch {
		case len(files) == 1:
			h.createWithSingleAttachment(w, r, uid, summary, description, files[0], opts)
		case len(files) > 1:
			h.createWithAttachmentBatch(w, r, uid, summary, description, files, opts)
		default:
			h.createPlain(w, r, uid, summary, description, opts)
		}
	}
}

func (h *TicketHTTP) createPlain(w http.ResponseWriter, r *http.Request, uid, summary, description string, opts jira.CreateOptions) {
	h.log.Info().Str("summary", summary).Msg("creating ticket")

	created, err := h.tracker.CreateIssue(r.Context(), uid, summary, description, opts)
	if err != nil {
		h.log.Error().Err(err).Str("summary", summary).Msg("ticket creation failed")
		utils.Error(w, http.StatusInternalServerError, "error creating ticket: "+err.Error())
		return
	}
	utils.JSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": "ticket created",
		"ticket": map[string]any{
			"key": created.Key,
			"id":  created.ID,
			"url": h.tracker.BrowseURL(created.Key),
		},
	})
}

func (h *TicketHTTP) createWithSingleAttachment(w http.ResponseWriter, r *http.Request, uid, summary, description string, fh *multipart.FileHeader, opts jira.CreateOptions) {
	h.log.Info().Str("summary", summary).Str("filename", fh.Filename).Msg("creating ticket with attachment")

	up, closeFn, err := openUpload(fh)
	if err != nil {
		utils.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	defer closeFn()

	created, attachments, err := h.tracker.CreateIssueWithAttachment(r.Context(), uid, summary, description, up, opts)
	if err != nil {
		if created != nil {
			// Ticket exists, only the upload failed: partial success.
			h.log.Warn().Err(err).Str("key", created.Key).Str("filename", fh.Filename).Msg("ticket created, attachment failed")
			utils.JSON(w, http.StatusCreated, map[string]any{
				"success": true,
				"message": "ticket created but the attachment upload failed",
				"ticket": map[string]any{
					"key":                created.Key,
					"id":                 created.ID,
					"url":                h.tracker.BrowseURL(created.Key),
					"attachments_count":  0,
					"attachments_failed": 1,
				},
			})
			return
		}
		h.log.Error().Err(err).Str("summary", summary).Msg("ticket creation failed")
		utils.Error(w, http.StatusInternalServerError, "error creating ticket: "+err.Error())
		return
	}

	utils.JSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": "ticket created with attachment",
		"ticket": map[string]any{
			"key":         created.Key,
			"id":          created.ID,
			"url":         h.tracker.BrowseURL(created.Key),
			"attachments": len(attachments),
		},
	})
}

// createWithAttachmentBatch creates the ticket first, then uploads each
// file independently. One bad file never aborts the rest or the ticket;
// the result reports per-file success/failure counts.
func (h *TicketHTTP) createWithAttachmentBatch(w http.ResponseWriter, r *http.Request, uid, summary, description string, files []*multipart.FileHeader, opts jira.CreateOptions) {
	h.log.Info().Str("summary", summary).Int("fileCount", len(files)).Msg("creating ticket with attachment batch")

	created, err := h.tracker.CreateIssue(r.Context(), uid, summary, description, opts)
	if err != nil {
		h.log.Error().Err(err).Str("summary", summary).Msg("ticket creation failed")
		utils.Error(w, http.StatusInternalServerError, "error creating ticket: "+err.Error())
		return
	}

	successCount, errorCount := 0, 0
	var succeeded []jira.Attachment
	var failed []map[string]string

	for _, fh := range files {
		up, closeFn, err := openUpload(fh)
		if err != nil {
			h.log.Warn().Err(err).Str("key", created.Key).Str("filename", fh.Filename).Msg("invalid file skipped")
			errorCount++
			failed = append(failed, map[string]string{"filename": fh.Filename, "error": err.Error()})
			continue
		}

		attachments, err := h.tracker.AddAttachment(r.Context(), created.Key, up)
		closeFn()
		if err != nil {
			h.log.Error().Err(err).Str("key", created.Key).Str("filename", fh.Filename).Msg("attachment upload failed")
			errorCount++
			failed = append(failed, map[string]string{"filename": fh.Filename, "error": err.Error()})
			continue
		}
		successCount++
		succeeded = append(succeeded, attachments...)
	}

	utils.JSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": fmt.Sprintf("ticket created with %d of %d attachment(s)", successCount, len(files)),
		"ticket": map[string]any{
			"key":                created.Key,
			"id":                 created.ID,
			"url":                h.tracker.BrowseURL(created.Key),
			"attachments_count":  successCount,
			"attachments_failed": errorCount,
			"attachments":        succeeded,
			"failed":             failed,
		},
	})
}

// callerIdentity resolves the username recorded in the tracker's custom
// field; falls back to the raw user id when the lookup fails.
func (h *TicketHTTP) callerIdentity(ctx context.Context, uid string) string {
	if h.users != nil {
		if u, err := h.users.GetByID(ctx, uid); err == nil && u != nil {
			return u.Username
		}
	}
	return uid
}

// -----------------------------------------------------------------------------
// GET /api/v1/jira/tickets?project=&jql=&page=&per_page=
// -----------------------------------------------------------------------------
func (h *TicketHTTP) List() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		qv := r.URL.Query()
		page := utils.QueryInt(qv, "page", 1)
		if page < 1 {
			page = 1
		}
		perPage := utils.QueryInt(qv, "per_page", 20)
		if perPage < 1 {
			perPage = 1
		}
		if perPage > 100 {
			perPage = 100
		}

		res, err := h.tracker.ListIssues(r.Context(), jira.ListOptions{
			ProjectKey: qv.Get("project"),
			JQL:        qv.Get("jql"),
			MaxResults: perPage,
			StartAt:    (page - 1) * perPage,
		})
		if err != nil {
			h.log.Error().Err(err).Msg("ticket listing failed")
			utils.Error(w, http.StatusInternalServerError, "error listing tickets: "+err.Error())
			return
		}

		totalPages := (res.Total + perPage - 1) / perPage
		utils.JSON(w, http.StatusOK, map[string]any{
			"success": true,
			"data": map[string]any{
				"issues": res.Issues,
				"pagination": map[string]any{
					"current_page": page,
					"per_page":     perPage,
					"total":        res.Total,
					"total_pages":  totalPages,
					"start_at":     res.StartAt,
					"max_results":  res.MaxResults,
				},
			},
		})
	}
}

// -----------------------------------------------------------------------------
// GET /api/v1/jira/tickets/{key}
// -----------------------------------------------------------------------------
func (h *TicketHTTP) Get() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "key")
		if key == "" {
			utils.Error(w, http.StatusBadRequest, "missing ticket key")
			return
		}
		t, err := h.tracker.GetIssue(r.Context(), key)
		if err != nil {
			if errors.Is(err, jira.ErrNotFound) {
				utils.Error(w, http.StatusNotFound, "ticket not found")
				return
			}
			utils.Error(w, http.StatusInternalServerError, "error fetching ticket: "+err.Error())
			return
		}
		utils.JSON(w, http.StatusOK, map[string]any{"success": true, "ticket": t})
	}
}

// -----------------------------------------------------------------------------
// GET /api/v1/jira/my-tickets — resolved through cross records, not the
// tracker's reporter field. A key that fails to resolve is reported, not
// fatal.
// -----------------------------------------------------------------------------
func (h *TicketHTTP) MyTickets() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, _ := utils.GetString(r.Context(), middleware.CtxUserID)
		if uid == "" {
			utils.Error(w, http.StatusUnauthorized, "not authenticated")
			return
		}

		codes, err := h.crosses.ListCodesByUser(r.Context(), uid)
		if err != nil {
			utils.Error(w, http.StatusInternalServerError, err.Error())
			return
		}

		tickets := make([]jira.Ticket, 0, len(codes))
		fetchErrors := []map[string]string{}
		for _, code := range codes {
			t, err := h.tracker.GetIssue(r.Context(), code)
			if err != nil {
				h.log.Warn().Err(err).Str("key", code).Msg("my-tickets fetch failed for key")
				fetchErrors = append(fetchErrors, map[string]string{"key": code, "error": err.Error()})
				continue
			}
			tickets = append(tickets, *t)
		}

		utils.JSON(w, http.StatusOK, map[string]any{
			"success": true,
			"data": map[string]any{
				"tickets": tickets,
				"total":   len(tickets),
				"errors":  fetchErrors,
			},
		})
	}
}

// -----------------------------------------------------------------------------
// POST /api/v1/jira/tickets/{key}/comment
// -----------------------------------------------------------------------------
func (h *TicketHTTP) AddComment() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "key")
		var in struct {
			Comment string `json:"comment"`
		}
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			utils.Error(w, http.StatusBadRequest, "invalid json")
			return
		}
		in.Comment = strings.TrimSpace(in.Comment)
		if in.Comment == "" {
			utils.Error(w, http.StatusBadRequest, "comment is required")
			return
		}

		c, err := h.tracker.AddComment(r.Context(), key, in.Comment)
		if err != nil {
			if errors.Is(err, jira.ErrNotFound) {
				utils.Error(w, http.StatusNotFound, "ticket not found")
				return
			}
			h.log.Error().Err(err).Str("key", key).Msg("comment creation failed")
			utils.Error(w, http.StatusInternalServerError, "error adding comment: "+err.Error())
			return
		}
		utils.JSON(w, http.StatusCreated, map[string]any{
			"success": true,
			"comment": c,
			"message": "comment added",
		})
	}
}

// -----------------------------------------------------------------------------
// POST | DELETE /api/v1/jira/tickets/{key}/vote
// -----------------------------------------------------------------------------
func (h *TicketHTTP) AddVote() http.HandlerFunc {
	return h.voteHandler(h.tracker.AddVote, "vote added")
}

func (h *TicketHTTP) RemoveVote() http.HandlerFunc {
	return h.voteHandler(h.tracker.RemoveVote, "vote removed")
}

func (h *TicketHTTP) voteHandler(op func(context.Context, string) error, message string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "key")
		if err := op(r.Context(), key); err != nil {
			if errors.Is(err, jira.ErrNotFound) {
				utils.Error(w, http.StatusNotFound, "ticket not found")
				return
			}
			h.log.Error().Err(err).Str("key", key).Msg("vote operation failed")
			utils.Error(w, http.StatusInternalServerError, "error updating vote: "+err.Error())
			return
		}

		votes, err := h.tracker.GetVotes(r.Context(), key)
		if err != nil {
			h.log.Warn().Err(err).Str("key", key).Msg("vote state fetch failed")
			votes = &jira.Votes{}
		}
		utils.JSON(w, http.StatusOK, map[string]any{
			"success":  true,
			"votes":    votes.Votes,
			"hasVoted": votes.HasVoted,
			"message":  message,
		})
	}
}

// -----------------------------------------------------------------------------
// GET /api/v1/jira/connection
// -----------------------------------------------------------------------------
func (h *TicketHTTP) TestConnection() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ok := h.tracker.TestConnection(r.Context())
		msg := "connection failed"
		if ok {
			msg = "connection successful"
		}
		utils.JSON(w, http.StatusOK, map[string]any{"success": ok, "message": msg})
	}
}

// -----------------------------------------------------------------------------
// GET /api/v1/jira/metadata?projectKey=
// -----------------------------------------------------------------------------
func (h *TicketHTTP) Metadata(defaultProject string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projectKey := r.URL.Query().Get("projectKey")
		if projectKey == "" {
			projectKey = defaultProject
		}
		meta, err := h.tracker.GetCreateMeta(r.Context(), projectKey)
		if err != nil {
			utils.Error(w, http.StatusInternalServerError, "error fetching metadata: "+err.Error())
			return
		}
		utils.JSON(w, http.StatusOK, map[string]any{"success": true, "metadata": meta})
	}
}

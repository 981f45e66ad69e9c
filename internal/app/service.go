package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"visaprep/api/internal/allowlist"
	"visaprep/api/internal/archive"
	"visaprep/api/internal/auth"
	"visaprep/api/internal/authpw"
	"visaprep/api/internal/autosave"
	"visaprep/api/internal/cache"
	"visaprep/api/internal/config"
	"visaprep/api/internal/confirm"
	"visaprep/api/internal/email"
	"visaprep/api/internal/export"
	"visaprep/api/internal/form"
	"visaprep/api/internal/history"
	"visaprep/api/internal/schema"
	"visaprep/api/internal/search"
	"visaprep/api/internal/store"
	"visaprep/api/internal/summary"
	"visaprep/api/internal/util"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	Email        string
	IsAnonymous  bool
	IsAdmin      bool
	JTI          string
	ExpiresAt    time.Time
}

// dataStore is the persistence surface the application service depends on.
type dataStore interface {
	Ping(ctx context.Context) error
	GetUserByID(ctx context.Context, userID string) (store.User, error)
	RevokeAccessToken(ctx context.Context, jti string, exp time.Time) error
	IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error)
	CreateSubmission(ctx context.Context, item store.Submission) error
	UpdateSubmission(ctx context.Context, item store.Submission) error
	GetSubmission(ctx context.Context, id string) (store.Submission, error)
	ListSubmissionsByOwner(ctx context.Context, ownerID string) ([]store.Submission, error)
	ListAllSubmissions(ctx context.Context) ([]store.Submission, error)
	DeleteSubmission(ctx context.Context, id string) error
	DeleteAllSubmissions(ctx context.Context) (int, error)
	SubmissionStats(ctx context.Context) (store.SubmissionStats, error)
	SearchSubmissions(ctx context.Context, query string, limit int) ([]store.Submission, error)
}

// RefreshStore holds refresh sessions; backed by Redis when available,
// Postgres otherwise.
type RefreshStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash string, user store.User, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
}

type searchIndex interface {
	Search(q search.Query) search.Response
	IndexSubmission(item store.Submission)
	DeleteSubmission(id string)
	DeleteAll()
}

type archiveUploader interface {
	Upload(ctx context.Context, prefix string, data []byte, contentType string) (string, error)
}

type historyService interface {
	RecordSave(ctx context.Context, ownerID string, fields form.Snapshot, confirmations confirm.Set, savedAt string) error
	History(ctx context.Context, ownerID string, limit int) ([]history.Entry, error)
	SnapshotByHash(ctx context.Context, ownerID, hash string) (form.Snapshot, confirm.Set, error)
}

// Deps carries the optional collaborators. Nil members degrade the matching
// feature instead of failing startup.
type Deps struct {
	Sessions RefreshStore
	Auth     *authpw.Service
	Email    *email.Service
	Admins   *allowlist.List
	History  *history.Service
	Search   *search.Service
	Archive  *archive.Service
	Drafts   *cache.Store
}

type Service struct {
	cfg      config.Config
	store    dataStore
	sessions RefreshStore
	authpw   *authpw.Service
	email    *email.Service
	admins   *allowlist.List
	exporter *export.Service
	history  historyService
	search   searchIndex
	archive  archiveUploader
	drafts   autosave.DraftCache

	coordMu      sync.Mutex
	coordinators map[string]*autosave.Coordinator
}

func New(cfg config.Config, pg *store.PostgresStore, deps Deps) *Service {
	svc := &Service{
		cfg:          cfg,
		store:        pg,
		authpw:       deps.Auth,
		email:        deps.Email,
		admins:       deps.Admins,
		exporter:     export.NewService(),
		coordinators: make(map[string]*autosave.Coordinator),
	}
	svc.sessions = deps.Sessions
	if svc.sessions == nil {
		svc.sessions = pg
	}
	if deps.History != nil {
		svc.history = deps.History
	}
	if deps.Search != nil {
		svc.search = deps.Search
	}
	if deps.Archive != nil {
		svc.archive = deps.Archive
	}
	if deps.Drafts != nil {
		svc.drafts = deps.Drafts
	}
	return svc
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) AuthPasswordService() *authpw.Service {
	return s.authpw
}

func (s *Service) SMTPConfigured() bool {
	return s.email != nil && s.email.IsConfigured()
}

// SendVerificationEmail delivers the sign-up verification link. Delivery
// failures are logged, not surfaced; the dev-bypass token covers local runs.
func (s *Service) SendVerificationEmail(to, userName, token string) {
	if !s.SMTPConfigured() {
		return
	}
	link := s.cfg.AppBaseURL + "/verify-email?token=" + url.QueryEscape(token)
	if err := s.email.SendVerificationEmail(to, userName, link); err != nil {
		log.Printf("send verification email to %s: %v", to, err)
	}
}

// SendPasswordResetEmail delivers the reset link for a requested reset.
func (s *Service) SendPasswordResetEmail(to, userName, token string) {
	if !s.SMTPConfigured() {
		return
	}
	link := s.cfg.AppBaseURL + "/reset-password?token=" + url.QueryEscape(token)
	if err := s.email.SendPasswordResetEmail(to, userName, link); err != nil {
		log.Printf("send password reset email to %s: %v", to, err)
	}
}

// CreateSession issues access and refresh tokens for an authenticated user.
func (s *Service) CreateSession(ctx context.Context, userID string) (Session, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:   user.ID,
		Email: user.Email,
		Name:  user.DisplayName,
		JTI:   jti,
		Exp:   expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.DisplayName,
		Email:        user.Email,
		IsAnonymous:  user.IsAnonymous,
		IsAdmin:      s.isAdmin(user),
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

// isAdmin requires both allow-list membership and a verified email so a
// pre-verification account cannot claim a listed address.
func (s *Service) isAdmin(user store.User) bool {
	return user.IsEmailVerified && s.admins.Allowed(user.Email)
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	revoked, err := s.store.IsAccessTokenRevoked(ctx, claims.JTI)
	if err != nil {
		return Session{}, err
	}
	if revoked {
		return Session{}, auth.ErrInvalidToken
	}

	user, err := s.store.GetUserByID(ctx, claims.Sub)
	if err != nil {
		return Session{}, err
	}

	return Session{
		Token:       token,
		UserID:      user.ID,
		UserName:    user.DisplayName,
		Email:       user.Email,
		IsAnonymous: user.IsAnonymous,
		IsAdmin:     s.isAdmin(user),
		JTI:         claims.JTI,
		ExpiresAt:   time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	user, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, err
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) Logout(ctx context.Context, session Session, refreshToken string) error {
	if session.JTI != "" {
		_ = s.store.RevokeAccessToken(ctx, session.JTI, session.ExpiresAt)
	}
	if refreshToken != "" {
		_ = s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
	}
	if session.UserID != "" {
		s.dropCoordinator(session.UserID)
	}
	return nil
}

// SignInAnonymous creates a guest account and a session for it in one step.
func (s *Service) SignInAnonymous(ctx context.Context, displayName string) (Session, error) {
	if s.authpw == nil {
		return Session{}, domainError(http.StatusServiceUnavailable, "AUTH_UNAVAILABLE", "Authentication service not configured", nil)
	}
	user, err := s.authpw.SignInAnonymous(ctx, displayName)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

// indexingStore mirrors every successful submission write into the search
// index. The coordinator only sees the SubmissionStore surface.
type indexingStore struct {
	store  dataStore
	search searchIndex
}

func (w indexingStore) CreateSubmission(ctx context.Context, item store.Submission) error {
	if err := w.store.CreateSubmission(ctx, item); err != nil {
		return err
	}
	w.index(ctx, item)
	return nil
}

func (w indexingStore) UpdateSubmission(ctx context.Context, item store.Submission) error {
	if err := w.store.UpdateSubmission(ctx, item); err != nil {
		return err
	}
	w.index(ctx, item)
	return nil
}

func (w indexingStore) ListSubmissionsByOwner(ctx context.Context, ownerID string) ([]store.Submission, error) {
	return w.store.ListSubmissionsByOwner(ctx, ownerID)
}

func (w indexingStore) index(ctx context.Context, item store.Submission) {
	if w.search == nil {
		return
	}
	// Re-read so the index carries the database-assigned timestamp.
	if saved, err := w.store.GetSubmission(ctx, item.ID); err == nil {
		item = saved
	}
	w.search.IndexSubmission(item)
}

func (s *Service) coordinatorFor(session Session) *autosave.Coordinator {
	s.coordMu.Lock()
	defer s.coordMu.Unlock()
	if c, ok := s.coordinators[session.UserID]; ok {
		return c
	}
	c := autosave.NewCoordinator(indexingStore{store: s.store, search: s.search}, autosave.Options{
		Debounce:      s.cfg.AutosaveDebounce,
		StatusDisplay: s.cfg.StatusDisplay,
		Cache:         s.drafts,
		History:       s.history,
	})
	s.coordinators[session.UserID] = c
	return c
}

func (s *Service) dropCoordinator(userID string) {
	s.coordMu.Lock()
	c, ok := s.coordinators[userID]
	delete(s.coordinators, userID)
	s.coordMu.Unlock()
	if ok {
		c.SignOut()
	}
}

func ownerFromSession(session Session) *autosave.Owner {
	if session.UserID == "" {
		return nil
	}
	return &autosave.Owner{ID: session.UserID, Email: session.Email, Name: session.UserName}
}

// OpenForm binds the session's coordinator to its owner in the requested
// mode: restore pulls the latest stored record, fresh starts blank without
// touching storage.
func (s *Service) OpenForm(ctx context.Context, session Session, query url.Values) (map[string]any, error) {
	mode := autosave.ParseMode(query, s.cfg.DefaultMode)
	c := s.coordinatorFor(session)
	if err := c.SetIdentity(ctx, ownerFromSession(session), mode); err != nil {
		return nil, err
	}
	payload := s.formPayload(c)
	payload["mode"] = mode.String()
	return payload, nil
}

// openedCoordinator hands back the coordinator, binding identity on first
// use so a GET before an explicit open still restores.
func (s *Service) openedCoordinator(ctx context.Context, session Session) (*autosave.Coordinator, error) {
	c := s.coordinatorFor(session)
	if c.State() == autosave.StateUnauthenticated && session.UserID != "" {
		if err := c.SetIdentity(ctx, ownerFromSession(session), autosave.ParseMode(nil, s.cfg.DefaultMode)); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (s *Service) FormState(ctx context.Context, session Session) (map[string]any, error) {
	c, err := s.openedCoordinator(ctx, session)
	if err != nil {
		return nil, err
	}
	return s.formPayload(c), nil
}

func (s *Service) EditField(ctx context.Context, session Session, field string, values []string) (map[string]any, error) {
	if _, ok := schema.Lookup(field); !ok {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unknown field: "+field, nil)
	}
	c, err := s.openedCoordinator(ctx, session)
	if err != nil {
		return nil, err
	}
	c.Edit(field, values)
	return s.formPayload(c), nil
}

func (s *Service) ToggleConfirmField(ctx context.Context, session Session, field string) (map[string]any, error) {
	if _, ok := schema.Lookup(field); !ok {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unknown field: "+field, nil)
	}
	c, err := s.openedCoordinator(ctx, session)
	if err != nil {
		return nil, err
	}
	confirmed := c.ToggleConfirm(field)
	payload := s.formPayload(c)
	payload["confirmed"] = confirmed
	return payload, nil
}

func (s *Service) SaveForm(ctx context.Context, session Session) (map[string]any, error) {
	c, err := s.openedCoordinator(ctx, session)
	if err != nil {
		return nil, err
	}
	if err := c.SaveNow(ctx); err != nil {
		return nil, err
	}
	return s.formPayload(c), nil
}

func (s *Service) ResetForm(ctx context.Context, session Session) (map[string]any, error) {
	c, err := s.openedCoordinator(ctx, session)
	if err != nil {
		return nil, err
	}
	c.Reset(ctx)
	return s.formPayload(c), nil
}

func (s *Service) ImportForm(ctx context.Context, session Session, raw json.RawMessage) (map[string]any, error) {
	snapshot, err := form.ParseSnapshot(raw)
	if err != nil {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "import payload must be an object of answers", nil)
	}
	c, err := s.openedCoordinator(ctx, session)
	if err != nil {
		return nil, err
	}
	c.Import(snapshot)
	return s.formPayload(c), nil
}

func (s *Service) FormSummary(ctx context.Context, session Session) (map[string]any, error) {
	c, err := s.openedCoordinator(ctx, session)
	if err != nil {
		return nil, err
	}
	view := summary.Render(c.Snapshot(), c.Confirmations())
	return summaryPayload(view), nil
}

func (s *Service) ExportForm(ctx context.Context, session Session, formatValue string) (*export.Result, error) {
	format, err := export.ParseFormat(formatValue)
	if err != nil {
		return nil, err
	}
	c, err := s.openedCoordinator(ctx, session)
	if err != nil {
		return nil, err
	}
	return s.exporter.Export(ctx, export.Request{
		Format:    format,
		OwnerName: session.UserName,
		SavedAt:   time.Now(),
	}, c.Snapshot(), c.Confirmations())
}

func (s *Service) FormHistory(ctx context.Context, session Session, limit int) (map[string]any, error) {
	if s.history == nil {
		return nil, domainError(http.StatusServiceUnavailable, "HISTORY_UNAVAILABLE", "Save history is not configured", nil)
	}
	entries, err := s.history.History(ctx, session.UserID, limit)
	if err != nil {
		if err == history.ErrNoHistory {
			return map[string]any{"entries": []map[string]any{}}, nil
		}
		return nil, err
	}
	items := make([]map[string]any, 0, len(entries))
	for _, entry := range entries {
		items = append(items, map[string]any{
			"hash":    entry.Hash,
			"savedAt": entry.SavedAt,
			"when":    entry.When.UTC().Format(time.RFC3339),
			"filled":  entry.Filled,
		})
	}
	return map[string]any{"entries": items}, nil
}

func (s *Service) FormHistorySnapshot(ctx context.Context, session Session, hash string) (map[string]any, error) {
	if s.history == nil {
		return nil, domainError(http.StatusServiceUnavailable, "HISTORY_UNAVAILABLE", "Save history is not configured", nil)
	}
	snapshot, confirmations, err := s.history.SnapshotByHash(ctx, session.UserID, hash)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"hash":          hash,
		"fields":        snapshot,
		"confirmations": confirmations.Names(),
	}, nil
}

// SchemaPayload describes the questionnaire structure plus reference data so
// clients render controls without hardcoding the form.
func (s *Service) SchemaPayload() map[string]any {
	sections := make([]map[string]any, 0)
	for _, section := range schema.Sections() {
		fields := make([]map[string]any, 0, len(section.Fields))
		for _, field := range section.Fields {
			entry := map[string]any{
				"name":  field.Name,
				"label": field.Label,
				"kind":  string(field.Kind),
			}
			if len(field.Options) > 0 {
				entry["options"] = field.Options
			}
			fields = append(fields, entry)
		}
		sections = append(sections, map[string]any{
			"id":     section.ID,
			"title":  section.Title,
			"fields": fields,
		})
	}
	return map[string]any{
		"sections":  sections,
		"countries": schema.Countries(),
		"usStates":  schema.USStates(),
	}
}

func (s *Service) formPayload(c *autosave.Coordinator) map[string]any {
	return map[string]any{
		"state":         c.State().String(),
		"status":        c.Status(),
		"canonicalId":   c.CanonicalID(),
		"fields":        c.Snapshot(),
		"confirmations": c.Confirmations().Names(),
	}
}

func summaryPayload(view summary.View) map[string]any {
	sections := make([]map[string]any, 0, len(view.Sections))
	for _, section := range view.Sections {
		rows := make([]map[string]any, 0, len(section.Fields))
		for _, row := range section.Fields {
			rows = append(rows, map[string]any{
				"name":      row.Name,
				"label":     row.Label,
				"value":     row.Value,
				"filled":    row.Filled,
				"confirmed": row.Confirmed,
			})
		}
		sections = append(sections, map[string]any{
			"id":     section.ID,
			"title":  section.Title,
			"fields": rows,
		})
	}
	return map[string]any{
		"sections": sections,
		"stats": map[string]any{
			"totalFields": view.Stats.TotalFields,
			"filled":      view.Stats.Filled,
			"empty":       view.Stats.Empty,
			"confirmed":   view.Stats.Confirmed,
		},
	}
}

// requireAdmin re-checks the allow-list on every admin call rather than
// trusting the minted flag alone. The flag still has to be set: it encodes
// the verified-email requirement from issuance, which the session does not
// carry separately.
func (s *Service) requireAdmin(session Session) error {
	if session.IsAnonymous || session.Email == "" || !session.IsAdmin || !s.admins.Allowed(session.Email) {
		return domainError(http.StatusForbidden, "FORBIDDEN", "Admin access required", nil)
	}
	return nil
}

func (s *Service) AdminListSubmissions(ctx context.Context, session Session) (map[string]any, error) {
	if err := s.requireAdmin(session); err != nil {
		return nil, err
	}
	items, err := s.store.ListAllSubmissions(ctx)
	if err != nil {
		return nil, err
	}
	rows := make([]map[string]any, 0, len(items))
	for _, item := range items {
		rows = append(rows, submissionRow(item))
	}
	return map[string]any{"submissions": rows}, nil
}

func (s *Service) AdminStats(ctx context.Context, session Session) (map[string]any, error) {
	if err := s.requireAdmin(session); err != nil {
		return nil, err
	}
	stats, err := s.store.SubmissionStats(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"total":           stats.Total,
		"modifiedLast24h": stats.ModifiedLast24h,
	}, nil
}

func (s *Service) AdminSearch(ctx context.Context, session Session, q string, limit, offset int) (map[string]any, error) {
	if err := s.requireAdmin(session); err != nil {
		return nil, err
	}
	if s.search != nil {
		resp := s.search.Search(search.Query{Text: q, Limit: limit, Offset: offset})
		results := make([]map[string]any, 0, len(resp.Results))
		for _, hit := range resp.Results {
			results = append(results, map[string]any{
				"id":         hit.ID,
				"ownerId":    hit.OwnerID,
				"ownerEmail": hit.OwnerEmail,
				"ownerName":  hit.OwnerName,
				"snippet":    hit.Snippet,
				"savedAt":    hit.SavedAt,
			})
		}
		return map[string]any{"results": results, "total": resp.Total, "query": resp.Query}, nil
	}

	items, err := s.store.SearchSubmissions(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	results := make([]map[string]any, 0, len(items))
	for _, item := range items {
		results = append(results, submissionRow(item))
	}
	return map[string]any{"results": results, "total": len(results), "query": q}, nil
}

func (s *Service) AdminDeleteSubmission(ctx context.Context, session Session, id string) error {
	if err := s.requireAdmin(session); err != nil {
		return err
	}
	if err := s.store.DeleteSubmission(ctx, id); err != nil {
		return err
	}
	if s.search != nil {
		s.search.DeleteSubmission(id)
	}
	return nil
}

// AdminDeleteAll wipes every stored submission. When object storage is
// configured the full data set is archived first; an archive failure aborts
// the wipe.
func (s *Service) AdminDeleteAll(ctx context.Context, session Session) (map[string]any, error) {
	if err := s.requireAdmin(session); err != nil {
		return nil, err
	}

	archived := ""
	if s.archive != nil {
		bundle, err := s.exportBundle(ctx)
		if err != nil {
			return nil, err
		}
		archived, err = s.archive.Upload(ctx, "pre-wipe", bundle, "application/json")
		if err != nil {
			return nil, fmt.Errorf("archive before wipe: %w", err)
		}
	}

	deleted, err := s.store.DeleteAllSubmissions(ctx)
	if err != nil {
		return nil, err
	}
	if s.search != nil {
		s.search.DeleteAll()
	}

	payload := map[string]any{"deleted": deleted}
	if archived != "" {
		payload["archived"] = archived
	}
	return payload, nil
}

// AdminExportAll bundles every submission as JSON, uploading a copy to
// object storage when configured.
func (s *Service) AdminExportAll(ctx context.Context, session Session) ([]byte, map[string]any, error) {
	if err := s.requireAdmin(session); err != nil {
		return nil, nil, err
	}
	bundle, err := s.exportBundle(ctx)
	if err != nil {
		return nil, nil, err
	}
	meta := map[string]any{}
	if s.archive != nil {
		objectName, err := s.archive.Upload(ctx, "exports", bundle, "application/json")
		if err != nil {
			log.Printf("archive admin export: %v", err)
		} else {
			meta["archived"] = objectName
		}
	}
	return bundle, meta, nil
}

func (s *Service) exportBundle(ctx context.Context) ([]byte, error) {
	items, err := s.store.ListAllSubmissions(ctx)
	if err != nil {
		return nil, err
	}
	rows := make([]map[string]any, 0, len(items))
	for _, item := range items {
		row := submissionRow(item)
		row["fields"] = item.Fields
		row["confirmations"] = item.Confirmations.Names()
		rows = append(rows, row)
	}
	return json.MarshalIndent(map[string]any{
		"exportedAt":  time.Now().UTC().Format(time.RFC3339),
		"submissions": rows,
	}, "", "  ")
}

func submissionRow(item store.Submission) map[string]any {
	filled := 0
	for _, value := range item.Fields {
		if form.IsFilled(value) {
			filled++
		}
	}
	return map[string]any{
		"id":           item.ID,
		"ownerId":      item.OwnerID,
		"ownerEmail":   item.OwnerEmail,
		"ownerName":    item.OwnerName,
		"filled":       filled,
		"serverTs":     item.ServerTS.UTC().Format(time.RFC3339),
		"lastModified": strings.TrimSpace(item.LastModifiedISO),
	}
}

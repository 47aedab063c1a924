package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/docketwatch/docketwatch/internal/billing"
	"github.com/docketwatch/docketwatch/internal/database"
	"github.com/docketwatch/docketwatch/internal/documents"
	"github.com/docketwatch/docketwatch/internal/filings"
	"github.com/docketwatch/docketwatch/internal/models"
	"github.com/docketwatch/docketwatch/internal/notify"
	"github.com/docketwatch/docketwatch/internal/pacer"
)

// PACERHandler exposes the PACER integration over the operational API:
// credential management, authentication, searches, document fetches, and the
// filing analysis pipeline.
type PACERHandler struct {
	authenticator *pacer.Authenticator
	searchClient  *pacer.SearchClient
	fetcher       *documents.Fetcher
	analyzer      *filings.Analyzer
	engine        *notify.Engine
	credentials   *database.PostgresCredentialRepository
	cipher        *pacer.Cipher
	logger        *slog.Logger
}

// NewPACERHandler creates the PACER integration handler.
func NewPACERHandler(authenticator *pacer.Authenticator, searchClient *pacer.SearchClient, fetcher *documents.Fetcher, analyzer *filings.Analyzer, engine *notify.Engine, credentials *database.PostgresCredentialRepository, cipher *pacer.Cipher, logger *slog.Logger) *PACERHandler {
	return &PACERHandler{
		authenticator: authenticator,
		searchClient:  searchClient,
		fetcher:       fetcher,
		analyzer:      analyzer,
		engine:        engine,
		credentials:   credentials,
		cipher:        cipher,
		logger:        logger,
	}
}

// CredentialRequest is the save-credential body. The secret arrives in
// plaintext over TLS and is encrypted before it touches storage.
type CredentialRequest struct {
	Identity     string  `json:"identity"`
	Username     string  `json:"username"`
	Password     string  `json:"password"`
	ClientCode   string  `json:"client_code"`
	Environment  string  `json:"environment"`
	DailyLimit   float64 `json:"daily_limit"`
	MonthlyLimit float64 `json:"monthly_limit"`
}

// SaveCredential handles POST /api/credentials
func (h *PACERHandler) SaveCredential(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req CredentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Identity == "" || req.Username == "" || req.Password == "" {
		http.Error(w, "identity, username, and password are required", http.StatusBadRequest)
		return
	}

	env := models.Environment(req.Environment)
	if env == "" {
		env = models.EnvironmentProduction
	}
	if env != models.EnvironmentProduction && env != models.EnvironmentQA {
		http.Error(w, "environment must be 'production' or 'qa'", http.StatusBadRequest)
		return
	}

	encrypted, err := h.cipher.Encrypt([]byte(req.Password))
	if err != nil {
		h.logger.Error("failed to encrypt credential", "error", err)
		http.Error(w, "Failed to store credential", http.StatusInternalServerError)
		return
	}

	cred := models.Credential{
		Identity:        req.Identity,
		Username:        req.Username,
		EncryptedSecret: encrypted,
		ClientCode:      req.ClientCode,
		Environment:     env,
		DailyLimit:      req.DailyLimit,
		MonthlyLimit:    req.MonthlyLimit,
		Active:          true,
	}

	if err := h.credentials.Save(r.Context(), cred); err != nil {
		h.logger.Error("failed to save credential", "error", err)
		http.Error(w, "Failed to store credential", http.StatusInternalServerError)
		return
	}

	// Re-saving invalidates any cached session for the identity.
	h.authenticator.Invalidate(r.Context(), req.Identity)

	h.logger.Info("credential saved", "identity", req.Identity)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"identity":     req.Identity,
		"verification": models.VerificationPending,
	})
}

// AuthenticateRequest is the authenticate body.
type AuthenticateRequest struct {
	Identity     string `json:"identity"`
	OTP          string `json:"otp,omitempty"`
	ForceRefresh bool   `json:"force_refresh,omitempty"`
}

// Authenticate handles POST /api/pacer/authenticate
func (h *PACERHandler) Authenticate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req AuthenticateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	authReq, ok := h.buildAuthRequest(w, r, req.Identity)
	if !ok {
		return
	}
	authReq.OTP = req.OTP
	authReq.ForceRefresh = req.ForceRefresh

	outcome, err := h.authenticator.Authenticate(r.Context(), authReq)
	if err != nil && outcome.Status == pacer.AuthTransientError {
		h.logger.Error("authentication failed", "identity", req.Identity, "error", err)
	}

	switch outcome.Status {
	case pacer.AuthSuccess:
		h.setVerification(r, req.Identity, models.VerificationVerified)
	case pacer.AuthInvalidCredentials:
		h.setVerification(r, req.Identity, models.VerificationFailed)
	}

	writeJSON(w, authStatusCode(outcome.Status), outcome)
}

// Logout handles POST /api/pacer/logout
func (h *PACERHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Identity string `json:"identity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Identity == "" {
		http.Error(w, "identity is required", http.StatusBadRequest)
		return
	}

	h.authenticator.Logout(r.Context(), req.Identity)
	writeJSON(w, http.StatusOK, map[string]interface{}{"logged_out": true})
}

// SearchRequest is the search body.
type SearchRequest struct {
	Identity string               `json:"identity"`
	Criteria pacer.SearchCriteria `json:"criteria"`
	Page     int                  `json:"page,omitempty"`
	PageSize int                  `json:"page_size,omitempty"`
}

// SearchCases handles POST /api/search/cases
func (h *PACERHandler) SearchCases(w http.ResponseWriter, r *http.Request) {
	h.search(w, r, pacer.SearchTypeCases)
}

// SearchParties handles POST /api/search/parties
func (h *PACERHandler) SearchParties(w http.ResponseWriter, r *http.Request) {
	h.search(w, r, pacer.SearchTypeParties)
}

func (h *PACERHandler) search(w http.ResponseWriter, r *http.Request, st pacer.SearchType) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	token, ok := h.sessionToken(w, r, req.Identity)
	if !ok {
		return
	}

	var result pacer.SearchResult
	var err error
	if st == pacer.SearchTypeCases {
		result, err = h.searchClient.SearchCases(r.Context(), token, req.Identity, req.Criteria, req.Page, req.PageSize)
	} else {
		result, err = h.searchClient.SearchParties(r.Context(), token, req.Identity, req.Criteria, req.Page, req.PageSize)
	}
	if err != nil {
		h.writePACERError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// FetchDocumentRequest is the document fetch body.
type FetchDocumentRequest struct {
	Identity       string `json:"identity"`
	URL            string `json:"url"`
	CaseID         string `json:"case_id"`
	DocumentID     string `json:"document_id"`
	Court          string `json:"court,omitempty"`
	EstimatedPages int    `json:"estimated_pages,omitempty"`
	SaveToDisk     bool   `json:"save_to_disk,omitempty"`
}

// FetchDocument handles POST /api/documents/fetch
func (h *PACERHandler) FetchDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req FetchDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.URL == "" || req.DocumentID == "" {
		http.Error(w, "url and document_id are required", http.StatusBadRequest)
		return
	}

	token, ok := h.sessionToken(w, r, req.Identity)
	if !ok {
		return
	}

	result, err := h.fetcher.Fetch(r.Context(), token, documents.FetchRequest{
		URL:            req.URL,
		CaseID:         req.CaseID,
		DocumentID:     req.DocumentID,
		Identity:       req.Identity,
		Court:          req.Court,
		EstimatedPages: req.EstimatedPages,
		SaveToDisk:     req.SaveToDisk,
	})
	if err != nil {
		h.writePACERError(w, err)
		return
	}

	// Content stays server-side; the response carries the metadata and the
	// ledger entry.
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"document": result.Document,
		"record":   result.Record,
	})
}

// AnalyzeFilingRequest is the analyze body.
type AnalyzeFilingRequest struct {
	CaseID   string    `json:"case_id,omitempty"`
	Court    string    `json:"court,omitempty"`
	Filename string    `json:"filename"`
	Title    string    `json:"title"`
	Content  string    `json:"content"`
	FiledAt  time.Time `json:"filed_at,omitempty"`
	Notify   bool      `json:"notify"`
}

// AnalyzeFiling handles POST /api/filings/analyze. It runs the full
// pipeline and, when requested, dispatches matching notifications.
func (h *PACERHandler) AnalyzeFiling(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req AnalyzeFilingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Title == "" && req.Content == "" && req.Filename == "" {
		http.Error(w, "filing content is required", http.StatusBadRequest)
		return
	}

	filing := models.Filing{
		ID:       uuid.NewString(),
		CaseID:   req.CaseID,
		Court:    req.Court,
		Filename: req.Filename,
		Title:    req.Title,
		Content:  req.Content,
		FiledAt:  req.FiledAt,
	}

	analysis := h.analyzer.Analyze(r.Context(), filing)

	var deliveries []models.Delivery
	if req.Notify {
		var err error
		deliveries, err = h.engine.Notify(r.Context(), filing, analysis)
		if err != nil {
			h.logger.Error("notification dispatch failed", "filing_id", filing.ID, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"filing_id":  filing.ID,
		"analysis":   analysis,
		"deliveries": deliveries,
	})
}

// buildAuthRequest loads and decrypts the stored credential for an identity.
func (h *PACERHandler) buildAuthRequest(w http.ResponseWriter, r *http.Request, identity string) (pacer.AuthRequest, bool) {
	if identity == "" {
		http.Error(w, "identity is required", http.StatusBadRequest)
		return pacer.AuthRequest{}, false
	}

	cred, err := h.credentials.Get(r.Context(), identity)
	if err != nil {
		h.logger.Error("failed to load credential", "identity", identity, "error", err)
		http.Error(w, "Failed to load credential", http.StatusInternalServerError)
		return pacer.AuthRequest{}, false
	}
	if cred == nil || !cred.Active {
		http.Error(w, "Credential not found", http.StatusNotFound)
		return pacer.AuthRequest{}, false
	}

	secret, err := h.cipher.Decrypt(cred.EncryptedSecret)
	if err != nil {
		h.logger.Error("failed to decrypt credential", "identity", identity, "error", err)
		http.Error(w, "Stored credential is unreadable", http.StatusInternalServerError)
		return pacer.AuthRequest{}, false
	}

	return pacer.AuthRequest{
		Identity:   identity,
		Username:   cred.Username,
		Password:   string(secret),
		ClientCode: cred.ClientCode,
	}, true
}

// sessionToken authenticates with the stored credential and returns the
// session token, re-using the cache when possible.
func (h *PACERHandler) sessionToken(w http.ResponseWriter, r *http.Request, identity string) (string, bool) {
	authReq, ok := h.buildAuthRequest(w, r, identity)
	if !ok {
		return "", false
	}

	outcome, err := h.authenticator.Authenticate(r.Context(), authReq)
	if err != nil && outcome.Status == pacer.AuthTransientError {
		h.logger.Error("authentication failed", "identity", identity, "error", err)
	}

	if outcome.Status != pacer.AuthSuccess {
		writeJSON(w, authStatusCode(outcome.Status), outcome)
		return "", false
	}

	return outcome.Token, true
}

func (h *PACERHandler) setVerification(r *http.Request, identity string, status models.VerificationStatus) {
	if err := h.credentials.SetVerification(r.Context(), identity, status); err != nil {
		h.logger.Warn("failed to update verification status", "identity", identity, "error", err)
	}
}

func (h *PACERHandler) writePACERError(w http.ResponseWriter, err error) {
	switch e := err.(type) {
	case *billing.BudgetExceededError:
		writeJSON(w, http.StatusPaymentRequired, map[string]interface{}{
			"error": e.Reason,
			"cost":  e.Cost,
		})
	default:
		h.logger.Error("pacer operation failed", "error", err)
		http.Error(w, "Operation failed", http.StatusBadGateway)
	}
}

func authStatusCode(status pacer.AuthStatus) int {
	switch status {
	case pacer.AuthSuccess:
		return http.StatusOK
	case pacer.AuthMFARequired:
		return http.StatusUnauthorized
	case pacer.AuthInvalidCredentials:
		return http.StatusUnauthorized
	case pacer.AuthRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusBadGateway
	}
}

package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/yurifrl/dkbparse/pkg/config"
	"github.com/yurifrl/dkbparse/pkg/csv"
	"github.com/yurifrl/dkbparse/pkg/executors"
	"github.com/yurifrl/dkbparse/pkg/models"
	"github.com/yurifrl/dkbparse/pkg/parser"
	"github.com/yurifrl/dkbparse/pkg/service"
	"github.com/yurifrl/dkbparse/pkg/ynab"
)

const maxUpload = 32 << 20

// Server parses uploaded DKB statements over HTTP
type Server struct {
	config       *config.Config
	logger       *log.Logger
	mux          *http.ServeMux
	processor    *service.Processor
	transactions sync.Map
	routes       sync.Once
}

// New creates a new HTTP server
func New(config *config.Config, logger *log.Logger, processor *service.Processor) *Server {
	return &Server{
		config:    config,
		logger:    logger,
		mux:       http.NewServeMux(),
		processor: processor,
	}
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	s.routes.Do(s.setupRoutes)
	return s.mux
}

// Start starts the HTTP server
func (s *Server) Start(addr string) error {
	return http.ListenAndServe(addr, s.Handler())
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/healthz", s.withLogging(s.handleHealth))
	s.mux.HandleFunc("/api/parse", s.withLogging(s.handleParse))
	s.mux.HandleFunc("/api/files/", s.withLogging(s.handleFiles))
	s.mux.HandleFunc("/api/budgets", s.withLogging(s.handleBudgets))
	s.mux.HandleFunc("/api/budgets/", s.withLogging(s.handleBudgetAccounts))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}); err != nil {
		s.logger.Warn("failed to write json response", "err", err)
	}
}

func (s *Server) handleBudgets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, r, http.StatusMethodNotAllowed, "method not allowed", nil)
		return
	}

	token := r.URL.Query().Get("token")
	if token == "" {
		s.respondError(w, r, http.StatusBadRequest, "token required", nil)
		return
	}

	budgets, err := ynab.New(token).Budget().GetBudgets()
	if err != nil {
		s.respondError(w, r, http.StatusBadGateway, "failed to fetch budgets", err)
		return
	}
	s.logger.Info("budgets response", "budgets_count", len(budgets))

	if err := s.writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"budgets": budgets,
	}); err != nil {
		s.logger.Warn("failed to write json response", "err", err)
	}
}

func (s *Server) handleBudgetAccounts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, r, http.StatusMethodNotAllowed, "method not allowed", nil)
		return
	}

	budgetID := strings.TrimPrefix(r.URL.Path, "/api/budgets/")
	if budgetID == "" {
		s.respondError(w, r, http.StatusBadRequest, "budget_id required", nil)
		return
	}

	token := r.URL.Query().Get("token")
	if token == "" {
		s.respondError(w, r, http.StatusBadRequest, "token required", nil)
		return
	}

	snapshot, err := ynab.New(token).Account().GetAccounts(budgetID, nil)
	if err != nil {
		s.respondError(w, r, http.StatusBadGateway, "failed to fetch accounts", err)
		return
	}

	var accounts any = []any{}
	if snapshot != nil && snapshot.Accounts != nil {
		accounts = snapshot.Accounts
	}
	s.logger.Info("accounts response", "budget_id", budgetID)

	if err := s.writeJSON(w, http.StatusOK, map[string]any{
		"status":   "success",
		"accounts": accounts,
	}); err != nil {
		s.logger.Warn("failed to write json response", "err", err)
	}
}

// Transaction is the JSON form of a parsed transaction.
type Transaction struct {
	Account   string `json:"account"`
	Statement string `json:"statement"`
	Number    string `json:"transaction"`
	Booked    string `json:"booked"`
	Valued    string `json:"valued"`
	Type      string `json:"type"`
	Value     string `json:"value"`
	Payee     string `json:"payee"`
	Comment   string `json:"comment"`
	Currency  string `json:"currency,omitempty"`
	Label     string `json:"label,omitempty"`
}

func toJSON(t *models.Transaction) Transaction {
	return Transaction{
		Account:   t.Account,
		Statement: t.StatementID(),
		Number:    t.NumberID(),
		Booked:    t.Booked.Format("2006-01-02"),
		Valued:    t.Valued.Format("2006-01-02"),
		Type:      t.Type,
		Value:     t.Value.StringFixed(2),
		Payee:     t.Payee,
		Comment:   t.Comment,
		Currency:  t.Currency,
		Label:     t.Label,
	}
}

// handleParse takes a statement upload named like the bank's download
// ("Kontoauszug_..." or "Kreditkartenabrechnung_...", pdf or layout txt).
// With token, budget_id and account_id it also reconciles against YNAB.
func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, r, http.StatusMethodNotAllowed, "method not allowed", nil)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUpload)

	file, header, err := r.FormFile("statement")
	if err != nil {
		s.respondError(w, r, http.StatusBadRequest, "failed to read file", err)
		return
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	if _, ok := parser.DetectKind(name); !ok {
		s.respondError(w, r, http.StatusBadRequest, "not a DKB statement file name", nil)
		return
	}

	dir, err := os.MkdirTemp("", "dkbparse-")
	if err != nil {
		s.respondError(w, r, http.StatusInternalServerError, "failed to store upload", err)
		return
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, name)
	if err := saveUpload(path, file); err != nil {
		s.respondError(w, r, http.StatusInternalServerError, "failed to store upload", err)
		return
	}

	res := s.processor.ProcessFiles(r.Context(), []string{path})
	if len(res.Failures) > 0 {
		s.respondError(w, r, http.StatusUnprocessableEntity, "failed to process file", res.Failures[0].Err)
		return
	}

	filename := strings.TrimSuffix(name, filepath.Ext(name)) + ".csv"
	s.transactions.Store(filename, res.Transactions)

	txs := make([]Transaction, len(res.Transactions))
	for i, t := range res.Transactions {
		txs[i] = toJSON(t)
	}

	body := map[string]any{
		"status":       "success",
		"file":         filename,
		"statement":    res.Statements[0].String(),
		"transactions": txs,
	}
	if len(res.Discrepancies) > 0 {
		body["discrepancy"] = res.Discrepancies[0].String()
	}

	token := r.FormValue("token")
	budgetID := r.FormValue("budget_id")
	accountID := r.FormValue("account_id")
	if token != "" && budgetID != "" && accountID != "" {
		remoteTxs, err := ynab.New(token).Transaction().GetTransactionsByAccount(budgetID, accountID, nil)
		if err != nil {
			s.respondError(w, r, http.StatusBadGateway, "failed to fetch remote transactions", err)
			return
		}
		report := executors.BuildReport(res.Transactions, remoteTxs, s.config.UseCustomID)
		lines := make([]string, 0, len(report.Items))
		for _, entry := range report.Items {
			prefix := "="
			if entry.Status == executors.ToAdd {
				prefix = "+"
			}
			lines = append(lines, fmt.Sprintf("%s %s | %-30.30s | %s EUR | %s", prefix,
				entry.Local.Date(), entry.Local.Description(), entry.Local.Value.StringFixed(2), executors.CustomID(entry.Local)))
		}
		body["lines"] = lines
		body["to_add"] = report.MissingCount()
		body["in_sync"] = report.InSyncCount()
		s.logger.Info("reconciliation complete", "file", name, "to_add", report.MissingCount(), "in_sync", report.InSyncCount())
	}

	if err := s.writeJSON(w, http.StatusOK, body); err != nil {
		s.logger.Warn("failed to write json response", "err", err)
	}
}

func saveUpload(path string, src io.Reader) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// handleFiles serves the CSV of a previously parsed statement.
func (s *Server) handleFiles(w http.ResponseWriter, r *http.Request) {
	filename := strings.TrimPrefix(r.URL.Path, "/api/files/")
	if filename == "" {
		s.respondError(w, r, http.StatusBadRequest, "filename required", nil)
		return
	}

	value, ok := s.transactions.Load(filename)
	if !ok {
		s.respondError(w, r, http.StatusNotFound, "file not found", nil)
		return
	}
	txs, ok := value.([]*models.Transaction)
	if !ok {
		s.respondError(w, r, http.StatusInternalServerError, "internal type assertion error", nil)
		return
	}

	data, err := csv.Create(txs, csv.Order(s.config.Sort), nil)
	if err != nil {
		s.respondError(w, r, http.StatusInternalServerError, "failed to render csv", err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	if _, err := w.Write(data); err != nil {
		s.logger.Warn("failed to write csv response", "err", err)
	}
}

// --- helpers ---

// writeJSON encodes v as JSON with the given status and writes headers.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

// respondError logs the error and returns a minimal JSON error body.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, status int, message string, err error) {
	if err != nil {
		s.logger.Warn("request error", "status", status, "msg", message, "err", err, "method", r.Method, "path", r.URL.Path)
	} else {
		s.logger.Warn("request error", "status", status, "msg", message, "method", r.Method, "path", r.URL.Path)
	}
	body := map[string]string{
		"status": "error",
		"error":  message,
	}
	if err != nil {
		body["detail"] = err.Error()
	}
	_ = s.writeJSON(w, status, body)
}

// withLogging wraps a handler to log request start/end and recover panics.
func (s *Server) withLogging(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.logger.Debug("http request", "method", r.Method, "path", r.URL.Path, "remote", r.RemoteAddr)
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", "panic", rec, "method", r.Method, "path", r.URL.Path)
				s.respondError(w, r, http.StatusInternalServerError, "internal server error", fmt.Errorf("panic: %v", rec))
			}
		}()
		next(w, r)
	}
}

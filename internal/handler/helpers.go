package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/boddenberg/alugueis-admin-go/internal/domain"

	"go.uber.org/zap"
)

// ============================================================
// Shared helper functions
// ============================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Flash is a one-shot alert shown on the next rendered page.
type Flash struct {
	Kind    string // success, danger, warning, info
	Message string
}

func successFlash(msg string) Flash { return Flash{Kind: "success", Message: msg} }
func errorFlash(msg string) Flash   { return Flash{Kind: "danger", Message: msg} }

// SessionExpiredText is shown on the login page after a forced logout.
const SessionExpiredText = "Sua sessão expirou. Faça login novamente."

// userMessage maps a domain error to the text shown in an alert. prefix is
// the fixed per-operation text ("Erro ao criar imóvel"); the backend detail
// is appended when one exists.
func userMessage(err error, prefix string) string {
	var validation *domain.ErrValidation
	var forbidden *domain.ErrForbidden
	var unauthorized *domain.ErrUnauthorized
	var network *domain.ErrNetwork
	var external *domain.ErrExternalService
	var notFound *domain.ErrNotFound
	var load *domain.ErrLoad
	var format *domain.ErrUnexpectedFormat
	var inFlight *domain.ErrInFlight
	var invalidCreds *domain.ErrInvalidCredentials
	var server *domain.ErrServer

	switch {
	case errors.As(err, &validation), errors.As(err, &inFlight),
		errors.As(err, &invalidCreds), errors.As(err, &server):
		return err.Error()
	case errors.As(err, &forbidden):
		if forbidden.Message != "" {
			return forbidden.Message
		}
		return "Você não tem permissão para esta operação."
	case errors.As(err, &unauthorized):
		return SessionExpiredText
	case errors.As(err, &load), errors.As(err, &format):
		return err.Error()
	case errors.As(err, &network):
		return network.Error()
	case errors.As(err, &notFound):
		return prefix + ": registro não encontrado"
	case errors.As(err, &external):
		if d := strings.TrimSpace(external.Detail()); d != "" {
			return prefix + ": " + d
		}
	}
	return prefix
}

// handleServiceError logs err at a level matching its kind. It returns true
// when the session was logged out by the backend, in which case the caller
// must redirect to the login page.
func handleServiceError(err error, logger *zap.Logger) (loggedOut bool) {
	var validation *domain.ErrValidation
	var unauthorized *domain.ErrUnauthorized
	var network *domain.ErrNetwork
	var external *domain.ErrExternalService

	switch {
	case errors.As(err, &unauthorized):
		logger.Warn("backend rejected the session token")
		return true
	case errors.As(err, &validation):
		logger.Debug("validation error", zap.String("field", validation.Field), zap.String("error", err.Error()))
	case errors.As(err, &network):
		logger.Error("backend unreachable", zap.Error(err))
	case errors.As(err, &external):
		logger.Warn("backend error", zap.Int("status", external.Status), zap.Error(err))
	default:
		logger.Warn("request failed", zap.Error(err))
	}
	return false
}

func formInt(r *http.Request, key string) int {
	v, err := strconv.Atoi(strings.TrimSpace(r.FormValue(key)))
	if err != nil {
		return 0
	}
	return v
}

// formFloat accepts both "1234.56" and the pt-BR "1.234,56".
func formFloat(r *http.Request, key string) (float64, bool) {
	s := strings.TrimSpace(r.FormValue(key))
	if s == "" {
		return 0, false
	}
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func formFloatPtr(r *http.Request, key string) *float64 {
	if f, ok := formFloat(r, key); ok {
		return &f
	}
	return nil
}

// formBoolPtr reads a checkbox. Forms carry a hidden "<key>_present" field
// so an unchecked box can be told apart from an absent one.
func formBoolPtr(r *http.Request, key string) *bool {
	if r.FormValue(key+"_present") == "" && r.FormValue(key) == "" {
		return nil
	}
	b := r.FormValue(key) == "on" || r.FormValue(key) == "true" || r.FormValue(key) == "1"
	return &b
}

func pathID(raw string) (int, error) {
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, &domain.ErrValidation{Field: "id", Message: "ID inválido"}
	}
	return id, nil
}

// ABOUTME: Mapping page handlers: upload both tables, preview the join, download the CSV export
// ABOUTME: Each export appends an audit entry and is optionally archived to object storage

package webui

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/2389/labmap/internal/auth"
	"github.com/2389/labmap/internal/mapping"
	"github.com/2389/labmap/internal/resultcache"
	"github.com/2389/labmap/internal/store"
	"github.com/2389/labmap/internal/table"
)

// Multipart field names of the upload form.
const (
	laboratoriesField = "labos_file"
	productsField     = "produits_file"
)

const defaultMaxUpload = 32 << 20

var fieldLabels = map[string]string{
	laboratoriesField: "Fichier LABOS",
	productsField:     "Fichier PRODUITS",
}

func (u *UI) handleMappingPage(w http.ResponseWriter, r *http.Request) {
	r, _ = u.ensureCSRFToken(w, r)
	u.renderMappingPage(w, r, http.StatusOK, mappingData{})
}

func (u *UI) handleMappingUpload(w http.ResponseWriter, r *http.Request) {
	limit := u.config.MaxUploadBytes
	if limit <= 0 {
		limit = defaultMaxUpload
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(limit); err != nil {
		r, _ = u.ensureCSRFToken(w, r)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			u.renderMappingPage(w, r, http.StatusRequestEntityTooLarge, mappingData{
				Errors: []fileError{{Message: fmt.Sprintf("Les fichiers dépassent la taille maximale (%d Mo).", limit>>20)}},
			})
			return
		}
		u.renderMappingPage(w, r, http.StatusBadRequest, mappingData{
			Errors: []fileError{{Message: "Formulaire invalide."}},
		})
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	if !u.validateCSRF(r) {
		r, _ = u.ensureCSRFToken(w, r)
		u.renderMappingPage(w, r, http.StatusForbidden, mappingData{
			Errors: []fileError{{Message: "Requête invalide, veuillez réessayer."}},
		})
		return
	}
	r, _ = u.ensureCSRFToken(w, r)

	var data mappingData
	labs, labErr := u.loadUpload(r, laboratoriesField, table.LaboratoryColumns)
	if labErr != nil {
		data.Errors = append(data.Errors, *labErr)
	}
	products, prodErr := u.loadUpload(r, productsField, table.ProductColumns)
	if prodErr != nil {
		data.Errors = append(data.Errors, *prodErr)
	}
	if labs != nil {
		data.Laboratories = labs.Head(u.config.PreviewRows)
		data.LaboratoryRows = labs.Len()
	}
	if products != nil {
		data.Products = products.Head(u.config.PreviewRows)
		data.ProductRows = products.Len()
	}
	if len(data.Errors) > 0 {
		u.renderMappingPage(w, r, http.StatusUnprocessableEntity, data)
		return
	}

	result, err := mapping.Join(products, labs)
	if err != nil {
		u.logger.Warn("join failed", "error", err)
		data.Errors = append(data.Errors, fileError{File: "mapping", Message: err.Error()})
		u.renderMappingPage(w, r, http.StatusUnprocessableEntity, data)
		return
	}

	user := getUserFromContext(r)
	token, err := u.results.Put(user.UID, result)
	if err != nil {
		u.logger.Error("failed to cache mapping result", "error", err)
		data.Errors = append(data.Errors, fileError{Message: "Une erreur est survenue."})
		u.renderMappingPage(w, r, http.StatusInternalServerError, data)
		return
	}

	data.Result = result.Head(u.config.PreviewRows)
	data.Summary = mapping.Stats(result)
	data.Token = token

	u.logger.Info("mapping completed",
		"email", user.Email,
		"products", products.Len(),
		"laboratories", labs.Len(),
		"rows", data.Summary.Rows,
		"unassigned", data.Summary.Unassigned,
	)
	u.renderMappingPage(w, r, http.StatusOK, data)
}

// loadUpload reads, parses and normalizes one uploaded file. Failures are
// returned as a message for the page rather than an error.
func (u *UI) loadUpload(r *http.Request, field string, required []string) (*table.Table, *fileError) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, &fileError{File: fieldLabels[field], Message: "Fichier manquant."}
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		return nil, &fileError{File: header.Filename, Message: fmt.Sprintf("Lecture impossible : %v", err)}
	}

	parsed, err := table.Parse(header.Filename, raw)
	if err != nil {
		return nil, &fileError{File: header.Filename, Message: err.Error()}
	}

	normalized, err := table.Normalize(parsed, required)
	if err != nil {
		fe := &fileError{File: header.Filename, Message: err.Error()}
		var missing *table.MissingColumnsError
		if errors.As(err, &missing) {
			fe.Message = "Colonnes obligatoires manquantes."
			fe.Missing = missing.Missing
		}
		// the parsed table is still shown so the user can see its columns
		return parsed, fe
	}
	return normalized, nil
}

// handleExport streams a cached mapping result as CSV
func (u *UI) handleExport(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)
	token := r.PathValue("token")

	entry, err := u.results.Get(token, user.UID)
	if err != nil {
		if !errors.Is(err, resultcache.ErrNotFound) {
			u.logger.Error("failed to load mapping result", "error", err)
		}
		http.Error(w, "Résultat introuvable ou expiré, relancez le mapping.", http.StatusNotFound)
		return
	}

	body, err := mapping.Encode(entry.Result)
	if err != nil {
		u.logger.Error("failed to encode export", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	now := u.now()
	filename := mapping.ExportFilename(now)

	sess := auth.SessionFromContext(r.Context())
	if err := u.store.AppendAuditLog(r.Context(), &store.AuditEntry{
		UserEmail: sess.Email(),
		Action:    store.AuditMappingExport,
		Timestamp: now,
		Detail:    map[string]any{"filename": filename, "rows": entry.Result.Len()},
	}); err != nil {
		u.logger.Error("failed to append audit log", "email", sess.Email(), "error", err)
	}

	if location, err := u.archiver.Archive(r.Context(), filename, body); err != nil {
		u.logger.Error("failed to archive export", "filename", filename, "error", err)
	} else if location != "" {
		u.logger.Debug("export archived", "location", location)
	}

	w.Header().Set("Content-Type", mapping.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

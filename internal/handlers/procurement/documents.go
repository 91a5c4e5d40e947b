package procurement

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"seaprocure/internal/database"
	"seaprocure/internal/models"
	"seaprocure/internal/response"
	"seaprocure/internal/storage"
	"seaprocure/internal/validation"
)

const (
	ownerBanking      = "banking"
	ownerPaymentProof = "payment-proof"

	// DocumentsField is the multipart field carrying attached files.
	DocumentsField = "documents"
)

// form is a parsed upload request: text fields plus optional files.
type form struct {
	values map[string]string
	files  []*multipart.FileHeader
}

func (f form) get(key string) string { return strings.TrimSpace(f.values[key]) }

func (f form) float(key string) float64 {
	v, err := strconv.ParseFloat(f.get(key), 64)
	if err != nil {
		return 0
	}
	return v
}

// parseForm accepts multipart/form-data or a flat JSON object.
func parseForm(w http.ResponseWriter, r *http.Request) (form, error) {
	f := form{values: map[string]string{}}
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var raw map[string]interface{}
		if err := response.DecodeBody(r, &raw); err != nil {
			return f, err
		}
		for k, v := range raw {
			switch t := v.(type) {
			case string:
				f.values[k] = t
			case float64:
				f.values[k] = strconv.FormatFloat(t, 'f', -1, 64)
			case nil:
			default:
				f.values[k] = fmt.Sprint(t)
			}
		}
		return f, nil
	}

	maxBody := int64(validation.MaxFiles*validation.MaxFileSize) + 1<<20
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return f, err
	}
	for k, vs := range r.MultipartForm.Value {
		if len(vs) > 0 {
			f.values[k] = vs[0]
		}
	}
	f.files = r.MultipartForm.File[DocumentsField]
	return f, nil
}

func validateFiles(ve *validation.ValidationErrors, files []*multipart.FileHeader) {
	if len(files) > validation.MaxFiles {
		ve.Add(DocumentsField, fmt.Sprintf("at most %d files are allowed", validation.MaxFiles))
		return
	}
	for _, fh := range files {
		validation.ValidateFileUpload(ve, fh.Filename, fh.Size)
	}
}

// storeFiles writes each upload to the object store and returns the
// document rows to insert. On failure, objects already written are removed.
func (h *Handler) storeFiles(ctx context.Context, ownerType, qid string, files []*multipart.FileHeader) ([]models.Document, error) {
	var docs []models.Document
	for _, fh := range files {
		doc, err := h.storeFile(ctx, ownerType, qid, fh)
		if err != nil {
			h.discard(ctx, docs)
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (h *Handler) storeFile(ctx context.Context, ownerType, qid string, fh *multipart.FileHeader) (models.Document, error) {
	src, err := fh.Open()
	if err != nil {
		return models.Document{}, err
	}
	defer src.Close()

	id := uuid.NewString()
	name := validation.SanitizeFilename(fh.Filename)
	contentType := fh.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	doc := models.Document{
		ID:          id,
		FileName:    name,
		ContentType: contentType,
		Size:        fh.Size,
		StorageKey:  fmt.Sprintf("%s/%s/%s-%s", ownerType, qid, id, name),
		UploadedAt:  database.Now(),
	}
	if err := h.Store.Put(ctx, doc.StorageKey, src, contentType); err != nil {
		return models.Document{}, fmt.Errorf("store %s: %w", name, err)
	}
	return doc, nil
}

func (h *Handler) discard(ctx context.Context, docs []models.Document) {
	for _, d := range docs {
		if err := h.Store.Delete(ctx, d.StorageKey); err != nil {
			h.Logger.Warn("failed to remove orphaned upload", "key", d.StorageKey, "error", err)
		}
	}
}

func insertDocuments(tx *sql.Tx, ownerType, qid string, docs []models.Document) error {
	for _, d := range docs {
		if _, err := tx.Exec(`INSERT INTO documents (id, owner_type, quotation_id, file_name, content_type, size, storage_key, uploaded_at)
			VALUES (?,?,?,?,?,?,?,?)`, d.ID, ownerType, qid, d.FileName, d.ContentType, d.Size, d.StorageKey, d.UploadedAt); err != nil {
			return err
		}
	}
	return nil
}

// GetDocument streams an uploaded file.
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	var d models.Document
	var qid string
	err := h.DB.QueryRow(`SELECT id, quotation_id, file_name, content_type, size, storage_key FROM documents WHERE id = ?`,
		chi.URLParam(r, "id")).Scan(&d.ID, &qid, &d.FileName, &d.ContentType, &d.Size, &d.StorageKey)
	if isNotFound(err) {
		response.Err(w, "document not found", 404)
		return
	}
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	q, err := h.getQuotation(qid)
	if err != nil || !canSee(caller(r), q) {
		response.Err(w, "document not found", 404)
		return
	}

	rc, err := h.Store.Open(r.Context(), d.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			response.Err(w, "document content missing", 404)
			return
		}
		response.Err(w, err.Error(), 500)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", d.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", d.FileName))
	if _, err := io.Copy(w, rc); err != nil {
		h.Logger.Warn("document stream interrupted", "document", d.ID, "error", err)
	}
}


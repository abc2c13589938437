package handlers

import (
	"bytes"
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"racksum/internal/db"
	"racksum/internal/logger"
)

// MaxRestoreBytes limits uploaded backups
const MaxRestoreBytes = 100 << 20

// BackupDBHandler streams a consistent snapshot of the database
func (h *Handler) BackupDBHandler(w http.ResponseWriter, r *http.Request) {
	// snapshot first so a failure can still answer with a JSON error
	var buf bytes.Buffer
	if err := h.db.Backup(r.Context(), &buf); err != nil {
		respondError(w, r, http.StatusInternalServerError, "Could not back up database", err)
		return
	}

	name := strings.TrimSuffix(filepath.Base(h.db.Path()), filepath.Ext(h.db.Path()))
	filename := name + "-" + time.Now().UTC().Format("20060102-150405") + ".db"

	// Set headers for file download
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	w.Header().Set("Content-Type", "application/x-sqlite3")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))

	if _, err := buf.WriteTo(w); err != nil {
		logger.Ctx(r.Context()).Error().Err(err).Msg("stream database backup")
	}
}

// RestoreDBHandler replaces the database with an uploaded backup (multipart field backup_file)
func (h *Handler) RestoreDBHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRestoreBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, r, http.StatusRequestEntityTooLarge, "Backup file too large", err)
			return
		}
		respondError(w, r, http.StatusBadRequest, "Error parsing upload", err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("backup_file")
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "Error retrieving file", err)
		return
	}
	defer file.Close()

	err = h.db.Restore(file)
	if errors.Is(err, db.ErrInvalidBackup) {
		respondError(w, r, http.StatusBadRequest, "Uploaded file is not a SQLite database", nil)
		return
	}
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, "Failed to restore database", err)
		return
	}

	logger.Ctx(r.Context()).Warn().
		Str("file", header.Filename).
		Int64("bytes", header.Size).
		Msg("database restored from upload")
	respondJSON(w, http.StatusOK, successResponse{Success: true, Message: "Database restored successfully"})
}

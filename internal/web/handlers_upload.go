package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/JonMunkholm/listingest/internal/core"
	"github.com/JonMunkholm/listingest/internal/logging"
)

// Multipart field names for the two upload routes.
const (
	listFileField    = "listFile"
	contactFileField = "file"
)

// multipartOverhead is the slack allowed on top of the file size for
// boundaries and part headers.
const multipartOverhead = 64 << 10

// handleListUpload ingests a task list and distributes it across workers.
func (s *Server) handleListUpload(w http.ResponseWriter, r *http.Request) {
	s.handleUpload(w, r, core.KindTask, listFileField)
}

// handleContactUpload ingests a contact file.
func (s *Server) handleContactUpload(w http.ResponseWriter, r *http.Request) {
	s.handleUpload(w, r, core.KindContact, contactFileField)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request, kind core.RecordKind, field string) {
	req, err := s.readUpload(w, r, kind, field)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest, "")
		return
	}

	// Wait for a slot under the request context, then bound the ingestion
	// itself by UPLOAD_TIMEOUT.
	slot, err := s.limiter.Acquire(r.Context())
	if err != nil {
		s.respondError(w, r, err, statusFor(err), "")
		return
	}
	defer slot.Release()

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Upload.Timeout)
	defer cancel()

	res, err := s.engine.Ingest(ctx, req)
	if err != nil {
		uploadID := ""
		if res != nil {
			uploadID = res.UploadID
		}
		s.respondError(w, r, err, statusFor(err), uploadID)
		return
	}

	status, message := http.StatusOK, fmt.Sprintf("%d contacts uploaded", res.RecordsProcessed)
	data := UploadData{
		RecordsProcessed: res.RecordsProcessed,
		RowsDropped:      res.RowsDropped,
		UploadID:         res.UploadID,
	}
	if kind == core.KindTask {
		status = http.StatusCreated
		message = fmt.Sprintf("File uploaded and %d tasks distributed across %d agents", res.RecordsProcessed, res.WorkersAssigned)
		data.GroupsOrWorkersAssigned = res.WorkersAssigned
		data.ListsCreated = res.ListsCreated
	}

	writeJSONStatus(w, status, SuccessResponse{Success: true, Message: message, Data: data})
}

// readUpload enforces the size limit and file type before any attempt is
// recorded, then reads the whole file into memory.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request, kind core.RecordKind, field string) (core.IngestRequest, error) {
	maxSize := s.cfg.Upload.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return core.IngestRequest{}, errFileTooLarge
		}
		return core.IngestRequest{}, fmt.Errorf("%w: %v", errBadForm, err)
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile(field)
	if err != nil {
		return core.IngestRequest{}, fmt.Errorf("%w (field %q)", errNoFile, field)
	}
	defer file.Close()

	if header.Size > maxSize {
		return core.IngestRequest{}, errFileTooLarge
	}
	if header.Size == 0 {
		return core.IngestRequest{}, errEmptyFile
	}

	format, err := core.DetectFormat(header.Filename, header.Header.Get("Content-Type"))
	if err != nil {
		return core.IngestRequest{}, err
	}

	data, err := io.ReadAll(io.LimitReader(file, maxSize+1))
	if err != nil {
		return core.IngestRequest{}, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > maxSize {
		return core.IngestRequest{}, errFileTooLarge
	}

	owner := core.OwnerIDFromContext(r.Context())
	logging.FromContext(r.Context()).Debug("upload received",
		"kind", kind,
		"file", header.Filename,
		"size", len(data),
		"format", format,
		"owner", owner,
	)

	return core.IngestRequest{
		Kind:     kind,
		FileName: header.Filename,
		Size:     int64(len(data)),
		Format:   format,
		Data:     data,
		OwnerID:  owner,
	}, nil
}

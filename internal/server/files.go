package server

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// multipartMemory is how much of an upload is buffered in memory before spilling to disk.
const multipartMemory = 8 << 20

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// sanitizeFilename reduces name to a safe base name, or "" if nothing usable remains.
func sanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	name = filepath.Base(name)
	name = strings.Join(strings.Fields(name), "_")
	name = unsafeChars.ReplaceAllString(name, "")
	name = strings.TrimLeft(name, "._")
	if name == "" || name == "." {
		return ""
	}
	return name
}

func isPDF(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".pdf")
}

type fileInfo struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

type uploadResponse struct {
	Message string   `json:"message"`
	Files   []string `json:"files"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.Server.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			s.respondError(w, http.StatusRequestEntityTooLarge, "upload exceeds size limit")
			return
		}
		s.respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		s.respondError(w, http.StatusBadRequest, "No files provided")
		return
	}
	names := make([]string, len(headers))
	for i, fh := range headers {
		name := sanitizeFilename(fh.Filename)
		if name == "" || !isPDF(name) {
			s.respondError(w, http.StatusBadRequest, fmt.Sprintf("File %s is not a PDF", fh.Filename))
			return
		}
		names[i] = name
	}

	if err := os.MkdirAll(s.config.DataDir, 0o755); err != nil {
		s.fail(w, "upload", err)
		return
	}
	for i, fh := range headers {
		if err := s.saveUpload(fh, names[i]); err != nil {
			s.fail(w, "upload", err)
			return
		}
		s.logger.Info("Uploaded file", zap.String("name", names[i]), zap.Int64("size", fh.Size))
	}
	s.respondJSON(w, http.StatusOK, uploadResponse{
		Message: fmt.Sprintf("Successfully uploaded %d files", len(names)),
		Files:   names,
	})
}

// saveUpload writes fh to a hidden temp file in the data directory and renames it into place.
func (s *Server) saveUpload(fh *multipart.FileHeader, name string) error {
	src, err := fh.Open()
	if err != nil {
		return fmt.Errorf("open upload %s: %w", name, err)
	}
	defer src.Close()

	tmp := filepath.Join(s.config.DataDir, ".upload-"+uuid.NewString()+".tmp")
	dst, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := os.Rename(tmp, filepath.Join(s.config.DataDir, name)); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("store %s: %w", name, err)
	}
	return nil
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	entries, err := os.ReadDir(s.config.DataDir)
	if errors.Is(err, fs.ErrNotExist) {
		s.respondJSON(w, http.StatusOK, map[string][]fileInfo{"files": {}})
		return
	}
	if err != nil {
		s.fail(w, "list files", err)
		return
	}
	files := make([]fileInfo, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") || !isPDF(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, fileInfo{Name: e.Name(), Size: info.Size()})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	s.respondJSON(w, http.StatusOK, map[string][]fileInfo{"files": files})
}

// handleDeleteFile removes a file from the data directory. Chunks already ingested from
// it stay in the index until the next reset.
func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "filename")
	name := sanitizeFilename(raw)
	if name == "" {
		s.respondError(w, http.StatusBadRequest, "invalid filename")
		return
	}
	err := os.Remove(filepath.Join(s.config.DataDir, name))
	if errors.Is(err, fs.ErrNotExist) {
		s.respondError(w, http.StatusNotFound, "File not found")
		return
	}
	if err != nil {
		s.fail(w, "delete file", err)
		return
	}
	s.logger.Info("Deleted file", zap.String("name", name))
	s.respondJSON(w, http.StatusOK, map[string]string{"message": fmt.Sprintf("File %s deleted successfully", name)})
}

package web

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"minimill/internal/api"
	"minimill/internal/domain"
	"minimill/internal/services"
	"minimill/internal/upload"
)

const maxUploadParts = 64

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	ctx, sid := sessionID(w, r)
	res, err := s.deps.Upload.Selection(ctx, sid)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeOK(w, res)
}

// handleAddFiles accepts either a JSON metadata list or a multipart form of
// file parts. Multipart bodies are measured and discarded; only metadata is
// kept.
func (s *Server) handleAddFiles(w http.ResponseWriter, r *http.Request) {
	ctx, sid := sessionID(w, r)

	var (
		sourceValue = r.URL.Query().Get("source")
		candidates  []domain.FileMetadata
		err         error
	)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		var formSource string
		candidates, formSource, err = s.readMultipartFiles(r)
		if formSource != "" {
			sourceValue = formSource
		}
	} else {
		var req api.AddFilesRequest
		err = decodeJSON(r, &req)
		if req.Source != "" {
			sourceValue = req.Source
		}
		candidates = req.Files
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	source, err := upload.ParseSource(sourceValue)
	if err != nil {
		s.writeError(w, r, services.WithUserMessage(services.Wrap(services.ErrValidation, "upload", "add files", "", err), err.Error()))
		return
	}
	res, err := s.deps.Upload.Add(ctx, sid, source, candidates)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeEnvelope(w, http.StatusOK, res, rejectionNotice(res.Rejected), nil)
}

func (s *Server) readMultipartFiles(r *http.Request) ([]domain.FileMetadata, string, error) {
	reader, err := r.MultipartReader()
	if err != nil {
		return nil, "", badMultipart(err)
	}
	limit := s.deps.Config.MaxFileBytes()
	now := time.Now().UnixMilli()

	var (
		files  []domain.FileMetadata
		source string
	)
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, "", badMultipart(err)
		}
		if part.FileName() == "" {
			if part.FormName() == "source" {
				value, _ := io.ReadAll(io.LimitReader(part, 64))
				source = strings.TrimSpace(string(value))
			}
			part.Close()
			continue
		}
		if len(files) >= maxUploadParts {
			part.Close()
			return nil, "", services.WithUserMessage(
				services.Wrap(services.ErrValidation, "upload", "read multipart", "too many files", nil),
				"Too many files in one upload.",
			)
		}

		// Read one byte past the limit so oversized files still carry a size
		// the validator rejects.
		size, err := io.CopyN(io.Discard, part, limit+1)
		if err != nil && !errors.Is(err, io.EOF) {
			part.Close()
			return nil, "", badMultipart(err)
		}
		fileType := part.Header.Get("Content-Type")
		if fileType == "" || fileType == "application/octet-stream" {
			fileType = domain.TypeFromName(part.FileName())
		}
		files = append(files, domain.FileMetadata{
			Name:         part.FileName(),
			Size:         size,
			Type:         fileType,
			LastModified: lastModified(part.Header.Get("X-Last-Modified"), now),
		})
		part.Close()
	}
	return files, source, nil
}

func lastModified(value string, fallback int64) int64 {
	if ms, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil && ms > 0 {
		return ms
	}
	return fallback
}

func badMultipart(err error) error {
	return services.WithUserMessage(services.Wrap(services.ErrValidation, "upload", "read multipart", "", err), "Invalid upload.")
}

// rejectionNotice summarizes per-file rejections into one error notice with
// one line per file.
func rejectionNotice(rejected []upload.Rejection) *domain.Notice {
	if len(rejected) == 0 {
		return nil
	}
	messages := make([]string, 0, len(rejected))
	for _, r := range rejected {
		messages = append(messages, r.Message)
	}
	return &domain.Notice{Type: domain.NoticeError, Message: strings.Join(messages, "\n")}
}

func (s *Server) handleRemoveFile(w http.ResponseWriter, r *http.Request) {
	ctx, sid := sessionID(w, r)
	index, err := pathIndex(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.deps.Upload.Remove(ctx, sid, index)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeOK(w, res)
}

func (s *Server) handleClearFiles(w http.ResponseWriter, r *http.Request) {
	ctx, sid := sessionID(w, r)
	res, err := s.deps.Upload.Clear(ctx, sid)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeOK(w, res)
}

func (s *Server) handleProceed(w http.ResponseWriter, r *http.Request) {
	ctx, sid := sessionID(w, r)
	nav, err := s.deps.Upload.Proceed(ctx, sid)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeEnvelope(w, http.StatusOK, nil, nil, nav)
}

func pathIndex(r *http.Request) (int, error) {
	raw := r.PathValue("index")
	index, err := strconv.Atoi(raw)
	if err != nil {
		return 0, services.WithUserMessage(
			services.Wrap(services.ErrValidation, "api", "parse index", "", err),
			"File index must be a number.",
		)
	}
	return index, nil
}

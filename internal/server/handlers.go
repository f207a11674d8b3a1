package server

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/patrickmn/go-cache"

	"imgconv"
	"imgconv/format"
	"imgconv/internal/logger"
)

type errorResponse struct {
	Error string `json:"error"`
}

type guessResponse struct {
	Format string `json:"format"`
	MIME   string `json:"mime"`
}

type formatInfo struct {
	Name      string `json:"name"`
	Extension string `json:"extension"`
	MIME      string `json:"mime"`
	Decode    bool   `json:"decode"`
	Encode    bool   `json:"encode"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error(err, "Failed to write the response.")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

// readBody reads the request body up to the configured limit.
func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, int, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.conf.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, http.StatusRequestEntityTooLarge, fmt.Errorf("body exceeds %d bytes", tooLarge.Limit)
		}
		return nil, http.StatusBadRequest, err
	}
	if len(body) == 0 {
		return nil, http.StatusBadRequest, imgconv.ErrEmptyInput
	}
	return body, http.StatusOK, nil
}

func cacheKey(body []byte, from, to format.Format) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:]) + ":" + from.String() + ":" + to.String()
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, imgconv.ErrEmptyInput):
		return http.StatusBadRequest
	case errors.Is(err, imgconv.ErrDecode), errors.Is(err, imgconv.ErrEncode), errors.Is(err, imgconv.ErrUnsupportedFormat):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// handleConvert converts the request body to the format named in the path.
// An optional "from" query parameter names the source format.
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	log := s.log.WithField(logger.FieldFunction, "Server.handleConvert")

	name := mux.Vars(r)["format"]
	to := format.Parse(name)
	if to == format.Unknown {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("%w: %q", imgconv.ErrUnknownFormat, name))
		return
	}
	if !imgconv.CanEncode(to) {
		s.writeError(w, http.StatusUnprocessableEntity, fmt.Errorf("%w: no encoder for %s", imgconv.ErrUnsupportedFormat, to))
		return
	}

	from := format.Unknown
	if q := r.URL.Query().Get("from"); q != "" {
		if from = format.Parse(q); from == format.Unknown {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("%w: %q", imgconv.ErrUnknownFormat, q))
			return
		}
	}

	body, status, err := s.readBody(w, r)
	if err != nil {
		s.writeError(w, status, err)
		return
	}

	key := cacheKey(body, from, to)
	if cached, ok := s.results.Get(key); ok {
		s.writeImage(w, to, cached.([]byte), "hit")
		return
	}

	source := from
	if source == format.Unknown {
		source = format.Guess(body)
	}
	start := time.Now()
	out, err := s.converter.ConvertFrom(r.Context(), body, from, to)
	s.reporter.ConversionFinished(source.String(), to.String(), time.Since(start), len(body), len(out), err)
	if err != nil {
		log.WithFields(logger.Fields{
			"source": source.String(),
			"target": to.String(),
		}).Error(err, "Failed to convert the image.")
		s.writeError(w, statusOf(err), err)
		return
	}

	s.results.Set(key, out, cache.DefaultExpiration)
	s.writeImage(w, to, out, "miss")
}

func (s *Server) writeImage(w http.ResponseWriter, f format.Format, img []byte, cacheStatus string) {
	w.Header().Set("Content-Type", f.MIMEType())
	w.Header().Set("Content-Length", strconv.Itoa(len(img)))
	w.Header().Set("X-Cache", cacheStatus)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(img); err != nil {
		s.log.Error(err, "Failed to write the converted image.")
	}
}

func (s *Server) handleGuess(w http.ResponseWriter, r *http.Request) {
	body, status, err := s.readBody(w, r)
	if err != nil {
		s.writeError(w, status, err)
		return
	}

	f, err := imgconv.Guess(body)
	if err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	s.writeJSON(w, http.StatusOK, guessResponse{Format: f.String(), MIME: f.MIMEType()})
}

func (s *Server) handleFormats(w http.ResponseWriter, _ *http.Request) {
	all := format.All()
	infos := make([]formatInfo, 0, len(all))
	for _, f := range all {
		infos = append(infos, formatInfo{
			Name:      f.String(),
			Extension: f.Extension(),
			MIME:      f.MIMEType(),
			Decode:    imgconv.CanDecode(f),
			Encode:    imgconv.CanEncode(f),
		})
	}
	s.writeJSON(w, http.StatusOK, infos)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = io.WriteString(w, "ok\n")
}

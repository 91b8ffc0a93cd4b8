package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"

	"github.com/Charlesssyyy/GDEC-Price-Checker/internal/engine"
	"github.com/Charlesssyyy/GDEC-Price-Checker/internal/errs"
	"github.com/Charlesssyyy/GDEC-Price-Checker/internal/logging"
	"github.com/Charlesssyyy/GDEC-Price-Checker/internal/policy"
	"github.com/Charlesssyyy/GDEC-Price-Checker/internal/source"
	"github.com/Charlesssyyy/GDEC-Price-Checker/internal/xlsxwriter"
	"github.com/Charlesssyyy/GDEC-Price-Checker/pkg/utils"
)

const (
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	runIDHeader     = "X-Run-Id"
	statsHeader     = "X-Run-Stats"
)

// badRequest is a problem with the request itself rather than its files.
type badRequest struct {
	msg string
}

func (e *badRequest) Error() string { return e.msg }

func badRequestf(format string, args ...interface{}) error {
	return &badRequest{msg: fmt.Sprintf(format, args...)}
}

// =============================================================================
// HANDLERS
// =============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type promotionsResponse struct {
	Platform   string   `json:"platform"`
	Sheet      string   `json:"sheet"`
	Promotions []string `json:"promotions"`
}

func (s *Server) handlePromotions(w http.ResponseWriter, r *http.Request) {
	if err := s.parseForm(w, r); err != nil {
		s.fail(w, r, err)
		return
	}

	p, err := s.lookup(r.FormValue("platform"), r.FormValue("mode"))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	file, name, err := formFile(r, "promotion")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	defer file.Close()

	promo, err := source.ReadPromotion(p, file, name)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	names, err := engine.ListPromotions(p, promo.Rows, promo.Source)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if names == nil {
		names = []string{}
	}

	respondJSON(w, http.StatusOK, promotionsResponse{
		Platform:   string(p.Platform),
		Sheet:      promo.Sheet,
		Promotions: names,
	})
}

func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	if err := s.parseForm(w, r); err != nil {
		s.fail(w, r, err)
		return
	}

	p, err := s.lookup(r.FormValue("platform"), r.FormValue("mode"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	promoName := r.FormValue("promo")
	if promoName == "" {
		s.fail(w, r, badRequestf("promo is required"))
		return
	}

	targetFile, targetName, err := formFile(r, "target")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	defer targetFile.Close()

	promoFile, promoSource, err := formFile(r, "promotion")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	defer promoFile.Close()

	target, err := source.ReadTarget(p, targetFile, targetName)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	promo, err := source.ReadPromotion(p, promoFile, promoSource)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	result, err := engine.New(logging.FromContext(r.Context())).Run(engine.Request{
		Policy:          p,
		Target:          target,
		PromotionRows:   promo.Rows,
		PromotionSource: promo.Source,
		PromoName:       promoName,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := xlsxwriter.Write(&buf, result.Partitions); err != nil {
		s.fail(w, r, err)
		return
	}

	stats, _ := json.Marshal(result.Stats)
	filename := utils.OutputFileName(s.cfg.OutputNameFormat, map[string]string{
		"original": targetName,
		"platform": string(p.Platform),
		"mode":     string(p.Mode),
	})

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename*=UTF-8''%s", url.PathEscape(filename)))
	w.Header().Set(runIDHeader, result.RunID)
	w.Header().Set(statsHeader, string(stats))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// =============================================================================
// REQUEST HELPERS
// =============================================================================

func (s *Server) parseForm(w http.ResponseWriter, r *http.Request) error {
	limit := s.cfg.Server.MaxUploadMB << 20
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return badRequestf("upload exceeds %d MB", s.cfg.Server.MaxUploadMB)
		}
		return badRequestf("invalid multipart form: %v", err)
	}
	return nil
}

func (s *Server) lookup(platform, mode string) (*policy.Policy, error) {
	pl, err := policy.ParsePlatform(platform)
	if err != nil {
		return nil, &badRequest{msg: err.Error()}
	}
	m, err := policy.ParseMode(mode)
	if err != nil {
		return nil, &badRequest{msg: err.Error()}
	}
	p, err := s.registry.Lookup(pl, m)
	if err != nil {
		return nil, &badRequest{msg: err.Error()}
	}
	return p, nil
}

func formFile(r *http.Request, field string) (multipart.File, string, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, "", badRequestf("%s file is required", field)
	}
	return file, header.Filename, nil
}

// =============================================================================
// RESPONSES
// =============================================================================

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, kind := classify(err)

	logger := logging.FromContext(r.Context())
	event := logger.Warn()
	if status >= http.StatusInternalServerError {
		event = logger.Error()
	}
	event.Err(err).Int("status", status).Str("kind", kind).Msg("request failed")

	respondJSON(w, status, errorResponse{Error: err.Error(), Kind: kind})
}

// classify maps an error to an HTTP status and a stable kind name.
func classify(err error) (int, string) {
	var br *badRequest
	switch {
	case errors.As(err, &br):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, errs.ErrMissingRequiredField):
		return http.StatusUnprocessableEntity, "missing_required_field"
	case errors.Is(err, errs.ErrInvalidSchema):
		return http.StatusUnprocessableEntity, "invalid_schema"
	case errors.Is(err, errs.ErrNoMatchingPromotionRows):
		return http.StatusNotFound, "no_matching_promotion_rows"
	case errors.Is(err, errs.ErrSourceUnavailable):
		return http.StatusBadRequest, "source_unavailable"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

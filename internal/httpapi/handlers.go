package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"horse.fit/dupscan/internal/config"
	"horse.fit/dupscan/internal/detect"
	"horse.fit/dupscan/internal/metadata"
	"horse.fit/dupscan/internal/repository"
	"horse.fit/dupscan/internal/similarity"
	"horse.fit/dupscan/schema"
)

// maxRequestBody caps detect and embed request bodies at 1 MiB.
const maxRequestBody = 1 << 20

func (s *Server) health(c echo.Context) error {
	probeCtx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	embeddingAvailable := s.service.Backend(detect.MethodEmbedding).EnsureReady(probeCtx) == nil

	embedding := map[string]any{"available": embeddingAvailable}
	if backend, ok := s.service.Backend(detect.MethodEmbedding).(*similarity.EmbeddingBackend); ok {
		embedding["model"] = backend.ModelID()
	}

	return success(c, map[string]any{
		"service":     "dupscan",
		"environment": s.cfg.Environment,
		"backends": map[string]any{
			"fingerprint": map[string]any{"available": true, "num_hashes": s.cfg.FingerprintHashes},
			"embedding":   embedding,
		},
	})
}

func (s *Server) detectByNode(c echo.Context) error {
	method, ok := detect.ParseMethod(c.Param("method"))
	if !ok {
		return failNotFound(c, "unknown detection method "+c.Param("method"))
	}
	nodeID := strings.TrimSpace(c.Param("nodeID"))
	if nodeID == "" {
		return failBadRequest(c, "node id is required")
	}

	params, err := detectParams(c)
	if err != nil {
		return failBadRequest(c, err.Error())
	}

	result, err := s.service.DetectByNode(c.Request().Context(), method, nodeID, params)
	if err != nil {
		return s.respondDetectError(c, err)
	}
	return success(c, result)
}

func (s *Server) detectByMetadata(c echo.Context) error {
	method, ok := detect.ParseMethod(c.Param("method"))
	if !ok {
		return failNotFound(c, "unknown detection method "+c.Param("method"))
	}

	params, err := detectParams(c)
	if err != nil {
		return failBadRequest(c, err.Error())
	}

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxRequestBody))
	if err != nil {
		return failBadRequest(c, "cannot read request body")
	}
	if err := schema.ValidateDetectRequest(body); err != nil {
		var validationErr *schema.ValidationError
		if errors.As(err, &validationErr) {
			return failValidation(c, validationErr.Reasons)
		}
		return internalError(c, "schema validation unavailable")
	}

	var source metadata.ContentMetadata
	if err := json.Unmarshal(body, &source); err != nil {
		return failBadRequest(c, "cannot decode metadata")
	}

	result, err := s.service.DetectByMetadata(c.Request().Context(), method, source, params)
	if err != nil {
		return s.respondDetectError(c, err)
	}
	return success(c, result)
}

type textsRequest struct {
	Texts []string `json:"texts"`
}

func decodeTexts(c echo.Context) ([]string, error) {
	var request textsRequest
	if err := json.NewDecoder(io.LimitReader(c.Request().Body, maxRequestBody)).Decode(&request); err != nil {
		return nil, errors.New("body must be a JSON object with a texts array")
	}
	if len(request.Texts) == 0 {
		return nil, errors.New("texts must not be empty")
	}
	if len(request.Texts) > 64 {
		return nil, errors.New("at most 64 texts per request")
	}
	return request.Texts, nil
}

// embed exposes the embedding backend directly, mainly for debugging what
// the model sees.
func (s *Server) embed(c echo.Context) error {
	texts, err := decodeTexts(c)
	if err != nil {
		return failBadRequest(c, err.Error())
	}

	backend := s.service.Backend(detect.MethodEmbedding)
	vectors, err := backend.BatchRepresentations(c.Request().Context(), texts)
	if err != nil {
		return s.respondDetectError(c, err)
	}

	response := map[string]any{"embeddings": vectors}
	if embeddingBackend, ok := backend.(*similarity.EmbeddingBackend); ok {
		response["model"] = embeddingBackend.ModelID()
	}
	return success(c, response)
}

// fingerprint exposes raw MinHash signatures for the given texts.
func (s *Server) fingerprint(c echo.Context) error {
	texts, err := decodeTexts(c)
	if err != nil {
		return failBadRequest(c, err.Error())
	}

	backend := s.service.Backend(detect.MethodFingerprint)
	signatures, err := backend.BatchRepresentations(c.Request().Context(), texts)
	if err != nil {
		return s.respondDetectError(c, err)
	}

	return success(c, map[string]any{
		"num_hashes": s.cfg.FingerprintHashes,
		"signatures": signatures,
	})
}

func detectParams(c echo.Context) (detect.Params, error) {
	var params detect.Params

	environment := strings.TrimSpace(c.QueryParam("environment"))
	if environment != "" &&
		!strings.EqualFold(environment, config.RepositoryEnvProduction) &&
		!strings.EqualFold(environment, config.RepositoryEnvStaging) {
		return params, errors.New("environment must be production or staging")
	}
	params.Environment = environment

	for _, raw := range c.QueryParams()["fields"] {
		for _, part := range strings.Split(raw, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			field, ok := metadata.ParseSearchField(part)
			if !ok {
				return params, errors.New("unknown search field " + strings.TrimSpace(part))
			}
			params.Fields = append(params.Fields, field)
		}
	}

	if raw := strings.TrimSpace(c.QueryParam("threshold")); raw != "" {
		threshold, err := strconv.ParseFloat(raw, 64)
		if err != nil || threshold <= 0 || threshold > 1 {
			return params, errors.New("threshold must be a number in (0, 1]")
		}
		params.Threshold = threshold
	}

	return params, nil
}

func (s *Server) respondDetectError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, repository.ErrNodeNotFound):
		return failNotFound(c, err.Error())
	case errors.Is(err, detect.ErrNoSearchableContent):
		return failBadRequest(c, err.Error())
	case errors.Is(err, similarity.ErrBackendUnavailable):
		return failUnavailable(c, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return fail(c, http.StatusGatewayTimeout, map[string]string{"reason": "detection timed out"})
	default:
		s.logger.Error().Err(err).Msg("detection failed")
		return internalError(c, "detection failed")
	}
}

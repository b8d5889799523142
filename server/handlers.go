package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/YuminosukeSato/loanml/bundle"
	"github.com/YuminosukeSato/loanml/loan"
	"github.com/YuminosukeSato/loanml/pkg/errors"
	"github.com/YuminosukeSato/loanml/pkg/log"
)

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
	Model  string `json:"model"`
	RunID  string `json:"run_id"`
}

// ModelInfo is the body of GET /api/v1/model.
type ModelInfo struct {
	bundle.Metadata
	FeatureColumns []string `json:"feature_columns"`
}

// PredictResponse is the decision for one application, with the probability
// rounded to 2 decimals.
type PredictResponse struct {
	Approved    bool    `json:"approved"`
	Probability float64 `json:"probability"`
}

// BatchRequest is the body of POST /api/v1/predict/batch.
type BatchRequest struct {
	Applications []loan.Application `json:"applications" binding:"required,dive"`
}

// BatchResponse keeps the order of BatchRequest.Applications.
type BatchResponse struct {
	Predictions []PredictResponse `json:"predictions"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status: "ok",
		Model:  s.bundle.Metadata.ModelName,
		RunID:  s.bundle.Metadata.RunID.String(),
	})
}

func (s *Server) handleModel(c *gin.Context) {
	c.JSON(http.StatusOK, ModelInfo{
		Metadata:       s.bundle.Metadata,
		FeatureColumns: s.bundle.FeatureColumns,
	})
}

func (s *Server) handlePredict(c *gin.Context) {
	var app loan.Application
	if err := c.ShouldBindJSON(&app); err != nil {
		_ = c.Error(err)
		abortWithBindError(c, err)
		return
	}

	preds, ok := s.predict(c, []loan.Application{app})
	if !ok {
		return
	}
	c.JSON(http.StatusOK, preds[0])
}

func (s *Server) handlePredictBatch(c *gin.Context) {
	var req BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err)
		abortWithBindError(c, err)
		return
	}
	switch n := len(req.Applications); {
	case n == 0:
		abortWithError(c, http.StatusBadRequest, CodeEmptyBatch, "applications must not be empty")
		return
	case n > s.opts.MaxBatch:
		abortWithError(c, http.StatusRequestEntityTooLarge, CodeBatchTooLarge,
			"at most "+strconv.Itoa(s.opts.MaxBatch)+" applications per request")
		return
	}

	preds, ok := s.predict(c, req.Applications)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, BatchResponse{Predictions: preds})
}

// predict scores apps and writes the error response itself on failure.
func (s *Server) predict(c *gin.Context, apps []loan.Application) ([]PredictResponse, bool) {
	logger := loggerFrom(c)
	preds, err := s.bundle.PredictApplications(apps)
	if err != nil {
		_ = c.Error(err)
		var valErr *errors.ValueError
		var dataErr *errors.DataError
		if errors.As(err, &valErr) || errors.As(err, &dataErr) {
			abortWithError(c, http.StatusUnprocessableEntity, CodePrediction, err.Error())
			return nil, false
		}
		logger.Error("Prediction failed", err, log.PhaseKey, log.PhaseInference)
		abortWithError(c, http.StatusInternalServerError, CodeInternal, "prediction failed")
		return nil, false
	}

	out := make([]PredictResponse, len(preds))
	approved := 0
	for i, p := range preds {
		p = p.Rounded()
		out[i] = PredictResponse{Approved: p.Approved, Probability: p.Probability}
		if p.Approved {
			approved++
		}
	}
	logger.Debug("Predicted",
		log.PhaseKey, log.PhaseInference,
		log.SamplesKey, len(out),
		"approved", approved,
	)
	return out, true
}

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"path/filepath"

	"github.com/vrsandeep/webpress/internal/jobs"
	"github.com/vrsandeep/webpress/internal/models"
	"github.com/vrsandeep/webpress/internal/progress"
	"github.com/vrsandeep/webpress/internal/util"
)

type submitBatchRequest struct {
	Inputs  []string        `json:"inputs"`
	Options *models.Options `json:"options,omitempty"`
}

type batchResponse struct {
	BatchID   string `json:"batch_id"`
	Total     int    `json:"total"`
	OutputDir string `json:"output_dir"`
}

type currentBatchResponse struct {
	Job      jobs.BatchStatus  `json:"job"`
	Progress progress.Snapshot `json:"progress"`
}

// handleSubmitBatch starts converting the given files. Directories are
// expanded to the JPEG and PNG files they contain.
func (s *Server) handleSubmitBatch(w http.ResponseWriter, r *http.Request) {
	var payload submitBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	for _, in := range payload.Inputs {
		if !filepath.IsAbs(in) {
			RespondWithError(w, http.StatusBadRequest, "Input paths must be absolute: "+in)
			return
		}
	}

	opts := s.app.Config.DefaultOptions()
	if payload.Options != nil {
		opts = *payload.Options
	}
	if opts.OutputDir != "" {
		if err := util.ValidateOutputDir(opts.OutputDir); err != nil {
			RespondWithError(w, http.StatusBadRequest, "Invalid output directory: "+err.Error())
			return
		}
		if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
			RespondWithError(w, http.StatusInternalServerError, "Could not create output directory")
			return
		}
	}

	inputs, err := util.CollectImages(payload.Inputs)
	if err != nil {
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	batch, err := s.app.Manager.Submit(inputs, opts)
	switch {
	case errors.Is(err, jobs.ErrBatchRunning):
		RespondWithError(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, jobs.ErrInvalidResize):
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		log.Printf("Failed to submit batch: %v", err)
		RespondWithError(w, http.StatusInternalServerError, "Failed to start batch")
		return
	}

	RespondWithJSON(w, http.StatusAccepted, batchResponse{
		BatchID:   batch.ID,
		Total:     batch.Total,
		OutputDir: batch.OutputDir,
	})
}

func (s *Server) handleGetCurrentBatch(w http.ResponseWriter, r *http.Request) {
	RespondWithJSON(w, http.StatusOK, currentBatchResponse{
		Job:      s.app.Manager.Status(),
		Progress: s.app.Progress.Snapshot(),
	})
}

func (s *Server) handleCancelBatch(w http.ResponseWriter, r *http.Request) {
	if !s.app.Manager.Cancel() {
		RespondWithError(w, http.StatusConflict, "No batch is running")
		return
	}
	RespondWithJSON(w, http.StatusAccepted, map[string]string{"message": "Cancellation requested."})
}

func (s *Server) handleGetJobStatus(w http.ResponseWriter, r *http.Request) {
	RespondWithJSON(w, http.StatusOK, s.app.Manager.Status())
}

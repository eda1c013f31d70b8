package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"sentinelvision/internal/dto"
	"sentinelvision/internal/logger"
	"sentinelvision/internal/service/resize"
)

// maxResizeBody caps the request body of POST /resize.
const maxResizeBody = 32 << 20

// ResizeHandler handles POST /resize: it scales a base64 JPEG to half
// resolution for low motion levels and returns it re-encoded.
func ResizeHandler(logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req dto.ResizeRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxResizeBody)).Decode(&req); err != nil {
			writeJSONError(w, logger, http.StatusBadRequest, "invalid JSON body")
			return
		}

		var motion float64
		if req.MotionLevel != nil {
			motion = *req.MotionLevel
		}

		processed, err := resize.ScaleBase64(req.ImageData, motion)
		switch {
		case err == nil:
		case errors.Is(err, resize.ErrMissingImage), errors.Is(err, resize.ErrUndecodable):
			writeJSONError(w, logger, http.StatusBadRequest, err.Error())
			return
		default:
			logger.Error("Resize failed: %v", err)
			writeJSONError(w, logger, http.StatusInternalServerError, resize.ErrEncode.Error())
			return
		}

		writeJSON(w, logger, http.StatusOK, dto.ResizeResponse{ProcessedImage: processed})
	}
}

func writeJSON(w http.ResponseWriter, logger *logger.Logger, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("Error encoding JSON response: %v", err)
	}
}

func writeJSONError(w http.ResponseWriter, logger *logger.Logger, status int, message string) {
	writeJSON(w, logger, status, dto.ErrorResponse{Error: message})
}

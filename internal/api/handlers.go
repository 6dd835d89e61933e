package api

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/rjmacarthy/minigpt4/internal/core"
	"github.com/rjmacarthy/minigpt4/internal/store"
)

// SessionHeader selects the conversation a request belongs to. Requests
// without it share the default session.
const SessionHeader = "X-Session-ID"

// maxUploadBytes bounds a multipart upload request.
const maxUploadBytes = 100 << 20 // 100 MB

type APIHandler struct {
	chatService *core.ChatService
}

func NewAPIHandler(cs *core.ChatService) *APIHandler {
	return &APIHandler{chatService: cs}
}

func sessionID(r *http.Request) string {
	return r.Header.Get(SessionHeader)
}

func (h *APIHandler) NewSessionHandler(w http.ResponseWriter, r *http.Request) {
	sess := h.chatService.Sessions().NewSession()
	json.NewEncoder(w).Encode(map[string]string{"session_id": sess.ID()})
}

func (h *APIHandler) UploadHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "Invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}

	files := r.MultipartForm.File["images"]
	if len(files) == 0 {
		http.Error(w, "No images uploaded", http.StatusBadRequest)
		return
	}

	payloads := make([][]byte, 0, len(files))
	for _, header := range files {
		f, err := header.Open()
		if err != nil {
			http.Error(w, "Cannot open uploaded file", http.StatusBadRequest)
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			http.Error(w, "Cannot read uploaded file", http.StatusBadRequest)
			return
		}
		payloads = append(payloads, data)
	}

	records, err := h.chatService.UploadImages(r.Context(), sessionID(r), payloads)
	if err != nil {
		log.Printf("Error uploading images: %v", err)
		status := http.StatusInternalServerError
		if errors.Is(err, store.ErrDimensionMismatch) {
			status = http.StatusBadRequest
		}
		http.Error(w, "Failed to upload images: "+err.Error(), status)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(records)
}

func (h *APIHandler) ResetHandler(w http.ResponseWriter, r *http.Request) {
	h.chatService.ResetSession(sessionID(r))
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"reset"}`))
}

type GenerateRequest struct {
	Message  string `json:"message"`
	ImageIDs []uint `json:"image_ids,omitempty"`
}

func (h *APIHandler) GenerateHandler(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Message == "" {
		http.Error(w, "Message cannot be empty", http.StatusBadRequest)
		return
	}

	answers, err := h.chatService.GenerateAnswers(r.Context(), sessionID(r), req.Message, req.ImageIDs)
	if err != nil {
		log.Printf("Error generating answers for session %q: %v", sessionID(r), err)
		http.Error(w, "Failed to generate answers: "+err.Error(), http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(answers)
}

func (h *APIHandler) ListImagesHandler(w http.ResponseWriter, r *http.Request) {
	images, err := h.chatService.ListImages(r.Context())
	if err != nil {
		log.Printf("Error listing images: %v", err)
		http.Error(w, "Failed to list images", http.StatusInternalServerError)
		return
	}
	if images == nil {
		images = []store.Image{}
	}
	json.NewEncoder(w).Encode(images)
}

type DeleteImagesRequest struct {
	IDs []uint `json:"ids"`
}

func (h *APIHandler) DeleteImagesHandler(w http.ResponseWriter, r *http.Request) {
	var req DeleteImagesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	removed, err := h.chatService.DeleteImages(r.Context(), req.IDs)
	if err != nil {
		log.Printf("Error deleting images: %v", err)
		http.Error(w, "Failed to delete images", http.StatusInternalServerError)
		return
	}
	if removed == nil {
		removed = []uint{}
	}
	json.NewEncoder(w).Encode(map[string][]uint{"deleted": removed})
}

type SearchImagesRequest struct {
	Embedding []float32 `json:"embedding"`
}

func (h *APIHandler) SearchImagesHandler(w http.ResponseWriter, r *http.Request) {
	var req SearchImagesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	images, err := h.chatService.SearchImages(r.Context(), req.Embedding)
	if err != nil {
		if errors.Is(err, store.ErrDimensionMismatch) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		log.Printf("Error searching images: %v", err)
		http.Error(w, "Failed to search images", http.StatusInternalServerError)
		return
	}
	if images == nil {
		images = []store.Image{}
	}
	json.NewEncoder(w).Encode(images)
}

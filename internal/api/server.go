// Package api provides the HTTP server and handlers for the media panel.
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lumenlabs/mediakit/internal/events"
	"github.com/lumenlabs/mediakit/internal/hierarchy"
	"github.com/lumenlabs/mediakit/internal/logging"
	"github.com/lumenlabs/mediakit/internal/media"
	"github.com/lumenlabs/mediakit/internal/metrics"
	"github.com/lumenlabs/mediakit/internal/storage"
)

// multipart bodies buffer to disk past this point.
const multipartMemory = 32 << 20

// Server is the HTTP server.
type Server struct {
	store       storage.Backend
	manager     *hierarchy.Manager
	engine      *hierarchy.Engine
	coordinator *hierarchy.Coordinator
	renamer     *hierarchy.Renamer
	broadcaster *events.Broadcaster

	limits        media.Limits
	compression   media.Options
	defaultFolder string
}

// NewServer creates a new server over the given store.
func NewServer(store storage.Backend, broadcaster *events.Broadcaster, limits media.Limits, compression media.Options, defaultFolder string) *Server {
	if defaultFolder == "" {
		defaultFolder = "uploads"
	}
	return &Server{
		store:         store,
		manager:       hierarchy.NewManager(store),
		engine:        hierarchy.NewEngine(store),
		coordinator:   hierarchy.NewCoordinator(store),
		renamer:       hierarchy.NewRenamer(store),
		broadcaster:   broadcaster,
		limits:        limits,
		compression:   compression,
		defaultFolder: defaultFolder,
	}
}

// Handler returns the HTTP handler with middleware applied.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(logging.Middleware)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1/media", func(r chi.Router) {
		r.Post("/upload", s.handleUpload)
		r.Get("/list", s.handleList)
		r.Delete("/", s.handleDelete)
		r.Post("/bulk-delete", s.handleBulkDelete)
		r.Post("/rename", s.handleRename)
		r.Post("/folders", s.handleCreateFolder)
	})

	r.Get("/api/v1/events", s.handleEvents)

	return metrics.Middleware(r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.sendError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	folder := sanitizeFolder(r.FormValue("folder"))
	if folder == "" {
		folder = s.defaultFolder
	}
	displayName := r.FormValue("fileName")
	if displayName == "" {
		displayName = header.Filename
	}

	contentType := header.Header.Get("Content-Type")
	class, err := media.Classify(contentType, header.Size, s.limits)
	if err != nil {
		s.writeMediaError(w, err)
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		s.sendError(w, http.StatusBadRequest, "failed to read upload body")
		return
	}

	switch class {
	case media.ClassImage:
		s.uploadImage(w, r, folder, displayName, data)
	case media.ClassVideo:
		s.uploadVideo(w, r, folder, displayName, contentType, data)
	}
}

func (s *Server) uploadImage(w http.ResponseWriter, r *http.Request, folder, name string, data []byte) {
	result, err := media.Compress(data, s.compression)
	if err != nil {
		metrics.RecordUpload(string(media.ClassImage), false, int64(len(data)), 0)
		s.writeMediaError(w, err)
		return
	}
	metrics.RecordCompression(result.Quality, len(result.Attempts))

	ext, contentType := ".jpg", "image/jpeg"
	if result.Format == "png" {
		ext, contentType = ".png", "image/png"
	}
	key := buildKey(folder, name, ext)

	if err := s.store.Put(r.Context(), key, bytes.NewReader(result.Data), result.CompressedSize, contentType); err != nil {
		metrics.RecordUpload(string(media.ClassImage), false, result.OriginalSize, 0)
		s.sendError(w, http.StatusBadGateway, "failed to store upload: "+err.Error())
		return
	}
	metrics.RecordUpload(string(media.ClassImage), true, result.OriginalSize, result.CompressedSize)

	logging.Info("image uploaded",
		zap.String("key", key),
		zap.Int64("original_size", result.OriginalSize),
		zap.Int64("compressed_size", result.CompressedSize),
		zap.Int("quality", result.Quality),
		zap.Int("attempts", len(result.Attempts)))

	s.publish(events.EventUpload, key, result.CompressedSize)
	s.sendJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"url":            s.store.PublicURL(key),
		"key":            key,
		"originalSize":   result.OriginalSize,
		"compressedSize": result.CompressedSize,
		"quality":        result.Quality,
	})
}

func (s *Server) uploadVideo(w http.ResponseWriter, r *http.Request, folder, name, contentType string, data []byte) {
	ext := strings.ToLower(path.Ext(name))
	if ext == "" {
		ext = ".mp4"
	}
	key := buildKey(folder, name, ext)

	if err := s.store.Put(r.Context(), key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		metrics.RecordUpload(string(media.ClassVideo), false, int64(len(data)), 0)
		s.sendError(w, http.StatusBadGateway, "failed to store upload: "+err.Error())
		return
	}
	metrics.RecordUpload(string(media.ClassVideo), true, int64(len(data)), int64(len(data)))

	logging.Info("video uploaded",
		zap.String("key", key),
		zap.Int("size", len(data)))

	s.publish(events.EventUpload, key, int64(len(data)))
	s.sendJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"url":     s.store.PublicURL(key),
		"key":     key,
		"size":    len(data),
	})
}

// buildKey derives a fresh timestamp-qualified key. The random suffix keeps
// two same-millisecond uploads from colliding.
func buildKey(folder, name, ext string) string {
	base := hierarchy.SanitizeName(strings.TrimSuffix(name, path.Ext(name)))
	if base == "" {
		base = "upload"
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s%s-%d-%s%s",
		hierarchy.NormalizePrefix(folder), base, time.Now().UnixMilli(), suffix, ext)
}

// sanitizeFolder normalizes each path segment of a nested folder value.
func sanitizeFolder(folder string) string {
	var parts []string
	for _, seg := range strings.Split(strings.Trim(folder, "/"), "/") {
		if clean := hierarchy.SanitizeName(seg); clean != "" {
			parts = append(parts, clean)
		}
	}
	return strings.Join(parts, "/")
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	folder := r.URL.Query().Get("folder")
	items, err := s.manager.List(r.Context(), folder)
	if err != nil {
		s.sendError(w, http.StatusBadGateway, "failed to list folder: "+err.Error())
		return
	}
	s.sendJSON(w, http.StatusOK, items)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		s.sendError(w, http.StatusBadRequest, "key query parameter is required")
		return
	}

	if strings.HasSuffix(key, "/") {
		res := s.engine.DeleteTree(r.Context(), key)
		s.publish(events.EventDelete, key, 0)

		logging.Info("folder deleted",
			zap.String("prefix", key),
			zap.Int("deleted", len(res.Succeeded)),
			zap.Int("failed", len(res.Failed)))

		failed := res.Failed
		if failed == nil {
			failed = []string{}
		}
		s.sendJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": fmt.Sprintf("deleted %d items under %s", len(res.Succeeded), key),
			"deleted": len(res.Succeeded),
			"failed":  failed,
		})
		return
	}

	err := s.store.Delete(r.Context(), key)
	// A missing key means the work is already done.
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		metrics.RecordDelete(false)
		s.sendJSON(w, http.StatusBadGateway, map[string]any{
			"error":   "failed to delete " + key,
			"details": err.Error(),
		})
		return
	}
	metrics.RecordDelete(true)

	logging.Info("file deleted", zap.String("key", key))
	s.publish(events.EventDelete, key, 0)
	s.sendJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "deleted " + key,
	})
}

func (s *Server) handleBulkDelete(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Keys []string `json:"keys"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Keys) == 0 {
		s.sendError(w, http.StatusBadRequest, "keys must not be empty")
		return
	}

	res := s.coordinator.DeleteSelection(r.Context(), req.Keys)

	logging.Info("bulk delete completed",
		zap.Int("selected", len(req.Keys)),
		zap.Int("deleted", res.DeletedCount),
		zap.Int("failed", len(res.FailedItems)))

	for _, key := range req.Keys {
		s.publish(events.EventDelete, key, 0)
	}

	// Partial failure is a valid outcome, not an error status.
	s.sendJSON(w, http.StatusOK, res)
}

func (s *Server) handleRename(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Key     string `json:"key"`
		NewName string `json:"newName"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Key == "" || req.NewName == "" {
		s.sendError(w, http.StatusBadRequest, "key and newName are required")
		return
	}

	result, err := s.renamer.Rename(r.Context(), req.Key, req.NewName)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.sendError(w, http.StatusNotFound, "no asset at key "+req.Key)
			return
		}
		s.sendError(w, http.StatusBadGateway, "rename failed: "+err.Error())
		return
	}

	logging.Info("asset renamed",
		zap.String("old_key", result.OldKey),
		zap.String("new_key", result.NewKey),
		zap.Bool("orphaned_old_key", result.Warning != ""))

	s.publish(events.EventRename, result.NewKey, 0)

	resp := map[string]any{
		"success": true,
		"key":     result.NewKey,
		"url":     result.URL,
	}
	if result.Warning != "" {
		resp["warning"] = result.Warning
	}
	s.sendJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateFolder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name   string `json:"name"`
		Parent string `json:"parent"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		s.sendError(w, http.StatusBadRequest, "name is required")
		return
	}

	prefix, err := s.manager.CreateFolder(r.Context(), req.Parent, req.Name)
	if err != nil {
		if errors.Is(err, hierarchy.ErrFolderExists) {
			s.sendError(w, http.StatusConflict, "folder already exists")
			return
		}
		s.sendError(w, http.StatusBadGateway, "failed to create folder: "+err.Error())
		return
	}

	logging.Info("folder created", zap.String("prefix", prefix))
	s.publish(events.EventFolder, prefix, 0)
	s.sendJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"key":     prefix,
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.sendError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := s.broadcaster.Subscribe()
	defer s.broadcaster.Unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			data, err := events.MarshalEvent(event)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
			flusher.Flush()
		}
	}
}

func (s *Server) publish(eventType, key string, size int64) {
	if s.broadcaster == nil {
		return
	}
	s.broadcaster.Publish(events.Event{Type: eventType, Key: key, Size: size})
}

// writeMediaError maps classifier and compressor failures, all of which
// occur before any store write.
func (s *Server) writeMediaError(w http.ResponseWriter, err error) {
	var tooLarge *media.PayloadTooLargeError
	switch {
	case errors.Is(err, media.ErrUnsupportedMediaType):
		s.sendError(w, http.StatusUnsupportedMediaType, "unsupported media type")
	case errors.As(err, &tooLarge):
		s.sendError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("%s too large: max %d bytes", tooLarge.Class, tooLarge.Limit))
	case errors.Is(err, media.ErrCorruptImage):
		s.sendError(w, http.StatusUnprocessableEntity, "image could not be decoded")
	default:
		s.sendError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) sendJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Warn("failed to encode response", zap.Error(err))
	}
}

func (s *Server) sendError(w http.ResponseWriter, status int, msg string) {
	s.sendJSON(w, status, map[string]string{"error": msg})
}

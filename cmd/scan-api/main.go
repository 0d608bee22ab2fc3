package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/funcframework"
	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/Lllllllleong/bookpagevectors/internal/config"
	"github.com/Lllllllleong/bookpagevectors/internal/models"
	"github.com/Lllllllleong/bookpagevectors/internal/services"
	"github.com/joho/godotenv"
)

const (
	maxUploadBytes      = 20 << 20
	noFileMessage       = "No file uploaded."
	uploadFailedMessage = "An error occurred while uploading the file."
)

type matcher interface {
	Match(ctx context.Context, image []byte) (*models.UploadResponse, error)
}

var (
	scannerInstance *services.Scanner
	once            sync.Once
	initErr         error
)

func init() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.HTTP("UploadScan", handleUpload)
}

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("Failed to load .env file.", "error", err)
	}
	cfg, err := loadConfig()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	port := cfg.Port
	slog.Info("Starting scan API.", "port", port)
	if err := funcframework.Start(port); err != nil {
		slog.Error("funcframework.Start failed", "error", err)
		os.Exit(1)
	}
}

// loadConfig reads CONFIG_FILE, if set, with the environment on top.
func loadConfig() (*config.Config, error) {
	return config.Load(config.GetEnv("CONFIG_FILE", ""))
}

func newScanner(ctx context.Context) (*services.Scanner, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	// The runtime lives as long as the process.
	s, _, err := services.NewScannerFromConfig(ctx, cfg)
	return s, err
}

func handleUpload(w http.ResponseWriter, r *http.Request) {
	once.Do(func() {
		scannerInstance, initErr = newScanner(context.Background())
	})
	if initErr != nil {
		slog.Error("CRITICAL: Scanner initialization failed", "error", initErr)
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: uploadFailedMessage})
		return
	}
	uploadHandler(scannerInstance).ServeHTTP(w, r)
}

// uploadHandler serves POST /upload {fileName, imageBase64}.
func uploadHandler(m matcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			writeJSON(w, http.StatusMethodNotAllowed, models.ErrorResponse{Error: "Method not allowed."})
			return
		}

		var req models.UploadRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUploadBytes)).Decode(&req); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeJSON(w, http.StatusRequestEntityTooLarge, models.ErrorResponse{Error: "Image too large."})
				return
			}
			slog.Error("Could not decode request body", "error", err)
			writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Could not parse JSON body."})
			return
		}
		if req.ImageBase64 == "" {
			writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: noFileMessage})
			return
		}

		image, err := decodeImage(req.ImageBase64)
		if err != nil {
			slog.Error("Could not decode image", "fileName", req.FileName, "error", err)
			writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Image is not valid base64."})
			return
		}

		resp, err := m.Match(r.Context(), image)
		if err != nil {
			slog.Error("Scan lookup failed", "fileName", req.FileName, "error", err)
			writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: uploadFailedMessage})
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// decodeImage accepts raw base64 or a data URL.
func decodeImage(encoded string) ([]byte, error) {
	if strings.HasPrefix(encoded, "data:") {
		if _, payload, ok := strings.Cut(encoded, ","); ok {
			encoded = payload
		}
	}
	image, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, err
	}
	if len(image) == 0 {
		return nil, errors.New("empty image")
	}
	return image, nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Could not encode response", "error", err)
	}
}

package app

import (
	"context"
	"log"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/arensoandre/expert-cof/app/models"
	"github.com/arensoandre/expert-cof/auth"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Root is the public liveness endpoint.
func (a *App) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Welcome to Expert COF API"})
}

// Health reports whether the database is reachable.
func (a *App) Health(c *gin.Context) {
	dbStatus := "disconnected"
	if a.store != nil {
		if err := a.store.Ping(c.Request.Context()); err == nil {
			dbStatus = "connected"
		} else {
			log.Printf("health check db ping failed: %v", err)
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"database": dbStatus,
	})
}

// UploadCOF runs the whole pipeline for one uploaded document:
// entitlement gate, content hash, cache lookup, text extraction, AI
// analysis, persistence. Auth and quota failures are hard stops; everything
// past them degrades so the caller always gets a well-formed response.
func (a *App) UploadCOF(c *gin.Context) {
	claims, ok := auth.ClaimsFromContext(c.Request.Context())
	if !ok || claims.Subject == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not found"})
		return
	}
	userID := claims.Subject
	ctx := c.Request.Context()

	if err := a.enforceLifetimeQuota(ctx, userID); err != nil {
		switch classify(err) {
		case failQuota:
			log.Printf("user %s reached lifetime limit (free)", userID)
			c.JSON(http.StatusForbidden, gin.H{"error": QuotaMessage})
			return
		case failRecoverable:
			// Fail open: a broken quota check must not block uploads.
			log.Printf("error checking limits for user %s: %v", userID, err)
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}

	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing file"})
		return
	}
	if !strings.HasSuffix(strings.ToLower(file.Filename), ".pdf") {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidFileType.Error()})
		return
	}

	storedPath := filepath.Join(a.cfg.Upload.Dir, uuid.NewString()+"_"+filepath.Base(file.Filename))
	if err := c.SaveUploadedFile(file, storedPath); err != nil {
		log.Printf("failed to store upload for user %s: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error processing file: " + err.Error()})
		return
	}

	fileHash, err := HashFile(storedPath)
	if err != nil {
		log.Printf("failed to hash upload for user %s: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error processing file: " + err.Error()})
		return
	}

	if cached, hit := a.lookupCache(ctx, userID, fileHash, storedPath); hit {
		c.JSON(http.StatusOK, cached)
		return
	}

	// Extraction faults are swallowed: the AI step tolerates empty text and
	// produces a degraded analysis instead of a crash.
	text, err := ExtractText(storedPath)
	if err != nil {
		log.Printf("PDF extraction error for user %s: %v", userID, err)
		text = ""
	}

	result, degraded := a.analyzer.Analyze(ctx, text, file.Filename)
	if !degraded {
		a.persistAnalysis(ctx, userID, fileHash, storedPath, result)
	}

	c.JSON(http.StatusOK, result)
}

// lookupCache checks for an existing analysis of the same content anywhere in
// the system. On a hit it materializes a claim row for the current user when
// they do not own one yet, then returns the canonical payload. Any fault on
// this path reads as a miss so the pipeline falls through to a fresh analysis.
func (a *App) lookupCache(ctx context.Context, userID, fileHash, storedPath string) (*models.AnalysisResult, bool) {
	rec, err := a.store.FindAnalysisByHash(ctx, fileHash)
	if err != nil {
		log.Printf("database check failed for hash %s: %v", fileHash, err)
		return nil, false
	}
	if rec == nil || rec.RiskAnalysis == nil {
		return nil, false
	}
	log.Printf("file already analyzed globally, hash=%s", fileHash)

	owns, err := a.store.UserHasAnalysis(ctx, userID, fileHash)
	if err != nil {
		log.Printf("cache ownership check failed for user %s: %v", userID, err)
	} else if !owns {
		claim := &models.Analysis{
			UserID:        userID,
			FranchiseName: rec.FranchiseName,
			FilePath:      storedPath,
			FileHash:      fileHash,
			RiskAnalysis:  rec.RiskAnalysis,
			ExtractedData: rec.ExtractedData,
			Status:        models.StatusCompleted,
		}
		if err := a.store.InsertAnalysis(ctx, claim); err != nil {
			log.Printf("failed to save cached analysis for user %s: %v", userID, err)
		} else {
			log.Printf("saved cached analysis for new user %s", userID)
		}
	}

	result := *rec.RiskAnalysis
	result.FromCache = true
	result.FranchiseName = rec.FranchiseName
	return &result, true
}

// persistAnalysis writes the fresh result for the requesting user. Failures
// are logged and swallowed; the analysis already succeeded and is returned
// either way.
func (a *App) persistAnalysis(ctx context.Context, userID, fileHash, storedPath string, result *models.AnalysisResult) {
	franchise := result.FranchiseName
	if franchise == "" {
		franchise = "Desconhecida"
	}
	row := &models.Analysis{
		UserID:        userID,
		FranchiseName: franchise,
		FilePath:      storedPath,
		FileHash:      fileHash,
		RiskAnalysis:  result,
		ExtractedData: map[string]any{"cnpj": result.CNPJ},
		Status:        models.StatusCompleted,
	}
	if err := a.store.InsertAnalysis(ctx, row); err != nil {
		log.Printf("failed to save analysis for user %s: %v", userID, err)
		return
	}
	log.Printf("analysis saved user=%s hash=%s", userID, fileHash)
}

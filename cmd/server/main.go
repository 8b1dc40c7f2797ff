package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/taskforge/rewards/internal/adapters"
	"github.com/taskforge/rewards/internal/cache"
	"github.com/taskforge/rewards/internal/config"
	"github.com/taskforge/rewards/internal/database"
	apperrors "github.com/taskforge/rewards/internal/errors"
	"github.com/taskforge/rewards/internal/money"
	"github.com/taskforge/rewards/internal/monitoring"
	"github.com/taskforge/rewards/internal/pipeline"
	"github.com/taskforge/rewards/internal/relevance"
	"github.com/taskforge/rewards/internal/resilience"
	"github.com/taskforge/rewards/internal/rubric"
	"github.com/taskforge/rewards/internal/settlement"
)

// taskClosedEvent is the webhook payload the tracker delivers when a
// task transitions to closed.
type taskClosedEvent struct {
	Repo       string `json:"repo"`
	TaskNumber int    `json:"task_number"`
}

func main() {
	logger := monitoring.NewLogger()
	slog.SetDefault(logger.Logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	store, err := database.NewStore(cfg.DataDir)
	if err != nil {
		slog.Error("Failed to initialize reward store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	pool := resilience.NewHTTPPool(20, 10, 90*time.Second)
	defer pool.Close()

	tracker := adapters.NewTrackerAdapter(cfg.TrackerBaseURL, cfg.TrackerToken, pool, logger)
	oracle := adapters.NewOracleAdapter(cfg.OracleBaseURL, cfg.OracleToken, int(cfg.OracleRPS), pool, logger)
	signer := adapters.NewSignerAdapter(cfg.SignerBaseURL, cfg.SignerToken, int(cfg.SignerRPS), pool, logger)

	collaborators := cache.NewCollaboratorCache(tracker, 10*time.Minute, logger)
	marker := cache.NewSettledMarker(cfg.RedisAddr)
	defer marker.Close()

	sampler := relevance.NewSampler(oracle, cfg.RelevanceBatchWidth, cfg.RelevanceBatches, cfg.RelevancePrecision, logger)

	maxPayout, err := money.Parse(cfg.MaxPayout)
	if err != nil {
		slog.Error("MAX_PAYOUT is not a decimal", "value", cfg.MaxPayout, "error", err)
		os.Exit(1)
	}
	builder := settlement.NewBuilder(store, signer, logger, maxPayout, money.FromInt(1))

	engine := pipeline.New(tracker, collaborators, sampler, builder, marker,
		rubric.DefaultTable(), cfg.ReceiptCaller, logger)

	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now().UTC()})
	})

	r.POST("/webhook/task-closed", func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
			return
		}

		if !verifySignature(cfg.WebhookSecret, body, c.GetHeader("X-Hub-Signature-256")) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
			return
		}

		var event taskClosedEvent
		if err := bindJSON(body, &event); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
			return
		}

		result, err := engine.Run(c.Request.Context(), event.Repo, event.TaskNumber)
		if err != nil {
			status := http.StatusInternalServerError
			if apperrors.IsPrecondition(err) {
				// Nothing to settle; the delivery must not be retried.
				status = http.StatusUnprocessableEntity
			}
			slog.Error("Settlement run failed",
				"repo", event.Repo, "task_number", event.TaskNumber, "error", err)
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}

		if result.AlreadySettled {
			c.JSON(http.StatusOK, gin.H{"run_id": result.RunID, "already_settled": true})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"run_id":     result.RunID,
			"comment_id": result.CommentID,
			"recipients": len(result.Settlement.Rewards),
			"total":      result.Settlement.Total().StringFixed(2),
			"currency":   result.Settlement.Currency,
		})
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		slog.Info("Server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}
	slog.Info("Server exited")
}

// verifySignature checks the webhook HMAC. An empty configured secret
// disables verification, for local development only.
func verifySignature(secret string, body []byte, header string) bool {
	if secret == "" {
		return true
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(header))
}

func bindJSON(body []byte, out *taskClosedEvent) error {
	if err := json.Unmarshal(body, out); err != nil {
		return err
	}
	if out.Repo == "" || out.TaskNumber == 0 {
		return fmt.Errorf("repo and task_number are required")
	}
	return nil
}

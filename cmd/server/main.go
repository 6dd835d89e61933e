package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rjmacarthy/minigpt4/internal/api"
	"github.com/rjmacarthy/minigpt4/internal/config"
	"github.com/rjmacarthy/minigpt4/internal/core"
	"github.com/rjmacarthy/minigpt4/internal/model"
	"github.com/rjmacarthy/minigpt4/internal/store"
)

// llamaEOSTokenID is the end-of-sequence token of the hosted decoder's
// vocabulary (token 2 for the LLaMA tokenizer family).
const llamaEOSTokenID = 2

func main() {
	// Load configuration
	config.LoadConfig()

	// Setup logging
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if config.AppConfig.LogLevel == "DEBUG" {
		log.Println("Service starting in DEBUG mode")
	}

	// Initialize storage: create the database if absent, verify the vector
	// extension, migrate the schema.
	db, err := store.Open(store.ConnInfo{
		Host:     config.AppConfig.PGHost,
		Port:     config.AppConfig.PGPort,
		User:     config.AppConfig.PGUser,
		Password: config.AppConfig.PGPassword,
		Database: config.AppConfig.PGDatabase,
	})
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	imageStore := store.NewImageStore(db, config.AppConfig.EmbeddingDim)

	// Model collaborators: the decoder runner and the vision encoder are
	// HTTP sidecars holding the actual weights.
	runner := model.NewRunner(config.AppConfig.ModelRunnerURL, llamaEOSTokenID, nil)
	if !runner.IsHealthy() {
		log.Printf("Warning: model runner at %s is not answering", config.AppConfig.ModelRunnerURL)
	}
	vision := model.NewHTTPVisionEncoder(config.AppConfig.VisionEncoderURL, nil)

	// Optional Gemini captioner for image descriptions.
	var captioner model.Captioner
	if config.AppConfig.GeminiAPIKey != "" {
		gc, err := model.NewGeminiCaptioner(context.Background(), config.AppConfig.GeminiAPIKey)
		if err != nil {
			log.Fatalf("Failed to initialize captioner: %v", err)
		}
		defer gc.Close()
		captioner = gc
	}

	// Generation pipeline
	opts := core.DefaultGenerationOptions()
	opts.MaxNewTokens = config.AppConfig.MaxNewTokens
	opts.MaxLength = config.AppConfig.MaxContextLength
	opts.Sampling.TopP = config.AppConfig.TopP
	opts.Sampling.Temperature = config.AppConfig.Temperature

	composer := core.NewComposer(runner)
	generator := core.NewGenerator(runner, composer, model.DefaultStoppingCriteria(), opts)
	chatService := core.NewChatService(imageStore, core.NewSessionRegistry(), vision, captioner, generator)

	// Initialize API Handler and Router
	apiHandler := api.NewAPIHandler(chatService)
	router := api.NewRouter(apiHandler, config.AppConfig.FrontendURL)

	// Start HTTP server
	serverAddr := fmt.Sprintf(":%s", config.AppConfig.HTTPPort)

	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,  // Uploads can be large
		WriteTimeout: 300 * time.Second, // The decode loop can take time
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown handling
	go func() {
		log.Printf("Starting server on %s. Press Ctrl+C to quit.", serverAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v\n", serverAddr, err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give in-flight generation requests time to finish.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting gracefully")
}

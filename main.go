package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/objinspect/inspection-service/config"
	"github.com/objinspect/inspection-service/detections"
	"github.com/objinspect/inspection-service/storage"

	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"
)

// initSession loads one ONNX engine replica. Model load is expensive, so
// this runs only at startup and inside the pool's health checker.
func initSession(cfg *config.ModelConfig) (detections.Engine, error) {
	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("error creating session options: %w", err)
	}
	defer options.Destroy()

	inputShape := ort.NewShape(1, 3, detections.InputHeight, detections.InputWidth)
	outputShape := ort.NewShape(1, detections.NumCandidates, detections.NumChannels)

	inputTensor, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, fmt.Errorf("error creating input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("error creating output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		cfg.Path,
		[]string{"images"},
		[]string{"output0"},
		[]ort.ArbitraryTensor{inputTensor},
		[]ort.ArbitraryTensor{outputTensor},
		options,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("error creating session: %w", err)
	}

	return &detections.ModelSession{
		Session:       session,
		Input:         inputTensor,
		Output:        outputTensor,
		ConfThreshold: float32(cfg.ConfThreshold),
		IouThreshold:  float32(cfg.IouThreshold),
	}, nil
}

func main() {
	cfg := config.New()

	logger, err := newLogger(cfg.Server.Mode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	store, err := storage.New(cfg.Upload.Dir)
	if err != nil {
		logger.Fatal("failed to prepare upload directory", zap.Error(err))
	}

	ort.SetSharedLibraryPath(cfg.Model.OrtLibrary)
	if err := ort.InitializeEnvironment(); err != nil {
		logger.Fatal("failed to initialize ONNX environment", zap.Error(err))
	}
	defer ort.DestroyEnvironment()

	pool, err := NewEnginePool(func() (detections.Engine, error) {
		return initSession(&cfg.Model)
	}, cfg.Model.PoolSize, AcquireTimeout)
	if err != nil {
		logger.Fatal("failed to create engine pool", zap.Error(err))
	}
	defer pool.Destroy()

	cache := NewReportCache(context.Background(), &cfg.Redis, logger)
	defer cache.Close()

	a := &app{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		invoker: NewInvoker(pool, store, cfg.Model.InferenceTimeout),
		pool:    pool,
		cache:   cache,
	}

	srv := &http.Server{
		Handler:      a.routes(),
		Addr:         cfg.Server.Addr,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	logger.Info("starting server",
		zap.String("addr", srv.Addr),
		zap.String("model", cfg.Model.Path),
		zap.Int("pool_size", cfg.Model.PoolSize),
		zap.Bool("cache_enabled", cache != nil),
	)
	logger.Fatal("server stopped", zap.Error(srv.ListenAndServe()))
}
